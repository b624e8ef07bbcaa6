package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopCountString(t *testing.T) {
	assert.Equal(t, "infinite", loopCountString(0))
	assert.Equal(t, "3", loopCountString(3))
}

func solidFrame(w, h int, c color.Color) *image.Paletted {
	pal := color.Palette{color.Transparent, c}
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeTempGIF(t *testing.T) string {
	t.Helper()
	frames := []*image.Paletted{
		solidFrame(4, 4, color.RGBA{R: 255, A: 255}),
		solidFrame(4, 4, color.RGBA{G: 255, A: 255}),
	}
	g := &gif.GIF{Image: frames, Delay: []int{10, 10}, Disposal: []byte{0, 0}, LoopCount: 0}

	f, err := os.CreateTemp(t.TempDir(), "inspect-*.gif")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, g))
	return f.Name()
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestRunInspect_PrintsContainerSummary(t *testing.T) {
	path := writeTempGIF(t)

	var out string
	out = captureStdout(t, func() {
		err := runInspect(inspectCmd, []string{path})
		require.NoError(t, err)
	})

	assert.True(t, bytes.Contains([]byte(out), []byte("kind:        gif")))
	assert.True(t, bytes.Contains([]byte(out), []byte("frames:      2")))
	assert.True(t, bytes.Contains([]byte(out), []byte("loop count:  infinite")))
}

func TestRunInspect_MissingFileErrors(t *testing.T) {
	err := runInspect(inspectCmd, []string{"/nonexistent/path/does-not-exist.gif"})
	assert.Error(t, err)
}
