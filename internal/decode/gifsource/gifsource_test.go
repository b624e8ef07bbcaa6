package gifsource

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animaframe/internal/frame"
)

// encodeGIF builds a minimal multi-frame GIF in memory so tests don't
// need binary fixtures on disk.
func encodeGIF(t *testing.T, frames []*image.Paletted, delays []int, disposals []byte, loopCount int) []byte {
	t.Helper()
	g := &gif.GIF{Image: frames, Delay: delays, Disposal: disposals, LoopCount: loopCount}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
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

func TestParse_ReadsDelaysAndLoopCount(t *testing.T) {
	frames := []*image.Paletted{
		solidFrame(4, 4, color.RGBA{R: 255, A: 255}),
		solidFrame(4, 4, color.RGBA{G: 255, A: 255}),
	}
	data := encodeGIF(t, frames, []int{10, 20}, []byte{byte(gif.DisposalNone), byte(gif.DisposalNone)}, 3)

	s, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 2, s.FrameCount())
	assert.InDelta(t, 0.10, s.RawDelay(0), 1e-9)
	assert.InDelta(t, 0.20, s.RawDelay(1), 1e-9)
	assert.Equal(t, 3, s.LoopCount())
}

func TestParse_RejectsNonGIFBytes(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not a gif")))
	assert.Error(t, err)
}

func TestRequiresBlending_FalseOnlyForFirstFrame(t *testing.T) {
	frames := []*image.Paletted{
		solidFrame(2, 2, color.RGBA{R: 255, A: 255}),
		solidFrame(2, 2, color.RGBA{G: 255, A: 255}),
		solidFrame(2, 2, color.RGBA{B: 255, A: 255}),
	}
	data := encodeGIF(t, frames, []int{5, 5, 5}, []byte{0, 0, 0}, 0)
	s, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.RequiresBlending(0))
	assert.True(t, s.RequiresBlending(1))
	assert.True(t, s.RequiresBlending(2))
}

func TestBlend_CompositesOverPreviousCanvas(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	frames := []*image.Paletted{
		solidFrame(4, 4, red),
		solidFrame(4, 4, green),
	}
	data := encodeGIF(t, frames, []int{5, 5}, []byte{byte(gif.DisposalNone), byte(gif.DisposalNone)}, 0)
	s, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	prev, err := s.Decode(ctx, 0)
	require.NoError(t, err)
	cur, err := s.Decode(ctx, 1)
	require.NoError(t, err)

	blended, err := s.Blend(cur, prev, 1)
	require.NoError(t, err)

	r, g, _, _ := blended.At(0, 0).RGBA()
	assert.Zero(t, r)
	assert.NotZero(t, g)
}

func TestBlend_DisposalBackgroundClearsPreviousRegionFirst(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	// Frame 1 only covers the left half; disposal on frame 0 is
	// Background, so frame 1's Blend must clear frame 0's full canvas
	// area before compositing frame 1's smaller rect on top.
	frame0 := solidFrame(4, 4, red)

	pal := color.Palette{color.Transparent, color.RGBA{G: 255, A: 255}}
	frame1 := image.NewPaletted(image.Rect(0, 0, 2, 4), pal)
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			frame1.Set(x, y, pal[1])
		}
	}

	data := encodeGIF(t, []*image.Paletted{frame0, frame1}, []int{5, 5}, []byte{byte(gif.DisposalBackground), byte(gif.DisposalNone)}, 0)
	s, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	prev, err := s.Decode(ctx, 0)
	require.NoError(t, err)
	cur, err := s.Decode(ctx, 1)
	require.NoError(t, err)

	blended, err := s.Blend(cur, prev, 1)
	require.NoError(t, err)

	// Right half was covered only by frame 0, now disposed to background.
	r, _, _, a := blended.At(3, 0).RGBA()
	assert.Zero(t, r)
	assert.Zero(t, a)
}

func TestDecode_AfterCloseReturnsErrClosed(t *testing.T) {
	frames := []*image.Paletted{solidFrame(2, 2, color.RGBA{R: 255, A: 255})}
	data := encodeGIF(t, frames, []int{5}, []byte{0}, 0)
	s, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Decode(context.Background(), 0)
	assert.ErrorIs(t, err, frame.ErrClosed)
}

func TestDecode_OutOfRangeIndexErrors(t *testing.T) {
	frames := []*image.Paletted{solidFrame(2, 2, color.RGBA{R: 255, A: 255})}
	data := encodeGIF(t, frames, []int{5}, []byte{0}, 0)
	s, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Decode(context.Background(), 5)
	assert.Error(t, err)
}
