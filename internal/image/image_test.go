package image

import (
	"bytes"
	gostdimage "image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animaframe/internal/frame"
)

func solidFrame(w, h int, c color.Color) *gostdimage.Paletted {
	pal := color.Palette{color.Transparent, c}
	img := gostdimage.NewPaletted(gostdimage.Rect(0, 0, w, h), pal)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeGIF(t *testing.T, frames []*gostdimage.Paletted, delays []int, loopCount int) []byte {
	t.Helper()
	disposal := make([]byte, len(frames))
	g := &gif.GIF{Image: frames, Delay: delays, Disposal: disposal, LoopCount: loopCount}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestOpen_GIFPopulatesDescriptor(t *testing.T) {
	frames := []*gostdimage.Paletted{
		solidFrame(4, 4, color.RGBA{R: 255, A: 255}),
		solidFrame(4, 4, color.RGBA{G: 255, A: 255}),
		solidFrame(4, 4, color.RGBA{B: 255, A: 255}),
	}
	data := encodeGIF(t, frames, []int{10, 10, 10}, 2)

	img, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, KindGIF, img.Kind())
	assert.Equal(t, 3, img.FrameCount())
	assert.Equal(t, 2, img.LoopCount())
	assert.Equal(t, 0, img.PosterIndex())
	assert.NotNil(t, img.PosterImage())
	assert.Equal(t, gostdimage.Rect(0, 0, 4, 4), img.Size())
}

func TestOpen_RejectsUnrecognizedMagic(t *testing.T) {
	_, err := Open(bytes.NewReader([]byte("definitely not an image container")))
	assert.ErrorIs(t, err, frame.ErrContainerInvalid)
}

func TestOpen_NormalizesDelayBelowMinimum(t *testing.T) {
	frames := []*gostdimage.Paletted{
		solidFrame(2, 2, color.RGBA{R: 255, A: 255}),
		solidFrame(2, 2, color.RGBA{G: 255, A: 255}),
	}
	// 1/100s = 0.01s raw delay, below frame.MinDelaySeconds (0.02), so the
	// normalization rule replaces it with the default delay.
	data := encodeGIF(t, frames, []int{1, 1}, 0)

	img, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, time.Duration(frame.DefaultDelaySeconds*float64(time.Second)), img.Delay(0))
}

func TestOpen_EveryDelayMeetsTheMinimum(t *testing.T) {
	frames := make([]*gostdimage.Paletted, 5)
	delays := make([]int, 5)
	for i := range frames {
		frames[i] = solidFrame(2, 2, color.RGBA{R: uint8(i * 40), A: 255})
		delays[i] = i // 0, 1, 2, 3, 4 centiseconds: several fall under the floor
	}
	data := encodeGIF(t, frames, delays, 0)

	img, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, 5, img.FrameCount())
	for i := 0; i < img.FrameCount(); i++ {
		assert.GreaterOrEqual(t, img.Delay(i).Seconds(), frame.MinDelaySeconds)
	}
}

func TestImageAt_PosterIndexAlwaysHits(t *testing.T) {
	frames := []*gostdimage.Paletted{
		solidFrame(2, 2, color.RGBA{R: 255, A: 255}),
		solidFrame(2, 2, color.RGBA{G: 255, A: 255}),
	}
	data := encodeGIF(t, frames, []int{10, 10}, 0)

	img, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer img.Close()

	frameImg, hit := img.ImageAt(img.PosterIndex())
	assert.True(t, hit)
	assert.Same(t, img.PosterImage(), frameImg)
}

func TestOnMemoryPressure_CollapsesThenResets(t *testing.T) {
	frames := make([]*gostdimage.Paletted, 20)
	delays := make([]int, 20)
	for i := range frames {
		frames[i] = solidFrame(2, 2, color.RGBA{R: uint8(i), A: 255})
		delays[i] = 5
	}
	data := encodeGIF(t, frames, delays, 0)

	img, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer img.Close()

	before := img.CapacityCurrent()
	require.Greater(t, before, 1)

	img.OnMemoryPressure()
	assert.Equal(t, 1, img.CapacityCurrent())

	img.ResetPressure()
	assert.Equal(t, before, img.CapacityCurrent())
}

func TestPredrawSlowdownFactor_DefaultsToBaseline(t *testing.T) {
	frames := []*gostdimage.Paletted{solidFrame(2, 2, color.RGBA{R: 255, A: 255})}
	data := encodeGIF(t, frames, []int{10}, 0)

	img, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer img.Close()

	assert.GreaterOrEqual(t, img.PredrawSlowdownFactor(), 1.0)
}
