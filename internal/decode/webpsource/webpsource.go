// Package webpsource implements a frame.Source over libwebp's demuxer,
// binding directly via cgo the same way the teacher's pkg/mpeg binds
// directly to libavcodec rather than reaching for a pure-Go or
// not-yet-vendored WebP module. Each animation frame is decoded to its
// own sub-rectangle RGBA buffer and left unblended; compositing frames
// onto the running canvas per their dispose/blend method is Blend's job,
// so the cache's predecessor-chain resolution (§4.B) works identically
// for WebP and GIF sources.
package webpsource

/*
#cgo pkg-config: libwebpdemux libwebp

#include <stdlib.h>
#include <string.h>
#include <webp/decode.h>
#include <webp/demux.h>

typedef struct {
	WebPData    data;
	WebPDemuxer *demux;
	int         canvasWidth;
	int         canvasHeight;
	int         frameCount;
	int         loopCount;
} waf_container;

static int waf_open(const uint8_t *bytes, size_t len, waf_container *c) {
	c->data.bytes = bytes;
	c->data.size = len;
	c->demux = WebPDemux(&c->data);
	if (!c->demux) {
		return -1;
	}
	c->canvasWidth = (int)WebPDemuxGetI(c->demux, WEBP_FF_CANVAS_WIDTH);
	c->canvasHeight = (int)WebPDemuxGetI(c->demux, WEBP_FF_CANVAS_HEIGHT);
	c->frameCount = (int)WebPDemuxGetI(c->demux, WEBP_FF_FRAME_COUNT);
	c->loopCount = (int)WebPDemuxGetI(c->demux, WEBP_FF_LOOP_COUNT);
	return 0;
}

typedef struct {
	int     xOffset;
	int     yOffset;
	int     width;
	int     height;
	int     durationMs;
	int     disposeToBackground;
	int     blend;
	int     hasAlpha;
	uint8_t *rgba;
} waf_frame;

static int waf_get_frame(waf_container *c, int index, waf_frame *out) {
	WebPIterator iter;
	if (!WebPDemuxGetFrame(c->demux, index + 1, &iter)) {
		return -1;
	}
	out->xOffset = iter.x_offset;
	out->yOffset = iter.y_offset;
	out->width = iter.width;
	out->height = iter.height;
	out->durationMs = iter.duration;
	out->disposeToBackground = (iter.dispose_method == WEBP_MUX_DISPOSE_BACKGROUND);
	out->blend = (iter.blend_method == WEBP_MUX_BLEND);
	out->hasAlpha = iter.has_alpha;

	uint8_t *rgba = WebPDecodeRGBA(iter.fragment.bytes, iter.fragment.size, NULL, NULL);
	WebPDemuxReleaseIterator(&iter);
	if (!rgba) {
		return -2;
	}
	out->rgba = rgba;
	return 0;
}

static void waf_close(waf_container *c) {
	if (c->demux) {
		WebPDemuxDelete(c->demux);
	}
}
*/
import "C"

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"unsafe"

	"animaframe/internal/frame"
)

// Source decodes frames of one WebP animation via libwebp. All cgo
// calls are serialized by mu; the frame cache already funnels Decode
// calls through a single worker goroutine, but Blend and Info may be
// invoked from that worker while a prior Decode is still unwinding its
// cgo call, so the mutex guards against overlap if that assumption ever
// changes.
type Source struct {
	mu sync.Mutex

	raw  []byte // keeps the WebPData backing bytes alive for the demuxer's lifetime
	cdem C.waf_container

	width, height int
	frameCount    int
	loopCount     int
	infos         []frame.Info
	delaysMs      []int
	closed        bool
}

// Parse opens data (the full WebP file, including RIFF header) as an
// animation container.
func Parse(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, frame.ErrContainerInvalid
	}

	s := &Source{raw: data}
	ret := C.waf_open((*C.uint8_t)(unsafe.Pointer(&s.raw[0])), C.size_t(len(s.raw)), &s.cdem)
	if ret != 0 {
		return nil, fmt.Errorf("%w: libwebp demux init failed (%d)", frame.ErrContainerInvalid, int(ret))
	}

	s.width = int(s.cdem.canvasWidth)
	s.height = int(s.cdem.canvasHeight)
	s.frameCount = int(s.cdem.frameCount)
	s.loopCount = int(s.cdem.loopCount)
	if s.frameCount == 0 {
		C.waf_close(&s.cdem)
		return nil, frame.ErrNoValidFrames
	}

	s.infos = make([]frame.Info, s.frameCount)
	s.delaysMs = make([]int, s.frameCount)
	for i := 0; i < s.frameCount; i++ {
		var cf C.waf_frame
		if ret := C.waf_get_frame(&s.cdem, C.int(i), &cf); ret != 0 {
			continue // leave a zero Info; Decode will surface the real error on request
		}
		s.infos[i] = frame.Info{
			Rect: image.Rect(
				int(cf.xOffset), int(cf.yOffset),
				int(cf.xOffset)+int(cf.width), int(cf.yOffset)+int(cf.height),
			),
			DisposeToBackground: cf.disposeToBackground != 0,
			BlendWithPrevious:   i > 0 && cf.blend != 0,
			HasAlpha:            cf.hasAlpha != 0,
		}
		s.delaysMs[i] = int(cf.durationMs)
		C.WebPFree(unsafe.Pointer(cf.rgba))
	}

	return s, nil
}

func (s *Source) FrameCount() int { return s.frameCount }

func (s *Source) LoopCount() int { return s.loopCount }

func (s *Source) Info(index int) frame.Info { return s.infos[index] }

// RawDelay returns frame index's WebP frame duration in seconds, before
// the caller applies frame.NormalizeDelay.
func (s *Source) RawDelay(index int) float64 { return float64(s.delaysMs[index]) / 1000.0 }

func (s *Source) Bounds() image.Rectangle { return image.Rect(0, 0, s.width, s.height) }

// Decode renders frame index's own sub-rectangle, positioned at its
// offset on the canvas but not composited against any predecessor.
func (s *Source) Decode(ctx context.Context, index int) (frame.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= s.frameCount {
		return nil, fmt.Errorf("%w: index %d out of range", frame.ErrFrameDecodeFailed, index)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, frame.ErrClosed
	}
	var cf C.waf_frame
	ret := C.waf_get_frame(&s.cdem, C.int(index), &cf)
	s.mu.Unlock()
	if ret != 0 {
		return nil, fmt.Errorf("%w: libwebp decode of frame %d failed (%d)", frame.ErrFrameDecodeFailed, index, int(ret))
	}
	defer C.WebPFree(unsafe.Pointer(cf.rgba))

	w, h := int(cf.width), int(cf.height)
	stride := w * 4
	pix := C.GoBytes(unsafe.Pointer(cf.rgba), C.int(stride*h))

	img := &image.RGBA{
		Pix:    pix,
		Stride: stride,
		Rect: image.Rect(
			int(cf.xOffset), int(cf.yOffset),
			int(cf.xOffset)+w, int(cf.yOffset)+h,
		),
	}
	return img, nil
}

// RequiresBlending reports whether index needs compositing against the
// canvas implied by its predecessor. WebP frame 0 always covers the
// full canvas and never blends; every later frame composites per its
// own dispose/blend flags even when BlendWithPrevious is false, since a
// NO_BLEND frame still needs to be placed at its offset on top of
// whatever the canvas looked like after the predecessor's disposal.
func (s *Source) RequiresBlending(index int) bool {
	return index > 0
}

// Blend composites current (frame index's raw sub-rectangle) onto the
// canvas implied by previous (frame index-1's fully composited image),
// applying frame index-1's disposal method first and then current's own
// blend method (§4.B, §4.A.1).
func (s *Source) Blend(current, previous frame.Image, index int) (frame.Image, error) {
	if index <= 0 {
		return current, nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(canvas, canvas.Bounds(), previous, previous.Bounds().Min, draw.Src)

	prevInfo := s.infos[index-1]
	if prevInfo.DisposeToBackground {
		draw.Draw(canvas, prevInfo.Rect, image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	}

	curInfo := s.infos[index]
	op := draw.Src
	if curInfo.BlendWithPrevious {
		op = draw.Over
	}
	draw.Draw(canvas, curInfo.Rect, current, current.Bounds().Min, op)
	return canvas, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	C.waf_close(&s.cdem)
	return nil
}

var _ frame.Source = (*Source)(nil)
