// Package gifsource implements a frame.Source over Go's standard GIF
// decoder (golang.org/x/image support is limited to scaling; decoding
// itself is image/gif). Disposal-aware compositing is grounded on
// H0llyW00dzZ-pixcel's compositeFrames: each frame is drawn Over a
// persistent canvas, and the prior frame's disposal method determines
// what happens to that canvas before the next frame draws (§4.A, §4.B).
package gifsource

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"

	"animaframe/internal/frame"
)

// Source decodes one already-parsed *gif.GIF. Frames are kept as their
// raw (unblended) paletted images; full per-frame compositing happens on
// demand through Blend, mirroring how the cache resolves the WebP
// predecessor chain (§4.B "Decode pipeline").
type Source struct {
	g      *gif.GIF
	width  int
	height int
	delays []float64 // raw seconds, one per frame; un-normalized
	infos  []frame.Info
	closed bool
}

// Parse decodes r as a GIF container into a Source. It does not decode
// any frame yet; the caller (internal/image) is responsible for poster
// selection, including its retry-next-index behavior.
func Parse(r io.Reader) (*Source, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", frame.ErrContainerInvalid, err)
	}
	if len(g.Image) == 0 {
		return nil, frame.ErrNoValidFrames
	}

	width, height := g.Config.Width, g.Config.Height
	if width == 0 || height == 0 {
		b := g.Image[0].Bounds()
		width, height = b.Max.X, b.Max.Y
	}

	s := &Source{g: g, width: width, height: height}
	s.delays = make([]float64, len(g.Image))
	s.infos = make([]frame.Info, len(g.Image))
	for i, img := range g.Image {
		raw := 0.0
		if i < len(g.Delay) && g.Delay[i] > 0 {
			raw = float64(g.Delay[i]) / 100.0
		}
		s.delays[i] = raw

		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		s.infos[i] = frame.Info{
			Rect:                img.Bounds(),
			DisposeToBackground: disposal == gif.DisposalBackground,
			BlendWithPrevious:   i > 0,
			HasAlpha:            paletteHasAlpha(img.Palette),
		}
	}

	return s, nil
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		_, _, _, a := c.RGBA()
		if a != 0xffff {
			return true
		}
	}
	return false
}

func (s *Source) FrameCount() int { return len(s.g.Image) }

func (s *Source) Info(index int) frame.Info { return s.infos[index] }

// RawDelay returns frame index's GIF delay in seconds, before the
// caller applies frame.NormalizeDelay (§4.A.1, §4.C).
func (s *Source) RawDelay(index int) float64 { return s.delays[index] }

// LoopCount returns the GIF's NETSCAPE2.0 loop count: 0 means infinite.
func (s *Source) LoopCount() int { return s.g.LoopCount }

func (s *Source) Bounds() image.Rectangle { return image.Rect(0, 0, s.width, s.height) }

// Decode returns frame index's raw (unblended) palette image, exactly as
// the GIF container stored it. Compositing onto the running canvas is
// Blend's job.
func (s *Source) Decode(ctx context.Context, index int) (frame.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, frame.ErrClosed
	}
	if index < 0 || index >= len(s.g.Image) {
		return nil, fmt.Errorf("%w: index %d out of range", frame.ErrFrameDecodeFailed, index)
	}
	return s.g.Image[index], nil
}

// RequiresBlending reports whether frame index needs compositing against
// its predecessor's canvas before it is display-ready. Frame 0 never does;
// every later frame does, since GIF frames are drawn cumulatively (§4.B).
func (s *Source) RequiresBlending(index int) bool {
	return index > 0
}

// Blend composites current (frame index's raw palette image) onto the
// canvas implied by previous (frame index-1's fully composited image),
// first applying frame index-1's disposal method. DisposalPrevious is
// treated the same as DisposalNone here — correctly resolving it would
// require re-walking to the canvas from before index-1, two predecessors
// back, which the bounded predecessor walk in the cache does not attempt;
// this matches the teacher's compositeFrames for the common case and
// only diverges for the rare GIF that actually relies on DisposalPrevious.
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

	cur := s.g.Image[index]
	draw.Draw(canvas, cur.Bounds(), cur, cur.Bounds().Min, draw.Over)
	return canvas, nil
}

func (s *Source) Close() error {
	s.closed = true
	return nil
}

var _ frame.Source = (*Source)(nil)
