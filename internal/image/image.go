// Package image assembles a decoded container (GIF or WebP) into the
// AnimatedImage the playback engine drives: an immutable descriptor
// (size, loop count, per-frame delays) plus the frame cache that backs
// ImageAt (§4.C of the specification this repo implements).
package image

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"animaframe/internal/cache"
	"animaframe/internal/debug"
	"animaframe/internal/decode/gifsource"
	"animaframe/internal/decode/webpsource"
	"animaframe/internal/frame"
)

// Kind identifies which decoder produced an AnimatedImage.
type Kind int

const (
	KindGIF Kind = iota
	KindWebP
)

func (k Kind) String() string {
	if k == KindWebP {
		return "webp"
	}
	return "gif"
}

var (
	gifMagic  = []byte("GIF8")
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// AnimatedImage is the immutable descriptor plus the live cache backing
// it. Once constructed, only the cache's internal state and the
// memory-pressure flag change; FrameCount, LoopCount, and per-frame
// delays never do (§4.C "Invariants").
type AnimatedImage struct {
	kind       Kind
	src        frame.Source
	cache      *cache.Cache
	bounds     image.Rectangle
	frameCount int
	loopCount  int
	delays     []time.Duration
	posterIdx  int
}

// Option configures construction.
type Option func(*options)

type options struct {
	capacityMax int
	budget      *cache.Budget
	delegate    debug.Delegate
}

// WithCapacityMax caps the cache window regardless of the size-based tier.
func WithCapacityMax(max int) Option {
	return func(o *options) { o.capacityMax = max }
}

// WithBudget overrides the default memory-tier thresholds.
func WithBudget(b cache.Budget) Option {
	return func(o *options) { o.budget = &b }
}

// WithDelegate attaches a debug observer to the underlying cache.
func WithDelegate(d debug.Delegate) Option {
	return func(o *options) { o.delegate = d }
}

// Open sniffs r's container format and constructs the matching
// AnimatedImage. r is fully buffered first since both decoders need
// random access to the underlying bytes.
func Open(r io.Reader, opts ...Option) (*AnimatedImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", frame.ErrContainerInvalid, err)
	}

	switch {
	case bytes.HasPrefix(data, gifMagic):
		return newFromSource(KindGIF, func() (frame.Source, int, error) {
			s, err := gifsource.Parse(bufio.NewReader(bytes.NewReader(data)))
			if err != nil {
				return nil, 0, err
			}
			return s, s.FrameCount(), nil
		}, opts...)
	case len(data) >= 12 && bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return newFromSource(KindWebP, func() (frame.Source, int, error) {
			s, err := webpsource.Parse(data)
			if err != nil {
				return nil, 0, err
			}
			return s, s.FrameCount(), nil
		}, opts...)
	default:
		return nil, frame.ErrContainerInvalid
	}
}

type sourceFactory func() (frame.Source, int, error)

func newFromSource(kind Kind, factory sourceFactory, opts ...Option) (*AnimatedImage, error) {
	src, frameCount, err := factory()
	if err != nil {
		return nil, err
	}
	if frameCount == 0 {
		src.Close()
		return nil, frame.ErrNoValidFrames
	}

	poster, posterIdx, err := decodePoster(context.Background(), src)
	if err != nil {
		src.Close()
		return nil, err
	}

	delays := make([]time.Duration, frameCount)
	var maxBytes uint64
	bounds := boundsOf(poster)
	frameBytes := uint64(bounds.Dx()) * uint64(bounds.Dy()) * 4
	for i := 0; i < frameCount; i++ {
		raw := src.RawDelay(i)
		delays[i] = time.Duration(frame.NormalizeDelay(raw) * float64(time.Second))
		if frameBytes > maxBytes {
			maxBytes = frameBytes
		}
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cacheOpts := []cache.Option{}
	if o.capacityMax > 0 {
		cacheOpts = append(cacheOpts, cache.WithCapacityMax(o.capacityMax))
	}
	if o.budget != nil {
		cacheOpts = append(cacheOpts, cache.WithBudget(*o.budget))
	}
	if o.delegate != nil {
		cacheOpts = append(cacheOpts, cache.WithDelegate(o.delegate))
	}

	c := cache.New(src, frameCount, maxBytes, poster, posterIdx, cacheOpts...)

	return &AnimatedImage{
		kind:       kind,
		src:        src,
		cache:      c,
		bounds:     bounds,
		frameCount: frameCount,
		loopCount:  loopCountOf(src),
		delays:     delays,
		posterIdx:  posterIdx,
	}, nil
}

func boundsOf(img frame.Image) image.Rectangle {
	if img == nil {
		return image.Rectangle{}
	}
	return img.Bounds()
}

type loopCounter interface {
	LoopCount() int
}

func loopCountOf(src frame.Source) int {
	if lc, ok := src.(loopCounter); ok {
		return lc.LoopCount()
	}
	return 1
}

// decodePoster tries to produce a poster frame, trying index 0 first and
// walking forward on failure; the first index that decodes successfully
// becomes the poster (§4.C supplement: "poster-image selection retries
// the next index on decode failure"). There is no resident predecessor
// to blend against at construction time, so a mid-sequence frame that
// needs blending is used as decoded. The cache always serves this image
// for the poster index; it is never re-decoded or composited later.
func decodePoster(ctx context.Context, src frame.Source) (frame.Image, int, error) {
	n := src.FrameCount()
	for i := 0; i < n; i++ {
		decoded, err := src.Decode(ctx, i)
		if err != nil {
			continue
		}
		return decoded, i, nil
	}
	return nil, 0, frame.ErrPosterDecodeFailed
}

// PosterImage returns the always-resident poster frame.
func (a *AnimatedImage) PosterImage() frame.Image { return a.cache.PosterImage() }

// PosterIndex returns the frame index the poster was decoded from.
func (a *AnimatedImage) PosterIndex() int { return a.posterIdx }

// FrameCount returns the number of frames in the sequence.
func (a *AnimatedImage) FrameCount() int { return a.frameCount }

// LoopCount returns the container's loop count; 0 means infinite.
func (a *AnimatedImage) LoopCount() int { return a.loopCount }

// Delay returns frame index's normalized display duration.
func (a *AnimatedImage) Delay(index int) time.Duration { return a.delays[index] }

// ImageAt serves a non-blocking cache lookup for frame index, advancing
// the predictive window and enqueueing a prefetch as a side effect
// (§4.B responsibility 1).
func (a *AnimatedImage) ImageAt(index int) (frame.Image, bool) { return a.cache.Get(index) }

// ResetPressure clears a prior memory-pressure downgrade of the cache
// window, conventionally called by the playback engine at a loop
// boundary (§4.B, §5).
func (a *AnimatedImage) ResetPressure() { a.cache.ResetPressure() }

// OnMemoryPressure forces the cache window down to a single frame.
func (a *AnimatedImage) OnMemoryPressure() { a.cache.OnMemoryPressure() }

// Size returns the image's pixel dimensions.
func (a *AnimatedImage) Size() image.Rectangle { return a.bounds }

// Kind reports which decoder produced this image.
func (a *AnimatedImage) Kind() Kind { return a.kind }

// Stats returns the underlying cache's observational counters.
func (a *AnimatedImage) Stats() frame.Stats { return a.cache.Stats() }

// CapacityCurrent returns the cache's current prefetch window size.
func (a *AnimatedImage) CapacityCurrent() int { return a.cache.CapacityCurrent() }

// PredrawSlowdownFactor reports the host's observed decode-latency
// multiplier; always >= 1.0.
func (a *AnimatedImage) PredrawSlowdownFactor() float64 { return a.cache.PredrawSlowdownFactor() }

// Close releases the decode worker and the underlying container's
// resources (cgo handles, for WebP).
func (a *AnimatedImage) Close() error {
	err := a.cache.Close()
	if serr := a.src.Close(); err == nil {
		err = serr
	}
	return err
}
