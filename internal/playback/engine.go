// Package playback implements the display-synchronous state machine that
// advances a cursor through an animated image's frame sequence at its
// native per-frame delays, tolerating jitter and cache misses (§4.D).
package playback

import (
	"sync"
	"time"

	"animaframe/internal/debug"
	"animaframe/internal/frame"
)

// InfiniteLoops is the sentinel passed to loop-completion callbacks in
// place of an unrepresentable infinite remaining-loop count.
const InfiniteLoops = -1

// Image is everything the playback engine needs from an animated image:
// its descriptor fields and a cache lookup. internal/image's AnimatedImage
// satisfies this structurally; the interface lives here (not alongside
// the concrete type) so playback never imports the cache/image packages.
type Image interface {
	PosterImage() frame.Image
	PosterIndex() int
	FrameCount() int
	LoopCount() int // 0 means infinite
	Delay(index int) time.Duration
	ImageAt(index int) (frame.Image, bool)
	// ResetPressure clears any memory-pressure downgrade on the
	// underlying cache. Called at loop boundaries (§4.B, §5).
	ResetPressure()
}

type state int

const (
	statePaused state = iota
	statePlaying
	stateWaiting
	stateFinished
)

// Engine drives current_frame_index through an Image's sequence using
// display-refresh ticks (§4.D). All playback-state mutation happens on
// whatever goroutine delivers ticks; Play/Pause/SetImage may be called
// from other goroutines and are serialized with the tick path by mu.
type Engine struct {
	mu sync.Mutex

	image Image

	currentIndex int
	currentFrame frame.Image

	accumulator    float64
	loopsRemaining int // -1 == infinite
	playbackRate   float64
	st             state

	waitStart time.Time
	lastTick  time.Time

	loopFn   func(remaining int)
	delegate debug.Delegate

	tickSrc TickSource
	adapter *tickAdapter
}

// New creates an Engine for img, driven by tickSrc. The cursor starts at
// img's poster index with current_frame set to the poster image, exactly
// as if an image had just been assigned (§4.D).
func New(img Image, tickSrc TickSource) *Engine {
	e := &Engine{
		playbackRate: 1.0,
		delegate:     debug.Nop{},
		tickSrc:      tickSrc,
	}
	e.SetImage(img)
	e.adapter = newTickAdapter(e)
	return e
}

// SetDelegate attaches a debug observer.
func (e *Engine) SetDelegate(d debug.Delegate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delegate = d
}

// SetLoopCompletionFunc registers the callback invoked when a loop
// finishes. remaining is InfiniteLoops when loop_count is 0.
func (e *Engine) SetLoopCompletionFunc(fn func(remaining int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loopFn = fn
}

// SetImage replaces the driven image: any assignment resets the cursor to
// poster_image_index and sets current_frame to the poster image (§4.D).
func (e *Engine) SetImage(img Image) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.image = img
	e.currentIndex = img.PosterIndex()
	e.currentFrame = img.PosterImage()
	e.accumulator = 0
	e.st = statePaused

	if img.LoopCount() == 0 {
		e.loopsRemaining = InfiniteLoops
	} else {
		e.loopsRemaining = img.LoopCount()
	}
}

// Play starts the tick source. If the engine had already reached
// Finished, Play has no effect — looping is only ever restarted by
// assigning a new image.
func (e *Engine) Play() {
	e.mu.Lock()
	finished := e.st == stateFinished
	e.mu.Unlock()
	if finished {
		return
	}

	e.mu.Lock()
	e.st = statePlaying
	e.mu.Unlock()

	e.tickSrc.Start(e.adapter.onTick)
}

// Pause stops the tick source and marks the engine paused, so IsAnimating
// reports false. Detach also stops ticks but leaves the playback state
// unchanged (§4.D).
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.st == statePlaying || e.st == stateWaiting {
		e.st = statePaused
	}
	e.mu.Unlock()
	e.tickSrc.Stop()
}

// Detach stops ticks the way an external lifecycle event (the display
// surface going away) does, preserving the cursor so Reattach can resume
// without a jump (§4.D "Cancellation / teardown").
func (e *Engine) Detach() {
	e.tickSrc.Stop()
}

// Reattach resumes ticking with the preserved cursor. accumulator is
// reset to zero so the resume does not burst-advance frames to cover the
// time spent detached.
func (e *Engine) Reattach() {
	e.mu.Lock()
	e.accumulator = 0
	e.lastTick = time.Time{}
	if e.st != stateFinished {
		e.st = statePlaying
	}
	e.mu.Unlock()
	e.tickSrc.Start(e.adapter.onTick)
}

// Close tears the engine down: it stops the tick source and flips the
// tick adapter's stopped flag first, so a tick racing with teardown
// observes the flag rather than reaching into a half-destroyed Engine
// (§4.E, §9). Call this once, when the owner is discarding the engine
// for good, not for an ordinary Pause/Detach.
func (e *Engine) Close() {
	e.adapter.Stop()
	e.tickSrc.Stop()
}

// IsAnimating reports whether the tick source is currently expected to be
// driving the cursor forward.
func (e *Engine) IsAnimating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == statePlaying || e.st == stateWaiting
}

// CurrentFrame returns the most recently advanced-to frame image.
func (e *Engine) CurrentFrame() frame.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentFrame
}

// CurrentFrameIndex returns the cursor's current position.
func (e *Engine) CurrentFrameIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// SetPlaybackRate scales how fast wall-clock ticks accumulate playback
// time. Matches the teacher's mpeg.Player.SetPlaybackRate: non-positive
// rates are silently ignored rather than erroring (§4.D.1).
func (e *Engine) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	e.mu.Lock()
	e.playbackRate = rate
	e.mu.Unlock()
}

// tick implements the per-tick state machine from §4.D. It is called by
// the tick adapter with the tick's timestamp; dt is derived from the time
// since the previous tick.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st == stateFinished || e.st == statePaused {
		return
	}

	dt := e.consumeDelta(now)
	e.accumulator += dt * e.playbackRate

	d := e.image.Delay(e.currentIndex)

	for e.accumulator >= d.Seconds() {
		nextIndex := (e.currentIndex + 1) % e.image.FrameCount()

		if nextIndex == e.image.PosterIndex() {
			if e.loopsRemaining != InfiniteLoops {
				e.loopsRemaining--
				if e.loopFn != nil {
					e.loopFn(e.loopsRemaining)
				}
				if e.loopsRemaining <= 0 {
					e.st = stateFinished
					e.tickSrc.Stop()
					return
				}
			} else if e.loopFn != nil {
				e.loopFn(InfiniteLoops)
			}
			e.image.ResetPressure()
		}

		img, ok := e.image.ImageAt(nextIndex)
		if !ok {
			if e.st != stateWaiting {
				e.waitStart = now
			}
			e.st = stateWaiting
			// Clamp the accumulator so a miss that resolves several
			// ticks later does not burst-advance multiple frames once
			// it does (§4.D "Waiting state").
			if e.accumulator > d.Seconds() {
				e.accumulator = d.Seconds()
			}
			e.delegate.WaitingForFrame(nextIndex, now.Sub(e.waitStart))
			return
		}

		e.currentIndex = nextIndex
		e.currentFrame = img
		e.accumulator -= d.Seconds()
		d = e.image.Delay(e.currentIndex)
		e.st = statePlaying
		e.waitStart = time.Time{}
	}
}

// consumeDelta returns the wall-clock delta since the previous tick,
// tracked per-Engine so concurrent engines under test don't share state.
func (e *Engine) consumeDelta(now time.Time) float64 {
	if e.lastTick.IsZero() {
		e.lastTick = now
		return 0
	}
	dt := now.Sub(e.lastTick).Seconds()
	e.lastTick = now
	if dt < 0 {
		dt = 0
	}
	return dt
}
