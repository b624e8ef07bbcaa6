package playback

import (
	"sync/atomic"
	"time"
)

// tickAdapter decouples a TickSource's lifetime from the Engine it drives
// (§4.E, §9). The original Objective-C design needed a weak-forwarding
// proxy because its display-link timer retained its target, and the
// engine retained the timer, forming a retain cycle neither side could
// break on its own. Go's garbage collector already reclaims cycles of
// ordinary pointers, so nothing here exists to avoid a memory leak.
//
// What the adapter still buys: deterministic shutdown ordering. Without
// it, a tick firing concurrently with Engine teardown could observe a
// half-torn-down Engine. tickAdapter holds a plain (non-weak) pointer back
// to the engine, but Stop() — always called from the owner's teardown path
// before the engine itself is released — flips stopped, and every tick
// checks it first. This is design-note alternative (b) from §9: "the
// engine owns a tick-source adapter and the adapter holds a weak
// back-pointer" translated to Go's happens-before guarantees instead of a
// literal weak reference.
type tickAdapter struct {
	engine  *Engine
	stopped atomic.Bool
}

func newTickAdapter(e *Engine) *tickAdapter {
	return &tickAdapter{engine: e}
}

func (a *tickAdapter) onTick(now time.Time) {
	if a.stopped.Load() {
		return
	}
	a.engine.tick(now)
}

func (a *tickAdapter) Stop() {
	a.stopped.Store(true)
}
