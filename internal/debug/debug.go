// Package debug defines the optional observer hooks the frame cache and
// playback engine call out to. Implementations must be side-effect free
// with respect to cache or timing decisions (§9) — they report, they never
// decide.
package debug

import (
	"log"
	"time"
)

// Delegate receives notifications about internal frame-cache and playback
// state. All methods are optional in spirit: Nop embeds a no-op
// implementation so callers only override what they need.
type Delegate interface {
	// DidUpdateCachedFrames is called after the cache's resident index set
	// changes (an insert or an eviction).
	DidUpdateCachedFrames(indexes []int)
	// DidRequestCachedFrame is called on every Get, hit or miss.
	DidRequestCachedFrame(index int)
	// PredrawingSlowdownFactor lets an implementation report (or
	// artificially impose, in tests) a decode-latency multiplier. Must be
	// clamped to >= 1.0 by the caller.
	PredrawingSlowdownFactor() float64
	// WaitingForFrame is called when the playback engine enters the
	// Waiting state because index was still a miss.
	WaitingForFrame(index int, waited time.Duration)
}

// Nop is a Delegate that does nothing and reports a slowdown factor of
// 1.0. Embed it to implement only the methods you care about.
type Nop struct{}

func (Nop) DidUpdateCachedFrames(indexes []int)             {}
func (Nop) DidRequestCachedFrame(index int)                 {}
func (Nop) PredrawingSlowdownFactor() float64               { return 1.0 }
func (Nop) WaitingForFrame(index int, waited time.Duration) {}

// Logger is a Delegate that writes each event to the standard logger, in
// the teacher's log.Printf style. Useful for the demo CLI's --debug flag.
type Logger struct {
	Nop
	Prefix string
}

func (l Logger) DidUpdateCachedFrames(indexes []int) {
	log.Printf("%scache: resident frames now %v", l.Prefix, indexes)
}

func (l Logger) DidRequestCachedFrame(index int) {
	log.Printf("%scache: requested frame %d", l.Prefix, index)
}

func (l Logger) WaitingForFrame(index int, waited time.Duration) {
	log.Printf("%splayback: waiting for frame %d (%s so far)", l.Prefix, index, waited)
}
