package perf

import (
	"log"
	"sync"
	"time"
)

// slowdownTier classifies how far decode latency has drifted from the
// fast-path baseline. Unlike the teacher's frame skipper, which used this
// classification to decide which frames to drop, PredrawMonitor only
// reports it: per §9, debug instrumentation must never influence cache or
// timing decisions.
type slowdownTier int

const (
	tierFast slowdownTier = iota
	tierSlow
	tierVerySlow
)

// PredrawMonitor watches decode latency and derives a clamped slowdown
// factor for debug.Delegate.PredrawingSlowdownFactor. It is read-only
// instrumentation: internal/cache feeds it decode timings and reports its
// factor, but nothing in internal/cache or internal/playback bases a
// decision on it.
type PredrawMonitor struct {
	tier            slowdownTier
	consecutiveSlow int
	consecutiveGood int

	slowThreshold time.Duration
	goodThreshold time.Duration

	enterSlowAfter     int
	enterVerySlowAfter int
	exitToFastAfter    int
	exitToSlowAfter    int

	mu sync.RWMutex
}

// NewPredrawMonitor creates a monitor with sensible default thresholds for
// a 60Hz display tick (≈16.7ms per-frame budget).
func NewPredrawMonitor() *PredrawMonitor {
	return &PredrawMonitor{
		slowThreshold:      30 * time.Millisecond,
		goodThreshold:      10 * time.Millisecond,
		enterSlowAfter:     3,
		enterVerySlowAfter: 5,
		exitToFastAfter:    60,
		exitToSlowAfter:    30,
	}
}

// Observe records one decode duration and updates the internal tier.
func (p *PredrawMonitor) Observe(decodeTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case decodeTime > p.slowThreshold:
		p.consecutiveSlow++
		p.consecutiveGood = 0
	case decodeTime < p.goodThreshold:
		p.consecutiveGood++
		p.consecutiveSlow = 0
	default:
		p.consecutiveSlow = 0
		p.consecutiveGood = 0
	}

	switch p.tier {
	case tierFast:
		if p.consecutiveSlow >= p.enterSlowAfter {
			p.tier = tierSlow
			p.consecutiveSlow = 0
			log.Printf("perf: decode latency degrading, predraw slowdown factor rising")
		}
	case tierSlow:
		if p.consecutiveSlow >= p.enterVerySlowAfter {
			p.tier = tierVerySlow
			p.consecutiveSlow = 0
			log.Printf("perf: decode latency still degrading")
		} else if p.consecutiveGood >= p.exitToFastAfter {
			p.tier = tierFast
			p.consecutiveGood = 0
		}
	case tierVerySlow:
		if p.consecutiveGood >= p.exitToSlowAfter {
			p.tier = tierSlow
			p.consecutiveGood = 0
		}
	}
}

// SlowdownFactor returns the current artificial-slowdown-equivalent factor,
// always >= 1.0 as required by §9.
func (p *PredrawMonitor) SlowdownFactor() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch p.tier {
	case tierSlow:
		return 2.0
	case tierVerySlow:
		return 4.0
	default:
		return 1.0
	}
}

// Reset returns the monitor to its fast baseline.
func (p *PredrawMonitor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tier = tierFast
	p.consecutiveSlow = 0
	p.consecutiveGood = 0
}
