package cache

import "animaframe/internal/perf"

// Budget holds the memory-tier thresholds the window-sizing policy (§4.B)
// is evaluated against. Grounded on five82-reel's CapWorkers/
// memoryPerWorker pattern: a byte budget for the unit of work (there, an
// encode worker; here, one decoded frame) scaled against a fraction of
// available memory, rather than a single hardcoded constant.
type Budget struct {
	// SmallBudget is the total-resident-bytes ceiling below which the
	// cache keeps every frame resident (the Low tier).
	SmallBudget uint64
	// LargeBudget is the ceiling above which the cache drops to a
	// just-in-time window of 1 (the High tier). Between SmallBudget and
	// LargeBudget sits the Mid tier.
	LargeBudget uint64
	// MidDefault is the window size used in the Mid tier.
	MidDefault int
	// MemoryFraction is the fraction of currently available host memory
	// the cache is willing to consider "budget" for this image, mirroring
	// five82-reel's MemoryFraction (0.7) headroom policy.
	MemoryFraction float64
}

// DefaultBudget matches the teacher corpus's conservative defaults: small
// animations (≤8MB of decoded frames) cache completely, large ones
// (>64MB) drop to one frame at a time, and anything in between keeps a
// five-frame rolling window.
func DefaultBudget() Budget {
	return Budget{
		SmallBudget:    8 << 20,
		LargeBudget:    64 << 20,
		MidDefault:     5,
		MemoryFraction: 0.7,
	}
}

// Tier is the memory-pressure classification for an image's total decoded
// footprint.
type Tier int

const (
	TierLow Tier = iota
	TierMid
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// classify picks the tier for an image of frameCount frames at frameBytes
// each, against b, further downgrading to High whenever the host itself
// signals memory pressure (§4.B: "memory-pressure events downgrade the
// window immediately").
func classify(b Budget, frameCount int, frameBytes uint64, pressured bool) Tier {
	if pressured {
		return TierHigh
	}

	total := frameBytes * uint64(frameCount)

	// Scale the configured budgets down if the host is currently short on
	// memory, the same 0.7-of-available headroom five82-reel applies to
	// its worker count.
	if available := perf.AvailableMemoryMB() * (1 << 20); available > 0 {
		usable := uint64(float64(available) * b.MemoryFraction)
		if usable < b.LargeBudget {
			// Host doesn't have enough headroom to honor the configured
			// LargeBudget; shrink the tier thresholds proportionally
			// rather than ignoring host pressure entirely.
			scaledSmall := b.SmallBudget
			if scaledSmall > usable {
				scaledSmall = usable / 8
			}
			switch {
			case total <= scaledSmall:
				return TierLow
			case total <= usable:
				return TierMid
			default:
				return TierHigh
			}
		}
	}

	switch {
	case total <= b.SmallBudget:
		return TierLow
	case total <= b.LargeBudget:
		return TierMid
	default:
		return TierHigh
	}
}

// windowFor computes the default cache window for a tier, before
// capacityMax and frameCount clamp it (§4.B: "capacity_current = min(tier
// choice, capacity_max if > 0 else ∞, frame_count)").
func windowFor(b Budget, tier Tier, frameCount int) int {
	switch tier {
	case TierLow:
		return frameCount
	case TierMid:
		return b.MidDefault
	default:
		return 1
	}
}
