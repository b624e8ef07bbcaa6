package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredrawMonitor_StartsAtBaseline(t *testing.T) {
	p := NewPredrawMonitor()
	assert.Equal(t, 1.0, p.SlowdownFactor())
}

func TestPredrawMonitor_EntersSlowTierAfterThreeSlowDecodes(t *testing.T) {
	p := NewPredrawMonitor()
	for i := 0; i < 3; i++ {
		p.Observe(40 * time.Millisecond)
	}
	assert.Equal(t, 2.0, p.SlowdownFactor())
}

func TestPredrawMonitor_EscalatesToVerySlowAfterFiveMoreSlowDecodes(t *testing.T) {
	p := NewPredrawMonitor()
	for i := 0; i < 3; i++ {
		p.Observe(40 * time.Millisecond)
	}
	require.Equal(t, 2.0, p.SlowdownFactor())

	for i := 0; i < 5; i++ {
		p.Observe(50 * time.Millisecond)
	}
	assert.Equal(t, 4.0, p.SlowdownFactor())
}

func TestPredrawMonitor_GoodDecodesEventuallyRecoverToFast(t *testing.T) {
	p := NewPredrawMonitor()
	for i := 0; i < 3; i++ {
		p.Observe(40 * time.Millisecond)
	}
	require.Equal(t, 2.0, p.SlowdownFactor())

	for i := 0; i < 60; i++ {
		p.Observe(1 * time.Millisecond)
	}
	assert.Equal(t, 1.0, p.SlowdownFactor())
}

func TestPredrawMonitor_MidRangeDecodeResetsSlowStreak(t *testing.T) {
	p := NewPredrawMonitor()
	p.Observe(40 * time.Millisecond)
	p.Observe(40 * time.Millisecond)
	// 20ms sits strictly between goodThreshold and slowThreshold, so it
	// resets the slow streak without counting as a good sample.
	p.Observe(20 * time.Millisecond)
	p.Observe(40 * time.Millisecond)
	p.Observe(40 * time.Millisecond)

	assert.Equal(t, 1.0, p.SlowdownFactor(), "the streak must restart after the mid-range sample broke it")
}

func TestPredrawMonitor_Reset(t *testing.T) {
	p := NewPredrawMonitor()
	for i := 0; i < 3; i++ {
		p.Observe(40 * time.Millisecond)
	}
	require.Equal(t, 2.0, p.SlowdownFactor())

	p.Reset()
	assert.Equal(t, 1.0, p.SlowdownFactor())
}
