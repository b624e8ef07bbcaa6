package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_PickesTierBySize(t *testing.T) {
	b := DefaultBudget()

	assert.Equal(t, TierLow, classify(b, 10, 1<<10, false))
	assert.Equal(t, TierMid, classify(b, 10, 2<<20, false))
	assert.Equal(t, TierHigh, classify(b, 10, 10<<20, false))
}

func TestClassify_PressureForcesHighRegardlessOfSize(t *testing.T) {
	b := DefaultBudget()
	assert.Equal(t, TierHigh, classify(b, 10, 1<<10, true))
}

func TestWindowFor_MatchesTierDefaults(t *testing.T) {
	b := DefaultBudget()

	assert.Equal(t, 100, windowFor(b, TierLow, 100))
	assert.Equal(t, b.MidDefault, windowFor(b, TierMid, 100))
	assert.Equal(t, 1, windowFor(b, TierHigh, 100))
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "low", TierLow.String())
	assert.Equal(t, "mid", TierMid.String())
	assert.Equal(t, "high", TierHigh.String())
}
