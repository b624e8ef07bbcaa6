package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDelay(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want float64
	}{
		{"zero", 0.0, DefaultDelaySeconds},
		{"just under threshold", 0.019, DefaultDelaySeconds},
		{"exactly threshold", 0.02, 0.02},
		{"just over threshold", 0.021, 0.021},
		{"comfortably above", 0.099, 0.099},
		{"well above", 0.1, 0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDelay(tc.raw))
		})
	}
}
