package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResonanceInRange(t *testing.T) {
	r := New(DefaultConfig(42))
	for cycle := uint64(0); cycle < 200; cycle += 7 {
		for pos := 0; pos < 50; pos++ {
			v := r.At(cycle, pos)
			require.GreaterOrEqual(t, v, Min)
			require.LessOrEqual(t, v, Max)
		}
	}
}

func TestResonanceDeterministic(t *testing.T) {
	a := New(DefaultConfig(7))
	b := New(DefaultConfig(7))
	assert.Equal(t, a.Row(13, 20), b.Row(13, 20))
}

func TestResonanceIsSmooth(t *testing.T) {
	r := New(DefaultConfig(3))
	for pos := 0; pos < 20; pos++ {
		step := math.Abs(r.At(100, pos) - r.At(101, pos))
		assert.Less(t, step, 0.5, "neighbouring cycles should be close")
	}
}

func TestZeroOctavesDefaults(t *testing.T) {
	r := New(Config{Seed: 1, Frequency: 0.1, Persistence: 0.5})
	v := r.At(5, 5)
	assert.GreaterOrEqual(t, v, Min)
	assert.LessOrEqual(t, v, Max)
}
