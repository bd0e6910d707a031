// Package field provides the ambient resonance field: smooth coherent noise
// over (cycle, position) that modulates population-wide pressure events.
package field

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Resonance range.
const (
	Min = 0.5
	Max = 1.5
)

// Config controls the noise shape.
type Config struct {
	Seed        int64
	Octaves     int
	Frequency   float64 // base frequency per cycle step
	Persistence float64
}

// DefaultConfig returns a gently varying field.
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:        seed,
		Octaves:     3,
		Frequency:   0.08,
		Persistence: 0.5,
	}
}

// Resonance samples coherent noise. Neighbouring cycles and positions get
// similar values.
type Resonance struct {
	cfg   Config
	noise opensimplex.Noise
}

// New creates a resonance field.
func New(cfg Config) *Resonance {
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	return &Resonance{cfg: cfg, noise: opensimplex.NewNormalized(cfg.Seed)}
}

// At returns the resonance at cycle and position, in [Min, Max].
func (r *Resonance) At(cycle uint64, position int) float64 {
	v := octaveNoise(r.noise, float64(cycle), float64(position), r.cfg.Octaves, r.cfg.Frequency, r.cfg.Persistence)
	v = Min + v*(Max-Min)
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// Row samples n consecutive positions at cycle.
func (r *Resonance) Row(cycle uint64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.At(cycle, i)
	}
	return out
}

// octaveNoise sums octaves of normalized noise and renormalizes to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
