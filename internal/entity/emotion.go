package entity

import (
	"math"

	"github.com/talgya/echoworld/internal/entropy"
)

// Emotion channel names.
const (
	Serotonin      = "serotonin"      // mood, well-being
	Oxytocin       = "oxytocin"       // bonding, trust
	Dopamine       = "dopamine"       // reward, motivation
	Endorphin      = "endorphin"      // pleasure, pain relief
	Norepinephrine = "norepinephrine" // alertness, arousal
	Acetylcholine  = "acetylcholine"  // attention, learning
	Glutamate      = "glutamate"      // excitation, memory
	GABA           = "GABA"           // inhibition, calm
	Vasopressin    = "vasopressin"    // territoriality, aggression
	Cortisol       = "cortisol"       // stress, vigilance
)

// Channels is the closed set of emotion channels, in canonical order.
var Channels = []string{
	Serotonin, Oxytocin, Dopamine, Endorphin, Norepinephrine,
	Acetylcholine, Glutamate, GABA, Vasopressin, Cortisol,
}

const (
	EmotionMin    = 0.0
	EmotionMax    = 1.5
	emotionJitter = 0.05
)

// driftSensitivity is the per-unit-drift shift applied on each mutation.
// Channels not listed are unaffected by drift.
var driftSensitivity = map[string]float64{
	Serotonin: -0.02,
	Dopamine:  0.015,
	Cortisol:  0.025,
	GABA:      -0.015,
	Glutamate: 0.02,
}

// EmotionState is a bounded vector of affect levels.
type EmotionState struct {
	Levels map[string]float64 `json:"levels"`
}

// NewEmotionState returns the baseline levels: 1.0 everywhere, cortisol 0.5.
func NewEmotionState() *EmotionState {
	levels := make(map[string]float64, len(Channels))
	for _, ch := range Channels {
		levels[ch] = 1.0
	}
	levels[Cortisol] = 0.5
	return &EmotionState{Levels: levels}
}

// Mutate applies random jitter plus drift sensitivity to every channel.
func (s *EmotionState) Mutate(rng entropy.Source, driftFactor float64) {
	for _, ch := range Channels {
		jitter := entropy.Uniform(rng, -emotionJitter, emotionJitter)
		s.Levels[ch] = clamp(s.Levels[ch]+jitter+driftSensitivity[ch]*driftFactor, EmotionMin, EmotionMax)
	}
}

// Set assigns a bounded value. Unknown channels are ignored.
func (s *EmotionState) Set(channel string, v float64) {
	if _, ok := s.Levels[channel]; !ok {
		return
	}
	s.Levels[channel] = clamp(v, EmotionMin, EmotionMax)
}

// Get returns the channel level, or 0 for unknown channels.
func (s *EmotionState) Get(channel string) float64 {
	return s.Levels[channel]
}

// Summary returns the levels rounded to two decimals.
func (s *EmotionState) Summary() map[string]float64 {
	out := make(map[string]float64, len(s.Levels))
	for k, v := range s.Levels {
		out[k] = math.Round(v*100) / 100
	}
	return out
}
