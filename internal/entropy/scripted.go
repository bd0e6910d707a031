package entropy

import "sync"

// Scripted replays a fixed sequence of floats, cycling when exhausted.
// Intended for tests that need exact control over random draws.
type Scripted struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewScripted returns a Source that yields values in order. With no values it
// always yields 0.
func NewScripted(values ...float64) *Scripted {
	return &Scripted{values: values}
}

// Float64 implements Source.
func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Intn implements Source.
func (s *Scripted) Intn(n int) int {
	return intnFromFloat(s.Float64(), n)
}
