// Package engine provides the entity systems (drift scan, healing, fusion,
// quests, arena, cascade) and the cycle loop that drives them.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the simulation forward one cycle at a time.
type Engine struct {
	Cycle    uint64        // last completed cycle (monotonic)
	Speed    float64       // multiplier: 1.0 = real-time, 0 = paused; use SetSpeed once running
	Interval time.Duration // base cycle interval

	MaxCycles        uint64 // stop after this many cycles; 0 = unbounded
	AutoSaveInterval uint64 // cycles between OnSave calls; 0 disables

	OnCycle func(cycle uint64) // every cycle
	OnSave  func(cycle uint64) // every AutoSaveInterval cycles and on stop

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: time.Second,
		stop:     make(chan struct{}),
	}
}

// Run advances cycles until ctx is cancelled, Stop is called or MaxCycles is
// reached. A final OnSave runs before returning.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.stop == nil {
		e.stop = make(chan struct{})
	}
	stop := e.stop
	e.mu.Unlock()

	slog.Info("simulation engine started", "cycle", e.Cycle, "speed", e.CurrentSpeed(), "interval", e.Interval)
	defer func() {
		if e.OnSave != nil {
			e.OnSave(e.Cycle)
		}
		slog.Info("simulation engine stopped", "cycle", e.Cycle)
	}()

	var ran uint64
	for {
		if e.MaxCycles > 0 && ran >= e.MaxCycles {
			return
		}

		wait := 100 * time.Millisecond
		if speed := e.CurrentSpeed(); speed > 0 {
			start := time.Now()
			e.step()
			ran++
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		if wait <= 0 {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// SetSpeed changes the speed multiplier. Safe while Run is active.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Speed = speed
}

// CurrentSpeed returns the speed multiplier.
func (e *Engine) CurrentSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Speed
}

// Stop halts the loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop == nil {
		e.stop = make(chan struct{})
	}
	if !e.stopped {
		e.stopped = true
		close(e.stop)
	}
}

// step advances the simulation by one cycle.
func (e *Engine) step() {
	e.Cycle++

	if e.OnCycle != nil {
		e.OnCycle(e.Cycle)
	}

	if e.AutoSaveInterval > 0 && e.Cycle%e.AutoSaveInterval == 0 && e.OnSave != nil {
		e.OnSave(e.Cycle)
	}
}
