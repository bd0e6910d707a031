package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// worseningWindow is how many consecutive records with rising quarantines
// escalate the health level.
const worseningWindow = 3

// Warden runs observe → decide → act cycles against one API.
type Warden struct {
	Observer   *Observer
	Actor      *Actor
	Memory     *CycleMemory
	MemoryPath string // empty = memory is not persisted
	MaxActions int
}

// New creates a warden for the API at baseURL.
func New(baseURL, adminKey, memoryPath string, maxActions int) *Warden {
	mem := &CycleMemory{}
	if memoryPath != "" {
		mem = LoadMemory(memoryPath)
	}
	return &Warden{
		Observer:   NewObserver(baseURL),
		Actor:      NewActor(baseURL, adminKey),
		Memory:     mem,
		MemoryPath: memoryPath,
		MaxActions: maxActions,
	}
}

// Tend executes one observe → decide → act cycle. Failed rituals are logged
// and counted; only a failed observation returns an error.
func (w *Warden) Tend(ctx context.Context) (CycleRecord, error) {
	snap, err := w.Observer.Observe(ctx)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("observe: %w", err)
	}

	h := Triage(snap)
	if !h.Severe() && w.Memory.Worsening(worseningWindow) {
		h.Level = LevelWarning
	}
	slog.Info("observation complete",
		"cycle", snap.Status.Cycle,
		"population", snap.Status.Population,
		"quarantined", snap.Status.Quarantined,
		"avg_drift", fmt.Sprintf("%.3f", h.AvgDrift),
		"level", h.Level,
	)

	rec := CycleRecord{
		Cycle:       snap.Status.Cycle,
		At:          time.Now().UTC(),
		Level:       h.Level,
		AvgDrift:    h.AvgDrift,
		Quarantined: snap.Status.Quarantined,
		Planned:     Decide(snap, h, w.MaxActions),
	}

	for _, act := range rec.Planned {
		res, err := w.Actor.Perform(ctx, act)
		if err != nil {
			rec.Failed++
			slog.Error("ritual failed", "entity", act.EntityID, "ritual", act.Ritual, "error", err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}
		if res.OK {
			rec.Performed++
		}
		slog.Info("ritual performed",
			"entity", act.EntityID,
			"ritual", act.Ritual,
			"ok", res.OK,
			"status", res.Status,
			"drift", fmt.Sprintf("%.3f", res.Drift),
		)
	}

	w.Memory.Record(rec)
	if w.MemoryPath != "" {
		if err := w.Memory.Save(w.MemoryPath); err != nil {
			slog.Error("warden memory save failed", "error", err)
		}
	}
	return rec, nil
}

// Run tends once immediately and then every interval until ctx is done.
func (w *Warden) Run(ctx context.Context, interval time.Duration) {
	w.tendLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tendLogged(ctx)
		}
	}
}

func (w *Warden) tendLogged(ctx context.Context) {
	if _, err := w.Tend(ctx); err != nil {
		slog.Error("tend cycle failed", "error", err)
	}
}

// WaitForAPI polls the status endpoint with exponential backoff until it
// responds, ctx is done or maxWait elapses.
func (w *Warden) WaitForAPI(ctx context.Context, maxWait time.Duration) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(maxWait)

	for {
		if w.Observer.Ready(ctx) {
			slog.Info("echoworld API is ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("API at %s not ready after %s", w.Observer.BaseURL, maxWait)
		}
		slog.Info("API not ready, retrying...", "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
