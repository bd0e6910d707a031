package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

// Drift scan thresholds.
const (
	DriftThreshold        = 0.35 // soft threshold for emergent drift
	HollowThreshold       = 0.50
	CoherenceMin          = 0.50
	MaxQuarantinePerCycle = 20
)

// Quarantine reasons recorded on the entity.
const (
	ReasonEmergent = "Emergent Drift"
	ReasonHollow   = "Hollow Echo"
)

// AlertLevel tags a drift alert.
type AlertLevel string

const (
	LevelEmergent AlertLevel = "emergent"
	LevelHollow   AlertLevel = "hollow"
)

// Alert is emitted for every quarantine performed by a scan.
type Alert struct {
	Event     string     `json:"event"`
	EntityID  string     `json:"entity_id"`
	Level     AlertLevel `json:"level"`
	Drift     float64    `json:"drift"`
	Coherence float64    `json:"coherence"`
	Timestamp time.Time  `json:"timestamp"`
}

// Ledger tracks the ids a scanner has quarantined. It lives as long as its
// owner and is only emptied by Clear or Remove. The scanner never removes
// ids itself; Remove is the external clear path, used by the Healer when an
// entity returns to active.
type Ledger struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{ids: make(map[string]time.Time)}
}

// Add records id. Returns false if it was already present.
func (l *Ledger) Add(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return false
	}
	l.ids[id] = time.Now()
	return true
}

// Has reports whether id is tracked.
func (l *Ledger) Has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}

// Remove stops tracking id.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ids, id)
}

// Clear forgets every id.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = make(map[string]time.Time)
}

// Len returns the number of tracked ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// IDs returns the tracked ids in sorted order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DriftScanner proposes new drift levels for a population and quarantines
// entities that cross the policy thresholds.
type DriftScanner struct {
	Ledger *Ledger
	Rng    entropy.Source
	// MaxPerCycle caps quarantines per Scan. Zero means MaxQuarantinePerCycle.
	MaxPerCycle int
}

// NewDriftScanner creates a scanner with its own ledger.
func NewDriftScanner(rng entropy.Source) *DriftScanner {
	return &DriftScanner{
		Ledger:      NewLedger(),
		Rng:         rng,
		MaxPerCycle: MaxQuarantinePerCycle,
	}
}

// ProposeDrift draws a drift delta in [0.05, 0.25], biased upward for
// entities carrying symbolic density.
func (d *DriftScanner) ProposeDrift(e *entity.Entity) float64 {
	base := entropy.Uniform(d.Rng, 0.05, 0.25)
	if sd := e.Stats.SD; sd > 0 {
		base += math.Min(0.5, 0.3*math.Exp(math.Min(sd/6000, 1.5)-1))
	}
	return base
}

// Coherence scores internal consistency. Essence raises it, drift lowers it.
func (d *DriftScanner) Coherence(e *entity.Entity) float64 {
	base := entropy.Uniform(d.Rng, 0.3, 1.0)
	c := base * (0.8 + e.Stats.ESS) / (1 + e.Drift())
	return round3(math.Min(1, c))
}

// Scan updates every entity's drift and applies the quarantine policy to
// active ones. It stops once the per-cycle cap is reached.
func (d *DriftScanner) Scan(entities []*entity.Entity) []Alert {
	limit := d.MaxPerCycle
	if limit <= 0 {
		limit = MaxQuarantinePerCycle
	}

	var alerts []Alert
	for _, e := range entities {
		if len(alerts) >= limit {
			slog.Warn("quarantine cap reached, scan stopped", "cap", limit)
			break
		}

		proposed := d.ProposeDrift(e)
		coherence := d.Coherence(e)
		e.SetDrift(round3((e.Drift() + proposed) / 2))

		if e.Status() != entity.StatusActive || d.Ledger.Has(e.ID()) {
			continue
		}

		reason, level, ok := classify(e.Drift(), coherence)
		if !ok {
			continue
		}
		if !e.Quarantine(reason) {
			continue
		}
		d.Ledger.Add(e.ID())

		alerts = append(alerts, Alert{
			Event:     "drift_alert",
			EntityID:  e.ID(),
			Level:     level,
			Drift:     e.Drift(),
			Coherence: coherence,
			Timestamp: time.Now(),
		})
		slog.Info("drift alert",
			"entity", e.ID(),
			"level", level,
			"drift", fmt.Sprintf("%.3f", e.Drift()),
			"coherence", fmt.Sprintf("%.3f", coherence),
		)
	}
	return alerts
}

func classify(drift, coherence float64) (string, AlertLevel, bool) {
	switch {
	case drift >= DriftThreshold && coherence >= CoherenceMin:
		return ReasonEmergent, LevelEmergent, true
	case drift >= HollowThreshold || coherence < CoherenceMin:
		return ReasonHollow, LevelHollow, true
	}
	return "", "", false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
