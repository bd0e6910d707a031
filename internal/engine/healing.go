package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

// Ritual constants.
const (
	RestoreBelow      = 0.2 // healing echo promotes to active below this drift
	ReweaveMinDrift   = 0.5
	ResidualScar      = 0.2 // drift left behind by a reweaving
	DefaultReleaseAge = 5   // quarantine cycles before a calm entity is released
)

// ErrUnknownRitual is returned by Perform for an unrecognized ritual name.
var ErrUnknownRitual = errors.New("unknown ritual")

// Ritual names accepted by Healer.Perform.
const (
	RitualHealingEcho = "healing_echo"
	RitualReweave     = "reweave"
	RitualRelease     = "release"
)

// Healer performs the healing rituals. When Ledger is set, entities that
// return to active are dropped from it so a later scan may quarantine them
// again.
type Healer struct {
	Rng    entropy.Source
	Items  entity.ItemGenerator
	Ledger *Ledger
	// ReleaseAfter is how many cycles a quarantined entity below the hollow
	// threshold waits before being released. Zero disables release.
	ReleaseAfter int
}

// NewHealer creates a healer sharing the scanner's ledger.
func NewHealer(rng entropy.Source, items entity.ItemGenerator, ledger *Ledger) *Healer {
	return &Healer{Rng: rng, Items: items, Ledger: ledger, ReleaseAfter: DefaultReleaseAge}
}

// HealingEcho soothes a reintegrated entity. It resets the memory baseline,
// lowers drift by a random bonus and promotes the entity to active once drift
// falls below RestoreBelow. Returns false unless the entity is reintegrated.
func (h *Healer) HealingEcho(e *entity.Entity) bool {
	if e.Status() != entity.StatusReintegrated {
		slog.Debug("healing echo refused", "entity", e.ID(), "status", e.Status())
		return false
	}

	bonus := entropy.Uniform(h.Rng, 0.05, 0.15)
	before := e.Drift()
	e.ResetBaseline()
	e.SetDrift(before - bonus)

	if e.Drift() < RestoreBelow && e.Restore() {
		h.forget(e)
	}

	item := h.Items.Generate("Echo Salve", entity.RarityUncommon, "healing_ritual")
	e.GainItem(item)
	e.Metadata.HealingHistory = append(e.Metadata.HealingHistory, entity.HealingRecord{
		Timestamp:   time.Now(),
		DriftBefore: before,
		DriftAfter:  e.Drift(),
		Item:        item.Name,
	})

	slog.Info("healing echo",
		"entity", e.ID(),
		"drift_before", fmt.Sprintf("%.3f", before),
		"drift_after", fmt.Sprintf("%.3f", e.Drift()),
		"status", e.Status(),
	)
	return true
}

// Reweave repairs a deeply drifted quarantined entity, leaving it
// reintegrated with a fixed residual drift. Returns false unless the entity
// is quarantined with drift at or above ReweaveMinDrift.
func (h *Healer) Reweave(e *entity.Entity) bool {
	if e.Status() != entity.StatusQuarantined || e.Drift() < ReweaveMinDrift {
		return false
	}

	e.ResetBaseline()
	e.SetDrift(ResidualScar)
	e.MarkReintegrated()

	item := h.Items.Generate("Weave Fragment", entity.RarityRare, "reweaving_ritual")
	e.GainItem(item)
	e.Metadata.ReweavingLog = append(e.Metadata.ReweavingLog, entity.ReweavingRecord{
		Timestamp: time.Now(),
		Item:      item.Name,
	})

	slog.Info("reweaving ritual", "entity", e.ID(), "item", item.Name)
	return true
}

// Release returns a quarantined entity straight to active.
func (h *Healer) Release(e *entity.Entity) bool {
	if !e.Release() {
		return false
	}
	h.forget(e)
	slog.Info("entity released", "entity", e.ID(), "drift", fmt.Sprintf("%.3f", e.Drift()))
	return true
}

// Perform runs the named ritual on e.
func (h *Healer) Perform(ritual string, e *entity.Entity) (bool, error) {
	switch ritual {
	case RitualHealingEcho:
		return h.HealingEcho(e), nil
	case RitualReweave:
		return h.Reweave(e), nil
	case RitualRelease:
		return h.Release(e), nil
	}
	return false, fmt.Errorf("%q: %w", ritual, ErrUnknownRitual)
}

// HealReport lists the entity ids touched by one healing cycle.
type HealReport struct {
	Rewoven  []string `json:"rewoven,omitempty"`
	Echoed   []string `json:"echoed,omitempty"`
	Restored []string `json:"restored,omitempty"`
	Released []string `json:"released,omitempty"`
}

// Total returns the number of rituals performed.
func (r HealReport) Total() int {
	return len(r.Rewoven) + len(r.Echoed) + len(r.Released)
}

// Cycle runs one round of rituals over the population: reweaving for deeply
// drifted quarantined entities, release for calm ones that have waited long
// enough, and a healing echo for every reintegrated entity.
func (h *Healer) Cycle(entities []*entity.Entity) HealReport {
	var rep HealReport
	for _, e := range entities {
		switch e.Status() {
		case entity.StatusQuarantined:
			e.Metadata.QuarantineCycles++
			if h.Reweave(e) {
				rep.Rewoven = append(rep.Rewoven, e.ID())
				continue
			}
			if h.ReleaseAfter > 0 && e.Metadata.QuarantineCycles >= h.ReleaseAfter &&
				e.Drift() < HollowThreshold && h.Release(e) {
				rep.Released = append(rep.Released, e.ID())
			}
		case entity.StatusReintegrated:
			if h.HealingEcho(e) {
				rep.Echoed = append(rep.Echoed, e.ID())
				if e.Status() == entity.StatusActive {
					rep.Restored = append(rep.Restored, e.ID())
				}
			}
		}
	}
	return rep
}

// forget clears e from the scanner's ledger once it is active again.
func (h *Healer) forget(e *entity.Entity) {
	if h.Ledger != nil {
		h.Ledger.Remove(e.ID())
	}
}
