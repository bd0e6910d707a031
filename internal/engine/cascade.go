package engine

import (
	"log/slog"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
	"github.com/talgya/echoworld/internal/field"
)

// MaxCascadeDepth bounds the passes of a single cascade.
const MaxCascadeDepth = 5

// CascadeShift records one entity's drift change.
type CascadeShift struct {
	EntityID string  `json:"entity_id"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
}

// Cascade pushes the whole population's drift upward. The push for each
// entity is scaled by the resonance field at its position.
type Cascade struct {
	Rng   entropy.Source
	Field *field.Resonance
}

// NewCascade creates a cascade driven by res.
func NewCascade(rng entropy.Source, res *field.Resonance) *Cascade {
	return &Cascade{Rng: rng, Field: res}
}

// Run applies depth passes, capped at MaxCascadeDepth. Quarantine decisions
// are left to the next drift scan.
func (c *Cascade) Run(entities []*entity.Entity, cycle uint64, depth int) []CascadeShift {
	if depth <= 0 {
		return nil
	}
	if depth > MaxCascadeDepth {
		slog.Warn("cascade depth capped", "requested", depth, "max", MaxCascadeDepth)
		depth = MaxCascadeDepth
	}

	var shifts []CascadeShift
	for pass := 0; pass < depth; pass++ {
		for i, e := range entities {
			scale := 1.0
			if c.Field != nil {
				scale = c.Field.At(cycle+uint64(pass), i)
			}
			from := e.Drift()
			e.SetDrift(round3(from + entropy.Uniform(c.Rng, 0.02, 0.12)*scale))
			shifts = append(shifts, CascadeShift{EntityID: e.ID(), From: from, To: e.Drift()})
		}
	}
	slog.Info("drift cascade", "cycle", cycle, "depth", depth, "entities", len(entities))
	return shifts
}
