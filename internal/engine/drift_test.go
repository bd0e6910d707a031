package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

func newEntity(drift float64, motifs ...string) *entity.Entity {
	e := entity.New("", entity.ArchMystic, "")
	for _, m := range motifs {
		e.Crystal.Embed(m)
	}
	e.SetDrift(drift)
	return e
}

func population(n int, drift, ess float64) []*entity.Entity {
	out := make([]*entity.Entity, n)
	for i := range out {
		out[i] = newEntity(drift)
		out[i].Stats.ESS = ess
	}
	return out
}

func TestScanCapStopsEarly(t *testing.T) {
	ents := population(25, 1.0, 0.5)
	d := NewDriftScanner(entropy.NewScripted(0.99))

	alerts := d.Scan(ents)

	require.Len(t, alerts, MaxQuarantinePerCycle)
	assert.Equal(t, MaxQuarantinePerCycle, d.Ledger.Len())
	for i, e := range ents {
		if i < MaxQuarantinePerCycle {
			assert.Equal(t, entity.StatusQuarantined, e.Status())
			assert.Equal(t, ReasonEmergent, e.Metadata.QuarantineReason)
			continue
		}
		assert.Equal(t, entity.StatusActive, e.Status(), "entity %d untouched", i)
		assert.Equal(t, 1.0, e.Drift(), "entity %d untouched", i)
	}
}

func TestScanPolicy(t *testing.T) {
	tests := []struct {
		name   string
		drift  float64
		ess    float64
		rand   float64
		want   entity.Status
		reason string
		level  AlertLevel
	}{
		{"emergent", 1.0, 0.5, 0.99, entity.StatusQuarantined, ReasonEmergent, LevelEmergent},
		{"hollow", 1.0, 0.0, 0.0, entity.StatusQuarantined, ReasonHollow, LevelHollow},
		{"calm", 0.0, 1.0, 0.5, entity.StatusActive, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := population(1, tt.drift, tt.ess)[0]
			alerts := NewDriftScanner(entropy.NewScripted(tt.rand)).Scan([]*entity.Entity{e})

			assert.Equal(t, tt.want, e.Status())
			assert.Equal(t, tt.reason, e.Metadata.QuarantineReason)
			if tt.level == "" {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, "drift_alert", alerts[0].Event)
			assert.Equal(t, e.ID(), alerts[0].EntityID)
			assert.Equal(t, tt.level, alerts[0].Level)
		})
	}
}

func TestScanSmoothsDrift(t *testing.T) {
	e := population(1, 0.0, 1.0)[0]
	NewDriftScanner(entropy.NewScripted(0.5)).Scan([]*entity.Entity{e})
	assert.Equal(t, 0.075, e.Drift())
}

func TestLedgerPreventsDoubleQuarantine(t *testing.T) {
	e := population(1, 1.0, 0.5)[0]
	d := NewDriftScanner(entropy.NewScripted(0.99))

	require.Len(t, d.Scan([]*entity.Entity{e}), 1)
	// Released outside the healer, so the ledger still tracks it.
	require.True(t, e.Release())
	e.SetDrift(1.0)

	assert.Empty(t, d.Scan([]*entity.Entity{e}))
	assert.Equal(t, entity.StatusActive, e.Status())
	assert.Equal(t, 1, d.Ledger.Len())

	d.Ledger.Clear()
	assert.Len(t, d.Scan([]*entity.Entity{e}), 1)
}

func TestLedgerAdd(t *testing.T) {
	l := NewLedger()
	assert.True(t, l.Add("b"))
	assert.False(t, l.Add("b"))
	assert.True(t, l.Add("a"))
	assert.Equal(t, []string{"a", "b"}, l.IDs())
	l.Remove("a")
	assert.False(t, l.Has("a"))
	assert.Equal(t, 1, l.Len())
}

func TestProposeDriftDensityBias(t *testing.T) {
	d := NewDriftScanner(entropy.NewScripted(0))
	e := newEntity(0)

	assert.InDelta(t, 0.05, d.ProposeDrift(e), 1e-9)

	e.Stats.SD = 6000
	assert.InDelta(t, 0.35, d.ProposeDrift(e), 1e-9)

	e.Stats.SD = 1e9
	assert.Less(t, d.ProposeDrift(e), 0.05+0.5+1e-9)
}

func TestCoherenceClamped(t *testing.T) {
	d := NewDriftScanner(entropy.NewScripted(1))
	e := newEntity(0)
	e.Stats.ESS = 5
	assert.Equal(t, 1.0, d.Coherence(e))
}
