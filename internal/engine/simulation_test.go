package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
	"github.com/talgya/echoworld/internal/field"
)

func spawnSim(t *testing.T, n int, opts Options) *Simulation {
	t.Helper()
	rng := entropy.NewSeeded(17)
	opts.Rng = rng
	pop := entity.NewSpawner(rng).SpawnPopulation(n)
	require.Len(t, pop, n)
	return NewSimulation(pop, opts)
}

func TestRunCycleKeepsInvariants(t *testing.T) {
	sim := spawnSim(t, 30, Options{
		ArenaEncounters: 5,
		CascadeInterval: 4,
		Field:           field.New(field.DefaultConfig(17)),
	})

	for c := uint64(1); c <= 15; c++ {
		rep := sim.RunCycle(c)
		assert.Equal(t, c, rep.Cycle)
		assert.LessOrEqual(t, rep.Alerts, MaxQuarantinePerCycle)
		assert.LessOrEqual(t, len(rep.Fused), MaxFusionsPerCycle)
	}

	assert.Equal(t, uint64(15), sim.LastCycle())
	assert.Len(t, sim.Reports(), MaxReports)
	assert.Equal(t, uint64(6), sim.Reports()[0].Cycle)
	assert.LessOrEqual(t, len(sim.Events()), MaxEvents)

	stats := sim.Stats()
	assert.Equal(t, len(sim.Entities()), stats.Population)
	assert.Equal(t, stats.Population, stats.Active+stats.Quarantined+stats.Reintegrated)
	assert.Equal(t, 3, stats.Cascades)

	for _, e := range sim.Entities() {
		assert.GreaterOrEqual(t, e.Drift(), 0.0)
		assert.LessOrEqual(t, e.Drift(), 1.0)
		if e.Status() == entity.StatusActive {
			assert.False(t, sim.Scanner.Ledger.Has(e.ID()), "active %s still in ledger", e.ID())
		}
	}
}

func TestRunCycleFusesAndRetiresParents(t *testing.T) {
	a := newEntity(0, "echo", "veil", "glyph")
	b := newEntity(0, "echo", "veil", "glyph")
	for _, e := range []*entity.Entity{a, b} {
		e.Stats.ESS = 5 // coherence saturates, no quarantine
	}
	sim := NewSimulation([]*entity.Entity{a, b}, Options{
		Rng:           entropy.NewSeeded(1),
		RetireParents: true,
	})

	rep := sim.RunCycle(1)
	require.Len(t, rep.Fused, 1)

	ents := sim.Entities()
	require.Len(t, ents, 1)
	assert.Equal(t, entity.ArchMythicNexus, ents[0].Archetype)
	assert.Equal(t, rep.Fused[0], a.Metadata.MergedInto)
	assert.Equal(t, rep.Fused[0], b.Metadata.MergedInto)
	assert.Equal(t, 1, sim.Stats().Fusions)

	var fusions int
	for _, ev := range sim.Events() {
		if ev.Category == "fusion" {
			fusions++
		}
	}
	assert.Equal(t, 1, fusions)
}

func TestRunCycleKeepsParentsByDefault(t *testing.T) {
	a := newEntity(0, "echo", "veil", "glyph")
	b := newEntity(0, "echo", "veil", "glyph")
	a.Stats.ESS, b.Stats.ESS = 5, 5
	sim := NewSimulation([]*entity.Entity{a, b}, Options{Rng: entropy.NewSeeded(1)})

	sim.RunCycle(1)
	assert.Len(t, sim.Entities(), 3)
}

func TestMergedParentsDoNotFuseAgain(t *testing.T) {
	a := newEntity(0, "echo", "veil", "glyph")
	b := newEntity(0, "echo", "veil", "glyph")
	a.Stats.ESS, b.Stats.ESS = 5, 5
	sim := NewSimulation([]*entity.Entity{a, b}, Options{Rng: entropy.NewSeeded(1)})

	rep := sim.RunCycle(1)
	require.Len(t, rep.Fused, 1)
	child := rep.Fused[0]
	assert.Equal(t, child, a.Metadata.MergedInto)
	assert.Equal(t, child, b.Metadata.MergedInto)

	for c := uint64(2); c <= 4; c++ {
		rep = sim.RunCycle(c)
		assert.Empty(t, rep.Fused, "cycle %d", c)
	}
	assert.Len(t, sim.Entities(), 3)
	assert.Equal(t, 1, sim.Stats().Fusions)
}

func TestNewSimulationRebuildsLedger(t *testing.T) {
	q := newEntity(0.4)
	q.Quarantine(ReasonHollow)
	r := newEntity(0.3)
	r.Quarantine(ReasonHollow)
	r.MarkReintegrated()
	act := newEntity(0.1)

	sim := NewSimulation([]*entity.Entity{q, r, act}, Options{Rng: entropy.NewSeeded(1)})

	assert.True(t, sim.Scanner.Ledger.Has(q.ID()))
	assert.True(t, sim.Scanner.Ledger.Has(r.ID()))
	assert.False(t, sim.Scanner.Ledger.Has(act.ID()))
	assert.Equal(t, 1, sim.Stats().Quarantined)
}

func TestPerformRitual(t *testing.T) {
	e := newEntity(0.7)
	e.Quarantine(ReasonHollow)
	sim := NewSimulation([]*entity.Entity{e}, Options{Rng: entropy.NewSeeded(1)})

	_, err := sim.PerformRitual("nobody", RitualReweave)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = sim.PerformRitual(e.ID(), "dance")
	assert.ErrorIs(t, err, ErrUnknownRitual)

	ok, err := sim.PerformRitual(e.ID(), RitualHealingEcho)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = sim.PerformRitual(e.ID(), RitualReweave)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, sim.Stats().Reintegrated)
	assert.Equal(t, 1, sim.Stats().Rituals)

	rec, err := sim.Record(e.ID(), entity.ProfileSummary)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReintegrated, rec.Status)
	assert.Len(t, sim.Records(entity.ProfileSummary, entity.StatusReintegrated), 1)
	assert.Empty(t, sim.Records(entity.ProfileSummary, entity.StatusActive))
}

func TestEventsBounded(t *testing.T) {
	sim := NewSimulation(nil, Options{Rng: entropy.NewSeeded(1)})
	for i := 0; i < MaxEvents+25; i++ {
		sim.EmitEvent(Event{Cycle: uint64(i), Category: "test"})
	}
	events := sim.Events()
	require.Len(t, events, MaxEvents)
	assert.Equal(t, uint64(25), events[0].Cycle)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestRestoreHistory(t *testing.T) {
	sim := NewSimulation(nil, Options{Rng: entropy.NewSeeded(1)})
	sim.RestoreHistory([]Alert{{Event: "drift_alert", EntityID: "x", Level: LevelHollow}}, []Event{{Category: "drift"}})
	assert.Len(t, sim.Alerts(), 1)
	assert.Len(t, sim.Events(), 1)
}

func TestFullRecordsSafeDuringCycles(t *testing.T) {
	sim := spawnSim(t, 12, Options{ArenaEncounters: 5})
	id := sim.Entities()[0].ID()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := uint64(1); c <= 50; c++ {
			sim.RunCycle(c)
		}
	}()

	for i := 0; i < 200; i++ {
		rec, err := sim.Record(id, entity.ProfileFull)
		require.NoError(t, err)
		_, err = json.Marshal(rec)
		require.NoError(t, err)
		_, err = json.Marshal(sim.Records(entity.ProfileFull, ""))
		require.NoError(t, err)
	}
	<-done
}
