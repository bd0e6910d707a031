package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

func newHealer(rng entropy.Source) *Healer {
	return NewHealer(rng, entity.NewTemplateGenerator(rng), NewLedger())
}

func reintegrated(drift float64) *entity.Entity {
	e := newEntity(drift)
	e.Quarantine(ReasonHollow)
	e.MarkReintegrated()
	return e
}

func TestHealingEchoRequiresReintegrated(t *testing.T) {
	h := newHealer(entropy.NewSeeded(1))
	e := newEntity(0.4)

	assert.False(t, h.HealingEcho(e))
	assert.Equal(t, 0.4, e.Drift())
	assert.Empty(t, e.ListInventory())
}

func TestHealingEchoRestores(t *testing.T) {
	h := newHealer(entropy.NewScripted(0))
	e := reintegrated(0.2)
	h.Ledger.Add(e.ID())
	e.UpdateMemory("quiet now")

	require.True(t, h.HealingEcho(e))

	assert.InDelta(t, 0.15, e.Drift(), 1e-9)
	assert.Equal(t, entity.StatusActive, e.Status())
	assert.Equal(t, "quiet now", e.MemorySnapshot)
	assert.False(t, h.Ledger.Has(e.ID()))
	require.Len(t, e.ListInventory(), 1)
	assert.Equal(t, "Echo Salve", e.ListInventory()[0].Name)
	assert.Equal(t, entity.RarityUncommon, e.ListInventory()[0].Rarity)
	require.Len(t, e.Metadata.HealingHistory, 1)
	assert.Equal(t, 0.2, e.Metadata.HealingHistory[0].DriftBefore)
}

func TestHealingEchoKeepsReintegratedAboveThreshold(t *testing.T) {
	h := newHealer(entropy.NewScripted(1))
	e := reintegrated(0.5)

	require.True(t, h.HealingEcho(e))
	assert.InDelta(t, 0.35, e.Drift(), 1e-9)
	assert.Equal(t, entity.StatusReintegrated, e.Status())
	assert.Len(t, e.ListInventory(), 1)
}

func TestHealingEchoFloorsDrift(t *testing.T) {
	h := newHealer(entropy.NewScripted(1))
	e := reintegrated(0.05)

	require.True(t, h.HealingEcho(e))
	assert.Zero(t, e.Drift())
}

func TestReweave(t *testing.T) {
	h := newHealer(entropy.NewSeeded(2))

	low := newEntity(0.3)
	low.Quarantine(ReasonHollow)
	assert.False(t, h.Reweave(low))
	assert.Equal(t, entity.StatusQuarantined, low.Status())

	high := newEntity(0.6)
	high.Quarantine(ReasonHollow)
	require.True(t, h.Reweave(high))
	assert.Equal(t, entity.StatusReintegrated, high.Status())
	assert.Equal(t, 0.2, high.Drift())
	require.Len(t, high.ListInventory(), 1)
	assert.Equal(t, "Weave Fragment", high.ListInventory()[0].Name)
	assert.Equal(t, entity.RarityRare, high.ListInventory()[0].Rarity)
	assert.Len(t, high.Metadata.ReweavingLog, 1)

	active := newEntity(0.9)
	assert.False(t, h.Reweave(active))
}

func TestHealerCycle(t *testing.T) {
	h := newHealer(entropy.NewScripted(0))
	h.ReleaseAfter = 2

	deep := newEntity(0.8)
	deep.Quarantine(ReasonHollow)
	calm := newEntity(0.3)
	calm.Quarantine(ReasonEmergent)
	h.Ledger.Add(calm.ID())
	healing := reintegrated(0.1)

	rep := h.Cycle([]*entity.Entity{deep, calm, healing})
	assert.Equal(t, []string{deep.ID()}, rep.Rewoven)
	assert.Equal(t, []string{healing.ID()}, rep.Echoed)
	assert.Equal(t, []string{healing.ID()}, rep.Restored)
	assert.Empty(t, rep.Released)
	assert.Equal(t, 1, calm.Metadata.QuarantineCycles)

	rep = h.Cycle([]*entity.Entity{calm})
	assert.Equal(t, []string{calm.ID()}, rep.Released)
	assert.Equal(t, entity.StatusActive, calm.Status())
	assert.False(t, h.Ledger.Has(calm.ID()))
}

func TestPerform(t *testing.T) {
	h := newHealer(entropy.NewSeeded(3))
	e := newEntity(0.7)
	e.Quarantine(ReasonHollow)

	ok, err := h.Perform(RitualReweave, e)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Perform(RitualRelease, e)
	require.NoError(t, err)
	assert.False(t, ok, "reintegrated entities are not released")

	_, err = h.Perform("exorcism", e)
	assert.ErrorIs(t, err, ErrUnknownRitual)
}
