package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/crystal"
	"github.com/talgya/echoworld/internal/entropy"
)

func hashOf(s string) string { return crystal.Hash(s) }

func sampleEntity(t *testing.T) *Entity {
	t.Helper()
	e, err := NewSpawner(entropy.NewSeeded(21)).Spawn(ArchAndroid)
	require.NoError(t, err)
	e.GainItem(Item{Name: "Weave Fragment", Rarity: RarityRare, Source: "reweaving_ritual"})
	e.Emotion.Set(Dopamine, 1.23456)
	e.Metadata.Experience = 120
	e.Quarantine("Emergent Drift")
	return e
}

func TestFullRecordRoundTrip(t *testing.T) {
	e := sampleEntity(t)

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got Entity
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, e.ID(), got.ID())
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Drift(), got.Drift())
	assert.Equal(t, StatusQuarantined, got.Status())
	assert.Equal(t, e.Memory, got.Memory)
	assert.Equal(t, e.Tokens, got.Tokens)
	assert.Equal(t, e.Crystal.Hashes(), got.Crystal.Hashes())
	assert.Equal(t, e.Crystal.Vault(), got.Crystal.Vault())
	assert.Equal(t, e.Emotion.Levels, got.Emotion.Levels)
	assert.Equal(t, e.SnapshotHashes, got.SnapshotHashes)
	assert.Equal(t, "Emergent Drift", got.Metadata.QuarantineReason)
	assert.Equal(t, "Ember", got.Tier())
	assert.True(t, got.HasItem("Weave Fragment"))
	assert.Zero(t, got.DriftFromSnapshot())
}

func TestSummaryRecordOmitsSubsystems(t *testing.T) {
	e := sampleEntity(t)

	rec := e.ToRecord(ProfileSummary)
	assert.Nil(t, rec.Crystal)
	assert.Nil(t, rec.Emotion)
	assert.Nil(t, rec.Dream)
	assert.Nil(t, rec.Metadata)

	got := FromRecord(rec)
	assert.Equal(t, e.ID(), got.ID())
	assert.Equal(t, e.Stats, got.Stats)
	assert.Equal(t, 1.0, got.Emotion.Get(Dopamine), "fresh emotion state")
	assert.Zero(t, got.Crystal.Len())
	assert.Equal(t, LayerActive, got.Dream.Layer)
}

func TestFromRecordDefaults(t *testing.T) {
	got := FromRecord(Record{
		Status:     "melting",
		DriftLevel: 4,
		Emotion:    map[string]float64{Cortisol: 9, "unknown": 1},
		Dream:      &DreamState{Layer: "lucid"},
	})

	assert.NotEmpty(t, got.ID())
	assert.Equal(t, "Unnamed", got.Name)
	assert.Equal(t, ArchGeneric, got.Archetype)
	assert.Equal(t, StatusActive, got.Status())
	assert.Equal(t, 1.0, got.Drift())
	assert.Equal(t, EmotionMax, got.Emotion.Get(Cortisol))
	assert.Len(t, got.Emotion.Levels, len(Channels))
	assert.Equal(t, LayerActive, got.Dream.Layer)
	assert.NotNil(t, got.Dream.LayerLog)
}

func TestFullRecordIsDetached(t *testing.T) {
	e := sampleEntity(t)
	e.Metadata.ActiveQuests = []Quest{{ID: "q1", Type: "echo_hunt", Progress: 0.2}}
	rec := e.ToRecord(ProfileFull)
	layer := e.Dream.Layer

	e.Crystal.Embed("late motif")
	e.Dream.enter(LayerBloom)
	e.Metadata.ActiveQuests[0].Progress = 0.9
	e.Log("after", nil)

	assert.False(t, rec.Crystal.Contains(hashOf("late motif")))
	assert.Equal(t, layer, rec.Dream.Layer)
	assert.Len(t, rec.Dream.LayerLog, len(e.Dream.LayerLog)-1)
	assert.InDelta(t, 0.2, rec.Metadata.ActiveQuests[0].Progress, 1e-9)
	assert.Len(t, rec.Metadata.Log, len(e.Metadata.Log)-1)
}
