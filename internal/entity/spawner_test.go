package entity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/entropy"
)

func TestSpawnArchetype(t *testing.T) {
	s := NewSpawner(entropy.NewSeeded(3))
	e, err := s.Spawn(ArchWitch)
	require.NoError(t, err)

	assert.Equal(t, ArchWitch, e.Archetype)
	assert.Len(t, e.Name, 5)
	assert.Equal(t, StatusActive, e.Status())
	for _, m := range []string{"hex", "coven", "moon", "root", "sigil"} {
		assert.Contains(t, e.Memory, m)
		assert.True(t, e.Crystal.Contains(hashOf(m)), m)
	}
	assert.Contains(t, e.Tokens, "defiance")
	assert.Equal(t, len(e.Memory), e.Crystal.Len())
	assert.Len(t, e.SnapshotHashes, e.Crystal.Len())
	assert.Zero(t, e.DriftFromSnapshot())

	assert.GreaterOrEqual(t, e.Drift(), 0.1)
	assert.LessOrEqual(t, e.Drift(), 0.4)
	assert.GreaterOrEqual(t, e.Stats.SD, 0.4)
	assert.LessOrEqual(t, e.Stats.ESS, 1.2)
}

func TestSpawnUnknownArchetype(t *testing.T) {
	s := NewSpawner(entropy.NewSeeded(3))
	_, err := s.Spawn(ArchMythicNexus)
	assert.ErrorIs(t, err, ErrUnknownArchetype)
}

func TestSpawnPopulation(t *testing.T) {
	s := NewSpawner(entropy.NewSeeded(9))
	pop := s.SpawnPopulation(12)
	require.Len(t, pop, 12)

	ids := make(map[string]bool)
	for _, e := range pop {
		ids[e.ID()] = true
		_, ok := LookupArchetype(e.Archetype)
		assert.True(t, ok, e.Archetype)
	}
	assert.Len(t, ids, 12)
}

func TestPruneMemory(t *testing.T) {
	e := New("a", ArchMystic, "")
	assert.False(t, e.PruneMemory())

	for i := 0; i < 30; i++ {
		e.AddMemoryLine(fmt.Sprintf("line %d", i))
	}
	e.AddMemoryLine("line 29")
	fragments := e.Crystal.Len()

	require.True(t, e.PruneMemory())
	assert.Len(t, e.Memory, MaxMemoryLines)
	assert.Equal(t, clarityLine, e.Memory[0])
	assert.Equal(t, "line 29", e.Memory[len(e.Memory)-1])
	assert.Equal(t, "line 11", e.Memory[1])
	assert.Equal(t, fragments, e.Crystal.Len(), "crystal untouched")
}

func TestPruneTruncatesLongLines(t *testing.T) {
	e := New("a", ArchMystic, "")
	long := ""
	for len(long) < 80 {
		long += "echo "
	}
	for i := 0; i < MaxMemoryLines; i++ {
		e.Memory = append(e.Memory, fmt.Sprintf("%d", i))
	}
	e.Memory = append(e.Memory, long)

	require.True(t, e.PruneMemory())
	last := e.Memory[len(e.Memory)-1]
	assert.Equal(t, long[:maxLineLength]+"...", last)
}

func TestInventoryCap(t *testing.T) {
	inv := NewInventory()
	for i := 0; i < MaxInventory; i++ {
		require.True(t, inv.Add(Item{Name: fmt.Sprintf("item %d", i)}))
	}
	assert.False(t, inv.Add(Item{Name: "overflow"}))
	assert.Equal(t, MaxInventory, inv.Len())

	first := inv.List()[0]
	assert.Equal(t, RarityCommon, first.Rarity)
	inv.Remove(first.ID)
	assert.Equal(t, MaxInventory-1, inv.Len())
	assert.False(t, inv.Has("item 0"))
}

func TestTemplateGenerator(t *testing.T) {
	g := NewTemplateGenerator(entropy.NewSeeded(1))
	it := g.Generate("Echo Salve", RarityUncommon, "healing_ritual")
	assert.Equal(t, "Echo Salve", it.Name)
	assert.Equal(t, RarityUncommon, it.Rarity)
	assert.Equal(t, "healing_ritual", it.Source)
	assert.Contains(t, ItemTypes, it.Type)

	anon := g.Generate("", "", "")
	assert.NotEmpty(t, anon.Name)
	assert.Contains(t, []Rarity{RarityCommon, RarityUncommon, RarityRare}, anon.Rarity)
	assert.Equal(t, "system", anon.Source)
}
