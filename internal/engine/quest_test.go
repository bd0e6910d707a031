package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

func newQuests(rng entropy.Source) *QuestEngine {
	return NewQuestEngine(rng, entity.NewTemplateGenerator(rng))
}

func TestStartQuestCap(t *testing.T) {
	q := newQuests(entropy.NewSeeded(1))
	e := newEntity(0)

	for i := 0; i < entity.MaxQuests; i++ {
		require.True(t, q.StartQuest(e))
	}
	assert.False(t, q.StartQuest(e))
	assert.Len(t, e.Metadata.ActiveQuests, entity.MaxQuests)

	for _, quest := range e.Metadata.ActiveQuests {
		assert.Contains(t, QuestTypes, quest.Type)
		assert.Regexp(t, `^[A-Za-z ]+_\d{4}$`, quest.ID)
		assert.Zero(t, quest.Progress)
	}
}

func TestProgressQuestStartsWhenIdle(t *testing.T) {
	q := newQuests(entropy.NewScripted(0))
	e := newEntity(0)

	assert.Equal(t, QuestStarted, q.ProgressQuest(e))
	require.Len(t, e.Metadata.ActiveQuests, 1)
	assert.Equal(t, "Recovery_1000", e.Metadata.ActiveQuests[0].ID)
}

func TestQuestCompletesWithinTenCalls(t *testing.T) {
	q := newQuests(entropy.NewSeeded(8))
	e := newEntity(0)
	require.True(t, q.StartQuest(e))

	calls := 0
	for ; calls < 10; calls++ {
		if q.ProgressQuest(e) == QuestCompleted {
			calls++
			break
		}
	}

	quest := e.Metadata.ActiveQuests[0]
	assert.True(t, quest.Complete)
	assert.Equal(t, 1.0, quest.Progress)
	assert.NotNil(t, quest.CompletedAt)
	assert.LessOrEqual(t, calls, 10)
	assert.Equal(t, QuestXPGain, e.Metadata.Experience)

	rewards := 0
	for _, it := range e.ListInventory() {
		if it.Source == "quest" {
			rewards++
			assert.Equal(t, entity.RarityUncommon, it.Rarity)
		}
	}
	assert.Equal(t, 1, rewards)
}

func TestQuestPenalty(t *testing.T) {
	// start: type, id; progress: increment, penalty roll
	q := newQuests(entropy.NewScripted(0, 0, 0, 0.05))
	e := newEntity(0.2)
	require.True(t, q.StartQuest(e))

	assert.Equal(t, QuestFaltered, q.ProgressQuest(e))
	assert.InDelta(t, 0.3, e.Drift(), 1e-9)
	assert.Equal(t, 0.1, e.Metadata.ActiveQuests[0].Progress)
}

func TestQuestAdvanceWithoutPenalty(t *testing.T) {
	q := newQuests(entropy.NewScripted(0, 0, 1, 0.5))
	e := newEntity(0.2)
	require.True(t, q.StartQuest(e))

	assert.Equal(t, QuestAdvanced, q.ProgressQuest(e))
	assert.Equal(t, 0.2, e.Drift())
	assert.Equal(t, 0.35, e.Metadata.ActiveQuests[0].Progress)
}

func TestCompletedQuestsArchivedOnStart(t *testing.T) {
	q := newQuests(entropy.NewSeeded(4))
	e := newEntity(0)
	for i := 0; i < entity.MaxQuests; i++ {
		require.True(t, q.StartQuest(e))
	}
	e.Metadata.ActiveQuests[0].Complete = true
	done := e.Metadata.ActiveQuests[0].ID

	require.True(t, q.StartQuest(e))
	assert.Len(t, e.Metadata.ActiveQuests, entity.MaxQuests)
	require.Len(t, e.Metadata.CompletedQuests, 1)
	assert.Equal(t, done, e.Metadata.CompletedQuests[0].ID)
}
