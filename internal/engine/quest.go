package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

// QuestTypes enumerates the quests an entity can undertake.
var QuestTypes = []string{
	"Recovery", "Protection", "Healing", "Discovery", "Challenge",
	"Alignment", "Illumination", "Ritual", "Fragment Integration", "Truth Unfolding",
}

const (
	QuestXPGain       = 10
	QuestDriftPenalty = 0.1
	questPenaltyOdds  = 0.10
)

// QuestOutcome reports what a ProgressQuest call did.
type QuestOutcome string

const (
	QuestStarted    QuestOutcome = "started"
	QuestAdvanced   QuestOutcome = "advanced"
	QuestCompleted  QuestOutcome = "completed"
	QuestFaltered   QuestOutcome = "faltered" // advanced, then destabilized
	QuestCapReached QuestOutcome = "cap_reached"
)

// QuestEngine starts and advances entity quests.
type QuestEngine struct {
	Rng   entropy.Source
	Items entity.ItemGenerator
}

// NewQuestEngine creates a quest engine.
func NewQuestEngine(rng entropy.Source, items entity.ItemGenerator) *QuestEngine {
	return &QuestEngine{Rng: rng, Items: items}
}

// StartQuest appends a fresh quest. Completed quests are first moved to the
// completed list so only live quests count toward the cap. Returns false at
// the cap.
func (q *QuestEngine) StartQuest(e *entity.Entity) bool {
	archiveCompleted(e)
	if len(e.Metadata.ActiveQuests) >= entity.MaxQuests {
		slog.Debug("quest cap reached", "entity", e.ID())
		return false
	}
	kind := entropy.Pick(q.Rng, QuestTypes)
	quest := entity.Quest{
		ID:      fmt.Sprintf("%s_%d", kind, entropy.Between(q.Rng, 1000, 9999)),
		Type:    kind,
		Started: time.Now(),
	}
	e.Metadata.ActiveQuests = append(e.Metadata.ActiveQuests, quest)
	e.Log("quest_started", map[string]any{"quest": quest.ID})
	return true
}

// ProgressQuest advances the first incomplete quest, starting one when none
// is in progress.
func (q *QuestEngine) ProgressQuest(e *entity.Entity) QuestOutcome {
	idx := -1
	for i := range e.Metadata.ActiveQuests {
		if !e.Metadata.ActiveQuests[i].Complete {
			idx = i
			break
		}
	}
	if idx < 0 {
		if q.StartQuest(e) {
			return QuestStarted
		}
		return QuestCapReached
	}

	quest := &e.Metadata.ActiveQuests[idx]
	quest.Progress = round2(quest.Progress + round2(entropy.Uniform(q.Rng, 0.10, 0.35)))

	if quest.Progress >= 1.0 {
		now := time.Now()
		quest.Progress = 1.0
		quest.Complete = true
		quest.CompletedAt = &now
		e.GainItem(q.Items.Generate("", entity.RarityUncommon, "quest"))
		e.Metadata.Experience += QuestXPGain
		e.Log("quest_completed", map[string]any{"quest": quest.ID, "experience": e.Metadata.Experience})
		slog.Info("quest completed", "entity", e.ID(), "quest", quest.ID, "tier", e.Tier())
		return QuestCompleted
	}

	if entropy.Chance(q.Rng, questPenaltyOdds) {
		e.SetDrift(e.Drift() + QuestDriftPenalty)
		slog.Debug("quest destabilized entity", "entity", e.ID(), "quest", quest.ID)
		return QuestFaltered
	}
	return QuestAdvanced
}

func archiveCompleted(e *entity.Entity) {
	live := e.Metadata.ActiveQuests[:0]
	for _, quest := range e.Metadata.ActiveQuests {
		if quest.Complete {
			e.Metadata.CompletedQuests = append(e.Metadata.CompletedQuests, quest)
			continue
		}
		live = append(live, quest)
	}
	e.Metadata.ActiveQuests = live
}
