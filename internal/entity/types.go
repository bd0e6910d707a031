// Package entity provides the symbolic entity aggregate and the sub-systems it
// exclusively owns: memory crystal, emotion state, dream state and inventory.
package entity

import (
	"slices"
	"time"
)

// Status is an entity's position in the quarantine/healing cycle.
type Status string

const (
	// StatusActive entities take part in fusion, quests and encounters.
	StatusActive Status = "active"
	// StatusQuarantined entities are isolated pending healing.
	StatusQuarantined Status = "quarantined"
	// StatusReintegrated entities have been rewoven but still carry residual
	// drift; a healing echo promotes them back to active.
	StatusReintegrated Status = "reintegrated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusQuarantined, StatusReintegrated:
		return true
	}
	return false
}

// Fixed values the state machine relies on.
const (
	BloomDrift    = 0.1 // drift after a dream bloom
	MaxLogEntries = 200
	MaxQuests     = 3
)

// Stats holds the symbolic-density counter and essence scalar.
type Stats struct {
	SD  float64 `json:"sd"`
	ESS float64 `json:"ess"`
}

// LogEntry is one line of an entity's activity log.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
}

// Quest is a single tracked quest.
type Quest struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Started     time.Time  `json:"started"`
	Progress    float64    `json:"progress"`
	Complete    bool       `json:"complete"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HealingRecord documents one successful healing echo.
type HealingRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	DriftBefore float64   `json:"drift_before"`
	DriftAfter  float64   `json:"drift_after"`
	Item        string    `json:"item"`
}

// ReweavingRecord documents one successful reweaving ritual.
type ReweavingRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Item      string    `json:"item"`
}

// BloomRecord documents the most recent dream bloom.
type BloomRecord struct {
	From      string    `json:"bloomed_from"`
	Into      string    `json:"bloomed_into"`
	Timestamp time.Time `json:"bloom_timestamp"`
}

// Metadata carries an entity's log and lifecycle annotations.
type Metadata struct {
	CreatedAt time.Time  `json:"created_at"`
	Log       []LogEntry `json:"log"`

	QuarantineReason string     `json:"quarantine_reason,omitempty"`
	QuarantinedAt    *time.Time `json:"quarantined_at,omitempty"`
	QuarantineCycles int        `json:"quarantine_cycles,omitempty"` // cycles spent quarantined

	FusedFrom    []string   `json:"fused_from,omitempty"`
	SharedMotifs []string   `json:"shared_motifs,omitempty"`
	FusionTime   *time.Time `json:"fusion_time,omitempty"`
	FusionScore  float64    `json:"fusion_score,omitempty"`
	MergedInto   string     `json:"merged_into,omitempty"`

	Experience      int     `json:"experience"`
	ActiveQuests    []Quest `json:"active_quests,omitempty"`
	CompletedQuests []Quest `json:"completed_quests,omitempty"`

	HealingHistory []HealingRecord   `json:"healing_history,omitempty"`
	ReweavingLog   []ReweavingRecord `json:"reweaving_log,omitempty"`
	Bloom          *BloomRecord      `json:"bloom,omitempty"`

	Encounters int `json:"encounters,omitempty"`
}

func (m Metadata) clone() Metadata {
	m.Log = slices.Clone(m.Log)
	m.FusedFrom = slices.Clone(m.FusedFrom)
	m.SharedMotifs = slices.Clone(m.SharedMotifs)
	m.ActiveQuests = slices.Clone(m.ActiveQuests)
	m.CompletedQuests = slices.Clone(m.CompletedQuests)
	m.HealingHistory = slices.Clone(m.HealingHistory)
	m.ReweavingLog = slices.Clone(m.ReweavingLog)
	return m
}

// Experience tiers, lowest first.
var (
	TierNames      = []string{"Flicker", "Ember", "Warden", "Sigilbearer", "Mythbound"}
	TierThresholds = []int{50, 100, 200, 400, 800}
)

// TierFor returns the tier name earned by xp. Below the first threshold an
// entity is still a Flicker.
func TierFor(xp int) string {
	tier := TierNames[0]
	for i, th := range TierThresholds {
		if xp >= th {
			tier = TierNames[i]
		}
	}
	return tier
}
