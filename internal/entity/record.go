package entity

import (
	"encoding/json"
	"time"

	"github.com/talgya/echoworld/internal/crystal"
)

// Profile selects how much live sub-object state a Record carries.
type Profile string

const (
	// ProfileSummary carries the identity, memory, stats and inventory only.
	ProfileSummary Profile = "summary"
	// ProfileFull also carries crystal, emotion, dream, metadata and snapshot.
	ProfileFull Profile = "full"
)

// Record is the serialized form of an entity.
type Record struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Archetype      string   `json:"archetype"`
	MemorySnapshot string   `json:"memory_snapshot"`
	CurrentMemory  string   `json:"current_memory"`
	Memory         []string `json:"memory"`
	Tokens         []string `json:"tokens"`
	Stats          Stats    `json:"stats"`
	DriftLevel     float64  `json:"drift_level"`
	Status         Status   `json:"status"`
	Inventory      []Item   `json:"inventory"`

	Crystal        *crystal.Crystal   `json:"crystal,omitempty"`
	Emotion        map[string]float64 `json:"emotion,omitempty"`
	Dream          *DreamState        `json:"dream,omitempty"`
	Metadata       *Metadata          `json:"metadata,omitempty"`
	SnapshotHashes []string           `json:"snapshot_hashes,omitempty"`
}

// ToRecord serializes the entity under the given profile.
func (e *Entity) ToRecord(p Profile) Record {
	rec := Record{
		ID:             e.id,
		Name:           e.Name,
		Archetype:      e.Archetype,
		MemorySnapshot: e.MemorySnapshot,
		CurrentMemory:  e.CurrentMemory,
		Memory:         append([]string{}, e.Memory...),
		Tokens:         append([]string{}, e.Tokens...),
		Stats:          e.Stats,
		DriftLevel:     e.drift,
		Status:         e.status,
		Inventory:      e.Inventory.List(),
	}
	// The full profile copies every sub-object so a record stays valid
	// after the entity moves on.
	if p == ProfileFull {
		md := e.Metadata.clone()
		rec.Crystal = e.Crystal.Clone()
		rec.Emotion = make(map[string]float64, len(e.Emotion.Levels))
		for ch, v := range e.Emotion.Levels {
			rec.Emotion[ch] = v
		}
		rec.Dream = e.Dream.Clone()
		rec.Metadata = &md
		rec.SnapshotHashes = append([]string{}, e.SnapshotHashes...)
	}
	return rec
}

// FromRecord rebuilds an entity. Missing fields are defaulted and sub-objects
// absent from the record start fresh.
func FromRecord(rec Record) *Entity {
	e := New(rec.Name, rec.Archetype, rec.MemorySnapshot)
	if rec.ID != "" {
		e.id = rec.ID
	}
	if rec.CurrentMemory != "" {
		e.CurrentMemory = rec.CurrentMemory
	}
	if rec.Memory != nil {
		e.Memory = append([]string{}, rec.Memory...)
	}
	if rec.Tokens != nil {
		e.Tokens = append([]string{}, rec.Tokens...)
	}
	e.Stats = rec.Stats
	e.drift = clamp(rec.DriftLevel, 0, 1)
	if rec.Status.Valid() {
		e.status = rec.Status
	}
	for _, it := range rec.Inventory {
		e.Inventory.Add(it)
	}

	if rec.Crystal != nil {
		e.Crystal = rec.Crystal
	}
	for ch, v := range rec.Emotion {
		e.Emotion.Set(ch, v)
	}
	if rec.Dream != nil {
		e.Dream = rec.Dream
		if e.Dream.LayerLog == nil {
			e.Dream.LayerLog = []LayerEntry{}
		}
		if _, ok := dreamTransitions[e.Dream.Layer]; !ok {
			e.Dream.Layer = LayerActive
		}
	}
	if rec.Metadata != nil {
		e.Metadata = *rec.Metadata
		if e.Metadata.CreatedAt.IsZero() {
			e.Metadata.CreatedAt = time.Now()
		}
	}
	if rec.SnapshotHashes != nil {
		e.SnapshotHashes = append([]string{}, rec.SnapshotHashes...)
	}
	return e
}

// MarshalJSON encodes the entity with the full profile.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToRecord(ProfileFull))
}

// UnmarshalJSON decodes either profile.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*e = *FromRecord(rec)
	return nil
}
