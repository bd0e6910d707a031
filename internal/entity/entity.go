package entity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/echoworld/internal/crystal"
)

// Entity is the aggregate root: identity, memory, emotion, dream, inventory,
// drift level and status. Drift and status are only changed through methods so
// the clamping and transition rules always hold.
type Entity struct {
	id             string
	Name           string
	Archetype      string
	MemorySnapshot string   // baseline memory text
	CurrentMemory  string   // living memory trace
	Memory         []string // legacy memory lines
	Tokens         []string // emotion tokens
	Stats          Stats

	drift  float64
	status Status

	Crystal   *crystal.Crystal
	Emotion   *EmotionState
	Dream     *DreamState
	Inventory *Inventory

	SnapshotHashes []string
	Metadata       Metadata
}

// NewID returns a short opaque identifier.
func NewID() string {
	return uuid.NewString()[:8]
}

// New creates an active entity with fresh sub-systems. Empty name and
// archetype fall back to "Unnamed" and "generic".
func New(name, archetype, memory string) *Entity {
	if name == "" {
		name = "Unnamed"
	}
	if archetype == "" {
		archetype = ArchGeneric
	}
	return &Entity{
		id:             NewID(),
		Name:           name,
		Archetype:      archetype,
		MemorySnapshot: memory,
		CurrentMemory:  memory,
		Memory:         []string{},
		Tokens:         []string{},
		status:         StatusActive,
		Crystal:        crystal.New(),
		Emotion:        NewEmotionState(),
		Dream:          NewDreamState(),
		Inventory:      NewInventory(),
		SnapshotHashes: []string{},
		Metadata:       Metadata{CreatedAt: time.Now()},
	}
}

// ID returns the entity's immutable identifier.
func (e *Entity) ID() string { return e.id }

// Drift returns the drift level in [0, 1].
func (e *Entity) Drift() float64 { return e.drift }

// Status returns the current lifecycle status.
func (e *Entity) Status() Status { return e.status }

// IsQuarantined reports whether the entity is quarantined.
func (e *Entity) IsQuarantined() bool { return e.status == StatusQuarantined }

// Tier returns the experience tier name.
func (e *Entity) Tier() string { return TierFor(e.Metadata.Experience) }

// UpdateMemory overwrites the living memory, logging the transition.
func (e *Entity) UpdateMemory(text string) {
	e.log("memory_update", map[string]any{"from": e.CurrentMemory, "to": text})
	e.CurrentMemory = text
}

// ResetBaseline makes the current memory the new baseline snapshot.
func (e *Entity) ResetBaseline() {
	e.MemorySnapshot = e.CurrentMemory
	e.log("baseline_reset", nil)
}

// SetDrift sets the drift level, clamped to [0, 1].
func (e *Entity) SetDrift(v float64) {
	e.drift = clamp(v, 0, 1)
	e.log("drift_adjust", map[string]any{"value": e.drift})
}

// Snapshot captures the crystal's current fragment hashes.
func (e *Entity) Snapshot() {
	e.SnapshotHashes = e.Crystal.Hashes()
	e.log("snapshot", map[string]any{"hashes": len(e.SnapshotHashes)})
}

// DriftFromSnapshot compares the crystal against the last snapshot.
func (e *Entity) DriftFromSnapshot() float64 {
	return e.Crystal.CompareDrift(e.SnapshotHashes)
}

// Quarantine moves an active entity into quarantine. Returns false if the
// entity is not active.
func (e *Entity) Quarantine(reason string) bool {
	if e.status != StatusActive {
		return false
	}
	now := time.Now()
	e.status = StatusQuarantined
	e.Metadata.QuarantineReason = reason
	e.Metadata.QuarantinedAt = &now
	e.Metadata.QuarantineCycles = 0
	e.log("quarantine", map[string]any{"reason": reason})
	slog.Info("entity quarantined", "entity", e.id, "reason", reason)
	return true
}

// Release is the hard reset path: quarantined → active, clearing the reason.
func (e *Entity) Release() bool {
	if e.status != StatusQuarantined {
		return false
	}
	e.status = StatusActive
	e.clearQuarantine()
	e.log("released", nil)
	return true
}

// Reintegrate is the historical name for Release. It returns the entity
// directly to active and does not pass through StatusReintegrated.
func (e *Entity) Reintegrate() bool {
	return e.Release()
}

// MarkReintegrated moves a quarantined entity into the reintegrated state.
func (e *Entity) MarkReintegrated() bool {
	if e.status != StatusQuarantined {
		return false
	}
	e.status = StatusReintegrated
	e.clearQuarantine()
	e.log("reintegrated", nil)
	return true
}

// Restore promotes a reintegrated entity back to active.
func (e *Entity) Restore() bool {
	if e.status != StatusReintegrated {
		return false
	}
	e.status = StatusActive
	e.log("restored", nil)
	return true
}

// ForceActive sets the entity active from any state. Used by dream blooms.
func (e *Entity) ForceActive(cause string) {
	if e.status == StatusQuarantined {
		e.clearQuarantine()
	}
	e.status = StatusActive
	e.log("force_active", map[string]any{"cause": cause})
}

func (e *Entity) clearQuarantine() {
	e.Metadata.QuarantineReason = ""
	e.Metadata.QuarantinedAt = nil
	e.Metadata.QuarantineCycles = 0
}

// GainItem adds item to the inventory. Returns false when the inventory is full.
func (e *Entity) GainItem(item Item) bool {
	if !e.Inventory.Add(item) {
		return false
	}
	e.log("gain_item", map[string]any{"item": item.Name, "rarity": string(item.Rarity)})
	return true
}

// HasItem reports whether an item whose name contains name is held.
func (e *Entity) HasItem(name string) bool {
	return e.Inventory.Has(name)
}

// ListInventory returns a copy of the held items.
func (e *Entity) ListInventory() []Item {
	return e.Inventory.List()
}

// Glyphs returns the distinct fragment texts of the crystal.
func (e *Entity) Glyphs() []string {
	return e.Crystal.Texts()
}

// AddMemoryLine appends a legacy memory line and embeds it into the crystal.
func (e *Entity) AddMemoryLine(line string) {
	e.Memory = append(e.Memory, line)
	e.Crystal.Embed(line)
}

// Log appends an entry to the activity log.
func (e *Entity) Log(action string, data map[string]any) {
	e.log(action, data)
}

func (e *Entity) log(action string, data map[string]any) {
	e.Metadata.Log = append(e.Metadata.Log, LogEntry{
		Timestamp: time.Now(),
		Action:    action,
		Data:      data,
	})
	if len(e.Metadata.Log) > MaxLogEntries {
		e.Metadata.Log = e.Metadata.Log[len(e.Metadata.Log)-MaxLogEntries:]
	}
}

// Description is a compact view of an entity for listings.
type Description struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Archetype   string  `json:"archetype"`
	ESS         float64 `json:"ess"`
	SD          float64 `json:"sd"`
	Drift       float64 `json:"drift"`
	Status      Status  `json:"status"`
	Tier        string  `json:"tier"`
	TokenCount  int     `json:"token_count"`
	MemoryLines int     `json:"memory_lines"`
	Motifs      int     `json:"motifs"`
	Items       int     `json:"items"`
}

// Describe returns a compact summary.
func (e *Entity) Describe() Description {
	return Description{
		ID:          e.id,
		Name:        e.Name,
		Archetype:   e.Archetype,
		ESS:         e.Stats.ESS,
		SD:          e.Stats.SD,
		Drift:       e.drift,
		Status:      e.status,
		Tier:        e.Tier(),
		TokenCount:  len(e.Tokens),
		MemoryLines: len(e.Memory),
		Motifs:      e.Crystal.Len(),
		Items:       e.Inventory.Len(),
	}
}

// String implements fmt.Stringer.
func (e *Entity) String() string {
	return fmt.Sprintf("%s(%s %s drift=%.3f)", e.Name, e.id, e.status, e.drift)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
