package entity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/echoworld/internal/entropy"
)

// DreamLayer is a position in the dream cycle.
type DreamLayer string

const (
	LayerActive DreamLayer = "active" // resting, outside the cycle
	LayerSilent DreamLayer = "silent"
	LayerDrift  DreamLayer = "drift"
	LayerBloom  DreamLayer = "bloom"
)

type dreamTransition struct {
	next     DreamLayer
	required int // ticks in the current layer before advancing
}

var dreamTransitions = map[DreamLayer]dreamTransition{
	LayerActive: {LayerSilent, 0},
	LayerSilent: {LayerDrift, 2},
	LayerDrift:  {LayerBloom, 2},
	LayerBloom:  {LayerActive, 1},
}

// LayerEntry records entry into a dream layer.
type LayerEntry struct {
	Layer   DreamLayer `json:"layer"`
	Entered time.Time  `json:"entered"`
}

// DreamState cycles an entity through its dream layers.
type DreamState struct {
	Layer    DreamLayer   `json:"current_layer"`
	Entered  time.Time    `json:"entered"`
	CyclesIn int          `json:"cycles_in"`
	LayerLog []LayerEntry `json:"layer_log"`
}

// NewDreamState returns a dream state resting in the active layer.
func NewDreamState() *DreamState {
	return &DreamState{Layer: LayerActive, Entered: time.Now(), LayerLog: []LayerEntry{}}
}

// Clone returns a copy that shares no state with d.
func (d *DreamState) Clone() *DreamState {
	out := *d
	out.LayerLog = append([]LayerEntry{}, d.LayerLog...)
	return &out
}

func (d *DreamState) enter(layer DreamLayer) {
	d.Layer = layer
	d.Entered = time.Now()
	d.CyclesIn = 0
	d.LayerLog = append(d.LayerLog, LayerEntry{Layer: layer, Entered: d.Entered})
	slog.Debug("dream layer entered", "layer", layer)
}

func (d *DreamState) tick() {
	if d.Layer != LayerActive {
		d.CyclesIn++
	}
}

// Evolve advances the dream by one tick. Leaving the bloom layer performs a
// bloom mutation on e. Returns true if the mutation changed the entity.
func (d *DreamState) Evolve(e *Entity, rng entropy.Source, items ItemGenerator) bool {
	d.tick()

	t, ok := dreamTransitions[d.Layer]
	if !ok || d.CyclesIn < t.required {
		return false
	}

	bloomed := false
	if d.Layer == LayerBloom {
		bloomed = Bloom(e, rng, items)
	}
	d.enter(t.next)
	return bloomed
}

// Bloom rewrites the entity's memory around one of its own motifs, settles
// its drift and grants a rare item. It does nothing when the current memory
// carries no motifs.
func Bloom(e *Entity, rng entropy.Source, items ItemGenerator) bool {
	if e.CurrentMemory == "" {
		slog.Warn("entity lacks memory for dream mutation", "entity", e.ID())
		return false
	}
	glyphs := ExtractGlyphs(e.CurrentMemory)
	if len(glyphs) == 0 {
		slog.Warn("no motifs found to mutate", "entity", e.ID())
		return false
	}

	selected := entropy.Pick(rng, glyphs)
	phrase := fmt.Sprintf("%s fractal echoes of what was once forgotten", selected)
	old := e.CurrentMemory

	e.UpdateMemory(phrase)
	e.SetDrift(BloomDrift)
	e.ForceActive("dream_bloom")
	e.Metadata.Bloom = &BloomRecord{From: old, Into: phrase, Timestamp: time.Now()}

	reward := items.Generate("", RarityRare, "dream_bloom")
	e.GainItem(reward)

	slog.Info("dream bloom", "entity", e.ID(), "motif", selected, "item", reward.Name)
	return true
}
