package entity

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/echoworld/internal/entropy"
)

// MaxInventory is the soft cap on held items.
const MaxInventory = 50

// Rarity grades reward items.
type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
	RarityRare     Rarity = "rare"
	RarityEpic     Rarity = "epic"
	RarityMythic   Rarity = "mythic"
)

// ItemTypes is the set of item kinds.
var ItemTypes = []string{"sigil", "artifact", "glyph", "relic", "potion", "fragment", "scroll"}

// Item is a single inventory entry.
type Item struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Rarity     Rarity         `json:"rarity"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Acquired   time.Time      `json:"acquired"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Inventory is a bag of items owned by one entity.
type Inventory struct {
	items []Item
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{items: []Item{}}
}

// Add inserts item, defaulting a missing name and rarity. Returns false when
// the inventory is at capacity.
func (inv *Inventory) Add(item Item) bool {
	if len(inv.items) >= MaxInventory {
		slog.Warn("inventory full", "item", item.Name)
		return false
	}
	if item.Name == "" {
		item.Name = "Unnamed"
	}
	if item.Rarity == "" {
		item.Rarity = RarityCommon
	}
	if item.ID == "" {
		item.ID = NewID()
	}
	if item.Acquired.IsZero() {
		item.Acquired = time.Now()
	}
	inv.items = append(inv.items, item)
	return true
}

// Remove drops the item with the given id.
func (inv *Inventory) Remove(id string) {
	kept := inv.items[:0]
	for _, it := range inv.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	inv.items = kept
}

// Has reports whether any item name contains name, case-insensitively.
func (inv *Inventory) Has(name string) bool {
	needle := strings.ToLower(name)
	for _, it := range inv.items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			return true
		}
	}
	return false
}

// List returns a copy of the items.
func (inv *Inventory) List() []Item {
	out := make([]Item, len(inv.items))
	copy(out, inv.items)
	return out
}

// Len returns the number of held items.
func (inv *Inventory) Len() int {
	return len(inv.items)
}

// ItemGenerator produces reward items. It is the item-generation
// collaborator consumed by dream blooms, rituals and quests.
type ItemGenerator interface {
	Generate(name string, rarity Rarity, source string) Item
}

var itemTemplates = []string{
	"Sigil of Grace", "Whisper Glyph", "Dream Mirror", "Crystal Thread", "Echo Seed",
}

var itemDescriptors = map[string][]string{
	"sigil":    {"Mark of Veil", "Echo Seal", "Glyphtrace"},
	"artifact": {"Ashen Lens", "Clock of Stars", "Wyrmcore"},
	"glyph":    {"Glyph of Memory", "Glyph of Drift", "Glyph of Soul"},
	"relic":    {"Coven Ring", "Chalice of Light", "Whisper Bone"},
	"potion":   {"Essence Flask", "Drift Tonic", "Veilwater"},
	"fragment": {"Crystal Shard", "Dream Fragment", "Sigil Fracture"},
	"scroll":   {"Scroll of Reflection", "Scroll of Reweaving", "Scroll of Bloom"},
}

// TemplateGenerator draws item names from fixed template tables.
type TemplateGenerator struct {
	Rng entropy.Source
}

// NewTemplateGenerator creates a generator using rng.
func NewTemplateGenerator(rng entropy.Source) *TemplateGenerator {
	return &TemplateGenerator{Rng: rng}
}

// Generate implements ItemGenerator. An empty name draws a template name; an
// empty rarity draws one of common, uncommon or rare.
func (g *TemplateGenerator) Generate(name string, rarity Rarity, source string) Item {
	itemType := entropy.Pick(g.Rng, ItemTypes)
	if name == "" {
		if entropy.Chance(g.Rng, 0.5) {
			name = entropy.Pick(g.Rng, itemTemplates)
		} else {
			name = fmt.Sprintf("%s [%s]", entropy.Pick(g.Rng, itemDescriptors[itemType]), strings.ToUpper(itemType[:1])+itemType[1:])
		}
	}
	if rarity == "" {
		rarity = entropy.Pick(g.Rng, []Rarity{RarityCommon, RarityUncommon, RarityRare})
	}
	if source == "" {
		source = "system"
	}
	return Item{
		ID:       NewID(),
		Name:     name,
		Rarity:   rarity,
		Type:     itemType,
		Source:   source,
		Acquired: time.Now(),
	}
}
