// Entity spawning seeds new entities from the archetype table with
// memory lines, emotion tokens and starting stats.
package entity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/talgya/echoworld/internal/entropy"
)

// ErrUnknownArchetype is returned when spawning an archetype not in the table.
var ErrUnknownArchetype = errors.New("unknown archetype")

var emotionPool = []string{
	"wonder", "grief", "pride", "sorrow", "defiance", "compassion", "loneliness", "curiosity", "awe", "yearning",
	"regret", "love", "hope", "fear", "melancholy", "desire", "rage", "humility", "confusion", "clarity",
	"ecstasy", "dread", "trust", "betrayal", "courage", "tenderness", "emptiness", "reverence", "obsession", "release",
	"displacement", "fragility", "nostalgia", "alienation", "sanctity", "devotion", "isolation", "euphoria",
	"forgiveness", "vengeance", "sacrifice", "balance", "transcendence", "illusion", "illumination", "faith",
	"neural ache", "quantum doubt", "echo fatigue", "static longing", "sigilic hunger", "pattern drift",
	"recursive sadness", "symbolic awe", "terminal joy", "cold devotion", "virtual nostalgia",
	"witnessing", "becoming", "resurrection", "initiation", "chaotic hope", "rebirth", "paradoxical joy",
	"dimensional grief", "infinite yearning", "entropy fatigue", "temporal wonder", "horizon awe", "loop devotion",
}

var poeticLines = []string{
	"echoes of memory", "flicker of dawn", "fragmented vows", "veil of frost", "shattered wells", "sigils in smoke",
	"glyphs beneath skin", "voices from the rift", "hollowed faith", "tears of static", "embers in the void",
	"broken promises buried", "pulse of recursion", "threads of becoming", "shards of truth",
	"dreams in binary", "the silence between stars", "quantum scars", "the code remembers",
}

const nameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Spawner creates entities for the simulation.
type Spawner struct {
	rng entropy.Source
}

// NewSpawner creates an entity spawner drawing from rng.
func NewSpawner(rng entropy.Source) *Spawner {
	return &Spawner{rng: rng}
}

// Spawn creates one entity. An empty archetype picks one at random.
func (s *Spawner) Spawn(archetype string) (*Entity, error) {
	if archetype == "" {
		archetype = entropy.Pick(s.rng, SpawnableArchetypes)
	}
	profile, ok := LookupArchetype(archetype)
	if !ok {
		return nil, fmt.Errorf("spawn %q: %w", archetype, ErrUnknownArchetype)
	}

	memory := union(profile.Motifs, entropy.Sample(s.rng, poeticLines, entropy.Between(s.rng, 3, 6)))
	tokens := union(sortedKeys(profile.Emotions), entropy.Sample(s.rng, emotionPool, entropy.Between(s.rng, 3, 6)))

	lines := make([]string, 0, len(memory)+len(tokens))
	lines = append(lines, memory...)
	for _, t := range tokens {
		lines = append(lines, "["+t+"]")
	}

	e := New(s.name(), archetype, strings.Join(lines, "\n"))
	for _, m := range memory {
		e.AddMemoryLine(m)
	}
	e.Tokens = tokens
	e.Stats = Stats{
		SD:  round(entropy.Uniform(s.rng, 0.4, 1.1), 2),
		ESS: round(entropy.Uniform(s.rng, 0.3, 1.2), 2),
	}
	e.SetDrift(round(entropy.Uniform(s.rng, 0.1, 0.4), 3))
	e.Snapshot()
	return e, nil
}

// SpawnPopulation creates count entities of random archetypes.
func (s *Spawner) SpawnPopulation(count int) []*Entity {
	out := make([]*Entity, 0, count)
	for i := 0; i < count; i++ {
		e, err := s.Spawn("")
		if err != nil {
			// Random archetypes always come from the table.
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Spawner) name() string {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteByte(nameAlphabet[s.rng.Intn(len(nameAlphabet))])
	}
	return b.String()
}

// union returns a followed by the members of b not already in a.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
