package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/talgya/echoworld/internal/entity"
)

// Fusion limits.
const (
	FusionDriftMax     = 0.2
	FusionMinShared    = 2
	FusionCoherenceMin = 0.85
	MaxFusionsPerCycle = 5
)

// FusionCandidate is an eligible pair with its shared motifs and Jaccard
// coherence.
type FusionCandidate struct {
	A, B      *entity.Entity
	Shared    []string
	Coherence float64
}

// ExtractGlyphs returns the distinct fragment texts held by e's crystal.
func ExtractGlyphs(e *entity.Entity) []string {
	return e.Crystal.Texts()
}

// Jaccard returns |a ∩ b| / |a ∪ b| and the sorted intersection.
func Jaccard(a, b []string) (float64, []string) {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	union := len(set)
	seen := make(map[string]bool, len(b))
	var shared []string
	for _, v := range b {
		if seen[v] {
			continue
		}
		seen[v] = true
		if set[v] {
			shared = append(shared, v)
		} else {
			union++
		}
	}
	sort.Strings(shared)
	if union == 0 {
		return 0, shared
	}
	return float64(len(shared)) / float64(union), shared
}

func fusionEligible(e *entity.Entity) bool {
	return e.Status() == entity.StatusActive && e.Drift() <= FusionDriftMax
}

// FindFusionPairs returns every eligible pair, highest coherence first.
// Equal coherence keeps input order.
func FindFusionPairs(entities []*entity.Entity) []FusionCandidate {
	glyphs := make([][]string, len(entities))
	for i, e := range entities {
		if fusionEligible(e) {
			glyphs[i] = ExtractGlyphs(e)
		}
	}

	var out []FusionCandidate
	for i := 0; i < len(entities); i++ {
		if !fusionEligible(entities[i]) {
			continue
		}
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if a.ID() == b.ID() || !fusionEligible(b) {
				continue
			}
			coherence, shared := Jaccard(glyphs[i], glyphs[j])
			if len(shared) < FusionMinShared || coherence < FusionCoherenceMin {
				continue
			}
			out = append(out, FusionCandidate{A: a, B: b, Shared: shared, Coherence: coherence})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Coherence > out[j].Coherence
	})
	return out
}

// Fuse merges two parents into a new mythic_nexus entity. Parents are not
// modified.
func Fuse(c FusionCandidate) *entity.Entity {
	a, b := c.A, c.B
	name := fmt.Sprintf("%s~%s", a.Name, b.Name)
	child := entity.New(name, entity.ArchMythicNexus, a.CurrentMemory+" + "+b.CurrentMemory)

	for _, text := range ExtractGlyphs(a) {
		child.Crystal.Embed(text)
	}
	for _, text := range ExtractGlyphs(b) {
		child.Crystal.Embed(text)
	}
	child.Memory = append(append([]string{}, a.Memory...), b.Memory...)
	child.Tokens = mergeTokens(a.Tokens, b.Tokens)
	child.Stats = entity.Stats{
		SD:  (a.Stats.SD + b.Stats.SD) / 2,
		ESS: (a.Stats.ESS + b.Stats.ESS) / 2,
	}
	child.SetDrift((a.Drift() + b.Drift()) / 2)
	child.Snapshot()

	now := time.Now()
	child.Metadata.FusedFrom = []string{a.ID(), b.ID()}
	child.Metadata.SharedMotifs = append([]string{}, c.Shared...)
	child.Metadata.FusionTime = &now
	child.Metadata.FusionScore = c.Coherence
	child.Log("fusion", map[string]any{"parents": []string{a.ID(), b.ID()}, "score": c.Coherence})

	slog.Info("fusion",
		"child", child.ID(),
		"parents", strings.Join(child.Metadata.FusedFrom, ","),
		"shared", strings.Join(c.Shared, ","),
		"score", fmt.Sprintf("%.3f", c.Coherence),
	)
	return child
}

// FusionEngine runs fusion cycles. Max caps fusions per cycle; zero means
// MaxFusionsPerCycle.
type FusionEngine struct {
	Max int
}

// RunFusionCycle fuses candidates greedily in coherence order. An entity
// takes part in at most one fusion per cycle.
func (f *FusionEngine) RunFusionCycle(entities []*entity.Entity) []*entity.Entity {
	limit := f.Max
	if limit <= 0 {
		limit = MaxFusionsPerCycle
	}

	used := make(map[string]bool)
	var fused []*entity.Entity
	for _, c := range FindFusionPairs(entities) {
		if len(fused) >= limit {
			break
		}
		if used[c.A.ID()] || used[c.B.ID()] {
			continue
		}
		used[c.A.ID()] = true
		used[c.B.ID()] = true
		fused = append(fused, Fuse(c))
	}
	return fused
}

// RunFusionCycle runs a cycle with the default cap.
func RunFusionCycle(entities []*entity.Entity) []*entity.Entity {
	return (&FusionEngine{}).RunFusionCycle(entities)
}

func mergeTokens(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
