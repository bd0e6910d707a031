package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
)

const (
	MaxEchoLength     = 300
	ReverenceInterval = 4 // every 4th encounter
	encounterSDGain   = 20
	encounterESSGain  = 0.01
)

// Encounter records one arena exchange.
type Encounter struct {
	Seq       int       `json:"seq"`
	First     string    `json:"first"`
	Second    string    `json:"second"`
	Echo      string    `json:"echo"`
	Reverence bool      `json:"reverence"`
	Timestamp time.Time `json:"timestamp"`
}

// Arena stages symbolic exchanges between pairs of active entities. The
// encounter counter persists across sessions.
type Arena struct {
	Rng   entropy.Source
	count int
}

// NewArena creates an arena.
func NewArena(rng entropy.Source) *Arena {
	return &Arena{Rng: rng}
}

// Count returns the number of encounters staged so far.
func (a *Arena) Count() int { return a.count }

// Encounter lets first and second exchange a memory each. Both carry the
// resulting echo. Returns false when the pair is invalid.
func (a *Arena) Encounter(first, second *entity.Entity) (Encounter, bool) {
	if first == nil || second == nil || first.ID() == second.ID() {
		return Encounter{}, false
	}
	if first.Status() != entity.StatusActive || second.Status() != entity.StatusActive {
		return Encounter{}, false
	}
	a.count++

	echo := sharedEcho(a.recall(first), a.recall(second))
	first.AddMemoryLine(echo)
	second.AddMemoryLine(echo)

	rec := Encounter{
		Seq:       a.count,
		First:     first.ID(),
		Second:    second.ID(),
		Echo:      echo,
		Timestamp: time.Now(),
	}

	if a.count%ReverenceInterval == 0 {
		a.revere(first)
		a.revere(second)
		rec.Reverence = true
	}

	first.Stats.SD += encounterSDGain
	second.Stats.ESS = round2(second.Stats.ESS + encounterESSGain)
	for _, e := range []*entity.Entity{first, second} {
		e.SetDrift(round3(e.Drift() + 0.01 - 0.005*a.Rng.Float64()))
		e.Metadata.Encounters++
	}

	slog.Debug("arena encounter", "first", first.ID(), "second", second.ID(), "echo", echo)
	return rec, true
}

// Session shuffles the active entities and pairs them off, staging at most
// max encounters. Zero max pairs everyone.
func (a *Arena) Session(entities []*entity.Entity, max int) []Encounter {
	var active []*entity.Entity
	for _, e := range entities {
		if e.Status() == entity.StatusActive {
			active = append(active, e)
		}
	}
	active = entropy.Sample(a.Rng, active, len(active))

	var out []Encounter
	for i := 0; i+1 < len(active); i += 2 {
		if max > 0 && len(out) >= max {
			break
		}
		if rec, ok := a.Encounter(active[i], active[i+1]); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (a *Arena) recall(e *entity.Entity) string {
	if len(e.Memory) > 0 {
		return entropy.Pick(a.Rng, e.Memory)
	}
	return e.CurrentMemory
}

func (a *Arena) revere(e *entity.Entity) {
	if len(e.Tokens) == 0 {
		return
	}
	line := fmt.Sprintf("Reverence for token: %s", entropy.Pick(a.Rng, e.Tokens))
	e.Memory = append([]string{line}, e.Memory...)
}

// sharedEcho joins two memories with "and", dropping repeated words and
// capping the length.
func sharedEcho(m1, m2 string) string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(m1 + " and " + m2) {
		key := strings.ToLower(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		words = append(words, w)
	}
	echo := strings.Join(words, " ")
	if r := []rune(echo); len(r) > MaxEchoLength {
		echo = string(r[:MaxEchoLength]) + "..."
	}
	return echo
}
