// Simulation ties together the entity systems and runs them each cycle.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
	"github.com/talgya/echoworld/internal/field"
)

// ErrUnknownEntity is returned when an entity id is not in the population.
var ErrUnknownEntity = errors.New("unknown entity")

// History limits.
const (
	MaxEvents  = 1000
	MaxAlerts  = 1000
	MaxReports = 10
)

// Event is a notable occurrence in the population.
type Event struct {
	Cycle       uint64         `json:"cycle"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "drift", "healing", "fusion", "quest", "bloom", "arena", "cascade"
	Meta        map[string]any `json:"meta,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// SimStats tracks aggregate population statistics.
type SimStats struct {
	Population   int     `json:"population"`
	Active       int     `json:"active"`
	Quarantined  int     `json:"quarantined"`
	Reintegrated int     `json:"reintegrated"`
	AvgDrift     float64 `json:"avg_drift"`
	Quarantines  int     `json:"quarantines"`
	Rituals      int     `json:"rituals"`
	Fusions      int     `json:"fusions"`
	Blooms       int     `json:"blooms"`
	Quests       int     `json:"quests_completed"`
	Encounters   int     `json:"encounters"`
	Cascades     int     `json:"cascades"`
}

// CycleReport summarizes one RunCycle call.
type CycleReport struct {
	Cycle           uint64        `json:"cycle"`
	Blooms          int           `json:"blooms"`
	Pruned          int           `json:"pruned"`
	Alerts          int           `json:"alerts"`
	Healing         HealReport    `json:"healing"`
	Fused           []string      `json:"fused,omitempty"`
	QuestsCompleted int           `json:"quests_completed"`
	Encounters      int           `json:"encounters"`
	Cascade         bool          `json:"cascade"`
	Duration        time.Duration `json:"duration"`
}

// Options configures a Simulation. Zero values fall back to defaults.
type Options struct {
	Rng   entropy.Source
	Items entity.ItemGenerator
	Field *field.Resonance

	MaxQuarantinePerCycle int
	MaxFusionsPerCycle    int
	ReleaseAfter          int
	ArenaEncounters       int    // encounters per cycle; 0 disables the arena
	CascadeInterval       uint64 // cycles between cascades; 0 disables
	CascadeDepth          int
	RetireParents         bool // drop fusion parents from the population
}

// Simulation holds the population and the systems acting on it. RunCycle and
// the accessors share one lock so a single writer owns the population.
type Simulation struct {
	mu sync.RWMutex

	entities []*entity.Entity
	index    map[string]*entity.Entity
	events   []Event
	alerts   []Alert
	reports  []CycleReport
	stats    SimStats
	last     uint64

	rng     entropy.Source
	items   entity.ItemGenerator
	opts    Options
	Scanner *DriftScanner
	Healer  *Healer
	Fusion  *FusionEngine
	Quests  *QuestEngine
	Arena   *Arena
	Cascade *Cascade
}

// NewSimulation wires the systems around an initial population. Entities
// already quarantined or reintegrated are entered into the drift ledger.
func NewSimulation(population []*entity.Entity, opts Options) *Simulation {
	if opts.Rng == nil {
		opts.Rng = entropy.NewSeeded(time.Now().UnixNano())
	}
	if opts.Items == nil {
		opts.Items = entity.NewTemplateGenerator(opts.Rng)
	}
	if opts.CascadeDepth <= 0 {
		opts.CascadeDepth = 1
	}

	scanner := NewDriftScanner(opts.Rng)
	if opts.MaxQuarantinePerCycle > 0 {
		scanner.MaxPerCycle = opts.MaxQuarantinePerCycle
	}
	healer := NewHealer(opts.Rng, opts.Items, scanner.Ledger)
	if opts.ReleaseAfter > 0 {
		healer.ReleaseAfter = opts.ReleaseAfter
	}

	s := &Simulation{
		index:   make(map[string]*entity.Entity, len(population)),
		rng:     opts.Rng,
		items:   opts.Items,
		opts:    opts,
		Scanner: scanner,
		Healer:  healer,
		Fusion:  &FusionEngine{Max: opts.MaxFusionsPerCycle},
		Quests:  NewQuestEngine(opts.Rng, opts.Items),
		Arena:   NewArena(opts.Rng),
		Cascade: NewCascade(opts.Rng, opts.Field),
	}
	for _, e := range population {
		s.add(e)
		if e.Status() != entity.StatusActive {
			scanner.Ledger.Add(e.ID())
		}
	}
	s.updateStats()
	return s
}

// LastCycle returns the most recently processed cycle number.
func (s *Simulation) LastCycle() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// SetLastCycle restores the cycle counter after a reload.
func (s *Simulation) SetLastCycle(c uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = c
}

// Add appends an entity to the population.
func (s *Simulation) Add(e *entity.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(e)
	s.updateStats()
}

func (s *Simulation) add(e *entity.Entity) {
	if _, ok := s.index[e.ID()]; ok {
		return
	}
	s.entities = append(s.entities, e)
	s.index[e.ID()] = e
}

// Entities returns a snapshot of the population slice. The entities
// themselves are shared; callers must not mutate them while a cycle runs.
func (s *Simulation) Entities() []*entity.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*entity.Entity(nil), s.entities...)
}

// Records serializes the population under p. An empty status selects all.
func (s *Simulation) Records(p entity.Profile, status entity.Status) []entity.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Record, 0, len(s.entities))
	for _, e := range s.entities {
		if status != "" && e.Status() != status {
			continue
		}
		out = append(out, e.ToRecord(p))
	}
	return out
}

// Record serializes one entity under p.
func (s *Simulation) Record(id string, p entity.Profile) (entity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[id]
	if !ok {
		return entity.Record{}, fmt.Errorf("entity %s: %w", id, ErrUnknownEntity)
	}
	return e.ToRecord(p), nil
}

// Alerts returns the retained drift alerts, oldest first.
func (s *Simulation) Alerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Alert(nil), s.alerts...)
}

// Events returns the retained events, oldest first.
func (s *Simulation) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// Reports returns the recent cycle reports, oldest first.
func (s *Simulation) Reports() []CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CycleReport(nil), s.reports...)
}

// Stats returns the current aggregate statistics.
func (s *Simulation) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// RestoreHistory reloads persisted alerts and events.
func (s *Simulation) RestoreHistory(alerts []Alert, events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = trimTail(append(s.alerts, alerts...), MaxAlerts)
	s.events = trimTail(append(s.events, events...), MaxEvents)
}

// EmitEvent records an event.
func (s *Simulation) EmitEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(ev)
}

func (s *Simulation) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events = trimTail(append(s.events, ev), MaxEvents)
}

// PerformRitual runs the named ritual on one entity.
func (s *Simulation) PerformRitual(id, ritual string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return false, fmt.Errorf("entity %s: %w", id, ErrUnknownEntity)
	}
	done, err := s.Healer.Perform(ritual, e)
	if err != nil {
		return false, err
	}
	if done {
		s.stats.Rituals++
		s.emit(Event{
			Cycle:       s.last,
			Description: fmt.Sprintf("%s performed on %s", ritual, e.Name),
			Category:    "healing",
			Meta:        map[string]any{"entity_id": id, "ritual": ritual, "status": string(e.Status())},
		})
		s.updateStats()
	}
	return done, nil
}

// RunCycle advances every system by one cycle.
func (s *Simulation) RunCycle(cycle uint64) CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.last = cycle
	rep := CycleReport{Cycle: cycle}

	rep.Blooms, rep.Pruned = s.dream(cycle)
	rep.Alerts = s.scan(cycle)
	rep.Healing = s.heal(cycle)
	rep.Fused = s.fuse(cycle)
	rep.QuestsCompleted = s.quest(cycle)
	rep.Encounters = s.encounters(cycle)
	rep.Cascade = s.cascade(cycle)

	s.updateStats()
	rep.Duration = time.Since(start)
	s.reports = trimTail(append(s.reports, rep), MaxReports)

	slog.Info("cycle report",
		"cycle", cycle,
		"population", s.stats.Population,
		"active", s.stats.Active,
		"quarantined", s.stats.Quarantined,
		"reintegrated", s.stats.Reintegrated,
		"avg_drift", fmt.Sprintf("%.3f", s.stats.AvgDrift),
		"alerts", rep.Alerts,
		"rituals", rep.Healing.Total(),
		"fusions", len(rep.Fused),
		"quests", rep.QuestsCompleted,
		"blooms", rep.Blooms,
	)
	return rep
}

// dream evolves dream and emotion state for every entity and prunes memory.
func (s *Simulation) dream(cycle uint64) (blooms, pruned int) {
	for _, e := range s.entities {
		if e.Dream.Evolve(e, s.rng, s.items) {
			blooms++
			// A bloom returns the entity to active outside the healer.
			s.Scanner.Ledger.Remove(e.ID())
			s.emit(Event{
				Cycle:       cycle,
				Description: fmt.Sprintf("%s bloomed: %s", e.Name, e.CurrentMemory),
				Category:    "bloom",
				Meta:        map[string]any{"entity_id": e.ID()},
			})
		}
		e.Emotion.Mutate(s.rng, e.Drift())
		if e.PruneMemory() {
			pruned++
		}
	}
	s.stats.Blooms += blooms
	return blooms, pruned
}

func (s *Simulation) scan(cycle uint64) int {
	alerts := s.Scanner.Scan(s.entities)
	for _, a := range alerts {
		s.emit(Event{
			Cycle:       cycle,
			Description: fmt.Sprintf("%s drift alert for %s", a.Level, s.index[a.EntityID].Name),
			Category:    "drift",
			Meta:        map[string]any{"entity_id": a.EntityID, "level": string(a.Level), "drift": a.Drift},
		})
	}
	s.alerts = trimTail(append(s.alerts, alerts...), MaxAlerts)
	s.stats.Quarantines += len(alerts)
	return len(alerts)
}

func (s *Simulation) heal(cycle uint64) HealReport {
	rep := s.Healer.Cycle(s.entities)
	for _, group := range []struct {
		ritual string
		ids    []string
	}{
		{RitualReweave, rep.Rewoven},
		{RitualHealingEcho, rep.Echoed},
		{RitualRelease, rep.Released},
	} {
		for _, id := range group.ids {
			s.emit(Event{
				Cycle:       cycle,
				Description: fmt.Sprintf("%s performed on %s", group.ritual, s.index[id].Name),
				Category:    "healing",
				Meta:        map[string]any{"entity_id": id, "ritual": group.ritual},
			})
		}
	}
	s.stats.Rituals += rep.Total()
	return rep
}

func (s *Simulation) fuse(cycle uint64) []string {
	// Merged parents kept in the population do not fuse again.
	pool := make([]*entity.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.Metadata.MergedInto == "" {
			pool = append(pool, e)
		}
	}
	children := s.Fusion.RunFusionCycle(pool)
	if len(children) == 0 {
		return nil
	}

	retired := make(map[string]bool)
	ids := make([]string, 0, len(children))
	for _, child := range children {
		for _, pid := range child.Metadata.FusedFrom {
			if p, ok := s.index[pid]; ok {
				p.Metadata.MergedInto = child.ID()
				p.Log("merged", map[string]any{"into": child.ID()})
			}
			retired[pid] = true
		}
		s.add(child)
		ids = append(ids, child.ID())
		s.emit(Event{
			Cycle:       cycle,
			Description: fmt.Sprintf("%s fused from %v", child.Name, child.Metadata.FusedFrom),
			Category:    "fusion",
			Meta: map[string]any{
				"entity_id": child.ID(),
				"parents":   child.Metadata.FusedFrom,
				"score":     child.Metadata.FusionScore,
			},
		})
	}

	if s.opts.RetireParents {
		kept := s.entities[:0]
		for _, e := range s.entities {
			if retired[e.ID()] {
				delete(s.index, e.ID())
				continue
			}
			kept = append(kept, e)
		}
		s.entities = kept
	}
	s.stats.Fusions += len(children)
	return ids
}

func (s *Simulation) quest(cycle uint64) int {
	completed := 0
	for _, e := range s.entities {
		if e.Status() != entity.StatusActive {
			continue
		}
		if s.Quests.ProgressQuest(e) == QuestCompleted {
			completed++
			s.emit(Event{
				Cycle:       cycle,
				Description: fmt.Sprintf("%s completed a quest (%s)", e.Name, e.Tier()),
				Category:    "quest",
				Meta:        map[string]any{"entity_id": e.ID(), "experience": e.Metadata.Experience},
			})
		}
	}
	s.stats.Quests += completed
	return completed
}

func (s *Simulation) encounters(cycle uint64) int {
	if s.opts.ArenaEncounters <= 0 {
		return 0
	}
	recs := s.Arena.Session(s.entities, s.opts.ArenaEncounters)
	for _, r := range recs {
		if r.Reverence {
			s.emit(Event{
				Cycle:       cycle,
				Description: fmt.Sprintf("encounter %d honored its tokens", r.Seq),
				Category:    "arena",
				Meta:        map[string]any{"first": r.First, "second": r.Second},
			})
		}
	}
	s.stats.Encounters += len(recs)
	return len(recs)
}

func (s *Simulation) cascade(cycle uint64) bool {
	if s.opts.CascadeInterval == 0 || cycle%s.opts.CascadeInterval != 0 {
		return false
	}
	shifts := s.Cascade.Run(s.entities, cycle, s.opts.CascadeDepth)
	s.emit(Event{
		Cycle:       cycle,
		Description: fmt.Sprintf("drift cascade swept %d entities", len(s.entities)),
		Category:    "cascade",
		Meta:        map[string]any{"shifts": len(shifts), "depth": s.opts.CascadeDepth},
	})
	s.stats.Cascades++
	return true
}

func (s *Simulation) updateStats() {
	s.stats.Population = len(s.entities)
	s.stats.Active, s.stats.Quarantined, s.stats.Reintegrated = 0, 0, 0
	total := 0.0
	for _, e := range s.entities {
		switch e.Status() {
		case entity.StatusActive:
			s.stats.Active++
		case entity.StatusQuarantined:
			s.stats.Quarantined++
		case entity.StatusReintegrated:
			s.stats.Reintegrated++
		}
		total += e.Drift()
	}
	s.stats.AvgDrift = 0
	if len(s.entities) > 0 {
		s.stats.AvgDrift = round3(total / float64(len(s.entities)))
	}
}

func trimTail[T any](items []T, max int) []T {
	if len(items) > max {
		return items[len(items)-max:]
	}
	return items
}
