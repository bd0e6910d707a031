package warden

import (
	"sort"

	"github.com/talgya/echoworld/internal/engine"
)

// Action is one ritual the warden intends to perform.
type Action struct {
	EntityID string  `json:"entity"`
	Name     string  `json:"name"`
	Ritual   string  `json:"ritual"`
	Drift    float64 `json:"drift"`
}

// Decide picks at most max rituals: reweave deep quarantines first (highest
// drift first), then soothe reintegrated entities, then, only when health is
// severe, release shallow quarantines. max <= 0 means no limit.
func Decide(snap *Snapshot, h *Health, max int) []Action {
	var reweave, release []Action
	for _, e := range snap.Quarantined {
		a := Action{EntityID: e.ID, Name: e.Name, Drift: e.DriftLevel}
		if e.DriftLevel >= engine.ReweaveMinDrift {
			a.Ritual = engine.RitualReweave
			reweave = append(reweave, a)
		} else if h.Severe() {
			a.Ritual = engine.RitualRelease
			release = append(release, a)
		}
	}

	echo := make([]Action, 0, len(snap.Reintegrated))
	for _, e := range snap.Reintegrated {
		echo = append(echo, Action{EntityID: e.ID, Name: e.Name, Ritual: engine.RitualHealingEcho, Drift: e.DriftLevel})
	}

	byDrift := func(as []Action) {
		sort.SliceStable(as, func(i, j int) bool { return as[i].Drift > as[j].Drift })
	}
	byDrift(reweave)
	byDrift(echo)
	byDrift(release)

	out := append(append(reweave, echo...), release...)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
