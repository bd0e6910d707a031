package warden

import "github.com/talgya/echoworld/internal/engine"

// Health levels, least severe first.
const (
	LevelHealthy  = "HEALTHY"
	LevelWatch    = "WATCH"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

// Health holds derived signals computed from a Snapshot.
type Health struct {
	QuarantineRatio float64 // quarantined / population
	AvgDrift        float64
	Deep            int // quarantined at or above the reweave threshold
	Shallow         int // quarantined below it
	Reintegrated    int
	HollowAlerts    int // hollow alerts in the observed window
	Level           string
}

// Triage computes a Health from the snapshot.
func Triage(snap *Snapshot) *Health {
	h := &Health{
		AvgDrift:     snap.Status.AvgDrift,
		Reintegrated: len(snap.Reintegrated),
	}
	if snap.Status.Population > 0 {
		h.QuarantineRatio = float64(snap.Status.Quarantined) / float64(snap.Status.Population)
	}
	for _, e := range snap.Quarantined {
		if e.DriftLevel >= engine.ReweaveMinDrift {
			h.Deep++
		} else {
			h.Shallow++
		}
	}
	for _, a := range snap.Alerts {
		if a.Level == string(engine.LevelHollow) {
			h.HollowAlerts++
		}
	}

	h.Level = LevelHealthy
	switch {
	case h.QuarantineRatio > 0.5 || h.AvgDrift > engine.HollowThreshold:
		h.Level = LevelCritical
	case h.QuarantineRatio > 0.25 || h.HollowAlerts > 5:
		h.Level = LevelWarning
	case h.Deep+h.Shallow+h.Reintegrated > 0:
		h.Level = LevelWatch
	}
	return h
}

// Severe reports whether the level calls for releasing shallow quarantines
// instead of waiting for them to age out.
func (h *Health) Severe() bool {
	return h.Level == LevelWarning || h.Level == LevelCritical
}
