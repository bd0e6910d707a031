package warden

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const maxRecords = 10

// CycleRecord captures what happened in a single tend cycle.
type CycleRecord struct {
	Cycle       uint64    `json:"cycle"`
	At          time.Time `json:"at"`
	Level       string    `json:"level"`
	AvgDrift    float64   `json:"avg_drift"`
	Quarantined int       `json:"quarantined"`
	Planned     []Action  `json:"planned,omitempty"`
	Performed   int       `json:"performed"`
	Failed      int       `json:"failed"`
}

// CycleMemory keeps a ring of recent tend records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file. Returns empty memory if it is missing or
// unreadable.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("warden memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to path.
func (m *CycleMemory) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal warden memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write warden memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Worsening reports whether quarantines rose across the last n records.
func (m *CycleMemory) Worsening(n int) bool {
	if n < 2 || len(m.Records) < n {
		return false
	}
	recent := m.Records[len(m.Records)-n:]
	for i := 1; i < len(recent); i++ {
		if recent[i].Quarantined <= recent[i-1].Quarantined {
			return false
		}
	}
	return true
}
