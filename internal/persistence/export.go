package persistence

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/talgya/echoworld/internal/entity"
)

// Snapshot is the JSON export format.
type Snapshot struct {
	ExportedAt time.Time       `json:"exported_at"`
	Cycle      uint64          `json:"cycle"`
	Profile    entity.Profile  `json:"profile"`
	Entities   []entity.Record `json:"entities"`
}

// WriteSnapshot encodes s as indented JSON.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	if s.ExportedAt.IsZero() {
		s.ExportedAt = time.Now().UTC()
	}
	if s.Entities == nil {
		s.Entities = []entity.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot. A bare JSON array of records is also
// accepted.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var recs []entity.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return Snapshot{Entities: recs}, nil
}

// ExportFile writes the stored population to path.
func (db *DB) ExportFile(path string, profile entity.Profile) (int, error) {
	recs, err := db.LoadRecords("")
	if err != nil {
		return 0, err
	}
	if profile == entity.ProfileSummary {
		for i, rec := range recs {
			recs[i] = entity.FromRecord(rec).ToRecord(entity.ProfileSummary)
		}
	}
	cycle, err := db.LastCycle()
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	if err := WriteSnapshot(f, Snapshot{Cycle: cycle, Profile: profile, Entities: recs}); err != nil {
		return 0, err
	}
	return len(recs), f.Close()
}

// ImportFile loads records from path and upserts them. Existing entities
// with the same id are replaced.
func (db *DB) ImportFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import: %w", err)
	}
	defer f.Close()

	s, err := ReadSnapshot(f)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, rec := range s.Entities {
		// Normalize through the entity so missing fields are defaulted.
		norm := entity.FromRecord(rec).ToRecord(entity.ProfileFull)
		if err := db.UpsertEntity(norm); err != nil {
			return imported, fmt.Errorf("import entity %s: %w", norm.ID, err)
		}
		imported++
	}
	return imported, nil
}
