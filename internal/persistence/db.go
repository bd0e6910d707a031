// Package persistence provides SQLite-based population storage and JSON
// export/import.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/talgya/echoworld/internal/engine"
	"github.com/talgya/echoworld/internal/entity"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Metadata keys.
const (
	MetaLastCycle = "last_cycle"
	MetaSavedAt   = "saved_at"
	MetaSeed      = "seed"
)

// DB wraps a SQLite connection for population persistence.
type DB struct {
	conn *sqlx.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{
		conn:    conn,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) newID(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), db.entropy).String()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		archetype TEXT NOT NULL,
		status TEXT NOT NULL,
		drift REAL NOT NULL,
		record_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		level TEXT NOT NULL,
		drift REAL NOT NULL,
		coherence REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		cycle INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status);
	CREATE INDEX IF NOT EXISTS idx_events_cycle ON events(cycle);
	CREATE INDEX IF NOT EXISTS idx_alerts_entity ON alerts(entity_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type entityRow struct {
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	Archetype  string  `db:"archetype"`
	Status     string  `db:"status"`
	Drift      float64 `db:"drift"`
	RecordJSON string  `db:"record_json"`
	UpdatedAt  string  `db:"updated_at"`
}

// SaveEntities writes all records to the database (full replace).
func (db *DB) SaveEntities(records []entity.Record) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entities"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO entities
		(id, name, archetype, status, drift, record_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", rec.ID, err)
		}
		_, err = stmt.Exec(rec.ID, rec.Name, rec.Archetype, string(rec.Status), rec.DriftLevel, string(data), now)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertEntity writes a single record. An existing row is updated in place
// and keeps its position in load order.
func (db *DB) UpsertEntity(rec entity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", rec.ID, err)
	}
	_, err = db.conn.Exec(`INSERT INTO entities
		(id, name, archetype, status, drift, record_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			archetype = excluded.archetype,
			status = excluded.status,
			drift = excluded.drift,
			record_json = excluded.record_json,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Name, rec.Archetype, string(rec.Status), rec.DriftLevel, string(data),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LoadRecords returns every stored record in insert order. An empty status
// selects all.
func (db *DB) LoadRecords(status entity.Status) ([]entity.Record, error) {
	query := "SELECT * FROM entities"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY rowid"

	var rows []entityRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]entity.Record, 0, len(rows))
	for _, r := range rows {
		var rec entity.Record
		if err := json.Unmarshal([]byte(r.RecordJSON), &rec); err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", r.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadEntities rebuilds every stored entity.
func (db *DB) LoadEntities() ([]*entity.Entity, error) {
	recs, err := db.LoadRecords("")
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, entity.FromRecord(rec))
	}
	return out, nil
}

// GetRecord returns one stored record.
func (db *DB) GetRecord(id string) (entity.Record, error) {
	var data string
	err := db.conn.Get(&data, "SELECT record_json FROM entities WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Record{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return entity.Record{}, err
	}
	var rec entity.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return entity.Record{}, fmt.Errorf("decode entity %s: %w", id, err)
	}
	return rec, nil
}

// CountByStatus returns the number of stored entities per status.
func (db *DB) CountByStatus() (map[entity.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := db.conn.Select(&rows, "SELECT status, COUNT(*) AS n FROM entities GROUP BY status"); err != nil {
		return nil, err
	}
	out := make(map[entity.Status]int, len(rows))
	for _, r := range rows {
		out[entity.Status(r.Status)] = r.N
	}
	return out, nil
}

// SaveAlerts replaces the stored alerts with the given window.
func (db *DB) SaveAlerts(alerts []engine.Alert) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM alerts"); err != nil {
		return err
	}
	for _, a := range alerts {
		_, err := tx.Exec(
			"INSERT INTO alerts (id, entity_id, level, drift, coherence, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			db.newID(a.Timestamp), a.EntityID, string(a.Level), a.Drift, a.Coherence,
			a.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert alert for %s: %w", a.EntityID, err)
		}
	}

	return tx.Commit()
}

// LoadAlerts returns the stored alerts, oldest first.
func (db *DB) LoadAlerts() ([]engine.Alert, error) {
	var rows []struct {
		EntityID  string  `db:"entity_id"`
		Level     string  `db:"level"`
		Drift     float64 `db:"drift"`
		Coherence float64 `db:"coherence"`
		CreatedAt string  `db:"created_at"`
	}
	err := db.conn.Select(&rows,
		"SELECT entity_id, level, drift, coherence, created_at FROM alerts ORDER BY rowid")
	if err != nil {
		return nil, err
	}

	out := make([]engine.Alert, 0, len(rows))
	for _, r := range rows {
		ts, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		out = append(out, engine.Alert{
			Event:     "drift_alert",
			EntityID:  r.EntityID,
			Level:     engine.AlertLevel(r.Level),
			Drift:     r.Drift,
			Coherence: r.Coherence,
			Timestamp: ts,
		})
	}
	return out, nil
}

// SaveEvents replaces the stored events with the given window.
func (db *DB) SaveEvents(events []engine.Event) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return err
	}
	for _, e := range events {
		var meta []byte
		if len(e.Meta) > 0 {
			if meta, err = json.Marshal(e.Meta); err != nil {
				return fmt.Errorf("encode event meta: %w", err)
			}
		}
		_, err := tx.Exec(
			"INSERT INTO events (id, cycle, description, category, meta_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			db.newID(e.Timestamp), e.Cycle, e.Description, e.Category, string(meta),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	Cycle       uint64         `db:"cycle"`
	Description string         `db:"description"`
	Category    string         `db:"category"`
	MetaJSON    sql.NullString `db:"meta_json"`
	CreatedAt   string         `db:"created_at"`
}

func (r eventRow) event() engine.Event {
	ev := engine.Event{Cycle: r.Cycle, Description: r.Description, Category: r.Category}
	ev.Timestamp, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	if r.MetaJSON.Valid && r.MetaJSON.String != "" {
		_ = json.Unmarshal([]byte(r.MetaJSON.String), &ev.Meta)
	}
	return ev
}

// LoadEvents returns the stored events, oldest first.
func (db *DB) LoadEvents() ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT cycle, description, category, meta_json, created_at FROM events ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.event())
	}
	return out, nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT cycle, description, category, meta_json, created_at FROM events ORDER BY rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.event())
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}

// LastCycle returns the last saved cycle, or 0 for a fresh database.
func (db *DB) LastCycle() (uint64, error) {
	v, err := db.GetMeta(MetaLastCycle)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", MetaLastCycle, err)
	}
	return n, nil
}

// SaveState performs a full save of the simulation.
func (db *DB) SaveState(sim *engine.Simulation) error {
	records := sim.Records(entity.ProfileFull, "")
	slog.Info("saving population", "entities", len(records), "cycle", sim.LastCycle())

	if err := db.SaveEntities(records); err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	if err := db.SaveAlerts(sim.Alerts()); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}
	if err := db.SaveEvents(sim.Events()); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta(MetaLastCycle, strconv.FormatUint(sim.LastCycle(), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta(MetaSavedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("population saved")
	return nil
}

// LoadState builds a simulation from the stored population and history.
func (db *DB) LoadState(opts engine.Options) (*engine.Simulation, error) {
	ents, err := db.LoadEntities()
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	alerts, err := db.LoadAlerts()
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	events, err := db.LoadEvents()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	last, err := db.LastCycle()
	if err != nil {
		return nil, err
	}

	sim := engine.NewSimulation(ents, opts)
	sim.RestoreHistory(alerts, events)
	sim.SetLastCycle(last)
	slog.Info("population loaded", "entities", len(ents), "cycle", last)
	return sim, nil
}
