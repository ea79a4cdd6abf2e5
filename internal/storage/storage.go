// Package storage keeps completed voiding events, processed sample records and
// advisory results in SQLite so history survives restarts.
//
// Each row carries its full JSON payload plus the indexed columns queries filter
// on. Rotation keeps the newest max rows per table and is run by the caller.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/uroflow/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	device_id    TEXT NOT NULL,
	start_ns     INTEGER NOT NULL,
	total_volume REAL NOT NULL,
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_device_start ON events(device_id, start_ns);

CREATE TABLE IF NOT EXISTS records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	device_id   TEXT NOT NULL,
	received_ns INTEGER NOT NULL,
	risk_level  TEXT NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_device ON records(device_id, seq);

CREATE TABLE IF NOT EXISTS advisories (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id    TEXT NOT NULL,
	generated_ns INTEGER NOT NULL,
	payload      TEXT NOT NULL
);
`

// Storage is a SQLite-backed history store. It is safe for concurrent use.
type Storage struct {
	db *sql.DB

	// Configuration
	maxEvents  int
	maxRecords int
	path       string
}

// New opens (or creates) the database at dbPath. ":memory:" gives a private
// in-memory database.
func New(maxEvents, maxRecords int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "uroflow", "uroflow.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: in-memory databases are per connection, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Storage{
		db:         db,
		maxEvents:  maxEvents,
		maxRecords: maxRecords,
		path:       dbPath,
	}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *Storage) Path() string {
	return s.path
}

// ─── Events ───

// AddEvent stores a completed event. Re-adding the same ID replaces the row,
// so replays are idempotent.
func (s *Storage) AddEvent(event *models.VoidingEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if event.IsOpen() {
		return fmt.Errorf("invalid event: %s is still open", event.ID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO events (id, device_id, start_ns, total_volume, payload)
		VALUES (?, ?, ?, ?, ?)
	`, event.ID, event.DeviceID, event.StartTime.UnixNano(), event.TotalVolume, string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvents returns every stored event of a device, oldest first.
// An empty deviceID returns events of all devices.
func (s *Storage) GetEvents(deviceID string) ([]models.VoidingEvent, error) {
	return s.GetEventsSince(deviceID, time.Time{})
}

// GetEventsSince returns events starting at or after since, oldest first.
func (s *Storage) GetEventsSince(deviceID string, since time.Time) ([]models.VoidingEvent, error) {
	var sinceNs int64
	if !since.IsZero() {
		sinceNs = since.UnixNano()
	}
	rows, err := s.db.Query(`
		SELECT payload FROM events
		WHERE (? = '' OR device_id = ?) AND start_ns >= ?
		ORDER BY start_ns ASC, id ASC
	`, deviceID, deviceID, sinceNs)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

// GetRecentEvents returns at most limit events, newest first.
func (s *Storage) GetRecentEvents(deviceID string, limit int) ([]models.VoidingEvent, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM events
		WHERE (? = '' OR device_id = ?)
		ORDER BY start_ns DESC, id DESC
		LIMIT ?
	`, deviceID, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.VoidingEvent, error) {
	defer rows.Close()

	events := []models.VoidingEvent{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e models.VoidingEvent
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of stored events.
func (s *Storage) CountEvents() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// RotateEvents removes the oldest events beyond the configured maximum.
func (s *Storage) RotateEvents() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM events WHERE id NOT IN (
			SELECT id FROM events ORDER BY start_ns DESC, id DESC LIMIT ?
		)
	`, s.maxEvents)
	if err != nil {
		return 0, fmt.Errorf("rotate events: %w", err)
	}
	return res.RowsAffected()
}

// ─── Records ───

// AddRecord stores a processed sample record.
func (s *Storage) AddRecord(record *models.SampleRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO records (id, device_id, received_ns, risk_level, payload)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.DeviceID, record.ReceivedAt.UnixNano(), string(record.Assessment.RiskLevel), string(payload))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// GetRecentRecords returns at most limit records, newest first.
// An empty deviceID spans all devices.
func (s *Storage) GetRecentRecords(deviceID string, limit int) ([]models.SampleRecord, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM records
		WHERE (? = '' OR device_id = ?)
		ORDER BY seq DESC
		LIMIT ?
	`, deviceID, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []models.SampleRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var r models.SampleRecord
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestRecord returns the most recently stored record.
func (s *Storage) LatestRecord(deviceID string) (*models.SampleRecord, error) {
	records, err := s.GetRecentRecords(deviceID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// CountRecords returns the number of stored records.
func (s *Storage) CountRecords() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// RotateRecords removes the oldest records beyond the configured maximum.
func (s *Storage) RotateRecords() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM records WHERE seq NOT IN (
			SELECT seq FROM records ORDER BY seq DESC LIMIT ?
		)
	`, s.maxRecords)
	if err != nil {
		return 0, fmt.Errorf("rotate records: %w", err)
	}
	return res.RowsAffected()
}

// DeviceStatuses summarises every device that has uploaded a sample.
func (s *Storage) DeviceStatuses() ([]models.DeviceStatus, error) {
	rows, err := s.db.Query(`
		SELECT r.device_id, r.received_ns, r.risk_level, c.n
		FROM records r
		JOIN (
			SELECT device_id, MAX(seq) AS last_seq, COUNT(*) AS n
			FROM records GROUP BY device_id
		) c ON r.seq = c.last_seq
		ORDER BY r.device_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query device statuses: %w", err)
	}
	defer rows.Close()

	statuses := []models.DeviceStatus{}
	for rows.Next() {
		var st models.DeviceStatus
		var receivedNs int64
		var risk string
		if err := rows.Scan(&st.DeviceID, &receivedNs, &risk, &st.SampleCount); err != nil {
			return nil, fmt.Errorf("scan device status: %w", err)
		}
		st.LastSeen = time.Unix(0, receivedNs).UTC()
		st.LastRisk = models.RiskLevel(risk)
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// ─── Advisories ───

// SaveAdvisory stores an advisory result for a device.
func (s *Storage) SaveAdvisory(deviceID string, adv *models.AdvisoryResult) error {
	if adv == nil {
		return errors.New("advisory must not be nil")
	}
	payload, err := json.Marshal(adv)
	if err != nil {
		return fmt.Errorf("failed to marshal advisory: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO advisories (device_id, generated_ns, payload) VALUES (?, ?, ?)
	`, deviceID, adv.GeneratedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("insert advisory: %w", err)
	}
	_, err = s.db.Exec(`
		DELETE FROM advisories WHERE seq NOT IN (
			SELECT seq FROM advisories ORDER BY seq DESC LIMIT ?
		)
	`, s.maxRecords)
	if err != nil {
		return fmt.Errorf("rotate advisories: %w", err)
	}
	return nil
}

// LatestAdvisory returns the most recently saved advisory of any device.
func (s *Storage) LatestAdvisory() (*models.AdvisoryResult, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM advisories ORDER BY seq DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query advisory: %w", err)
	}
	var adv models.AdvisoryResult
	if err := json.Unmarshal([]byte(payload), &adv); err != nil {
		return nil, fmt.Errorf("decode advisory: %w", err)
	}
	return &adv, nil
}
