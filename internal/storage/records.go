// Package storage persists normalized directory records. The sqlite store
// is the primary sink; a JSONL writer covers piping results into other
// tools.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// Store writes runs and records into a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the record store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path must not be empty")
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		records INTEGER NOT NULL DEFAULT 0,
		blocked_units INTEGER NOT NULL DEFAULT 0,
		failed_units INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		source TEXT NOT NULL,
		external_id TEXT,
		first_name TEXT,
		last_name TEXT,
		full_name TEXT,
		organization TEXT,
		city TEXT,
		region TEXT,
		postal_code TEXT,
		phone TEXT,
		email TEXT,
		website TEXT,
		status TEXT,
		profile_url TEXT,
		tags TEXT,
		unit TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_external ON records(source, external_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun inserts a run row and returns its id.
func (s *Store) BeginRun(ctx context.Context, site string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (site, started_at) VALUES (?, ?)`,
		site, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return res.LastInsertId()
}

// SaveRecord appends one normalized record to a run.
func (s *Store) SaveRecord(ctx context.Context, runID int64, unit types.WorkUnit, rec types.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (
			run_id, source, external_id, first_name, last_name, full_name,
			organization, city, region, postal_code, phone, email, website,
			status, profile_url, tags, unit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Source, rec.ExternalID, rec.FirstName, rec.LastName, rec.FullName,
		rec.Organization, rec.City, rec.Region, rec.PostalCode, rec.Phone, rec.Email,
		rec.Website, rec.Status, rec.ProfileURL, strings.Join(rec.Tags, ";"), unit.Label(),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// RunSummary aggregates a finished run.
type RunSummary struct {
	Records      int
	BlockedUnits int
	FailedUnits  int
}

// FinishRun stamps the run's end time and totals.
func (s *Store) FinishRun(ctx context.Context, runID int64, sum RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, records = ?, blocked_units = ?, failed_units = ? WHERE id = ?`,
		time.Now().UTC(), sum.Records, sum.BlockedUnits, sum.FailedUnits, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// CountRecords reports how many records a run persisted.
func (s *Store) CountRecords(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE run_id = ?`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
