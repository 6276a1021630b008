// Package storage keeps the experiment registry: one row per trainer
// run (submitted job or collected test) plus its metrics.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// RunKind distinguishes submitted training jobs from collected test
// results.
type RunKind string

const (
	RunKindTrain RunKind = "train"
	RunKindTest  RunKind = "test"
)

// Run is one registry entry.
type Run struct {
	ID        string    `db:"id"`
	Dataset   string    `db:"dataset"`
	Variant   string    `db:"variant"`
	Kind      RunKind   `db:"kind"`
	JobID     int       `db:"job_id"`
	LogFile   string    `db:"log_file"`
	CreatedAt time.Time `db:"created_at"`
}

// Metric is one named value attached to a run.
type Metric struct {
	RunID string `db:"run_id"`
	Name  string `db:"name"`
	Value string `db:"value"`
}

// Store implements the registry on SQLite.
type Store struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewStore opens (and if needed creates) the registry database.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	// WAL so a collect running beside a submit does not block. The
	// pragma reports the resulting mode instead of failing, so read it
	// back; some shared filesystems silently refuse the switch.
	var mode string
	if err := db.Get(&mode, "PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		logger.WithField("journal_mode", mode).Warn("WAL not available; concurrent access may block")
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		variant TEXT NOT NULL,
		kind TEXT NOT NULL,
		job_id INTEGER,
		log_file TEXT,
		created_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS metrics (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (run_id, name),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset, variant);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRun builds a run entry with a fresh id and timestamp.
func NewRun(dataset, variant string, kind RunKind) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Dataset:   dataset,
		Variant:   variant,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// SaveRun inserts or replaces a run entry.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT OR REPLACE INTO runs
		(id, dataset, variant, kind, job_id, log_file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Dataset, run.Variant, run.Kind, run.JobID, run.LogFile, run.CreatedAt)
	return err
}

// SaveMetrics upserts a run's metrics in one transaction.
func (s *Store) SaveMetrics(ctx context.Context, runID string, metrics map[string]string) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT OR REPLACE INTO metrics (run_id, name, value) VALUES (?, ?, ?)`
	for name, value := range metrics {
		if value == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, runID, name, value); err != nil {
			return fmt.Errorf("save metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs for a dataset (all datasets when empty),
// newest first.
func (s *Store) ListRuns(ctx context.Context, dataset string) ([]Run, error) {
	var runs []Run
	var err error
	if dataset == "" {
		err = s.db.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY created_at DESC`)
	} else {
		err = s.db.SelectContext(ctx, &runs,
			`SELECT * FROM runs WHERE dataset = ? ORDER BY created_at DESC`, dataset)
	}
	return runs, err
}

// GetMetrics loads a run's metrics as a name -> value map.
func (s *Store) GetMetrics(ctx context.Context, runID string) (map[string]string, error) {
	var rows []Metric
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id, name, value FROM metrics WHERE run_id = ?`, runID); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, m := range rows {
		out[m.Name] = m.Value
	}
	return out, nil
}
