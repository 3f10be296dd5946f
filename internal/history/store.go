// Package history persists bootstrap runs to SQLite so `stenv history` can
// show what happened on this machine and when.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"stenv/internal/bootstrap"
	"stenv/internal/logging"
)

// Record is one bootstrap run.
type Record struct {
	ID         string
	EnvName    string
	Package    string
	State      bootstrap.State
	EnvCreated bool
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []bootstrap.StepResult
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore initializes the SQLite database at the given path.
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.StoreDebug("History store opened at %s", path)
	return store, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		env_name TEXT NOT NULL,
		package TEXT NOT NULL,
		state TEXT NOT NULL,
		env_created INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_env ON runs(env_name);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	stepsTable := `
	CREATE TABLE IF NOT EXISTS run_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		ok INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		exit_code INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		output TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_steps_run ON run_steps(run_id);
	`

	for _, stmt := range []string{runsTable, stepsTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists a completed run and its steps.
func (s *Store) RecordRun(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, env_name, package, state, env_created, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EnvName, rec.Package, string(rec.State), boolToInt(rec.EnvCreated),
		rec.Error, rec.StartedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, step := range rec.Steps {
		_, err = tx.Exec(`
			INSERT INTO run_steps (run_id, name, ok, skipped, exit_code, duration_ms, output)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, step.Name, boolToInt(step.OK), boolToInt(step.Skipped),
			step.ExitCode, step.Duration.Milliseconds(), step.Output)
		if err != nil {
			return fmt.Errorf("failed to insert step: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Store("Recorded run %s (env=%s, state=%s, %d steps)",
		rec.ID, rec.EnvName, rec.State, len(rec.Steps))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, env_name, package, state, env_created, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRun returns one run with its steps.
func (s *Store) GetRun(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, env_name, package, state, env_created, error, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT name, ok, skipped, exit_code, duration_ms, output
		FROM run_steps WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step bootstrap.StepResult
		var ok, skipped int
		var durationMs int64
		var output sql.NullString
		if err := rows.Scan(&step.Name, &ok, &skipped, &step.ExitCode, &durationMs, &output); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.OK = ok != 0
		step.Skipped = skipped != 0
		step.Duration = time.Duration(durationMs) * time.Millisecond
		step.Output = output.String
		rec.Steps = append(rec.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LastRun returns the most recent run for an environment, or nil if none.
func (s *Store) LastRun(envName string) (*Record, error) {
	s.mu.RLock()
	row := s.db.QueryRow(`
		SELECT id FROM runs WHERE env_name = ? ORDER BY started_at DESC LIMIT 1`, envName)
	var id string
	err := row.Scan(&id)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}
	return s.GetRun(id)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Record, error) {
	var rec Record
	var state string
	var created int
	var errText sql.NullString
	if err := row.Scan(&rec.ID, &rec.EnvName, &rec.Package, &state, &created,
		&errText, &rec.StartedAt, &rec.FinishedAt); err != nil {
		return rec, err
	}
	rec.State = bootstrap.State(state)
	rec.EnvCreated = created != 0
	rec.Error = errText.String
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
