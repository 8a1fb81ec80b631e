// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists grading runs and per-testcase results with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			tests_dir TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

		CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			passed INTEGER NOT NULL,
			exit_code INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			diff TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, name),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Debug("closing SQLite store")
	return s.db.Close()
}

// SaveRun stores a run and all of its results in one transaction.
// Returns ErrDuplicateRun if a run with the same ID exists.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, tests_dir, started_at, finished_at)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.TestsDir,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateRun
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, res := range run.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (run_id, name, passed, exit_code, duration_ms, diff)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			res.Name,
			res.Passed,
			res.ExitCode,
			res.Duration.Milliseconds(),
			res.Diff,
		)
		if err != nil {
			return fmt.Errorf("inserting result %s: %w", res.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}

	s.logger.Debug("saved run", "id", run.ID, "results", len(run.Results))
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// GetRun retrieves a run with its results ordered by testcase name.
// Returns ErrNotFound if the run doesn't exist.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var startedAtStr, finishedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, tests_dir, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.TestsDir, &startedAtStr, &finishedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	if run.StartedAt, err = time.Parse(timeLayout, startedAtStr); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finishedAtStr); err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, passed, exit_code, duration_ms, diff
		FROM results
		WHERE run_id = ?
		ORDER BY name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res Result
		var durationMs int64
		if err := rows.Scan(&res.Name, &res.Passed, &res.ExitCode, &durationMs, &res.Diff); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		res.Duration = time.Duration(durationMs) * time.Millisecond
		run.Results = append(run.Results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}

	return &run, nil
}

// ListRuns returns the most recent runs first, with pass counts.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT r.id, r.tests_dir, r.started_at, r.finished_at,
			COALESCE(SUM(res.passed), 0), COUNT(res.name)
		FROM runs r
		LEFT JOIN results res ON res.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		var sum RunSummary
		var startedAtStr, finishedAtStr string

		if err := rows.Scan(
			&sum.ID,
			&sum.TestsDir,
			&startedAtStr,
			&finishedAtStr,
			&sum.Passed,
			&sum.Total,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}

		sum.StartedAt, err = time.Parse(timeLayout, startedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		sum.FinishedAt, err = time.Parse(timeLayout, finishedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}

		runs = append(runs, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}

	return runs, nil
}
