// Package history persists one row per finished job in SQLite so outcomes
// survive restarts. Schema changes are goose migrations embedded in the
// binary.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultListLimit caps List when limit <= 0.
const DefaultListLimit = 50

// Entry is one finished job.
type Entry struct {
	JobID      string          `json:"jobId"`
	Kind       model.JobKind   `json:"kind"`
	Target     string          `json:"target"`
	Success    bool            `json:"success"`
	ErrorKind  model.ErrorKind `json:"errorKind,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// EntryFromOutcome builds the history row for an outcome.
func EntryFromOutcome(outcome model.Outcome, target string) Entry {
	entry := Entry{
		JobID:      outcome.JobID,
		Kind:       outcome.Kind,
		Target:     target,
		Success:    outcome.Success,
		ErrorKind:  outcome.ErrorKind(),
		StartedAt:  outcome.Started,
		FinishedAt: outcome.Finished,
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	return entry
}

// Store wraps the history database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection with SQLite.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Migrate runs all pending database migrations using embedded SQL files.
func (s *Store) Migrate() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Record stores one entry. Recording the same job twice keeps the first row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO job_history
			(job_id, kind, target, success, error_kind, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.JobID, string(e.Kind), e.Target, e.Success, string(e.ErrorKind), e.Error,
		e.StartedAt.UnixNano(), e.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", e.JobID, err)
	}
	return nil
}

// List returns the newest entries first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT job_id, kind, target, success, error_kind, error, started_at, finished_at
		FROM job_history
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e                 Entry
			kind, errorKind   string
			started, finished int64
		)
		if err := rows.Scan(&e.JobID, &kind, &e.Target, &e.Success, &errorKind, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Kind = model.JobKind(kind)
		e.ErrorKind = model.ErrorKind(errorKind)
		e.StartedAt = time.Unix(0, started).UTC()
		e.FinishedAt = time.Unix(0, finished).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return entries, nil
}

// Prune deletes entries that finished before cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM job_history WHERE finished_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}
