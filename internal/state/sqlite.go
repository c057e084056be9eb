package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance. A nil logger
// discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// RecordRun stores run and its file hashes in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	s.logger.Debug("recording compile run", slog.String("id", run.ID), slog.Int("files", len(run.Files)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO compile_runs (id, started_at, duration_ms, dialect, schema_version, statements, diagnostics)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.Dialect,
		run.SchemaVersion, run.Statements, run.Diagnostics,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	for _, f := range run.Files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_hashes (run_id, path, hash) VALUES (?, ?, ?)`,
			run.ID, f.Path, f.Hash,
		); err != nil {
			return fmt.Errorf("failed to record hash of %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, started_at, duration_ms, dialect, schema_version, statements, diagnostics`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		run       Run
		startedAt int64
		duration  int64
	)
	if err := row.Scan(&run.ID, &startedAt, &duration, &run.Dialect, &run.SchemaVersion, &run.Statements, &run.Diagnostics); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	run.Duration = time.Duration(duration) * time.Millisecond
	return &run, nil
}

// Runs returns the most recent runs first, without file hashes.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM compile_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM compile_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if err := s.loadFiles(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun retrieves the most recent run with its file hashes.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil // No runs found, return nil without error
	}
	if err := s.loadFiles(ctx, runs[0]); err != nil {
		return nil, err
	}
	return runs[0], nil
}

func (s *SQLiteStore) loadFiles(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, hash FROM file_hashes WHERE run_id = ? ORDER BY path`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to get file hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var f FileHash
		if err := rows.Scan(&f.Path, &f.Hash); err != nil {
			return fmt.Errorf("failed to scan file hash: %w", err)
		}
		run.Files = append(run.Files, f)
	}
	return rows.Err()
}
