// Package migrate applies the .sqm migrations of a compiled manifest to a
// target database, tracking applied versions with goose.
//
// Migration N upgrades the schema from version N to N+1. goose records the
// highest applied N, so a database at goose version V has schema version
// V+1.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/leapquery/pkg/manifest"
)

// Result is one applied migration.
type Result struct {
	Version  int64
	File     string
	Duration time.Duration
}

// Status is the state of one migration.
type Status struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator runs the migrations of one manifest.
type Migrator struct {
	db         *sql.DB
	dialect    goose.Dialect
	migrations []manifest.Migration
	logger     *slog.Logger
}

// DialectFor returns the goose dialect of a driver backend.
func DialectFor(backend string) (goose.Dialect, error) {
	switch backend {
	case "sqlite":
		return goose.DialectSQLite3, nil
	case "postgres":
		return goose.DialectPostgres, nil
	case "mysql":
		return goose.DialectMySQL, nil
	default:
		return "", fmt.Errorf("migrations are not supported for %q targets", backend)
	}
}

// New returns a migrator for db, opened with the named backend. A nil
// logger discards output.
func New(db *sql.DB, backend string, m *manifest.Manifest, logger *slog.Logger) (*Migrator, error) {
	dialect, err := DialectFor(backend)
	if err != nil {
		return nil, err
	}
	for _, mg := range m.Migrations {
		if mg.Version < 1 {
			return nil, fmt.Errorf("%s: migration versions start at 1", mg.File)
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{db: db, dialect: dialect, migrations: m.Migrations, logger: logger}, nil
}

// provider builds a goose provider whose Go migrations run the manifest
// statements. With baseline set every migration is a no-op, so Up only
// records versions.
func (m *Migrator) provider(baseline bool) (*goose.Provider, error) {
	var gm []*goose.Migration
	for _, mg := range m.migrations {
		var up *goose.GoFunc
		if !baseline {
			up = &goose.GoFunc{RunTx: m.runTx(mg)}
		}
		gm = append(gm, goose.NewGoMigration(int64(mg.Version), up, nil))
	}
	return goose.NewProvider(m.dialect, m.db, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(gm...),
	)
}

func (m *Migrator) runTx(mg manifest.Migration) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		m.logger.Info("applying migration", "file", mg.File, "version", mg.Version)
		for i, stmt := range mg.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s statement %d: %w", mg.File, i+1, err)
			}
		}
		return nil
	}
}

func (m *Migrator) file(version int64) string {
	for _, mg := range m.migrations {
		if int64(mg.Version) == version {
			return mg.File
		}
	}
	return ""
}

// Up applies every pending migration in version order.
func (m *Migrator) Up(ctx context.Context) ([]Result, error) {
	return m.up(ctx, false)
}

// Baseline records every migration as applied without running it, for a
// database whose schema was just created at the current version.
func (m *Migrator) Baseline(ctx context.Context) ([]Result, error) {
	return m.up(ctx, true)
}

func (m *Migrator) up(ctx context.Context, baseline bool) ([]Result, error) {
	if len(m.migrations) == 0 {
		return nil, nil
	}
	p, err := m.provider(baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := p.Up(ctx)
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		out = append(out, Result{Version: r.Source.Version, File: m.file(r.Source.Version), Duration: r.Duration})
	}
	if err != nil {
		return out, fmt.Errorf("failed to run migrations: %w", err)
	}
	return out, nil
}

// Status reports every migration, applied or pending.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	if len(m.migrations) == 0 {
		return nil, nil
	}
	p, err := m.provider(false)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version:   s.Source.Version,
			File:      m.file(s.Source.Version),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// SchemaVersion returns the schema version of the database: one past the
// highest applied migration, 1 when none is applied.
func (m *Migrator) SchemaVersion(ctx context.Context) (int, error) {
	if len(m.migrations) == 0 {
		return 1, nil
	}
	p, err := m.provider(false)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get database version: %w", err)
	}
	return int(v) + 1, nil
}
