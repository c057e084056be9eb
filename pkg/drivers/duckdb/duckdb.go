// Package duckdb registers the "duckdb" driver backend.
//
// DuckDB accepts PostgreSQL-style $N placeholders, so statements are
// compiled with the postgresql dialect.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapquery/pkg/drivers/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	sqldriver.Register("duckdb", Backend{})
}

// Options holds DuckDB-specific configuration.
// Parsed from sqldriver.Config.Options using mapstructure.
type Options struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// Backend opens DuckDB databases. An empty DSN opens an in-memory
// database.
type Backend struct{}

// Dialect implements sqldriver.Backend.
func (Backend) Dialect() string { return "postgresql" }

// Open implements sqldriver.Backend.
func (Backend) Open(ctx context.Context, cfg sqldriver.Config) (*sql.DB, error) {
	var opts Options
	if err := sqldriver.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	// Settings are per connection.
	db.SetMaxOpenConns(1)
	for _, stmt := range Setup(opts) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("duckdb setup %q: %w", stmt, err)
		}
	}
	return db, nil
}

// Setup returns the statements applying opts, extensions first and
// settings in key order.
func Setup(opts Options) []string {
	var out []string
	for _, ext := range opts.Extensions {
		out = append(out, fmt.Sprintf("INSTALL %s", ext), fmt.Sprintf("LOAD %s", ext))
	}
	for _, key := range slices.Sorted(maps.Keys(opts.Settings)) {
		out = append(out, fmt.Sprintf("SET %s = '%s'", key, opts.Settings[key]))
	}
	return out
}
