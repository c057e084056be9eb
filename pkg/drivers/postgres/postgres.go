// Package postgres registers the "postgres" driver backend, built on pgx
// through its database/sql adapter.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapquery/pkg/drivers/postgres"
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
)

func init() {
	sqldriver.Register("postgres", Backend{})
}

// Options holds PostgreSQL-specific configuration.
type Options struct {
	// SearchPath is set as the search_path runtime parameter.
	SearchPath string `mapstructure:"search_path"`

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`

	// MaxOpenConns limits the pool (0 is unlimited).
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// Backend opens PostgreSQL databases from a pgx connection string.
type Backend struct{}

// Dialect implements sqldriver.Backend.
func (Backend) Dialect() string { return "postgresql" }

// Open implements sqldriver.Backend.
func (Backend) Open(_ context.Context, cfg sqldriver.Config) (*sql.DB, error) {
	var opts Options
	if err := sqldriver.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	connConfig, err := ConnConfig(cfg.DSN, opts)
	if err != nil {
		return nil, err
	}
	db := stdlib.OpenDB(*connConfig)
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return db, nil
}

// ConnConfig parses dsn and applies the runtime parameters of opts.
func ConnConfig(dsn string, opts Options) (*pgx.ConnConfig, error) {
	c, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if opts.SearchPath != "" {
		c.RuntimeParams["search_path"] = opts.SearchPath
	}
	if opts.ApplicationName != "" {
		c.RuntimeParams["application_name"] = opts.ApplicationName
	}
	return c, nil
}
