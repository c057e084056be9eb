// Package mysql registers the "mysql" driver backend, built on
// go-sql-driver/mysql.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapquery/pkg/drivers/mysql"
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"
)

func init() {
	sqldriver.Register("mysql", Backend{})
}

// Options holds MySQL-specific configuration.
type Options struct {
	// ParseTime scans DATE and DATETIME into time.Time.
	ParseTime bool `mapstructure:"parse_time"`

	// Timeout is the dial timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxOpenConns limits the pool (0 is unlimited).
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// Backend opens MySQL databases from a go-sql-driver DSN.
type Backend struct{}

// Dialect implements sqldriver.Backend.
func (Backend) Dialect() string { return "mysql" }

// Open implements sqldriver.Backend.
func (Backend) Open(_ context.Context, cfg sqldriver.Config) (*sql.DB, error) {
	var opts Options
	if err := sqldriver.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	c, err := DriverConfig(cfg.DSN, opts)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return db, nil
}

// DriverConfig parses dsn and applies opts.
func DriverConfig(dsn string, opts Options) (*mysql.Config, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	c.ParseTime = c.ParseTime || opts.ParseTime
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}
	return c, nil
}
