// Package sqlite registers the "sqlite" driver backend, built on the pure Go
// modernc.org/sqlite driver.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapquery/pkg/drivers/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/driver/sqldriver"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	sqldriver.Register("sqlite", Backend{})
}

// Options holds SQLite-specific configuration.
// Parsed from sqldriver.Config.Options using mapstructure.
type Options struct {
	// ForeignKeys enables foreign key enforcement (default true).
	ForeignKeys *bool `mapstructure:"foreign_keys"`

	// JournalMode sets the journal mode, e.g. "wal".
	JournalMode string `mapstructure:"journal_mode"`

	// BusyTimeout is how long a locked database is retried.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// Backend opens SQLite databases. An empty DSN opens a private in-memory
// database.
type Backend struct{}

// Dialect implements sqldriver.Backend.
func (Backend) Dialect() string { return "sqlite" }

// Open implements sqldriver.Backend.
func (Backend) Open(_ context.Context, cfg sqldriver.Config) (*sql.DB, error) {
	var opts Options
	if err := sqldriver.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	path := cfg.DSN
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if isMemory(path) {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// DSN appends the pragmas of opts to path.
func DSN(path string, opts Options) string {
	q := url.Values{}
	if opts.ForeignKeys == nil || *opts.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if opts.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", opts.JournalMode))
	}
	if opts.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if len(q) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
