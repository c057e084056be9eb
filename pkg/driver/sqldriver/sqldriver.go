// Package sqldriver implements driver.Driver on database/sql.
//
// Statements with a stable id are prepared once and kept in a per-driver LRU
// cache. Backends (sqlite, postgres, mysql, duckdb) register a constructor
// for the *sql.DB through the registry in this package.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// DefaultCacheSize is the number of prepared statements kept per driver.
const DefaultCacheSize = 20

// Driver runs statements on a *sql.DB.
type Driver struct {
	db     *sql.DB
	logger *slog.Logger
	txs    driver.Transactions

	mu     sync.Mutex // guards cache take and put
	cache  *lru.Cache[uint32, *cached]
	closed bool
}

var _ driver.Driver = (*Driver)(nil)

type cached struct {
	stmt  *sql.Stmt
	taken bool // removed from the cache for use, not evicted
}

// Option configures a Driver.
type Option func(*Driver) error

// WithCacheSize sets the statement cache capacity.
func WithCacheSize(size int) Option {
	return func(d *Driver) error {
		if size <= 0 {
			size = DefaultCacheSize
		}
		c, err := lru.NewWithEvict(size, func(_ uint32, c *cached) {
			if !c.taken {
				_ = c.stmt.Close()
			}
		})
		if err != nil {
			return fmt.Errorf("create statement cache: %w", err)
		}
		d.cache = c
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}

// New wraps an open database.
func New(db *sql.DB, opts ...Option) (*Driver, error) {
	d := &Driver{db: db, logger: slog.New(slog.DiscardHandler)}
	opts = append([]Option{WithCacheSize(DefaultCacheSize)}, opts...)
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// DB returns the underlying database.
func (d *Driver) DB() *sql.DB { return d.db }

// CacheLen returns the number of cached statements.
func (d *Driver) CacheLen() int { return d.cache.Len() }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execute implements driver.Driver.
func (d *Driver) Execute(ctx context.Context, id *uint32, query string, params int, binder driver.Binder) (int64, error) {
	args, err := bindArgs(params, binder)
	if err != nil {
		return 0, err
	}
	var res sql.Result
	err = d.run(ctx, id, query, func(stmt *sql.Stmt, conn execer) error {
		var err error
		if stmt != nil {
			res, err = stmt.ExecContext(ctx, args...)
		} else {
			res, err = conn.ExecContext(ctx, query, args...)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some backends cannot count affected rows.
		return 0, nil //nolint:nilerr
	}
	return n, nil
}

// ExecuteQuery implements driver.Driver.
func (d *Driver) ExecuteQuery(ctx context.Context, id *uint32, query string, params int, binder driver.Binder) (driver.Cursor, error) {
	args, err := bindArgs(params, binder)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	err = d.run(ctx, id, query, func(stmt *sql.Stmt, conn execer) error {
		var err error
		if stmt != nil {
			rows, err = stmt.QueryContext(ctx, args...) //nolint:sqlclosecheck // closed by the cursor
		} else {
			rows, err = conn.QueryContext(ctx, query, args...) //nolint:sqlclosecheck // closed by the cursor
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return newCursor(rows)
}

// run executes fn with a cached statement when id is set, or directly on
// the connection otherwise. Inside a transaction the work runs on the
// physical transaction of the caller's task.
func (d *Driver) run(ctx context.Context, id *uint32, query string, fn func(*sql.Stmt, execer) error) error {
	if d.isClosed() {
		return driver.ErrClosed
	}
	var conn execer = d.db
	var tx *sql.Tx
	if cur := d.txs.Current(ctx); cur != nil {
		tx, _ = cur.Physical().(*sql.Tx)
		if tx != nil {
			conn = tx
		}
	}
	if id == nil {
		return fn(nil, conn)
	}

	c, ok := d.take(*id)
	if !ok {
		if tx != nil {
			// Preparing on the pool would wait for the connection the
			// transaction holds.
			return fn(nil, conn)
		}
		stmt, err := d.db.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		d.logger.Debug("prepared statement", "id", *id)
		c = &cached{stmt: stmt, taken: true}
	}
	defer d.put(*id, c)

	stmt := c.stmt
	if tx != nil {
		// Closed by database/sql when the transaction ends.
		stmt = tx.StmtContext(ctx, stmt) //nolint:sqlclosecheck
	}
	return fn(stmt, conn)
}

// take removes a cached statement from the cache while it is in use.
func (d *Driver) take(id uint32) (*cached, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cache.Peek(id)
	if ok {
		c.taken = true
		d.cache.Remove(id)
	}
	return c, ok
}

// put returns a statement to the cache, closing any statement cached under
// the same id in the meantime.
func (d *Driver) put(id uint32, c *cached) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		_ = c.stmt.Close()
		return
	}
	d.cache.Remove(id)
	c.taken = false
	d.cache.Add(id, c)
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// NewTransaction implements driver.Driver.
func (d *Driver) NewTransaction(ctx context.Context) (*driver.Transaction, error) {
	if d.isClosed() {
		return nil, driver.ErrClosed
	}
	if d.txs.Current(ctx) != nil {
		return d.txs.Begin(ctx, nil, nil), nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return d.txs.Begin(ctx, tx, func(commit bool) error {
		if commit {
			return tx.Commit()
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return err
		}
		return nil
	}), nil
}

// CurrentTransaction implements driver.Driver.
func (d *Driver) CurrentTransaction(ctx context.Context) *driver.Transaction {
	return d.txs.Current(ctx)
}

// Close evicts every cached statement and closes the database.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cache.Purge()
	d.mu.Unlock()

	d.logger.Debug("closing database connection")
	return d.db.Close()
}

func bindArgs(params int, binder driver.Binder) ([]any, error) {
	args := make(driver.Values, params)
	if binder == nil {
		return args, nil
	}
	if err := binder(&args); err != nil {
		return nil, err
	}
	return args, nil
}
