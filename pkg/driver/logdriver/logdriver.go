// Package logdriver decorates a driver.Driver with statement logging.
package logdriver

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// Driver logs every call before delegating to the wrapped driver.
type Driver struct {
	driver.Driver
	logger *slog.Logger
	level  slog.Level
}

var _ driver.Driver = (*Driver)(nil)

// New wraps d. Records are written at level; a nil logger discards them.
func New(d driver.Driver, logger *slog.Logger, level slog.Level) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{Driver: d, logger: logger, level: level}
}

func (d *Driver) log(ctx context.Context, msg string, args ...any) {
	d.logger.Log(ctx, d.level, msg, args...)
}

// Execute implements driver.Driver.
func (d *Driver) Execute(ctx context.Context, id *uint32, sql string, params int, binder driver.Binder) (int64, error) {
	d.log(ctx, "EXECUTE", d.attrs(sql, params, binder)...)
	return d.Driver.Execute(ctx, id, sql, params, binder)
}

// ExecuteQuery implements driver.Driver.
func (d *Driver) ExecuteQuery(ctx context.Context, id *uint32, sql string, params int, binder driver.Binder) (driver.Cursor, error) {
	d.log(ctx, "QUERY", d.attrs(sql, params, binder)...)
	return d.Driver.ExecuteQuery(ctx, id, sql, params, binder)
}

// NewTransaction implements driver.Driver. Commit and rollback are logged
// once, for the outermost handle.
func (d *Driver) NewTransaction(ctx context.Context) (*driver.Transaction, error) {
	d.log(ctx, "TRANSACTION BEGIN")
	tx, err := d.Driver.NewTransaction(ctx)
	if err != nil {
		return nil, err
	}
	if tx.Enclosing() != nil {
		return tx, nil
	}
	if err := tx.AfterCommit(ctx, func() { d.log(ctx, "TRANSACTION COMMIT") }); err != nil {
		return nil, err
	}
	if err := tx.AfterRollback(ctx, func() { d.log(ctx, "TRANSACTION ROLLBACK") }); err != nil {
		return nil, err
	}
	return tx, nil
}

// Close implements driver.Driver.
func (d *Driver) Close() error {
	d.log(context.Background(), "CLOSE CONNECTION")
	return d.Driver.Close()
}

// attrs runs the binder against a recorder to capture the parameters.
func (d *Driver) attrs(sql string, params int, binder driver.Binder) []any {
	args := []any{"sql", sql}
	if binder == nil || params == 0 {
		return args
	}
	values := make(driver.Values, params)
	if err := binder(&values); err != nil {
		return append(args, "bind_error", err)
	}
	return append(args, "params", []any(values))
}
