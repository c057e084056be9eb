// Package driver defines the contract between the query runtime and a
// database connection: statement execution with optional statement caching,
// cursors with typed accessors, and nested transaction handles confined to
// the task that opened them.
//
// Concrete drivers live in sub packages: sqldriver runs on database/sql and
// logdriver decorates any driver with statement logging.
package driver

import (
	"context"
	"errors"
)

// Sentinel errors shared by drivers and the runtime.
var (
	// ErrThreadConfinement is returned when a transaction handle is used
	// from a task other than the one that opened it.
	ErrThreadConfinement = errors.New("transaction used outside the task that opened it")

	// ErrTransactionState is returned for handles ended out of order,
	// ended twice, or used after they ended.
	ErrTransactionState = errors.New("invalid transaction state")

	// ErrClosed is returned by a closed driver.
	ErrClosed = errors.New("driver is closed")
)

// Driver executes statements against one database.
//
// A nil id, or an id for a statement whose text varies between calls,
// forces the statement to be prepared again. Statements with a stable id may
// be served from the driver's statement cache.
type Driver interface {
	// Execute runs a statement that returns no rows and reports the
	// number of affected rows.
	Execute(ctx context.Context, id *uint32, sql string, params int, binder Binder) (int64, error)

	// ExecuteQuery runs a statement returning rows. The caller closes the
	// cursor.
	ExecuteQuery(ctx context.Context, id *uint32, sql string, params int, binder Binder) (Cursor, error)

	// NewTransaction opens a transaction for the task of ctx. A task that
	// already has one gets a nested handle sharing the physical
	// transaction.
	NewTransaction(ctx context.Context) (*Transaction, error)

	// CurrentTransaction returns the innermost open handle of the task of
	// ctx, or nil.
	CurrentTransaction(ctx context.Context) *Transaction

	// Close releases the connection and the statement cache.
	Close() error
}

// Cursor iterates a result set. The typed getters return nil for NULL.
// Column indexes are 0-based.
type Cursor interface {
	Next() bool
	Long(index int) *int64
	Double(index int) *float64
	String(index int) *string
	Bytes(index int) []byte
	// Err reports the first iteration or conversion error.
	Err() error
	Close() error
}

// PreparedStatement receives parameter values. Indexes are 1-based and a
// nil value binds NULL.
type PreparedStatement interface {
	BindLong(index int, v *int64)
	BindDouble(index int, v *float64)
	BindString(index int, v *string)
	BindBytes(index int, v []byte)
}

// Binder binds the parameters of one execution.
type Binder func(s PreparedStatement) error
