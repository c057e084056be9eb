package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// Tx is the handle given to a transaction body.
type Tx struct {
	*driver.Transaction
}

// Rollback returns ErrRollback. A body returning it rolls the transaction
// back and the helper reports success.
func (tx Tx) Rollback(ctx context.Context) error {
	if err := tx.Check(ctx); err != nil {
		return err
	}
	return ErrRollback
}

// TxOption configures Begin.
type TxOption func(*txOptions)

type txOptions struct {
	noEnclosing bool
}

// NoEnclosing makes Begin fail with ErrTransactionState when the task
// already has an open transaction.
func NoEnclosing() TxOption {
	return func(o *txOptions) { o.noEnclosing = true }
}

// Transacter opens and ends transactions and sends the change
// notifications of committed work.
type Transacter struct {
	driver   driver.Driver
	registry *Registry
	logger   *slog.Logger
}

// NewTransacter returns a transacter notifying queries of r. A nil logger
// discards output.
func NewTransacter(d driver.Driver, r *Registry, logger *slog.Logger) *Transacter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transacter{driver: d, registry: r, logger: logger}
}

// Registry returns the registry notified on commit.
func (t *Transacter) Registry() *Registry { return t.registry }

// Begin opens a transaction for the task of ctx, nested in the current
// one unless NoEnclosing forbids it.
func (t *Transacter) Begin(ctx context.Context, opts ...TxOption) (*driver.Transaction, error) {
	var o txOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.noEnclosing && t.driver.CurrentTransaction(ctx) != nil {
		return nil, fmt.Errorf("%w: already in a transaction", ErrTransactionState)
	}
	return t.driver.NewTransaction(ctx)
}

// End ends tx, first marking it successful when successful is set. When
// tx is the outermost handle the physical transaction finishes: on commit
// the after-commit hooks run in registration order and then every query
// dirtied inside the transaction is notified in one batch; on rollback
// only the rollback hooks run.
func (t *Transacter) End(ctx context.Context, tx *driver.Transaction, successful bool) error {
	c, err := tx.EndWith(ctx, successful)
	if !c.Outermost {
		return err
	}

	if !c.Committed {
		for _, fn := range c.AfterRollback {
			fn()
		}
		t.logger.Debug("transaction rolled back", "task", tx.Task())
		return err
	}

	for _, fn := range c.AfterCommit {
		fn()
	}
	var dirty []uint32
	for _, fn := range c.Queries {
		dirty = append(dirty, fn()...)
	}
	t.logger.Debug("transaction committed", "task", tx.Task(), "dirty", len(dirty))
	t.registry.Notify(dirty...)
	return err
}

// Transaction runs body in a transaction. The transaction commits when
// body returns nil and rolls back otherwise; returning ErrRollback (see
// Tx.Rollback) rolls back without an error. A panic in body rolls back
// and is re-raised.
func (t *Transacter) Transaction(ctx context.Context, body func(ctx context.Context, tx Tx) error, opts ...TxOption) error {
	_, err := TransactionWithResult(ctx, t, func(ctx context.Context, tx Tx) (struct{}, error) {
		return struct{}{}, body(ctx, tx)
	}, opts...)
	return err
}

// TransactionWithResult is Transaction for a body producing a value. On
// ErrRollback the value returned by body is returned with a nil error.
func TransactionWithResult[R any](ctx context.Context, t *Transacter, body func(ctx context.Context, tx Tx) (R, error), opts ...TxOption) (result R, err error) {
	tx, err := t.Begin(ctx, opts...)
	if err != nil {
		return result, err
	}

	ended := false
	defer func() {
		if p := recover(); p != nil {
			if !ended {
				_ = t.End(ctx, tx, false)
			}
			panic(p)
		}
	}()

	result, err = body(ctx, Tx{tx})
	ended = true
	endErr := t.End(ctx, tx, err == nil)
	switch {
	case errors.Is(err, ErrRollback):
		return result, endErr
	case err != nil:
		return result, errors.Join(err, endErr)
	default:
		return result, endErr
	}
}

// NotifyQueries records the queries dirtied by a mutator. Inside a
// transaction they are notified when the outermost handle commits;
// otherwise they are notified now.
func (t *Transacter) NotifyQueries(ctx context.Context, mutatorID uint32, queries func() []uint32) error {
	if tx := t.driver.CurrentTransaction(ctx); tx != nil {
		return tx.AddQueries(ctx, mutatorID, queries)
	}
	t.registry.Notify(queries()...)
	return nil
}
