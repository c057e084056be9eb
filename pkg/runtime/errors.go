package runtime

import (
	"errors"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// Runtime errors.
var (
	// ErrNoSuchElement is returned by ExecuteAsOne on an empty result.
	ErrNoSuchElement = errors.New("query returned no rows")

	// ErrMultipleRows is returned by ExecuteAsOne and ExecuteAsOneOrNull
	// when the result has more than one row.
	ErrMultipleRows = errors.New("query returned more than one row")

	// ErrRollback is returned by Tx.Rollback. A transaction body that
	// returns it rolls back without failing.
	ErrRollback = errors.New("transaction rolled back")

	// ErrThreadConfinement is returned when a transaction is used from a
	// task other than the one that opened it.
	ErrThreadConfinement = driver.ErrThreadConfinement

	// ErrTransactionState is returned when transactions are ended out of
	// order, ended twice, used after ending, or opened with NoEnclosing
	// inside another transaction.
	ErrTransactionState = driver.ErrTransactionState

	// ErrNotQuery is returned when Query names a statement without result
	// columns.
	ErrNotQuery = errors.New("statement does not return rows")
)
