// Package runtime executes compiled statements and keeps listeners of
// queries informed when mutations may have changed their results.
package runtime

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// ExecuteFunc runs a query and returns its cursor.
type ExecuteFunc func(ctx context.Context) (driver.Cursor, error)

// Mapper converts the current cursor row.
type Mapper[T any] func(c driver.Cursor) (T, error)

// Query is a listenable query. It owns no listener state: listeners live
// in the registry under the query's handle.
type Query[T any] struct {
	handle    uint64
	statement uint32
	name      string
	registry  *Registry
	execute   ExecuteFunc
	mapper    Mapper[T]
}

// NewQuery returns a query for the statement with the given id. name is
// used in error messages.
func NewQuery[T any](r *Registry, statement uint32, name string, execute ExecuteFunc, mapper Mapper[T]) *Query[T] {
	return &Query[T]{
		handle:    r.newHandle(),
		statement: statement,
		name:      name,
		registry:  r,
		execute:   execute,
		mapper:    mapper,
	}
}

// Statement returns the id of the query's statement.
func (q *Query[T]) Statement() uint32 { return q.statement }

// Name returns the query name.
func (q *Query[T]) Name() string { return q.name }

// Execute runs the query and returns the raw cursor. The caller closes it.
func (q *Query[T]) Execute(ctx context.Context) (driver.Cursor, error) {
	return q.execute(ctx)
}

// ExecuteAsList maps every row.
func (q *Query[T]) ExecuteAsList(ctx context.Context) ([]T, error) {
	c, err := q.execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.name, err)
	}
	defer func() { _ = c.Close() }()

	var out []T
	for c.Next() {
		row, err := q.mapper(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.name, err)
		}
		out = append(out, row)
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", q.name, err)
	}
	return out, nil
}

// ExecuteAsOne returns the only row. It fails with ErrNoSuchElement on an
// empty result and ErrMultipleRows when there is more than one row.
func (q *Query[T]) ExecuteAsOne(ctx context.Context) (T, error) {
	row, err := q.ExecuteAsOneOrNull(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if row == nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", q.name, ErrNoSuchElement)
	}
	return *row, nil
}

// ExecuteAsOneOrNull returns the only row, or nil on an empty result.
func (q *Query[T]) ExecuteAsOneOrNull(ctx context.Context) (*T, error) {
	c, err := q.execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.name, err)
	}
	defer func() { _ = c.Close() }()

	if !c.Next() {
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", q.name, err)
		}
		return nil, nil
	}
	row, err := q.mapper(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.name, err)
	}
	if c.Next() {
		return nil, fmt.Errorf("%s: %w", q.name, ErrMultipleRows)
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", q.name, err)
	}
	return &row, nil
}

// AddListener registers l. The first listener makes the query live.
// Adding the same listener twice has no effect.
func (q *Query[T]) AddListener(l Listener) {
	q.registry.addListener(q.handle, q.statement, l)
}

// RemoveListener unregisters l. Removing the last listener stops tracking
// the query.
func (q *Query[T]) RemoveListener(l Listener) {
	q.registry.removeListener(q.handle, l)
}

// Live reports whether the query has listeners.
func (q *Query[T]) Live() bool {
	return q.registry.tracked(q.handle)
}

// NotifyDataChanged notifies the listeners of this query.
func (q *Query[T]) NotifyDataChanged() {
	q.registry.notifyHandle(q.handle)
}
