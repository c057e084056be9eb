package runtime

import (
	"context"

	"github.com/leapstack-labs/leapquery/pkg/driver"
)

// Result is one emission of Watch.
type Result[T any] struct {
	Rows []T
	Err  error
}

// Watch emits the rows of q now and again after every change
// notification. Notifications arriving while a result is pending are
// coalesced. The channel is closed after ctx ends, when the listener has
// been removed.
//
// Each execution runs as its own task so it never joins a transaction of
// the goroutine that triggered the change.
func Watch[T any](ctx context.Context, q *Query[T]) <-chan Result[T] {
	out := make(chan Result[T])
	changed := make(chan struct{}, 1)
	l := NewListener(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	q.AddListener(l)

	go func() {
		defer close(out)
		defer q.RemoveListener(l)
		for {
			rows, err := q.ExecuteAsList(driver.WithTask(ctx))
			select {
			case out <- Result[T]{Rows: rows, Err: err}:
			case <-ctx.Done():
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
