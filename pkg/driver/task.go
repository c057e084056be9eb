package driver

import (
	"context"
	"sync/atomic"
)

// Task identifies a logical call stack. Transactions are confined to the
// task that opened them. Go has no goroutine identity, so callers mark
// independent flows of work with WithTask.
type Task uint64

// MainTask is the task of a context that was never given one.
const MainTask Task = 0

type taskKey struct{}

var lastTask atomic.Uint64

// WithTask returns a context carrying a new task.
func WithTask(ctx context.Context) context.Context {
	return context.WithValue(ctx, taskKey{}, Task(lastTask.Add(1)))
}

// TaskFrom returns the task of ctx, MainTask when there is none.
func TaskFrom(ctx context.Context) Task {
	if t, ok := ctx.Value(taskKey{}).(Task); ok {
		return t
	}
	return MainTask
}
