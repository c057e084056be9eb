package driver

import (
	"context"
	"fmt"
	"sync"
)

// Transaction is one handle of a possibly nested transaction. Only the
// outermost handle owns a physical transaction; nested handles fold their
// hooks, dirtied queries and outcome into the enclosing handle when they
// end.
//
// A handle is used by one task at a time. Its methods take the caller's
// context to check that.
type Transaction struct {
	owner     *Transactions
	task      Task
	enclosing *Transaction
	physical  any
	finish    func(commit bool) error

	successful         bool
	childrenSuccessful bool
	ended              bool

	afterCommit   []func()
	afterRollback []func()
	queries       []queryFunc
}

type queryFunc struct {
	id uint32
	fn func() []uint32
}

// Completion is the outcome of ending a handle.
type Completion struct {
	// Outermost is true when the physical transaction finished.
	Outermost bool
	// Committed is true when the physical transaction committed.
	Committed     bool
	AfterCommit   []func()
	AfterRollback []func()
	// Queries lists the dirtied query functions, one per mutator.
	Queries []func() []uint32
}

// Task returns the task that opened the handle.
func (t *Transaction) Task() Task { return t.task }

// Enclosing returns the enclosing handle, nil for the outermost.
func (t *Transaction) Enclosing() *Transaction { return t.enclosing }

// Physical returns the driver's physical transaction, owned by the
// outermost handle.
func (t *Transaction) Physical() any {
	root := t
	for root.enclosing != nil {
		root = root.enclosing
	}
	return root.physical
}

// Successful reports whether the handle was marked successful.
func (t *Transaction) Successful() bool { return t.successful }

// ChildrenSuccessful reports whether every nested handle succeeded.
func (t *Transaction) ChildrenSuccessful() bool { return t.childrenSuccessful }

// Ended reports whether End was called.
func (t *Transaction) Ended() bool { return t.ended }

// Check fails when the caller's task does not own the handle or the
// handle has ended.
func (t *Transaction) Check(ctx context.Context) error {
	if task := TaskFrom(ctx); task != t.task {
		return fmt.Errorf("%w: opened by task %d, used by task %d", ErrThreadConfinement, t.task, task)
	}
	if t.ended {
		return fmt.Errorf("%w: transaction already ended", ErrTransactionState)
	}
	return nil
}

// AfterCommit queues fn to run after the outermost transaction commits.
func (t *Transaction) AfterCommit(ctx context.Context, fn func()) error {
	if err := t.Check(ctx); err != nil {
		return err
	}
	t.afterCommit = append(t.afterCommit, fn)
	return nil
}

// AfterRollback queues fn to run after the outermost transaction rolls
// back.
func (t *Transaction) AfterRollback(ctx context.Context, fn func()) error {
	if err := t.Check(ctx); err != nil {
		return err
	}
	t.afterRollback = append(t.afterRollback, fn)
	return nil
}

// SetSuccessful marks the handle's work as complete.
func (t *Transaction) SetSuccessful(ctx context.Context) error {
	if err := t.Check(ctx); err != nil {
		return err
	}
	t.successful = true
	return nil
}

// AddQueries records the queries dirtied by one mutator. A mutator executed
// several times is recorded once.
func (t *Transaction) AddQueries(ctx context.Context, mutatorID uint32, fn func() []uint32) error {
	if err := t.Check(ctx); err != nil {
		return err
	}
	for i := range t.queries {
		if t.queries[i].id == mutatorID {
			t.queries[i].fn = fn
			return nil
		}
	}
	t.queries = append(t.queries, queryFunc{id: mutatorID, fn: fn})
	return nil
}

// End finishes the handle. A nested handle folds into its enclosing handle.
// The outermost handle commits when it and all its children succeeded and
// rolls back otherwise; hooks are returned to the caller, not run.
func (t *Transaction) End(ctx context.Context) (Completion, error) {
	return t.EndWith(ctx, false)
}

// EndWith is End, first marking the handle successful when successful is
// set. A handle that cannot be ended is left unmarked.
func (t *Transaction) EndWith(ctx context.Context, successful bool) (Completion, error) {
	if err := t.Check(ctx); err != nil {
		return Completion{}, err
	}
	if cur := t.owner.current(t.task); cur != t {
		return Completion{}, fmt.Errorf("%w: ending a transaction that is not the innermost", ErrTransactionState)
	}
	if successful {
		t.successful = true
	}
	t.ended = true
	t.owner.set(t.task, t.enclosing)

	if e := t.enclosing; e != nil {
		e.childrenSuccessful = e.childrenSuccessful && t.successful && t.childrenSuccessful
		e.afterCommit = append(e.afterCommit, t.afterCommit...)
		e.afterRollback = append(e.afterRollback, t.afterRollback...)
		for _, q := range t.queries {
			if err := e.AddQueries(ctx, q.id, q.fn); err != nil {
				return Completion{}, err
			}
		}
		return Completion{}, nil
	}

	c := Completion{
		Outermost:     true,
		Committed:     t.successful && t.childrenSuccessful,
		AfterCommit:   t.afterCommit,
		AfterRollback: t.afterRollback,
	}
	for _, q := range t.queries {
		c.Queries = append(c.Queries, q.fn)
	}
	if t.finish != nil {
		if err := t.finish(c.Committed); err != nil {
			c.Committed = false
			return c, fmt.Errorf("end transaction: %w", err)
		}
	}
	return c, nil
}

// Transactions maps each task to its innermost open handle. Drivers own
// one instance.
type Transactions struct {
	mu    sync.Mutex
	stack map[Task]*Transaction
}

// Current returns the innermost handle of the task of ctx, or nil.
func (ts *Transactions) Current(ctx context.Context) *Transaction {
	return ts.current(TaskFrom(ctx))
}

// Begin opens a handle for the task of ctx, nested in the current one if
// any. physical and finish are used only by an outermost handle: finish
// commits or rolls back the physical transaction.
func (ts *Transactions) Begin(ctx context.Context, physical any, finish func(commit bool) error) *Transaction {
	task := TaskFrom(ctx)
	t := &Transaction{
		owner:              ts,
		task:               task,
		enclosing:          ts.current(task),
		childrenSuccessful: true,
	}
	if t.enclosing == nil {
		t.physical = physical
		t.finish = finish
	}
	ts.set(task, t)
	return t
}

// Len returns the number of tasks with an open transaction.
func (ts *Transactions) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.stack)
}

func (ts *Transactions) current(task Task) *Transaction {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.stack[task]
}

func (ts *Transactions) set(task Task, t *Transaction) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t == nil {
		delete(ts.stack, task)
		return
	}
	if ts.stack == nil {
		ts.stack = make(map[Task]*Transaction)
	}
	ts.stack[task] = t
}
