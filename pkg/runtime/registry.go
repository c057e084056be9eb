package runtime

import (
	"slices"
	"sync"
)

// Listener is told when the result set of a query may have changed.
// Notifications can be false positives but never miss a change.
type Listener interface {
	QueryResultsChanged()
}

type funcListener struct{ fn func() }

func (l *funcListener) QueryResultsChanged() { l.fn() }

// NewListener adapts fn to a Listener. Each call returns a distinct
// listener.
func NewListener(fn func()) Listener {
	return &funcListener{fn: fn}
}

// Registry tracks the live queries of one database: those with at least
// one listener. Mutations notify queries through it by statement id.
type Registry struct {
	mu         sync.Mutex
	lastHandle uint64
	live       map[uint64]*liveQuery
}

type liveQuery struct {
	statement uint32
	listeners []Listener
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[uint64]*liveQuery)}
}

func (r *Registry) newHandle() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastHandle++
	return r.lastHandle
}

func (r *Registry) addListener(handle uint64, statement uint32, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.live[handle]
	if !ok {
		q = &liveQuery{statement: statement}
		r.live[handle] = q
	}
	if !slices.Contains(q.listeners, l) {
		q.listeners = append(q.listeners, l)
	}
}

func (r *Registry) removeListener(handle uint64, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.live[handle]
	if !ok {
		return
	}
	q.listeners = slices.DeleteFunc(q.listeners, func(x Listener) bool { return x == l })
	if len(q.listeners) == 0 {
		delete(r.live, handle)
	}
}

func (r *Registry) tracked(handle uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[handle]
	return ok
}

func (r *Registry) registered(handle uint64, l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.live[handle]
	return ok && slices.Contains(q.listeners, l)
}

// Len returns the number of live queries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

type delivery struct {
	handle   uint64
	listener Listener
}

// Notify tells every live query of the given statements that its results
// changed. Each live query is notified once however often its statement
// is listed.
func (r *Registry) Notify(statements ...uint32) {
	if len(statements) == 0 {
		return
	}
	r.deliver(func(_ uint64, q *liveQuery) bool {
		return slices.Contains(statements, q.statement)
	})
}

func (r *Registry) notifyHandle(handle uint64) {
	r.deliver(func(h uint64, _ *liveQuery) bool { return h == handle })
}

// deliver snapshots the matching listeners under the lock and calls them
// without it. A listener removed before its turn is skipped.
func (r *Registry) deliver(match func(uint64, *liveQuery) bool) {
	r.mu.Lock()
	var targets []delivery
	for handle, q := range r.live {
		if !match(handle, q) {
			continue
		}
		for _, l := range q.listeners {
			targets = append(targets, delivery{handle: handle, listener: l})
		}
	}
	r.mu.Unlock()

	slices.SortStableFunc(targets, func(a, b delivery) int {
		switch {
		case a.handle < b.handle:
			return -1
		case a.handle > b.handle:
			return 1
		}
		return 0
	})
	for _, d := range targets {
		if r.registered(d.handle, d.listener) {
			d.listener.QueryResultsChanged()
		}
	}
}
