// Package optimistic implements the snapshot/apply/confirm-or-revert
// discipline for local mutations of server-owned state: apply the change
// locally for immediate feedback, commit it to the backend, and restore the
// snapshot exactly if the commit fails. Local state is never left partially
// applied.
package optimistic

import (
	"context"
	"sync"
)

// Run mutates *state optimistically. It snapshots the current value, applies
// mutate immediately so callers can re-render, then calls commit. On commit
// failure *state is restored to the exact snapshot and the commit error is
// returned.
//
// snapshot must deep-copy the value; rollback exactness depends on it.
func Run[T any](ctx context.Context, state *T, snapshot func(T) T, mutate func(T) T, commit func(context.Context, T) error) error {
	prev := snapshot(*state)
	next := mutate(snapshot(*state))
	*state = next

	if err := commit(ctx, next); err != nil {
		*state = prev
		return err
	}
	return nil
}

// Gate serializes mutations per entity: a rollback must complete before the
// next mutation on the same entity starts, otherwise two failed commits could
// race their restores.
type Gate struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the entity identified by key has no mutation in
// flight, then claims it. The returned release must be called once the
// mutation (including any rollback) has finished.
func (g *Gate) Acquire(key string) (release func()) {
	g.mu.Lock()
	lock, ok := g.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[key] = lock
	}
	g.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
