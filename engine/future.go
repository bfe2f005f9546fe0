package engine

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of the most recent accepted derivation for a slot.
// Valid is false when no derivation has succeeded yet, when the last
// attempt failed before anything was stored, or after a teardown cleared
// the slot.
type Result[V any] struct {
	Value     V
	Valid     bool
	UpdatedAt time.Time
}

// futureCell is the latest-wins result slot shared by all waiters of a
// Slot. A queued task marks the cell pending; only the completion that is
// accepted by the slot settles it. Superseded completions never touch the
// cell, so a waiter can never observe a stale value.
type futureCell[V any] struct {
	mu      sync.Mutex
	stored  Result[V]
	settled bool
	pending bool
	done    chan struct{}
}

// begin records that a new task was queued. Waiters arriving from now on
// block until an accepted completion settles the cell.
func (c *futureCell[V]) begin() {
	c.mu.Lock()
	c.pending = true
	if c.done == nil {
		c.done = make(chan struct{})
	}
	c.mu.Unlock()
}

// publish stores an accepted result and releases waiters.
func (c *futureCell[V]) publish(res Result[V]) {
	c.mu.Lock()
	c.stored = res
	c.settle()
	c.mu.Unlock()
}

// conclude releases waiters without touching the stored result. Used when
// a derivation fails: the prior value stays authoritative, but the update
// attempt has concluded and waiters must not stay blocked.
func (c *futureCell[V]) conclude() {
	c.mu.Lock()
	c.settle()
	c.mu.Unlock()
}

func (c *futureCell[V]) settle() {
	c.settled = true
	c.pending = false
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// snapshot returns the stored result and whether any completion has been
// accepted yet.
func (c *futureCell[V]) snapshot() (Result[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored, c.settled
}

// await blocks until the current or next accepted completion, or until ctx
// is cancelled. It returns immediately when a completion has been accepted
// and no task is in flight that could supersede it. Cancelling the wait
// never cancels the underlying computation.
func (c *futureCell[V]) await(ctx context.Context) (Result[V], error) {
	c.mu.Lock()
	if c.settled && !c.pending {
		res := c.stored
		c.mu.Unlock()
		return res, nil
	}
	if c.done == nil {
		c.done = make(chan struct{})
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		c.mu.Lock()
		res := c.stored
		c.mu.Unlock()
		return res, nil
	case <-ctx.Done():
		return Result[V]{}, ctx.Err()
	}
}
