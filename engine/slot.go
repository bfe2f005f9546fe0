package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source supplies the mutable input a slot tracks. The engine only reads
// it: it takes full content snapshots and listens for change events.
//
// Implementations must deliver one notification per discrete mutation and
// must tolerate Subscribe and the returned cancel func being called from
// inside the engine's locked sections, which means they must not invoke
// the change callback synchronously from Subscribe and must not notify
// while holding the lock that Snapshot acquires.
type Source interface {
	Snapshot() string
	Subscribe(fn func()) (cancel func())
}

// Slot is the per-key state machine tracking one derived artifact: the
// active source binding, the connected listeners, the most recently
// submitted update task and the latest accepted result.
//
// A slot is connected while a binding is active, and managed while it is
// resident in the manager's entry map. Operations on the same slot are
// mutually exclusive; unrelated slots never contend.
type Slot[K comparable, V any] struct {
	key       K
	keyString string
	mgr       *Manager[K, V]
	managed   bool

	mu          sync.Mutex
	binding     Source
	unsubscribe func()
	connected   listenerList[K, V]
	current     *updateTask[K, V]
	evicted     bool

	// notifyMu serializes accepted completions so that data-changed
	// notifications for this slot are delivered in acceptance order and
	// never overlap.
	notifyMu sync.Mutex

	cell futureCell[V]
}

func newSlot[K comparable, V any](mgr *Manager[K, V], key K, managed bool) *Slot[K, V] {
	return &Slot[K, V]{
		key:       key,
		keyString: fmt.Sprint(key),
		mgr:       mgr,
		managed:   managed,
	}
}

// Key returns the identity this slot derives data for.
func (s *Slot[K, V]) Key() K {
	return s.key
}

// Managed reports whether the slot is resident in the entry map. Slots
// created through the mismatched-source escape hatch are unmanaged.
func (s *Slot[K, V]) Managed() bool {
	return s.managed
}

// HasConnectedListeners reports whether any listener is currently
// registered against the active binding.
func (s *Slot[K, V]) HasConnectedListeners() bool {
	return s.connected.size() > 0
}

// Stored returns the last accepted result without blocking. The second
// return value is false while no completion has ever been accepted.
func (s *Slot[K, V]) Stored() (Result[V], bool) {
	return s.cell.snapshot()
}

// Await blocks until the current or next update task's result is accepted,
// or until ctx is cancelled. Cancellation releases only this waiter; the
// computation keeps running for everyone else.
func (s *Slot[K, V]) Await(ctx context.Context) (Result[V], error) {
	return s.cell.await(ctx)
}

// connect adopts src as the slot's binding if it has none, registers the
// change observer and queues the initial refresh. When the slot is already
// bound to src only the listener is added. A different active binding is
// refused with connected == false. errSlotEvicted is returned when the
// slot lost the race against its own eviction and the caller must retry
// against the entry map.
func (s *Slot[K, V]) connect(src Source, listener Listener[K, V]) (bool, error) {
	var task *updateTask[K, V]
	s.mu.Lock()
	if s.evicted {
		s.mu.Unlock()
		return false, errSlotEvicted
	}
	switch {
	case s.binding == nil:
		s.binding = src
		s.unsubscribe = src.Subscribe(s.onSourceChanged)
		task = s.queueRefreshLocked(src.Snapshot())
	case s.binding != src:
		s.mu.Unlock()
		return false, nil
	}
	s.connected.add(listener)
	s.mu.Unlock()

	if task != nil {
		s.dispatch(task)
	}
	return true, nil
}

// disconnect removes the listener. When the last one goes, the change
// observer is unregistered, the binding cleared and a teardown task queued
// so collaborators can flush state before the slot is evicted.
func (s *Slot[K, V]) disconnect(listener Listener[K, V]) {
	var task *updateTask[K, V]
	s.mu.Lock()
	s.connected.remove(listener)
	if s.connected.size() == 0 && s.binding != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		s.binding = nil
		task = s.queueTeardownLocked()
	}
	s.mu.Unlock()

	if task != nil {
		s.dispatch(task)
	}
}

// onSourceChanged handles one discrete mutation of the bound source. The
// snapshot is captured under the slot lock so the current task handle
// always carries the newest content.
func (s *Slot[K, V]) onSourceChanged() {
	var task *updateTask[K, V]
	s.mu.Lock()
	if s.binding != nil {
		task = s.queueRefreshLocked(s.binding.Snapshot())
	}
	s.mu.Unlock()

	if task != nil {
		s.dispatch(task)
	}
}

func (s *Slot[K, V]) queueRefreshLocked(snapshot string) *updateTask[K, V] {
	task := newRefreshTask(s, snapshot)
	s.current = task
	s.cell.begin()
	return task
}

func (s *Slot[K, V]) queueTeardownLocked() *updateTask[K, V] {
	task := newTeardownTask(s)
	s.current = task
	s.cell.begin()
	return task
}

// dispatch hands a queued task to the executor. Update-requested
// notifications fire here, once per submission, regardless of whether the
// task's result is later discarded.
func (s *Slot[K, V]) dispatch(task *updateTask[K, V]) {
	s.mgr.telemetry.IncTaskQueued(task.kind)
	s.mgr.logger.Debug().Str("key", s.keyString).Str("kind", task.kind).Msg("update task queued")
	for _, listener := range s.connected.snapshot() {
		listener.UpdateRequested(s)
	}
	for _, listener := range s.mgr.global.snapshot() {
		listener.UpdateRequested(s)
	}
	s.mgr.executor.Submit(task.run)
}

// accept runs apply and fires data-changed fan-out iff task is still the
// slot's current task handle. A superseded completion is discarded without
// any externally observable state change.
func (s *Slot[K, V]) accept(task *updateTask[K, V], apply func()) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.current != task {
		s.mu.Unlock()
		s.mgr.telemetry.IncTaskDiscarded(task.kind)
		s.mgr.logger.Debug().Str("key", s.keyString).Str("kind", task.kind).Msg("superseded task result discarded")
		return false
	}
	apply()
	s.mu.Unlock()

	for _, listener := range s.connected.snapshot() {
		listener.DataChanged(s)
	}
	for _, listener := range s.mgr.global.snapshot() {
		listener.DataChanged(s)
	}
	return true
}

func (s *Slot[K, V]) completePublished(task *updateTask[K, V], value V) {
	s.accept(task, func() {
		s.cell.publish(Result[V]{Value: value, Valid: true, UpdatedAt: time.Now()})
	})
}

// completeFailed concludes a failed derivation: the prior stored result
// stays authoritative, waiters are released and listeners learn that the
// attempt finished.
func (s *Slot[K, V]) completeFailed(task *updateTask[K, V], err error) {
	s.mgr.telemetry.IncDeriveError()
	s.mgr.logger.Error().Err(err).Str("key", s.keyString).Msg("derivation failed")
	s.accept(task, s.cell.conclude)
}

func (s *Slot[K, V]) completeTeardown(task *updateTask[K, V]) {
	accepted := s.accept(task, func() {
		s.mgr.invariant(s.connected.size() == 0, "teardown accepted while listeners are connected")
		s.cell.publish(Result[V]{})
	})
	if accepted {
		s.mgr.maybeEvict(s, task)
	}
}
