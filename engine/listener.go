package engine

import "sync"

// Listener observes the update lifecycle of one or more slots.
//
// UpdateRequested fires once per task submission, at queue time, even for
// tasks whose result is later discarded. DataChanged fires once per
// accepted completion, after the result has been published. Callbacks may
// call back into the engine (for example to dispose a registration), but
// must not block for long: DataChanged is delivered inline on the task's
// executor goroutine and serializes completions for its slot.
type Listener[K comparable, V any] interface {
	UpdateRequested(slot *Slot[K, V])
	DataChanged(slot *Slot[K, V])
}

// listenerList is an ordered collection of listeners. Duplicates are
// allowed; removal drops the first occurrence so that two registrations of
// the same listener reference-count correctly.
type listenerList[K comparable, V any] struct {
	mu        sync.Mutex
	listeners []Listener[K, V]
}

func (l *listenerList[K, V]) add(listener Listener[K, V]) {
	l.mu.Lock()
	l.listeners = append(l.listeners, listener)
	l.mu.Unlock()
}

func (l *listenerList[K, V]) remove(listener Listener[K, V]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.listeners {
		if existing == listener {
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
			return
		}
	}
}

func (l *listenerList[K, V]) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

// snapshot returns a copy that is safe to iterate without holding the lock.
func (l *listenerList[K, V]) snapshot() []Listener[K, V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Listener[K, V], len(l.listeners))
	copy(out, l.listeners)
	return out
}
