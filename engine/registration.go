package engine

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Registration is the scoped handle returned by Connect. It pairs a slot
// with the specific listener that was registered and is owned exclusively
// by the caller, who must dispose it when no longer interested.
type Registration[K comparable, V any] struct {
	id       string
	slot     *Slot[K, V]
	listener Listener[K, V]
	disposed atomic.Bool
}

func newRegistration[K comparable, V any](slot *Slot[K, V], listener Listener[K, V]) *Registration[K, V] {
	return &Registration[K, V]{
		id:       uuid.NewString(),
		slot:     slot,
		listener: listener,
	}
}

// ID identifies the registration in logs.
func (r *Registration[K, V]) ID() string {
	return r.id
}

// Slot returns the slot this registration is connected to. It stays usable
// for peeking and awaiting after disposal.
func (r *Registration[K, V]) Slot() *Slot[K, V] {
	return r.slot
}

// Dispose releases the listener from the slot. Disposing the last
// registration of a slot triggers the teardown protocol. Safe to call
// more than once; only the first call has effect.
func (r *Registration[K, V]) Dispose() {
	if !r.disposed.CompareAndSwap(false, true) {
		return
	}
	r.slot.mgr.logger.Debug().Str("key", r.slot.keyString).Str("registration", r.id).Msg("listener disconnected")
	r.slot.disconnect(r.listener)
}
