package engine

import "sync"

// entryMap lazily creates the slot for a key on first access. Construction
// runs at most once per key; the map mutex is held only for the momentary
// lookup-or-insert, never across slot operations, so unrelated keys do not
// block each other.
type entryMap[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]*Slot[K, V]
}

func newEntryMap[K comparable, V any]() *entryMap[K, V] {
	return &entryMap[K, V]{slots: make(map[K]*Slot[K, V])}
}

func (em *entryMap[K, V]) getOrCreate(key K, create func() *Slot[K, V]) (*Slot[K, V], bool) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if slot, ok := em.slots[key]; ok {
		return slot, false
	}
	slot := create()
	em.slots[key] = slot
	return slot, true
}

func (em *entryMap[K, V]) getExisting(key K) (*Slot[K, V], bool) {
	em.mu.Lock()
	defer em.mu.Unlock()
	slot, ok := em.slots[key]
	return slot, ok
}

func (em *entryMap[K, V]) size() int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return len(em.slots)
}

// removeIf deletes the entry for key when it still maps to slot and check
// holds. check runs with both the map and the slot lock held, which closes
// the race between eviction and a concurrent reconnect: a Connect racing
// on a stale slot pointer observes the evicted flag and retries against
// the map. Removal is only ever requested by the slot itself during its
// own teardown.
func (em *entryMap[K, V]) removeIf(key K, slot *Slot[K, V], check func() bool) bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	existing, ok := em.slots[key]
	if !ok || existing != slot {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !check() {
		return false
	}
	slot.evicted = true
	delete(em.slots, key)
	return true
}
