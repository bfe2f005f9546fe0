package engine

import (
	"fmt"
	"runtime/debug"
)

const (
	taskKindRefresh  = "refresh"
	taskKindTeardown = "teardown"
)

// Located marks keys that identify a filesystem artifact. The teardown
// task uses it to pick the located or the unlocated disconnect hook.
type Located interface {
	Location() string
}

// updateTask is a single-use unit of asynchronous work for one slot. A
// refresh task carries the source snapshot captured at submission time; a
// teardown task runs the disconnect hooks and clears the stored result.
// Tasks are never reused and never forcibly interrupted: a superseded task
// runs to completion and its result is discarded by the slot.
type updateTask[K comparable, V any] struct {
	slot     *Slot[K, V]
	kind     string
	snapshot string
}

func newRefreshTask[K comparable, V any](slot *Slot[K, V], snapshot string) *updateTask[K, V] {
	return &updateTask[K, V]{slot: slot, kind: taskKindRefresh, snapshot: snapshot}
}

func newTeardownTask[K comparable, V any](slot *Slot[K, V]) *updateTask[K, V] {
	return &updateTask[K, V]{slot: slot, kind: taskKindTeardown}
}

func (t *updateTask[K, V]) run() {
	switch t.kind {
	case taskKindRefresh:
		t.runRefresh()
	case taskKindTeardown:
		t.runTeardown()
	}
}

func (t *updateTask[K, V]) runRefresh() {
	value, err := t.derive()
	if err != nil {
		t.slot.completeFailed(t, err)
		return
	}
	t.slot.completePublished(t, value)
}

// derive invokes the derivation function with panic recovery so a broken
// computation is contained inside its own task.
func (t *updateTask[K, V]) derive() (value V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("derivation panic: %v\n%s", r, debug.Stack())
		}
	}()
	value, err = t.slot.mgr.derive(t.snapshot)
	return value, err
}

func (t *updateTask[K, V]) runTeardown() {
	mgr := t.slot.mgr
	if located, ok := any(t.slot.key).(Located); ok {
		if mgr.onDisconnectLocated != nil {
			mgr.onDisconnectLocated(located.Location())
		}
	} else if mgr.onDisconnectUnlocated != nil {
		mgr.onDisconnectUnlocated()
	}
	t.slot.completeTeardown(t)
}
