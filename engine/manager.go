// Package engine coordinates derived data that must be kept consistent
// with mutable upstream inputs. It decides when derivation happens, which
// in-flight computation is authoritative and who gets told about results;
// the derivation itself, the sources and the executor are collaborators
// supplied by the caller.
package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/timzifer/srcmodel/telemetry"
)

// ErrUnknownKey is returned when an operation refers to a key that has no
// managed slot.
var ErrUnknownKey = errors.New("engine: no slot for key")

// errSlotEvicted signals that a slot pointer went stale between the entry
// map lookup and the connect attempt; the caller retries against the map.
var errSlotEvicted = errors.New("engine: slot evicted")

// DeriveFunc computes a new derived value from a full source snapshot. It
// runs on the executor, never inline, and may fail; a failed attempt never
// displaces the previously stored result.
type DeriveFunc[V any] func(source string) (V, error)

type settings struct {
	logger                zerolog.Logger
	executor              Executor
	telemetry             telemetry.Collector
	strict                bool
	evict                 bool
	onDisconnectLocated   func(location string)
	onDisconnectUnlocated func()
}

// Option adjusts manager construction.
type Option func(*settings)

// WithLogger provides a custom logger instance for the manager.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) {
		cfg.logger = logger
	}
}

// WithExecutor installs the execution substrate update tasks are submitted
// to. The default runs every task on its own goroutine.
func WithExecutor(executor Executor) Option {
	return func(cfg *settings) {
		if executor != nil {
			cfg.executor = executor
		}
	}
}

// WithTelemetry installs a telemetry collector.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) {
		if collector != nil {
			cfg.telemetry = collector
		}
	}
}

// WithDisconnectHooks installs the cleanup callbacks the teardown task
// invokes after a slot's last listener disconnects. located receives the
// filesystem location for keys implementing Located; unlocated runs for
// all other keys.
func WithDisconnectHooks(located func(location string), unlocated func()) Option {
	return func(cfg *settings) {
		cfg.onDisconnectLocated = located
		cfg.onDisconnectUnlocated = unlocated
	}
}

// WithStrictInvariants makes detected invariant violations panic instead
// of being logged. Intended for tests and debug builds.
func WithStrictInvariants(strict bool) Option {
	return func(cfg *settings) {
		cfg.strict = strict
	}
}

// WithEviction controls whether slots are removed from the entry map once
// their teardown completes. Enabled by default; disabling it trades
// unbounded growth for immunity against eviction/reconnect races.
func WithEviction(enabled bool) Option {
	return func(cfg *settings) {
		cfg.evict = enabled
	}
}

// Manager keeps one slot per key and guarantees that at most one update
// task per slot is authoritative at any time. All methods are safe for
// concurrent use.
type Manager[K comparable, V any] struct {
	settings
	derive  DeriveFunc[V]
	entries *entryMap[K, V]
	global  listenerList[K, V]
}

// New creates a manager around the given derivation function.
func New[K comparable, V any](derive DeriveFunc[V], opts ...Option) *Manager[K, V] {
	if derive == nil {
		panic("engine: derive function must not be nil")
	}
	cfg := settings{
		logger:    zerolog.Nop(),
		executor:  GoExecutor{},
		telemetry: telemetry.Noop(),
		evict:     true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager[K, V]{
		settings: cfg,
		derive:   derive,
		entries:  newEntryMap[K, V](),
	}
}

// Connect attaches listener to the slot for key and begins derived-data
// updates from src. The first connection for a key adopts src as the
// slot's binding and schedules the initial refresh; further connections
// with the same src only add their listener.
//
// When the key is already bound to a different source, the connection is
// served by a fresh slot outside the entry map instead of corrupting
// either side: the caller trades de-duplication for isolation. The
// returned registration must be disposed when the caller loses interest.
func (m *Manager[K, V]) Connect(key K, src Source, listener Listener[K, V]) (*Registration[K, V], error) {
	if src == nil {
		return nil, errors.New("engine: source must not be nil")
	}
	if listener == nil {
		return nil, errors.New("engine: listener must not be nil")
	}

	for {
		slot, created := m.entries.getOrCreate(key, func() *Slot[K, V] {
			return newSlot(m, key, true)
		})
		if created {
			m.telemetry.SetManagedSlots(m.entries.size())
		}

		connected, err := slot.connect(src, listener)
		if errors.Is(err, errSlotEvicted) {
			continue
		}
		if !connected {
			slot = newSlot(m, key, false)
			connected, _ = slot.connect(src, listener)
			m.invariant(connected, "fresh unmanaged slot refused a connection")
			m.logger.Warn().Str("key", slot.keyString).Msg("key already bound to a different source, serving unmanaged slot")
		}

		reg := newRegistration(slot, listener)
		m.logger.Debug().Str("key", slot.keyString).Str("registration", reg.id).Msg("listener connected")
		return reg, nil
	}
}

// Stored returns the last accepted result for key without blocking. The
// second return value is false when the key has no managed slot or no
// completion has been accepted yet.
func (m *Manager[K, V]) Stored(key K) (Result[V], bool) {
	slot, ok := m.entries.getExisting(key)
	if !ok {
		return Result[V]{}, false
	}
	return slot.Stored()
}

// Slot returns the managed slot for key, if any.
func (m *Manager[K, V]) Slot(key K) (*Slot[K, V], bool) {
	return m.entries.getExisting(key)
}

// Await blocks until the managed slot for key publishes its current or
// next result, or until ctx is cancelled. ErrUnknownKey is returned when
// no slot exists for key.
func (m *Manager[K, V]) Await(ctx context.Context, key K) (Result[V], error) {
	slot, ok := m.entries.getExisting(key)
	if !ok {
		return Result[V]{}, ErrUnknownKey
	}
	return slot.Await(ctx)
}

// AddListener registers a process-wide listener notified for every slot.
func (m *Manager[K, V]) AddListener(listener Listener[K, V]) error {
	if listener == nil {
		return errors.New("engine: listener must not be nil")
	}
	m.global.add(listener)
	return nil
}

// RemoveListener unregisters a process-wide listener.
func (m *Manager[K, V]) RemoveListener(listener Listener[K, V]) {
	m.global.remove(listener)
}

// ManagedSlots returns the number of slots resident in the entry map.
func (m *Manager[K, V]) ManagedSlots() int {
	return m.entries.size()
}

// maybeEvict removes a slot from the entry map after its teardown task was
// accepted, unless it was reconnected in the meantime. The re-check runs
// under both the map and the slot lock; see entryMap.removeIf.
func (m *Manager[K, V]) maybeEvict(s *Slot[K, V], task *updateTask[K, V]) {
	if !m.evict || !s.managed {
		return
	}
	removed := m.entries.removeIf(s.key, s, func() bool {
		return s.binding == nil && s.connected.size() == 0 && s.current == task
	})
	if removed {
		m.telemetry.SetManagedSlots(m.entries.size())
		m.logger.Debug().Str("key", s.keyString).Msg("slot evicted")
	}
}

// invariant reports a programming-error-level violation: panic in strict
// mode, log and continue otherwise.
func (m *Manager[K, V]) invariant(cond bool, msg string) {
	if cond {
		return
	}
	if m.strict {
		panic("engine: invariant violated: " + msg)
	}
	m.logger.Error().Msg("invariant violated: " + msg)
}
