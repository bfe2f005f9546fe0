package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the coordination engine.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with critical paths such as task submission and
// completion fan-out.
type Collector interface {
	IncTaskQueued(kind string)
	IncTaskDiscarded(kind string)
	IncDeriveError()
	SetManagedSlots(count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncTaskQueued(string)    {}
func (noopCollector) IncTaskDiscarded(string) {}
func (noopCollector) IncDeriveError()         {}
func (noopCollector) SetManagedSlots(int)     {}

// PrometheusCollector exposes engine telemetry via Prometheus.
type PrometheusCollector struct {
	tasksQueued    *prometheus.CounterVec
	tasksDiscarded *prometheus.CounterVec
	deriveErrors   prometheus.Counter
	managedSlots   prometheus.Gauge
}

var (
	taskQueuedCounter        *prometheus.CounterVec
	taskQueuedCounterLock    sync.Mutex
	taskDiscardedCounter     *prometheus.CounterVec
	taskDiscardedCounterLock sync.Mutex
	deriveErrorCounter       prometheus.Counter
	deriveErrorCounterLock   sync.Mutex
	managedSlotGauge         prometheus.Gauge
	managedSlotGaugeLock     sync.Mutex
)

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	taskQueuedCounterLock.Lock()
	if taskQueuedCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srcmodel_update_tasks_queued_total",
			Help: "Number of update tasks submitted per task kind.",
		}, []string{"kind"})
		registered, err := registerCounterVec(reg, counter)
		if err != nil {
			taskQueuedCounterLock.Unlock()
			return nil, err
		}
		taskQueuedCounter = registered
	}
	taskQueuedCounterLock.Unlock()

	taskDiscardedCounterLock.Lock()
	if taskDiscardedCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srcmodel_update_tasks_discarded_total",
			Help: "Number of update task completions discarded because a newer task superseded them.",
		}, []string{"kind"})
		registered, err := registerCounterVec(reg, counter)
		if err != nil {
			taskDiscardedCounterLock.Unlock()
			return nil, err
		}
		taskDiscardedCounter = registered
	}
	taskDiscardedCounterLock.Unlock()

	deriveErrorCounterLock.Lock()
	if deriveErrorCounter == nil {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srcmodel_derive_errors_total",
			Help: "Number of derivation functions that returned an error or panicked.",
		})
		registered, err := registerCounter(reg, counter)
		if err != nil {
			deriveErrorCounterLock.Unlock()
			return nil, err
		}
		deriveErrorCounter = registered
	}
	deriveErrorCounterLock.Unlock()

	managedSlotGaugeLock.Lock()
	if managedSlotGauge == nil {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srcmodel_managed_slots",
			Help: "Number of slots currently resident in the entry map.",
		})
		registered, err := registerGauge(reg, gauge)
		if err != nil {
			managedSlotGaugeLock.Unlock()
			return nil, err
		}
		managedSlotGauge = registered
	}
	managedSlotGaugeLock.Unlock()

	return &PrometheusCollector{
		tasksQueued:    taskQueuedCounter,
		tasksDiscarded: taskDiscardedCounter,
		deriveErrors:   deriveErrorCounter,
		managedSlots:   managedSlotGauge,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, counter *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return gauge, nil
}

// IncTaskQueued increments the submission counter for the provided task kind.
func (p *PrometheusCollector) IncTaskQueued(kind string) {
	if p == nil || p.tasksQueued == nil {
		return
	}
	p.tasksQueued.WithLabelValues(kind).Inc()
}

// IncTaskDiscarded records a completion that lost against a newer task.
func (p *PrometheusCollector) IncTaskDiscarded(kind string) {
	if p == nil || p.tasksDiscarded == nil {
		return
	}
	p.tasksDiscarded.WithLabelValues(kind).Inc()
}

// IncDeriveError records a failed derivation attempt.
func (p *PrometheusCollector) IncDeriveError() {
	if p == nil || p.deriveErrors == nil {
		return
	}
	p.deriveErrors.Inc()
}

// SetManagedSlots updates the gauge tracking entry map occupancy.
func (p *PrometheusCollector) SetManagedSlots(count int) {
	if p == nil || p.managedSlots == nil {
		return
	}
	p.managedSlots.Set(float64(count))
}
