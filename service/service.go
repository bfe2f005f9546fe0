// Package service wires the coordination engine to real inputs: it opens
// the configured files as sources, connects a listener per file, keeps the
// sources fresh through the reload watcher and optionally exposes the
// derived state over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/srcmodel/analysis"
	"github.com/timzifer/srcmodel/config"
	"github.com/timzifer/srcmodel/engine"
	"github.com/timzifer/srcmodel/internal/reload"
	"github.com/timzifer/srcmodel/source"
	"github.com/timzifer/srcmodel/telemetry"
)

// fileKey identifies a watched file inside the engine. It carries the
// filesystem location so teardown runs the located disconnect hook.
type fileKey string

func (k fileKey) Location() string {
	return string(k)
}

// Option adjusts monitor construction.
type Option func(*options)

type options struct {
	collector telemetry.Collector
}

// WithCollector installs a telemetry collector. Defaults to the noop
// collector.
func WithCollector(collector telemetry.Collector) Option {
	return func(o *options) {
		if collector != nil {
			o.collector = collector
		}
	}
}

// Monitor derives a structural outline per watched file and keeps it
// consistent with the file content on disk.
type Monitor struct {
	cfg    *config.Config
	logger zerolog.Logger

	manager  *engine.Manager[fileKey, *analysis.Document]
	executor *engine.PoolExecutor
	sources  map[string]*source.File
	regs     []*engine.Registration[fileKey, *analysis.Document]
	watcher  *reload.Watcher
	liveView *liveViewServer
}

// New builds a monitor from the configuration. Every watched file must be
// readable at construction time.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	settings := options{collector: telemetry.Noop()}
	for _, opt := range opts {
		opt(&settings)
	}

	rules, err := analysis.NewRuleSet(cfg.Rules)
	if err != nil {
		return nil, err
	}

	executor := engine.NewPoolExecutor(cfg.Workers.Slots, cfg.Workers.Queue)
	engineLogger := logger.With().Str("component", "engine").Logger()
	manager := engine.New[fileKey, *analysis.Document](
		analysis.Deriver(rules),
		engine.WithLogger(engineLogger),
		engine.WithExecutor(executor),
		engine.WithTelemetry(settings.collector),
		engine.WithDisconnectHooks(
			func(location string) {
				logger.Debug().Str("path", location).Msg("derived state released")
			},
			nil,
		),
	)

	mon := &Monitor{
		cfg:      cfg,
		logger:   logger,
		manager:  manager,
		executor: executor,
		sources:  make(map[string]*source.File, len(cfg.Watch.Files)),
		watcher:  reload.NewWatcher(cfg.Watch.Files),
	}

	changes := &changeLogger{logger: logger.With().Str("component", "monitor").Logger()}
	for _, path := range cfg.Watch.Files {
		file, err := source.Open(path)
		if err != nil {
			mon.release()
			return nil, err
		}
		reg, err := manager.Connect(fileKey(path), file, changes)
		if err != nil {
			mon.release()
			return nil, fmt.Errorf("connect %s: %w", path, err)
		}
		mon.sources[path] = file
		mon.regs = append(mon.regs, reg)
	}

	if cfg.LiveView.Enabled {
		lv, err := newLiveViewServer(cfg.LiveView.Listen, mon, logger.With().Str("component", "live_view").Logger())
		if err != nil {
			mon.release()
			return nil, err
		}
		mon.liveView = lv
	}

	logger.Info().Int("files", len(mon.sources)).Dur("interval", cfg.WatchInterval()).Msg("monitor ready")
	return mon, nil
}

// Run polls the watched files until ctx is cancelled. Each detected change
// reloads the source, which feeds the engine a fresh refresh task.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.WatchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.pollOnce()
		}
	}
}

// pollOnce reloads every file the watcher reports as changed.
func (m *Monitor) pollOnce() {
	for _, path := range m.watcher.Check() {
		file, ok := m.sources[path]
		if !ok {
			continue
		}
		changed, err := file.Reload()
		if err != nil {
			m.logger.Error().Err(err).Str("path", path).Msg("reload failed")
			continue
		}
		if changed {
			m.logger.Debug().Str("path", path).Msg("source changed")
		}
	}
}

// Document returns the last derived outline for path without blocking.
func (m *Monitor) Document(path string) (*analysis.Document, bool) {
	res, ok := m.manager.Stored(fileKey(path))
	if !ok || !res.Valid {
		return nil, false
	}
	return res.Value, true
}

// Await blocks until the outline for path is derived, or until ctx is
// cancelled.
func (m *Monitor) Await(ctx context.Context, path string) (*analysis.Document, error) {
	res, err := m.manager.Await(ctx, fileKey(path))
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("no derived state for %s", path)
	}
	return res.Value, nil
}

// Paths returns the watched file paths.
func (m *Monitor) Paths() []string {
	return m.cfg.Watch.Files
}

// Close disposes every registration, which drives the teardown protocol
// for each slot, then drains the executor and stops the live view.
func (m *Monitor) Close() error {
	m.release()
	m.logger.Info().Msg("monitor stopped")
	return nil
}

func (m *Monitor) release() {
	for _, reg := range m.regs {
		reg.Dispose()
	}
	m.regs = nil
	if m.executor != nil {
		m.executor.Close()
		m.executor = nil
	}
	if m.liveView != nil {
		m.liveView.close()
		m.liveView = nil
	}
}

// changeLogger is the monitor's listener on every slot. It turns engine
// notifications into log lines.
type changeLogger struct {
	logger zerolog.Logger
}

func (l *changeLogger) UpdateRequested(slot *engine.Slot[fileKey, *analysis.Document]) {
	l.logger.Debug().Str("path", slot.Key().Location()).Msg("update scheduled")
}

func (l *changeLogger) DataChanged(slot *engine.Slot[fileKey, *analysis.Document]) {
	res, ok := slot.Stored()
	if !ok || !res.Valid {
		l.logger.Debug().Str("path", slot.Key().Location()).Msg("derived state cleared")
		return
	}
	doc := res.Value
	l.logger.Info().
		Str("path", slot.Key().Location()).
		Int("sections", len(doc.Sections)).
		Int("lines", doc.Lines).
		Int("words", doc.Words).
		Msg("outline updated")
}
