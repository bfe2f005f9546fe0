package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/srcmodel/analysis"
	"github.com/timzifer/srcmodel/config"
	"github.com/timzifer/srcmodel/internal/logging"
	"github.com/timzifer/srcmodel/service"
	"github.com/timzifer/srcmodel/telemetry"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	liveView := flag.Bool("live-view", false, "Enable live view endpoint")
	liveViewListen := flag.String("live-view-listen", ":18080", "Live view listen address")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *configCheck {
		os.Exit(executeConfigCheck(cfg))
	}

	if *liveView {
		cfg.LiveView.Enabled = true
		if cfg.LiveView.Listen == "" {
			cfg.LiveView.Listen = *liveViewListen
		}
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector, metricsShutdown, err := setupTelemetry(cfg.Telemetry)
	if err != nil {
		logger.Error().Err(err).Msg("telemetry disabled")
		collector = telemetry.Noop()
	}
	if metricsShutdown != nil {
		defer metricsShutdown()
	}

	mon, err := service.New(cfg, logger, service.WithCollector(collector))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create monitor")
	}
	defer mon.Close()

	if err := mon.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("monitor stopped with error")
	}
}

// executeConfigCheck reports the validity of every watched file and metric
// rule. Exit code 1 signals at least one problem.
func executeConfigCheck(cfg *config.Config) int {
	exitCode := 0

	fmt.Printf("Watched files (%d):\n", len(cfg.Watch.Files))
	for _, path := range cfg.Watch.Files {
		if _, err := os.Stat(path); err != nil {
			exitCode = 1
			fmt.Printf("  - %s: %v\n", path, err)
			continue
		}
		fmt.Printf("  - %s: OK\n", path)
	}

	fmt.Printf("Metric rules (%d):\n", len(cfg.Rules))
	for _, rule := range cfg.Rules {
		if _, err := analysis.NewRuleSet([]config.RuleConfig{rule}); err != nil {
			exitCode = 1
			fmt.Printf("  - %s: %v\n", rule.Name, err)
			continue
		}
		kind := rule.Kind
		if kind == "" {
			kind = config.ValueKindNumber
		}
		fmt.Printf("  - %s (%s): OK\n", rule.Name, kind)
	}

	if exitCode == 0 {
		fmt.Println("Configuration check completed successfully.")
	} else {
		fmt.Println("Configuration check completed with errors.")
	}
	return exitCode
}

// setupTelemetry builds the collector and, when enabled, serves the
// Prometheus exposition endpoint on the configured address.
func setupTelemetry(cfg config.TelemetryConfig) (telemetry.Collector, func(), error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil, nil
	}
	collector, err := telemetry.NewPrometheusCollector(nil)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return collector, func() { _ = server.Close() }, nil
}
