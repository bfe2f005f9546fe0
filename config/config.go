package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// ValueKind describes the primitive type a metric rule produces.
type ValueKind string

const (
	// ValueKindNumber represents floating point numbers.
	ValueKindNumber ValueKind = "number"
	// ValueKindInteger represents signed integer values.
	ValueKindInteger ValueKind = "integer"
	// ValueKindDecimal represents arbitrary precision decimal numbers.
	ValueKindDecimal ValueKind = "decimal"
	// ValueKindBool represents boolean values.
	ValueKindBool ValueKind = "bool"
	// ValueKindString represents plain UTF-8 strings.
	ValueKindString ValueKind = "string"
)

func (k ValueKind) known() bool {
	switch k {
	case ValueKindNumber, ValueKindInteger, ValueKindDecimal, ValueKindBool, ValueKindString:
		return true
	}
	return false
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig enables Prometheus exposition.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// WorkersConfig sizes the update task executor.
type WorkersConfig struct {
	Slots int `yaml:"slots"`
	Queue int `yaml:"queue"`
}

// WatchConfig lists the files whose derived structure is kept fresh.
type WatchConfig struct {
	Files    []string `yaml:"files"`
	Interval Duration `yaml:"interval"`
}

// RuleConfig declares one metric rule evaluated against the analyzed
// document. The expression runs in the document environment.
type RuleConfig struct {
	Name       string    `yaml:"name"`
	Kind       ValueKind `yaml:"kind"`
	Expression string    `yaml:"expression"`
}

// LiveViewConfig configures the embedded state endpoint.
type LiveViewConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config is the root configuration structure for the monitor.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Workers   WorkersConfig   `yaml:"workers"`
	Watch     WatchConfig     `yaml:"watch"`
	Rules     []RuleConfig    `yaml:"rules"`
	LiveView  LiveViewConfig  `yaml:"live_view"`
}

// Load reads, decodes and validates the configuration file from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that the YAML schema cannot express.
func (c *Config) Validate() error {
	seenFiles := make(map[string]struct{}, len(c.Watch.Files))
	for _, file := range c.Watch.Files {
		if file == "" {
			return fmt.Errorf("watch: file path must not be empty")
		}
		if _, ok := seenFiles[file]; ok {
			return fmt.Errorf("watch: duplicate file %q", file)
		}
		seenFiles[file] = struct{}{}
	}

	seenRules := make(map[string]struct{}, len(c.Rules))
	for _, rule := range c.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rules: rule name must not be empty")
		}
		if _, ok := seenRules[rule.Name]; ok {
			return fmt.Errorf("rules: duplicate rule %q", rule.Name)
		}
		seenRules[rule.Name] = struct{}{}
		if rule.Expression == "" {
			return fmt.Errorf("rule %s: expression must not be empty", rule.Name)
		}
		if rule.Kind != "" && !rule.Kind.known() {
			return fmt.Errorf("rule %s: unsupported value kind %q", rule.Name, rule.Kind)
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Listen == "" {
		return fmt.Errorf("telemetry: listen address is required when enabled")
	}
	if c.LiveView.Enabled && c.LiveView.Listen == "" {
		return fmt.Errorf("live_view: listen address is required when enabled")
	}
	return nil
}

// WatchInterval returns the configured poll interval for file sources.
func (c *Config) WatchInterval() time.Duration {
	if c == nil || c.Watch.Interval.Duration <= 0 {
		return 500 * time.Millisecond
	}
	return c.Watch.Interval.Duration
}
