package arbor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the engine configuration. It
// can be populated from YAML or JSON; the zero-value is usable, all nested
// fields inherit their package defaults.
type Config struct {
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
	EventLog    EventLogConfig    `json:"eventLog" yaml:"eventLog"`
}

// CoordinatorConfig tunes council execution and inbound buffering. Timeouts
// are expressed in milliseconds so the struct round-trips through YAML and
// JSON without custom marshalling.
type CoordinatorConfig struct {
	CouncilSize          int `json:"councilSize" yaml:"councilSize"`
	EvaluatorTimeoutMs   int `json:"evaluatorTimeoutMs" yaml:"evaluatorTimeoutMs"`
	CollectTimeoutMs     int `json:"collectTimeoutMs" yaml:"collectTimeoutMs"`
	MailboxSize          int `json:"mailboxSize" yaml:"mailboxSize"`
	ReservedHighPriority int `json:"reservedHighPriority" yaml:"reservedHighPriority"`
}

// EventLogConfig selects the event store backend.
type EventLogConfig struct {
	// Backend is one of "memory", "fs" or "sqlite"; empty selects memory.
	Backend string `json:"backend" yaml:"backend"`
	// Location is the fs base URL or the sqlite database path; unused by
	// the memory backend.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

const (
	BackendMemory = "memory"
	BackendFs     = "fs"
	BackendSqlite = "sqlite"
)

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			CouncilSize:          7,
			EvaluatorTimeoutMs:   30_000,
			CollectTimeoutMs:     120_000,
			MailboxSize:          64,
			ReservedHighPriority: 8,
		},
		EventLog: EventLogConfig{Backend: BackendMemory},
	}
}

// LoadConfig reads a YAML configuration file, applying defaults for
// anything the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Coordinator.CouncilSize <= 0 {
		return fmt.Errorf("coordinator.councilSize must be > 0")
	}
	if c.Coordinator.EvaluatorTimeoutMs <= 0 || c.Coordinator.CollectTimeoutMs <= 0 {
		return fmt.Errorf("coordinator timeouts must be > 0")
	}
	if c.Coordinator.MailboxSize < 1 {
		return fmt.Errorf("coordinator.mailboxSize must be >= 1")
	}
	if c.Coordinator.ReservedHighPriority < 0 || c.Coordinator.ReservedHighPriority > c.Coordinator.MailboxSize {
		return fmt.Errorf("coordinator.reservedHighPriority must be within [0, mailboxSize]")
	}
	switch c.EventLog.Backend {
	case "", BackendMemory:
	case BackendFs, BackendSqlite:
		if c.EventLog.Location == "" {
			return fmt.Errorf("eventLog.location is required for the %s backend", c.EventLog.Backend)
		}
	default:
		return fmt.Errorf("unknown eventLog.backend: %q", c.EventLog.Backend)
	}
	return nil
}

// EvaluatorTimeout returns the evaluator timeout as a duration.
func (c *CoordinatorConfig) EvaluatorTimeout() time.Duration {
	return time.Duration(c.EvaluatorTimeoutMs) * time.Millisecond
}

// CollectTimeout returns the collection deadline as a duration.
func (c *CoordinatorConfig) CollectTimeout() time.Duration {
	return time.Duration(c.CollectTimeoutMs) * time.Millisecond
}
