// Package config loads the engine's runtime configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantpilot/engine/internal/domain"
)

// RetryConfig tunes operation-level retry inside phase work.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay"`
	MaxDelay   Duration `yaml:"max_delay"`
}

// RecoveryConfig tunes phase-level recovery.
type RecoveryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DataDir           string         `yaml:"data_dir"`
	EventLogPath      string         `yaml:"event_log_path"`
	SummaryPath       string         `yaml:"summary_path"`
	DBPath            string         `yaml:"db_path"`
	InitialCapital    float64        `yaml:"initial_capital"`
	HeartbeatInterval Duration       `yaml:"heartbeat_interval"`
	PhaseTimeout      Duration       `yaml:"phase_timeout"`
	Retry             RetryConfig    `yaml:"retry"`
	Recovery          RecoveryConfig `yaml:"recovery"`
}

// Load reads a YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-value fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.EventLogPath == "" {
		c.EventLogPath = filepath.Join(c.DataDir, "events.jsonl")
	}
	if c.SummaryPath == "" {
		c.SummaryPath = filepath.Join(c.DataDir, "summary.json")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "sessions.db")
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = 10000
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = Duration(5 * time.Second)
	}
	if c.PhaseTimeout == 0 {
		c.PhaseTimeout = Duration(60 * time.Second)
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = Duration(1 * time.Second)
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = Duration(30 * time.Second)
	}
	if c.Recovery.MaxAttempts == 0 {
		c.Recovery.MaxAttempts = 3
	}
	if c.Recovery.BaseDelay == 0 {
		c.Recovery.BaseDelay = Duration(1 * time.Second)
	}
	if c.Recovery.MaxDelay == 0 {
		c.Recovery.MaxDelay = Duration(30 * time.Second)
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var problems []string

	if c.InitialCapital <= 0 {
		problems = append(problems, "initial_capital must be positive")
	}
	if c.HeartbeatInterval.Std() < 100*time.Millisecond {
		problems = append(problems, "heartbeat_interval must be at least 100ms")
	}
	if c.PhaseTimeout <= 0 {
		problems = append(problems, "phase_timeout must be positive")
	}
	if c.Retry.MaxRetries < 1 {
		problems = append(problems, "retry.max_retries must be at least 1")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		problems = append(problems, "retry.max_delay must be >= retry.base_delay")
	}
	if c.Recovery.MaxAttempts < 1 {
		problems = append(problems, "recovery.max_attempts must be at least 1")
	}
	if c.Recovery.MaxDelay < c.Recovery.BaseDelay {
		problems = append(problems, "recovery.max_delay must be >= recovery.base_delay")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
