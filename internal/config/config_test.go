package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

// validYAML returns a configuration overriding a few defaults.
func validYAML() string {
	return `data_dir: /tmp/qp
initial_capital: 25000
heartbeat_interval: 2s
phase_timeout: 90s
retry:
  max_retries: 5
  base_delay: 500ms
  max_delay: 10s
recovery:
  max_attempts: 2
`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "quantpilot.yaml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validYAML())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialCapital != 25000 {
		t.Errorf("InitialCapital = %f, want 25000", cfg.InitialCapital)
	}
	if cfg.HeartbeatInterval.Std() != 2*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 2s", cfg.HeartbeatInterval.Std())
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("Retry.MaxRetries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay.Std() != 500*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %s, want 500ms", cfg.Retry.BaseDelay.Std())
	}
	// Paths derive from data_dir when not set explicitly.
	if cfg.EventLogPath != "/tmp/qp/events.jsonl" {
		t.Errorf("EventLogPath = %q", cfg.EventLogPath)
	}
	if cfg.DBPath != "/tmp/qp/sessions.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	// Unset recovery delays fall back to defaults.
	if cfg.Recovery.MaxAttempts != 2 {
		t.Errorf("Recovery.MaxAttempts = %d, want 2", cfg.Recovery.MaxAttempts)
	}
	if cfg.Recovery.BaseDelay.Std() != time.Second {
		t.Errorf("Recovery.BaseDelay = %s, want 1s", cfg.Recovery.BaseDelay.Std())
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/quantpilot.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "retry: [not: a: mapping")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.InitialCapital != 10000 {
		t.Errorf("InitialCapital = %f, want 10000", cfg.InitialCapital)
	}
	if cfg.HeartbeatInterval.Std() != 5*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 5s", cfg.HeartbeatInterval.Std())
	}
	if cfg.PhaseTimeout.Std() != 60*time.Second {
		t.Errorf("PhaseTimeout = %s, want 60s", cfg.PhaseTimeout.Std())
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Recovery.MaxAttempts != 3 {
		t.Errorf("retry/recovery counts = %d/%d, want 3/3", cfg.Retry.MaxRetries, cfg.Recovery.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestDuration_YAMLForms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"duration string", "heartbeat_interval: 250ms", 250 * time.Millisecond},
		{"bare seconds", "heartbeat_interval: 7", 7 * time.Second},
		{"compound string", "heartbeat_interval: 1m30s", 90 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.yaml)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.HeartbeatInterval.Std() != tc.want {
				t.Errorf("interval = %s, want %s", cfg.HeartbeatInterval.Std(), tc.want)
			}
		})
	}
}

func TestDuration_Invalid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "heartbeat_interval: soonish")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative capital", func(c *Config) { c.InitialCapital = -5 }, "initial_capital"},
		{"heartbeat too fast", func(c *Config) { c.HeartbeatInterval = Duration(10 * time.Millisecond) }, "heartbeat_interval"},
		{"zero retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"retry delay inverted", func(c *Config) { c.Retry.MaxDelay = Duration(time.Millisecond) }, "retry.max_delay"},
		{"recovery delay inverted", func(c *Config) { c.Recovery.MaxDelay = Duration(time.Millisecond) }, "recovery.max_delay"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var ee *domain.EngineError
			if !errors.As(err, &ee) {
				t.Fatalf("err = %T, want *domain.EngineError", err)
			}
			if ee.Code != domain.ErrConfigInvalid.Code {
				t.Errorf("code = %d, want %d", ee.Code, domain.ErrConfigInvalid.Code)
			}
			if !strings.Contains(ee.Message, tc.want) {
				t.Errorf("message %q does not mention %q", ee.Message, tc.want)
			}
		})
	}
}
