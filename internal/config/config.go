// Package config defines the gate's policy knobs. Configuration is an
// explicit value threaded into each component, so multiple gate instances
// with different policies can coexist in one process.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Diff       DiffConfig       `yaml:"diff"`
	Approvals  ApprovalsConfig  `yaml:"approvals"`
	Audit      AuditConfig      `yaml:"audit"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type WorkspaceConfig struct {
	// Root is the directory all writes must stay inside.
	Root string `yaml:"root"`
	// ProtectedPaths are glob patterns (relative to root, slash-separated)
	// that may never be written, e.g. ".git/**".
	ProtectedPaths []string `yaml:"protected_paths"`
	// WriteBack makes the gate perform the disk write itself after an
	// approved evaluation; otherwise the caller writes FinalContent.
	WriteBack bool `yaml:"write_back"`
}

type ThresholdsConfig struct {
	// LineFloor: originals at or below this many lines never require
	// approval.
	LineFloor int `yaml:"line_floor"`
	// RatioCeiling: change ratios at or above this classify as replace.
	RatioCeiling float64 `yaml:"ratio_ceiling"`
}

type DiffConfig struct {
	MaxLines int  `yaml:"max_lines"`
	Context  int  `yaml:"context"`
	Color    bool `yaml:"color"`
}

type ApprovalsConfig struct {
	// Timeout bounds the wait for a decision, e.g. "30m".
	Timeout string `yaml:"timeout"`
	// Unattended removes the decision channel entirely. It can only make
	// replaces fail fast; it can never approve them.
	Unattended bool `yaml:"unattended"`
	// Channel selects the decision channel: auto, tty, api, none.
	Channel string `yaml:"channel"`
}

type AuditConfig struct {
	// Backend is "jsonl" or "sqlite".
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`

	Integrity IntegrityConfig `yaml:"integrity"`
}

type IntegrityConfig struct {
	Enabled   bool   `yaml:"enabled"`
	KeyFile   string `yaml:"key_file"`
	KeyEnv    string `yaml:"key_env"`
	Algorithm string `yaml:"algorithm"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// APIKey guards mutation endpoints when non-empty; clients send it in
	// the X-API-Key header. Without it an agent on localhost could
	// self-approve its own replaces.
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in policy.
func Default() Config {
	return Config{
		Thresholds: ThresholdsConfig{LineFloor: 100, RatioCeiling: 0.5},
		Diff:       DiffConfig{MaxLines: 50, Context: 3},
		Approvals:  ApprovalsConfig{Timeout: "30m", Channel: "auto"},
		Audit: AuditConfig{
			Backend:    "jsonl",
			Path:       "audit/writegate.jsonl",
			MaxSizeMB:  100,
			MaxBackups: 3,
			Integrity:  IntegrityConfig{Enabled: true, KeyEnv: "WRITEGATE_AUDIT_KEY", Algorithm: "hmac-sha256"},
		},
		Server:  ServerConfig{Addr: "127.0.0.1:8448"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the gate cannot run with.
func (c *Config) Validate() error {
	if c.Thresholds.LineFloor < 0 {
		return fmt.Errorf("thresholds.line_floor must be >= 0")
	}
	if c.Thresholds.RatioCeiling < 0 || c.Thresholds.RatioCeiling > 1 {
		return fmt.Errorf("thresholds.ratio_ceiling must be in [0, 1]")
	}
	if c.Diff.MaxLines < 0 {
		return fmt.Errorf("diff.max_lines must be >= 0")
	}
	if _, err := c.Approvals.TimeoutDuration(); err != nil {
		return err
	}
	switch c.Approvals.Channel {
	case "", "auto", "tty", "api", "none":
	default:
		return fmt.Errorf("approvals.channel %q: use auto, tty, api, or none", c.Approvals.Channel)
	}
	switch c.Audit.Backend {
	case "", "jsonl", "sqlite":
	default:
		return fmt.Errorf("audit.backend %q: use jsonl or sqlite", c.Audit.Backend)
	}
	return nil
}

// TimeoutDuration parses the decision timeout.
func (a ApprovalsConfig) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 30 * time.Minute, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("approvals.timeout %q: %w", a.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("approvals.timeout must be positive")
	}
	return d, nil
}
