// Package config loads the opshub client configuration from YAML with
// environment overrides, and can watch the file for changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "300ms"
// or "2s".
type Duration time.Duration

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"300ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// RetryConfig overrides the transient-retry policy.
type RetryConfig struct {
	MaxAttempts int        `yaml:"max_attempts"`
	Delays      []Duration `yaml:"delays"`
}

// Config is the on-disk configuration.
type Config struct {
	// BaseURL is the backend origin, e.g. https://ops.example.com/api.
	BaseURL string `yaml:"base_url"`

	// CSRFHeader and CSRFCookie override the anti-forgery conventions.
	CSRFHeader string `yaml:"csrf_header"`
	CSRFCookie string `yaml:"csrf_cookie"`

	// Retry overrides the backoff policy for 5xx/transport failures.
	Retry RetryConfig `yaml:"retry"`

	// SettleDelay is the pause after credential recovery before
	// re-dispatching a request.
	SettleDelay Duration `yaml:"settle_delay"`

	// RefreshWait bounds how long a request waits on an in-flight refresh.
	RefreshWait Duration `yaml:"refresh_wait"`

	// LogoutCooldown re-arms the forced-logout guard.
	LogoutCooldown Duration `yaml:"logout_cooldown"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		CSRFHeader: "X-CSRF-Token",
		CSRFCookie: "csrf_token",
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delays: []Duration{
				Duration(1 * time.Second),
				Duration(2 * time.Second),
				Duration(4 * time.Second),
			},
		},
		SettleDelay:    Duration(300 * time.Millisecond),
		RefreshWait:    Duration(10 * time.Second),
		LogoutCooldown: Duration(2 * time.Second),
		LogLevel:       "info",
	}
}

// DefaultPath returns the standard config location,
// e.g. ~/.config/opshub/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "opshub", "config.yaml")
}

// Load reads the config at path, layering file values over defaults and
// environment overrides over both. A missing file is not an error; defaults
// plus environment apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPSHUB_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OPSHUB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OPSHUB_CSRF_HEADER"); v != "" {
		cfg.CSRFHeader = v
	}
	if v := os.Getenv("OPSHUB_CSRF_COOKIE"); v != "" {
		cfg.CSRFCookie = v
	}
}

func (c Config) validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be non-negative")
	}
	return nil
}

// Save writes the config to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
