// Package config resolves cidash settings from defaults, an optional YAML
// file and CIDASH_* environment variables. Command-line flags are applied on
// top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cidash/internal/logging"
)

type Config struct {
	// BaseURL is the root of the Changes server, e.g. https://changes.example.com/.
	BaseURL string `yaml:"base_url"`
	// Project is the slug of the project shown on start-up.
	Project string `yaml:"project"`
	// Tab selects the initial view, "commits" or "builds".
	Tab string `yaml:"tab"`
	// Query is an initial query string such as "branch=dev&page=2".
	Query string `yaml:"query"`
	// PerPage is sent as per_page when positive.
	PerPage int `yaml:"per_page"`
	// HTTPTimeout bounds each request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// FailureGrace is how long a failed request is remembered.
	FailureGrace time.Duration `yaml:"failure_grace"`
	// CacheCapacity bounds the number of cached pages per view.
	CacheCapacity uint64 `yaml:"cache_capacity"`
	// LiveUpdateInterval is the polling period when live updates are on.
	LiveUpdateInterval time.Duration `yaml:"live_update_interval"`
	LiveUpdate         bool          `yaml:"live_update"`
	// LogFile receives structured logs. Empty disables logging, since the
	// terminal belongs to the UI.
	LogFile   string `yaml:"log_file"`
	Verbosity int    `yaml:"verbosity"`
	// MetricsAddr serves /metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:5000/",
		Tab:                "commits",
		HTTPTimeout:        10 * time.Second,
		FailureGrace:       2 * time.Second,
		CacheCapacity:      512,
		LiveUpdateInterval: 5 * time.Second,
		Verbosity:          logging.DEFAULT,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/cidash/config.yaml, falling back to the
// platform user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "cidash", "config.yaml")
}

// Load returns the defaults overlaid with the file at path, if it exists,
// and then the environment. Callers apply flags and then Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ConfigFromEnv returns the defaults overlaid with the environment only.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CIDASH_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("CIDASH_PROJECT"); v != "" {
		c.Project = v
	}
	if v := os.Getenv("CIDASH_TAB"); v != "" {
		c.Tab = v
	}
	if v := os.Getenv("CIDASH_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PerPage = n
		}
	}
	if v := os.Getenv("CIDASH_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.HTTPTimeout = d
		}
	}
	if v := os.Getenv("CIDASH_FAILURE_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.FailureGrace = d
		}
	}
	if v := os.Getenv("CIDASH_LIVE_UPDATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.LiveUpdateInterval = d
		}
	}
	if v := os.Getenv("CIDASH_LIVE_UPDATE"); v != "" {
		c.LiveUpdate = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CIDASH_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("CIDASH_VERBOSITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Verbosity = n
		}
	}
	if v := os.Getenv("CIDASH_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

// Validate reports settings the UI cannot start with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}
	switch c.Tab {
	case "commits", "builds":
	default:
		return fmt.Errorf("unknown tab %q", c.Tab)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.CacheCapacity == 0 {
		return errors.New("cache capacity must be positive")
	}
	return nil
}
