package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
base_url: https://changes.example.com/
project: server
tab: builds
per_page: 50
failure_grace: 500ms
live_update: true
`)
	t.Setenv("CIDASH_PROJECT", "client")
	t.Setenv("CIDASH_HTTP_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://changes.example.com/", cfg.BaseURL)
	assert.Equal(t, "client", cfg.Project)
	assert.Equal(t, "builds", cfg.Tab)
	assert.Equal(t, 50, cfg.PerPage)
	assert.Equal(t, 500*time.Millisecond, cfg.FailureGrace)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.LiveUpdate)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "per_page: [1, 2"))
	assert.Error(t, err)
}

func TestConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("CIDASH_PER_PAGE", "-3")
	t.Setenv("CIDASH_LIVE_UPDATE_INTERVAL", "soon")
	t.Setenv("CIDASH_VERBOSITY", "5")

	cfg := ConfigFromEnv()
	assert.Equal(t, 0, cfg.PerPage)
	assert.Equal(t, 5*time.Second, cfg.LiveUpdateInterval)
	assert.Equal(t, 5, cfg.Verbosity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"unknown tab", func(c *Config) { c.Tab = "deploys" }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"zero capacity", func(c *Config) { c.CacheCapacity = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestDefaultPathHonoursXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "cidash", "config.yaml"), DefaultPath())
}
