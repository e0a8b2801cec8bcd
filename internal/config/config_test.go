package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8888", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Budget.RefreshInterval)
	assert.Equal(t, 12, cfg.Budget.Periods)

	tol, err := cfg.ToleranceDecimal()
	require.NoError(t, err)
	assert.Equal(t, "0.01", tol.String())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
db:
  path: /tmp/books.db
budget:
  refresh_interval: 15m
  periods: 6
`)
	t.Setenv("LEDGERBOOK_RECONCILE_TOLERANCE", "0.5")
	t.Setenv("LEDGERBOOK_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/books.db", cfg.DB.Path)
	assert.Equal(t, 15*time.Minute, cfg.Budget.RefreshInterval)
	assert.Equal(t, 6, cfg.Budget.Periods)
	assert.Equal(t, "0.5", cfg.Reconcile.Tolerance)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "UTC", cfg.Budget.Timezone, "unset keys keep their defaults")
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"db path", func(c *Config) { c.DB.Path = "" }},
		{"tolerance syntax", func(c *Config) { c.Reconcile.Tolerance = "a cent" }},
		{"negative tolerance", func(c *Config) { c.Reconcile.Tolerance = "-0.01" }},
		{"workers", func(c *Config) { c.Reconcile.Workers = 0 }},
		{"refresh interval", func(c *Config) { c.Budget.RefreshInterval = -time.Second }},
		{"periods", func(c *Config) { c.Budget.Periods = 0 }},
		{"timezone", func(c *Config) { c.Budget.Timezone = "Mars/Olympus_Mons" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
