package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/rxbind/internal/errors"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50*time.Millisecond, cfg.Throttle())
	assert.Equal(t, 250*time.Millisecond, cfg.MaxWait())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())

	src := cfg.SourceConfig()
	assert.Equal(t, 20, src.BatchSize)
	assert.Equal(t, -10000, src.Min)
	assert.Equal(t, 10000, src.Max)
	assert.Equal(t, 10*time.Millisecond, src.Period)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultThrottleMS, cfg.ThrottleMS)
	assert.Empty(t, cfg.Path())
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "rxbind.json", `{
		"throttle_ms": 20,
		"source": {"batch_size": 5, "min": 0, "max": 100},
		"server": {"address": "127.0.0.1:9000"},
		"log": {"level": "debug", "format": "json"}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, 20*time.Millisecond, cfg.Throttle())
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	src := cfg.SourceConfig()
	assert.Equal(t, 5, src.BatchSize)
	assert.Equal(t, 0, src.Min, "explicit zero is kept")
	assert.Equal(t, 100, src.Max)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "rxbind.yaml", `
throttle_ms: 75
max_wait_ms: 300
source:
  interval_ms: 25
metrics:
  namespace: demo
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, cfg.Throttle())
	assert.Equal(t, 300*time.Millisecond, cfg.MaxWait())
	assert.Equal(t, 25*time.Millisecond, cfg.SourceConfig().Period)
	assert.Equal(t, "demo", cfg.Metrics.Namespace)
}

func TestExplicitZeroMaxWaitDisablesBound(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "rxbind.json", `{"max_wait_ms": 0}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxWait())
}

func TestJSONTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "rxbind.json", `{"throttle_ms": 10}`)
	write(t, dir, "rxbind.yml", "throttle_ms: 90\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ThrottleMS)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.IsCode(err, "R031"))

	_, err = LoadFile(write(t, dir, "bad.json", "{"))
	assert.True(t, errors.IsCode(err, "R032"))

	_, err = LoadFile(write(t, dir, "bad.yaml", "throttle_ms: [1"))
	assert.True(t, errors.IsCode(err, "R032"))

	_, err = LoadFile(write(t, dir, "neg.json", `{"throttle_ms": -5}`))
	assert.True(t, errors.IsCode(err, "R030"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max wait", func(c *Config) { c.MaxWaitMS = intPtr(-1) }},
		{"empty range", func(c *Config) { c.Source.Min = intPtr(5); c.Source.Max = intPtr(5) }},
		{"negative batch", func(c *Config) { c.Source.BatchSize = -1 }},
		{"negative buffer", func(c *Config) { c.Server.ReadBuffer = -1 }},
		{"negative queue", func(c *Config) { c.Server.DispatchQueue = -1 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, "R030"))
		})
	}
}
