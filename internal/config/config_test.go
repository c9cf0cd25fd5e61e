package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9000"
drivers:
  - simulator
log:
  level: debug
  traceFile: /tmp/hub.trace
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, []string{"simulator"}, cfg.Drivers)
	assert.Equal(t, "/tmp/hub.trace", cfg.Log.TraceFile)

	// Untouched settings keep their defaults.
	assert.Equal(t, "astrobus", cfg.ServiceName)
	assert.True(t, cfg.Discovery)
	assert.Equal(t, 256, cfg.QueueCapacity)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "listne: \":7624\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Listen = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ServiceName = ""
	assert.Error(t, cfg.Validate(), "discovery needs a service name")
	cfg.Discovery = false
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
