// Package config loads the hub server configuration.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the hub server configuration.
type Config struct {
	// Listen is the TCP listen address.
	Listen string `yaml:"listen"`

	// ServiceName is the mDNS instance name the hub announces under.
	ServiceName string `yaml:"serviceName"`

	// Discovery enables the mDNS announcement.
	Discovery bool `yaml:"discovery"`

	// Drivers are loaded at startup, in order.
	Drivers []string `yaml:"drivers"`

	// QueueCapacity bounds each client's outbound event queue.
	QueueCapacity int `yaml:"queueCapacity"`

	// MaxLineSize is the maximum protocol line size in bytes.
	MaxLineSize int `yaml:"maxLineSize"`

	// Log configures console logging and the binary trace file.
	Log LogConfig `yaml:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the console log level: debug, info, warn or error.
	Level string `yaml:"level"`

	// TraceFile, when set, records every protocol event to a binary
	// trace file for offline inspection.
	TraceFile string `yaml:"traceFile"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:        ":7624",
		ServiceName:   "astrobus",
		Discovery:     true,
		Drivers:       []string{"simulator"},
		QueueCapacity: 256,
		MaxLineSize:   16 << 20,
		Log:           LogConfig{Level: "info"},
	}
}

// Load reads and validates a configuration file. Settings not present in
// the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Discovery && c.ServiceName == "" {
		return fmt.Errorf("serviceName is required when discovery is enabled")
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queueCapacity must not be negative")
	}
	if c.MaxLineSize < 0 {
		return fmt.Errorf("maxLineSize must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured level to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
}
