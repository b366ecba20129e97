// Package config loads the refchain configuration file and applies
// environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the configuration.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config selects the storage backend and runtime defaults.
type Config struct {
	// Backend is one of memory, sqlite, badger.
	Backend string `yaml:"backend"`
	// Path is the SQLite file or Badger directory. Unused by memory.
	Path string `yaml:"path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend:  BackendSQLite,
		Path:     "refchain.db",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path, falling back to defaults when path
// is empty. Environment variables REFCHAIN_BACKEND, REFCHAIN_PATH and
// REFCHAIN_LOG_LEVEL override the file in all cases.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REFCHAIN_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("REFCHAIN_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("REFCHAIN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the backend and log level names.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBadger:
		if c.Path == "" {
			return fmt.Errorf("config: backend %q requires a path", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps the configured level onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
