package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "refchain.db", cfg.Path)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: badger\npath: /tmp/refchain\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendBadger, cfg.Backend)
	assert.Equal(t, "/tmp/refchain", cfg.Path)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: sqlite\npath: a.db\n"), 0o644))
	t.Setenv("REFCHAIN_BACKEND", "memory")
	t.Setenv("REFCHAIN_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory needs no path", Config{Backend: BackendMemory, LogLevel: "info"}, ""},
		{"sqlite without path", Config{Backend: BackendSQLite, LogLevel: "info"}, "requires a path"},
		{"badger without path", Config{Backend: BackendBadger, LogLevel: "info"}, "requires a path"},
		{"unknown backend", Config{Backend: "postgres", LogLevel: "info"}, "unknown backend"},
		{"unknown level", Config{Backend: BackendMemory, LogLevel: "loud"}, "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
