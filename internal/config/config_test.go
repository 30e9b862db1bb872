package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TEXMTLX_CONVERTER", "TEXMTLX_CACHE_EXT", "TEXMTLX_RESERVE", "TEXMTLX_JOB_ROOT", "JOB",
		"TEXMTLX_SINK", "TEXMTLX_LIBRARY", "TEXMTLX_LOG_LEVEL", "TEXMTLX_LOG_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ".tx", cfg.CacheExt)
	assert.Equal(t, 0.15, cfg.Reserve)
	assert.Equal(t, "", cfg.JobRoot)
	assert.Equal(t, SinkMemory, cfg.Sink)
	assert.Equal(t, "/stage/materiallibrary", cfg.Library)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TEXMTLX_RESERVE", "0.5")
	t.Setenv("TEXMTLX_SINK", "SQLite")
	t.Setenv("JOB", "/jobs/show")
	t.Setenv("TEXMTLX_JOB_ROOT", "")
	t.Setenv("TEXMTLX_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, 0.5, cfg.Reserve)
	assert.Equal(t, SinkSQLite, cfg.Sink)
	assert.Equal(t, "/jobs/show", cfg.JobRoot, "job root falls back to $JOB")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	t.Setenv("TEXMTLX_JOB_ROOT", "/mnt/proj")
	assert.Equal(t, "/mnt/proj", Load().JobRoot)
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0.15},
		{"0.25", 0.25},
		{"0", 0},
		{"1", 0.15},
		{"-0.1", 0.15},
		{"lots", 0.15},
	}
	for _, tt := range tests {
		if got := parseFloat(tt.in, 0.15); got != tt.want {
			t.Errorf("parseFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Sink: "postgres", CacheExt: ".tx", Library: "/stage/lib"}
	assert.ErrorContains(t, cfg.Validate(), "unknown sink")

	cfg = Config{Sink: SinkMemory, CacheExt: "tx", Library: "/stage/lib"}
	assert.ErrorContains(t, cfg.Validate(), "dot")
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("material created", "material", "tires")

	assert.Contains(t, stderr.String(), "material=tires")
	assert.Contains(t, file.String(), `"material":"tires"`)
	assert.NotContains(t, stderr.String(), "hidden")
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texmtlx.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	logger, cleanup = SetupLogger("", slog.LevelInfo)
	require.NotNil(t, logger)
	require.NoError(t, cleanup())
}
