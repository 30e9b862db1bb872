// Package config loads texmtlx settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Sink backends selectable with TEXMTLX_SINK.
const (
	SinkMemory  = "memory"
	SinkSQLite  = "sqlite"
	SinkSurreal = "surreal"
)

// Config holds all configuration values.
type Config struct {
	// Conversion
	ConverterPath string
	CacheExt      string
	Reserve       float64

	// Paths
	JobRoot      string
	TaxonomyFile string

	// Material library
	Sink       string
	SQLitePath string
	Library    string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		ConverterPath: getEnv("TEXMTLX_CONVERTER", ""),
		CacheExt:      getEnv("TEXMTLX_CACHE_EXT", ".tx"),
		Reserve:       parseFloat(getEnv("TEXMTLX_RESERVE", ""), 0.15),

		// An unset job root falls back to the $JOB the host exports
		JobRoot:      getEnv("TEXMTLX_JOB_ROOT", os.Getenv("JOB")),
		TaxonomyFile: getEnv("TEXMTLX_TAXONOMY", ""),

		Sink:       strings.ToLower(getEnv("TEXMTLX_SINK", SinkMemory)),
		SQLitePath: getEnv("TEXMTLX_SQLITE_PATH", "materials.db"),
		Library:    getEnv("TEXMTLX_LIBRARY", "/stage/materiallibrary"),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "texmtlx"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "materials"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("TEXMTLX_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("TEXMTLX_LOG_LEVEL", "INFO")),
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Sink {
	case SinkMemory, SinkSQLite, SinkSurreal:
	default:
		return fmt.Errorf("unknown sink %q (want %s, %s or %s)", c.Sink, SinkMemory, SinkSQLite, SinkSurreal)
	}
	if !strings.HasPrefix(c.CacheExt, ".") {
		return fmt.Errorf("cache extension %q must start with a dot", c.CacheExt)
	}
	if c.Library == "" {
		return fmt.Errorf("library path is empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// parseFloat returns def for empty or unparsable input and for values
// outside [0, 1).
func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v >= 1 {
		return def
	}
	return v
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
