// Package config defines the run configuration for the ingestion commands.
//
// Precedence is flag > environment > file > defaults; the file and defaults
// are handled here, env overrides by ApplyEnv, and flags by the commands.
// A Config is immutable once handed to the pipeline coordinator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultChunkSize    = 1000
	DefaultFallbackPath = "ingest_fallback.db"
	DefaultHistoryPath  = "logs/schema_history.json"
)

// Config is the full run configuration.
type Config struct {
	Source     SourceConfig     `json:"source"`
	Database   DatabaseConfig   `json:"database"`
	Processing ProcessingConfig `json:"processing"`

	// Table overrides the destination table name. Empty means derive it
	// from the source (file base name or template id).
	Table string `json:"table,omitempty"`
}

// SourceConfig selects and parameterizes the row source.
type SourceConfig struct {
	// Type is "mock" or "excel".
	Type string `json:"type"`

	// Template is the mock template id (employees, sales, inventory,
	// financial, custom). Mock only.
	Template string `json:"template,omitempty"`
	Rows     int    `json:"rows,omitempty"`
	Seed     int64  `json:"seed,omitempty"`

	// Path and Sheet select the workbook. Excel only; empty Sheet means
	// the first sheet.
	Path  string `json:"path,omitempty"`
	Sheet string `json:"sheet,omitempty"`
}

// DatabaseConfig selects the primary backend and the embedded fallback.
type DatabaseConfig struct {
	// Kind is the primary backend: "mssql" or "postgres".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`

	// FallbackPath is the sqlite file used when the primary is down.
	FallbackPath string `json:"fallback_path,omitempty"`

	Pool PoolConfig `json:"pool,omitempty"`
}

// PoolConfig tunes the primary backend's connection pool.
type PoolConfig struct {
	MaxOpenConns    int      `json:"max_open_conns,omitempty"`
	MaxIdleConns    int      `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime Duration `json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime Duration `json:"conn_max_idle_time,omitempty"`
}

// ProcessingConfig tunes the chunk loop.
type ProcessingConfig struct {
	ChunkSize int `json:"chunk_size,omitempty"`

	// Mode is "create" (drop and recreate the table) or "append" (evolve
	// the existing table and add rows).
	Mode string `json:"mode,omitempty"`

	// HistoryPath is where schema change records are appended.
	HistoryPath string `json:"history_path,omitempty"`
}

// Duration is a time.Duration that JSON-decodes from "1h30m" strings or
// plain nanosecond numbers.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: bad duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("config: bad duration value %v", raw)
	}
}

// Load reads a JSON config file, applies defaults, and validates.
//
// Edge cases:
//   - An empty path returns defaults only (env and flags fill the rest).
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Processing.ChunkSize == 0 {
		c.Processing.ChunkSize = DefaultChunkSize
	}
	if c.Processing.Mode == "" {
		c.Processing.Mode = "create"
	}
	if c.Processing.HistoryPath == "" {
		c.Processing.HistoryPath = DefaultHistoryPath
	}
	if c.Database.FallbackPath == "" {
		c.Database.FallbackPath = DefaultFallbackPath
	}
	if c.Database.Pool.MaxOpenConns == 0 {
		c.Database.Pool.MaxOpenConns = 5
	}
	if c.Database.Pool.MaxIdleConns == 0 {
		c.Database.Pool.MaxIdleConns = 5
	}
	if c.Database.Pool.ConnMaxLifetime == 0 {
		c.Database.Pool.ConnMaxLifetime = Duration(time.Hour)
	}
	if c.Database.Pool.ConnMaxIdleTime == 0 {
		c.Database.Pool.ConnMaxIdleTime = Duration(5 * time.Minute)
	}
}

// Validate checks field values; errors name the offending field.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case "", "mock", "excel":
	default:
		return fmt.Errorf("config: source.type must be mock or excel, got %q", c.Source.Type)
	}
	if c.Source.Type == "excel" && strings.TrimSpace(c.Source.Path) == "" {
		return fmt.Errorf("config: source.path is required for source.type=excel")
	}
	if c.Source.Rows < 0 {
		return fmt.Errorf("config: source.rows must be >= 0, got %d", c.Source.Rows)
	}

	switch c.Database.Kind {
	case "", "mssql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: database.kind must be mssql, postgres or sqlite, got %q", c.Database.Kind)
	}

	if c.Processing.ChunkSize < 1 {
		return fmt.Errorf("config: processing.chunk_size must be >= 1, got %d", c.Processing.ChunkSize)
	}
	switch c.Processing.Mode {
	case "create", "append":
	default:
		return fmt.Errorf("config: processing.mode must be create or append, got %q", c.Processing.Mode)
	}
	return nil
}

// Environment variables recognized by ApplyEnv.
const (
	EnvDSN          = "INGEST_DSN"
	EnvFallbackPath = "INGEST_FALLBACK_PATH"
	EnvChunkSize    = "INGEST_CHUNK_SIZE"
)

// ApplyEnv overlays recognized environment variables onto the config.
// Unset variables leave fields untouched; a malformed chunk size is an
// error rather than a silent default.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvDSN)); v != "" {
		c.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFallbackPath)); v != "" {
		c.Database.FallbackPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvChunkSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("config: %s must be a positive integer, got %q", EnvChunkSize, v)
		}
		c.Processing.ChunkSize = n
	}
	return nil
}
