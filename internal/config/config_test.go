package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Processing.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.Processing.ChunkSize, DefaultChunkSize)
	}
	if cfg.Processing.Mode != "create" {
		t.Errorf("Mode = %q, want create", cfg.Processing.Mode)
	}
	if cfg.Processing.HistoryPath != DefaultHistoryPath {
		t.Errorf("HistoryPath = %q, want %q", cfg.Processing.HistoryPath, DefaultHistoryPath)
	}
	if cfg.Database.FallbackPath != DefaultFallbackPath {
		t.Errorf("FallbackPath = %q, want %q", cfg.Database.FallbackPath, DefaultFallbackPath)
	}
	if cfg.Database.Pool.MaxOpenConns != 5 || cfg.Database.Pool.MaxIdleConns != 5 {
		t.Errorf("Pool = %+v, want 5/5 defaults", cfg.Database.Pool)
	}
	if cfg.Database.Pool.ConnMaxLifetime.Std() != time.Hour {
		t.Errorf("ConnMaxLifetime = %v, want 1h", cfg.Database.Pool.ConnMaxLifetime.Std())
	}
	if cfg.Database.Pool.ConnMaxIdleTime.Std() != 5*time.Minute {
		t.Errorf("ConnMaxIdleTime = %v, want 5m", cfg.Database.Pool.ConnMaxIdleTime.Std())
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"source": {"type": "mock", "template": "employees", "rows": 500, "seed": 7},
		"database": {
			"kind": "mssql",
			"dsn": "sqlserver://sa:pw@db:1433?database=ingest",
			"fallback_path": "local.db",
			"pool": {"max_open_conns": 10, "conn_max_lifetime": "30m"}
		},
		"processing": {"chunk_size": 250, "mode": "append"},
		"table": "staff"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Source.Template != "employees" || cfg.Source.Rows != 500 || cfg.Source.Seed != 7 {
		t.Errorf("Source = %+v, want employees/500/7", cfg.Source)
	}
	if cfg.Database.Kind != "mssql" || cfg.Database.FallbackPath != "local.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.Pool.MaxOpenConns != 10 {
		t.Errorf("MaxOpenConns = %d, want 10", cfg.Database.Pool.MaxOpenConns)
	}
	if cfg.Database.Pool.ConnMaxLifetime.Std() != 30*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 30m", cfg.Database.Pool.ConnMaxLifetime.Std())
	}
	// Defaulted field alongside explicit ones.
	if cfg.Database.Pool.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want default 5", cfg.Database.Pool.MaxIdleConns)
	}
	if cfg.Processing.ChunkSize != 250 || cfg.Processing.Mode != "append" {
		t.Errorf("Processing = %+v, want 250/append", cfg.Processing)
	}
	if cfg.Table != "staff" {
		t.Errorf("Table = %q, want staff", cfg.Table)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantWord string
	}{
		{"bad source type", `{"source": {"type": "ftp"}}`, "source.type"},
		{"excel without path", `{"source": {"type": "excel"}}`, "source.path"},
		{"negative rows", `{"source": {"type": "mock", "rows": -1}}`, "source.rows"},
		{"bad kind", `{"database": {"kind": "oracle"}}`, "database.kind"},
		{"bad mode", `{"processing": {"mode": "upsert"}}`, "processing.mode"},
		{"negative chunk", `{"processing": {"chunk_size": -5}}`, "chunk_size"},
		{"bad duration", `{"database": {"pool": {"conn_max_lifetime": "soon"}}}`, "duration"},
		{"malformed json", `{`, "parse"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load = nil error, want error")
			}
			if !strings.Contains(err.Error(), tt.wantWord) {
				t.Fatalf("error %q does not name %q", err.Error(), tt.wantWord)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load missing file = nil error, want error")
	}
}

func TestApplyEnv(t *testing.T) {
	// Not parallel: mutates process environment.
	t.Setenv(EnvDSN, "postgres://u:p@env-host/db")
	t.Setenv(EnvFallbackPath, "/tmp/env_fallback.db")
	t.Setenv(EnvChunkSize, "123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Database.DSN != "postgres://u:p@env-host/db" {
		t.Errorf("DSN = %q, want env value", cfg.Database.DSN)
	}
	if cfg.Database.FallbackPath != "/tmp/env_fallback.db" {
		t.Errorf("FallbackPath = %q, want env value", cfg.Database.FallbackPath)
	}
	if cfg.Processing.ChunkSize != 123 {
		t.Errorf("ChunkSize = %d, want 123", cfg.Processing.ChunkSize)
	}
}

func TestApplyEnvRejectsBadChunkSize(t *testing.T) {
	t.Setenv(EnvChunkSize, "lots")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("ApplyEnv with bad chunk size = nil error, want error")
	}

	t.Setenv(EnvChunkSize, "0")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("ApplyEnv with zero chunk size = nil error, want error")
	}
}

func TestApplyEnvLeavesUnsetFields(t *testing.T) {
	t.Setenv(EnvDSN, "")
	t.Setenv(EnvFallbackPath, "")
	t.Setenv(EnvChunkSize, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Database.DSN = "keep-me"
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Database.DSN != "keep-me" {
		t.Errorf("DSN = %q, want keep-me", cfg.Database.DSN)
	}
	if cfg.Database.FallbackPath != DefaultFallbackPath {
		t.Errorf("FallbackPath = %q, want default", cfg.Database.FallbackPath)
	}
}
