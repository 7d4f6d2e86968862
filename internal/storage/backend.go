package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
)

// Config is the minimal configuration needed to create a backend.
//
// When to use:
//   - Use Config when constructing a Backend via New.
//
// Edge cases:
//   - DSN is used by network backends (mssql, postgres); Path is used by the
//     embedded sqlite backend. A backend reads the field it needs and ignores
//     the other.
//   - Zero pool values mean "driver default"; backends must not treat 0 as
//     "no connections".
//
// Errors:
//   - New returns an error if the kind is empty or unsupported; everything
//     else is backend-specific.
type Config struct {
	DSN  string
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Logger receives connection and statement diagnostics. May be nil.
	Logger Logger
}

// Logger is the minimal logging interface backends use.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// TableInfo describes a destination table after a run.
type TableInfo struct {
	Name     string       `json:"name"`
	RowCount int64        `json:"row_count"`
	Columns  []ColumnInfo `json:"columns"`
}

// ColumnInfo is one column as reported by the engine catalog.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Backend is the contract every destination engine implements.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the ingestion pipeline needs. Each engine implements these
// semantics in its own idiomatic way (mssql OBJECT_ID drop guards, sqlite
// PRAGMA catalog reads, postgres pgxpool, etc).
type Backend interface {
	// Kind returns the registered kind string ("mssql", "sqlite", "postgres").
	Kind() string

	// Connect opens the pool and verifies it with a bounded ping.
	//
	// Edge cases:
	//   - Returns false instead of an error: connection failure is an
	//     expected, recoverable condition (the hybrid manager falls back on
	//     it). The cause is logged, never raised.
	//   - Calling Connect on an already connected backend re-verifies and
	//     returns the current health.
	Connect(ctx context.Context) bool

	// Test reports whether the connection answers a trivial query.
	// A disconnected backend attempts Connect first.
	Test(ctx context.Context) bool

	// CreateTable drops any existing table of the same name and creates it
	// from the schema. Destructive and idempotent within a run.
	//
	// Errors:
	//   - ErrBackendUnavailable when not connected.
	//   - *SchemaError when the engine rejects the DDL.
	CreateTable(ctx context.Context, t schema.Table) error

	// EvolveTable adds columns present in the schema but missing from the
	// existing table. Existing columns are never altered or dropped.
	//
	// Errors:
	//   - ErrBackendUnavailable when not connected.
	//   - *SchemaError when the engine rejects an ALTER statement.
	EvolveTable(ctx context.Context, t schema.Table) error

	// BulkInsert writes rows with a multi-row INSERT, splitting into batches
	// that respect the engine's bind-parameter limit. It returns the number
	// of rows the engine reports inserted.
	//
	// Edge cases:
	//   - len(rows) == 0 returns (0, nil) without touching the engine.
	//   - Values are normalized via NormalizeValue before binding.
	//
	// Errors:
	//   - ErrBackendUnavailable when not connected.
	//   - *InsertError when the engine rejects the statement or reports a
	//     row count different from len(rows).
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// TableInfo returns the live row count and column catalog for table.
	TableInfo(ctx context.Context, table string) (TableInfo, error)

	// Close releases the pool.
	//
	// Edge cases:
	//   - Safe to call on a never-connected backend and safe to call twice.
	Close() error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "mssql", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Edge cases:
//   - kind must be non-empty.
//   - f must be non-nil.
//   - Registering the same kind more than once panics. This is intentional to
//     fail fast and avoid ambiguous backend selection.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Backend using the registered factory for kind.
//
// When to use:
//   - Call New when building the hybrid pair (primary + fallback) for a run.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, kind string, cfg Config) (Backend, error) {
	if kind == "" {
		return nil, fmt.Errorf("storage: missing backend kind")
	}

	factoryMu.RLock()
	f := factories[kind]
	factoryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s", kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for diagnostics and CLI help.
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
