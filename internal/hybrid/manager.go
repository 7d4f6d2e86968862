// Package hybrid pairs a primary database backend with an embedded fallback
// and routes every operation to whichever one is alive.
//
// Failover is one-way within a run: once the manager settles on the fallback
// it stays there until Close, even if the primary recovers. Upgrading
// mid-run would split one dataset across two engines.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"
)

// ErrNoBackend is returned by Connect when neither the primary nor the
// fallback backend comes up.
var ErrNoBackend = errors.New("hybrid: no backend available")

// State is the manager's connection state.
type State string

const (
	Disconnected   State = "disconnected"
	PrimaryActive  State = "primary_active"
	FallbackActive State = "fallback_active"
)

// Status is a point-in-time snapshot for health reporting.
type Status struct {
	Active       State  `json:"active"`
	PrimaryKind  string `json:"primary_kind"`
	PrimaryAlive bool   `json:"primary_alive"`
	FallbackPath string `json:"fallback_path"`
}

// Manager owns the primary/fallback pair for one run.
//
// Concurrency:
//   - All methods are safe for concurrent use; a mutex guards the state
//     transitions. A Manager is still owned by exactly one run: two runs
//     sharing a Manager would interleave DDL on the same connection.
type Manager struct {
	primary      storage.Backend
	fallback     storage.Backend
	fallbackPath string
	logger       storage.Logger

	mu     sync.Mutex
	state  State
	closed bool
}

// New pairs a primary backend with a fallback. fallbackPath is reported in
// Status so operators can find the local file after a degraded run. logger
// may be nil.
func New(primary, fallback storage.Backend, fallbackPath string, logger storage.Logger) *Manager {
	return &Manager{
		primary:      primary,
		fallback:     fallback,
		fallbackPath: fallbackPath,
		logger:       logger,
		state:        Disconnected,
	}
}

// Connect tries the primary backend first, then the fallback. It returns the
// resulting state, or an error wrapping both ErrNoBackend and
// storage.ErrBackendUnavailable when neither connects.
//
// Edge cases:
//   - Once FallbackActive, Connect does not retry the primary; the run
//     stays on the fallback (see package doc).
func (m *Manager) Connect(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Disconnected, storage.ErrBackendUnavailable
	}
	if m.state != Disconnected {
		return m.state, nil
	}

	if m.primary != nil && m.primary.Connect(ctx) {
		m.state = PrimaryActive
		m.logf("hybrid state=primary_active kind=%s", m.primary.Kind())
		return m.state, nil
	}
	m.logf("hybrid primary unavailable, trying fallback path=%s", m.fallbackPath)

	if m.fallback != nil && m.fallback.Connect(ctx) {
		m.state = FallbackActive
		m.logf("hybrid state=fallback_active kind=%s", m.fallback.Kind())
		return m.state, nil
	}

	return Disconnected, fmt.Errorf("%w: %w", ErrNoBackend, storage.ErrBackendUnavailable)
}

// Test checks the active backend, or attempts Connect when disconnected.
func (m *Manager) Test(ctx context.Context) bool {
	m.mu.Lock()
	active := m.activeLocked()
	m.mu.Unlock()

	if active == nil {
		state, err := m.Connect(ctx)
		return err == nil && state != Disconnected
	}
	return active.Test(ctx)
}

// Active returns the live backend, or nil when disconnected.
func (m *Manager) Active() storage.Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// ActiveRole reports "primary", "fallback", or "" for result attribution.
func (m *Manager) ActiveRole() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case PrimaryActive:
		return "primary"
	case FallbackActive:
		return "fallback"
	default:
		return ""
	}
}

// Status reports the current state and primary health without changing
// either. PrimaryAlive is the last known connect outcome, not a fresh probe.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Active:       m.state,
		PrimaryAlive: m.state == PrimaryActive,
		FallbackPath: m.fallbackPath,
	}
	if m.primary != nil {
		s.PrimaryKind = m.primary.Kind()
	}
	return s
}

// CreateTable delegates to the active backend.
func (m *Manager) CreateTable(ctx context.Context, t schema.Table) error {
	b := m.Active()
	if b == nil {
		return storage.ErrBackendUnavailable
	}
	return b.CreateTable(ctx, t)
}

// EvolveTable delegates to the active backend.
func (m *Manager) EvolveTable(ctx context.Context, t schema.Table) error {
	b := m.Active()
	if b == nil {
		return storage.ErrBackendUnavailable
	}
	return b.EvolveTable(ctx, t)
}

// BulkInsert delegates to the active backend.
func (m *Manager) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	b := m.Active()
	if b == nil {
		return 0, storage.ErrBackendUnavailable
	}
	return b.BulkInsert(ctx, table, columns, rows)
}

// TableInfo delegates to the active backend.
func (m *Manager) TableInfo(ctx context.Context, table string) (storage.TableInfo, error) {
	b := m.Active()
	if b == nil {
		return storage.TableInfo{}, storage.ErrBackendUnavailable
	}
	return b.TableInfo(ctx, table)
}

// Close releases whichever backend is active and marks the manager unusable.
// Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	switch m.state {
	case PrimaryActive:
		err = m.primary.Close()
	case FallbackActive:
		err = m.fallback.Close()
	}
	m.state = Disconnected
	return err
}

func (m *Manager) activeLocked() storage.Backend {
	switch m.state {
	case PrimaryActive:
		return m.primary
	case FallbackActive:
		return m.fallback
	default:
		return nil
	}
}

func (m *Manager) logf(format string, v ...any) {
	if m.logger != nil {
		m.logger.Printf(format, v...)
	}
}
