package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// History actions recorded in the audit log.
const (
	ActionCreate = "CREATE"
	ActionAlter  = "ALTER"
)

// HistoryEntry is one audit record in the schema history file.
type HistoryEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"`
	TableName string          `json:"table_name"`
	Columns   []HistoryColumn `json:"columns"`
}

// HistoryColumn is the audit view of a column definition.
type HistoryColumn struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Nullable   bool      `json:"nullable"`
	PrimaryKey bool      `json:"primary_key"`
}

// maxHistoryEntries caps the on-disk audit log at the most recent entries.
const maxHistoryEntries = 100

// HistoryLog appends schema change records to a JSON file for audit.
//
// The log is write-mostly: nothing in the ingestion path reads it back to
// drive behavior, so a failed write must never fail a run. Callers log the
// returned error and move on.
//
// Concurrency:
//   - Append and Entries are safe for concurrent use within one process.
//     The file itself is not locked across processes.
type HistoryLog struct {
	path string

	mu sync.Mutex

	// now is a seam for deterministic tests. Production uses time.Now.
	now func() time.Time
}

// NewHistoryLog returns a HistoryLog writing to path. The parent directory is
// created on first append.
func NewHistoryLog(path string) *HistoryLog {
	return &HistoryLog{path: path, now: time.Now}
}

// Append records a schema action for a table, keeping only the most recent
// 100 entries in the file.
func (h *HistoryLog) Append(action string, table Table) error {
	if h == nil || h.path == "" {
		return nil
	}

	entry := HistoryEntry{
		Timestamp: h.now().UTC(),
		Action:    action,
		TableName: table.Name,
		Columns:   make([]HistoryColumn, 0, len(table.Columns)),
	}
	for _, c := range table.Columns {
		entry.Columns = append(entry.Columns, HistoryColumn{
			Name:       c.Name,
			Type:       c.Type,
			Nullable:   c.Nullable,
			PrimaryKey: c.PrimaryKey,
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readLocked()
	if err != nil {
		// A corrupt or unreadable log restarts from this entry; audit data
		// is not worth failing an ingestion run over.
		entries = nil
	}
	entries = append(entries, entry)
	if len(entries) > maxHistoryEntries {
		entries = entries[len(entries)-maxHistoryEntries:]
	}
	return h.writeLocked(entries)
}

// Entries returns the recorded history, newest last. When table is non-empty
// only entries for that table are returned.
func (h *HistoryLog) Entries(table string) ([]HistoryEntry, error) {
	if h == nil || h.path == "" {
		return nil, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readLocked()
	if err != nil {
		return nil, err
	}
	if table == "" {
		return entries, nil
	}

	out := entries[:0:0]
	for _, e := range entries {
		if e.TableName == table {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *HistoryLog) readLocked() ([]HistoryEntry, error) {
	b, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("schema: parse history %s: %w", h.path, err)
	}
	return entries, nil
}

func (h *HistoryLog) writeLocked(entries []HistoryEntry) error {
	if dir := filepath.Dir(h.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("schema: create history dir: %w", err)
		}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, append(b, '\n'), 0o644)
}
