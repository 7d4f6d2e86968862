package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"
)

func newTestBackend(t *testing.T) storage.Backend {
	t.Helper()

	b, err := New(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if !b.Connect(context.Background()) {
		t.Fatal("Connect = false, want true")
	}
	return b
}

func peopleTable(t *testing.T) schema.Table {
	t.Helper()

	tbl, err := schema.Build("people", []string{"Name", "Age", "Score"}, []map[string]any{
		{"Name": "Somchai", "Age": "34", "Score": "3.5"},
		{"Name": "Mary", "Age": "28", "Score": "4.0"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tbl
}

func TestConnectAndTest(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	if b.Kind() != "sqlite" {
		t.Errorf("Kind = %q, want sqlite", b.Kind())
	}
	if !b.Test(context.Background()) {
		t.Error("Test = false, want true")
	}
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), storage.Config{}); err == nil {
		t.Error("New without path = nil error, want error")
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	t.Parallel()

	b, err := New(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := b.CreateTable(ctx, schema.Table{Name: "t"}); !errors.Is(err, storage.ErrBackendUnavailable) {
		t.Errorf("CreateTable = %v, want ErrBackendUnavailable", err)
	}
	if _, err := b.BulkInsert(ctx, "t", []string{"a"}, [][]any{{1}}); !errors.Is(err, storage.ErrBackendUnavailable) {
		t.Errorf("BulkInsert = %v, want ErrBackendUnavailable", err)
	}
	if _, err := b.TableInfo(ctx, "t"); !errors.Is(err, storage.ErrBackendUnavailable) {
		t.Errorf("TableInfo = %v, want ErrBackendUnavailable", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on unconnected backend = %v, want nil", err)
	}
}

func TestCreateInsertRoundTrip(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	ctx := context.Background()
	tbl := peopleTable(t)

	if err := b.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	cols := []string{"name", "age", "score"}
	rows := [][]any{
		{"Somchai", 34, 3.5},
		{"Mary", 28, 4.0},
		{"NULL", nil, "n/a"},
	}
	n, err := b.BulkInsert(ctx, tbl.Name, cols, rows)
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d rows, want 3", n)
	}

	info, err := b.TableInfo(ctx, tbl.Name)
	if err != nil {
		t.Fatalf("TableInfo: %v", err)
	}
	if info.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", info.RowCount)
	}
	wantCols := []string{"id", "name", "age", "score"}
	if len(info.Columns) != len(wantCols) {
		t.Fatalf("Columns = %v, want %d columns", info.Columns, len(wantCols))
	}
	for i, c := range info.Columns {
		if c.Name != wantCols[i] {
			t.Errorf("column %d = %q, want %q", i, c.Name, wantCols[i])
		}
	}
}

// TestCreateTableIsDestructive verifies CreateTable replaces an existing
// table rather than appending to it.
func TestCreateTableIsDestructive(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	ctx := context.Background()
	tbl := peopleTable(t)

	if err := b.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := b.BulkInsert(ctx, tbl.Name, []string{"name"}, [][]any{{"x"}}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	if err := b.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("second CreateTable: %v", err)
	}
	info, err := b.TableInfo(ctx, tbl.Name)
	if err != nil {
		t.Fatalf("TableInfo: %v", err)
	}
	if info.RowCount != 0 {
		t.Errorf("RowCount after recreate = %d, want 0", info.RowCount)
	}
}

func TestEvolveTableAddsColumns(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	ctx := context.Background()

	tbl, err := schema.Build("grow", []string{"a"}, []map[string]any{{"a": "1"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := b.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	wider, err := schema.Build("grow", []string{"a", "b"}, []map[string]any{{"a": "1", "b": "note"}})
	if err != nil {
		t.Fatalf("Build wider: %v", err)
	}
	if err := b.EvolveTable(ctx, wider); err != nil {
		t.Fatalf("EvolveTable: %v", err)
	}

	info, err := b.TableInfo(ctx, "grow")
	if err != nil {
		t.Fatalf("TableInfo: %v", err)
	}
	names := map[string]bool{}
	for _, c := range info.Columns {
		names[c.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Errorf("columns after evolve = %v, want a and b present", info.Columns)
	}
}

// TestEvolveTableCreatesMissing verifies evolving into an absent table falls
// back to creating it.
func TestEvolveTableCreatesMissing(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	tbl := peopleTable(t)
	if err := b.EvolveTable(context.Background(), tbl); err != nil {
		t.Fatalf("EvolveTable on missing table: %v", err)
	}
	if _, err := b.TableInfo(context.Background(), tbl.Name); err != nil {
		t.Fatalf("TableInfo after evolve-create: %v", err)
	}
}

// TestBulkInsertBatching pushes enough rows to force multiple batches under
// the 999 bind-parameter limit.
func TestBulkInsertBatching(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	ctx := context.Background()

	tbl, err := schema.Build("wide", []string{"c1", "c2", "c3", "c4", "c5"}, []map[string]any{
		{"c1": "1", "c2": "2", "c3": "3", "c4": "4", "c5": "5"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := b.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	// 5 columns -> 199 rows per batch; 500 rows needs 3 batches.
	cols := []string{"c1", "c2", "c3", "c4", "c5"}
	rows := make([][]any, 500)
	for i := range rows {
		rows[i] = []any{i, i, i, i, fmt.Sprintf("row-%d", i)}
	}

	n, err := b.BulkInsert(ctx, "wide", cols, rows)
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if n != 500 {
		t.Fatalf("inserted %d rows, want 500", n)
	}

	info, err := b.TableInfo(ctx, "wide")
	if err != nil {
		t.Fatalf("TableInfo: %v", err)
	}
	if info.RowCount != 500 {
		t.Errorf("RowCount = %d, want 500", info.RowCount)
	}
}

func TestBulkInsertEmptyRows(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	n, err := b.BulkInsert(context.Background(), "whatever", []string{"a"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("BulkInsert(nil rows) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestBulkInsertBadTableWrapsInsertError(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	_, err := b.BulkInsert(context.Background(), "missing_table", []string{"a"}, [][]any{{1}})
	var insErr *storage.InsertError
	if !errors.As(err, &insErr) {
		t.Fatalf("BulkInsert into missing table = %T, want *storage.InsertError", err)
	}
}

func TestBindValueTime(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	got, ok := bindValue(ts).(string)
	if !ok {
		t.Fatalf("bindValue(time) = %T, want string", bindValue(ts))
	}
	if got != "2024-05-01T09:30:00Z" {
		t.Errorf("bindValue(time) = %q, want RFC3339 text", got)
	}
}
