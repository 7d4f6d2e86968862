package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"
)

// The SQL builders are exercised without a server; connection-level behavior
// needs a live Postgres instance and is covered by integration runs.

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), storage.Config{}); err == nil {
		t.Error("New without dsn = nil error, want error")
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	t.Parallel()

	b, err := New(context.Background(), storage.Config{DSN: "postgres://u:p@localhost:5432/d"})
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
	if b.Kind() != "postgres" {
		t.Errorf("Kind = %q, want postgres", b.Kind())
	}
}

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildBulkInsertSQL("people", []string{"name", "age"}, [][]any{
		{"Somchai", 34},
		{"NULL", nil},
	})

	want := `INSERT INTO "people" ("name", "age") VALUES ($1, $2), ($3, $4)`
	if q != want {
		t.Fatalf("sql = %q, want %q", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("got %d args, want 4", len(args))
	}
	if args[2] != nil {
		t.Errorf("args[2] = %v, want nil (null sentinel)", args[2])
	}
}

func TestCreateDDLTypes(t *testing.T) {
	t.Parallel()

	tbl, err := schema.Build("metrics", []string{"Rate", "When"}, []map[string]any{
		{"Rate": "1.5", "When": "2024-01-02"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ddl, err := tbl.CreateDDL(schema.DialectPostgres)
	if err != nil {
		t.Fatalf("CreateDDL: %v", err)
	}
	for _, frag := range []string{"BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION", "TIMESTAMPTZ"} {
		if !strings.Contains(ddl, frag) {
			t.Errorf("CreateDDL = %q, want %q included", ddl, frag)
		}
	}
}
