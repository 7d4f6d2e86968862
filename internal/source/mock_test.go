package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func drainChunks(t *testing.T, s Source) []*RowChunk {
	t.Helper()
	var out []*RowChunk
	for {
		c, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, c)
	}
}

// TestMockChunkShape verifies the exact chunk arithmetic: 2500 rows at chunk
// size 1000 must yield chunks of [1000, 1000, 500] numbered 1, 2, 3.
func TestMockChunkShape(t *testing.T) {
	t.Parallel()

	m := NewMock(MockOptions{Template: TemplateEmployees, Rows: 2500, ChunkSize: 1000, Seed: 1})
	if _, err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	chunks := drainChunks(t, m)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	wantSizes := []int{1000, 1000, 500}
	for i, c := range chunks {
		if c.Number != i+1 {
			t.Fatalf("chunk %d has Number %d, want %d", i, c.Number, i+1)
		}
		if c.RowCount != wantSizes[i] || len(c.Rows) != wantSizes[i] {
			t.Fatalf("chunk %d has %d rows, want %d", i+1, c.RowCount, wantSizes[i])
		}
	}
}

// TestMockFirstChunkOnlyMapping verifies TypeMapping is populated on chunk #1
// and nil on every later chunk.
func TestMockFirstChunkOnlyMapping(t *testing.T) {
	t.Parallel()

	m := NewMock(MockOptions{Template: TemplateSales, Rows: 250, ChunkSize: 100, Seed: 7})
	if _, err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	chunks := drainChunks(t, m)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].TypeMapping == nil {
		t.Fatal("chunk #1 TypeMapping is nil, want inference result")
	}
	for _, c := range chunks[1:] {
		if c.TypeMapping != nil {
			t.Fatalf("chunk #%d TypeMapping is non-nil, want nil", c.Number)
		}
	}
}

// TestMockTemplates verifies each built-in template produces rows covering
// its full field set, with stable identifier formats.
func TestMockTemplates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template string
		idField  string
		idValue  string
	}{
		{TemplateEmployees, "employee_id", "EMP00001"},
		{TemplateSales, "transaction_id", "TXN0000001"},
		{TemplateInventory, "product_id", "INV000001"},
		{TemplateFinancial, "transaction_id", "FIN0000001"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.template, func(t *testing.T) {
			t.Parallel()

			m := NewMock(MockOptions{Template: tt.template, Rows: 5, ChunkSize: 5, Seed: 42})
			info, err := m.Open(context.Background())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer m.Close()

			if info.TotalRows != 5 {
				t.Fatalf("TotalRows = %d, want 5", info.TotalRows)
			}

			chunks := drainChunks(t, m)
			if len(chunks) != 1 {
				t.Fatalf("got %d chunks, want 1", len(chunks))
			}
			row := chunks[0].Rows[0]
			if len(row) != len(info.Columns) {
				t.Fatalf("row has %d fields, want %d", len(row), len(info.Columns))
			}
			for _, col := range info.Columns {
				if _, ok := row[col]; !ok {
					t.Fatalf("row missing declared column %q", col)
				}
			}
			if got := row[tt.idField]; got != tt.idValue {
				t.Fatalf("row[%s] = %v, want %s", tt.idField, got, tt.idValue)
			}
		})
	}
}

// TestMockDeterministicUnderSeed verifies two sources with the same seed
// generate identical rows, which keeps tests and demo datasets reproducible.
func TestMockDeterministicUnderSeed(t *testing.T) {
	t.Parallel()

	gen := func() []map[string]any {
		m := NewMock(MockOptions{Template: TemplateEmployees, Rows: 20, ChunkSize: 8, Seed: 99})
		if _, err := m.Open(context.Background()); err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer m.Close()
		var rows []map[string]any
		for _, c := range drainChunks(t, m) {
			rows = append(rows, c.Rows...)
		}
		return rows
	}

	a, b := gen(), gen()
	if len(a) != len(b) {
		t.Fatalf("row counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		for k, v := range a[i] {
			if fmt.Sprint(b[i][k]) != fmt.Sprint(v) {
				t.Fatalf("row %d field %s differs: %v vs %v", i, k, v, b[i][k])
			}
		}
	}
}

// TestMockReopenRestarts verifies Open resets iteration from row one.
func TestMockReopenRestarts(t *testing.T) {
	t.Parallel()

	m := NewMock(MockOptions{Template: TemplateEmployees, Rows: 10, ChunkSize: 4, Seed: 3})
	if _, err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := m.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	if _, err := m.Open(context.Background()); err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	c, err := m.Next(context.Background())
	if err != nil {
		t.Fatalf("Next after re-Open: %v", err)
	}
	if c.Number != 1 {
		t.Fatalf("chunk Number after re-Open = %d, want 1", c.Number)
	}
	if got := c.Rows[0]["employee_id"]; got != "EMP00001" {
		t.Fatalf("first row after re-Open = %v, want EMP00001", got)
	}
}

// TestMockOpenErrors verifies invalid options are rejected as source errors.
func TestMockOpenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts MockOptions
	}{
		{"unknown template", MockOptions{Template: "payroll", Rows: 10, ChunkSize: 5}},
		{"zero rows", MockOptions{Template: TemplateEmployees, Rows: 0, ChunkSize: 5}},
		{"zero chunk size", MockOptions{Template: TemplateEmployees, Rows: 10, ChunkSize: 0}},
		{"custom without fields", MockOptions{Template: TemplateCustom, Rows: 10, ChunkSize: 5}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewMock(tt.opts).Open(context.Background())
			if err == nil {
				t.Fatal("Open = nil error, want error")
			}
			var srcErr *Error
			if !errors.As(err, &srcErr) {
				t.Fatalf("Open error = %T, want *source.Error", err)
			}
		})
	}
}

// TestMockCustomTemplate verifies the field-config driven generator honors
// types, bounds, and declared column order.
func TestMockCustomTemplate(t *testing.T) {
	t.Parallel()

	m := NewMock(MockOptions{
		Template:  TemplateCustom,
		Rows:      50,
		ChunkSize: 50,
		Seed:      11,
		Fields: map[string]FieldConfig{
			"code":   {Type: "string", Pattern: "email"},
			"score":  {Type: "integer", Min: 10, Max: 20},
			"ratio":  {Type: "float", Min: 0, Max: 1, Decimals: 3},
			"active": {Type: "boolean", TrueProbability: 1.0},
			"grade":  {Type: "choice", Choices: []string{"A", "B"}},
			"since":  {Type: "date"},
		},
		CustomOrder: []string{"code", "score", "ratio", "active", "grade", "since"},
	})

	info, err := m.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	wantCols := []string{"code", "score", "ratio", "active", "grade", "since"}
	for i, c := range wantCols {
		if info.Columns[i] != c {
			t.Fatalf("Columns = %v, want %v", info.Columns, wantCols)
		}
	}

	for _, c := range drainChunks(t, m) {
		for _, row := range c.Rows {
			score, ok := row["score"].(int)
			if !ok || score < 10 || score > 20 {
				t.Fatalf("score = %v, want int in [10,20]", row["score"])
			}
			if active, ok := row["active"].(bool); !ok || !active {
				t.Fatalf("active = %v, want true (probability 1.0)", row["active"])
			}
			if g := row["grade"]; g != "A" && g != "B" {
				t.Fatalf("grade = %v, want A or B", g)
			}
		}
	}
}
