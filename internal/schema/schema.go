// Package schema implements column type inference, identifier sanitization,
// and table-model construction for ingested datasets.
//
// The schema package is responsible for:
//   - Inferring a semantic field type per column from sampled rows
//   - Sanitizing arbitrary spreadsheet headers into safe SQL identifiers
//   - Building a Table model with a synthetic identity primary key
//   - Generating dialect-specific CREATE/ALTER statements
//   - Appending an audit trail of schema changes to a JSON history file
//
// Design constraints:
//   - Inference is deterministic and must never fail on malformed data.
//   - Sanitization is idempotent: sanitizing a sanitized name is the identity.
//   - The synthetic "id" column is always present, always first, and never
//     sourced from input data.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FieldType is the semantic type assigned to a column by inference.
type FieldType string

const (
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeDatetime FieldType = "datetime"
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
)

// Normalize maps arbitrary type labels onto a known FieldType.
// Unknown labels fall back to TypeString.
func Normalize(s string) FieldType {
	switch FieldType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeInteger, TypeFloat, TypeBoolean, TypeDatetime, TypeString, TypeText:
		return FieldType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return TypeString
	}
}

// Column describes one column of a destination table.
//
// Source is the raw input key the column was derived from (before
// sanitization); it is empty for the synthetic primary key and excluded
// from serialized output.
type Column struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Nullable   bool      `json:"nullable"`
	PrimaryKey bool      `json:"primary_key"`
	Source     string    `json:"-"`
}

// Table is the destination table model produced from a sampled dataset.
type Table struct {
	Name      string    `json:"name"`
	Columns   []Column  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// ColumnNames returns the column names in definition order.
func (t Table) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// DataColumns returns the columns that carry source data, i.e. every column
// except the synthetic primary key.
func (t Table) DataColumns() []Column {
	out := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.PrimaryKey {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Build constructs a Table from a sampled batch of rows.
//
// columnOrder fixes the column sequence; sample keys missing from it are
// appended in sorted order so the result stays deterministic. Each source
// column gets a sanitized name (collisions deduplicated with a numeric
// suffix), an inferred type, and a nullability flag derived from the sample.
// The synthetic identity column "id" is prepended; "id" is reserved for it,
// so a source column sanitizing to "id" is renamed like any other collision.
//
// Errors:
//   - Returns an error if tableName sanitizes to empty (blank input).
//   - Returns an error if no columns can be derived from the sample.
func Build(tableName string, columnOrder []string, sample []map[string]any) (Table, error) {
	return BuildWithTypes(tableName, columnOrder, sample, Infer(sample))
}

// BuildWithTypes is Build with a precomputed type mapping, keyed by the raw
// source column names. The ingestion coordinator uses it to reuse the first
// chunk's inference for every later chunk instead of re-sampling.
func BuildWithTypes(tableName string, columnOrder []string, sample []map[string]any, types map[string]FieldType) (Table, error) {
	name := SanitizeTableName(tableName)
	if name == "" {
		return Table{}, fmt.Errorf("schema: empty table name %q", tableName)
	}

	cols := orderedColumns(columnOrder, sample)
	if len(cols) == 0 {
		return Table{}, fmt.Errorf("schema: no columns in sample for table %q", name)
	}

	if types == nil {
		types = Infer(sample)
	}

	t := Table{
		Name:      name,
		Columns:   make([]Column, 0, len(cols)+1),
		CreatedAt: time.Now().UTC(),
	}
	t.Columns = append(t.Columns, Column{
		Name:       "id",
		Type:       TypeInteger,
		Nullable:   false,
		PrimaryKey: true,
	})

	seen := map[string]bool{"id": true}
	for _, raw := range cols {
		cn := dedupeName(SanitizeColumnName(raw), seen)
		seen[cn] = true

		ft, ok := types[raw]
		if !ok {
			ft = TypeString
		}
		t.Columns = append(t.Columns, Column{
			Name:     cn,
			Type:     ft,
			Nullable: columnHasMissing(sample, raw),
			Source:   raw,
		})
	}
	return t, nil
}

// orderedColumns merges the declared column order with any extra keys present
// in the sample. Extras are rare (ragged input) and sorted for determinism.
func orderedColumns(columnOrder []string, sample []map[string]any) []string {
	seen := make(map[string]bool, len(columnOrder))
	out := make([]string, 0, len(columnOrder))
	for _, c := range columnOrder {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	var extra []string
	for _, row := range sample {
		for k := range row {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// dedupeName appends _2, _3, ... until the name is unused.
func dedupeName(name string, seen map[string]bool) string {
	if !seen[name] {
		return name
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s_%d", name, i)
		if !seen[cand] {
			return cand
		}
	}
}

func columnHasMissing(sample []map[string]any, col string) bool {
	for _, row := range sample {
		v, ok := row[col]
		if !ok || v == nil {
			return true
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return true
		}
	}
	return false
}
