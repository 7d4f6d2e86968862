// Package source implements the row-chunk producers feeding the ingestion
// pipeline: a spreadsheet reader and a procedural mock-data generator.
//
// Both adapters satisfy the same contract:
//   - Open validates inputs and reports dataset metadata.
//   - Next returns ordered, 1-based chunks and io.EOF when exhausted.
//   - A source is finite and not restartable mid-iteration; calling Open
//     again restarts from the beginning.
//   - Chunk #1 carries the inferred type mapping for its rows; every later
//     chunk carries nil and reuses chunk #1's mapping downstream.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
)

// Info describes an opened dataset.
type Info struct {
	// Name is a normalized identifier for the dataset (file base name or
	// template id), usable as a default table name.
	Name string
	// TotalRows is the number of data rows the source will produce.
	TotalRows int
	// Columns is the raw column order (unsanitized headers or template
	// field order).
	Columns []string
	// SheetName is the resolved worksheet for spreadsheet sources; empty
	// for generators.
	SheetName string
}

// RowChunk is one bounded batch of rows flowing through the pipeline.
type RowChunk struct {
	// Number is 1-based and strictly increasing within a run.
	Number int
	// Rows maps raw column name to value; missing cells are nil.
	Rows []map[string]any
	// RowCount equals len(Rows).
	RowCount int
	// TypeMapping is set only on chunk #1: the inference over that chunk's
	// rows. Nil on every later chunk.
	TypeMapping map[string]schema.FieldType
}

// Source produces ordered row chunks from one dataset.
type Source interface {
	// Open validates the input and returns dataset metadata. Open resets
	// iteration state; it must be called before the first Next.
	Open(ctx context.Context) (Info, error)

	// Next returns the next chunk, or io.EOF when the source is exhausted.
	// Empty trailing chunks are never emitted.
	Next(ctx context.Context) (*RowChunk, error)

	// Close releases any resources held by the source. Safe to call after
	// a partial iteration.
	Close() error
}

// Error wraps a source-level failure (missing file, unknown sheet or
// template) so callers can report it distinctly from backend errors.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// nullSentinels are cell values standardized to nil before ingestion.
var nullSentinels = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"n/a":  {},
	"#n/a": {},
	"nan":  {},
}

// normalizeCell trims a raw cell and maps null-like sentinels to nil.
func normalizeCell(raw string) any {
	s := strings.TrimSpace(raw)
	if _, isNull := nullSentinels[strings.ToLower(s)]; isNull {
		return nil
	}
	return s
}

// firstChunkMapping runs inference over the rows of chunk #1.
func firstChunkMapping(number int, rows []map[string]any) map[string]schema.FieldType {
	if number != 1 {
		return nil
	}
	return schema.Infer(rows)
}
