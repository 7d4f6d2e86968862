package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// allowedExtensions are the spreadsheet formats the reader accepts.
var allowedExtensions = map[string]struct{}{
	".xlsx": {},
	".xls":  {},
	".xlsm": {},
}

// maxWorkbookBytes is a soft cap; larger files still load but are logged as
// a warning because the whole sheet is held in memory while chunking.
const maxWorkbookBytes = 100 << 20

// Excel streams fixed-size row windows from one worksheet of a workbook.
//
// The sheet is read fully on Open (workbooks are random-access archives, not
// streamable row-by-row with formula evaluation), then sliced into windows
// of chunkSize rows in original order by Next.
type Excel struct {
	path      string
	sheet     string
	chunkSize int
	logger    Logger

	info    Info
	columns []string
	rows    []map[string]any
	next    int
	chunkNo int
	opened  bool
}

// Logger is the minimal logging interface used by sources.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// NewExcel returns a spreadsheet source for path. sheet selects the
// worksheet; when empty the first sheet is used. logger may be nil.
func NewExcel(path, sheet string, chunkSize int, logger Logger) *Excel {
	return &Excel{path: path, sheet: sheet, chunkSize: chunkSize, logger: logger}
}

// Open validates the file, reads the target sheet into memory, and resets
// iteration to the first chunk.
//
// Errors (all wrapped in *Error):
//   - chunk size < 1
//   - file missing or not a regular file
//   - extension not .xlsx/.xls/.xlsm
//   - workbook unreadable or sheet not found
func (e *Excel) Open(ctx context.Context) (Info, error) {
	if e.chunkSize < 1 {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("chunk size must be >= 1, got %d", e.chunkSize)}
	}

	st, err := os.Stat(e.path)
	if err != nil {
		return Info{}, &Error{Source: e.path, Err: err}
	}
	if st.IsDir() {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("is a directory")}
	}
	ext := strings.ToLower(filepath.Ext(e.path))
	if _, ok := allowedExtensions[ext]; !ok {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("unsupported extension %q", ext)}
	}
	if st.Size() > maxWorkbookBytes && e.logger != nil {
		e.logger.Printf("source=excel path=%s size=%d warn=large_workbook", e.path, st.Size())
	}

	f, err := excelize.OpenFile(e.path)
	if err != nil {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer func() { _ = f.Close() }()

	sheet := e.sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return Info{}, &Error{Source: e.path, Err: fmt.Errorf("workbook has no sheets")}
		}
		sheet = list[0]
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	if len(raw) == 0 {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("sheet %q is empty", sheet)}
	}

	columns, rows := tableFromSheet(raw)
	if len(columns) == 0 {
		return Info{}, &Error{Source: e.path, Err: fmt.Errorf("sheet %q has no header row", sheet)}
	}

	e.columns = columns
	e.rows = rows
	e.next = 0
	e.chunkNo = 0
	e.opened = true
	e.info = Info{
		Name:      strings.TrimSuffix(filepath.Base(e.path), ext),
		TotalRows: len(rows),
		Columns:   columns,
		SheetName: sheet,
	}

	_ = ctx
	return e.info, nil
}

// Next returns the next window of rows, or io.EOF when every row has been
// produced. Empty trailing windows are skipped.
func (e *Excel) Next(ctx context.Context) (*RowChunk, error) {
	if !e.opened {
		return nil, &Error{Source: e.path, Err: fmt.Errorf("not opened")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.next >= len(e.rows) {
		return nil, io.EOF
	}

	end := e.next + e.chunkSize
	if end > len(e.rows) {
		end = len(e.rows)
	}
	window := e.rows[e.next:end]
	e.next = end
	e.chunkNo++

	return &RowChunk{
		Number:      e.chunkNo,
		Rows:        window,
		RowCount:    len(window),
		TypeMapping: firstChunkMapping(e.chunkNo, window),
	}, nil
}

// Close releases the buffered sheet.
func (e *Excel) Close() error {
	e.rows = nil
	e.opened = false
	return nil
}

// tableFromSheet converts raw sheet rows into records keyed by the header
// row. Cells are trimmed; null sentinels become nil; ragged rows are padded
// with nil. Header cells that are blank are skipped entirely.
func tableFromSheet(raw [][]string) (columns []string, rows []map[string]any) {
	header := raw[0]
	colIdx := make([]int, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		columns = append(columns, h)
		colIdx = append(colIdx, i)
	}

	rows = make([]map[string]any, 0, len(raw)-1)
	for _, r := range raw[1:] {
		rec := make(map[string]any, len(columns))
		empty := true
		for j, name := range columns {
			idx := colIdx[j]
			if idx >= len(r) {
				rec[name] = nil
				continue
			}
			v := normalizeCell(r[idx])
			rec[name] = v
			if v != nil {
				empty = false
			}
		}
		// Fully blank rows (common at the bottom of hand-edited sheets)
		// are dropped rather than ingested as all-null records.
		if empty {
			continue
		}
		rows = append(rows, rec)
	}
	return columns, rows
}

var _ Source = (*Excel)(nil)
