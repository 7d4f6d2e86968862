// Package pipeline runs one ingestion: source rows in chunks, schema from
// the first chunk, bulk inserts through the hybrid store, and a terminal
// Result.
//
// The coordinator is single-threaded on purpose: chunk order is part of the
// contract (the first chunk carries the type mapping) and the bulk insert
// path saturates one connection anyway. Concurrency belongs to callers that
// run multiple coordinators.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/hybrid"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/metrics"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/source"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"
)

// ErrCancelled is the terminal error of a run stopped by Cancel or context
// cancellation. Partial row counts are kept; nothing is rolled back.
var ErrCancelled = errors.New("pipeline: cancelled by user")

// State is the coordinator's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StatePreparing  State = "preparing"
	StateProcessing State = "processing"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Progress milestone percentages. Between processingStart and processingEnd
// the percentage tracks rows processed.
const (
	pctConnect         = 5
	pctPrepare         = 15
	pctCreateTable     = 25
	pctProcessingStart = 30
	pctProcessingEnd   = 90
	pctFinalize        = 95
	pctDone            = 100
)

// Progress is one progress callback payload.
type Progress struct {
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the destination the coordinator writes through. *hybrid.Manager
// satisfies it; tests substitute fakes.
type Store interface {
	Connect(ctx context.Context) (hybrid.State, error)
	ActiveRole() string
	CreateTable(ctx context.Context, t schema.Table) error
	EvolveTable(ctx context.Context, t schema.Table) error
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	TableInfo(ctx context.Context, table string) (storage.TableInfo, error)
	Close() error
}

// Logger is the minimal logging interface the coordinator uses.
type Logger interface {
	Printf(format string, v ...any)
}

// Result is the terminal outcome of a run. RowsProcessed is populated on
// every path, including failures and cancellation.
type Result struct {
	Success       bool              `json:"success"`
	State         State             `json:"state"`
	TableName     string            `json:"table_name"`
	BackendUsed   string            `json:"backend_used"`
	RowsProcessed int               `json:"rows_processed"`
	Duration      time.Duration     `json:"duration_ns"`
	RowsPerSecond float64           `json:"rows_per_second"`
	TableInfo     storage.TableInfo `json:"table_info,omitempty"`
	Err           error             `json:"-"`
	Error         string            `json:"error,omitempty"`
}

// Options configures a Coordinator.
type Options struct {
	Source source.Source
	Store  Store

	// TableName overrides the destination name; empty derives it from the
	// source's dataset name.
	TableName string

	// Mode is "create" (drop and recreate) or "append" (evolve and add).
	// Empty means "create".
	Mode string

	// History receives a schema change record per run. May be nil.
	History *schema.HistoryLog

	// Logger may be nil.
	Logger Logger

	// OnProgress and OnLog are synchronous callbacks. A panic inside
	// either is recovered and logged, never propagated.
	OnProgress func(Progress)
	OnLog      func(string)
}

// Coordinator drives one run. Create one per run; Run may be called once.
type Coordinator struct {
	opts      Options
	cancelled atomic.Bool
	state     atomic.Value // State
	progress  atomic.Int64 // last emitted percent
}

// New returns a Coordinator in StateIdle.
func New(opts Options) *Coordinator {
	c := &Coordinator{opts: opts}
	c.state.Store(StateIdle)
	return c
}

// Cancel requests a cooperative stop. The run aborts at the next chunk
// boundary; rows already inserted stay.
func (c *Coordinator) Cancel() {
	c.cancelled.Store(true)
}

// State returns the current lifecycle state. Safe to call from other
// goroutines while Run executes.
func (c *Coordinator) State() State {
	return c.state.Load().(State)
}

// Percent returns the last emitted progress percentage.
func (c *Coordinator) Percent() int {
	return int(c.progress.Load())
}

// Run executes the pipeline to a terminal Result. It never panics and never
// returns a raw error: every failure becomes a Failed (or Cancelled) Result
// with partial counts. The store is closed on every path.
func (c *Coordinator) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res = Result{State: StateFailed}

	defer func() {
		c.finalize(ctx, &res, start)
	}()

	// Connect.
	c.setState(StateConnecting)
	c.emitProgress(pctConnect, "connecting to database")
	if _, err := c.opts.Store.Connect(ctx); err != nil {
		res.Err = fmt.Errorf("connect: %w", err)
		return res
	}
	res.BackendUsed = c.opts.Store.ActiveRole()
	c.logf("run connect backend=%s", res.BackendUsed)

	// Prepare the source.
	c.setState(StatePreparing)
	c.emitProgress(pctPrepare, "opening source")
	info, err := c.opts.Source.Open(ctx)
	if err != nil {
		res.Err = fmt.Errorf("open source: %w", err)
		return res
	}
	defer func() { _ = c.opts.Source.Close() }()

	tableName := c.opts.TableName
	if tableName == "" {
		tableName = info.Name
	}

	var (
		tbl      schema.Table
		columns  []string
		sources  []string
		prepared bool
	)

	c.setState(StateProcessing)
	for {
		if stopErr := c.checkStop(ctx); stopErr != nil {
			res.Err = stopErr
			return res
		}

		chunk, err := c.opts.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Err = fmt.Errorf("read chunk: %w", err)
			return res
		}

		// The first chunk carries the type mapping: build the schema and
		// the destination table from it before any insert.
		if !prepared {
			tbl, err = schema.BuildWithTypes(tableName, info.Columns, chunk.Rows, chunk.TypeMapping)
			if err != nil {
				res.Err = fmt.Errorf("build schema: %w", err)
				return res
			}
			res.TableName = tbl.Name

			c.emitProgress(pctCreateTable, "creating table "+tbl.Name)
			if err := c.prepareTable(ctx, tbl); err != nil {
				res.Err = err
				return res
			}

			for _, col := range tbl.DataColumns() {
				columns = append(columns, col.Name)
				sources = append(sources, col.Source)
			}
			prepared = true
			c.emitProgress(pctProcessingStart, "processing rows")
		}

		insertStart := time.Now()
		n, err := c.opts.Store.BulkInsert(ctx, tbl.Name, columns, bindRows(chunk.Rows, sources))
		metrics.RecordChunk(tbl.Name, res.BackendUsed, chunk.RowCount, time.Since(insertStart), err)
		if err != nil {
			res.RowsProcessed += int(n)
			res.Err = fmt.Errorf("insert chunk %d: %w", chunk.Number, err)
			return res
		}
		if n != int64(chunk.RowCount) {
			res.RowsProcessed += int(n)
			res.Err = fmt.Errorf("insert chunk %d: %w", chunk.Number,
				&storage.InsertError{Table: tbl.Name, Expected: int64(chunk.RowCount), Inserted: n})
			return res
		}
		res.RowsProcessed += chunk.RowCount

		c.emitProgress(rowsPercent(res.RowsProcessed, info.TotalRows),
			fmt.Sprintf("inserted %d/%d rows", res.RowsProcessed, info.TotalRows))
		c.logf("run chunk=%d rows=%d total=%d", chunk.Number, chunk.RowCount, res.RowsProcessed)
	}

	if !prepared {
		res.Err = fmt.Errorf("source %s produced no rows", info.Name)
		return res
	}

	res.State = StateCompleted
	res.Success = true
	return res
}

// prepareTable creates or evolves the destination table per Mode and logs
// the schema change to the history file.
func (c *Coordinator) prepareTable(ctx context.Context, tbl schema.Table) error {
	action := schema.ActionCreate
	if c.opts.Mode == "append" {
		action = schema.ActionAlter
		if err := c.opts.Store.EvolveTable(ctx, tbl); err != nil {
			return fmt.Errorf("evolve table: %w", err)
		}
	} else {
		if err := c.opts.Store.CreateTable(ctx, tbl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	if c.opts.History != nil {
		if err := c.opts.History.Append(action, tbl); err != nil {
			// History is an audit trail, not a gate: the run continues.
			c.logf("run history_error=%v", err)
		}
	}
	return nil
}

// finalize always runs: fetch the destination snapshot, close the store,
// compute rates, and emit the terminal progress.
func (c *Coordinator) finalize(ctx context.Context, res *Result, start time.Time) {
	if r := recover(); r != nil {
		res.Success = false
		res.State = StateFailed
		res.Err = fmt.Errorf("pipeline panic: %v", r)
	}

	c.setState(StateFinalizing)
	c.emitProgress(pctFinalize, "finalizing")

	if res.TableName != "" {
		if info, err := c.opts.Store.TableInfo(ctx, res.TableName); err == nil {
			res.TableInfo = info
		} else {
			c.logf("run table_info_error=%v", err)
		}
	}
	if res.BackendUsed == "" {
		res.BackendUsed = c.opts.Store.ActiveRole()
	}
	if err := c.opts.Store.Close(); err != nil {
		c.logf("run close_error=%v", err)
	}

	res.Duration = time.Since(start)
	if secs := res.Duration.Seconds(); secs > 0 {
		res.RowsPerSecond = float64(res.RowsProcessed) / secs
	}

	switch {
	case res.Success:
		res.State = StateCompleted
	case errors.Is(res.Err, ErrCancelled):
		res.State = StateCancelled
	default:
		res.State = StateFailed
	}
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	c.setState(res.State)
	metrics.RecordRun(res.TableName, res.BackendUsed, string(res.State), res.Duration)
	c.emitProgress(pctDone, "done: "+string(res.State))
	c.logf("run state=%s rows=%d duration=%s backend=%s", res.State, res.RowsProcessed, res.Duration, res.BackendUsed)
}

// checkStop reports cancellation from either the Cancel flag or the context.
func (c *Coordinator) checkStop(ctx context.Context) error {
	if c.cancelled.Load() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

func (c *Coordinator) setState(s State) {
	c.state.Store(s)
}

// emitProgress invokes the progress callback, swallowing any panic it
// raises: a misbehaving observer must not kill the run.
func (c *Coordinator) emitProgress(percent int, message string) {
	c.progress.Store(int64(percent))
	c.emitLog(message)

	cb := c.opts.OnProgress
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logf("run progress_callback_panic=%v", r)
		}
	}()
	cb(Progress{Percent: percent, Message: message, Timestamp: time.Now()})
}

func (c *Coordinator) emitLog(message string) {
	cb := c.opts.OnLog
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logf("run log_callback_panic=%v", r)
		}
	}()
	cb(message)
}

func (c *Coordinator) logf(format string, v ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Printf(format, v...)
	}
}

// rowsPercent maps processed/total rows into the processing band, clamped
// so finalize milestones stay distinct.
func rowsPercent(processed, total int) int {
	if total <= 0 {
		return pctProcessingStart
	}
	p := pctProcessingStart + (pctProcessingEnd-pctProcessingStart)*processed/total
	if p > pctProcessingEnd {
		p = pctProcessingEnd
	}
	return p
}

// bindRows projects record maps onto the destination column order using the
// raw source keys. Missing keys bind as NULL.
func bindRows(rows []map[string]any, sources []string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(sources))
		for j, key := range sources {
			vals[j] = row[key]
		}
		out[i] = vals
	}
	return out
}
