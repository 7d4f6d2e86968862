// Package metrics is the facade the pipeline emits through. The core code
// depends only on the Backend interface; concrete exporters (datadog) live
// in subpackages and are selected at startup.
//
// The default backend is a no-op, so library code can emit unconditionally
// without checking whether metrics were configured.
package metrics

import (
	"sync"
	"time"
)

// Metric names the ingestion pipeline emits. Exporters switch on these; an
// exporter that does not know a name drops it.
const (
	RowsTotal     = "ingest_rows_total"
	ChunksTotal   = "ingest_chunks_total"
	FailuresTotal = "ingest_failures_total"
	RunsTotal     = "ingest_runs_total"

	ChunkDurationSeconds = "ingest_chunk_duration_seconds"
	RunDurationSeconds   = "ingest_run_duration_seconds"
)

// Labels attach dimensions to a metric point (table, backend role, status).
type Labels map[string]string

// Backend is the sink contract. Implementations must be safe for concurrent
// use; the pipeline calls from whatever goroutine runs the chunk loop.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer points.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide sink. Pass nil to restore the no-op
// backend (tests use this to detach a fake).
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter adds delta to a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveHistogram(name, value, labels)
}

// Flush asks a buffering backend to submit now. No-op for backends that do
// not buffer.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	if f, ok := b.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordChunk records one insert batch: the row count, the chunk counter,
// and the insert latency. status is "ok" or "error".
func RecordChunk(table, role string, rows int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := Labels{"table": table, "backend": role, "status": status}

	IncCounter(ChunksTotal, 1, labels)
	if err == nil {
		IncCounter(RowsTotal, float64(rows), labels)
	} else {
		IncCounter(FailuresTotal, 1, labels)
	}
	ObserveHistogram(ChunkDurationSeconds, d.Seconds(), labels)
}

// RecordRun records a completed pipeline run and its wall-clock duration.
// outcome is the terminal state name ("completed", "failed", "cancelled").
func RecordRun(table, role, outcome string, d time.Duration) {
	labels := Labels{"table": table, "backend": role, "status": outcome}
	IncCounter(RunsTotal, 1, labels)
	ObserveHistogram(RunDurationSeconds, d.Seconds(), labels)
}
