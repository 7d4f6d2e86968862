package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type captureBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	labels   map[string]Labels
}

func newCapture() *captureBackend {
	return &captureBackend{
		counters: map[string]float64{},
		samples:  map[string][]float64{},
		labels:   map[string]Labels{},
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[name] = append(c.samples[name], value)
	c.labels[name] = labels
}

func TestDefaultBackendIsNop(t *testing.T) {
	// Must not panic without SetBackend.
	IncCounter(RowsTotal, 1, nil)
	ObserveHistogram(ChunkDurationSeconds, 0.5, nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush on nop backend = %v, want nil", err)
	}
}

func TestRecordChunk(t *testing.T) {
	c := newCapture()
	SetBackend(c)
	defer SetBackend(nil)

	RecordChunk("employees", "primary", 1000, 250*time.Millisecond, nil)
	RecordChunk("employees", "primary", 1000, 100*time.Millisecond, errors.New("boom"))

	if got := c.counters[ChunksTotal]; got != 2 {
		t.Errorf("chunks = %v, want 2", got)
	}
	if got := c.counters[RowsTotal]; got != 1000 {
		t.Errorf("rows = %v, want 1000 (failed chunk not counted)", got)
	}
	if got := c.counters[FailuresTotal]; got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := len(c.samples[ChunkDurationSeconds]); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
	if got := c.labels[FailuresTotal]["status"]; got != "error" {
		t.Errorf("failure status label = %q, want error", got)
	}
}

func TestRecordRun(t *testing.T) {
	c := newCapture()
	SetBackend(c)
	defer SetBackend(nil)

	RecordRun("employees", "fallback", "completed", 3*time.Second)

	if got := c.counters[RunsTotal]; got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
	if got := c.labels[RunsTotal]["backend"]; got != "fallback" {
		t.Errorf("backend label = %q, want fallback", got)
	}
	if got := c.samples[RunDurationSeconds]; len(got) != 1 || got[0] != 3 {
		t.Errorf("run duration samples = %v, want [3]", got)
	}
}

func TestSetBackendNilRestoresNop(t *testing.T) {
	c := newCapture()
	SetBackend(c)
	SetBackend(nil)

	IncCounter(RowsTotal, 5, nil)
	if got := c.counters[RowsTotal]; got != 0 {
		t.Errorf("detached backend still received %v", got)
	}
}
