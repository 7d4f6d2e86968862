// Package datadog implements a Datadog backend for the internal/metrics package.
//
// NOTE ABOUT FLUSHING:
// This backend is meant to be useful for both short-lived and long-running
// ingestion jobs. Submitting only once at process exit can make Datadog
// dashboards/monitors awkward for long jobs (you get a single spike rather
// than a time series).
//
// Therefore we:
//   - buffer metrics in-memory (fast, lock-protected)
//   - periodically Flush() on a ticker (default: once per minute)
//   - Flush() one final time on Close()
//
// Concurrency model:
//   - pipeline goroutines can call IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - The flush loop calls Flush() periodically; Close() stops the loop
//
// If the process is killed with SIGKILL/OOM, Close() won't run (no backend
// can fix that).
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "ingest".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:ingest"}).
	Tags []string

	// FlushEvery controls how often we submit buffered metrics to Datadog.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// The following fields are unexported test seams.
	//
	// Production code will never set them; unit tests can set them to avoid:
	//   - real network submission
	//   - nondeterministic clocks/tickers
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics.
//
// The Datadog SDK exposes a concrete *datadogV2.MetricsApi, which makes unit
// testing difficult without real HTTP. Backend depends on this interface
// instead, enabling deterministic tests with a fake submitter.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time

	// newTicker is injected for deterministic tests. Production uses time.NewTicker.
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	rowCounts     map[string]float64
	chunkCounts   map[string]float64
	failureCounts map[string]float64
	runCounts     map[string]float64
	chunkDur      map[string][]float64
	runDur        map[string][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush().
//
// Errors:
//   - Returns any error from the final Flush() submission.
//   - If Close is called multiple times, the behavior is undefined (it will
//     panic because stopCh is closed twice). This mirrors typical Go "Close
//     once" semantics and is acceptable for process-lifetime backends.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// NewBackend constructs a Datadog backend using the official client.
//
// When to use:
//   - Configure this backend when you want Datadog metrics for ingestion
//     runs, from cmd/ingest or cmd/ingestd.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "ingest".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Datadog client construction itself is not expected to fail under
//     normal conditions; network errors occur during Flush().
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "ingest"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	envTag := resolveEnvTag()
	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, envTag, "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		rowCounts:     make(map[string]float64),
		chunkCounts:   make(map[string]float64),
		failureCounts: make(map[string]float64),
		runCounts:     make(map[string]float64),
		chunkDur:      make(map[string][]float64),
		runDur:        make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := labelKey(labels)
	switch name {
	case metrics.RowsTotal:
		b.rowCounts[k] += delta
	case metrics.ChunksTotal:
		b.chunkCounts[k] += delta
	case metrics.FailuresTotal:
		b.failureCounts[k] += delta
	case metrics.RunsTotal:
		b.runCounts[k] += delta
	default:
		// Ignore unknown metrics by design.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := labelKey(labels)
	switch name {
	case metrics.ChunkDurationSeconds:
		b.chunkDur[k] = append(b.chunkDur[k], value)
	case metrics.RunDurationSeconds:
		b.runDur[k] = append(b.runDur[k], value)
	default:
		// Ignore unknown histograms by design.
	}
}

// snapshot is the immutable set of buffered metric state used to build a
// flush payload. Flush() must reset buffers under a lock but submit
// out-of-lock; snapshot separates collect+reset from payload building.
type snapshot struct {
	rowCounts     map[string]float64
	chunkCounts   map[string]float64
	failureCounts map[string]float64
	runCounts     map[string]float64
	chunkDur      map[string][]float64
	runDur        map[string][]float64
}

// snapshotAndReset grabs current buffered metrics and resets internal buffers.
//
// Concurrency:
//   - Must be called with no lock held.
//   - Takes the lock internally and returns detached maps/slices.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		rowCounts:     b.rowCounts,
		chunkCounts:   b.chunkCounts,
		failureCounts: b.failureCounts,
		runCounts:     b.runCounts,
		chunkDur:      b.chunkDur,
		runDur:        b.runDur,
	}

	b.rowCounts = make(map[string]float64)
	b.chunkCounts = make(map[string]float64)
	b.failureCounts = make(map[string]float64)
	b.runCounts = make(map[string]float64)
	b.chunkDur = make(map[string][]float64)
	b.runDur = make(map[string][]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.rowCounts) == 0 &&
		len(s.chunkCounts) == 0 &&
		len(s.failureCounts) == 0 &&
		len(s.runCounts) == 0 &&
		len(s.chunkDur) == 0 &&
		len(s.runDur) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Errors:
//   - Returns any error from Datadog submission.
//   - Returns nil if there is nothing to submit.
//
// Edge cases:
//   - Flush is safe to call concurrently with IncCounter/ObserveHistogram.
//   - Flush resets buffers even if submission fails, to keep the pipeline
//     fast and avoid blocking future writes. If you need "at least once"
//     delivery, that is a different architecture.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	nowUnix := b.now().Unix()

	series := b.buildSeries(snap, nowUnix)
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed timestamp.
//
// It is pure (no locks, no network, no clocks), making it easy to unit test,
// and it centralizes naming/tagging behavior, which is an operational
// contract.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.rowCounts)+len(s.chunkCounts)+32)

	addCounts := func(metric string, counts map[string]float64) {
		for k, v := range counts {
			if v == 0 {
				continue
			}
			tags := withTags(b.baseTags, splitLabelKey(k)...)
			series = append(series, countSeries(metric, v, tags, nowUnix))
		}
	}

	addCounts("ingest.rows.total", s.rowCounts)
	addCounts("ingest.chunks.total", s.chunkCounts)
	addCounts("ingest.failures.total", s.failureCounts)
	addCounts("ingest.runs.total", s.runCounts)

	for k, samples := range s.chunkDur {
		addPercentiles(&series, b.baseTags, "ingest.chunk.duration_seconds", k, samples, nowUnix)
	}
	for k, samples := range s.runDur {
		addPercentiles(&series, b.baseTags, "ingest.run.duration_seconds", k, samples, nowUnix)
	}

	return series
}

// addPercentiles appends a fixed set of percentile gauges for a sample set.
//
// Edge cases:
//   - If samples is empty, it does nothing.
//   - It sorts a copy of samples (does not mutate input).
func addPercentiles(series *[]datadogV2.MetricSeries, baseTags []string, metricPrefix, key string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	tags := withTags(baseTags, splitLabelKey(key)...)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

// labelKey encodes the label dimensions we report (table, backend, status)
// into one buffer key; splitLabelKey turns it back into Datadog tags.
func labelKey(labels metrics.Labels) string {
	return labels["table"] + "\x00" + labels["backend"] + "\x00" + labels["status"]
}

func splitLabelKey(k string) []string {
	parts := strings.SplitN(k, "\x00", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	out := make([]string, 0, 3)
	if parts[0] != "" {
		out = append(out, "table:"+parts[0])
	}
	if parts[1] != "" {
		out = append(out, "backend:"+parts[1])
	}
	if parts[2] != "" {
		out = append(out, "status:"+parts[2])
	}
	return out
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:ingest".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
