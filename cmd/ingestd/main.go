// Command ingestd exposes the ingestion pipeline over HTTP. Runs start in the
// background; clients poll for progress and may cancel. A health endpoint
// probes the configured database pair.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/config"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/hybrid"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/metrics"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/metrics/datadog"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/pipeline"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/source"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage/all"
)

const (
	shutdownTimeout = 10 * time.Second
	healthTimeout   = 5 * time.Second
)

func main() {
	os.Exit(runDaemon(context.Background(), os.Args[1:], os.Stderr))
}

// runDaemon starts the daemon and blocks until SIGINT/SIGTERM.
//
// Exit codes:
//   - 0: clean shutdown.
//   - 1: server error.
//   - 2: configuration error.
func runDaemon(ctx context.Context, args []string, stderr io.Writer) int {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("ingestd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath        string
		addr           string
		metricsBackend string
		ddTagsCSV      string
		flushEvery     time.Duration
		verbose        bool
	)
	fs.StringVar(&cfgPath, "config", "", "config JSON path (optional)")
	fs.StringVar(&addr, "addr", ":8080", "listen address")
	fs.StringVar(&metricsBackend, "metrics", "none", "metrics backend: datadog or none")
	fs.StringVar(&ddTagsCSV, "dd_tags", "", "extra Datadog tags CSV")
	fs.DurationVar(&flushEvery, "metrics_flush", time.Minute, "Datadog flush interval")
	fs.BoolVar(&verbose, "v", false, "log requests and run progress")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := log.New(stderr, "ingestd ", log.LstdFlags)
	if !verbose {
		logger.SetOutput(io.Discard)
	}

	switch strings.ToLower(metricsBackend) {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			Tags:       datadog.ParseTagsCSV(ddTagsCSV),
			FlushEvery: flushEvery,
		})
		if err != nil {
			fmt.Fprintf(stderr, "metrics: datadog init: %v\n", err)
			return 2
		}
		metrics.SetBackend(b)
		defer func() { _ = b.Close() }()
	case "", "none":
	default:
		fmt.Fprintf(stderr, "metrics: unknown backend %q\n", metricsBackend)
		return 2
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := newServer(cfg, logger)

	httpSrv := &http.Server{Addr: addr, Handler: srv.routes()}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		fmt.Fprintf(stderr, "server: %v\n", err)
		return 1
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	srv.cancelAll()

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		fmt.Fprintf(stderr, "shutdown: %v\n", err)
		return 1
	}
	return 0
}

// server holds the daemon's base config and the in-memory run registry.
type server struct {
	cfg    config.Config
	logger *log.Logger

	mu   sync.Mutex
	seq  int
	runs map[string]*run
}

// run tracks one background ingestion.
type run struct {
	ID    string
	coord *pipeline.Coordinator
	done  chan struct{}

	mu      sync.Mutex
	message string
	result  *pipeline.Result
}

func (r *run) setMessage(m string) {
	r.mu.Lock()
	r.message = m
	r.mu.Unlock()
}

func (r *run) snapshot() (string, *pipeline.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message, r.result
}

func newServer(cfg config.Config, logger *log.Logger) *server {
	return &server{cfg: cfg, logger: logger, runs: make(map[string]*run)}
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/runs", s.handleStartRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.DELETE("/runs/:id", s.handleCancelRun)
	return r
}

// runStatus is the wire representation of one run.
type runStatus struct {
	ID       string           `json:"id"`
	State    pipeline.State   `json:"state"`
	Progress int              `json:"progress"`
	Message  string           `json:"message,omitempty"`
	Result   *pipeline.Result `json:"result,omitempty"`
}

func (s *server) status(r *run) runStatus {
	msg, res := r.snapshot()
	return runStatus{
		ID:       r.ID,
		State:    r.coord.State(),
		Progress: r.coord.Percent(),
		Message:  msg,
		Result:   res,
	}
}

// handleStartRun accepts a config overlay, merges it over the daemon's base
// config, and starts the ingestion in the background.
func (s *server) handleStartRun(c *gin.Context) {
	var overlay config.Config
	if err := c.ShouldBindJSON(&overlay); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request body: " + err.Error()})
		return
	}

	cfg := mergeConfig(s.cfg, overlay)
	if cfg.Source.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing source.type"})
		return
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := newSource(cfg, s.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, err := newStore(c.Request.Context(), cfg, s.logger)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	r := s.register(cfg, src, store)
	c.JSON(http.StatusAccepted, gin.H{"id": r.ID})
}

// register creates the run record and launches its goroutine. The run owns
// its own context: it outlives the originating request and stops only via
// Cancel or process shutdown.
func (s *server) register(cfg config.Config, src source.Source, store pipeline.Store) *run {
	s.mu.Lock()
	s.seq++
	r := &run{ID: "run-" + strconv.Itoa(s.seq), done: make(chan struct{})}
	s.runs[r.ID] = r
	s.mu.Unlock()

	r.coord = pipeline.New(pipeline.Options{
		Source:    src,
		Store:     store,
		TableName: cfg.Table,
		Mode:      cfg.Processing.Mode,
		History:   schema.NewHistoryLog(cfg.Processing.HistoryPath),
		Logger:    s.logger,
		OnProgress: func(p pipeline.Progress) {
			r.setMessage(p.Message)
		},
	})

	go func() {
		defer close(r.done)
		res := r.coord.Run(context.Background())
		r.mu.Lock()
		r.result = &res
		r.mu.Unlock()
		s.logger.Printf("run %s finished state=%s rows=%d", r.ID, res.State, res.RowsProcessed)
	}()
	return r
}

func (s *server) handleListRuns(c *gin.Context) {
	s.mu.Lock()
	out := make([]runStatus, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, s.status(r))
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *server) handleGetRun(c *gin.Context) {
	r := s.lookup(c.Param("id"))
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	c.JSON(http.StatusOK, s.status(r))
}

func (s *server) handleCancelRun(c *gin.Context) {
	r := s.lookup(c.Param("id"))
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	r.coord.Cancel()
	c.JSON(http.StatusAccepted, s.status(r))
}

// handleHealth probes the configured database pair with a short timeout and
// reports which backend answers.
func (s *server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	body := gin.H{
		"status":   "ok",
		"backends": storage.Kinds(),
	}

	store, err := newStore(ctx, s.cfg, s.logger)
	if err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		c.JSON(http.StatusOK, body)
		return
	}
	defer func() { _ = store.Close() }()

	if _, err := store.Connect(ctx); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
	}
	body["database"] = store.Status()
	c.JSON(http.StatusOK, body)
}

func (s *server) lookup(id string) *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// cancelAll requests cancellation of every run and waits briefly for them to
// settle so shutdown closes connections cleanly.
func (s *server) cancelAll() {
	s.mu.Lock()
	runs := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.coord.Cancel()
	}
	deadline := time.After(shutdownTimeout)
	for _, r := range runs {
		select {
		case <-r.done:
		case <-deadline:
			return
		}
	}
}

// mergeConfig overlays request fields onto the daemon's base config. Only
// fields the request actually sets override the base.
func mergeConfig(base, overlay config.Config) config.Config {
	out := base
	if overlay.Source.Type != "" {
		out.Source = overlay.Source
	}
	if overlay.Table != "" {
		out.Table = overlay.Table
	}
	if overlay.Database.Kind != "" || overlay.Database.DSN != "" {
		out.Database.Kind = overlay.Database.Kind
		out.Database.DSN = overlay.Database.DSN
	}
	if overlay.Database.FallbackPath != "" {
		out.Database.FallbackPath = overlay.Database.FallbackPath
	}
	if overlay.Processing.ChunkSize != 0 {
		out.Processing.ChunkSize = overlay.Processing.ChunkSize
	}
	if overlay.Processing.Mode != "" {
		out.Processing.Mode = overlay.Processing.Mode
	}
	if overlay.Processing.HistoryPath != "" {
		out.Processing.HistoryPath = overlay.Processing.HistoryPath
	}
	return out
}

// newSource builds the configured row source.
func newSource(cfg config.Config, logger source.Logger) (source.Source, error) {
	switch cfg.Source.Type {
	case "mock":
		template := cfg.Source.Template
		if template == "" {
			template = source.TemplateEmployees
		}
		rows := cfg.Source.Rows
		if rows == 0 {
			rows = 1000
		}
		return source.NewMock(source.MockOptions{
			Template:  template,
			Rows:      rows,
			ChunkSize: cfg.Processing.ChunkSize,
			Seed:      cfg.Source.Seed,
		}), nil
	case "excel":
		return source.NewExcel(cfg.Source.Path, cfg.Source.Sheet, cfg.Processing.ChunkSize, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// newStore assembles the hybrid primary/fallback pair. A missing primary DSN
// is allowed: runs go straight to the sqlite fallback.
func newStore(ctx context.Context, cfg config.Config, logger storage.Logger) (*hybrid.Manager, error) {
	var primary storage.Backend
	if cfg.Database.Kind != "" && cfg.Database.DSN != "" {
		sc := storage.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.Pool.MaxOpenConns,
			MaxIdleConns:    cfg.Database.Pool.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.Pool.ConnMaxLifetime.Std(),
			ConnMaxIdleTime: cfg.Database.Pool.ConnMaxIdleTime.Std(),
			Logger:          logger,
		}
		if cfg.Database.Kind == "sqlite" {
			sc.Path = cfg.Database.DSN
		}
		var err error
		primary, err = storage.New(ctx, cfg.Database.Kind, sc)
		if err != nil {
			return nil, err
		}
	}

	fallback, err := storage.New(ctx, "sqlite", storage.Config{
		Path:   cfg.Database.FallbackPath,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return hybrid.New(primary, fallback, cfg.Database.FallbackPath, logger), nil
}
