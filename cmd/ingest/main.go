// Command ingest runs one ingestion from a spreadsheet or mock generator into
// the configured database, falling back to an embedded sqlite file when the
// primary is unreachable. The terminal result is printed as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

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

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// flags are the command-line overrides. Precedence is flag > env > file.
type flags struct {
	ConfigPath string
	SourceType string
	Template   string
	Rows       int
	Seed       int64
	File       string
	Sheet      string
	Table      string
	ChunkSize  int
	Mode       string
	Backend    string
	DSN        string
	Fallback   string
	History    string

	MetricsBackend string
	DDTagsCSV      string
	FlushEvery     time.Duration
	Verbose        bool
}

// run executes the command and returns an exit code.
//
// Exit codes:
//   - 0: run completed.
//   - 1: run failed or was cancelled.
//   - 2: configuration error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// A missing .env file is fine; explicit environment still applies.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	fs.StringVar(&f.ConfigPath, "config", "", "config JSON path (optional)")
	fs.StringVar(&f.SourceType, "source", "", "row source: mock or excel")
	fs.StringVar(&f.Template, "template", "", "mock template (employees, sales, inventory, financial)")
	fs.IntVar(&f.Rows, "rows", 0, "mock rows to generate")
	fs.Int64Var(&f.Seed, "seed", 0, "mock RNG seed (0 seeds from the clock)")
	fs.StringVar(&f.File, "file", "", "spreadsheet path (.xlsx)")
	fs.StringVar(&f.Sheet, "sheet", "", "worksheet name (default: first sheet)")
	fs.StringVar(&f.Table, "table", "", "destination table name override")
	fs.IntVar(&f.ChunkSize, "chunk-size", 0, "rows per chunk")
	fs.StringVar(&f.Mode, "mode", "", "table mode: create or append")
	fs.StringVar(&f.Backend, "backend", "", "primary backend: mssql, postgres or sqlite")
	fs.StringVar(&f.DSN, "dsn", "", "primary backend DSN")
	fs.StringVar(&f.Fallback, "fallback", "", "sqlite fallback file path")
	fs.StringVar(&f.History, "history", "", "schema history JSON path")
	fs.StringVar(&f.MetricsBackend, "metrics", "none", "metrics backend: datadog or none")
	fs.StringVar(&f.DDTagsCSV, "dd_tags", "", "extra Datadog tags CSV (e.g. env:prod,service:ingest)")
	fs.DurationVar(&f.FlushEvery, "metrics_flush", time.Minute, "Datadog flush interval")
	fs.BoolVar(&f.Verbose, "v", false, "log progress to stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := loadConfig(f, fs)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := log.New(stderr, "", log.LstdFlags)
	if !f.Verbose {
		logger.SetOutput(io.Discard)
	}

	closeMetrics, err := setupMetrics(ctx, f, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer closeMetrics()

	src, err := newSource(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	coord := pipeline.New(pipeline.Options{
		Source:    src,
		Store:     store,
		TableName: cfg.Table,
		Mode:      cfg.Processing.Mode,
		History:   schema.NewHistoryLog(cfg.Processing.HistoryPath),
		Logger:    logger,
		OnProgress: func(p pipeline.Progress) {
			if f.Verbose {
				fmt.Fprintf(stderr, "[%3d%%] %s\n", p.Percent, p.Message)
			}
		},
	})

	// First signal cancels cooperatively; a second one kills the process.
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		fmt.Fprintln(stderr, "cancelling, waiting for the current chunk...")
		coord.Cancel()
		<-sig
		os.Exit(1)
	}()

	res := coord.Run(ctx)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)

	if err := metrics.Flush(); err != nil {
		logger.Printf("metrics: flush error: %v", err)
	}
	if !res.Success {
		return 1
	}
	return 0
}

// loadConfig resolves file, environment, and flag layers in that order.
func loadConfig(f flags, fs *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	// Only flags the user actually set override the lower layers.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "source":
			cfg.Source.Type = f.SourceType
		case "template":
			cfg.Source.Template = f.Template
		case "rows":
			cfg.Source.Rows = f.Rows
		case "seed":
			cfg.Source.Seed = f.Seed
		case "file":
			cfg.Source.Path = f.File
		case "sheet":
			cfg.Source.Sheet = f.Sheet
		case "table":
			cfg.Table = f.Table
		case "chunk-size":
			cfg.Processing.ChunkSize = f.ChunkSize
		case "mode":
			cfg.Processing.Mode = f.Mode
		case "backend":
			cfg.Database.Kind = f.Backend
		case "dsn":
			cfg.Database.DSN = f.DSN
		case "fallback":
			cfg.Database.FallbackPath = f.Fallback
		case "history":
			cfg.Processing.HistoryPath = f.History
		}
	})

	if cfg.Source.Type == "" {
		return config.Config{}, errors.New("missing source: pass -source mock|excel or set it in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setupMetrics installs the selected metrics backend and returns its
// shutdown func.
func setupMetrics(ctx context.Context, f flags, logger *log.Logger) (func(), error) {
	switch strings.ToLower(f.MetricsBackend) {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			Tags:       datadog.ParseTagsCSV(f.DDTagsCSV),
			FlushEvery: f.FlushEvery,
		})
		if err != nil {
			return nil, fmt.Errorf("metrics: datadog init: %w", err)
		}
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logger.Printf("metrics: datadog close: %v", err)
			}
		}, nil
	case "", "none":
		return func() {}, nil
	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", f.MetricsBackend)
	}
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
// is allowed: the run goes straight to the sqlite fallback.
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
			// The sqlite backend is file-based; its DSN is the file path.
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
