package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/hostmerge/internal/config"
	"github.com/hyperengineering/hostmerge/internal/dedup"
	"github.com/hyperengineering/hostmerge/internal/pipeline"
	"github.com/hyperengineering/hostmerge/internal/source"
	"github.com/hyperengineering/hostmerge/internal/store"
	"github.com/hyperengineering/hostmerge/internal/types"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hostmerge",
	Short: "Hostmerge - unified security host inventory",
	Long: "Pulls host records from Qualys, CrowdStrike and Tenable, normalizes " +
		"them into a canonical shape and merges duplicates into one inventory.",
	RunE: runIngest,
}

// runIngest performs a one-shot ingestion: fetch every source, merge into
// the store, log a per-source summary, exit.
func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	stats := rt.Pipeline.Run(ctx)
	logRunSummary(stats)
	return nil
}

// runtime bundles the wired components shared by the ingest and serve
// commands.
type runtime struct {
	Config   *config.Config
	Store    *store.SQLiteStore
	Dedup    *dedup.Deduplicator
	Pipeline *pipeline.Pipeline
}

// newRuntime loads configuration, initializes logging, opens the store and
// wires the source clients through the deduplicator into a pipeline.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	initLogger(cfg.Log)
	slog.Info("configuration loaded")

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	deduper := dedup.New(db)
	backoff := time.Duration(cfg.Pipeline.PageBackoff)

	pipe := pipeline.New(deduper,
		pipeline.Source{
			Tag:    types.SourceQualys,
			Client: source.NewQualys(cfg.Sources.Qualys, backoff),
		},
		pipeline.Source{
			Tag:    types.SourceCrowdStrike,
			Client: source.NewCrowdStrike(cfg.Sources.CrowdStrike, backoff),
		},
		pipeline.Source{
			Tag:    types.SourceTenable,
			Client: source.NewTenable(cfg.Sources.Tenable),
		},
	)

	return &runtime{
		Config:   cfg,
		Store:    db,
		Dedup:    deduper,
		Pipeline: pipe,
	}, nil
}

// Close releases the runtime's resources.
func (rt *runtime) Close() {
	if err := rt.Store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}
}

func initLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logRunSummary(stats pipeline.Stats) {
	for tag, s := range stats {
		slog.Info("run summary",
			"source", tag,
			"fetched", s.Fetched,
			"normalized", s.Normalized,
			"skipped", s.Skipped,
			"inserted", s.Inserted,
			"merged", s.Merged,
			"failed", s.Failed,
			"error", s.Error,
		)
	}
}
