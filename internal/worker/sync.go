// Package worker hosts the background loops run in serve mode: periodic
// source re-ingestion and periodic snapshot generation.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/hostmerge/internal/pipeline"
)

// Runner is the pipeline seam the sync worker drives.
type Runner interface {
	Run(ctx context.Context) pipeline.Stats
}

// SyncWorker re-runs the ingestion pipeline on an interval so the
// inventory tracks the vendor APIs while the server stays up.
type SyncWorker struct {
	pipeline Runner
	interval time.Duration
}

// NewSyncWorker creates a worker with the given pipeline and interval.
func NewSyncWorker(p Runner, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		pipeline: p,
		interval: interval,
	}
}

// Run starts the worker loop. The pipeline runs immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (w *SyncWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncWorker) runOnce(ctx context.Context) {
	slog.Info("sync cycle started",
		"component", "worker",
		"worker", "sync",
	)

	stats := w.pipeline.Run(ctx)
	if ctx.Err() != nil {
		return
	}

	for tag, s := range stats {
		slog.Info("sync cycle source summary",
			"component", "worker",
			"worker", "sync",
			"source", tag,
			"fetched", s.Fetched,
			"inserted", s.Inserted,
			"merged", s.Merged,
			"failed", s.Failed,
		)
	}
}
