// Package pipeline drives ingestion: for each configured source, pull raw
// records, normalize them, and hand non-nil canonical hosts to the
// deduplicator. A failing source stops only its own stream.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/hyperengineering/hostmerge/internal/dedup"
	"github.com/hyperengineering/hostmerge/internal/normalize"
	"github.com/hyperengineering/hostmerge/internal/source"
	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

// Upserter is the deduplicator seam the pipeline writes through.
type Upserter interface {
	Upsert(ctx context.Context, host *types.UnifiedHost) (*dedup.Decision, error)
}

// Source pairs a vendor tag with its fetch client.
type Source struct {
	Tag    string
	Client source.Fetcher
}

// SourceStats counts one source's outcomes for a run.
type SourceStats struct {
	Fetched    int    `json:"fetched"`
	Normalized int    `json:"normalized"`
	Skipped    int    `json:"skipped"`
	Inserted   int    `json:"inserted"`
	Merged     int    `json:"merged"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// Stats maps source tag to its per-run counts.
type Stats map[string]*SourceStats

// Pipeline orchestrates source → normalizer → deduplicator.
type Pipeline struct {
	dedup   Upserter
	sources []Source
}

// New creates a pipeline over the given deduplicator and sources.
func New(d Upserter, sources ...Source) *Pipeline {
	return &Pipeline{dedup: d, sources: sources}
}

// Run ingests every source in order and returns per-source counts. Sources
// are independent: an error on one is recorded and the run continues with
// the next, unless the context itself is done.
func (p *Pipeline) Run(ctx context.Context) Stats {
	stats := Stats{}

	for _, src := range p.sources {
		if ctx.Err() != nil {
			break
		}

		slog.Info("ingesting source", "source", src.Tag)
		srcStats := &SourceStats{}
		stats[src.Tag] = srcStats

		err := src.Client.FetchHosts(ctx, func(raw gjson.Result) error {
			srcStats.Fetched++

			host := normalize.Host(raw, src.Tag)
			if host == nil {
				srcStats.Skipped++
				return nil
			}
			srcStats.Normalized++

			decision, err := p.dedup.Upsert(ctx, host)
			if err != nil {
				// Store I/O failures are fatal for this record only.
				slog.Error("upsert failed",
					"source", src.Tag, "error", err)
				srcStats.Failed++
				return nil
			}
			if decision.Merged {
				srcStats.Merged++
			} else {
				srcStats.Inserted++
			}
			return nil
		})
		if err != nil {
			slog.Error("source stream terminated with error",
				"source", src.Tag, "error", err)
			srcStats.Error = err.Error()
		}

		slog.Info("source complete",
			"source", src.Tag,
			"fetched", srcStats.Fetched,
			"normalized", srcStats.Normalized,
			"inserted", srcStats.Inserted,
			"merged", srcStats.Merged,
			"failed", srcStats.Failed,
		)
	}

	return stats
}
