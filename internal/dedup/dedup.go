// Package dedup decides whether an incoming canonical host is a new asset
// or a re-observation of a stored one, and folds re-observations in while
// preserving per-source provenance.
package dedup

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hyperengineering/hostmerge/internal/store"
	"github.com/hyperengineering/hostmerge/internal/types"
)

// Additive match weights. A single strong identifier match clears the merge
// threshold on its own; weak identifiers cannot combine past it without a
// strong one.
const (
	weightMAC             = 50
	weightCloudInstanceID = 50
	weightHostname        = 15
	weightPrivateIP       = 10
	weightPublicIP        = 10

	// MergeThreshold is strict: merge only when score > MergeThreshold.
	MergeThreshold = 45
)

// AssetStore is the slice of the document store the deduplicator needs.
type AssetStore interface {
	FindCandidates(ctx context.Context, mac, cloudInstanceID, hostname string) ([]store.StoredAsset, error)
	InsertAsset(ctx context.Context, host *types.UnifiedHost) (string, error)
	UpdateAsset(ctx context.Context, id string, host *types.UnifiedHost) error
}

// Deduplicator merges incoming canonical hosts into the stored asset set.
// Writes are serialized by a global lock so callers may fan out per source.
type Deduplicator struct {
	store AssetStore
	mu    sync.Mutex
}

// New creates a Deduplicator over the given store. The store's secondary
// indexes are migration-managed and in place before any upsert runs.
func New(s AssetStore) *Deduplicator {
	return &Deduplicator{store: s}
}

// Decision reports the outcome of one upsert.
type Decision struct {
	Merged  bool
	AssetID string
	Score   int
}

// Upsert inserts the incoming host as a new asset or merges it into exactly
// one existing asset, per the weighted-identifier policy.
func (d *Deduplicator) Upsert(ctx context.Context, incoming *types.UnifiedHost) (*Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	candidates, err := d.store.FindCandidates(ctx,
		incoming.PrimaryMACAddress, incoming.CloudInstanceID, incoming.Hostname)
	if err != nil {
		return nil, err
	}

	var best *store.StoredAsset
	bestScore := 0
	for i := range candidates {
		candidate := &candidates[i]
		total, breakdown := score(incoming, &candidate.Host)
		slog.Debug("candidate scored",
			"asset_id", candidate.ID,
			"score", total,
			"breakdown", breakdown,
		)
		// Strictly-higher wins; ties keep the earlier candidate.
		if total > bestScore {
			best, bestScore = candidate, total
		}
	}

	if best != nil && bestScore > MergeThreshold {
		merge(&best.Host, incoming)
		if err := d.store.UpdateAsset(ctx, best.ID, &best.Host); err != nil {
			return nil, err
		}
		slog.Info("merged asset",
			"asset_id", best.ID,
			"source", incoming.SourceTag(),
			"score", bestScore,
		)
		return &Decision{Merged: true, AssetID: best.ID, Score: bestScore}, nil
	}

	id, err := d.store.InsertAsset(ctx, incoming)
	if err != nil {
		return nil, err
	}
	slog.Info("inserted asset",
		"asset_id", id,
		"source", incoming.SourceTag(),
		"best_score", bestScore,
	)
	return &Decision{Merged: false, AssetID: id, Score: bestScore}, nil
}

// score computes the additive match score between an incoming and a stored
// host. A field contributes only when both sides report it and the values
// are equal.
func score(incoming, stored *types.UnifiedHost) (int, map[string]int) {
	breakdown := map[string]int{}

	add := func(field, a, b string, weight int) {
		if a != "" && a == b {
			breakdown[field] = weight
		}
	}
	add("primary_mac_address", incoming.PrimaryMACAddress, stored.PrimaryMACAddress, weightMAC)
	add("cloud_instance_id", incoming.CloudInstanceID, stored.CloudInstanceID, weightCloudInstanceID)
	add("hostname", incoming.Hostname, stored.Hostname, weightHostname)
	add("private_ip", incoming.PrivateIP, stored.PrivateIP, weightPrivateIP)
	add("public_ip", incoming.PublicIP, stored.PublicIP, weightPublicIP)

	total := 0
	for _, w := range breakdown {
		total += w
	}
	return total, breakdown
}
