// Package report computes inventory summaries over the stored asset set:
// OS distribution, host activity, and network segment sizes.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/hyperengineering/hostmerge/internal/store"
	"github.com/hyperengineering/hostmerge/internal/types"
)

// staleAfter is the window beyond which a host without a fresh agent
// check-in counts as stale.
const staleAfter = 30 * 24 * time.Hour

// topSegments caps the network-segment listing to the largest gateways.
const topSegments = 5

// AssetLister is the slice of the store the reporter reads.
type AssetLister interface {
	ListAssets(ctx context.Context, limit, offset int) ([]store.StoredAsset, error)
}

// GatewayCount is one network segment sized by host count.
type GatewayCount struct {
	Gateway string `json:"gateway"`
	Hosts   int    `json:"hosts"`
}

// Activity splits hosts into active and stale by their latest security
// check-in. Hosts that never reported a check-in count as active.
type Activity struct {
	Active        int    `json:"active"`
	Stale         int    `json:"stale"`
	ReferenceDate string `json:"reference_date"`
}

// Summary is the full inventory report.
type Summary struct {
	TotalAssets     int            `json:"total_assets"`
	OSDistribution  map[string]int `json:"os_distribution"`
	Activity        Activity       `json:"activity"`
	NetworkSegments []GatewayCount `json:"network_segments"`
	GeneratedAt     string         `json:"generated_at"`
}

// Generate loads all assets and builds the summary against the reference
// time (normally time.Now).
func Generate(ctx context.Context, lister AssetLister, reference time.Time) (*Summary, error) {
	assets, err := lister.ListAssets(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	return Build(assets, reference), nil
}

// Build computes the summary over an in-memory asset set.
func Build(assets []store.StoredAsset, reference time.Time) *Summary {
	summary := &Summary{
		TotalAssets:    len(assets),
		OSDistribution: map[string]int{},
		Activity: Activity{
			ReferenceDate: reference.UTC().Format("2006-01-02"),
		},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	staleBefore := reference.Add(-staleAfter)
	gatewayCounts := map[string]int{}

	for _, asset := range assets {
		host := asset.Host

		if host.OSPlatform != "" {
			summary.OSDistribution[host.OSPlatform]++
		}

		if seen, ok := latestSeen(&host); ok && seen.Before(staleBefore) {
			summary.Activity.Stale++
		} else {
			summary.Activity.Active++
		}

		if host.DefaultGateway != "" {
			gatewayCounts[host.DefaultGateway]++
		}
	}

	for gateway, hosts := range gatewayCounts {
		summary.NetworkSegments = append(summary.NetworkSegments, GatewayCount{
			Gateway: gateway,
			Hosts:   hosts,
		})
	}
	sort.Slice(summary.NetworkSegments, func(i, j int) bool {
		a, b := summary.NetworkSegments[i], summary.NetworkSegments[j]
		if a.Hosts != b.Hosts {
			return a.Hosts > b.Hosts
		}
		return a.Gateway < b.Gateway
	})
	if len(summary.NetworkSegments) > topSegments {
		summary.NetworkSegments = summary.NetworkSegments[:topSegments]
	}

	return summary
}

// latestSeen returns the most recent of the Qualys check-in and the
// CrowdStrike last-seen timestamps. Unparseable values are ignored.
func latestSeen(host *types.UnifiedHost) (time.Time, bool) {
	var latest time.Time
	var found bool

	consider := func(value string) {
		if value == "" {
			return
		}
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}

	if host.QualysSecurity != nil {
		consider(host.QualysSecurity.LastCheckedIn)
	}
	if host.CrowdStrikeSecurity != nil {
		consider(host.CrowdStrikeSecurity.LastSeen)
	}
	return latest, found
}
