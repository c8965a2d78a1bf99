// Package normalize maps raw vendor host payloads into the canonical
// UnifiedHost model. Normalizers are pure: every read is null-safe, missing
// fields propagate as zero values, and empty raw input yields nil.
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

// Host normalizes one raw record from the given source. Returns nil iff the
// record is empty or the source is unrecognized.
func Host(raw gjson.Result, sourceTag string) *types.UnifiedHost {
	switch sourceTag {
	case types.SourceQualys:
		return Qualys(raw)
	case types.SourceCrowdStrike:
		return CrowdStrike(raw)
	case types.SourceTenable:
		return Tenable(raw)
	default:
		slog.Warn("no normalizer for source", "source", sourceTag)
		return nil
	}
}

// emptyRecord reports whether raw carries no data at all.
func emptyRecord(raw gjson.Result) bool {
	if !raw.Exists() || raw.Type == gjson.Null {
		return true
	}
	if raw.IsObject() {
		return len(raw.Map()) == 0
	}
	return raw.Raw == ""
}

// nowUTC returns the single construction timestamp for a normalized record.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// isPrivateIPv4 classifies dotted-quad addresses by the RFC1918-style
// prefixes the vendor feeds actually use.
func isPrivateIPv4(addr string) bool {
	return strings.HasPrefix(addr, "10.") ||
		strings.HasPrefix(addr, "172.") ||
		strings.HasPrefix(addr, "192.168.")
}
