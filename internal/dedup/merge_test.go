package dedup

import (
	"testing"

	"github.com/hyperengineering/hostmerge/internal/types"
)

func TestMergeScalarsLastWriterWins(t *testing.T) {
	stored := &types.UnifiedHost{
		Hostname:      "web-01",
		OSName:        "Ubuntu 20.04",
		TotalMemoryMB: 2048,
	}
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.CrowdStrikeIDKey: "c-1"},
		OSName:    "Ubuntu 22.04",
	}

	merge(stored, incoming)

	if stored.OSName != "Ubuntu 22.04" {
		t.Errorf("non-empty incoming must win: got %q", stored.OSName)
	}
	if stored.Hostname != "web-01" {
		t.Errorf("empty incoming must not clear stored: got %q", stored.Hostname)
	}
	if stored.TotalMemoryMB != 2048 {
		t.Errorf("zero memory must not clear stored: got %d", stored.TotalMemoryMB)
	}
}

func TestMergeSourceStripReplacesStaleView(t *testing.T) {
	stored := &types.UnifiedHost{
		SourceIDs: map[string]string{types.QualysIDKey: "q-1"},
		NetworkInterfaces: []types.NetworkInterface{
			{MACAddress: "02:aa", Sources: []string{types.SourceQualys}},
			{MACAddress: "02:bb", Sources: []string{types.SourceQualys, types.SourceCrowdStrike}},
		},
	}
	// Qualys re-observes with 02:aa gone and 02:cc new.
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.QualysIDKey: "q-1"},
		NetworkInterfaces: []types.NetworkInterface{
			{MACAddress: "02:cc", Sources: []string{types.SourceQualys}},
		},
	}

	merge(stored, incoming)

	macs := map[string]bool{}
	for _, iface := range stored.NetworkInterfaces {
		macs[iface.MACAddress] = true
	}
	if macs["02:aa"] {
		t.Error("interface dropped by the re-observing source must disappear")
	}
	if !macs["02:cc"] {
		t.Error("newly observed interface must appear")
	}
	// 02:bb was qualys-sourced too, so the strip removes it; another
	// source's next observation re-adds its view.
	if macs["02:bb"] {
		t.Error("multi-source interface carrying the re-observing tag is stripped")
	}
}

func TestMergeSoftwareUnionsSources(t *testing.T) {
	stored := &types.UnifiedHost{
		SourceIDs: map[string]string{types.QualysIDKey: "q-1"},
		InstalledSoftware: []types.Software{
			{Product: "openssl", Version: "3.0.2", Sources: []string{types.SourceQualys}},
		},
	}
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.TenableIDKey: "t-1"},
		InstalledSoftware: []types.Software{
			{Product: "openssl", Version: "3.0.2", Sources: []string{types.SourceTenable}},
			{Vendor: "openbsd", Product: "openssh", Version: "8.9", Sources: []string{types.SourceTenable}},
		},
	}

	merge(stored, incoming)

	if len(stored.InstalledSoftware) != 2 {
		t.Fatalf("expected 2 entries, got %v", stored.InstalledSoftware)
	}
	if len(stored.InstalledSoftware[0].Sources) != 2 {
		t.Errorf("matching entry must union sources: got %v",
			stored.InstalledSoftware[0].Sources)
	}
}

func TestMergeCloudContext(t *testing.T) {
	stored := &types.UnifiedHost{
		CloudContext: &types.CloudContext{
			Provider: "AWS",
			Region:   "us-east-1",
		},
	}
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.CrowdStrikeIDKey: "c-1"},
		CloudContext: &types.CloudContext{
			Provider:  "AWS",
			AccountID: "999988887777",
		},
	}

	merge(stored, incoming)

	if stored.CloudContext.Region != "us-east-1" {
		t.Errorf("stored region must survive: got %q", stored.CloudContext.Region)
	}
	if stored.CloudContext.AccountID != "999988887777" {
		t.Errorf("incoming account must land: got %q", stored.CloudContext.AccountID)
	}
}

func TestMergeNilCloudContextPreserved(t *testing.T) {
	stored := &types.UnifiedHost{
		CloudContext: &types.CloudContext{Provider: "AWS"},
	}
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.CrowdStrikeIDKey: "c-1"},
	}

	merge(stored, incoming)
	if stored.CloudContext == nil || stored.CloudContext.Provider != "AWS" {
		t.Errorf("nil incoming context must not clear stored: got %+v", stored.CloudContext)
	}
}

func TestMergeSecurityBlobReplacedWholesale(t *testing.T) {
	stored := &types.UnifiedHost{
		QualysSecurity: &types.QualysSecurityInfo{
			AgentVersion:      "4.7",
			VulnerabilityQIDs: []int64{1, 2, 3},
		},
	}
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.QualysIDKey: "q-1"},
		QualysSecurity: &types.QualysSecurityInfo{
			AgentVersion:      "4.8",
			VulnerabilityQIDs: []int64{9},
		},
	}

	merge(stored, incoming)

	if stored.QualysSecurity.AgentVersion != "4.8" {
		t.Errorf("agent version: got %q", stored.QualysSecurity.AgentVersion)
	}
	if len(stored.QualysSecurity.VulnerabilityQIDs) != 1 {
		t.Errorf("old QIDs must not linger: got %v", stored.QualysSecurity.VulnerabilityQIDs)
	}
}

func TestMergeRefreshesLastUpdated(t *testing.T) {
	stored := &types.UnifiedHost{
		RecordCreatedAt:     "2024-01-01T00:00:00Z",
		RecordLastUpdatedAt: "2024-01-01T00:00:00Z",
	}
	incoming := &types.UnifiedHost{
		SourceIDs: map[string]string{types.TenableIDKey: "t-1"},
	}

	merge(stored, incoming)

	if stored.RecordCreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("created timestamp must not move: got %q", stored.RecordCreatedAt)
	}
	if stored.RecordLastUpdatedAt == "2024-01-01T00:00:00Z" {
		t.Error("last updated timestamp must refresh on merge")
	}
}
