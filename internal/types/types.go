package types

import "encoding/json"

// Source tags identify the vendor that contributed an observation.
const (
	SourceQualys      = "Qualys"
	SourceCrowdStrike = "CrowdStrike"
	SourceTenable     = "Tenable"
	SourceUnknown     = "Unknown"
)

// Source-id keys used in UnifiedHost.SourceIDs.
const (
	QualysIDKey      = "qualys_id"
	CrowdStrikeIDKey = "crowdstrike_id"
	TenableIDKey     = "tenable_id"
)

// SourceTagForIDKey maps a source_ids key to its source tag.
func SourceTagForIDKey(key string) string {
	switch key {
	case QualysIDKey:
		return SourceQualys
	case CrowdStrikeIDKey:
		return SourceCrowdStrike
	case TenableIDKey:
		return SourceTenable
	default:
		return SourceUnknown
	}
}

// KnownSourceTag reports whether tag is a recognized vendor tag.
func KnownSourceTag(tag string) bool {
	return tag == SourceQualys || tag == SourceCrowdStrike || tag == SourceTenable
}

// NetworkInterface is a single interface on a host, keyed by MAC address.
// Sources records which vendors have reported this interface.
type NetworkInterface struct {
	MACAddress  string   `json:"mac_address,omitempty"`
	PrivateIPv4 string   `json:"private_ip_v4,omitempty"`
	PublicIPv4  string   `json:"public_ip_v4,omitempty"`
	IPv6        string   `json:"ip_v6,omitempty"`
	Sources     []string `json:"sources"`
}

// CloudContext describes the cloud environment a host runs in.
// Merged shallowly across sources: incoming non-empty fields win.
type CloudContext struct {
	Provider         string `json:"provider,omitempty"`
	AccountID        string `json:"account_id,omitempty"`
	InstanceID       string `json:"instance_id,omitempty"`
	InstanceType     string `json:"instance_type,omitempty"`
	Region           string `json:"region,omitempty"`
	AvailabilityZone string `json:"availability_zone,omitempty"`
	ImageID          string `json:"image_id,omitempty"`
	VPCID            string `json:"vpc_id,omitempty"`
	SubnetID         string `json:"subnet_id,omitempty"`
}

// OpenPort is a single open-port observation from Qualys.
type OpenPort struct {
	Port     int    `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

// QualysSecurityInfo holds security data reported only by Qualys.
// Replaced wholesale whenever Qualys re-observes the host.
type QualysSecurityInfo struct {
	AgentVersion      string     `json:"agent_version,omitempty"`
	LastCheckedIn     string     `json:"last_checked_in,omitempty"`
	LastVulnScan      string     `json:"last_vuln_scan,omitempty"`
	VulnerabilityQIDs []int64    `json:"vulnerability_qids"`
	OpenPorts         []OpenPort `json:"open_ports"`
}

// CrowdStrikeSecurityInfo holds security data reported only by CrowdStrike.
type CrowdStrikeSecurityInfo struct {
	AgentVersion string            `json:"agent_version,omitempty"`
	Status       string            `json:"status,omitempty"`
	FirstSeen    string            `json:"first_seen,omitempty"`
	LastSeen     string            `json:"last_seen,omitempty"`
	Policies     map[string]string `json:"policies"`
}

// TenableTag is a key/value asset tag from Tenable.
type TenableTag struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// TenableMitigation is an endpoint-protection observation from Tenable.
// The raw feed is inconsistent about the casing of last_detected; the
// canonical form is always snake_case.
type TenableMitigation struct {
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
	LastDetected string `json:"last_detected,omitempty"`
}

// TenableSecurityInfo holds security data reported only by Tenable.
type TenableSecurityInfo struct {
	HasAgent                  bool                `json:"has_agent"`
	LastAuthenticatedScanTime string              `json:"last_authenticated_scan_time,omitempty"`
	VulnerabilityCounts       map[string]int64    `json:"vulnerability_counts"`
	Tags                      []TenableTag        `json:"tags"`
	Mitigations               []TenableMitigation `json:"mitigations"`
}

// Software is one installed-software entry, keyed by (vendor, product,
// version). Sources accumulates across merges.
type Software struct {
	Vendor  string   `json:"vendor,omitempty"`
	Product string   `json:"product"`
	Version string   `json:"version,omitempty"`
	Sources []string `json:"sources"`
}

// Key returns the merge identity of this entry.
func (s Software) Key() [3]string {
	return [3]string{s.Vendor, s.Product, s.Version}
}

// UnifiedHost is the canonical, vendor-agnostic host record.
//
// Scalar fields use the zero value to mean "not reported by the source";
// merge logic only overwrites with non-zero incoming values. CloudContext
// and the per-source security blobs are nil when absent.
type UnifiedHost struct {
	// Strong identifiers used as high-weight dedup keys.
	PrimaryMACAddress string `json:"primary_mac_address,omitempty"`
	CloudInstanceID   string `json:"cloud_instance_id,omitempty"`

	// One entry per source that has observed this host.
	SourceIDs map[string]string `json:"source_ids"`

	Hostname          string `json:"hostname,omitempty"`
	OSName            string `json:"os_name,omitempty"`
	OSPlatform        string `json:"os_platform,omitempty"`
	KernelVersion     string `json:"kernel_version,omitempty"`
	LastBootTimestamp string `json:"last_boot_timestamp,omitempty"`

	Manufacturer  string `json:"manufacturer,omitempty"`
	ProductModel  string `json:"product_model,omitempty"`
	ProcessorInfo string `json:"processor_info,omitempty"`
	TotalMemoryMB int64  `json:"total_memory_mb,omitempty"`

	PublicIP          string             `json:"public_ip,omitempty"`
	PrivateIP         string             `json:"private_ip,omitempty"`
	DefaultGateway    string             `json:"default_gateway,omitempty"`
	NetworkInterfaces []NetworkInterface `json:"network_interfaces"`

	CloudContext *CloudContext `json:"cloud_context,omitempty"`

	QualysSecurity      *QualysSecurityInfo      `json:"qualys_security,omitempty"`
	CrowdStrikeSecurity *CrowdStrikeSecurityInfo `json:"crowdstrike_security,omitempty"`
	TenableSecurity     *TenableSecurityInfo     `json:"tenable_security,omitempty"`

	InstalledSoftware []Software `json:"installed_software"`

	RecordCreatedAt     string `json:"record_created_at,omitempty"`
	RecordLastUpdatedAt string `json:"record_last_updated_at,omitempty"`
}

// SourceTag derives the contributing vendor from SourceIDs. Freshly
// normalized records carry exactly one entry; anything else is Unknown.
func (h *UnifiedHost) SourceTag() string {
	if len(h.SourceIDs) != 1 {
		return SourceUnknown
	}
	for key := range h.SourceIDs {
		return SourceTagForIDKey(key)
	}
	return SourceUnknown
}

// MarshalJSON ensures nil collections in UnifiedHost marshal as empty, not null.
func (h UnifiedHost) MarshalJSON() ([]byte, error) {
	if h.SourceIDs == nil {
		h.SourceIDs = map[string]string{}
	}
	if h.NetworkInterfaces == nil {
		h.NetworkInterfaces = []NetworkInterface{}
	}
	if h.InstalledSoftware == nil {
		h.InstalledSoftware = []Software{}
	}
	type Alias UnifiedHost
	return json.Marshal(Alias(h))
}
