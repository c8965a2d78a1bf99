package normalize

import (
	"strings"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

// Tenable normalizes one raw Tenable asset record.
func Tenable(raw gjson.Result) *types.UnifiedHost {
	if emptyRecord(raw) {
		return nil
	}

	kernel, osName, platform := tenableOS(raw.Get("operating_systems").Array())

	privateIP, publicIP := tenableAddresses(raw)

	var software []types.Software
	for _, cpe := range raw.Get("installed_software").Array() {
		if sw, ok := parseCPE(cpe.String()); ok {
			software = append(software, sw)
		}
	}

	mac := raw.Get("display_mac_address").String()
	var interfaces []types.NetworkInterface
	if mac != "" {
		interfaces = append(interfaces, types.NetworkInterface{
			MACAddress:  mac,
			PrivateIPv4: privateIP,
			PublicIPv4:  publicIP,
			Sources:     []string{types.SourceTenable},
		})
	}

	security := &types.TenableSecurityInfo{
		HasAgent:                  raw.Get("has_agent").Bool(),
		LastAuthenticatedScanTime: raw.Get("last_authenticated_scan_time").String(),
		VulnerabilityCounts:       map[string]int64{},
		Tags:                      []types.TenableTag{},
		Mitigations:               []types.TenableMitigation{},
	}
	raw.Get("vulnerability_counts").ForEach(func(severity, count gjson.Result) bool {
		security.VulnerabilityCounts[severity.String()] = count.Int()
		return true
	})
	for _, tag := range raw.Get("tags").Array() {
		security.Tags = append(security.Tags, types.TenableTag{
			Key:   tag.Get("key").String(),
			Value: tag.Get("value").String(),
		})
	}
	for _, m := range raw.Get("mitigations").Array() {
		// The feed flips between last_detected and last_Detected.
		lastDetected := m.Get("last_detected").String()
		if lastDetected == "" {
			lastDetected = m.Get("last_Detected").String()
		}
		security.Mitigations = append(security.Mitigations, types.TenableMitigation{
			Name:         m.Get("name").String(),
			Version:      m.Get("version").String(),
			LastDetected: lastDetected,
		})
	}

	instanceID := raw.Get("aws_ec2_instance_id").String()

	// Tenable assets in this feed are always EC2-resident.
	cloud := &types.CloudContext{
		Provider:   "AWS",
		InstanceID: instanceID,
	}

	now := nowUTC()
	return &types.UnifiedHost{
		PrimaryMACAddress:   mac,
		CloudInstanceID:     instanceID,
		SourceIDs:           map[string]string{types.TenableIDKey: raw.Get("id").String()},
		Hostname:            raw.Get("host_name").String(),
		OSName:              osName,
		OSPlatform:          platform,
		KernelVersion:       kernel,
		PublicIP:            publicIP,
		PrivateIP:           privateIP,
		NetworkInterfaces:   interfaces,
		CloudContext:        cloud,
		TenableSecurity:     security,
		InstalledSoftware:   software,
		RecordCreatedAt:     now,
		RecordLastUpdatedAt: now,
	}
}

// tenableOS splits the free-text "<Kernel X> on <OS name>" string and
// classifies the platform by substring.
func tenableOS(operatingSystems []gjson.Result) (kernel, osName, platform string) {
	if len(operatingSystems) == 0 {
		return "", "", ""
	}
	full := operatingSystems[0].String()
	if full == "" {
		return "", "", ""
	}

	if before, after, found := strings.Cut(full, " on "); found {
		kernel, osName = before, after
	} else {
		osName = full
	}

	switch {
	case strings.Contains(full, "Linux"):
		platform = "Linux"
	case strings.Contains(full, "Windows"):
		platform = "Windows"
	default:
		platform = "Unknown"
	}
	return kernel, osName, platform
}

// tenableAddresses classifies the reported IPv4 addresses; first private and
// first public win. display_ipv4_address participates like any other entry.
func tenableAddresses(raw gjson.Result) (privateIP, publicIP string) {
	addresses := raw.Get("ipv4_addresses").Array()
	if display := raw.Get("display_ipv4_address"); display.Exists() {
		addresses = append(addresses, display)
	}

	for _, entry := range addresses {
		addr := entry.String()
		if addr == "" {
			continue
		}
		if isPrivateIPv4(addr) {
			if privateIP == "" {
				privateIP = addr
			}
		} else if publicIP == "" {
			publicIP = addr
		}
	}
	return privateIP, publicIP
}

// parseCPE extracts vendor/product/version from a "cpe:/a:vendor:product:
// version[:...]" string. Entries without a product are dropped.
func parseCPE(cpe string) (types.Software, bool) {
	segments := strings.Split(cpe, ":")
	if len(segments) < 4 || segments[0] != "cpe" {
		return types.Software{}, false
	}

	sw := types.Software{
		Vendor:  segments[2],
		Product: segments[3],
		Sources: []string{types.SourceTenable},
	}
	if len(segments) > 4 {
		sw.Version = segments[4]
	}
	if sw.Product == "" {
		return types.Software{}, false
	}
	return sw, true
}
