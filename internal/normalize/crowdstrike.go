package normalize

import (
	"strings"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

// CrowdStrike normalizes one raw CrowdStrike device record.
func CrowdStrike(raw gjson.Result) *types.UnifiedHost {
	if emptyRecord(raw) {
		return nil
	}

	// CrowdStrike reports MACs with dash separators.
	mac := strings.ReplaceAll(raw.Get("mac_address").String(), "-", ":")
	localIP := raw.Get("local_ip").String()

	policies := map[string]string{}
	raw.Get("device_policies").ForEach(func(policyType, policy gjson.Result) bool {
		if id := policy.Get("policy_id").String(); id != "" {
			policies[policyType.String()] = id
		}
		return true
	})

	security := &types.CrowdStrikeSecurityInfo{
		AgentVersion: raw.Get("agent_version").String(),
		Status:       raw.Get("status").String(),
		FirstSeen:    raw.Get("first_seen").String(),
		LastSeen:     raw.Get("last_seen").String(),
		Policies:     policies,
	}

	var cloud *types.CloudContext
	if provider := raw.Get("service_provider").String(); provider != "" {
		if provider == "AWS_EC2_V2" {
			provider = "AWS"
		}
		cloud = &types.CloudContext{
			Provider:         provider,
			AccountID:        raw.Get("service_provider_account_id").String(),
			InstanceID:       raw.Get("instance_id").String(),
			AvailabilityZone: raw.Get("zone_group").String(),
		}
	}

	var interfaces []types.NetworkInterface
	if mac != "" || localIP != "" {
		interfaces = append(interfaces, types.NetworkInterface{
			MACAddress:  mac,
			PrivateIPv4: localIP,
			Sources:     []string{types.SourceCrowdStrike},
		})
	}

	now := nowUTC()
	return &types.UnifiedHost{
		PrimaryMACAddress:   mac,
		CloudInstanceID:     raw.Get("instance_id").String(),
		SourceIDs:           map[string]string{types.CrowdStrikeIDKey: raw.Get("device_id").String()},
		Hostname:            raw.Get("hostname").String(),
		OSName:              raw.Get("os_version").String(),
		OSPlatform:          raw.Get("platform_name").String(),
		KernelVersion:       raw.Get("kernel_version").String(),
		Manufacturer:        raw.Get("system_manufacturer").String(),
		ProductModel:        raw.Get("system_product_name").String(),
		PublicIP:            raw.Get("external_ip").String(),
		PrivateIP:           localIP,
		DefaultGateway:      raw.Get("default_gateway_ip").String(),
		NetworkInterfaces:   interfaces,
		CloudContext:        cloud,
		CrowdStrikeSecurity: security,
		RecordCreatedAt:     now,
		RecordLastUpdatedAt: now,
	}
}
