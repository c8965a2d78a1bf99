package dedup

import (
	"slices"
	"time"

	"github.com/hyperengineering/hostmerge/internal/types"
)

// merge folds the incoming observation into the stored record in place.
// Scalars are last-writer-wins on non-empty incoming values; set-valued
// fields are source-stripped then merged so stale per-source data does not
// linger; per-source security blobs are replaced wholesale.
func merge(stored, incoming *types.UnifiedHost) {
	tag := incoming.SourceTag()

	setString(&stored.PrimaryMACAddress, incoming.PrimaryMACAddress)
	setString(&stored.CloudInstanceID, incoming.CloudInstanceID)
	setString(&stored.Hostname, incoming.Hostname)
	setString(&stored.OSName, incoming.OSName)
	setString(&stored.OSPlatform, incoming.OSPlatform)
	setString(&stored.KernelVersion, incoming.KernelVersion)
	setString(&stored.LastBootTimestamp, incoming.LastBootTimestamp)
	setString(&stored.Manufacturer, incoming.Manufacturer)
	setString(&stored.ProductModel, incoming.ProductModel)
	setString(&stored.ProcessorInfo, incoming.ProcessorInfo)
	setString(&stored.PublicIP, incoming.PublicIP)
	setString(&stored.PrivateIP, incoming.PrivateIP)
	setString(&stored.DefaultGateway, incoming.DefaultGateway)
	if incoming.TotalMemoryMB != 0 {
		stored.TotalMemoryMB = incoming.TotalMemoryMB
	}

	if stored.SourceIDs == nil {
		stored.SourceIDs = map[string]string{}
	}
	for key, value := range incoming.SourceIDs {
		if value != "" {
			stored.SourceIDs[key] = value
		}
	}

	stored.NetworkInterfaces = mergeInterfaces(stored.NetworkInterfaces, incoming.NetworkInterfaces, tag)
	stored.InstalledSoftware = mergeSoftware(stored.InstalledSoftware, incoming.InstalledSoftware, tag)
	stored.CloudContext = mergeCloudContext(stored.CloudContext, incoming.CloudContext)

	if incoming.QualysSecurity != nil {
		stored.QualysSecurity = incoming.QualysSecurity
	}
	if incoming.CrowdStrikeSecurity != nil {
		stored.CrowdStrikeSecurity = incoming.CrowdStrikeSecurity
	}
	if incoming.TenableSecurity != nil {
		stored.TenableSecurity = incoming.TenableSecurity
	}

	stored.RecordLastUpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// mergeInterfaces drops stored interfaces previously reported by the
// incoming source, then merges the incoming view keyed by MAC: existing
// MACs union their sources and take non-empty incoming addresses, new MACs
// append verbatim.
func mergeInterfaces(stored, incoming []types.NetworkInterface, tag string) []types.NetworkInterface {
	var kept []types.NetworkInterface
	for _, iface := range stored {
		if !slices.Contains(iface.Sources, tag) {
			kept = append(kept, iface)
		}
	}

	for _, inc := range incoming {
		idx := -1
		for i := range kept {
			if kept[i].MACAddress == inc.MACAddress {
				idx = i
				break
			}
		}
		if idx < 0 {
			kept = append(kept, inc)
			continue
		}

		kept[idx].Sources = unionTags(kept[idx].Sources, inc.Sources)
		setString(&kept[idx].PrivateIPv4, inc.PrivateIPv4)
		setString(&kept[idx].PublicIPv4, inc.PublicIPv4)
		setString(&kept[idx].IPv6, inc.IPv6)
	}
	return kept
}

// mergeSoftware applies the same source-strip then merge pattern keyed by
// (vendor, product, version).
func mergeSoftware(stored, incoming []types.Software, tag string) []types.Software {
	var kept []types.Software
	for _, sw := range stored {
		if !slices.Contains(sw.Sources, tag) {
			kept = append(kept, sw)
		}
	}

	for _, inc := range incoming {
		idx := -1
		for i := range kept {
			if kept[i].Key() == inc.Key() {
				idx = i
				break
			}
		}
		if idx < 0 {
			kept = append(kept, inc)
			continue
		}
		kept[idx].Sources = unionTags(kept[idx].Sources, inc.Sources)
	}
	return kept
}

// mergeCloudContext shallow-merges field-by-field; incoming non-empty wins,
// stored survives otherwise. Stays nil when both sides are nil.
func mergeCloudContext(stored, incoming *types.CloudContext) *types.CloudContext {
	if incoming == nil {
		return stored
	}
	if stored == nil {
		merged := *incoming
		return &merged
	}

	setString(&stored.Provider, incoming.Provider)
	setString(&stored.AccountID, incoming.AccountID)
	setString(&stored.InstanceID, incoming.InstanceID)
	setString(&stored.InstanceType, incoming.InstanceType)
	setString(&stored.Region, incoming.Region)
	setString(&stored.AvailabilityZone, incoming.AvailabilityZone)
	setString(&stored.ImageID, incoming.ImageID)
	setString(&stored.VPCID, incoming.VPCID)
	setString(&stored.SubnetID, incoming.SubnetID)
	return stored
}

// unionTags appends tags from add that existing does not already carry,
// preserving first-seen order.
func unionTags(existing, add []string) []string {
	for _, tag := range add {
		if !slices.Contains(existing, tag) {
			existing = append(existing, tag)
		}
	}
	return existing
}
