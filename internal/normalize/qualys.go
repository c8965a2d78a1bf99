package normalize

import (
	"strings"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

// qualysList unwraps the Qualys "{field: {list: [...]}}" nesting.
func qualysList(raw gjson.Result, field string) []gjson.Result {
	return raw.Get(field + ".list").Array()
}

// Qualys normalizes one raw Qualys asset record.
func Qualys(raw gjson.Result) *types.UnifiedHost {
	if emptyRecord(raw) {
		return nil
	}

	agentInfo := raw.Get("agentInfo")
	ec2 := qualysEC2Info(raw)

	interfaces, primaryMAC, defaultGateway := qualysInterfaces(raw)

	security := &types.QualysSecurityInfo{
		AgentVersion:      agentInfo.Get("agentVersion").String(),
		LastCheckedIn:     agentInfo.Get("lastCheckedIn.$date").String(),
		LastVulnScan:      raw.Get("lastVulnScan.$date").String(),
		VulnerabilityQIDs: []int64{},
		OpenPorts:         []types.OpenPort{},
	}
	for _, vuln := range qualysList(raw, "vuln") {
		if qid := vuln.Get("HostAssetVuln.qid"); qid.Exists() && qid.Type != gjson.Null {
			security.VulnerabilityQIDs = append(security.VulnerabilityQIDs, qid.Int())
		}
	}
	for _, port := range qualysList(raw, "openPort") {
		entry := port.Get("HostAssetOpenPort")
		security.OpenPorts = append(security.OpenPorts, types.OpenPort{
			Port:     int(entry.Get("port").Int()),
			Protocol: entry.Get("protocol").String(),
		})
	}

	var software []types.Software
	for _, sw := range qualysList(raw, "software") {
		entry := sw.Get("HostAssetSoftware")
		if name := entry.Get("name").String(); name != "" {
			software = append(software, types.Software{
				Product: name,
				Version: entry.Get("version").String(),
				Sources: []string{types.SourceQualys},
			})
		}
	}

	var cloud *types.CloudContext
	if ec2.Exists() {
		cloud = &types.CloudContext{
			Provider:         raw.Get("cloudProvider").String(),
			AccountID:        ec2.Get("accountId").String(),
			InstanceID:       ec2.Get("instanceId").String(),
			InstanceType:     ec2.Get("instanceType").String(),
			Region:           ec2.Get("region").String(),
			AvailabilityZone: ec2.Get("availabilityZone").String(),
			ImageID:          ec2.Get("imageId").String(),
			VPCID:            ec2.Get("vpcId").String(),
			SubnetID:         ec2.Get("subnetId").String(),
		}
	}

	var processorInfo string
	if processors := qualysList(raw, "processor"); len(processors) > 0 {
		processorInfo = processors[0].Get("HostAssetProcessor.name").String()
	}

	var sourceID string
	if id := raw.Get("id"); id.Exists() && id.Type != gjson.Null {
		sourceID = id.String()
	}

	now := nowUTC()
	return &types.UnifiedHost{
		PrimaryMACAddress:   primaryMAC,
		CloudInstanceID:     ec2.Get("instanceId").String(),
		SourceIDs:           map[string]string{types.QualysIDKey: sourceID},
		Hostname:            raw.Get("name").String(),
		OSName:              raw.Get("os").String(),
		OSPlatform:          agentInfo.Get("platform").String(),
		LastBootTimestamp:   raw.Get("lastSystemBoot").String(),
		Manufacturer:        raw.Get("manufacturer").String(),
		ProductModel:        raw.Get("model").String(),
		ProcessorInfo:       processorInfo,
		TotalMemoryMB:       raw.Get("totalMemory").Int(),
		PublicIP:            ec2.Get("publicIpAddress").String(),
		PrivateIP:           raw.Get("address").String(),
		DefaultGateway:      defaultGateway,
		NetworkInterfaces:   interfaces,
		CloudContext:        cloud,
		QualysSecurity:      security,
		InstalledSoftware:   software,
		RecordCreatedAt:     now,
		RecordLastUpdatedAt: now,
	}
}

// qualysEC2Info finds the Ec2AssetSourceSimple element in sourceInfo.list.
func qualysEC2Info(raw gjson.Result) gjson.Result {
	for _, src := range qualysList(raw, "sourceInfo") {
		if ec2 := src.Get("Ec2AssetSourceSimple"); ec2.Exists() {
			return ec2
		}
	}
	return gjson.Result{}
}

// qualysInterfaces groups networkInterface.list entries by MAC address,
// classifying each address as IPv6, private IPv4, or public IPv4. Entries
// without a MAC but with a dotted-quad address contribute a standalone
// public IP, assigned to the primary MAC's group when that group has no
// public IPv4 of its own.
func qualysInterfaces(raw gjson.Result) (interfaces []types.NetworkInterface, primaryMAC, defaultGateway string) {
	entries := qualysList(raw, "networkInterface")

	for _, entry := range entries {
		if mac := entry.Get("HostAssetInterface.macAddress").String(); mac != "" {
			primaryMAC = mac
			break
		}
	}

	grouped := make(map[string]*types.NetworkInterface)
	var order []string
	var publicIPFromList string

	for _, entry := range entries {
		iface := entry.Get("HostAssetInterface")
		mac := iface.Get("macAddress").String()
		address := iface.Get("address").String()

		if mac == "" && address != "" && strings.Contains(address, ".") {
			// The MAC-less dotted-quad entry is the public IP record.
			publicIPFromList = address
			continue
		}
		if mac == "" {
			continue
		}

		group, ok := grouped[mac]
		if !ok {
			group = &types.NetworkInterface{
				MACAddress: mac,
				Sources:    []string{types.SourceQualys},
			}
			grouped[mac] = group
			order = append(order, mac)
		}

		if gw := iface.Get("gatewayAddress").String(); gw != "" {
			defaultGateway = gw
		}

		switch {
		case address == "":
		case strings.Contains(address, ":"):
			group.IPv6 = address
		case isPrivateIPv4(address):
			group.PrivateIPv4 = address
		default:
			group.PublicIPv4 = address
		}
	}

	if publicIPFromList != "" && primaryMAC != "" {
		if group, ok := grouped[primaryMAC]; ok && group.PublicIPv4 == "" {
			group.PublicIPv4 = publicIPFromList
		}
	}

	for _, mac := range order {
		interfaces = append(interfaces, *grouped[mac])
	}
	return interfaces, primaryMAC, defaultGateway
}
