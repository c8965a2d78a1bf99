package normalize

import (
	"testing"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

const qualysAsset = `{
	"id": 12345,
	"name": "web-01",
	"os": "Ubuntu Linux 22.04",
	"lastSystemBoot": "2024-01-10T08:00:00Z",
	"manufacturer": "Amazon EC2",
	"model": "t3.medium",
	"totalMemory": 3933,
	"address": "10.0.1.5",
	"cloudProvider": "AWS",
	"agentInfo": {
		"agentVersion": "4.8.0.31",
		"platform": "Linux",
		"lastCheckedIn": {"$date": "2024-02-01T12:00:00Z"}
	},
	"lastVulnScan": {"$date": "2024-01-28T03:00:00Z"},
	"sourceInfo": {"list": [
		{"AssetSourceSimple": {"id": 1}},
		{"Ec2AssetSourceSimple": {
			"instanceId": "i-0abc123",
			"accountId": "999988887777",
			"instanceType": "t3.medium",
			"region": "us-east-1",
			"availabilityZone": "us-east-1a",
			"imageId": "ami-111",
			"vpcId": "vpc-222",
			"subnetId": "subnet-333",
			"publicIpAddress": "54.12.34.56"
		}}
	]},
	"networkInterface": {"list": [
		{"HostAssetInterface": {"macAddress": "02:ab:cd:ef:00:01", "address": "10.0.1.5", "gatewayAddress": "10.0.1.1"}},
		{"HostAssetInterface": {"macAddress": "02:ab:cd:ef:00:01", "address": "fe80::1"}},
		{"HostAssetInterface": {"address": "54.12.34.56"}}
	]},
	"processor": {"list": [
		{"HostAssetProcessor": {"name": "Intel Xeon Platinum 8175M", "speed": 2500}}
	]},
	"openPort": {"list": [
		{"HostAssetOpenPort": {"port": 22, "protocol": "TCP"}},
		{"HostAssetOpenPort": {"port": 443, "protocol": "TCP"}}
	]},
	"vuln": {"list": [
		{"HostAssetVuln": {"qid": 11827}},
		{"HostAssetVuln": {"qid": 38739}}
	]},
	"software": {"list": [
		{"HostAssetSoftware": {"name": "openssl", "version": "3.0.2"}},
		{"HostAssetSoftware": {"name": "", "version": "1.0"}}
	]}
}`

func TestQualysNormalization(t *testing.T) {
	host := Qualys(gjson.Parse(qualysAsset))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	if host.SourceIDs[types.QualysIDKey] != "12345" {
		t.Errorf("source id: got %q", host.SourceIDs[types.QualysIDKey])
	}
	if host.Hostname != "web-01" {
		t.Errorf("hostname: got %q", host.Hostname)
	}
	if host.PrimaryMACAddress != "02:ab:cd:ef:00:01" {
		t.Errorf("primary mac: got %q", host.PrimaryMACAddress)
	}
	if host.CloudInstanceID != "i-0abc123" {
		t.Errorf("cloud instance id: got %q", host.CloudInstanceID)
	}
	if host.OSPlatform != "Linux" {
		t.Errorf("os platform: got %q", host.OSPlatform)
	}
	if host.ProcessorInfo != "Intel Xeon Platinum 8175M" {
		t.Errorf("processor: got %q", host.ProcessorInfo)
	}
	if host.TotalMemoryMB != 3933 {
		t.Errorf("memory: got %d", host.TotalMemoryMB)
	}
	if host.PublicIP != "54.12.34.56" {
		t.Errorf("public ip: got %q", host.PublicIP)
	}
	if host.PrivateIP != "10.0.1.5" {
		t.Errorf("private ip: got %q", host.PrivateIP)
	}
	if host.DefaultGateway != "10.0.1.1" {
		t.Errorf("gateway: got %q", host.DefaultGateway)
	}
}

func TestQualysInterfaceGrouping(t *testing.T) {
	host := Qualys(gjson.Parse(qualysAsset))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	if len(host.NetworkInterfaces) != 1 {
		t.Fatalf("expected 1 grouped interface, got %d", len(host.NetworkInterfaces))
	}

	iface := host.NetworkInterfaces[0]
	if iface.MACAddress != "02:ab:cd:ef:00:01" {
		t.Errorf("mac: got %q", iface.MACAddress)
	}
	if iface.PrivateIPv4 != "10.0.1.5" {
		t.Errorf("private ipv4: got %q", iface.PrivateIPv4)
	}
	if iface.IPv6 != "fe80::1" {
		t.Errorf("ipv6: got %q", iface.IPv6)
	}
	// The MAC-less dotted-quad entry lands on the primary MAC's group.
	if iface.PublicIPv4 != "54.12.34.56" {
		t.Errorf("public ipv4: got %q", iface.PublicIPv4)
	}
	if len(iface.Sources) != 1 || iface.Sources[0] != types.SourceQualys {
		t.Errorf("sources: got %v", iface.Sources)
	}
}

func TestQualysSecurityAndSoftware(t *testing.T) {
	host := Qualys(gjson.Parse(qualysAsset))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	sec := host.QualysSecurity
	if sec == nil {
		t.Fatal("expected qualys security blob")
	}
	if sec.AgentVersion != "4.8.0.31" {
		t.Errorf("agent version: got %q", sec.AgentVersion)
	}
	if sec.LastCheckedIn != "2024-02-01T12:00:00Z" {
		t.Errorf("last checked in: got %q", sec.LastCheckedIn)
	}
	if len(sec.VulnerabilityQIDs) != 2 || sec.VulnerabilityQIDs[0] != 11827 {
		t.Errorf("qids: got %v", sec.VulnerabilityQIDs)
	}
	if len(sec.OpenPorts) != 2 || sec.OpenPorts[1].Port != 443 {
		t.Errorf("open ports: got %v", sec.OpenPorts)
	}

	// Nameless software entries are dropped.
	if len(host.InstalledSoftware) != 1 {
		t.Fatalf("expected 1 software entry, got %d", len(host.InstalledSoftware))
	}
	if host.InstalledSoftware[0].Product != "openssl" {
		t.Errorf("software product: got %q", host.InstalledSoftware[0].Product)
	}
}

func TestQualysSparseRecord(t *testing.T) {
	host := Qualys(gjson.Parse(`{"id": 7}`))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	if host.SourceIDs[types.QualysIDKey] != "7" {
		t.Errorf("source id: got %q", host.SourceIDs[types.QualysIDKey])
	}
	if host.Hostname != "" || host.PrimaryMACAddress != "" || host.CloudInstanceID != "" {
		t.Error("missing fields must normalize to empty strings")
	}
	if host.CloudContext != nil {
		t.Error("no EC2 source info means no cloud context")
	}
	if len(host.NetworkInterfaces) != 0 {
		t.Errorf("expected no interfaces, got %v", host.NetworkInterfaces)
	}
	if host.QualysSecurity == nil {
		t.Error("security blob is always present for qualys records")
	}
}

func TestQualysEmptyRecordIsNil(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		if host := Qualys(gjson.Parse(raw)); host != nil {
			t.Errorf("raw %q: expected nil, got %+v", raw, host)
		}
	}
}

func TestHostDispatch(t *testing.T) {
	raw := gjson.Parse(`{"id": 1, "name": "x"}`)

	if host := Host(raw, types.SourceQualys); host == nil {
		t.Error("qualys dispatch returned nil")
	}
	if host := Host(raw, "nessus"); host != nil {
		t.Error("unknown source must return nil")
	}
}
