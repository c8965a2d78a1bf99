package normalize

import (
	"testing"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/tidwall/gjson"
)

const crowdstrikeDevice = `{
	"device_id": "abcdef0123456789",
	"hostname": "web-01",
	"os_version": "Amazon Linux 2",
	"platform_name": "Linux",
	"kernel_version": "5.10.178-162.673.amzn2.x86_64",
	"system_manufacturer": "Amazon EC2",
	"system_product_name": "t3.medium",
	"mac_address": "02-ab-cd-ef-00-01",
	"local_ip": "10.0.1.5",
	"external_ip": "54.12.34.56",
	"default_gateway_ip": "10.0.1.1",
	"agent_version": "6.58.17212.0",
	"status": "normal",
	"first_seen": "2023-11-01T00:00:00Z",
	"last_seen": "2024-02-01T12:00:00Z",
	"service_provider": "AWS_EC2_V2",
	"service_provider_account_id": "999988887777",
	"instance_id": "i-0abc123",
	"zone_group": "us-east-1a",
	"device_policies": {
		"prevention": {"policy_type": "prevention", "policy_id": "pol-1"},
		"sensor_update": {"policy_type": "sensor-update", "policy_id": "pol-2"}
	}
}`

func TestCrowdStrikeNormalization(t *testing.T) {
	host := CrowdStrike(gjson.Parse(crowdstrikeDevice))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	if host.SourceIDs[types.CrowdStrikeIDKey] != "abcdef0123456789" {
		t.Errorf("source id: got %q", host.SourceIDs[types.CrowdStrikeIDKey])
	}
	// Dash-separated MACs are rewritten to colon form.
	if host.PrimaryMACAddress != "02:ab:cd:ef:00:01" {
		t.Errorf("primary mac: got %q", host.PrimaryMACAddress)
	}
	if host.KernelVersion != "5.10.178-162.673.amzn2.x86_64" {
		t.Errorf("kernel: got %q", host.KernelVersion)
	}
	if host.PublicIP != "54.12.34.56" || host.PrivateIP != "10.0.1.5" {
		t.Errorf("ips: got public=%q private=%q", host.PublicIP, host.PrivateIP)
	}
	if host.DefaultGateway != "10.0.1.1" {
		t.Errorf("gateway: got %q", host.DefaultGateway)
	}

	if len(host.NetworkInterfaces) != 1 {
		t.Fatalf("expected 1 synthesized interface, got %d", len(host.NetworkInterfaces))
	}
	iface := host.NetworkInterfaces[0]
	if iface.MACAddress != "02:ab:cd:ef:00:01" || iface.PrivateIPv4 != "10.0.1.5" {
		t.Errorf("interface: got %+v", iface)
	}
}

func TestCrowdStrikeCloudContext(t *testing.T) {
	host := CrowdStrike(gjson.Parse(crowdstrikeDevice))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	cloud := host.CloudContext
	if cloud == nil {
		t.Fatal("expected cloud context")
	}
	if cloud.Provider != "AWS" {
		t.Errorf("AWS_EC2_V2 must map to AWS, got %q", cloud.Provider)
	}
	if cloud.InstanceID != "i-0abc123" || cloud.AccountID != "999988887777" {
		t.Errorf("cloud: got %+v", cloud)
	}
	if host.CloudInstanceID != "i-0abc123" {
		t.Errorf("cloud instance id: got %q", host.CloudInstanceID)
	}
}

func TestCrowdStrikePolicies(t *testing.T) {
	host := CrowdStrike(gjson.Parse(crowdstrikeDevice))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	sec := host.CrowdStrikeSecurity
	if sec == nil {
		t.Fatal("expected crowdstrike security blob")
	}
	if sec.Policies["prevention"] != "pol-1" || sec.Policies["sensor_update"] != "pol-2" {
		t.Errorf("policies: got %v", sec.Policies)
	}
	if sec.Status != "normal" || sec.LastSeen != "2024-02-01T12:00:00Z" {
		t.Errorf("security: got %+v", sec)
	}
}

func TestCrowdStrikeNoNetworkData(t *testing.T) {
	host := CrowdStrike(gjson.Parse(`{"device_id": "d1", "hostname": "bare"}`))
	if host == nil {
		t.Fatal("expected host, got nil")
	}

	if len(host.NetworkInterfaces) != 0 {
		t.Errorf("no mac and no local ip must synthesize no interface, got %v",
			host.NetworkInterfaces)
	}
	if host.CloudContext != nil {
		t.Error("no service provider means no cloud context")
	}
}

func TestCrowdStrikeEmptyRecordIsNil(t *testing.T) {
	if host := CrowdStrike(gjson.Parse("{}")); host != nil {
		t.Errorf("expected nil, got %+v", host)
	}
}
