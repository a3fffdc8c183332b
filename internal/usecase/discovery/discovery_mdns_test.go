//go:build mdns

package discovery

import (
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestEntryToPeer(t *testing.T) {
	entry := zeroconf.NewServiceEntry("kitchen", serviceType, domainName)
	entry.Port = 8790
	entry.Text = []string{"version=dev", "devices=synthetic:0"}
	entry.AddrIPv4 = append(entry.AddrIPv4, []byte{192, 168, 1, 10})

	p := entryToPeer(entry)
	if p.Instance != "kitchen" {
		t.Errorf("Instance = %q", p.Instance)
	}
	if p.Address != "192.168.1.10:8790" {
		t.Errorf("Address = %q", p.Address)
	}
	if p.Version != "dev" || len(p.Devices) != 1 {
		t.Errorf("peer = %+v", p)
	}
}
