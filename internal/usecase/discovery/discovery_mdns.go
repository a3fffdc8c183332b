//go:build mdns

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const scanTimeout = 5 * time.Second

// MDNSDiscoverer uses mDNS/DNS-SD.
type MDNSDiscoverer struct {
	version string
	logger  *slog.Logger
}

// NewMDNSDiscoverer creates a new MDNSDiscoverer.
func NewMDNSDiscoverer(version string, logger *slog.Logger) *MDNSDiscoverer {
	return &MDNSDiscoverer{version: version, logger: logger}
}

// Scan browses for camsession services for a few seconds.
func (d *MDNSDiscoverer) Scan(ctx context.Context) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var peers []Peer
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			p := entryToPeer(entry)
			mu.Lock()
			peers = append(peers, p)
			mu.Unlock()
			d.logger.Debug("mdns discovered peer", "instance", p.Instance, "address", p.Address)
		}
	}()

	if err := resolver.Browse(scanCtx, serviceType, domainName, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	// The resolver closes entries once scanCtx ends.
	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return append([]Peer(nil), peers...), nil
}

// Advertise registers this instance until ctx is cancelled.
func (d *MDNSDiscoverer) Advertise(ctx context.Context, name string, port int, devices []string) error {
	server, err := zeroconf.Register(name, serviceType, domainName, port, txtRecords(d.version, devices), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	d.logger.Info("mdns advertising", "name", name, "port", port, "devices", len(devices))
	<-ctx.Done()
	server.Shutdown()
	return nil
}

func entryToPeer(entry *zeroconf.ServiceEntry) Peer {
	var address string
	if len(entry.AddrIPv4) > 0 {
		address = fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port)
	} else if len(entry.AddrIPv6) > 0 {
		address = fmt.Sprintf("[%s]:%d", entry.AddrIPv6[0], entry.Port)
	}
	meta := parseTXTRecords(entry.Text)
	return Peer{
		Instance: entry.ServiceRecord.Instance,
		Address:  address,
		Version:  meta["version"],
		Devices:  splitDevices(meta["devices"]),
	}
}
