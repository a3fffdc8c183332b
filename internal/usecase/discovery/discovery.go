// Package discovery advertises camsession instances on the local network
// and finds other ones.
package discovery

import (
	"context"
	"strings"
)

const (
	serviceType = "_camsession._tcp"
	domainName  = "local."
)

// Peer is a camsession instance found on the network.
type Peer struct {
	Instance string   `json:"instance"`
	Address  string   `json:"address"`
	Version  string   `json:"version,omitempty"`
	Devices  []string `json:"devices,omitempty"`
}

// Discoverer advertises this instance and scans for others.
type Discoverer interface {
	Scan(ctx context.Context) ([]Peer, error)
	// Advertise blocks until ctx is cancelled.
	Advertise(ctx context.Context, name string, port int, devices []string) error
}

// NoopDiscoverer is used when mDNS support is not compiled in.
type NoopDiscoverer struct{}

func NewNoopDiscoverer() *NoopDiscoverer { return &NoopDiscoverer{} }

func (NoopDiscoverer) Scan(context.Context) ([]Peer, error) { return nil, nil }

func (NoopDiscoverer) Advertise(ctx context.Context, _ string, _ int, _ []string) error {
	<-ctx.Done()
	return nil
}

// txtRecords encodes the advertised metadata.
func txtRecords(version string, devices []string) []string {
	txt := []string{"version=" + version}
	if len(devices) > 0 {
		txt = append(txt, "devices="+strings.Join(devices, ","))
	}
	return txt
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		k, v, ok := strings.Cut(t, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

func splitDevices(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
