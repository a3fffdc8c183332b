//go:build mdns

package main

import (
	"log/slog"

	"camsession/internal/usecase/discovery"
)

func buildDiscoverer(logger *slog.Logger) discovery.Discoverer {
	return discovery.NewMDNSDiscoverer(version, logger)
}
