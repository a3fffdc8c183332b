//go:build !mdns

package main

import (
	"log/slog"

	"camsession/internal/usecase/discovery"
)

func buildDiscoverer(_ *slog.Logger) discovery.Discoverer {
	return discovery.NewNoopDiscoverer()
}
