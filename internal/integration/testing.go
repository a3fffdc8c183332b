// Package integration holds end-to-end tests against real capture hardware.
// They run only with the integration build tag and a configured device.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"camsession/internal/adapter/engine"
	"camsession/internal/domain"
)

// Config holds integration test configuration from environment.
type Config struct {
	Backend     string // "mediadevices" or "v4l2"
	Device      string
	MediaDir    string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment.
func LoadConfig() *Config {
	backend := os.Getenv("CAMSESSION_E2E_BACKEND")
	if backend == "" {
		backend = "v4l2"
	}
	return &Config{
		Backend:     backend,
		Device:      os.Getenv("CAMSESSION_E2E_DEVICE"),
		MediaDir:    os.Getenv("CAMSESSION_E2E_MEDIA_DIR"),
		TestTimeout: 60 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// Driver builds the capture driver for the configured backend.
func (c *Config) Driver() (engine.Driver, error) {
	if c.Backend == "mediadevices" {
		return engine.NewMediaDevicesDriver(), nil
	}
	return engine.NewV4L2Driver()
}

// Preset picks a modest preset so cheap webcams can serve it.
func (c *Config) Preset() domain.ResolutionPreset { return domain.PresetMedium }

// SkipIfNoDevice skips the test when no capture device is configured.
func SkipIfNoDevice(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.Device == "" {
		t.Skip("Skipping hardware test: CAMSESSION_E2E_DEVICE not set")
	}
}

// SkipIfShort skips integration tests in short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests.
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
