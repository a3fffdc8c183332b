package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camsession/internal/adapter/engine"
	"camsession/internal/infra/config"
	"camsession/internal/infra/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Capture.MediaDir = filepath.Join(dir, "media")
	cfg.Capture.Synthetic = config.SyntheticConfig{Devices: 2, FPS: 50, Sizes: []string{"64x48"}}
	cfg.Catalog = config.CatalogConfig{Enabled: true, Path: filepath.Join(dir, "catalog.db")}
	cfg.Gateway = config.GatewayConfig{Enabled: true, Addr: "127.0.0.1:0"}
	cfg.Scheduler = config.SchedulerConfig{
		Enabled: true,
		Tasks: []config.ScheduledTaskConfig{
			{Name: "gc", Schedule: "1h", Action: "catalog_retention", MaxAge: 24 * time.Hour},
			{Name: "snap", Schedule: "@hourly", Action: "snapshot", DeviceID: "synthetic:0"},
		},
	}
	return cfg
}

func TestBuildDriver(t *testing.T) {
	drv, err := buildDriver(config.CaptureConfig{
		Backend:   "synthetic",
		Synthetic: config.SyntheticConfig{Devices: 2, FPS: 10, Sizes: []string{"32x24"}},
	})
	if err != nil {
		t.Fatalf("buildDriver: %v", err)
	}
	devices, err := drv.Devices()
	if err != nil || len(devices) != 2 {
		t.Fatalf("devices = %v, %v", devices, err)
	}

	if _, err := buildDriver(config.CaptureConfig{Backend: "betamax"}); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestInitRuntimeWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	log := logger.Discard()

	stack, err := initCapture(cfg, log)
	if err != nil {
		t.Fatalf("initCapture: %v", err)
	}
	defer stack.Close()

	rt, err := initRuntime(cfg, stack, log)
	if err != nil {
		t.Fatalf("initRuntime: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Catalog == nil || rt.Scheduler == nil || rt.Gateway == nil || rt.Metrics == nil {
		t.Fatalf("missing component: %+v", rt)
	}
	if tasks := rt.Scheduler.Tasks(); len(tasks) != 2 {
		t.Errorf("tasks = %v", tasks)
	}

	w := httptest.NewRecorder()
	rt.Gateway.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"cameras":0`) {
		t.Errorf("healthz = %d %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers not applied")
	}
}

func TestInitRuntimeRejectsRetentionWithoutCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Enabled = false
	log := logger.Discard()

	stack, err := initCapture(cfg, log)
	if err != nil {
		t.Fatalf("initCapture: %v", err)
	}
	defer stack.Close()

	if _, err := initRuntime(cfg, stack, log); err == nil {
		t.Fatal("retention task without a catalog should fail")
	}
}

func TestInitCaptureRejectsPortAudioWithoutTag(t *testing.T) {
	if engine.PortAudioSupported {
		t.Skip("built with portaudio")
	}
	cfg := testConfig(t)
	cfg.Capture.AudioBackend = "portaudio"
	_, err := initCapture(cfg, logger.Discard())
	if err == nil || !strings.Contains(err.Error(), "-tags portaudio") {
		t.Fatalf("err = %v, want build tag hint", err)
	}
}

func TestFlagValue(t *testing.T) {
	saved := os.Args
	defer func() { os.Args = saved }()

	os.Args = []string{"camsession", "snapshot", "--device", "synthetic:1", "--out=/tmp/a.jpg"}
	if got := flagValue("device"); got != "synthetic:1" {
		t.Errorf("device = %q", got)
	}
	if got := flagValue("out"); got != "/tmp/a.jpg" {
		t.Errorf("out = %q", got)
	}
	if got := flagValue("config"); got != "" {
		t.Errorf("config = %q", got)
	}
}
