package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Capture.Backend != "synthetic" {
		t.Errorf("Capture.Backend = %q, want %q", cfg.Capture.Backend, "synthetic")
	}
	if cfg.Capture.ResolutionPreset != "veryHigh" {
		t.Errorf("ResolutionPreset = %q, want %q", cfg.Capture.ResolutionPreset, "veryHigh")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if cfg.Breaker.MaxFailures != 3 {
		t.Errorf("Breaker.MaxFailures = %d, want 3", cfg.Breaker.MaxFailures)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Renderer.MaxFPS != 15 {
		t.Errorf("expected defaults, got MaxFPS=%v", cfg.Renderer.MaxFPS)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
capture:
  backend: synthetic
  resolution_preset: high
  media_dir: /var/lib/camsession
  synthetic:
    devices: 2
    fps: 10
    sizes: ["320x240"]
gateway:
  enabled: true
  addr: "0.0.0.0:9000"
  auth:
    type: static
    tokens:
      - name: ops
        token: s3cret
scheduler:
  enabled: true
  tasks:
    - name: hourly
      schedule: "1h"
      action: snapshot
      device_id: synthetic:0
logger:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.ResolutionPreset != "high" {
		t.Errorf("ResolutionPreset = %q, want high", cfg.Capture.ResolutionPreset)
	}
	if cfg.Capture.Synthetic.Devices != 2 || cfg.Capture.Synthetic.FPS != 10 {
		t.Errorf("Synthetic = %+v", cfg.Capture.Synthetic)
	}
	if len(cfg.Gateway.Auth.Tokens) != 1 || cfg.Gateway.Auth.Tokens[0].Token != "s3cret" {
		t.Errorf("Tokens mismatch: %+v", cfg.Gateway.Auth.Tokens)
	}
	if len(cfg.Scheduler.Tasks) != 1 || cfg.Scheduler.Tasks[0].DeviceID != "synthetic:0" {
		t.Errorf("Tasks mismatch: %+v", cfg.Scheduler.Tasks)
	}
	// Unset sections keep their defaults.
	if cfg.Renderer.JPEGQuality != 80 {
		t.Errorf("JPEGQuality = %d, want 80", cfg.Renderer.JPEGQuality)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("capture: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadRunsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  backend: v4l\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("error type = %T, want *ValidationError", err)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insecure.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for insecure permissions")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAMSESSION_LOGGER_LEVEL", "debug")
	t.Setenv("CAMSESSION_CAPTURE_BACKEND", "mediadevices")
	t.Setenv("CAMSESSION_CAPTURE_PRESET", "low")
	t.Setenv("CAMSESSION_CAPTURE_AUDIO", "true")
	t.Setenv("CAMSESSION_MEDIA_DIR", "/tmp/media")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Capture.Backend != "mediadevices" {
		t.Errorf("Backend = %q, want mediadevices", cfg.Capture.Backend)
	}
	if cfg.Capture.ResolutionPreset != "low" {
		t.Errorf("ResolutionPreset = %q, want low", cfg.Capture.ResolutionPreset)
	}
	if !cfg.Capture.EnableAudio {
		t.Error("EnableAudio should be true")
	}
	if cfg.Capture.MediaDir != "/tmp/media" {
		t.Errorf("MediaDir = %q", cfg.Capture.MediaDir)
	}
}

func TestApplyEnvOverridesTracer(t *testing.T) {
	t.Setenv("CAMSESSION_TRACER_ENABLED", "true")
	t.Setenv("CAMSESSION_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
}

func TestApplyEnvOverridesGatewayTokens(t *testing.T) {
	t.Setenv("CAMSESSION_GATEWAY_ENABLED", "true")
	t.Setenv("CAMSESSION_GATEWAY_TOKENS", "ops:abc, bad, ui:def")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Gateway.Enabled {
		t.Error("gateway should be enabled")
	}
	if cfg.Gateway.Auth.Type != "static" {
		t.Errorf("Auth.Type = %q, want static", cfg.Gateway.Auth.Type)
	}
	if len(cfg.Gateway.Auth.Tokens) != 2 {
		t.Fatalf("Tokens = %+v, want 2 entries", cfg.Gateway.Auth.Tokens)
	}
	if cfg.Gateway.Auth.Tokens[1].Name != "ui" || cfg.Gateway.Auth.Tokens[1].Token != "def" {
		t.Errorf("Tokens[1] = %+v", cfg.Gateway.Auth.Tokens[1])
	}
}

func TestApplyEnvOverridesIgnoresBadValues(t *testing.T) {
	t.Setenv("CAMSESSION_RENDERER_MAX_FPS", "-3")
	t.Setenv("CAMSESSION_BREAKER_TIMEOUT", "soon")
	t.Setenv("CAMSESSION_CAPTURE_AUDIO", "maybe")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Renderer.MaxFPS != 15 {
		t.Errorf("MaxFPS = %v, want 15", cfg.Renderer.MaxFPS)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("Breaker.Timeout = %v, want 30s", cfg.Breaker.Timeout)
	}
	if cfg.Capture.EnableAudio {
		t.Error("EnableAudio should stay false")
	}
}
