//go:build integration

package integration

import (
	"context"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"camsession/internal/adapter/engine"
	"camsession/internal/adapter/renderer"
	"camsession/internal/domain"
	"camsession/internal/infra/config"
	"camsession/internal/infra/logger"
	"camsession/internal/usecase/camera"
	"camsession/internal/usecase/eventbus"
	"camsession/internal/usecase/pending"
)

type hardware struct {
	cameras  *camera.Manager
	renderer *renderer.Renderer
	mediaDir string
}

func setup(t *testing.T) (*Config, *hardware) {
	t.Helper()
	SkipIfShort(t)
	cfg := LoadConfig()
	SkipIfNoDevice(t, cfg)

	drv, err := cfg.Driver()
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	mediaDir := cfg.MediaDir
	if mediaDir == "" {
		mediaDir = t.TempDir()
	}
	log := logger.Discard()
	platform := engine.NewPlatform(drv, engine.Options{AudioBackend: "none", JPEGQuality: 85}, log)
	rend := renderer.New(config.RendererConfig{MaxFPS: 30, Burst: 1, JPEGQuality: 70}, log)
	bus := eventbus.New(log)
	hw := &hardware{
		cameras:  camera.NewManager(mediaDir, platform, rend, bus, log),
		renderer: rend,
		mediaDir: mediaDir,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hw.cameras.Close(ctx)
		rend.Close()
		bus.Close()
	})
	return cfg, hw
}

func (hw *hardware) open(t *testing.T, ctx context.Context, cfg *Config) *camera.Camera {
	t.Helper()
	fut := pending.NewFuture()
	hw.cameras.Create(ctx, cfg.Device, false, cfg.Preset(), fut)
	if _, err := fut.Wait(ctx); err != nil {
		t.Fatalf("create %s: %v", cfg.Device, err)
	}
	cam, err := hw.cameras.Get(cfg.Device)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return cam
}

func await(t *testing.T, ctx context.Context, what string, call func(domain.ResultSink)) any {
	t.Helper()
	fut := pending.NewFuture()
	call(fut)
	v, err := fut.Wait(ctx)
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
	return v
}

func TestE2E_DeviceIsListed(t *testing.T) {
	cfg, hw := setup(t)
	devices, err := hw.cameras.AvailableCameras()
	if err != nil {
		t.Fatalf("AvailableCameras: %v", err)
	}
	for _, d := range devices {
		if d.ID == cfg.Device {
			return
		}
	}
	t.Fatalf("device %q not among %v", cfg.Device, devices)
}

func TestE2E_PreviewAndPicture(t *testing.T) {
	cfg, hw := setup(t)
	ctx := NewTestContext(t, cfg.TestTimeout)
	cam := hw.open(t, ctx, cfg)

	size, ok := await(t, ctx, "preview", func(s domain.ResultSink) { cam.StartPreview(ctx, s) }).(domain.PreviewSize)
	if !ok || size.Width <= 0 || size.Height <= 0 {
		t.Fatalf("preview size = %#v", size)
	}

	frames, unsubscribe, err := hw.renderer.Subscribe(cfg.Device)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()
	select {
	case frame := <-frames:
		if len(frame) < 2 || frame[0] != 0xff || frame[1] != 0xd8 {
			t.Fatal("preview frame is not a JPEG")
		}
	case <-ctx.Done():
		t.Fatal("no preview frame")
	}

	path, _ := await(t, ctx, "picture", func(s domain.ResultSink) { cam.TakePicture(ctx, "", s) }).(string)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open picture: %v", err)
	}
	defer f.Close()
	if _, err := jpeg.DecodeConfig(f); err != nil {
		t.Fatalf("picture is not a JPEG: %v", err)
	}
}

func TestE2E_RecordClip(t *testing.T) {
	cfg, hw := setup(t)
	if cfg.SkipSlow {
		t.Skip("SKIP_SLOW_TESTS set")
	}
	ctx := NewTestContext(t, cfg.TestTimeout)
	cam := hw.open(t, ctx, cfg)

	out := filepath.Join(hw.mediaDir, "e2e.mjpeg")
	await(t, ctx, "start record", func(s domain.ResultSink) { cam.StartRecord(ctx, out, 0, s) })
	time.Sleep(2 * time.Second)
	path, _ := await(t, ctx, "stop record", func(s domain.ResultSink) { cam.StopRecord(ctx, s) }).(string)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat clip: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("clip is empty")
	}
}
