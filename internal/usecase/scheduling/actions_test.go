package scheduling

import (
	"context"
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
	"camsession/internal/usecase/pending"
)

type fakeCatalog struct {
	expired []domain.MediaRecord
	cutoff  time.Time
}

func (c *fakeCatalog) Record(context.Context, domain.MediaRecord) (int64, error) { return 0, nil }
func (c *fakeCatalog) List(context.Context, domain.MediaFilter) ([]domain.MediaRecord, error) {
	return nil, nil
}
func (c *fakeCatalog) Close() error { return nil }

func (c *fakeCatalog) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]domain.MediaRecord, error) {
	c.cutoff = cutoff
	return c.expired, nil
}

func TestRetentionActionRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jpg")
	if err := os.WriteFile(old, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	cat := &fakeCatalog{expired: []domain.MediaRecord{
		{Path: old},
		{Path: filepath.Join(dir, "already-gone.jpg")},
	}}

	run := RetentionAction(cat, logger.Discard())
	if err := run(context.Background(), ScheduledTask{Name: "gc", MaxAge: time.Hour}); err != nil {
		t.Fatalf("retention: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expired file still present: %v", err)
	}
	if d := time.Since(cat.cutoff); d < time.Hour || d > time.Hour+time.Minute {
		t.Errorf("cutoff %v ago", d)
	}
}

func TestRetentionActionNeedsMaxAge(t *testing.T) {
	run := RetentionAction(&fakeCatalog{}, logger.Discard())
	err := run(context.Background(), ScheduledTask{Name: "gc"})
	if domain.ErrorCodeOf(err) != domain.CodeScheduleInvalid {
		t.Errorf("err = %v", err)
	}
}

func TestSnapshotAction(t *testing.T) {
	log := logger.Discard()
	drv, err := engine.NewSyntheticDriver(1, 100, []string{"64x48"})
	if err != nil {
		t.Fatal(err)
	}
	platform := engine.NewPlatform(drv, engine.Options{AudioBackend: "none", JPEGQuality: 80}, log)
	mediaDir := t.TempDir()
	rend := renderer.New(config.RendererConfig{}, log)
	defer rend.Close()
	cameras := camera.NewManager(mediaDir, platform, rend, nil, log)
	defer cameras.Close(context.Background())

	run := SnapshotAction(cameras)
	task := ScheduledTask{Name: "snap", DeviceID: "synthetic:0"}
	if err := run(context.Background(), task); domain.ErrorCodeOf(err) != domain.CodeCameraNotFound {
		t.Fatalf("snapshot without camera: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fut := pending.NewFuture()
	cameras.Create(ctx, "synthetic:0", false, domain.PresetLow, fut)
	if _, err := fut.Wait(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := run(ctx, task); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	shots, _ := filepath.Glob(filepath.Join(mediaDir, "*.jpg"))
	if len(shots) != 1 {
		t.Errorf("photos = %v", shots)
	}
}
