package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"camsession/internal/domain"
	"camsession/internal/usecase/camera"
	"camsession/internal/usecase/pending"
)

// SnapshotAction takes a picture on the task's device. The camera must
// already be open.
func SnapshotAction(cameras *camera.Manager) ActionFunc {
	return func(ctx context.Context, task ScheduledTask) error {
		cam, err := cameras.Get(task.DeviceID)
		if err != nil {
			return err
		}
		fut := pending.NewFuture()
		cam.TakePicture(ctx, "", fut)
		_, err = fut.Wait(ctx)
		return err
	}
}

// RetentionAction removes catalog entries older than the task's MaxAge and
// deletes their files.
func RetentionAction(catalog domain.MediaCatalog, logger *slog.Logger) ActionFunc {
	return func(ctx context.Context, task ScheduledTask) error {
		if task.MaxAge <= 0 {
			return domain.NewSubSystemError("scheduler", "RetentionAction", domain.ErrInvalidInput,
				fmt.Sprintf("task %q needs a positive max_age", task.Name))
		}
		expired, err := catalog.DeleteOlderThan(ctx, time.Now().Add(-task.MaxAge))
		if err != nil {
			return err
		}
		var errs []error
		for _, rec := range expired {
			if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		logger.Info("media retention applied", "task", task.Name, "removed", len(expired))
		return errors.Join(errs...)
	}
}
