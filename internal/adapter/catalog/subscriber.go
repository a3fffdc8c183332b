package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"camsession/internal/domain"
)

// Attach records every picture and finished recording published on bus.
// It returns a function that detaches the subscriptions.
func Attach(bus domain.EventBus, catalog domain.MediaCatalog, logger *slog.Logger) func() {
	record := func(kind domain.MediaKind) domain.EventHandler {
		return func(ctx context.Context, ev domain.Event) {
			var p domain.MediaPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || p.Path == "" {
				logger.Warn("catalog: media event without path", "type", string(ev.Type))
				return
			}
			rec := domain.MediaRecord{
				DeviceID:   ev.DeviceID,
				Kind:       kind,
				Path:       p.Path,
				DurationMs: p.DurationMs,
				CreatedAt:  ev.Timestamp,
			}
			if info, err := os.Stat(p.Path); err == nil {
				rec.SizeBytes = info.Size()
			}
			if _, err := catalog.Record(ctx, rec); err != nil {
				logger.Error("catalog: record failed", "path", p.Path, "error", err)
				return
			}
			logger.Debug("catalog: media recorded", "kind", string(kind), "path", p.Path)
		}
	}
	unsubs := []func(){
		bus.Subscribe(domain.EventPictureTaken, record(domain.MediaPhoto)),
		bus.Subscribe(domain.EventRecordingStopped, record(domain.MediaVideo)),
		bus.Subscribe(domain.EventVideoRecorded, record(domain.MediaVideo)),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
