package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// Session notifications delivered to clients.
	EventVideoRecorded EventType = "video_recorded"
	EventCameraError   EventType = "error"

	// Lifecycle events.
	EventCameraCreated  EventType = "camera.created"
	EventCameraDisposed EventType = "camera.disposed"
	EventPreviewStarted EventType = "preview.started"
	EventPreviewPaused  EventType = "preview.paused"
	EventPreviewResumed EventType = "preview.resumed"

	// Media events.
	EventPictureTaken     EventType = "media.picture_taken"
	EventRecordingStarted EventType = "media.recording_started"
	EventRecordingStopped EventType = "media.recording_stopped"
	EventRecordingFailed  EventType = "media.recording_failed"

	// Scheduler events.
	EventTaskFired EventType = "scheduler.task_fired"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	CameraID  int64           `json:"cameraId,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// VideoRecordedPayload is the payload of EventVideoRecorded.
type VideoRecordedPayload struct {
	Path       string `json:"path"`
	DurationMs int64  `json:"durationMs"`
}

// ErrorPayload is the payload of EventCameraError and failure events.
type ErrorPayload struct {
	Code        ErrorCode `json:"code,omitempty"`
	Description string    `json:"description"`
}

// MediaPayload is the payload of picture and recording events.
type MediaPayload struct {
	Path       string `json:"path"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// NewEvent builds an Event, marshaling payload when non-nil.
func NewEvent(t EventType, deviceID string, cameraID int64, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), DeviceID: deviceID, CameraID: cameraID}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
