// Package camera exposes capture sessions to callers. Each command registers
// a pending entry keyed by its operation kind; the controller's outcome
// resolves that entry, and session notifications go out on the event bus.
package camera

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"camsession/internal/domain"
	"camsession/internal/infra/tracer"
	"camsession/internal/usecase/capture"
	"camsession/internal/usecase/pending"
)

const disposedMessage = "Plugin disposed before request was handled"

// Camera is one capture session bound to a device.
type Camera struct {
	deviceID string
	mediaDir string
	ctrl     *capture.Controller
	pending  *pending.Table
	bus      domain.EventBus
	logger   *slog.Logger

	cameraID atomic.Int64

	// mu orders commands against Dispose: a command that passed the
	// disposed check reaches the controller before Dispose resets it.
	mu       sync.Mutex
	disposed bool
}

// New creates a camera for deviceID. Nothing is opened until Create.
func New(deviceID, mediaDir string, platform domain.Platform, registrar domain.TextureRegistrar, bus domain.EventBus, logger *slog.Logger) *Camera {
	c := &Camera{
		deviceID: deviceID,
		mediaDir: mediaDir,
		pending:  pending.New(),
		bus:      bus,
		logger:   logger.With("device_id", deviceID),
	}
	c.cameraID.Store(-1)
	c.ctrl = capture.NewController(platform, registrar, &listener{c: c}, c.logger)
	return c
}

// DeviceID returns the device this camera captures from.
func (c *Camera) DeviceID() string { return c.deviceID }

// CameraID returns the renderer texture id, or -1 before creation succeeds.
func (c *Camera) CameraID() int64 { return c.cameraID.Load() }

// State returns the capture session state.
func (c *Camera) State() domain.SessionState { return c.ctrl.State() }

// Controller returns the underlying session controller.
func (c *Camera) Controller() *capture.Controller { return c.ctrl }

// Pending returns the number of unresolved requests.
func (c *Camera) Pending() int { return c.pending.Len() }

// run traces the request, stores sink under kind and hands the command to
// the controller. A rejected request is resolved without running cmd.
func (c *Camera) run(ctx context.Context, kind domain.OperationKind, sink domain.ResultSink, cmd func()) {
	_, span := tracer.StartSpan(ctx, "camera."+string(kind),
		trace.WithAttributes(
			tracer.StringAttr("camera.device_id", c.deviceID),
			tracer.StringAttr("camera.operation", string(kind)),
		),
	)
	sink = &tracedSink{next: sink, span: span}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		sink.Error(domain.CodeDisposed, disposedMessage)
		return
	}
	if !c.pending.Register(kind, sink) {
		c.logger.Debug("duplicate request rejected", "kind", string(kind))
		return
	}
	cmd()
}

// Create initializes the capture session. The sink receives the camera id.
func (c *Camera) Create(ctx context.Context, enableAudio bool, preset domain.ResolutionPreset, sink domain.ResultSink) {
	c.run(ctx, domain.OpCreateSession, sink, func() {
		c.ctrl.Initialize(c.deviceID, enableAudio, preset)
	})
}

// StartPreview starts the preview. The sink receives a domain.PreviewSize
// once the first frame arrives.
func (c *Camera) StartPreview(ctx context.Context, sink domain.ResultSink) {
	c.run(ctx, domain.OpStartPreview, sink, c.ctrl.StartPreview)
}

// PausePreview stops publishing preview frames.
func (c *Camera) PausePreview(ctx context.Context, sink domain.ResultSink) {
	c.run(ctx, domain.OpPausePreview, sink, c.ctrl.PausePreview)
}

// ResumePreview resumes publishing preview frames.
func (c *Camera) ResumePreview(ctx context.Context, sink domain.ResultSink) {
	c.run(ctx, domain.OpResumePreview, sink, c.ctrl.ResumePreview)
}

// TakePicture captures a still image. An empty path is generated under the
// media directory. The sink receives the file path.
func (c *Camera) TakePicture(ctx context.Context, path string, sink domain.ResultSink) {
	if path == "" {
		path = MediaPath(c.mediaDir, c.deviceID, domain.MediaPhoto)
	}
	c.run(ctx, domain.OpTakePhoto, sink, func() { c.ctrl.TakePicture(path) })
}

// StartRecord starts a recording. A positive maxDurationMs stops it
// automatically and publishes domain.EventVideoRecorded.
func (c *Camera) StartRecord(ctx context.Context, path string, maxDurationMs int64, sink domain.ResultSink) {
	if path == "" {
		path = MediaPath(c.mediaDir, c.deviceID, domain.MediaVideo)
	}
	c.run(ctx, domain.OpStartRecord, sink, func() { c.ctrl.StartRecord(path, maxDurationMs) })
}

// StopRecord stops the recording. The sink receives the file path.
func (c *Camera) StopRecord(ctx context.Context, sink domain.ResultSink) {
	c.run(ctx, domain.OpStopRecord, sink, c.ctrl.StopRecord)
}

// Dispose tears the session down and fails every pending request. Commands
// issued afterwards fail with PLUGIN_DISPOSED. Dispose is idempotent.
func (c *Camera) Dispose(ctx context.Context) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.ctrl.Reset()
	n := c.pending.FlushAll(domain.CodeDisposed, disposedMessage)
	c.mu.Unlock()

	c.logger.Info("camera disposed", "flushed", n)
	c.publish(ctx, domain.EventCameraDisposed, nil)
}

func (c *Camera) publish(ctx context.Context, t domain.EventType, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, domain.NewEvent(t, c.deviceID, c.cameraID.Load(), payload))
}

// tracedSink ends the request span when the outcome is delivered.
type tracedSink struct {
	next domain.ResultSink
	span trace.Span
}

func (s *tracedSink) Success(value any) {
	tracer.SetOK(s.span)
	s.span.End()
	s.next.Success(value)
}

func (s *tracedSink) Error(code domain.ErrorCode, message string) {
	tracer.RecordError(s.span, &domain.ResultError{Code: code, Message: message})
	s.span.End()
	s.next.Error(code, message)
}

// listener turns controller outcomes into resolved requests and
// notifications. It runs under the controller lock.
type listener struct {
	c *Camera
}

func (l *listener) bg() context.Context { return context.Background() }

func (l *listener) OnCreateCaptureEngineSucceeded(textureID int64) {
	l.c.cameraID.Store(textureID)
	l.c.pending.Succeed(domain.OpCreateSession, textureID)
	l.c.logger.Info("camera created", "camera_id", textureID)
	l.c.publish(l.bg(), domain.EventCameraCreated, nil)
}

func (l *listener) OnCreateCaptureEngineFailed(err error) {
	l.c.logger.Warn("camera creation failed", "error", err)
	l.c.pending.FailWith(domain.OpCreateSession, err)
}

func (l *listener) OnStartPreviewSucceeded(width, height uint32) {
	size := domain.PreviewSize{Width: float64(width), Height: float64(height)}
	l.c.pending.Succeed(domain.OpStartPreview, size)
	l.c.publish(l.bg(), domain.EventPreviewStarted, size)
}

func (l *listener) OnStartPreviewFailed(err error) {
	l.c.pending.FailWith(domain.OpStartPreview, err)
}

func (l *listener) OnPausePreviewSucceeded() {
	l.c.pending.Succeed(domain.OpPausePreview, nil)
	l.c.publish(l.bg(), domain.EventPreviewPaused, nil)
}

func (l *listener) OnPausePreviewFailed(err error) {
	l.c.pending.FailWith(domain.OpPausePreview, err)
}

func (l *listener) OnResumePreviewSucceeded() {
	l.c.pending.Succeed(domain.OpResumePreview, nil)
	l.c.publish(l.bg(), domain.EventPreviewResumed, nil)
}

func (l *listener) OnResumePreviewFailed(err error) {
	l.c.pending.FailWith(domain.OpResumePreview, err)
}

func (l *listener) OnStartRecordSucceeded() {
	l.c.pending.Succeed(domain.OpStartRecord, nil)
	l.c.publish(l.bg(), domain.EventRecordingStarted, nil)
}

func (l *listener) OnStartRecordFailed(err error) {
	l.c.pending.FailWith(domain.OpStartRecord, err)
}

func (l *listener) OnStopRecordSucceeded(path string) {
	l.c.pending.Succeed(domain.OpStopRecord, path)
	l.c.publish(l.bg(), domain.EventRecordingStopped, domain.MediaPayload{Path: path})
}

func (l *listener) OnStopRecordFailed(err error) {
	l.c.pending.FailWith(domain.OpStopRecord, err)
}

func (l *listener) OnTakePictureSucceeded(path string) {
	l.c.pending.Succeed(domain.OpTakePhoto, path)
	l.c.publish(l.bg(), domain.EventPictureTaken, domain.MediaPayload{Path: path})
}

func (l *listener) OnTakePictureFailed(err error) {
	l.c.pending.FailWith(domain.OpTakePhoto, err)
}

func (l *listener) OnVideoRecordSucceeded(path string, durationMs int64) {
	l.c.logger.Info("timed recording completed", "path", path, "duration_ms", durationMs)
	l.c.publish(l.bg(), domain.EventVideoRecorded, domain.VideoRecordedPayload{Path: path, DurationMs: durationMs})
}

func (l *listener) OnVideoRecordFailed(err error) {
	code, msg := domain.Describe(err)
	l.c.logger.Warn("timed recording failed", "error", err)
	l.c.publish(l.bg(), domain.EventRecordingFailed, domain.ErrorPayload{Code: code, Description: msg})
}

func (l *listener) OnCaptureError(err error) {
	code, msg := domain.Describe(err)
	l.c.logger.Warn("capture engine error", "error", err)
	l.c.publish(l.bg(), domain.EventCameraError, domain.ErrorPayload{Code: code, Description: msg})
}
