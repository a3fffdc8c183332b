// Package capture owns the per-device capture session: its lifecycle, the
// preview, recording and photo sub-sessions, media type negotiation and the
// preview frame buffers.
package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"camsession/internal/domain"
)

// Listener receives the outcome of every controller operation. It is called
// with the session lock held and must not call back into the Controller.
type Listener interface {
	OnCreateCaptureEngineSucceeded(textureID int64)
	OnCreateCaptureEngineFailed(err error)
	OnStartPreviewSucceeded(width, height uint32)
	OnStartPreviewFailed(err error)
	OnPausePreviewSucceeded()
	OnPausePreviewFailed(err error)
	OnResumePreviewSucceeded()
	OnResumePreviewFailed(err error)
	OnStartRecordSucceeded()
	OnStartRecordFailed(err error)
	OnStopRecordSucceeded(path string)
	OnStopRecordFailed(err error)
	OnTakePictureSucceeded(path string)
	OnTakePictureFailed(err error)
	OnVideoRecordSucceeded(path string, durationMs int64)
	OnVideoRecordFailed(err error)
	OnCaptureError(err error)
}

// Controller is the capture session state machine for one device.
//
// Locking: mu guards the lifecycle, the sub-session handlers, the negotiated
// media types and the engine references. frames has its own lock; the order
// is always mu then frames.mu. Engine and device teardown runs after mu is
// released so that engine goroutines blocked on mu can drain.
type Controller struct {
	platform  domain.Platform
	registrar domain.TextureRegistrar
	listener  Listener
	logger    *slog.Logger

	mu              sync.Mutex
	state           domain.SessionState
	generation      uint64
	deviceID        string
	enableAudio     bool
	preset          domain.ResolutionPreset
	platformStarted bool
	engine          domain.CaptureEngine
	video           domain.DeviceSource
	audio           domain.DeviceSource
	previewType     domain.MediaType
	captureType     domain.MediaType
	preview         *previewHandler
	record          *recordHandler
	photo           *photoHandler

	currentGen atomic.Uint64
	textureID  atomic.Int64
	paused     atomic.Bool
	frames     frameStore
}

// NewController creates an uninitialized controller.
func NewController(platform domain.Platform, registrar domain.TextureRegistrar, listener Listener, logger *slog.Logger) *Controller {
	c := &Controller{
		platform:  platform,
		registrar: registrar,
		listener:  listener,
		logger:    logger,
	}
	c.textureID.Store(-1)
	return c
}

// teardown collects the resources released after mu is dropped.
type teardown struct {
	engine    domain.CaptureEngine
	sources   []domain.DeviceSource
	textureID int64
	shutdown  bool
}

// locked runs fn under mu and performs any teardown it returns afterwards.
func (c *Controller) locked(fn func() *teardown) {
	c.mu.Lock()
	td := fn()
	c.mu.Unlock()
	if td != nil {
		c.release(td)
	}
}

func (c *Controller) release(td *teardown) {
	if td.engine != nil {
		if err := td.engine.Close(); err != nil {
			c.logger.Warn("capture engine close failed", "device", c.deviceIDSnapshot(), "error", err)
		}
	}
	for _, src := range td.sources {
		if err := src.Close(); err != nil {
			c.logger.Warn("capture source close failed", "source", src.DeviceID(), "error", err)
		}
	}
	if td.shutdown {
		if err := c.platform.Shutdown(); err != nil {
			c.logger.Warn("capture platform shutdown failed", "error", err)
		}
	}
	if td.textureID > -1 {
		c.registrar.UnregisterTexture(td.textureID)
	}
}

func (c *Controller) deviceIDSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

func sessionError(op string, err error, detail string) error {
	return domain.NewSubSystemError("session", op, err, detail)
}

func engineError(subsystem, op, detail string, cause error) error {
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	return domain.NewSubSystemError(subsystem, op, domain.ErrEngine, detail)
}

func notInitialized(op string) error {
	return sessionError(op, domain.ErrNotInitialized,
		"camera not initialized; camera should be disposed and reinitialized")
}

// Initialize opens the device and starts the capture engine. The outcome
// arrives through OnCreateCaptureEngineSucceeded once the engine reports
// that it is initialized, or OnCreateCaptureEngineFailed.
func (c *Controller) Initialize(deviceID string, enableAudio bool, preset domain.ResolutionPreset) {
	const op = "Controller.Initialize"
	c.locked(func() *teardown {
		switch c.state {
		case domain.SessionInitialized:
			c.listener.OnCreateCaptureEngineFailed(sessionError(op, domain.ErrAlreadyInitialized, "capture device already initialized"))
			return nil
		case domain.SessionInitializing:
			c.listener.OnCreateCaptureEngineFailed(sessionError(op, domain.ErrAlreadyInitializing, "capture device already initializing"))
			return nil
		}

		c.state = domain.SessionInitializing
		c.deviceID = deviceID
		c.enableAudio = enableAudio
		c.preset = preset

		if !c.platformStarted {
			if err := c.platform.Startup(); err != nil {
				c.listener.OnCreateCaptureEngineFailed(engineError("session", op, "failed to create camera", err))
				return c.resetLocked()
			}
			c.platformStarted = true
		}

		if err := c.createCaptureEngineLocked(); err != nil {
			c.listener.OnCreateCaptureEngineFailed(err)
			return c.resetLocked()
		}
		c.logger.Debug("capture engine initializing", "device", deviceID, "audio", enableAudio, "preset", string(preset))
		return nil
	})
}

func (c *Controller) createCaptureEngineLocked() error {
	const op = "Controller.createCaptureEngine"
	engine, err := c.platform.NewEngine()
	if err != nil {
		return engineError("session", op, "failed to create capture engine", err)
	}
	c.engine = engine

	c.video, err = c.platform.VideoSource(c.deviceID)
	if err != nil {
		return engineError("session", op, "failed to create video source", err)
	}
	if c.enableAudio {
		c.audio, err = c.platform.AudioSource()
		if err != nil {
			return engineError("session", op, "failed to create audio source", err)
		}
	}

	c.generation++
	c.currentGen.Store(c.generation)
	obs := &engineObserver{c: c, gen: c.generation}
	if err := engine.Initialize(obs, c.audio, c.video); err != nil {
		return engineError("session", op, "failed to initialize capture engine", err)
	}
	return nil
}

// Reset tears the session down to UNINITIALIZED: an active recording and
// preview are stopped, the platform is shut down and the texture is
// unregistered. Pending callers are not notified.
func (c *Controller) Reset() {
	c.locked(c.resetLocked)
}

func (c *Controller) resetLocked() *teardown {
	td := &teardown{textureID: -1}
	if c.engine != nil {
		if c.record != nil && (c.record.canStop() || c.record.state == recordStarting) {
			if err := c.engine.StopRecord(); err != nil {
				c.logger.Debug("stop record during reset failed", "error", err)
			}
		}
		if c.preview != nil {
			if err := c.preview.stop(c.engine); err != nil {
				c.logger.Debug("stop preview during reset failed", "error", err)
			}
		}
	}
	td.shutdown = c.platformStarted
	c.platformStarted = false

	c.state = domain.SessionUninitialized
	c.generation++
	c.currentGen.Store(c.generation)
	c.preview, c.record, c.photo = nil, nil, nil
	c.previewType, c.captureType = domain.MediaType{}, domain.MediaType{}
	c.paused.Store(false)
	c.frames.reset()

	td.engine = c.engine
	c.engine = nil
	for _, src := range []domain.DeviceSource{c.video, c.audio} {
		if src != nil {
			td.sources = append(td.sources, src)
		}
	}
	c.video, c.audio = nil, nil
	td.textureID = c.textureID.Swap(-1)
	return td
}

// FindBaseMediaTypes negotiates the preview and capture media types.
func (c *Controller) FindBaseMediaTypes() error {
	var err error
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			err = notInitialized("Controller.FindBaseMediaTypes")
			return nil
		}
		err = c.findBaseMediaTypesLocked()
		return nil
	})
	return err
}

func (c *Controller) findBaseMediaTypesLocked() error {
	const op = "Controller.FindBaseMediaTypes"
	if c.engine == nil {
		return notInitialized(op)
	}
	source, err := c.engine.Source()
	if err != nil {
		return engineError("session", op, "failed to get capture source", err)
	}

	previewTypes, err := source.MediaTypes(domain.StreamPreview)
	if err != nil {
		return engineError("session", op, "failed to list preview media types", err)
	}
	previewType, ok := FindBestMediaType(previewTypes, c.preset.MaxPreviewHeight())
	if !ok {
		return sessionError(op, domain.ErrNoMediaType, "no preview media type")
	}

	recordTypes, err := source.MediaTypes(domain.StreamRecord)
	if err != nil {
		return engineError("session", op, "failed to list capture media types", err)
	}
	captureType, ok := FindBestMediaType(recordTypes, domain.UnboundedHeight)
	if !ok {
		return sessionError(op, domain.ErrNoMediaType, "no capture media type")
	}

	c.previewType = previewType.WithFormat(domain.FormatRGB32)
	c.captureType = captureType
	c.frames.setSize(int(previewType.Width), int(previewType.Height))
	c.logger.Debug("media types negotiated",
		"device", c.deviceID,
		"preview", c.previewType.String(),
		"capture", c.captureType.String(),
	)
	return nil
}

// StartPreview starts the preview stream. Success is reported on the first
// delivered frame. A preview that is already running succeeds immediately.
func (c *Controller) StartPreview() {
	const op = "Controller.StartPreview"
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			c.listener.OnStartPreviewFailed(notInitialized(op))
			return nil
		}
		if c.previewType.IsZero() {
			if err := c.findBaseMediaTypesLocked(); err != nil {
				c.listener.OnStartPreviewFailed(engineError("preview", op, "failed to initialize video preview", err))
				return nil
			}
		}
		if c.preview != nil {
			if c.preview.initialized() {
				c.listener.OnStartPreviewSucceeded(c.previewType.Width, c.previewType.Height)
				return nil
			}
			c.listener.OnStartPreviewFailed(domain.NewSubSystemError("preview", op, domain.ErrPreviewExists, "preview already exists"))
			return nil
		}

		c.preview = newPreviewHandler()
		if err := c.preview.start(c.engine, c.previewType); err != nil {
			c.preview = nil
			c.listener.OnStartPreviewFailed(engineError("preview", op, "failed to start video preview", err))
		}
		return nil
	})
}

// StopPreview asks the engine to stop the preview. The preview handler is
// released when the engine reports the preview stopped.
func (c *Controller) StopPreview() error {
	const op = "Controller.StopPreview"
	var err error
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			err = notInitialized(op)
			return nil
		}
		if c.preview == nil {
			err = domain.NewSubSystemError("preview", op, domain.ErrPreviewNotStarted, "preview not started")
			return nil
		}
		if serr := c.preview.stop(c.engine); serr != nil {
			err = engineError("preview", op, "failed to stop video preview", serr)
		}
		return nil
	})
	return err
}

// PausePreview stops forwarding frames to the renderer.
func (c *Controller) PausePreview() {
	const op = "Controller.PausePreview"
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			c.listener.OnPausePreviewFailed(notInitialized(op))
			return nil
		}
		if c.preview == nil {
			c.listener.OnPausePreviewFailed(domain.NewSubSystemError("preview", op, domain.ErrPreviewNotStarted, "preview not started"))
			return nil
		}
		if !c.preview.pause() {
			c.listener.OnPausePreviewFailed(domain.NewSubSystemError("preview", op, domain.ErrInvalidState,
				fmt.Sprintf("failed to pause preview in state %s", c.preview.state)))
			return nil
		}
		c.paused.Store(true)
		c.listener.OnPausePreviewSucceeded()
		return nil
	})
}

// ResumePreview resumes forwarding frames to the renderer.
func (c *Controller) ResumePreview() {
	const op = "Controller.ResumePreview"
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			c.listener.OnResumePreviewFailed(notInitialized(op))
			return nil
		}
		if c.preview == nil {
			c.listener.OnResumePreviewFailed(domain.NewSubSystemError("preview", op, domain.ErrPreviewNotStarted, "preview not started"))
			return nil
		}
		if !c.preview.resume() {
			c.listener.OnResumePreviewFailed(domain.NewSubSystemError("preview", op, domain.ErrInvalidState,
				fmt.Sprintf("failed to resume preview in state %s", c.preview.state)))
			return nil
		}
		c.paused.Store(false)
		c.listener.OnResumePreviewSucceeded()
		return nil
	})
}

// StartRecord starts recording to path. A positive maxDurationMs makes the
// recording timed: it stops itself once that much capture time has elapsed.
func (c *Controller) StartRecord(path string, maxDurationMs int64) {
	const op = "Controller.StartRecord"
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			c.listener.OnStartRecordFailed(notInitialized(op))
			return nil
		}
		if c.record != nil && !c.record.canStart() {
			c.listener.OnStartRecordFailed(domain.NewSubSystemError("record", op, domain.ErrRecordingActive,
				"recording cannot be started; previous recording must be stopped first"))
			return nil
		}
		if c.captureType.IsZero() {
			if err := c.findBaseMediaTypesLocked(); err != nil {
				c.listener.OnStartRecordFailed(engineError("record", op, "failed to initialize video recording", err))
				return nil
			}
		}

		c.record = newRecordHandler(path, maxDurationMs)
		if err := c.record.start(c.engine, c.captureType.WithFormat(domain.FormatMJPEG)); err != nil {
			c.record = nil
			c.listener.OnStartRecordFailed(engineError("record", op, "failed to start video recording", err))
		}
		return nil
	})
}

// StopRecord stops the running recording. The outcome arrives when the
// engine reports the recording stopped.
func (c *Controller) StopRecord() {
	const op = "Controller.StopRecord"
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			c.listener.OnStopRecordFailed(notInitialized(op))
			return nil
		}
		if c.record == nil || !c.record.canStop() {
			c.listener.OnStopRecordFailed(domain.NewSubSystemError("record", op, domain.ErrNotRecording, "recording cannot be stopped"))
			return nil
		}
		if err := c.record.stop(c.engine); err != nil {
			c.record = nil
			c.listener.OnStopRecordFailed(engineError("record", op, "failed to stop video recording", err))
		}
		return nil
	})
}

func (c *Controller) stopTimedRecordLocked() {
	const op = "Controller.stopTimedRecord"
	if c.record == nil || !c.record.canStop() {
		return
	}
	c.record.autoStop = true
	if err := c.record.stop(c.engine); err != nil {
		c.record = nil
		c.listener.OnVideoRecordFailed(engineError("record", op, "failed to stop video recording", err))
	}
}

// TakePicture captures one still image to path. Only one photo may be in
// flight; a second request fails without reaching the engine.
func (c *Controller) TakePicture(path string) {
	const op = "Controller.TakePicture"
	c.locked(func() *teardown {
		if c.state != domain.SessionInitialized {
			c.listener.OnTakePictureFailed(notInitialized(op))
			return nil
		}
		if c.photo != nil && c.photo.taking {
			c.listener.OnTakePictureFailed(domain.NewSubSystemError("photo", op, domain.ErrPhotoInFlight, "photo already requested"))
			return nil
		}
		if c.captureType.IsZero() {
			if err := c.findBaseMediaTypesLocked(); err != nil {
				c.listener.OnTakePictureFailed(engineError("photo", op, "failed to initialize photo capture", err))
				return nil
			}
		}
		if c.photo == nil {
			c.photo = &photoHandler{}
		}
		if err := c.photo.takePhoto(path, c.engine, c.captureType.WithFormat(domain.FormatJPEG)); err != nil {
			c.photo = nil
			c.listener.OnTakePictureFailed(engineError("photo", op, "failed to take photo", err))
		}
		return nil
	})
}

// OnEvent handles an engine event for the current engine.
func (c *Controller) OnEvent(ev domain.EngineEvent) {
	c.handleEvent(c.currentGen.Load(), ev)
}

func (c *Controller) handleEvent(gen uint64, ev domain.EngineEvent) {
	c.locked(func() *teardown {
		if gen != c.generation || c.state == domain.SessionUninitialized {
			return nil
		}
		switch ev.Kind {
		case domain.EngineEventInitialized:
			return c.onCaptureEngineInitializedLocked(ev.Err)
		case domain.EngineEventError:
			return c.onCaptureEngineErrorLocked(ev.Err)
		case domain.EngineEventPreviewStarted:
			// Success waits for the first frame; only failures matter here.
			if ev.Err != nil {
				c.onPreviewStartedLocked(ev.Err)
			}
		case domain.EngineEventPreviewStopped:
			c.preview = nil
			c.paused.Store(false)
		case domain.EngineEventRecordStarted:
			c.onRecordStartedLocked(ev.Err)
		case domain.EngineEventRecordStopped:
			c.onRecordStoppedLocked(ev.Err)
		case domain.EngineEventPhotoTaken:
			c.onPictureLocked(ev.Err)
		case domain.EngineEventStreamBlocked, domain.EngineEventStreamUnblocked:
			c.logger.Debug("capture stream state changed", "device", c.deviceID, "event", ev.Kind.String())
		default:
			c.logger.Debug("unhandled engine event", "device", c.deviceID, "event", ev.Kind.String())
		}
		return nil
	})
}

func (c *Controller) onCaptureEngineInitializedLocked(evErr error) *teardown {
	const op = "Controller.OnCaptureEngineInitialized"
	if c.state != domain.SessionInitializing {
		return nil
	}
	if evErr != nil {
		c.listener.OnCreateCaptureEngineFailed(engineError("session", op, "failed to initialize capture engine", evErr))
		return c.resetLocked()
	}

	id, err := c.registrar.RegisterTexture(c.deviceID, c.ConvertFrameForRenderer)
	if err != nil || id < 0 {
		c.listener.OnCreateCaptureEngineFailed(domain.NewSubSystemError("session", op, domain.ErrTextureRegistration,
			fmt.Sprintf("failed to create texture_id: %v", err)))
		return c.resetLocked()
	}
	c.textureID.Store(id)
	c.state = domain.SessionInitialized
	c.listener.OnCreateCaptureEngineSucceeded(id)
	return nil
}

// onCaptureEngineErrorLocked reports asynchronous engine errors. An error
// during initialization fails the creation; otherwise pending callers are
// left alone and only the error notification is raised.
func (c *Controller) onCaptureEngineErrorLocked(evErr error) *teardown {
	const op = "Controller.OnCaptureEngineError"
	if evErr == nil {
		evErr = domain.ErrEngine
	}
	if c.state == domain.SessionInitializing {
		c.listener.OnCreateCaptureEngineFailed(engineError("session", op, "failed to initialize capture engine", evErr))
		return c.resetLocked()
	}
	c.listener.OnCaptureError(domain.NewSubSystemError("event", op, domain.ErrEngine, evErr.Error()))
	return nil
}

func (c *Controller) onPreviewStartedLocked(evErr error) {
	const op = "Controller.OnPreviewStarted"
	if c.preview == nil || !c.preview.starting() {
		return
	}
	if evErr != nil {
		c.preview = nil
		c.listener.OnStartPreviewFailed(engineError("preview", op, "failed to start video preview", evErr))
		return
	}
	c.preview.onStarted()
	c.listener.OnStartPreviewSucceeded(c.previewType.Width, c.previewType.Height)
}

func (c *Controller) onRecordStartedLocked(evErr error) {
	const op = "Controller.OnRecordStarted"
	if c.record == nil {
		return
	}
	if evErr != nil {
		c.record = nil
		c.listener.OnStartRecordFailed(engineError("record", op, "failed to start video recording", evErr))
		return
	}
	c.record.onStarted()
	c.listener.OnStartRecordSucceeded()
}

func (c *Controller) onRecordStoppedLocked(evErr error) {
	const op = "Controller.OnRecordStopped"
	if c.record == nil {
		return
	}
	rec := c.record
	c.record = nil
	completed := rec.mode == RecordingTimed && rec.autoStop

	if evErr != nil {
		err := engineError("record", op, "failed to stop video recording", evErr)
		c.listener.OnStopRecordFailed(err)
		if completed {
			c.listener.OnVideoRecordFailed(err)
		}
		return
	}
	c.listener.OnStopRecordSucceeded(rec.path)
	if completed {
		c.listener.OnVideoRecordSucceeded(rec.path, rec.recordedDurationMs())
	}
}

func (c *Controller) onPictureLocked(evErr error) {
	const op = "Controller.OnPicture"
	if c.photo == nil {
		return
	}
	path := c.photo.path
	c.photo.onPhotoTaken()
	c.photo = nil
	if evErr != nil {
		c.listener.OnTakePictureFailed(engineError("photo", op, "failed to take photo", evErr))
		return
	}
	c.listener.OnTakePictureSucceeded(path)
}

// UpdateCaptureTime is called for every captured sample. The first sample
// after a preview start resolves the preview; while recording it advances
// the recorded duration and triggers the timed auto-stop.
func (c *Controller) UpdateCaptureTime(captureTimeMicros uint64) {
	c.updateCaptureTime(c.currentGen.Load(), captureTimeMicros)
}

func (c *Controller) updateCaptureTime(gen uint64, captureTimeMicros uint64) {
	c.locked(func() *teardown {
		if gen != c.generation || c.state != domain.SessionInitialized {
			return nil
		}
		if c.preview != nil && c.preview.starting() {
			c.onPreviewStartedLocked(nil)
		}
		if c.record != nil {
			c.record.updateRecordingTime(captureTimeMicros)
			if c.record.shouldStopTimedRecording() {
				c.stopTimedRecordLocked()
			}
		}
		return nil
	})
}

// GetFrameBuffer returns the buffer the engine writes the next preview frame
// into. The same buffer is returned for as long as length does not change.
func (c *Controller) GetFrameBuffer(length int) []byte {
	return c.frames.buffer(length)
}

// OnBufferUpdated copies the last written frame into the published slot and
// notifies the renderer when a texture is registered and the preview is not
// paused.
func (c *Controller) OnBufferUpdated() {
	if c.paused.Load() {
		return
	}
	c.frames.publish()
	if id := c.textureID.Load(); id > -1 {
		c.registrar.MarkTextureFrameAvailable(id)
	}
}

// ConvertFrameForRenderer returns the latest frame as RGBA at the negotiated
// preview size, or nil when no frame is available. The requested size is
// ignored. Each call returns its own copy.
func (c *Controller) ConvertFrameForRenderer(width, height int) *domain.PixelBuffer {
	return c.frames.convert()
}

// State returns the session lifecycle state.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TextureID returns the registered texture id, or -1.
func (c *Controller) TextureID() int64 { return c.textureID.Load() }

// PreviewSize returns the negotiated preview dimensions.
func (c *Controller) PreviewSize() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previewType.Width, c.previewType.Height
}

// PreviewState returns the preview sub-session state.
func (c *Controller) PreviewState() PreviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return PreviewNotStarted
	}
	return c.preview.state
}

// RecordingMode returns the mode of the active recording.
func (c *Controller) RecordingMode() RecordingMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record == nil {
		return RecordingNone
	}
	return c.record.mode
}

// TakingPhoto reports whether a photo is in flight.
func (c *Controller) TakingPhoto() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.photo != nil && c.photo.taking
}

// engineObserver binds engine callbacks to the engine generation that
// created it, so late callbacks from a torn-down engine are dropped.
type engineObserver struct {
	c   *Controller
	gen uint64
}

func (o *engineObserver) stale() bool { return o.c.currentGen.Load() != o.gen }

func (o *engineObserver) OnEvent(ev domain.EngineEvent) { o.c.handleEvent(o.gen, ev) }

func (o *engineObserver) GetFrameBuffer(length int) []byte {
	if o.stale() {
		return make([]byte, length)
	}
	return o.c.GetFrameBuffer(length)
}

func (o *engineObserver) OnBufferUpdated() {
	if o.stale() {
		return
	}
	o.c.OnBufferUpdated()
}

func (o *engineObserver) UpdateCaptureTime(captureTimeMicros uint64) {
	o.c.updateCaptureTime(o.gen, captureTimeMicros)
}
