package engine

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"camsession/internal/domain"
)

const defaultJPEGQuality = 90

// frameStream is one running device stream and its read loop.
type frameStream struct {
	mt      domain.MediaType
	reader  FrameReader
	stopped atomic.Bool
}

func (s *frameStream) stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.reader.Close()
}

type photoRequest struct {
	path string
	mt   domain.MediaType
}

// Engine implements domain.CaptureEngine over a Device. A single device
// stream feeds the preview, the recorder and photo requests; it is opened
// on the first consumer, upgraded when a larger media type is requested and
// closed when the last consumer goes away.
//
// Observer callbacks are never made while e.mu is held or from inside an
// Engine method.
type Engine struct {
	logger  *slog.Logger
	quality int
	events  *eventQueue
	wg      sync.WaitGroup

	mu       sync.Mutex
	observer domain.EngineObserver
	video    *VideoSource
	audio    *AudioSource
	epoch    time.Time
	stream   *frameStream
	preview  domain.MediaType
	rec      *recorder
	photo    *photoRequest
	closed   bool
}

// NewEngine creates an engine. quality is the JPEG quality used for photos
// and recordings; zero selects the default.
func NewEngine(quality int, logger *slog.Logger) *Engine {
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	return &Engine{
		logger:  logger,
		quality: quality,
		events:  newEventQueue(logger),
	}
}

func (e *Engine) Initialize(observer domain.EngineObserver, audio, video domain.DeviceSource) error {
	const op = "Engine.Initialize"
	vs, ok := video.(*VideoSource)
	if !ok || vs == nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unsupported video source %T", video))
	}
	var as *AudioSource
	if audio != nil {
		if as, ok = audio.(*AudioSource); !ok {
			return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unsupported audio source %T", audio))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.NewDomainError(op, domain.ErrInvalidState, "engine closed")
	}
	if e.observer != nil {
		return domain.NewDomainError(op, domain.ErrAlreadyInitialized, "engine already initialized")
	}
	e.observer = observer
	e.video = vs
	e.audio = as
	e.epoch = time.Now()
	e.events.setObserver(observer)
	e.events.post(domain.EngineEventInitialized, nil)
	return nil
}

func (e *Engine) Source() (domain.CaptureSource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.video == nil {
		return nil, domain.NewDomainError("Engine.Source", domain.ErrNotInitialized, "engine not initialized")
	}
	return e.video, nil
}

func (e *Engine) StartPreview(mt domain.MediaType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked("Engine.StartPreview"); err != nil {
		return err
	}
	if !e.preview.IsZero() {
		return domain.NewDomainError("Engine.StartPreview", domain.ErrPreviewExists, "preview already running")
	}
	if err := e.ensureStreamLocked(mt); err != nil {
		return err
	}
	e.preview = mt
	e.events.post(domain.EngineEventPreviewStarted, nil)
	return nil
}

func (e *Engine) StopPreview() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.preview.IsZero() {
		return domain.NewDomainError("Engine.StopPreview", domain.ErrPreviewNotStarted, "preview not running")
	}
	e.preview = domain.MediaType{}
	e.stopIfIdleLocked()
	e.events.post(domain.EngineEventPreviewStopped, nil)
	return nil
}

func (e *Engine) StartRecord(path string, mt domain.MediaType) error {
	const op = "Engine.StartRecord"
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(op); err != nil {
		return err
	}
	if e.rec != nil {
		return domain.NewDomainError(op, domain.ErrRecordingActive, "recording already active")
	}
	if err := e.ensureStreamLocked(mt); err != nil {
		return err
	}

	rec, err := newRecorder(path, mt, e.quality)
	if err != nil {
		e.stopIfIdleLocked()
		e.events.post(domain.EngineEventRecordStarted, err)
		return nil
	}
	if e.audio != nil {
		audio, err := e.audio.capture(sidecarPath(path), e.logger)
		if err != nil {
			e.logger.Warn("recording without audio", "path", path, "error", err)
		}
		rec.audio = audio
	}
	e.rec = rec
	e.events.post(domain.EngineEventRecordStarted, nil)
	return nil
}

func (e *Engine) StopRecord() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.rec
	if rec == nil {
		return domain.NewDomainError("Engine.StopRecord", domain.ErrNotRecording, "no active recording")
	}
	e.rec = nil
	err := rec.close()
	e.logger.Debug("recording closed", "path", rec.path, "frames", rec.frameCount())
	e.stopIfIdleLocked()
	e.events.post(domain.EngineEventRecordStopped, err)
	return nil
}

func (e *Engine) TakePhoto(path string, mt domain.MediaType) error {
	const op = "Engine.TakePhoto"
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(op); err != nil {
		return err
	}
	if e.photo != nil {
		return domain.NewDomainError(op, domain.ErrPhotoInFlight, "photo already in progress")
	}
	if err := e.ensureStreamLocked(mt); err != nil {
		return err
	}
	e.photo = &photoRequest{path: path, mt: mt}
	return nil
}

// Close stops the stream, abandons an active recording and waits for the
// stream goroutine. Queued events are dropped.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.stream != nil {
		e.stream.stop()
		e.stream = nil
	}
	rec := e.rec
	e.rec, e.photo = nil, nil
	e.preview = domain.MediaType{}
	e.mu.Unlock()

	var err error
	if rec != nil {
		err = rec.close()
	}
	e.events.close()
	e.wg.Wait()
	return err
}

func (e *Engine) readyLocked(op string) error {
	if e.closed {
		return domain.NewDomainError(op, domain.ErrInvalidState, "engine closed")
	}
	if e.video == nil {
		return domain.NewDomainError(op, domain.ErrNotInitialized, "engine not initialized")
	}
	return nil
}

// ensureStreamLocked makes sure a stream at least as large as mt is running.
func (e *Engine) ensureStreamLocked(mt domain.MediaType) error {
	if e.stream != nil && e.stream.mt.Area() >= mt.Area() {
		return nil
	}
	old := e.stream
	if old != nil {
		// Devices serve one stream at a time.
		old.stop()
		e.stream = nil
	}
	reader, err := e.video.dev.Stream(mt)
	if err != nil {
		if old != nil {
			if r, rerr := e.video.dev.Stream(old.mt); rerr == nil {
				e.startLocked(old.mt, r)
			}
		}
		return domain.NewDomainError("Engine.ensureStream", domain.ErrDeviceUnavailable,
			fmt.Sprintf("open %s stream: %v", mt, err))
	}
	e.startLocked(mt, reader)
	return nil
}

func (e *Engine) startLocked(mt domain.MediaType, reader FrameReader) {
	st := &frameStream{mt: mt, reader: reader}
	e.stream = st
	e.wg.Add(1)
	go e.run(st)
	e.logger.Debug("stream started", "media_type", mt.String())
}

func (e *Engine) stopIfIdleLocked() {
	if e.stream == nil || !e.preview.IsZero() || e.rec != nil || e.photo != nil {
		return
	}
	e.stream.stop()
	e.stream = nil
}

func (e *Engine) run(st *frameStream) {
	defer e.wg.Done()
	for {
		img, release, err := st.reader.Read()
		if err != nil {
			if st.stopped.Load() {
				return
			}
			e.streamFailed(st, err)
			return
		}
		e.deliver(st, img)
		release()
	}
}

func (e *Engine) streamFailed(st *frameStream, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != st || e.closed {
		return
	}
	e.stream = nil
	st.stop()
	e.logger.Warn("capture stream failed", "error", err)
	e.events.post(domain.EngineEventError, domain.NewDomainError("Engine.run", domain.ErrDeviceUnavailable, err.Error()))
}

// deliver hands one frame to every consumer. It runs on the stream goroutine
// without holding e.mu.
func (e *Engine) deliver(st *frameStream, img image.Image) {
	e.mu.Lock()
	if e.closed || e.stream != st {
		e.mu.Unlock()
		return
	}
	obs := e.observer
	preview := e.preview
	rec := e.rec
	photo := e.photo
	e.photo = nil
	if photo != nil {
		e.stopIfIdleLocked()
	}
	ts := uint64(time.Since(e.epoch).Microseconds())
	e.mu.Unlock()

	if !preview.IsZero() {
		w, h := int(preview.Width), int(preview.Height)
		if buf := obs.GetFrameBuffer(w * h * 4); len(buf) == w*h*4 {
			packRGB32(buf, img, w, h)
			obs.OnBufferUpdated()
		}
	}
	if rec != nil {
		if err := rec.write(img); err != nil {
			e.logger.Warn("recording frame dropped", "error", err)
			e.events.post(domain.EngineEventError, err)
		}
	}
	if photo != nil {
		err := writePhoto(photo.path, img, photo.mt, e.quality)
		e.events.post(domain.EngineEventPhotoTaken, err)
	}
	obs.UpdateCaptureTime(ts)
}
