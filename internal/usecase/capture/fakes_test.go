package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
)

var errUnplugged = errors.New("device unplugged")

type fakeSource struct {
	id     string
	closed bool
}

func (s *fakeSource) DeviceID() string { return s.id }
func (s *fakeSource) Close() error     { s.closed = true; return nil }

type fakeCaptureSource struct {
	preview []domain.MediaType
	record  []domain.MediaType
}

func (s *fakeCaptureSource) MediaTypes(stream domain.StreamKind) ([]domain.MediaType, error) {
	if stream == domain.StreamPreview {
		return s.preview, nil
	}
	return s.record, nil
}

// fakeEngine records calls; events are delivered by the test.
type fakeEngine struct {
	mu       sync.Mutex
	observer domain.EngineObserver
	source   *fakeCaptureSource
	calls    []string

	initErr         error
	startPreviewErr error
	startRecordErr  error
	stopRecordErr   error
	takePhotoErr    error
	closed          bool
}

func newFakeEngine() *fakeEngine {
	types := []domain.MediaType{
		{Width: 640, Height: 480, Format: domain.FormatYUYV},
		{Width: 1280, Height: 720, Format: domain.FormatYUYV},
		{Width: 1920, Height: 1080, Format: domain.FormatMJPEG},
	}
	return &fakeEngine{source: &fakeCaptureSource{preview: types, record: types}}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) count(call string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (e *fakeEngine) Initialize(observer domain.EngineObserver, audio, video domain.DeviceSource) error {
	e.record("Initialize")
	e.mu.Lock()
	e.observer = observer
	e.mu.Unlock()
	return e.initErr
}

func (e *fakeEngine) Source() (domain.CaptureSource, error) { return e.source, nil }

func (e *fakeEngine) StartPreview(mt domain.MediaType) error {
	e.record("StartPreview:" + mt.String())
	return e.startPreviewErr
}

func (e *fakeEngine) StopPreview() error { e.record("StopPreview"); return nil }

func (e *fakeEngine) StartRecord(path string, mt domain.MediaType) error {
	e.record("StartRecord:" + path)
	return e.startRecordErr
}

func (e *fakeEngine) StopRecord() error { e.record("StopRecord"); return e.stopRecordErr }

func (e *fakeEngine) TakePhoto(path string, mt domain.MediaType) error {
	e.record("TakePhoto:" + path)
	return e.takePhotoErr
}

func (e *fakeEngine) Close() error {
	e.record("Close")
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) emit(kind domain.EngineEventKind, err error) {
	e.mu.Lock()
	obs := e.observer
	e.mu.Unlock()
	obs.OnEvent(domain.EngineEvent{Kind: kind, Err: err})
}

func (e *fakeEngine) frame(us uint64) {
	e.mu.Lock()
	obs := e.observer
	e.mu.Unlock()
	obs.UpdateCaptureTime(us)
}

type fakePlatform struct {
	mu         sync.Mutex
	engine     *fakeEngine
	startups   int
	shutdowns  int
	startupErr error
	videoErr   error
	video      *fakeSource
	audio      *fakeSource
	order      *[]string
}

func (p *fakePlatform) Startup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startupErr != nil {
		return p.startupErr
	}
	p.startups++
	return nil
}

func (p *fakePlatform) Shutdown() error {
	p.mu.Lock()
	p.shutdowns++
	p.mu.Unlock()
	if p.order != nil {
		*p.order = append(*p.order, "Shutdown")
	}
	return nil
}

func (p *fakePlatform) NewEngine() (domain.CaptureEngine, error) { return p.engine, nil }

func (p *fakePlatform) VideoSource(deviceID string) (domain.DeviceSource, error) {
	if p.videoErr != nil {
		return nil, p.videoErr
	}
	p.video = &fakeSource{id: deviceID}
	return p.video, nil
}

func (p *fakePlatform) AudioSource() (domain.DeviceSource, error) {
	p.audio = &fakeSource{id: "default-audio"}
	return p.audio, nil
}

func (p *fakePlatform) Devices() ([]domain.CameraDevice, error) {
	return []domain.CameraDevice{{ID: "cam0", Label: "Fake Camera"}}, nil
}

type fakeRegistrar struct {
	mu           sync.Mutex
	nextID       int64
	registerErr  error
	textures     map[int64]domain.TextureFunc
	unregistered []int64
	marked       int
	order        *[]string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{nextID: 7, textures: map[int64]domain.TextureFunc{}}
}

func (r *fakeRegistrar) RegisterTexture(deviceID string, fn domain.TextureFunc) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return -1, r.registerErr
	}
	id := r.nextID
	r.nextID++
	r.textures[id] = fn
	return id, nil
}

func (r *fakeRegistrar) UnregisterTexture(id int64) {
	r.mu.Lock()
	r.unregistered = append(r.unregistered, id)
	delete(r.textures, id)
	r.mu.Unlock()
	if r.order != nil {
		*r.order = append(*r.order, "UnregisterTexture")
	}
}

func (r *fakeRegistrar) MarkTextureFrameAvailable(id int64) {
	r.mu.Lock()
	r.marked++
	r.mu.Unlock()
}

func (r *fakeRegistrar) Marked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marked
}

// recordingListener captures controller outcomes as strings.
type recordingListener struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (l *recordingListener) add(s string) {
	l.mu.Lock()
	l.events = append(l.events, s)
	l.mu.Unlock()
}

func (l *recordingListener) fail(s string, err error) {
	l.mu.Lock()
	l.events = append(l.events, s)
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *recordingListener) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *recordingListener) LastErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs[len(l.errs)-1]
}

func (l *recordingListener) OnCreateCaptureEngineSucceeded(id int64) {
	l.add(fmt.Sprintf("create:ok:%d", id))
}
func (l *recordingListener) OnCreateCaptureEngineFailed(err error) { l.fail("create:fail", err) }
func (l *recordingListener) OnStartPreviewSucceeded(w, h uint32) {
	l.add(fmt.Sprintf("preview:ok:%dx%d", w, h))
}
func (l *recordingListener) OnStartPreviewFailed(err error)  { l.fail("preview:fail", err) }
func (l *recordingListener) OnPausePreviewSucceeded()        { l.add("pause:ok") }
func (l *recordingListener) OnPausePreviewFailed(err error)  { l.fail("pause:fail", err) }
func (l *recordingListener) OnResumePreviewSucceeded()       { l.add("resume:ok") }
func (l *recordingListener) OnResumePreviewFailed(err error) { l.fail("resume:fail", err) }
func (l *recordingListener) OnStartRecordSucceeded()         { l.add("record:ok") }
func (l *recordingListener) OnStartRecordFailed(err error)   { l.fail("record:fail", err) }
func (l *recordingListener) OnStopRecordSucceeded(path string) {
	l.add("stop:ok:" + path)
}
func (l *recordingListener) OnStopRecordFailed(err error) { l.fail("stop:fail", err) }
func (l *recordingListener) OnTakePictureSucceeded(path string) {
	l.add("photo:ok:" + path)
}
func (l *recordingListener) OnTakePictureFailed(err error) { l.fail("photo:fail", err) }
func (l *recordingListener) OnVideoRecordSucceeded(path string, durationMs int64) {
	l.add(fmt.Sprintf("video:ok:%s:%d", path, durationMs))
}
func (l *recordingListener) OnVideoRecordFailed(err error) { l.fail("video:fail", err) }
func (l *recordingListener) OnCaptureError(err error)      { l.fail("capture:error", err) }

type harness struct {
	engine    *fakeEngine
	platform  *fakePlatform
	registrar *fakeRegistrar
	listener  *recordingListener
	ctrl      *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine := newFakeEngine()
	h := &harness{
		engine:    engine,
		platform:  &fakePlatform{engine: engine},
		registrar: newFakeRegistrar(),
		listener:  &recordingListener{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.ctrl = NewController(h.platform, h.registrar, h.listener, logger)
	return h
}

// initialized drives the controller to SessionInitialized.
func (h *harness) initialized(t *testing.T) *harness {
	t.Helper()
	h.ctrl.Initialize("cam0", false, domain.PresetHigh)
	h.engine.emit(domain.EngineEventInitialized, nil)
	require.Equal(t, domain.SessionInitialized, h.ctrl.State())
	return h
}

// previewing drives the controller to a running preview.
func (h *harness) previewing(t *testing.T) *harness {
	t.Helper()
	h.initialized(t)
	h.ctrl.StartPreview()
	h.engine.frame(1)
	require.Equal(t, PreviewRunning, h.ctrl.PreviewState())
	return h
}
