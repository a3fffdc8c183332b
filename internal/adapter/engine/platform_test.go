package engine

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
	"camsession/internal/infra/logger"
)

type flakyDriver struct {
	mu    sync.Mutex
	err   error
	opens int
}

func (d *flakyDriver) Name() string { return "flaky" }

func (d *flakyDriver) Devices() ([]domain.CameraDevice, error) {
	return []domain.CameraDevice{{ID: "cam0", Label: "Flaky"}}, nil
}

func (d *flakyDriver) Open(deviceID string) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if deviceID != "cam0" {
		return nil, domain.NewSubSystemError("driver", "flakyDriver.Open", domain.ErrNotFound, "no such camera")
	}
	if d.err != nil {
		return nil, d.err
	}
	return stubDevice{reader: newBlockingReader()}, nil
}

func (d *flakyDriver) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type blockingReader struct {
	done chan struct{}
	once sync.Once
}

func newBlockingReader() *blockingReader { return &blockingReader{done: make(chan struct{})} }

func (r *blockingReader) Read() (image.Image, func(), error) {
	<-r.done
	return nil, nil, errors.New("closed")
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}

func newTestPlatform(drv Driver, opts Options) (*Platform, *int, *int) {
	p := NewPlatform(drv, opts, logger.Discard())
	inits, terms := 0, 0
	p.initAudio = func() error { inits++; return nil }
	p.terminateAudio = func() error { terms++; return nil }
	return p, &inits, &terms
}

func TestPlatformStartupIsReferenceCounted(t *testing.T) {
	p, inits, terms := newTestPlatform(&flakyDriver{}, Options{AudioBackend: "portaudio"})

	require.NoError(t, p.Startup())
	require.NoError(t, p.Startup())
	assert.Equal(t, 1, *inits)
	assert.Equal(t, 2, p.Started())

	require.NoError(t, p.Shutdown())
	assert.Equal(t, 0, *terms)
	require.NoError(t, p.Shutdown())
	assert.Equal(t, 1, *terms)

	assert.ErrorIs(t, p.Shutdown(), domain.ErrInvalidState)
}

func TestPlatformStartupWithoutAudio(t *testing.T) {
	p, inits, _ := newTestPlatform(&flakyDriver{}, Options{AudioBackend: "none"})
	require.NoError(t, p.Startup())
	assert.Zero(t, *inits)

	_, err := p.AudioSource()
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestPlatformStartupAudioFailure(t *testing.T) {
	p := NewPlatform(&flakyDriver{}, Options{AudioBackend: "portaudio"}, logger.Discard())
	p.initAudio = func() error { return errors.New("no host api") }

	err := p.Startup()
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Zero(t, p.Started())
}

func TestPlatformNewEngineRequiresStartup(t *testing.T) {
	p, _, _ := newTestPlatform(&flakyDriver{}, Options{})
	_, err := p.NewEngine()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	require.NoError(t, p.Startup())
	eng, err := p.NewEngine()
	require.NoError(t, err)
	require.NoError(t, eng.Close())
}

func TestPlatformVideoSource(t *testing.T) {
	p, _, _ := newTestPlatform(&flakyDriver{}, Options{})

	src, err := p.VideoSource("cam0")
	require.NoError(t, err)
	assert.Equal(t, "stub", src.DeviceID())
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = p.VideoSource("cam9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.CodeDriverNotFound, domain.ErrorCodeOf(err))
}

func TestPlatformBreakerOpensAfterFailures(t *testing.T) {
	drv := &flakyDriver{err: errors.New("device busy")}
	p, _, _ := newTestPlatform(drv, Options{Breaker: config.BreakerConfig{
		Enabled: true, MaxFailures: 2, Timeout: time.Minute,
	}})

	for range 2 {
		_, err := p.VideoSource("cam0")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnavailable)
	}

	_, err := p.VideoSource("cam0")
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, domain.CodeBreakerOpen, domain.ErrorCodeOf(err))
	assert.Equal(t, 2, drv.openCount(), "open breaker short-circuits the driver")
}

func TestPlatformBreakerIgnoresMissingDevices(t *testing.T) {
	drv := &flakyDriver{}
	p, _, _ := newTestPlatform(drv, Options{Breaker: config.BreakerConfig{
		Enabled: true, MaxFailures: 1, Timeout: time.Minute,
	}})

	for range 3 {
		_, err := p.VideoSource("nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	_, err := p.VideoSource("cam0")
	assert.NoError(t, err)
}

func TestPlatformDevices(t *testing.T) {
	p, _, _ := newTestPlatform(&flakyDriver{}, Options{})
	devices, err := p.Devices()
	require.NoError(t, err)
	assert.Equal(t, []domain.CameraDevice{{ID: "cam0", Label: "Flaky"}}, devices)
}

func TestEnginePhotoIsSingleFlight(t *testing.T) {
	e := NewEngine(0, logger.Discard())
	defer e.Close()
	require.NoError(t, e.Initialize(&testObserver{}, nil, &VideoSource{dev: stubDevice{reader: newBlockingReader()}}))

	require.NoError(t, e.TakePhoto("a.jpg", small))
	assert.ErrorIs(t, e.TakePhoto("b.jpg", small), domain.ErrPhotoInFlight)
}
