package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
)

// Default breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 3
	defaultBreakerTimeout     time.Duration = 30 * time.Second
)

// Options configures a Platform.
type Options struct {
	// AudioBackend is "portaudio" or "none".
	AudioBackend    string
	AudioSampleRate int
	JPEGQuality     int
	Breaker         config.BreakerConfig
}

// VideoSource is an opened camera. It doubles as the engine's
// domain.CaptureSource.
type VideoSource struct {
	dev       Device
	closeOnce sync.Once
	closeErr  error
}

func (v *VideoSource) DeviceID() string { return v.dev.ID() }

func (v *VideoSource) Close() error {
	v.closeOnce.Do(func() { v.closeErr = v.dev.Close() })
	return v.closeErr
}

// MediaTypes returns the device modes. Preview and record streams share
// one sensor, so both kinds see the same list.
func (v *VideoSource) MediaTypes(domain.StreamKind) ([]domain.MediaType, error) {
	return slices.Clone(v.dev.MediaTypes()), nil
}

// Platform implements domain.Platform over a Driver. Startup and Shutdown
// are reference counted across cameras; the audio runtime lives while the
// count is positive.
type Platform struct {
	driver  Driver
	opts    Options
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[Device]

	// Audio runtime hooks; portaudio when built with the portaudio tag.
	initAudio      func() error
	terminateAudio func() error
	openAudio      func(sampleRate int) (sampleStream, error)

	mu   sync.Mutex
	refs int
}

// NewPlatform creates a Platform serving devices from driver.
func NewPlatform(driver Driver, opts Options, logger *slog.Logger) *Platform {
	p := &Platform{
		driver:         driver,
		opts:           opts,
		logger:         logger,
		initAudio:      initPortAudio,
		terminateAudio: terminatePortAudio,
		openAudio:      openPortAudio,
	}
	if opts.Breaker.Enabled {
		p.breaker = newOpenBreaker(driver.Name(), opts.Breaker, logger)
	}
	return p
}

func newOpenBreaker(name string, cfg config.BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[Device] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	return gobreaker.NewCircuitBreaker[Device](gobreaker.Settings{
		Name:        "device-open:" + name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A missing device is the caller's mistake, not a sick driver.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
	})
}

func (p *Platform) audioEnabled() bool { return p.opts.AudioBackend == "portaudio" }

func (p *Platform) Startup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 && p.audioEnabled() {
		if err := p.initAudio(); err != nil {
			return domain.NewDomainError("Platform.Startup", domain.ErrDeviceUnavailable,
				fmt.Sprintf("initialize audio: %v", err))
		}
	}
	p.refs++
	return nil
}

func (p *Platform) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		return domain.NewDomainError("Platform.Shutdown", domain.ErrInvalidState, "shutdown without startup")
	}
	p.refs--
	if p.refs == 0 && p.audioEnabled() {
		if err := p.terminateAudio(); err != nil {
			p.logger.Warn("audio terminate failed", "error", err)
		}
	}
	return nil
}

// Started reports the current startup reference count.
func (p *Platform) Started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs
}

func (p *Platform) NewEngine() (domain.CaptureEngine, error) {
	if p.Started() == 0 {
		return nil, domain.NewDomainError("Platform.NewEngine", domain.ErrNotInitialized, "platform not started")
	}
	return NewEngine(p.opts.JPEGQuality, p.logger.With("component", "engine")), nil
}

func (p *Platform) VideoSource(deviceID string) (domain.DeviceSource, error) {
	open := func() (Device, error) { return p.driver.Open(deviceID) }
	var (
		dev Device
		err error
	)
	if p.breaker != nil {
		dev, err = p.breaker.Execute(open)
	} else {
		dev, err = open()
	}
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, domain.NewSubSystemError("breaker", "Platform.VideoSource", domain.ErrUnavailable,
			fmt.Sprintf("device opens for %s are failing; retry later", p.driver.Name()))
	case err != nil:
		return nil, domain.WrapOp("Platform.VideoSource", err)
	}
	return &VideoSource{dev: dev}, nil
}

func (p *Platform) AudioSource() (domain.DeviceSource, error) {
	if !p.audioEnabled() {
		return nil, domain.NewDomainError("Platform.AudioSource", domain.ErrDeviceUnavailable, "audio capture is disabled")
	}
	rate := p.opts.AudioSampleRate
	if rate <= 0 {
		rate = 44100
	}
	return &AudioSource{sampleRate: rate, open: p.openAudio}, nil
}

func (p *Platform) Devices() ([]domain.CameraDevice, error) {
	devices, err := p.driver.Devices()
	if err != nil {
		return nil, domain.WrapOp("Platform.Devices", err)
	}
	return devices, nil
}
