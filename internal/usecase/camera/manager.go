package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"camsession/internal/domain"
	"camsession/internal/usecase/pending"
)

// Manager owns one Camera per device id.
type Manager struct {
	platform  domain.Platform
	registrar domain.TextureRegistrar
	bus       domain.EventBus
	mediaDir  string
	logger    *slog.Logger

	mu      sync.Mutex
	cameras map[string]*Camera
}

// NewManager creates a Manager. Cameras share the platform, whose
// startup/shutdown calls are reference counted.
func NewManager(mediaDir string, platform domain.Platform, registrar domain.TextureRegistrar, bus domain.EventBus, logger *slog.Logger) *Manager {
	return &Manager{
		platform:  platform,
		registrar: registrar,
		bus:       bus,
		mediaDir:  mediaDir,
		logger:    logger,
		cameras:   make(map[string]*Camera),
	}
}

// AvailableCameras lists the capture devices the platform can open.
func (m *Manager) AvailableCameras() ([]domain.CameraDevice, error) {
	devices, err := m.platform.Devices()
	if err != nil {
		return nil, domain.WrapOp("Manager.AvailableCameras", err)
	}
	return devices, nil
}

// Create opens a camera for deviceID and initializes it. The sink receives
// the camera id. A camera whose creation fails is removed again.
func (m *Manager) Create(ctx context.Context, deviceID string, enableAudio bool, preset domain.ResolutionPreset, sink domain.ResultSink) {
	cam, err := m.open(deviceID)
	if err != nil {
		code, msg := domain.Describe(err)
		sink.Error(code, msg)
		return
	}
	cam.Create(ctx, enableAudio, preset, pending.SinkFunc{
		OnSuccess: sink.Success,
		OnError: func(code domain.ErrorCode, message string) {
			if code != domain.CodeDuplicateRequest && m.detach(deviceID, cam) {
				// Runs under the camera's controller lock; dispose elsewhere.
				go cam.Dispose(context.WithoutCancel(ctx))
			}
			sink.Error(code, message)
		},
	})
}

func (m *Manager) open(deviceID string) (*Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[deviceID]; ok {
		return nil, domain.NewSubSystemError("camera", "Manager.Create", domain.ErrDuplicate,
			fmt.Sprintf("camera with device id %q already exists", deviceID))
	}
	cam := New(deviceID, m.mediaDir, m.platform, m.registrar, m.bus, m.logger)
	m.cameras[deviceID] = cam
	return cam, nil
}

// detach removes cam if it is still the camera registered for deviceID.
func (m *Manager) detach(deviceID string, cam *Camera) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cameras[deviceID] != cam {
		return false
	}
	delete(m.cameras, deviceID)
	return true
}

// Get returns the camera for deviceID.
func (m *Manager) Get(deviceID string) (*Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cam, ok := m.cameras[deviceID]
	if !ok {
		return nil, domain.NewSubSystemError("camera", "Manager.Get", domain.ErrNotFound,
			fmt.Sprintf("no camera for device id %q", deviceID))
	}
	return cam, nil
}

// Cameras returns the open cameras ordered by device id.
func (m *Manager) Cameras() []*Camera {
	m.mu.Lock()
	out := make([]*Camera, 0, len(m.cameras))
	for _, cam := range m.cameras {
		out = append(out, cam)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID() < out[j].DeviceID() })
	return out
}

// Dispose tears down and forgets the camera for deviceID.
func (m *Manager) Dispose(ctx context.Context, deviceID string) error {
	cam, err := m.Get(deviceID)
	if err != nil {
		return err
	}
	m.detach(deviceID, cam)
	cam.Dispose(ctx)
	return nil
}

// DisposeCamera tears down cam and forgets it if it is still the camera
// registered for its device. It reports whether cam was registered.
func (m *Manager) DisposeCamera(ctx context.Context, cam *Camera) bool {
	if !m.detach(cam.DeviceID(), cam) {
		return false
	}
	cam.Dispose(ctx)
	return true
}

// Close disposes every camera.
func (m *Manager) Close(ctx context.Context) {
	for _, cam := range m.Cameras() {
		m.detach(cam.DeviceID(), cam)
		cam.Dispose(ctx)
	}
}
