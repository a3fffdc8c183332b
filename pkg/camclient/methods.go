package camclient

import (
	"context"
	"encoding/json"
	"time"
)

// Device is a capture device the gateway can open.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PreviewSize is the size of a running preview.
type PreviewSize struct {
	CameraID int64   `json:"cameraId"`
	Width    float64 `json:"previewWidth"`
	Height   float64 `json:"previewHeight"`
}

// Event is a session notification pushed by the gateway.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	CameraID  int64           `json:"cameraId,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MediaRecord is a cataloged photo or video.
type MediaRecord struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Kind       string    `json:"kind"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"sizeBytes"`
	DurationMs int64     `json:"durationMs,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateOptions selects the device and capture settings. Nil fields take
// the gateway's configured defaults.
type CreateOptions struct {
	DeviceID         string  `json:"deviceId,omitempty"`
	EnableAudio      *bool   `json:"enableAudio,omitempty"`
	ResolutionPreset *string `json:"resolutionPreset,omitempty"`
}

type deviceParams struct {
	DeviceID string `json:"deviceId,omitempty"`
}

type pathResult struct {
	Path string `json:"path"`
}

// AvailableCameras lists the gateway's capture devices.
func (c *Client) AvailableCameras(ctx context.Context) ([]Device, error) {
	var out []Device
	err := c.Call(ctx, "availableCameras", nil, &out)
	return out, err
}

// Create opens a camera without starting its preview.
func (c *Client) Create(ctx context.Context, opts CreateOptions) (int64, error) {
	var out struct {
		CameraID int64 `json:"cameraId"`
	}
	err := c.Call(ctx, "create", opts, &out)
	return out.CameraID, err
}

// Initialize opens a camera and starts its preview.
func (c *Client) Initialize(ctx context.Context, opts CreateOptions) (PreviewSize, error) {
	var out PreviewSize
	err := c.Call(ctx, "initialize", opts, &out)
	return out, err
}

// TakePicture captures a still. An empty path lets the gateway pick one.
func (c *Client) TakePicture(ctx context.Context, deviceID, path string) (string, error) {
	var out pathResult
	err := c.Call(ctx, "takePicture", struct {
		DeviceID string `json:"deviceId,omitempty"`
		Path     string `json:"path,omitempty"`
	}{deviceID, path}, &out)
	return out.Path, err
}

// StartVideoRecording starts a recording. A positive maxDuration stops it
// automatically.
func (c *Client) StartVideoRecording(ctx context.Context, deviceID, path string, maxDuration time.Duration) error {
	return c.Call(ctx, "startVideoRecording", struct {
		DeviceID         string `json:"deviceId,omitempty"`
		Path             string `json:"path,omitempty"`
		MaxVideoDuration int64  `json:"maxVideoDuration,omitempty"`
	}{deviceID, path, maxDuration.Milliseconds()}, nil)
}

// StopVideoRecording stops the recording and returns the file path.
func (c *Client) StopVideoRecording(ctx context.Context, deviceID string) (string, error) {
	var out pathResult
	err := c.Call(ctx, "stopVideoRecording", deviceParams{deviceID}, &out)
	return out.Path, err
}

func (c *Client) PausePreview(ctx context.Context, deviceID string) error {
	return c.Call(ctx, "pausePreview", deviceParams{deviceID}, nil)
}

func (c *Client) ResumePreview(ctx context.Context, deviceID string) error {
	return c.Call(ctx, "resumePreview", deviceParams{deviceID}, nil)
}

// Dispose closes the camera and fails its outstanding operations.
func (c *Client) Dispose(ctx context.Context, deviceID string) error {
	return c.Call(ctx, "dispose", deviceParams{deviceID}, nil)
}

// ListMedia lists cataloged media, newest first. Zero limit uses the
// gateway default.
func (c *Client) ListMedia(ctx context.Context, deviceID, kind string, limit int) ([]MediaRecord, error) {
	var out []MediaRecord
	err := c.Call(ctx, "listMedia", struct {
		DeviceID string `json:"deviceId,omitempty"`
		Kind     string `json:"kind,omitempty"`
		Limit    int    `json:"limit,omitempty"`
	}{deviceID, kind, limit}, &out)
	return out, err
}
