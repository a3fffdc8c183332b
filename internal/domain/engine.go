package domain

// EngineEventKind identifies an asynchronous capture engine event.
type EngineEventKind int

const (
	EngineEventUnknown EngineEventKind = iota
	EngineEventError
	EngineEventInitialized
	EngineEventPreviewStarted
	EngineEventPreviewStopped
	EngineEventRecordStarted
	EngineEventRecordStopped
	EngineEventPhotoTaken
	EngineEventStreamBlocked
	EngineEventStreamUnblocked
)

var engineEventNames = map[EngineEventKind]string{
	EngineEventError:           "error",
	EngineEventInitialized:     "initialized",
	EngineEventPreviewStarted:  "preview_started",
	EngineEventPreviewStopped:  "preview_stopped",
	EngineEventRecordStarted:   "record_started",
	EngineEventRecordStopped:   "record_stopped",
	EngineEventPhotoTaken:      "photo_taken",
	EngineEventStreamBlocked:   "stream_blocked",
	EngineEventStreamUnblocked: "stream_unblocked",
}

func (k EngineEventKind) String() string {
	if name, ok := engineEventNames[k]; ok {
		return name
	}
	return "unknown"
}

// EngineEvent is delivered to the EngineObserver. A nil Err means the
// underlying operation succeeded.
type EngineEvent struct {
	Kind EngineEventKind
	Err  error
}

// EngineObserver is implemented by the capture controller.
//
// Engines deliver every callback from their own goroutines and never
// synchronously from inside a CaptureEngine method: the controller holds its
// session lock while issuing engine calls.
type EngineObserver interface {
	OnEvent(ev EngineEvent)
	// GetFrameBuffer returns a writable buffer of exactly length bytes for
	// the next RGB32 preview frame.
	GetFrameBuffer(length int) []byte
	// OnBufferUpdated signals that the buffer from GetFrameBuffer was filled.
	OnBufferUpdated()
	// UpdateCaptureTime reports the timestamp of the latest sample in
	// microseconds since the stream started.
	UpdateCaptureTime(captureTimeMicros uint64)
}

// DeviceSource is an opened audio or video device.
type DeviceSource interface {
	DeviceID() string
	Close() error
}

// CaptureSource reports what the video device can deliver.
type CaptureSource interface {
	MediaTypes(stream StreamKind) ([]MediaType, error)
}

// CaptureEngine drives one video source and optional audio source.
// Operation outcomes arrive as EngineEvents; a returned error means the
// request could not be submitted.
type CaptureEngine interface {
	Initialize(observer EngineObserver, audio, video DeviceSource) error
	Source() (CaptureSource, error)
	StartPreview(mt MediaType) error
	StopPreview() error
	StartRecord(path string, mt MediaType) error
	StopRecord() error
	TakePhoto(path string, mt MediaType) error
	Close() error
}

// Platform is the process-wide capture runtime. Startup and Shutdown calls
// must be balanced.
type Platform interface {
	Startup() error
	Shutdown() error
	NewEngine() (CaptureEngine, error)
	VideoSource(deviceID string) (DeviceSource, error)
	AudioSource() (DeviceSource, error)
	Devices() ([]CameraDevice, error)
}

// TextureFunc converts the latest preview frame for the renderer.
type TextureFunc func(width, height int) *PixelBuffer

// TextureRegistrar is the external renderer the preview is published to.
type TextureRegistrar interface {
	RegisterTexture(deviceID string, texture TextureFunc) (int64, error)
	UnregisterTexture(id int64)
	MarkTextureFrameAvailable(id int64)
}
