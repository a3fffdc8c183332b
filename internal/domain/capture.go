package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SessionState is the lifecycle state of a capture session.
type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionInitializing
	SessionInitialized
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionInitializing:
		return "initializing"
	case SessionInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// OperationKind identifies an asynchronous operation whose outcome is
// delivered to exactly one pending caller.
type OperationKind string

const (
	OpCreateSession OperationKind = "create_session"
	OpStartPreview  OperationKind = "start_preview"
	OpPausePreview  OperationKind = "pause_preview"
	OpResumePreview OperationKind = "resume_preview"
	OpStartRecord   OperationKind = "start_record"
	OpStopRecord    OperationKind = "stop_record"
	OpTakePhoto     OperationKind = "take_photo"
)

// OperationKinds lists every kind in a stable order.
func OperationKinds() []OperationKind {
	return []OperationKind{
		OpCreateSession, OpStartPreview, OpPausePreview, OpResumePreview,
		OpStartRecord, OpStopRecord, OpTakePhoto,
	}
}

// ResolutionPreset caps the preview height the session negotiates.
type ResolutionPreset string

const (
	PresetLow       ResolutionPreset = "low"
	PresetMedium    ResolutionPreset = "medium"
	PresetHigh      ResolutionPreset = "high"
	PresetVeryHigh  ResolutionPreset = "veryHigh"
	PresetUltraHigh ResolutionPreset = "ultraHigh"
	PresetAuto      ResolutionPreset = "auto"
)

// UnboundedHeight disables the height cap during media type selection.
const UnboundedHeight = math.MaxUint32

// MaxPreviewHeight returns the preview height cap for the preset.
// PresetAuto and unknown presets are uncapped.
func (p ResolutionPreset) MaxPreviewHeight() uint32 {
	switch p {
	case PresetLow:
		return 240
	case PresetMedium:
		return 480
	case PresetHigh:
		return 720
	case PresetVeryHigh:
		return 1080
	case PresetUltraHigh:
		return 2160
	default:
		return UnboundedHeight
	}
}

// ParseResolutionPreset accepts the preset names plus "max" as an alias
// for PresetAuto. The empty string selects PresetAuto.
func ParseResolutionPreset(s string) (ResolutionPreset, error) {
	switch ResolutionPreset(s) {
	case PresetLow, PresetMedium, PresetHigh, PresetVeryHigh, PresetUltraHigh, PresetAuto:
		return ResolutionPreset(s), nil
	case "", "max":
		return PresetAuto, nil
	}
	return "", NewDomainError("ParseResolutionPreset", ErrInvalidInput, fmt.Sprintf("unknown preset %q", s))
}

// PixelFormat names the subtype of a media type.
type PixelFormat string

const (
	FormatRGB32 PixelFormat = "rgb32"
	FormatRGBA  PixelFormat = "rgba"
	FormatMJPEG PixelFormat = "mjpeg"
	FormatJPEG  PixelFormat = "jpeg"
	FormatYUYV  PixelFormat = "yuyv"
	FormatNV12  PixelFormat = "nv12"
	FormatI420  PixelFormat = "i420"
)

// MediaType describes one format a capture source can deliver.
type MediaType struct {
	Width     uint32      `json:"width"`
	Height    uint32      `json:"height"`
	Format    PixelFormat `json:"format"`
	FrameRate float32     `json:"frameRate,omitempty"`
}

// Area returns Width*Height.
func (m MediaType) Area() uint64 { return uint64(m.Width) * uint64(m.Height) }

// IsZero reports whether no dimensions have been negotiated.
func (m MediaType) IsZero() bool { return m.Width == 0 || m.Height == 0 }

// WithFormat returns a copy of m converted to the given subtype.
func (m MediaType) WithFormat(f PixelFormat) MediaType {
	m.Format = f
	return m
}

func (m MediaType) String() string {
	return fmt.Sprintf("%dx%d/%s", m.Width, m.Height, m.Format)
}

// ParseSize parses a "WIDTHxHEIGHT" string.
func ParseSize(s string) (uint32, uint32, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, NewDomainError("ParseSize", ErrInvalidInput, fmt.Sprintf("size %q is not WIDTHxHEIGHT", s))
	}
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return 0, 0, NewDomainError("ParseSize", ErrInvalidInput, fmt.Sprintf("width %q", w))
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return 0, 0, NewDomainError("ParseSize", ErrInvalidInput, fmt.Sprintf("height %q", h))
	}
	if width == 0 || height == 0 {
		return 0, 0, NewDomainError("ParseSize", ErrInvalidInput, fmt.Sprintf("size %q has a zero dimension", s))
	}
	return uint32(width), uint32(height), nil
}

// StreamKind selects which source stream a media type applies to.
type StreamKind int

const (
	StreamPreview StreamKind = iota
	StreamRecord
)

func (s StreamKind) String() string {
	if s == StreamPreview {
		return "preview"
	}
	return "record"
}

// PixelBuffer is a converted RGBA frame handed to the renderer.
type PixelBuffer struct {
	Data   []byte
	Width  int
	Height int
}

// PreviewSize is the success value of a started preview.
type PreviewSize struct {
	Width  float64 `json:"previewWidth"`
	Height float64 `json:"previewHeight"`
}

// CameraDevice is an enumerated capture device.
type CameraDevice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ResultSink receives the single outcome of an asynchronous operation.
// Implementations must not call back into the session that resolves them.
type ResultSink interface {
	Success(value any)
	Error(code ErrorCode, message string)
}
