package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError so that ErrorCodeOf can
// resolve the (sentinel, subsystem) pair to a specific code.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrInvalidState = fmt.Errorf("invalid state")
	ErrUnavailable  = fmt.Errorf("unavailable")
)

// Sentinel errors for the capture session.
var (
	ErrNotInitialized      = fmt.Errorf("camera not initialized")
	ErrAlreadyInitialized  = fmt.Errorf("capture device already initialized")
	ErrAlreadyInitializing = fmt.Errorf("capture device already initializing")
	ErrDuplicateRequest    = fmt.Errorf("method handler already called")
	ErrEngine              = fmt.Errorf("capture engine failure")
	ErrTextureRegistration = fmt.Errorf("failed to register texture")
	ErrDisposed            = fmt.Errorf("camera disposed before request was handled")
	ErrPhotoInFlight       = fmt.Errorf("photo already requested")
	ErrRecordingActive     = fmt.Errorf("previous recording must be stopped first")
	ErrNotRecording        = fmt.Errorf("recording cannot be stopped")
	ErrPreviewNotStarted   = fmt.Errorf("preview not started")
	ErrPreviewExists       = fmt.Errorf("preview already exists")
	ErrNoMediaType         = fmt.Errorf("no suitable media type")
	ErrDeviceUnavailable   = fmt.Errorf("capture device unavailable")

	// Gateway / RPC errors.
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
	ErrAuthInvalid       = fmt.Errorf("authentication failed")

	ErrConfigLoad   = fmt.Errorf("failed to load configuration")
	ErrCatalogWrite = fmt.Errorf("media catalog write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Controller.TakePicture")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "photo", "record"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is the machine-parseable error category delivered to callers
// alongside a failed result.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeCameraError         ErrorCode = "CAMERA_ERROR"
	CodeNotInitialized      ErrorCode = "CAMERA_NOT_INITIALIZED"
	CodeAlreadyInitialized  ErrorCode = "CAMERA_ALREADY_INITIALIZED"
	CodeAlreadyInitializing ErrorCode = "CAMERA_ALREADY_INITIALIZING"
	CodeDuplicateRequest    ErrorCode = "DUPLICATE_REQUEST"
	CodeCaptureError        ErrorCode = "CAPTURE_ERROR"
	CodeTextureError        ErrorCode = "TEXTURE_ERROR"
	CodeDisposed            ErrorCode = "PLUGIN_DISPOSED"
	CodePhotoInFlight       ErrorCode = "PHOTO_IN_FLIGHT"
	CodeRecordingActive     ErrorCode = "RECORDING_ACTIVE"
	CodeNotRecording        ErrorCode = "NOT_RECORDING"
	CodePreviewNotStarted   ErrorCode = "PREVIEW_NOT_STARTED"
	CodePreviewExists       ErrorCode = "PREVIEW_EXISTS"
	CodeNoMediaType         ErrorCode = "NO_MEDIA_TYPE"
	CodeDeviceUnavailable   ErrorCode = "DEVICE_UNAVAILABLE"
	CodeRPCMethodNotFound   ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload   ErrorCode = "RPC_INVALID_PAYLOAD"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeCatalogWrite        ErrorCode = "CATALOG_WRITE"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeCameraNotFound  ErrorCode = "CAMERA_NOT_FOUND"
	CodeCameraExists    ErrorCode = "CAMERA_EXISTS"
	CodeMediaNotFound   ErrorCode = "MEDIA_NOT_FOUND"
	CodeBreakerOpen     ErrorCode = "DEVICE_BREAKER_OPEN"
	CodeDriverNotFound  ErrorCode = "DRIVER_NOT_FOUND"
	CodeRendererClosed  ErrorCode = "RENDERER_CLOSED"
	CodeScheduleInvalid ErrorCode = "SCHEDULE_INVALID"
	CodePathForbidden   ErrorCode = "PATH_OUTSIDE_MEDIA_DIR"

	// Category error codes; fallback when no subsystem-specific code matches.
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeDuplicate    ErrorCode = "DUPLICATE"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeInvalidState ErrorCode = "INVALID_STATE"
	CodeUnavailable  ErrorCode = "UNAVAILABLE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:     CodeNotFound,
	ErrDuplicate:    CodeDuplicate,
	ErrInvalidInput: CodeInvalidInput,
	ErrInvalidState: CodeInvalidState,
	ErrUnavailable:  CodeUnavailable,

	ErrNotInitialized:      CodeNotInitialized,
	ErrAlreadyInitialized:  CodeAlreadyInitialized,
	ErrAlreadyInitializing: CodeAlreadyInitializing,
	ErrDuplicateRequest:    CodeDuplicateRequest,
	ErrEngine:              CodeCameraError,
	ErrTextureRegistration: CodeTextureError,
	ErrDisposed:            CodeDisposed,
	ErrPhotoInFlight:       CodePhotoInFlight,
	ErrRecordingActive:     CodeRecordingActive,
	ErrNotRecording:        CodeNotRecording,
	ErrPreviewNotStarted:   CodePreviewNotStarted,
	ErrPreviewExists:       CodePreviewExists,
	ErrNoMediaType:         CodeNoMediaType,
	ErrDeviceUnavailable:   CodeDeviceUnavailable,
	ErrRPCMethodNotFound:   CodeRPCMethodNotFound,
	ErrRPCInvalidPayload:   CodeRPCInvalidPayload,
	ErrAuthInvalid:         CodeAuthInvalid,
	ErrConfigLoad:          CodeConfigLoad,
	ErrCatalogWrite:        CodeCatalogWrite,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"camera":  CodeCameraNotFound,
		"catalog": CodeMediaNotFound,
		"driver":  CodeDriverNotFound,
	},
	ErrDuplicate: {
		"camera": CodeCameraExists,
	},
	ErrUnavailable: {
		"breaker":  CodeBreakerOpen,
		"renderer": CodeRendererClosed,
	},
	ErrInvalidInput: {
		"scheduler": CodeScheduleInvalid,
		"sandbox":   CodePathForbidden,
	},
	// Engine failures reported through the asynchronous error event.
	ErrEngine: {
		"event": CodeCaptureError,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}

// ResultError is the failed outcome delivered to a ResultSink caller.
type ResultError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Describe splits err into the code and message a caller receives.
// DomainError details are preferred over the full wrapped chain.
func Describe(err error) (ErrorCode, string) {
	if err == nil {
		return CodeUnknown, ""
	}
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code, re.Message
	}
	code := ErrorCodeOf(err)
	if code == CodeUnknown {
		code = CodeCameraError
	}
	var de *DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return code, de.Detail
	}
	return code, err.Error()
}
