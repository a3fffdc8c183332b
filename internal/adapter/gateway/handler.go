package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaptinlin/jsonschema"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
	"camsession/internal/security"
	"camsession/internal/usecase/camera"
	"camsession/internal/usecase/pending"
)

// defaultRequestTimeout bounds how long an RPC waits for its outcome.
const defaultRequestTimeout = 30 * time.Second

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Cameras        *camera.Manager
	Catalog        domain.MediaCatalog // can be nil
	Capture        config.CaptureConfig
	Paths          *security.Sandbox // confines client paths; nil allows any
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

func (d HandlerDeps) timeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return defaultRequestTimeout
}

// method is one RPC with the JSON Schema its payload must satisfy.
type method struct {
	name    string
	schema  string
	handler RPCHandler
}

const deviceSchema = `{
	"type": "object",
	"properties": {"deviceId": {"type": "string"}}
}`

// RegisterDefaultHandlers registers every camera RPC on the server.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) error {
	methods := []method{
		{"availableCameras", `{"type": "object"}`, availableCamerasHandler(deps)},
		{"create", `{
			"type": "object",
			"properties": {
				"deviceId": {"type": "string"},
				"enableAudio": {"type": "boolean"},
				"resolutionPreset": {"type": "string"}
			}
		}`, createHandler(deps)},
		{"initialize", `{
			"type": "object",
			"properties": {
				"deviceId": {"type": "string"},
				"enableAudio": {"type": "boolean"},
				"resolutionPreset": {"type": "string"}
			}
		}`, initializeHandler(deps)},
		{"takePicture", `{
			"type": "object",
			"properties": {
				"deviceId": {"type": "string"},
				"path": {"type": "string"}
			}
		}`, takePictureHandler(deps)},
		{"startVideoRecording", `{
			"type": "object",
			"properties": {
				"deviceId": {"type": "string"},
				"path": {"type": "string"},
				"maxVideoDuration": {"type": "integer", "minimum": 0}
			}
		}`, startRecordingHandler(deps)},
		{"stopVideoRecording", deviceSchema, stopRecordingHandler(deps)},
		{"pausePreview", deviceSchema, pausePreviewHandler(deps)},
		{"resumePreview", deviceSchema, resumePreviewHandler(deps)},
		{"dispose", deviceSchema, disposeHandler(deps)},
	}
	if deps.Catalog != nil {
		methods = append(methods, method{"listMedia", `{
			"type": "object",
			"properties": {
				"deviceId": {"type": "string"},
				"kind": {"enum": ["photo", "video"]},
				"limit": {"type": "integer", "minimum": 0, "maximum": 1000}
			}
		}`, listMediaHandler(deps)})
	}

	compiler := jsonschema.NewCompiler()
	for _, m := range methods {
		schema, err := compiler.Compile([]byte(m.schema))
		if err != nil {
			return fmt.Errorf("compile schema for %q: %w", m.name, err)
		}
		s.RegisterHandler(m.name, validated(m.name, schema, m.handler))
	}
	return nil
}

// validated checks the payload against schema before calling next.
func validated(name string, schema *jsonschema.Schema, next RPCHandler) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		if len(payload) == 0 || string(payload) == "null" {
			payload = json.RawMessage(`{}`)
		}
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, domain.NewDomainError(name, domain.ErrRPCInvalidPayload, fmt.Sprintf("invalid JSON: %v", err))
		}
		if result := schema.Validate(v); !result.IsValid() {
			return nil, domain.NewDomainError(name, domain.ErrRPCInvalidPayload, fmt.Sprintf("schema validation failed: %v", result.Error()))
		}
		return next(ctx, client, payload)
	}
}

// await runs a camera command and waits for its outcome.
func await(ctx context.Context, deps HandlerDeps, run func(domain.ResultSink)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, deps.timeout())
	defer cancel()
	fut := pending.NewFuture()
	run(fut)
	return fut.Wait(ctx)
}

func marshal(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return data, nil
}

type deviceRequest struct {
	DeviceID string `json:"deviceId"`
}

func (deps HandlerDeps) device(id string) string {
	if id == "" {
		return deps.Capture.DefaultDevice
	}
	return id
}

// outputPath checks a client-supplied path. Empty means "pick one".
func (deps HandlerDeps) outputPath(p string) (string, error) {
	if p == "" || deps.Paths == nil {
		return p, nil
	}
	return deps.Paths.ValidatePath(p)
}

func (deps HandlerDeps) camera(payload json.RawMessage) (*camera.Camera, error) {
	var req deviceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, domain.ErrRPCInvalidPayload
	}
	return deps.Cameras.Get(deps.device(req.DeviceID))
}

// --- cameras ---

func availableCamerasHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		devices, err := deps.Cameras.AvailableCameras()
		if err != nil {
			return nil, err
		}
		if devices == nil {
			devices = []domain.CameraDevice{}
		}
		return marshal(devices)
	}
}

type createRequest struct {
	DeviceID         string  `json:"deviceId"`
	EnableAudio      *bool   `json:"enableAudio"`
	ResolutionPreset *string `json:"resolutionPreset"`
}

type createResponse struct {
	CameraID int64 `json:"cameraId"`
}

// resolve fills defaults from the capture config.
func (deps HandlerDeps) resolve(req createRequest) (string, bool, domain.ResolutionPreset, error) {
	audio := deps.Capture.EnableAudio
	if req.EnableAudio != nil {
		audio = *req.EnableAudio
	}
	presetName := deps.Capture.ResolutionPreset
	if req.ResolutionPreset != nil {
		presetName = *req.ResolutionPreset
	}
	preset, err := domain.ParseResolutionPreset(presetName)
	if err != nil {
		return "", false, "", err
	}
	deviceID := deps.device(req.DeviceID)
	if deviceID == "" {
		return "", false, "", domain.NewDomainError("create", domain.ErrRPCInvalidPayload, "deviceId is required")
	}
	return deviceID, audio, preset, nil
}

func (deps HandlerDeps) create(ctx context.Context, payload json.RawMessage) (string, int64, error) {
	var req createRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", 0, domain.ErrRPCInvalidPayload
	}
	deviceID, audio, preset, err := deps.resolve(req)
	if err != nil {
		return "", 0, err
	}
	v, err := await(ctx, deps, func(sink domain.ResultSink) {
		deps.Cameras.Create(ctx, deviceID, audio, preset, sink)
	})
	if err != nil {
		return "", 0, err
	}
	id, _ := v.(int64)
	return deviceID, id, nil
}

func createHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		_, id, err := deps.create(ctx, payload)
		if err != nil {
			return nil, err
		}
		return marshal(createResponse{CameraID: id})
	}
}

type initializeResponse struct {
	CameraID int64 `json:"cameraId"`
	domain.PreviewSize
}

// initializeHandler creates the camera and starts its preview. The camera
// is disposed again when the preview cannot start.
func initializeHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		deviceID, id, err := deps.create(ctx, payload)
		if err != nil {
			return nil, err
		}
		cam, err := deps.Cameras.Get(deviceID)
		if err != nil {
			return nil, err
		}
		v, err := await(ctx, deps, func(sink domain.ResultSink) { cam.StartPreview(ctx, sink) })
		if err != nil {
			// A half-initialized camera would block the next initialize
			// with CAMERA_EXISTS.
			deps.Cameras.DisposeCamera(context.WithoutCancel(ctx), cam)
			return nil, err
		}
		size, _ := v.(domain.PreviewSize)
		return marshal(initializeResponse{CameraID: id, PreviewSize: size})
	}
}

func disposeHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req deviceRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Cameras.Dispose(ctx, deps.device(req.DeviceID)); err != nil {
			return nil, err
		}
		return marshal(map[string]bool{"disposed": true})
	}
}

// --- preview ---

func pausePreviewHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		cam, err := deps.camera(payload)
		if err != nil {
			return nil, err
		}
		if _, err := await(ctx, deps, func(sink domain.ResultSink) { cam.PausePreview(ctx, sink) }); err != nil {
			return nil, err
		}
		return marshal(map[string]bool{"paused": true})
	}
}

func resumePreviewHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		cam, err := deps.camera(payload)
		if err != nil {
			return nil, err
		}
		if _, err := await(ctx, deps, func(sink domain.ResultSink) { cam.ResumePreview(ctx, sink) }); err != nil {
			return nil, err
		}
		return marshal(map[string]bool{"paused": false})
	}
}

// --- media ---

type takePictureRequest struct {
	DeviceID string `json:"deviceId"`
	Path     string `json:"path"`
}

type pathResponse struct {
	Path string `json:"path"`
}

func takePictureHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req takePictureRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		out, err := deps.outputPath(req.Path)
		if err != nil {
			return nil, err
		}
		cam, err := deps.Cameras.Get(deps.device(req.DeviceID))
		if err != nil {
			return nil, err
		}
		v, err := await(ctx, deps, func(sink domain.ResultSink) { cam.TakePicture(ctx, out, sink) })
		if err != nil {
			return nil, err
		}
		path, _ := v.(string)
		return marshal(pathResponse{Path: path})
	}
}

type startRecordingRequest struct {
	DeviceID         string `json:"deviceId"`
	Path             string `json:"path"`
	MaxVideoDuration int64  `json:"maxVideoDuration"`
}

func startRecordingHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req startRecordingRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		out, err := deps.outputPath(req.Path)
		if err != nil {
			return nil, err
		}
		cam, err := deps.Cameras.Get(deps.device(req.DeviceID))
		if err != nil {
			return nil, err
		}
		if _, err := await(ctx, deps, func(sink domain.ResultSink) {
			cam.StartRecord(ctx, out, req.MaxVideoDuration, sink)
		}); err != nil {
			return nil, err
		}
		return marshal(map[string]bool{"recording": true})
	}
}

func stopRecordingHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		cam, err := deps.camera(payload)
		if err != nil {
			return nil, err
		}
		v, err := await(ctx, deps, func(sink domain.ResultSink) { cam.StopRecord(ctx, sink) })
		if err != nil {
			return nil, err
		}
		path, _ := v.(string)
		return marshal(pathResponse{Path: path})
	}
}

type listMediaRequest struct {
	DeviceID string `json:"deviceId"`
	Kind     string `json:"kind"`
	Limit    int    `json:"limit"`
}

func listMediaHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req listMediaRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		recs, err := deps.Catalog.List(ctx, domain.MediaFilter{
			DeviceID: req.DeviceID,
			Kind:     domain.MediaKind(req.Kind),
			Limit:    req.Limit,
		})
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []domain.MediaRecord{}
		}
		return marshal(recs)
	}
}
