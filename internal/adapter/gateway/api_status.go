package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"camsession/internal/adapter/renderer"
	"camsession/internal/domain"
	"camsession/internal/usecase/camera"
)

// RESTDeps holds dependencies of the HTTP endpoints.
type RESTDeps struct {
	Cameras  *camera.Manager
	Renderer *renderer.Renderer // can be nil
	Bus      domain.EventBus    // can be nil
}

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Service ServiceStatus  `json:"service"`
	Cameras []CameraStatus `json:"cameras"`
	Media   MediaStatus    `json:"media"`
}

// ServiceStatus holds process overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// CameraStatus describes one open camera.
type CameraStatus struct {
	DeviceID  string          `json:"device_id"`
	CameraID  int64           `json:"camera_id"`
	State     string          `json:"state"`
	Preview   string          `json:"preview"`
	Recording string          `json:"recording"`
	Pending   int             `json:"pending"`
	Texture   *renderer.Stats `json:"texture,omitempty"`
}

// MediaStatus holds capture counters.
type MediaStatus struct {
	PicturesTotal   int64 `json:"pictures_total"`
	RecordingsTotal int64 `json:"recordings_total"`
	ErrorsTotal     int64 `json:"errors_total"`
}

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	CamerasCreated  atomic.Int64
	PicturesTotal   atomic.Int64
	RecordingsTotal atomic.Int64
	ErrorsTotal     atomic.Int64
}

// subscribe counts session notifications into m.
func (m *Metrics) subscribe(bus domain.EventBus) {
	count := func(c *atomic.Int64) domain.EventHandler {
		return func(context.Context, domain.Event) { c.Add(1) }
	}
	bus.Subscribe(domain.EventCameraCreated, count(&m.CamerasCreated))
	bus.Subscribe(domain.EventPictureTaken, count(&m.PicturesTotal))
	bus.Subscribe(domain.EventRecordingStopped, count(&m.RecordingsTotal))
	bus.Subscribe(domain.EventVideoRecorded, count(&m.RecordingsTotal))
	bus.Subscribe(domain.EventCameraError, count(&m.ErrorsTotal))
	bus.Subscribe(domain.EventRecordingFailed, count(&m.ErrorsTotal))
}

// RegisterRESTHandlers registers the HTTP endpoints on the gateway server.
// /healthz is unauthenticated; everything else requires a token.
func RegisterRESTHandlers(s *Server, deps RESTDeps) *Metrics {
	startTime := time.Now()
	metrics := &Metrics{}
	if deps.Bus != nil {
		metrics.subscribe(deps.Bus)
	}

	s.RegisterHTTPRoute("GET /healthz", healthHandler(deps))
	s.RegisterHTTPRoute("GET /api/v1/status", s.authenticated(statusHandler(deps, startTime, metrics)))
	s.RegisterHTTPRoute("GET /metrics", s.authenticated(metricsHandler(deps, startTime, metrics)))
	if deps.Renderer != nil {
		s.RegisterHTTPRoute("GET /preview/{deviceID}", s.authenticated(previewHandler(deps.Renderer)))
	}
	return metrics
}

func healthHandler(deps RESTDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"cameras": len(deps.Cameras.Cameras()),
		})
	}
}

func cameraStatuses(deps RESTDeps) []CameraStatus {
	cams := deps.Cameras.Cameras()
	out := make([]CameraStatus, 0, len(cams))
	for _, cam := range cams {
		ctrl := cam.Controller()
		st := CameraStatus{
			DeviceID:  cam.DeviceID(),
			CameraID:  cam.CameraID(),
			State:     cam.State().String(),
			Preview:   ctrl.PreviewState().String(),
			Recording: ctrl.RecordingMode().String(),
			Pending:   cam.Pending(),
		}
		if deps.Renderer != nil {
			if stats, ok := deps.Renderer.Stats(cam.CameraID()); ok {
				st.Texture = &stats
			}
		}
		out = append(out, st)
	}
	return out
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(deps RESTDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Service: ServiceStatus{
				Name:          "camsession",
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Cameras: cameraStatuses(deps),
			Media: MediaStatus{
				PicturesTotal:   metrics.PicturesTotal.Load(),
				RecordingsTotal: metrics.RecordingsTotal.Load(),
				ErrorsTotal:     metrics.ErrorsTotal.Load(),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
