package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(deps RESTDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		gauge := func(name, help string, v any) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, v)
		}
		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
		}

		cams := deps.Cameras.Cameras()
		gauge("camsession_cameras_open", "Number of open camera sessions.", len(cams))
		pending := 0
		for _, cam := range cams {
			pending += cam.Pending()
		}
		gauge("camsession_requests_pending", "Requests awaiting an engine outcome.", pending)

		counter("camsession_cameras_created_total", "Camera sessions created.", metrics.CamerasCreated.Load())
		counter("camsession_pictures_total", "Pictures taken.", metrics.PicturesTotal.Load())
		counter("camsession_recordings_total", "Recordings finished.", metrics.RecordingsTotal.Load())
		counter("camsession_errors_total", "Capture errors reported.", metrics.ErrorsTotal.Load())

		gauge("camsession_uptime_seconds", "Seconds since the service started.", fmt.Sprintf("%.0f", time.Since(startTime).Seconds()))

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		gauge("go_goroutines", "Number of goroutines.", runtime.NumGoroutine())
		gauge("go_memstats_alloc_bytes", "Bytes of allocated heap objects.", mem.Alloc)
		gauge("go_memstats_sys_bytes", "Total bytes of memory obtained from the OS.", mem.Sys)
	}
}
