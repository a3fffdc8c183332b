package gateway

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"camsession/internal/adapter/renderer"
	"camsession/internal/domain"
)

// previewHandler streams a camera's preview as multipart/x-mixed-replace
// JPEG frames until the client goes away or the texture is unregistered.
func previewHandler(r *renderer.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		frames, cancel, err := r.Subscribe(req.PathValue("deviceID"))
		if err != nil {
			code, msg := domain.Describe(err)
			http.Error(w, fmt.Sprintf("%s: %s", code, msg), http.StatusNotFound)
			return
		}
		defer cancel()

		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		write := func(frame []byte) error {
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {fmt.Sprint(len(frame))},
			})
			if err != nil {
				return err
			}
			if _, err := part.Write(frame); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		}

		if last, ok := r.Latest(req.PathValue("deviceID")); ok {
			if write(last) != nil {
				return
			}
		}
		for {
			select {
			case <-req.Context().Done():
				return
			case frame, ok := <-frames:
				if !ok {
					mw.Close()
					return
				}
				if write(frame) != nil {
					return
				}
			}
		}
	}
}
