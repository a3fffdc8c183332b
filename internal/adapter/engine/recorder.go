package engine

import (
	"bufio"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"camsession/internal/domain"
)

// recorder writes a Motion JPEG elementary stream: one JPEG image per frame,
// back to back.
type recorder struct {
	path    string
	mt      domain.MediaType
	quality int

	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	frames int
	audio  *audioCapture
	closed bool
}

func newRecorder(path string, mt domain.MediaType, quality int) (*recorder, error) {
	f, err := createMediaFile(path)
	if err != nil {
		return nil, err
	}
	return &recorder{path: path, mt: mt, quality: quality, f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (r *recorder) write(img image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if err := jpeg.Encode(r.w, fit(img, int(r.mt.Width), int(r.mt.Height)), &jpeg.Options{Quality: r.quality}); err != nil {
		return domain.WrapOp("recorder.write", err)
	}
	r.frames++
	return nil
}

// close flushes the file and stops the audio sidecar. It is idempotent.
func (r *recorder) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	if r.audio != nil {
		if err := r.audio.stop(); err != nil {
			firstErr = domain.WrapOp("recorder.close", err)
		}
	}
	if err := r.w.Flush(); err != nil && firstErr == nil {
		firstErr = domain.WrapOp("recorder.close", err)
	}
	if err := r.f.Close(); err != nil && firstErr == nil {
		firstErr = domain.WrapOp("recorder.close", err)
	}
	return firstErr
}

func (r *recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// writePhoto encodes img as a JPEG at mt's size.
func writePhoto(path string, img image.Image, mt domain.MediaType, quality int) error {
	f, err := createMediaFile(path)
	if err != nil {
		return err
	}
	if !mt.IsZero() {
		img = fit(img, int(mt.Width), int(mt.Height))
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(path)
		return domain.WrapOp("writePhoto", err)
	}
	return f.Close()
}

func createMediaFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.WrapOp("createMediaFile", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, domain.WrapOp("createMediaFile", err)
	}
	return f, nil
}
