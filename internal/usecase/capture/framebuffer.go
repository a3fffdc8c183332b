package capture

import (
	"sync"

	"camsession/internal/domain"
)

// frameStore holds the source buffer the engine writes preview frames into
// and the last published frame. The source buffer is only replaced when
// its length changes. publish copies it into front under mu, so readers
// never see a frame that is still being written. mu is never held while
// taking the controller lock.
type frameStore struct {
	mu     sync.Mutex
	back   []byte
	front  []byte
	ready  bool
	width  int
	height int
}

// buffer returns the source buffer, reallocating it only when length changes.
func (f *frameStore) buffer(length int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.back == nil || len(f.back) != length {
		f.back = make([]byte, length)
	}
	return f.back
}

// publish makes the frame written into the source buffer visible to the
// renderer. It runs on the goroutine that filled the buffer.
func (f *frameStore) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.back == nil {
		return
	}
	if len(f.front) != len(f.back) {
		f.front = make([]byte, len(f.back))
	}
	copy(f.front, f.back)
	f.ready = true
}

func (f *frameStore) setSize(width, height int) {
	f.mu.Lock()
	f.width, f.height = width, height
	f.mu.Unlock()
}

func (f *frameStore) size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

func (f *frameStore) reset() {
	f.mu.Lock()
	f.back, f.front, f.ready = nil, nil, false
	f.width, f.height = 0, 0
	f.mu.Unlock()
}

// convert turns the published RGB32 frame (B, G, R, X per pixel) into a
// newly allocated RGBA buffer with opaque alpha at the negotiated preview
// size.
func (f *frameStore) convert() *domain.PixelBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.ready || f.width <= 0 || f.height <= 0 {
		return nil
	}
	pixels := f.width * f.height
	if len(f.front) < pixels*4 {
		return nil
	}
	dest := make([]byte, pixels*4)
	convertRGB32ToRGBA(dest, f.front[:pixels*4])
	return &domain.PixelBuffer{Data: dest, Width: f.width, Height: f.height}
}

func convertRGB32ToRGBA(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xff
	}
}
