// Package renderer implements domain.TextureRegistrar. Each registered
// texture pulls converted preview frames when marked available, encodes them
// as JPEG and fans them out to subscribers such as the gateway MJPEG stream.
package renderer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
)

// subscriberBuffer is the number of frames a slow subscriber may lag
// behind before frames are dropped for it.
const subscriberBuffer = 2

// Stats reports per-texture counters.
type Stats struct {
	Marked    uint64
	Throttled uint64
	Encoded   uint64
}

// Renderer is a TextureRegistrar backed by per-texture goroutines.
type Renderer struct {
	logger  *slog.Logger
	limit   rate.Limit
	burst   int
	quality int

	mu       sync.Mutex
	nextID   int64
	textures map[int64]*texture
	byDevice map[string]int64
	closed   bool
}

// New creates a Renderer. A non-positive MaxFPS disables throttling.
func New(cfg config.RendererConfig, logger *slog.Logger) *Renderer {
	limit := rate.Inf
	if cfg.MaxFPS > 0 {
		limit = rate.Limit(cfg.MaxFPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Renderer{
		logger:   logger,
		limit:    limit,
		burst:    burst,
		quality:  quality,
		textures: make(map[int64]*texture),
		byDevice: make(map[string]int64),
	}
}

func (r *Renderer) RegisterTexture(deviceID string, pull domain.TextureFunc) (int64, error) {
	if pull == nil {
		return -1, domain.NewDomainError("Renderer.RegisterTexture", domain.ErrInvalidInput, "nil texture function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return -1, domain.NewSubSystemError("renderer", "Renderer.RegisterTexture", domain.ErrUnavailable, "renderer closed")
	}
	r.nextID++
	t := &texture{
		id:       r.nextID,
		deviceID: deviceID,
		pull:     pull,
		quality:  r.quality,
		limiter:  rate.NewLimiter(r.limit, r.burst),
		logger:   r.logger.With("texture_id", r.nextID, "device_id", deviceID),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		subs:     make(map[uint64]chan []byte),
	}
	r.textures[t.id] = t
	r.byDevice[deviceID] = t.id
	go t.run()
	r.logger.Debug("texture registered", "texture_id", t.id, "device_id", deviceID)
	return t.id, nil
}

func (r *Renderer) UnregisterTexture(id int64) {
	r.mu.Lock()
	t, ok := r.textures[id]
	if ok {
		delete(r.textures, id)
		if r.byDevice[t.deviceID] == id {
			delete(r.byDevice, t.deviceID)
		}
	}
	r.mu.Unlock()
	if ok {
		t.stop()
		r.logger.Debug("texture unregistered", "texture_id", id)
	}
}

func (r *Renderer) MarkTextureFrameAvailable(id int64) {
	r.mu.Lock()
	t := r.textures[id]
	r.mu.Unlock()
	if t != nil {
		t.mark()
	}
}

// Subscribe returns a channel of JPEG frames for the device's texture. The
// channel is closed when the texture is unregistered or cancel is called.
func (r *Renderer) Subscribe(deviceID string) (<-chan []byte, func(), error) {
	t, err := r.lookup(deviceID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel, ok := t.subscribe()
	if !ok {
		return nil, nil, domain.NewSubSystemError("renderer", "Renderer.Subscribe", domain.ErrUnavailable,
			fmt.Sprintf("preview for %q ended", deviceID))
	}
	return ch, cancel, nil
}

// Latest returns the most recent encoded frame of the device's texture.
func (r *Renderer) Latest(deviceID string) ([]byte, bool) {
	t, err := r.lookup(deviceID)
	if err != nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.last != nil
}

// Stats returns the counters of texture id.
func (r *Renderer) Stats(id int64) (Stats, bool) {
	r.mu.Lock()
	t := r.textures[id]
	r.mu.Unlock()
	if t == nil {
		return Stats{}, false
	}
	return Stats{
		Marked:    t.marked.Load(),
		Throttled: t.throttled.Load(),
		Encoded:   t.encoded.Load(),
	}, true
}

func (r *Renderer) lookup(deviceID string) (*texture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.textures[r.byDevice[deviceID]]
	if t == nil {
		return nil, domain.NewSubSystemError("renderer", "Renderer.lookup", domain.ErrUnavailable,
			fmt.Sprintf("no preview texture for %q", deviceID))
	}
	return t, nil
}

// Close unregisters every texture. Later registrations fail.
func (r *Renderer) Close() {
	r.mu.Lock()
	r.closed = true
	textures := make([]*texture, 0, len(r.textures))
	for _, t := range r.textures {
		textures = append(textures, t)
	}
	clear(r.textures)
	clear(r.byDevice)
	r.mu.Unlock()
	for _, t := range textures {
		t.stop()
	}
}

type texture struct {
	id       int64
	deviceID string
	pull     domain.TextureFunc
	quality  int
	limiter  *rate.Limiter
	logger   *slog.Logger

	wake     chan struct{}
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once

	marked, throttled, encoded atomic.Uint64

	mu      sync.Mutex
	width   int
	height  int
	last    []byte
	subs    map[uint64]chan []byte
	nextSub uint64
	stopped bool
}

// mark coalesces notifications; at most one pull is pending.
func (t *texture) mark() {
	t.marked.Add(1)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *texture) run() {
	defer close(t.exited)
	for {
		select {
		case <-t.done:
			return
		case <-t.wake:
		}
		if !t.limiter.Allow() {
			t.throttled.Add(1)
			continue
		}
		t.render()
	}
}

func (t *texture) render() {
	t.mu.Lock()
	w, h := t.width, t.height
	t.mu.Unlock()

	pb := t.pull(w, h)
	if pb == nil || pb.Width <= 0 || pb.Height <= 0 || len(pb.Data) < pb.Width*pb.Height*4 {
		return
	}
	img := &image.RGBA{
		Pix:    pb.Data,
		Stride: pb.Width * 4,
		Rect:   image.Rect(0, 0, pb.Width, pb.Height),
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality}); err != nil {
		t.logger.Warn("preview encode failed", "error", err)
		return
	}
	frame := buf.Bytes()
	t.encoded.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.width, t.height = pb.Width, pb.Height
	t.last = frame
	for _, ch := range t.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (t *texture) subscribe() (<-chan []byte, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil, nil, false
	}
	id := t.nextSub
	t.nextSub++
	ch := make(chan []byte, subscriberBuffer)
	t.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel, true
}

func (t *texture) stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		<-t.exited
		t.mu.Lock()
		defer t.mu.Unlock()
		t.stopped = true
		for id, ch := range t.subs {
			delete(t.subs, id)
			close(ch)
		}
	})
}
