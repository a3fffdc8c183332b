package renderer

import (
	"bytes"
	"image/jpeg"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
	"camsession/internal/infra/logger"
)

type source struct {
	pulls atomic.Int32
	empty atomic.Bool
}

func (s *source) pull(int, int) *domain.PixelBuffer {
	s.pulls.Add(1)
	if s.empty.Load() {
		return nil
	}
	data := make([]byte, 8*6*4)
	for i := range data {
		data[i] = 0xff
	}
	return &domain.PixelBuffer{Data: data, Width: 8, Height: 6}
}

func newRenderer(maxFPS float64) *Renderer {
	return New(config.RendererConfig{MaxFPS: maxFPS, Burst: 1, JPEGQuality: 70}, logger.Discard())
}

func TestRendererDeliversJPEGFrames(t *testing.T) {
	r := newRenderer(0)
	defer r.Close()
	src := &source{}

	id, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)
	assert.Positive(t, id)

	frames, cancel, err := r.Subscribe("cam0")
	require.NoError(t, err)
	defer cancel()

	r.MarkTextureFrameAvailable(id)
	select {
	case frame := <-frames:
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Width)
		assert.Equal(t, 6, cfg.Height)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	last, ok := r.Latest("cam0")
	assert.True(t, ok)
	assert.NotEmpty(t, last)

	stats, ok := r.Stats(id)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Encoded)
}

func TestRendererSkipsEmptyPulls(t *testing.T) {
	r := newRenderer(0)
	defer r.Close()
	src := &source{}
	src.empty.Store(true)

	id, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)
	r.MarkTextureFrameAvailable(id)

	require.Eventually(t, func() bool { return src.pulls.Load() == 1 }, time.Second, time.Millisecond)
	_, ok := r.Latest("cam0")
	assert.False(t, ok)
}

func TestRendererThrottlesPulls(t *testing.T) {
	r := newRenderer(0.5)
	defer r.Close()
	src := &source{}

	id, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)

	for range 5 {
		r.MarkTextureFrameAvailable(id)
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		stats, _ := r.Stats(id)
		return stats.Throttled > 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), src.pulls.Load(), "burst of one admits a single pull")
}

func TestRendererUnregisterClosesSubscribers(t *testing.T) {
	r := newRenderer(0)
	defer r.Close()
	src := &source{}

	id, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)
	frames, cancel, err := r.Subscribe("cam0")
	require.NoError(t, err)

	r.UnregisterTexture(id)
	_, open := <-frames
	assert.False(t, open)
	cancel()

	_, _, err = r.Subscribe("cam0")
	assert.Equal(t, domain.CodeRendererClosed, domain.ErrorCodeOf(err))
	_, ok := r.Stats(id)
	assert.False(t, ok)

	r.MarkTextureFrameAvailable(id)
	r.UnregisterTexture(id)
}

func TestRendererReregistrationKeepsNewest(t *testing.T) {
	r := newRenderer(0)
	defer r.Close()
	src := &source{}

	first, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)
	second, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	r.UnregisterTexture(first)
	_, cancel, err := r.Subscribe("cam0")
	require.NoError(t, err, "old texture id must not drop the new mapping")
	cancel()
	cancel()
}

func TestRendererClose(t *testing.T) {
	r := newRenderer(0)
	src := &source{}
	_, err := r.RegisterTexture("cam0", src.pull)
	require.NoError(t, err)
	frames, _, err := r.Subscribe("cam0")
	require.NoError(t, err)

	r.Close()
	_, open := <-frames
	assert.False(t, open)

	_, err = r.RegisterTexture("cam1", src.pull)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	_, err = r.RegisterTexture("cam1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
