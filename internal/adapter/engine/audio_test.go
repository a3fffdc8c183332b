package engine

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
	"camsession/internal/infra/logger"
)

type fakeSamples struct {
	mu      sync.Mutex
	started bool
	closed  bool
	reads   int
}

func (f *fakeSamples) Start() error { f.mu.Lock(); f.started = true; f.mu.Unlock(); return nil }
func (f *fakeSamples) Stop() error  { return nil }
func (f *fakeSamples) Close() error { f.mu.Lock(); f.closed = true; f.mu.Unlock(); return nil }

func (f *fakeSamples) Read() ([]int16, error) {
	time.Sleep(time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("closed")
	}
	f.reads++
	return []int16{1, -1, 2, -2}, nil
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "/m/clip.wav", sidecarPath("/m/clip.mjpeg"))
	assert.Equal(t, "/m/clip.wav", sidecarPath("/m/clip"))
}

func TestAudioCaptureWritesWAV(t *testing.T) {
	stream := &fakeSamples{}
	src := &AudioSource{sampleRate: 8000, open: func(int) (sampleStream, error) { return stream, nil }}
	path := filepath.Join(t.TempDir(), "clip.wav")

	c, err := src.capture(path, logger.Discard())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.reads >= 3
	}, time.Second, time.Millisecond)
	require.NoError(t, c.stop())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(data[24:]))

	dataBytes := binary.LittleEndian.Uint32(data[40:])
	assert.Equal(t, len(data)-44, int(dataBytes))
	assert.Equal(t, uint32(36)+dataBytes, binary.LittleEndian.Uint32(data[4:]))
	assert.Zero(t, dataBytes%8, "whole reads of four samples")
	assert.True(t, stream.started)
}

func TestAudioCaptureOpenFailure(t *testing.T) {
	src := &AudioSource{sampleRate: 8000, open: func(int) (sampleStream, error) { return nil, errors.New("no mic") }}
	_, err := src.capture(filepath.Join(t.TempDir(), "x.wav"), logger.Discard())
	assert.ErrorContains(t, err, "no mic")
}

func TestEngineRecordsAudioSidecar(t *testing.T) {
	e, obs := newTestEngine(t)
	stream := &fakeSamples{}
	e.mu.Lock()
	e.audio = &AudioSource{sampleRate: 8000, open: func(int) (sampleStream, error) { return stream, nil }}
	e.mu.Unlock()

	path := filepath.Join(t.TempDir(), "clip.mjpeg")
	require.NoError(t, e.StartRecord(path, large))
	require.NoError(t, obs.waitEvent(t, domain.EngineEventRecordStarted).Err)
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.rec != nil && e.rec.frameCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.StopRecord())
	require.NoError(t, obs.waitEvent(t, domain.EngineEventRecordStopped).Err)

	assert.Greater(t, fileSize(path), int64(0))
	assert.Greater(t, fileSize(sidecarPath(path)), int64(44))
	stream.mu.Lock()
	assert.True(t, stream.closed)
	stream.mu.Unlock()
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
