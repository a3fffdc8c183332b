package engine

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"camsession/internal/domain"
)

const audioFramesPerBuffer = 1024

// sampleStream is a mono 16-bit PCM input.
type sampleStream interface {
	Start() error
	Read() ([]int16, error)
	Stop() error
	Close() error
}

// AudioSource is the default microphone. Recordings started while an audio
// source is attached get a WAV sidecar next to the video file.
type AudioSource struct {
	sampleRate int
	open       func(sampleRate int) (sampleStream, error)
}

func (a *AudioSource) DeviceID() string { return "default-audio" }
func (a *AudioSource) Close() error     { return nil }

// sidecarPath returns the WAV path recorded alongside videoPath.
func sidecarPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".wav"
}

// audioCapture drains a sample stream into a WAV file until stopped.
type audioCapture struct {
	stream  sampleStream
	wav     *wavWriter
	stopped atomic.Bool
	done    chan struct{}
	err     error
}

func (a *AudioSource) capture(path string, logger *slog.Logger) (*audioCapture, error) {
	stream, err := a.open(a.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("open audio stream: %w", err)
	}
	wav, err := createWAV(path, a.sampleRate)
	if err != nil {
		stream.Close()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		wav.Close()
		os.Remove(path)
		return nil, fmt.Errorf("start audio stream: %w", err)
	}
	c := &audioCapture{stream: stream, wav: wav, done: make(chan struct{})}
	go c.run(logger)
	return c, nil
}

func (c *audioCapture) run(logger *slog.Logger) {
	defer close(c.done)
	for !c.stopped.Load() {
		samples, err := c.stream.Read()
		if err != nil {
			if !c.stopped.Load() {
				logger.Warn("audio read failed", "error", err)
				c.err = err
			}
			return
		}
		if err := c.wav.WriteSamples(samples); err != nil {
			c.err = err
			return
		}
	}
}

// stop ends the capture and finalizes the WAV header.
func (c *audioCapture) stop() error {
	c.stopped.Store(true)
	<-c.done
	c.stream.Stop()
	c.stream.Close()
	if err := c.wav.Close(); err != nil {
		return err
	}
	return c.err
}

// wavWriter writes 16-bit mono PCM. Sizes in the header are patched on Close.
type wavWriter struct {
	f          *os.File
	sampleRate int
	dataBytes  uint32
}

func createWAV(path string, sampleRate int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, domain.WrapOp("createWAV", err)
	}
	w := &wavWriter{f: f, sampleRate: sampleRate}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader() error {
	const channels, bits = 1, 16
	hdr := make([]byte, 44)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36+w.dataBytes)
	copy(hdr[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], channels)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(w.sampleRate*channels*bits/8))
	binary.LittleEndian.PutUint16(hdr[32:], channels*bits/8)
	binary.LittleEndian.PutUint16(hdr[34:], bits)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], w.dataBytes)
	_, err := w.f.WriteAt(hdr, 0)
	return err
}

func (w *wavWriter) WriteSamples(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.f.WriteAt(buf, int64(44+w.dataBytes)); err != nil {
		return err
	}
	w.dataBytes += uint32(len(buf))
	return nil
}

func (w *wavWriter) Close() error {
	if err := w.writeHeader(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
