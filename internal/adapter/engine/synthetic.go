package engine

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"camsession/internal/domain"
)

const syntheticPrefix = "synthetic:"

// SyntheticDriver serves moving color bars. It needs no hardware and backs
// the default configuration and tests.
type SyntheticDriver struct {
	devices int
	fps     int
	types   []domain.MediaType
}

// NewSyntheticDriver creates a driver exposing devices cameras that each
// support the given "WxH" sizes.
func NewSyntheticDriver(devices, fps int, sizes []string) (*SyntheticDriver, error) {
	if devices <= 0 {
		return nil, domain.NewDomainError("NewSyntheticDriver", domain.ErrInvalidInput, "at least one device is required")
	}
	if fps <= 0 {
		return nil, domain.NewDomainError("NewSyntheticDriver", domain.ErrInvalidInput, "fps must be positive")
	}
	types := make([]domain.MediaType, 0, len(sizes))
	for _, s := range sizes {
		w, h, err := domain.ParseSize(s)
		if err != nil {
			return nil, err
		}
		types = append(types, domain.MediaType{Width: w, Height: h, Format: domain.FormatRGBA, FrameRate: float32(fps)})
	}
	return &SyntheticDriver{devices: devices, fps: fps, types: types}, nil
}

func (d *SyntheticDriver) Name() string { return "synthetic" }

func (d *SyntheticDriver) Devices() ([]domain.CameraDevice, error) {
	out := make([]domain.CameraDevice, d.devices)
	for i := range out {
		out[i] = domain.CameraDevice{
			ID:    syntheticPrefix + strconv.Itoa(i),
			Label: fmt.Sprintf("Synthetic Camera %d", i),
		}
	}
	return out, nil
}

func (d *SyntheticDriver) Open(deviceID string) (Device, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(deviceID, syntheticPrefix))
	if !strings.HasPrefix(deviceID, syntheticPrefix) || err != nil || n < 0 || n >= d.devices {
		return nil, domain.NewSubSystemError("driver", "SyntheticDriver.Open", domain.ErrNotFound,
			fmt.Sprintf("no synthetic device %q", deviceID))
	}
	return &syntheticDevice{id: deviceID, seed: n, fps: d.fps, types: d.types}, nil
}

type syntheticDevice struct {
	id    string
	seed  int
	fps   int
	types []domain.MediaType
}

func (d *syntheticDevice) ID() string                     { return d.id }
func (d *syntheticDevice) MediaTypes() []domain.MediaType { return d.types }
func (d *syntheticDevice) Close() error                   { return nil }

func (d *syntheticDevice) Stream(mt domain.MediaType) (FrameReader, error) {
	if mt.IsZero() {
		return nil, domain.NewDomainError("syntheticDevice.Stream", domain.ErrInvalidInput, "empty media type")
	}
	return &syntheticReader{
		width:  int(mt.Width),
		height: int(mt.Height),
		frame:  d.seed * 17,
		ticker: time.NewTicker(time.Second / time.Duration(d.fps)),
		done:   make(chan struct{}),
	}, nil
}

var bars = []color.RGBA{
	{0xff, 0xff, 0xff, 0xff},
	{0xff, 0xff, 0x00, 0xff},
	{0x00, 0xff, 0xff, 0xff},
	{0x00, 0xff, 0x00, 0xff},
	{0xff, 0x00, 0xff, 0xff},
	{0xff, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xff, 0xff},
}

type syntheticReader struct {
	width, height int
	frame         int
	ticker        *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
}

func (r *syntheticReader) Read() (image.Image, func(), error) {
	select {
	case <-r.done:
		return nil, nil, domain.ErrDeviceUnavailable
	case <-r.ticker.C:
	}
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	barWidth := max(r.width/len(bars), 1)
	shift := r.frame % r.width
	for x := 0; x < r.width; x++ {
		img.SetRGBA(x, 0, bars[((x+shift)%r.width/barWidth)%len(bars)])
	}
	row := img.Pix[:img.Stride]
	for y := 1; y < r.height; y++ {
		copy(img.Pix[y*img.Stride:], row)
	}
	r.frame++
	return img, noRelease, nil
}

func (r *syntheticReader) Close() error {
	r.closeOnce.Do(func() {
		r.ticker.Stop()
		close(r.done)
	})
	return nil
}
