package engine

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/driver"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers camera adapters
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"camsession/internal/domain"
)

// MediaDevicesDriver captures from cameras through pion/mediadevices.
type MediaDevicesDriver struct{}

// NewMediaDevicesDriver returns the pion/mediadevices backed driver.
func NewMediaDevicesDriver() *MediaDevicesDriver { return &MediaDevicesDriver{} }

func (MediaDevicesDriver) Name() string { return "mediadevices" }

func (MediaDevicesDriver) Devices() ([]domain.CameraDevice, error) {
	var out []domain.CameraDevice
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		out = append(out, domain.CameraDevice{ID: d.DeviceID, Label: d.Label})
	}
	return out, nil
}

func (MediaDevicesDriver) Open(deviceID string) (Device, error) {
	const op = "MediaDevicesDriver.Open"
	var drv driver.Driver
	for _, d := range driver.GetManager().Query(driver.FilterVideoRecorder()) {
		if d.ID() == deviceID {
			drv = d
			break
		}
	}
	if drv == nil {
		return nil, domain.NewSubSystemError("driver", op, domain.ErrNotFound, fmt.Sprintf("no camera %q", deviceID))
	}

	// Properties are only reported by an opened adapter.
	if drv.Status() == driver.StateClosed {
		if err := drv.Open(); err != nil {
			return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, err.Error())
		}
		defer drv.Close()
	}
	types := mediaTypesOf(drv.Properties())
	if len(types) == 0 {
		return nil, domain.NewDomainError(op, domain.ErrNoMediaType, fmt.Sprintf("camera %q reports no video modes", deviceID))
	}
	return &mediaDevice{id: deviceID, types: types}, nil
}

func mediaTypesOf(props []prop.Media) []domain.MediaType {
	seen := make(map[domain.MediaType]bool)
	var out []domain.MediaType
	for _, p := range props {
		if p.Width <= 0 || p.Height <= 0 {
			continue
		}
		mt := domain.MediaType{
			Width:     uint32(p.Width),
			Height:    uint32(p.Height),
			Format:    pixelFormatOf(string(p.FrameFormat)),
			FrameRate: p.FrameRate,
		}
		key := mt
		key.FrameRate = 0
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, mt)
	}
	return out
}

func pixelFormatOf(format string) domain.PixelFormat {
	switch strings.ToUpper(format) {
	case "I420":
		return domain.FormatI420
	case "NV12":
		return domain.FormatNV12
	case "YUY2", "YUYV":
		return domain.FormatYUYV
	case "MJPEG":
		return domain.FormatMJPEG
	case "RGBA":
		return domain.FormatRGBA
	}
	return domain.PixelFormat(strings.ToLower(format))
}

type mediaDevice struct {
	id    string
	types []domain.MediaType
}

func (d *mediaDevice) ID() string                     { return d.id }
func (d *mediaDevice) MediaTypes() []domain.MediaType { return d.types }
func (d *mediaDevice) Close() error                   { return nil }

func (d *mediaDevice) Stream(mt domain.MediaType) (FrameReader, error) {
	const op = "mediaDevice.Stream"
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.DeviceID = prop.String(d.id)
			c.Width = prop.Int(mt.Width)
			c.Height = prop.Int(mt.Height)
		},
	})
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, err.Error())
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, "no video track")
	}
	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		tracks[0].Close()
		return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, fmt.Sprintf("unexpected track %T", tracks[0]))
	}
	return &trackReader{track: vt, reader: vt.NewReader(false)}, nil
}

// trackReader adapts a mediadevices video track to FrameReader.
type trackReader struct {
	track     *mediadevices.VideoTrack
	reader    video.Reader
	closeOnce sync.Once
}

func (r *trackReader) Read() (image.Image, func(), error) {
	img, release, err := r.reader.Read()
	if err != nil {
		return nil, nil, err
	}
	if release == nil {
		release = noRelease
	}
	return img, release, nil
}

func (r *trackReader) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.track.Close() })
	return err
}
