//go:build linux

package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blackjack/webcam"

	"camsession/internal/domain"
)

const (
	fourccMJPEG webcam.PixelFormat = 0x47504A4D // MJPG
	fourccYUYV  webcam.PixelFormat = 0x56595559 // YUYV

	v4l2FrameTimeoutMs = 100
)

// V4L2Driver captures from /dev/video* nodes directly.
type V4L2Driver struct {
	devDir string
	sysDir string
}

// NewV4L2Driver returns a driver for the video4linux nodes under /dev.
func NewV4L2Driver() (Driver, error) {
	return &V4L2Driver{devDir: "/dev", sysDir: "/sys/class/video4linux"}, nil
}

func (d *V4L2Driver) Name() string { return "v4l2" }

func (d *V4L2Driver) Devices() ([]domain.CameraDevice, error) {
	nodes, err := filepath.Glob(filepath.Join(d.devDir, "video*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)
	out := make([]domain.CameraDevice, 0, len(nodes))
	for _, node := range nodes {
		label := filepath.Base(node)
		if name, err := os.ReadFile(filepath.Join(d.sysDir, label, "name")); err == nil {
			label = strings.TrimSpace(string(name))
		}
		out = append(out, domain.CameraDevice{ID: node, Label: label})
	}
	return out, nil
}

func (d *V4L2Driver) Open(deviceID string) (Device, error) {
	const op = "V4L2Driver.Open"
	if _, err := os.Stat(deviceID); err != nil {
		return nil, domain.NewSubSystemError("driver", op, domain.ErrNotFound, fmt.Sprintf("no video node %q", deviceID))
	}
	cam, err := webcam.Open(deviceID)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, err.Error())
	}
	dev := &v4l2Device{id: deviceID, cam: cam}
	dev.types = dev.enumerate()
	if len(dev.types) == 0 {
		cam.Close()
		return nil, domain.NewDomainError(op, domain.ErrNoMediaType, fmt.Sprintf("%s offers no MJPEG or YUYV modes", deviceID))
	}
	return dev, nil
}

type v4l2Device struct {
	id    string
	cam   *webcam.Webcam
	types []domain.MediaType
}

func (d *v4l2Device) ID() string                     { return d.id }
func (d *v4l2Device) MediaTypes() []domain.MediaType { return d.types }
func (d *v4l2Device) Close() error                   { return d.cam.Close() }

// enumerate lists the discrete sizes of the formats we can decode.
func (d *v4l2Device) enumerate() []domain.MediaType {
	var out []domain.MediaType
	formats := d.cam.GetSupportedFormats()
	for _, f := range []webcam.PixelFormat{fourccMJPEG, fourccYUYV} {
		if _, ok := formats[f]; !ok {
			continue
		}
		for _, size := range d.cam.GetSupportedFrameSizes(f) {
			out = append(out, domain.MediaType{
				Width:  size.MaxWidth,
				Height: size.MaxHeight,
				Format: pixelFormatOfFourCC(f),
			})
		}
	}
	return out
}

func pixelFormatOfFourCC(f webcam.PixelFormat) domain.PixelFormat {
	if f == fourccMJPEG {
		return domain.FormatMJPEG
	}
	return domain.FormatYUYV
}

func (d *v4l2Device) Stream(mt domain.MediaType) (FrameReader, error) {
	const op = "v4l2Device.Stream"
	format := fourccYUYV
	for _, t := range d.types {
		if t.Width == mt.Width && t.Height == mt.Height && t.Format == domain.FormatMJPEG {
			format = fourccMJPEG
			break
		}
	}
	got, w, h, err := d.cam.SetImageFormat(format, mt.Width, mt.Height)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, err.Error())
	}
	if err := d.cam.StartStreaming(); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrDeviceUnavailable, err.Error())
	}
	return &v4l2Reader{cam: d.cam, format: got, width: int(w), height: int(h)}, nil
}

// v4l2Reader serializes frame reads against Close; the webcam handle is
// not safe for concurrent use.
type v4l2Reader struct {
	cam           *webcam.Webcam
	format        webcam.PixelFormat
	width, height int

	mu     sync.Mutex
	closed bool
}

func (r *v4l2Reader) Read() (image.Image, func(), error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, nil, domain.ErrDeviceUnavailable
		}
		err := r.cam.WaitForFrame(v4l2FrameTimeoutMs)
		if _, timeout := err.(*webcam.Timeout); timeout {
			r.mu.Unlock()
			continue
		}
		if err != nil {
			r.mu.Unlock()
			return nil, nil, err
		}
		raw, err := r.cam.ReadFrame()
		buf := bytes.Clone(raw)
		r.mu.Unlock()
		if err != nil {
			return nil, nil, err
		}
		if len(buf) == 0 {
			continue
		}
		img, err := r.decode(buf)
		if err != nil {
			return nil, nil, err
		}
		return img, noRelease, nil
	}
}

func (r *v4l2Reader) decode(buf []byte) (image.Image, error) {
	if r.format == fourccMJPEG {
		return jpeg.Decode(bytes.NewReader(buf))
	}
	return yuyvToYCbCr(buf, r.width, r.height)
}

func (r *v4l2Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.cam.StopStreaming()
}

// yuyvToYCbCr unpacks packed 4:2:2 YUYV into a planar image.
func yuyvToYCbCr(buf []byte, w, h int) (image.Image, error) {
	if len(buf) < w*h*2 {
		return nil, fmt.Errorf("short YUYV frame: %d bytes for %dx%d", len(buf), w, h)
	}
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		row := buf[y*w*2:]
		for x := 0; x+1 < w; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[i+1]
			img.Cr[c] = row[i+3]
		}
	}
	return img, nil
}
