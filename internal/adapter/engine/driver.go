// Package engine implements the capture platform on top of pluggable frame
// drivers: a synthetic test pattern, pion/mediadevices and raw V4L2.
package engine

import (
	"image"

	"camsession/internal/domain"
)

// Driver enumerates and opens capture devices of one backend.
type Driver interface {
	Name() string
	Devices() ([]domain.CameraDevice, error)
	Open(deviceID string) (Device, error)
}

// Device is an opened camera.
type Device interface {
	ID() string
	// MediaTypes lists the modes the device can stream, in device order.
	MediaTypes() []domain.MediaType
	// Stream starts delivering frames at mt. Only one stream per device is
	// active at a time.
	Stream(mt domain.MediaType) (FrameReader, error)
	Close() error
}

// FrameReader yields decoded frames. Read blocks until a frame is
// available; release must be called once the image is no longer used.
// Read returns an error after Close.
type FrameReader interface {
	Read() (img image.Image, release func(), err error)
	Close() error
}

func noRelease() {}
