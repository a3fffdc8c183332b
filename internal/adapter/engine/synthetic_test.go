package engine

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
)

func TestNewSyntheticDriverValidates(t *testing.T) {
	_, err := NewSyntheticDriver(0, 30, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = NewSyntheticDriver(1, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = NewSyntheticDriver(1, 30, []string{"wide"})
	assert.Error(t, err)
}

func TestSyntheticDriverDevices(t *testing.T) {
	drv, err := NewSyntheticDriver(2, 30, []string{"320x240"})
	require.NoError(t, err)

	devices, err := drv.Devices()
	require.NoError(t, err)
	assert.Equal(t, []domain.CameraDevice{
		{ID: "synthetic:0", Label: "Synthetic Camera 0"},
		{ID: "synthetic:1", Label: "Synthetic Camera 1"},
	}, devices)

	for _, id := range []string{"synthetic:2", "synthetic:-1", "cam0", "synthetic:x"} {
		_, err := drv.Open(id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
		assert.Equal(t, domain.CodeDriverNotFound, domain.ErrorCodeOf(err), id)
	}
}

func TestSyntheticReaderProducesFrames(t *testing.T) {
	drv, err := NewSyntheticDriver(1, 500, []string{"16x8"})
	require.NoError(t, err)
	dev, err := drv.Open("synthetic:0")
	require.NoError(t, err)
	require.Len(t, dev.MediaTypes(), 1)

	_, err = dev.Stream(domain.MediaType{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	r, err := dev.Stream(dev.MediaTypes()[0])
	require.NoError(t, err)

	img, release, err := r.Read()
	require.NoError(t, err)
	release()
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	// Bars are vertical: every row matches the first.
	assert.Equal(t, img.At(3, 0), img.At(3, 7))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, _, err = r.Read()
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}
