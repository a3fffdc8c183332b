//go:build linux

package engine

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
)

func TestYUYVToYCbCr(t *testing.T) {
	// Two pixels per macropixel: Y0 U Y1 V.
	buf := []byte{
		10, 100, 20, 200, 30, 101, 40, 201,
		50, 102, 60, 202, 70, 103, 80, 203,
	}
	img, err := yuyvToYCbCr(buf, 4, 2)
	require.NoError(t, err)

	ycc := img.(*image.YCbCr)
	assert.Equal(t, []byte{10, 20, 30, 40}, ycc.Y[0:4])
	assert.Equal(t, []byte{50, 60, 70, 80}, ycc.Y[ycc.YStride:ycc.YStride+4])
	assert.Equal(t, []byte{100, 101}, ycc.Cb[0:2])
	assert.Equal(t, []byte{203}, ycc.Cr[ycc.CStride+1:ycc.CStride+2])

	_, err = yuyvToYCbCr(buf[:8], 4, 2)
	assert.Error(t, err)
}

func TestV4L2DriverDevices(t *testing.T) {
	dev := t.TempDir()
	sys := t.TempDir()
	for _, n := range []string{"video1", "video0"} {
		require.NoError(t, os.WriteFile(filepath.Join(dev, n), nil, 0o600))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(sys, "video0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sys, "video0", "name"), []byte("Integrated Camera\n"), 0o600))

	d := &V4L2Driver{devDir: dev, sysDir: sys}
	devices, err := d.Devices()
	require.NoError(t, err)
	assert.Equal(t, []domain.CameraDevice{
		{ID: filepath.Join(dev, "video0"), Label: "Integrated Camera"},
		{ID: filepath.Join(dev, "video1"), Label: "video1"},
	}, devices)

	_, err = d.Open(filepath.Join(dev, "video7"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
