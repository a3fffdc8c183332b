package engine

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackRGB32SwapsChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	dst := make([]byte, 8)
	packRGB32(dst, img, 2, 1)
	assert.Equal(t, []byte{30, 20, 10, 0, 60, 50, 40, 0}, dst)
}

func TestPackRGB32ScalesToTarget(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	dst := make([]byte, 4*4*4)
	packRGB32(dst, img, 4, 4)
	for i := 0; i < len(dst); i += 4 {
		assert.Equal(t, []byte{0x80, 0x80, 0x80, 0}, dst[i:i+4])
	}
}

func TestPackRGB32HandlesYCbCrAndOffsets(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 4, 2), image.YCbCrSubsampleRatio422)
	for i := range src.Y {
		src.Y[i] = 235
	}
	for i := range src.Cb {
		src.Cb[i], src.Cr[i] = 128, 128
	}
	sub := src.SubImage(image.Rect(2, 0, 4, 2))

	dst := make([]byte, 2*2*4)
	packRGB32(dst, sub, 2, 2)
	for i := 0; i < len(dst); i += 4 {
		assert.InDelta(t, 235, int(dst[i]), 1)
		assert.Equal(t, byte(0), dst[i+3])
	}
}

func TestFitKeepsMatchingImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	assert.Same(t, img, fit(img, 3, 3))
	assert.Equal(t, image.Rect(0, 0, 6, 2), fit(img, 6, 2).Bounds())
}
