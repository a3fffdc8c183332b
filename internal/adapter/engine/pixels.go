package engine

import (
	"image"

	"golang.org/x/image/draw"
)

// fit returns img scaled to w x h. Images already at that size are returned
// as is.
func fit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// toRGBA returns img as *image.RGBA anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// packRGB32 writes img into dst as w x h RGB32 pixels (B, G, R, X). dst
// must hold w*h*4 bytes.
func packRGB32(dst []byte, img image.Image, w, h int) {
	src := toRGBA(fit(img, w, h))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := dst[y*w*4 : (y+1)*w*4]
		for i := 0; i+3 < len(row); i += 4 {
			out[i] = row[i+2]
			out[i+1] = row[i+1]
			out[i+2] = row[i]
			out[i+3] = 0
		}
	}
}
