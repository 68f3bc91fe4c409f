package processing

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// GrayCrop cuts rect out of src and scales it to a size x size grayscale
// image. The encoders that consume it expect a fixed resolution.
func GrayCrop(src image.Image, rect image.Rectangle, size int) *image.Gray {
	rect = rect.Intersect(src.Bounds())
	dst := image.NewGray(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, rect, xdraw.Src, nil)
	return dst
}

// Crop returns the given rectangle of src as a standalone image.
func Crop(src image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(src.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(dst, image.Point{}, src, rect, xdraw.Src, nil)
	return dst
}

// FlipHorizontal mirrors the image left to right.
func FlipHorizontal(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dx()-1-x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// AdjustBrightness scales all channels by factor, clamping at white.
func AdjustBrightness(src image.Image, factor float64) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bb, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst.Set(x, y, color.RGBA{
				R: clamp8(float64(r>>8) * factor),
				G: clamp8(float64(g>>8) * factor),
				B: clamp8(float64(bb>>8) * factor),
				A: uint8(a >> 8),
			})
		}
	}
	return dst
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
