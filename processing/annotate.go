package processing

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is one box to draw on a result image.
type Annotation struct {
	Rect       image.Rectangle
	Name       string
	Confidence float64
}

var annotationColor = color.RGBA{G: 255, A: 255}

// Annotate draws boxes and "name (NN%)" labels onto a copy of the image
// and returns it JPEG-encoded. Mirrors the annotated result images the
// service exposes via /get_image.
func Annotate(img *Image, annotations []Annotation) ([]byte, error) {
	b := img.Pixels.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img.Pixels, b.Min, draw.Src)

	for _, a := range annotations {
		drawRect(canvas, a.Rect.Sub(b.Min), 2)
		label := fmt.Sprintf("%s (%.0f%%)", a.Name, a.Confidence*100)
		drawLabel(canvas, label, a.Rect.Sub(b.Min))
	}
	return EncodeJPEG(canvas)
}

func drawRect(canvas *image.RGBA, r image.Rectangle, thickness int) {
	r = r.Intersect(canvas.Bounds())
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(canvas, x, r.Min.Y+t)
			setPixel(canvas, x, r.Max.Y-1-t)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(canvas, r.Min.X+t, y)
			setPixel(canvas, r.Max.X-1-t, y)
		}
	}
}

func setPixel(canvas *image.RGBA, x, y int) {
	if image.Pt(x, y).In(canvas.Bounds()) {
		canvas.SetRGBA(x, y, annotationColor)
	}
}

func drawLabel(canvas *image.RGBA, label string, r image.Rectangle) {
	y := r.Max.Y + 16
	if y > canvas.Bounds().Max.Y-2 {
		y = r.Min.Y - 6 // no room below the box, draw above it
	}
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(annotationColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X, y),
	}
	d.DrawString(label)
}
