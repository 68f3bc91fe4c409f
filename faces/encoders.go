package faces

import (
	"image"
	"math"

	"faceserver/processing"
)

const (
	hogCropSize = 64
	hogCellSize = 8
	hogBins     = 9

	lbpCropSize = 128
	lbpBins     = 256
)

// hogDescriptor encodes a face crop as a histogram of oriented
// gradients: the region is resized to 64x64 grayscale and split into
// 8x8 cells, each contributing 9 unsigned orientation bins. The result
// is L2-normalized, 576 floats total.
func hogDescriptor(src image.Image, region image.Rectangle) []float32 {
	gray := processing.GrayCrop(src, region, hogCropSize)

	cells := hogCropSize / hogCellSize
	hist := make([]float32, cells*cells*hogBins)

	for y := 1; y < hogCropSize-1; y++ {
		for x := 1; x < hogCropSize-1; x++ {
			gx := float64(gray.GrayAt(x+1, y).Y) - float64(gray.GrayAt(x-1, y).Y)
			gy := float64(gray.GrayAt(x, y+1).Y) - float64(gray.GrayAt(x, y-1).Y)
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			// unsigned orientation in [0, pi)
			angle := math.Atan2(gy, gx)
			if angle < 0 {
				angle += math.Pi
			}
			bin := int(angle / math.Pi * hogBins)
			if bin >= hogBins {
				bin = hogBins - 1
			}
			cell := (y/hogCellSize)*cells + x/hogCellSize
			hist[cell*hogBins+bin] += float32(mag)
		}
	}

	var norm float64
	for _, v := range hist {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range hist {
			hist[i] *= scale
		}
	}
	return hist
}

// lbpDescriptor encodes a face crop as a local binary pattern
// histogram: each pixel of the 128x128 grayscale crop is replaced by an
// 8-bit code comparing it against its 8 neighbors clockwise from the
// top-left, and the codes are accumulated into a 256-bin histogram
// normalized to sum to 1.
func lbpDescriptor(src image.Image, region image.Rectangle) []float32 {
	gray := processing.GrayCrop(src, region, lbpCropSize)

	hist := make([]float32, lbpBins)
	var total float32
	for y := 1; y < lbpCropSize-1; y++ {
		for x := 1; x < lbpCropSize-1; x++ {
			center := gray.GrayAt(x, y).Y
			var code uint8
			if gray.GrayAt(x-1, y-1).Y >= center {
				code |= 1 << 7
			}
			if gray.GrayAt(x, y-1).Y >= center {
				code |= 1 << 6
			}
			if gray.GrayAt(x+1, y-1).Y >= center {
				code |= 1 << 5
			}
			if gray.GrayAt(x+1, y).Y >= center {
				code |= 1 << 4
			}
			if gray.GrayAt(x+1, y+1).Y >= center {
				code |= 1 << 3
			}
			if gray.GrayAt(x, y+1).Y >= center {
				code |= 1 << 2
			}
			if gray.GrayAt(x-1, y+1).Y >= center {
				code |= 1 << 1
			}
			if gray.GrayAt(x-1, y).Y >= center {
				code |= 1
			}
			hist[code]++
			total++
		}
	}
	if total > 0 {
		for i := range hist {
			hist[i] /= total
		}
	}
	return hist
}
