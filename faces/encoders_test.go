package faces

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func uniformImage(size int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func stripedImage(size, stripe int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/stripe)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestHogDescriptor(t *testing.T) {
	striped := stripedImage(128, 8)
	vec := hogDescriptor(striped, image.Rect(0, 0, 128, 128))
	if len(vec) != hogBins*(hogCropSize/hogCellSize)*(hogCropSize/hogCellSize) {
		t.Fatalf("unexpected vector size %d", len(vec))
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("vector should be L2-normalized, got norm^2 = %v", norm)
	}

	// a flat image has no gradients anywhere
	flat := hogDescriptor(uniformImage(128, color.Gray{Y: 128}), image.Rect(0, 0, 128, 128))
	for i, v := range flat {
		if v != 0 {
			t.Fatalf("flat image produced non-zero bin %d = %v", i, v)
		}
	}
}

func TestLbpDescriptor(t *testing.T) {
	striped := stripedImage(128, 16)
	vec := lbpDescriptor(striped, image.Rect(0, 0, 128, 128))
	if len(vec) != lbpBins {
		t.Fatalf("unexpected vector size %d", len(vec))
	}
	var sum float64
	for _, v := range vec {
		if v < 0 {
			t.Fatalf("negative bin value %v", v)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("histogram should sum to 1, got %v", sum)
	}
}

func TestEncodersDistinguishTextures(t *testing.T) {
	fine := stripedImage(128, 4)
	coarse := stripedImage(128, 32)
	rect := image.Rect(0, 0, 128, 128)

	same := Descriptor{Method: MethodLBP, Vector: lbpDescriptor(fine, rect)}
	again := Descriptor{Method: MethodLBP, Vector: lbpDescriptor(fine, rect)}
	other := Descriptor{Method: MethodLBP, Vector: lbpDescriptor(coarse, rect)}

	dSame, err := same.Distance(again)
	if err != nil {
		t.Fatal(err)
	}
	dOther, err := same.Distance(other)
	if err != nil {
		t.Fatal(err)
	}
	if dSame != 0 {
		t.Errorf("identical textures should have distance 0, got %v", dSame)
	}
	if dOther <= dSame {
		t.Errorf("different textures should be farther apart: same=%v other=%v", dSame, dOther)
	}
}
