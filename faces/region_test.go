package faces

import (
	"image"
	"testing"
)

func TestPrimaryDetection(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		want       Region
		wantOK     bool
	}{
		{
			name: "empty",
		},
		{
			name:       "single",
			detections: []Detection{{Region: Region{Top: 0, Right: 10, Bottom: 10, Left: 0}}},
			want:       Region{Top: 0, Right: 10, Bottom: 10, Left: 0},
			wantOK:     true,
		},
		{
			name: "largest wins",
			detections: []Detection{
				{Region: Region{Top: 0, Right: 10, Bottom: 10, Left: 0}},
				{Region: Region{Top: 0, Right: 40, Bottom: 20, Left: 20}},
			},
			want:   Region{Top: 0, Right: 40, Bottom: 20, Left: 20},
			wantOK: true,
		},
		{
			name: "tie broken by leftmost",
			detections: []Detection{
				{Region: Region{Top: 0, Right: 60, Bottom: 10, Left: 50}},
				{Region: Region{Top: 0, Right: 15, Bottom: 10, Left: 5}},
			},
			want:   Region{Top: 0, Right: 15, Bottom: 10, Left: 5},
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PrimaryDetection(tt.detections)
			if ok != tt.wantOK {
				t.Fatalf("PrimaryDetection() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Region != tt.want {
				t.Errorf("PrimaryDetection() = %+v, want %+v", got.Region, tt.want)
			}
		})
	}
}

func TestRegion_Padded(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	r := Region{Top: 10, Right: 50, Bottom: 50, Left: 10}
	padded := r.Padded(0.25, bounds)
	want := Region{Top: 0, Right: 60, Bottom: 60, Left: 0}
	if padded != want {
		t.Errorf("Padded() = %+v, want %+v", padded, want)
	}
	// padding never escapes the image
	edge := Region{Top: 0, Right: 100, Bottom: 100, Left: 0}
	if got := edge.Padded(0.5, bounds); got != edge {
		t.Errorf("Padded() at bounds = %+v, want %+v", got, edge)
	}
}

func TestRegion_Area(t *testing.T) {
	if got := (Region{Top: 0, Right: 4, Bottom: 3, Left: 0}).Area(); got != 12 {
		t.Errorf("Area() = %d, want 12", got)
	}
	if got := (Region{Top: 5, Right: 0, Bottom: 0, Left: 5}).Area(); got != 0 {
		t.Errorf("degenerate Area() = %d, want 0", got)
	}
}
