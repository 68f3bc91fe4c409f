package faces

import "image"

// Region is a face bounding box in image coordinates, stored in the
// (top, right, bottom, left) order the rest of the pipeline reports.
type Region struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func RegionFromRect(r image.Rectangle) Region {
	return Region{
		Top:    r.Min.Y,
		Right:  r.Max.X,
		Bottom: r.Max.Y,
		Left:   r.Min.X,
	}
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r Region) Width() int {
	return r.Right - r.Left
}

func (r Region) Height() int {
	return r.Bottom - r.Top
}

func (r Region) Area() int {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Padded grows the region by frac on every side, clamped to bounds.
// Re-running detection on a cropped face needs some surrounding context.
func (r Region) Padded(frac float64, bounds image.Rectangle) Region {
	padX := int(float64(r.Width()) * frac)
	padY := int(float64(r.Height()) * frac)
	rect := image.Rect(r.Left-padX, r.Top-padY, r.Right+padX, r.Bottom+padY).Intersect(bounds)
	return RegionFromRect(rect)
}

// Detection is one located face. The dlib detectors compute an embedding
// in the same pass; it is kept here so extraction can reuse it instead
// of running the network again.
type Detection struct {
	Region     Region
	descriptor *Descriptor
}

// PrimaryDetection picks the deterministic "main" face: largest region
// by area, ties broken by leftmost position. Reports ok=false for an
// empty slice.
func PrimaryDetection(detections []Detection) (Detection, bool) {
	if len(detections) == 0 {
		return Detection{}, false
	}
	best := detections[0]
	for _, d := range detections[1:] {
		area, bestArea := d.Region.Area(), best.Region.Area()
		if area > bestArea || (area == bestArea && d.Region.Left < best.Region.Left) {
			best = d
		}
	}
	return best, true
}
