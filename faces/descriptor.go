package faces

import (
	"errors"
	"fmt"
	"math"
)

// ErrMethodMismatch is returned when comparing descriptors from
// incompatible metric families.
var ErrMethodMismatch = errors.New("descriptors are not comparable")

// Descriptor is an extracted face representation. The vector layout
// depends on the method: 128 floats for the embedding strategies, 576
// for custom HOG, 256 for LBP.
type Descriptor struct {
	Method ExtractMethod
	Vector []float32
}

// Distance computes the dissimilarity between two descriptors of the
// same metric family. Embeddings use Euclidean distance, histogram
// descriptors use the chi-square distance. Lower is more similar.
func (d Descriptor) Distance(other Descriptor) (float64, error) {
	if !Comparable(d.Method, other.Method) {
		return 0, fmt.Errorf("%w: %s vs %s", ErrMethodMismatch, d.Method, other.Method)
	}
	if len(d.Vector) != len(other.Vector) {
		return 0, fmt.Errorf("%w: vector size %d vs %d", ErrMethodMismatch, len(d.Vector), len(other.Vector))
	}
	if d.Method.family() == familyEmbedding {
		return euclidean(d.Vector, other.Vector), nil
	}
	return chiSquare(d.Vector, other.Vector), nil
}

// Confidence maps a distance to a (0, 1] similarity score that the
// match threshold applies to. Embedding distances below 1 map linearly
// (1 - distance). Histogram chi-square distances are unbounded and use
// a reciprocal mapping instead.
func (d Descriptor) Confidence(distance float64) float64 {
	if d.Method.family() == familyEmbedding {
		if distance >= 1 {
			return 0
		}
		return 1 - distance
	}
	return 1 / (1 + distance)
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func chiSquare(a, b []float32) float64 {
	var sum float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		denom := av + bv
		if denom < 1e-10 {
			continue
		}
		diff := av - bv
		sum += diff * diff / denom
	}
	return sum / 2
}
