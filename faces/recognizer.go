package faces

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"faceserver/config"
	"faceserver/processing"

	"github.com/Kagami/go-face"
)

var (
	// ErrExtractionFailed means a descriptor could not be computed for a
	// detected region, e.g. the face is below MIN_FACE_SIZE or landmark
	// alignment failed on the crop.
	ErrExtractionFailed = errors.New("could not extract face descriptor")
)

// Recognizer wraps the dlib-backed face recognizer. All methods are
// safe for concurrent use; the underlying recognizer is serialized with
// a mutex since CNN detection is not reentrant.
type Recognizer struct {
	rec *face.Recognizer
	mu  sync.Mutex
}

var defaultRecognizer *Recognizer

// Init loads the dlib model files from modelsDir. Must be called once
// before detection or extraction.
func Init(modelsDir string) error {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return fmt.Errorf("loading face models from %s: %w", modelsDir, err)
	}
	defaultRecognizer = &Recognizer{rec: rec}
	log.Printf("Face models loaded from %s", modelsDir)
	return nil
}

func Default() *Recognizer {
	return defaultRecognizer
}

func Close() {
	if defaultRecognizer != nil {
		defaultRecognizer.rec.Close()
		defaultRecognizer = nil
	}
}

// Detect locates all faces in the image using the given strategy. The
// dlib pass computes an embedding alongside each box; it is cached on
// the Detection so an embedding extraction can reuse it.
func (r *Recognizer) Detect(img *processing.Image, method DetectMethod) ([]Detection, error) {
	r.mu.Lock()
	var found []face.Face
	var err error
	if method == DetectCNN {
		found, err = r.rec.RecognizeCNN(img.JPEG)
	} else {
		found, err = r.rec.Recognize(img.JPEG)
	}
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("face detection (%s): %w", method, err)
	}

	embedMethod := MethodDlib
	if method == DetectCNN {
		embedMethod = MethodCNN
	}
	detections := make([]Detection, 0, len(found))
	for _, f := range found {
		vec := make([]float32, len(f.Descriptor))
		copy(vec, f.Descriptor[:])
		detections = append(detections, Detection{
			Region:     RegionFromRect(f.Rectangle),
			descriptor: &Descriptor{Method: embedMethod, Vector: vec},
		})
	}
	return detections, nil
}

// Extract computes a descriptor for one detected face using the given
// strategy. Embedding strategies reuse the vector cached during
// detection when available, otherwise the region is cropped with some
// padding and run through the embedding network again.
func (r *Recognizer) Extract(img *processing.Image, det Detection, method ExtractMethod) (Descriptor, error) {
	if det.Region.Width() < config.MIN_FACE_SIZE || det.Region.Height() < config.MIN_FACE_SIZE {
		return Descriptor{}, fmt.Errorf("%w: face %dx%d below minimum size %d",
			ErrExtractionFailed, det.Region.Width(), det.Region.Height(), config.MIN_FACE_SIZE)
	}

	switch method {
	case MethodHOG:
		return Descriptor{Method: MethodHOG, Vector: hogDescriptor(img.Pixels, det.Region.Rect())}, nil
	case MethodLBP:
		return Descriptor{Method: MethodLBP, Vector: lbpDescriptor(img.Pixels, det.Region.Rect())}, nil
	}

	if det.descriptor != nil && Comparable(det.descriptor.Method, method) {
		return Descriptor{Method: method, Vector: det.descriptor.Vector}, nil
	}
	return r.embedRegion(img, det.Region, method)
}

// embedRegion crops the region (padded for landmark context) and runs
// the embedding network on the crop alone.
func (r *Recognizer) embedRegion(img *processing.Image, region Region, method ExtractMethod) (Descriptor, error) {
	padded := region.Padded(0.25, img.Pixels.Bounds())
	crop, err := processing.EncodeJPEG(processing.Crop(img.Pixels, padded.Rect()))
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	r.mu.Lock()
	var f *face.Face
	if method == MethodCNN {
		f, err = r.rec.RecognizeSingleCNN(crop)
	} else {
		f, err = r.rec.RecognizeSingle(crop)
	}
	r.mu.Unlock()
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if f == nil {
		return Descriptor{}, fmt.Errorf("%w: no face in cropped region", ErrExtractionFailed)
	}
	vec := make([]float32, len(f.Descriptor))
	copy(vec, f.Descriptor[:])
	return Descriptor{Method: method, Vector: vec}, nil
}

// EmbedSingle runs the embedding network on an image expected to
// contain exactly one face, e.g. a pre-cropped training sample.
func (r *Recognizer) EmbedSingle(img *processing.Image) (Descriptor, error) {
	r.mu.Lock()
	f, err := r.rec.RecognizeSingle(img.JPEG)
	r.mu.Unlock()
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if f == nil {
		return Descriptor{}, fmt.Errorf("%w: no face found", ErrExtractionFailed)
	}
	vec := make([]float32, len(f.Descriptor))
	copy(vec, f.Descriptor[:])
	return Descriptor{Method: MethodDlib, Vector: vec}, nil
}
