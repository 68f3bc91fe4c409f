package faces

import "faceserver/config"

// DetectMethod selects the face location strategy.
type DetectMethod uint8

const (
	// DetectHOG is dlib's gradient-orientation-histogram detector. Fast,
	// fine for frontal and moderately rotated faces.
	DetectHOG DetectMethod = iota
	// DetectCNN is dlib's deep detector. Much slower, better recall on
	// small, occluded or strongly rotated faces.
	DetectCNN
)

func (m DetectMethod) String() string {
	if m == DetectCNN {
		return "cnn"
	}
	return "hog"
}

// DefaultDetectMethod honors the FACE_DETECT_CNN setting.
func DefaultDetectMethod() DetectMethod {
	if config.FACE_DETECT_CNN {
		return DetectCNN
	}
	return DetectHOG
}

// ExtractMethod selects the descriptor extraction strategy. The set is
// closed: descriptors carry their method and are only ever compared
// within the same metric family.
type ExtractMethod uint8

const (
	// MethodDlib is the pretrained resnet face embedding (128 floats).
	// The default and most accurate strategy.
	MethodDlib ExtractMethod = iota
	// MethodCNN reuses the embedding computed during a CNN detection
	// pass, avoiding a second run over the image. Same embedding network
	// as MethodDlib, so the two share a metric family.
	MethodCNN
	// MethodHOG is the hand-rolled gradient-histogram encoder. No model
	// files needed, faster, noticeably less discriminative.
	MethodHOG
	// MethodLBP is a local-binary-pattern texture histogram. Robust to
	// illumination changes, least discriminative of the four.
	MethodLBP
)

func (m ExtractMethod) String() string {
	switch m {
	case MethodCNN:
		return "cnn"
	case MethodHOG:
		return "custom_hog"
	case MethodLBP:
		return "lbp"
	}
	return "dlib"
}

// ExtractMethodFromString is the inverse of String, used when loading
// cached descriptors. Unknown values report ok=false.
func ExtractMethodFromString(s string) (ExtractMethod, bool) {
	switch s {
	case "dlib":
		return MethodDlib, true
	case "cnn":
		return MethodCNN, true
	case "custom_hog":
		return MethodHOG, true
	case "lbp":
		return MethodLBP, true
	}
	return MethodDlib, false
}

// ParseMethod maps a request "method" parameter to a detection and
// extraction strategy pair:
//
//	hog        -> HOG detector, library embedding (the default)
//	cnn        -> CNN detector, reusing its own embedding output
//	custom_hog -> HOG detector, gradient-histogram encoder
//	lbp        -> HOG detector, local-binary-pattern encoder
//
// Unrecognized values fall back to the default pair with ok=false so the
// caller can log a warning.
func ParseMethod(s string) (detect DetectMethod, extract ExtractMethod, ok bool) {
	switch s {
	case "", "hog":
		return DefaultDetectMethod(), MethodDlib, true
	case "cnn":
		return DetectCNN, MethodCNN, true
	case "custom_hog":
		return DetectHOG, MethodHOG, true
	case "lbp":
		return DetectHOG, MethodLBP, true
	}
	return DefaultDetectMethod(), MethodDlib, false
}

// metric families: embedding distances are Euclidean, the custom
// encoders produce histograms compared with a chi-square distance
type metricFamily uint8

const (
	familyEmbedding metricFamily = iota
	familyHOG
	familyLBP
)

func (m ExtractMethod) family() metricFamily {
	switch m {
	case MethodHOG:
		return familyHOG
	case MethodLBP:
		return familyLBP
	}
	return familyEmbedding
}

// Comparable reports whether descriptors produced by the two methods
// live in the same metric space. MethodDlib and MethodCNN both come from
// the same embedding network and are mutually comparable; the histogram
// encoders only match themselves.
func Comparable(a, b ExtractMethod) bool {
	return a.family() == b.family()
}
