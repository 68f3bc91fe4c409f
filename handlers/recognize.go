package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"

	"faceserver/classifier"
	"faceserver/config"
	"faceserver/faces"
	"faceserver/processing"
	"faceserver/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// customModelMethod labels results produced by the trained classifier
// instead of gallery matching.
const customModelMethod = "custom_model"

type RecognizedFace struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Method     string   `json:"method"`
	Location   Location `json:"location"`
}

type RecognizeResponse struct {
	Success       bool             `json:"success"`
	FacesDetected int              `json:"faces_detected"`
	Results       []RecognizedFace `json:"results"`
	Method        string           `json:"method"`
	// ModelState is present on classifier responses so callers can see
	// a stale model and trigger retraining.
	ModelState  string `json:"model_state,omitempty"`
	OutputImage string `json:"output_image,omitempty"`
}

// Recognize handles POST /recognize: a multipart image plus optional
// fields "method" (hog, cnn, custom_hog, lbp), "use_custom_model"
// (route through the trained classifier) and "save_result" (default
// true, store an annotated copy). Every detected face is matched
// against the gallery.
func Recognize(c *gin.Context) {
	img, err := readImageUpload(c)
	if err != nil {
		errorResponse(c, err)
		return
	}

	methodParam := c.PostForm("method")
	useClassifier := c.PostForm("use_custom_model") == "true"
	saveResult := c.DefaultPostForm("save_result", "true") != "false"
	detectMethod, extractMethod, known := faces.ParseMethod(methodParam)
	if useClassifier {
		detectMethod, extractMethod = faces.DefaultDetectMethod(), faces.MethodDlib
	} else if !known {
		log.Printf("Unknown method %q, using the default", methodParam)
	}

	rec := pipelineInstance
	detections, err := rec.Detect(img, detectMethod)
	if err != nil {
		errorResponse(c, err)
		return
	}
	// The slower detectors sometimes come up empty where the plain HOG
	// detector still finds a face, so retry before giving up.
	if len(detections) == 0 && detectMethod != faces.DetectHOG {
		if detections, err = rec.Detect(img, faces.DetectHOG); err != nil {
			errorResponse(c, err)
			return
		}
		if len(detections) > 0 && extractMethod == faces.MethodCNN {
			extractMethod = faces.MethodDlib
		}
	}

	results := make([]RecognizedFace, 0, len(detections))
	annotations := make([]processing.Annotation, 0, len(detections))
	for i, det := range detections {
		result := RecognizedFace{
			ID:       i,
			Name:     "unknown",
			Method:   extractMethod.String(),
			Location: locationOf(det.Region),
		}
		if useClassifier {
			result.Method = customModelMethod
		}
		desc, err := rec.Extract(img, det, extractMethod)
		if err != nil {
			log.Printf("Skipping face %d: %v", i, err)
			results = append(results, result)
			continue
		}
		if useClassifier {
			name, confidence, err := classifierInstance.Predict(desc)
			if err != nil {
				if errors.Is(err, classifier.ErrModelNotTrained) {
					errorResponse(c, err)
					return
				}
				log.Printf("Classifier failed on face %d: %v", i, err)
			} else {
				result.Name = name
				result.Confidence = confidence
			}
		} else if match, ok := galleryInstance.Best(desc, config.FACE_MATCH_THRESHOLD); ok {
			result.Name = match.Name
			result.Confidence = match.Confidence
		}
		results = append(results, result)
		annotations = append(annotations, processing.Annotation{
			Rect:       det.Region.Rect(),
			Name:       result.Name,
			Confidence: result.Confidence,
		})
	}

	response := RecognizeResponse{
		Success:       true,
		FacesDetected: len(detections),
		Results:       results,
		Method:        extractMethod.String(),
	}
	if useClassifier {
		response.Method = customModelMethod
		response.ModelState = classifierInstance.Status().State
	}
	if saveResult && len(annotations) > 0 {
		if name, err := saveAnnotated(img, annotations); err == nil {
			response.OutputImage = name // fetch via /get_image/<output_image>
		} else {
			log.Printf("Warning: could not save annotated image: %v", err)
		}
	}
	c.JSON(http.StatusOK, response)
}

// saveAnnotated renders the annotated copy into the uploads location and
// registers it with the janitor for expiry.
func saveAnnotated(img *processing.Image, annotations []processing.Annotation) (string, error) {
	data, err := processing.Annotate(img, annotations)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("result_%s.jpg", uuid.NewString())
	path := storage.LocationUploads + "/" + name
	if _, err := uploadsStorage().Save(path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	TrackUpload(name)
	return name, nil
}
