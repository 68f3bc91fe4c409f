package handlers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"faceserver/classifier"
	"faceserver/config"
	"faceserver/faces"
	"faceserver/gallery"
	"faceserver/processing"
	"faceserver/storage"

	"github.com/gin-gonic/gin"
)

var (
	galleryInstance    *gallery.Gallery
	classifierInstance *classifier.Model
	pipelineInstance   gallery.Pipeline
)

// Init wires the handlers to their dependencies. Must be called before
// the router starts serving. The pipeline is *faces.Recognizer in
// production; tests pass a stub.
func Init(g *gallery.Gallery, m *classifier.Model, p gallery.Pipeline) {
	galleryInstance = g
	classifierInstance = m
	pipelineInstance = p
}

type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Location mirrors faces.Region in responses.
type Location struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func locationOf(r faces.Region) Location {
	return Location{Top: r.Top, Right: r.Right, Bottom: r.Bottom, Left: r.Left}
}

// errorResponse maps pipeline errors to HTTP statuses. Client mistakes
// (bad image, no face, bad name) are 4xx, everything else is a 500.
func errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, processing.ErrInvalidImage),
		errors.Is(err, gallery.ErrInvalidName),
		errors.Is(err, gallery.ErrNoFaceDetected),
		errors.Is(err, gallery.ErrMultipleFaces),
		errors.Is(err, faces.ErrExtractionFailed),
		errors.Is(err, classifier.ErrNotEnoughData):
		status = http.StatusBadRequest
	case errors.Is(err, classifier.ErrModelNotTrained):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	c.JSON(status, Response{Error: err.Error()})
}

// readImageUpload pulls the uploaded picture out of a multipart request
// and decodes it. Both "file" and "image" field names are accepted.
// Size is capped before decoding.
func readImageUpload(c *gin.Context) (*processing.Image, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if header, err = c.FormFile("image"); err != nil {
			return nil, processing.ErrInvalidImage
		}
	}
	if header.Size > int64(config.MAX_UPLOAD_SIZE) {
		return nil, processing.ErrInvalidImage
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := readAll(file)
	if err != nil {
		return nil, err
	}
	return processing.Decode(data)
}

func readAll(file multipart.File) ([]byte, error) {
	return io.ReadAll(io.LimitReader(file, int64(config.MAX_UPLOAD_SIZE)+1))
}

func uploadsStorage() storage.StorageAPI {
	return storage.GetDefaultStorage()
}
