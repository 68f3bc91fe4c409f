package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"faceserver/config"
)

// ErrInvalidImage covers empty, oversized and undecodable uploads. These
// are rejected before the recognition pipeline runs.
var ErrInvalidImage = errors.New("invalid image")

// Image is a decoded upload. JPEG holds the canonical encoding handed to
// the dlib-based recognizer (which only consumes JPEG data); Pixels backs
// the pure-Go encoders and annotation. Lives for one request only.
type Image struct {
	Pixels image.Image
	JPEG   []byte
	Width  int
	Height int
}

// Decode validates and decodes an uploaded image. JPEG, PNG and GIF are
// accepted; everything is normalized to a single JPEG representation so
// downstream extraction strategies never re-normalize color handling.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}
	if len(data) > config.MAX_UPLOAD_SIZE {
		return nil, fmt.Errorf("%w: %d bytes exceeds the limit of %d", ErrInvalidImage, len(data), config.MAX_UPLOAD_SIZE)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	result := &Image{
		Pixels: img,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}
	if format == "jpeg" {
		result.JPEG = data
		return result, nil
	}
	result.JPEG, err = EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return result, nil
}

// FromImage wraps an already-decoded picture, re-encoding it to JPEG.
// Used for training-time augmentation variants.
func FromImage(img image.Image) (*Image, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return &Image{
		Pixels: img,
		JPEG:   data,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
