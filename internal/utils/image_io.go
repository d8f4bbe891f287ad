package utils

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
)

// DefaultJPEGQuality is used when re-encoding annotated frames.
const DefaultJPEGQuality = 80

// DecodeJPEG decodes a single JPEG image from data.
func DecodeJPEG(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &ImageProcessingError{Operation: "decode", Err: errors.New("empty jpeg data")}
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageProcessingError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &ImageProcessingError{Operation: "decode", Err: errors.New("zero-sized image")}
	}
	return img, nil
}

// EncodeJPEG encodes img as JPEG. A non-positive quality selects DefaultJPEGQuality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
