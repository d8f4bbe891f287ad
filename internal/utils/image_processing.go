package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// LetterboxPadColor is the neutral grey used by YOLO exports for padding.
var LetterboxPadColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox describes how a source image was placed into a square model input.
type Letterbox struct {
	Scale   float64 // source pixels * Scale = input pixels
	PadX    int     // horizontal offset of the resized image inside the canvas
	PadY    int     // vertical offset of the resized image inside the canvas
	Size    int     // canvas edge length
	SourceW int
	SourceH int
}

// ToSource maps a box from model-input coordinates back to source image coordinates.
func (l Letterbox) ToSource(b Box) Box {
	if l.Scale <= 0 {
		return b
	}
	out := Box{
		MinX: (b.MinX - float64(l.PadX)) / l.Scale,
		MinY: (b.MinY - float64(l.PadY)) / l.Scale,
		MaxX: (b.MaxX - float64(l.PadX)) / l.Scale,
		MaxY: (b.MaxY - float64(l.PadY)) / l.Scale,
	}
	return out.Clamp(float64(l.SourceW), float64(l.SourceH))
}

// LetterboxImage resizes img to fit a size x size canvas preserving aspect ratio
// and centres it on a grey background.
func LetterboxImage(img image.Image, size int) (*image.NRGBA, Letterbox, error) {
	if img == nil {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return nil, Letterbox{}, &ImageProcessingError{
			Operation: "letterbox",
			Err:       fmt.Errorf("invalid target size: %d", size),
		}
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, Letterbox{}, &ImageProcessingError{
			Operation: "letterbox",
			Err:       fmt.Errorf("empty image %dx%d", width, height),
		}
	}

	scale := float64(size) / float64(width)
	if s := float64(size) / float64(height); s < scale {
		scale = s
	}
	newW := int(float64(width)*scale + 0.5)
	newH := int(float64(height)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(size, size, LetterboxPadColor)
	padX := (size - newW) / 2
	padY := (size - newH) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, Letterbox{
		Scale:   scale,
		PadX:    padX,
		PadY:    padY,
		Size:    size,
		SourceW: width,
		SourceH: height,
	}, nil
}

// NormalizeImage converts an image to a float32 tensor in NCHW order with
// channel values scaled to 0-1.
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	return NormalizeImageInto(img, nil)
}

// NormalizeImageInto is NormalizeImage writing into dst when it has exactly
// 3*W*H elements. Otherwise a new buffer is allocated.
func NormalizeImageInto(img image.Image, dst []float32) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	tensor := dst
	if len(tensor) != 3*plane {
		tensor = make([]float32, 3*plane)
	}
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < width; x++ {
			i := x * 4
			idx := y*width + x
			tensor[idx] = float32(row[i]) / 255.0
			tensor[plane+idx] = float32(row[i+1]) / 255.0
			tensor[2*plane+idx] = float32(row[i+2]) / 255.0
		}
	}

	return tensor, width, height, nil
}
