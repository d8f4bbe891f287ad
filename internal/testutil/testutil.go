// Package testutil builds JPEG frames and MJPEG byte streams for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

// MultipartBoundary is the boundary used by MJPEGMultipart.
const MultipartBoundary = "123456789000000000000987654321"

// CreateTestImage creates a solid image with the specified dimensions and colour.
func CreateTestImage(width, height int, background color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	return img
}

// JPEGBytes encodes img at a fixed quality. Quality 85 keeps quantisation
// values far below 0xFF, so the only FFD8/FFD9 pairs are the real markers.
func JPEGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

// JPEGFrame returns an encoded solid frame of the given size. The shade varies the
// content so consecutive frames are distinguishable.
func JPEGFrame(t testing.TB, width, height int, shade uint8) []byte {
	t.Helper()

	return JPEGBytes(t, CreateTestImage(width, height, color.RGBA{R: shade, G: 255 - shade, B: 64, A: 255}))
}

// MJPEGMultipart wraps frames the way an ESP32-style camera serves them: a
// multipart/x-mixed-replace body with per-part headers between frames.
func MJPEGMultipart(frames ...[]byte) []byte {
	var buf bytes.Buffer
	for _, f := range frames {
		fmt.Fprintf(&buf, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", MultipartBoundary, len(f))
		buf.Write(f)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// Split cuts data into chunks at the given offsets. Offsets must be ascending and
// within range; empty chunks are omitted.
func Split(data []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(data) {
			continue
		}
		chunks = append(chunks, data[prev:off])
		prev = off
	}
	if prev < len(data) {
		chunks = append(chunks, data[prev:])
	}
	return chunks
}

// ChunkEvery cuts data into fixed-size chunks.
func ChunkEvery(data []byte, size int) [][]byte {
	if size <= 0 {
		size = 1
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}
