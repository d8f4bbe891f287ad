package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoxOrdersCorners(t *testing.T) {
	b := NewBox(10, 20, 2, 4)
	assert.Equal(t, Box{MinX: 2, MinY: 4, MaxX: 10, MaxY: 20}, b)
	assert.InDelta(t, 8.0, b.Width(), 1e-9)
	assert.InDelta(t, 16.0, b.Height(), 1e-9)
	assert.Equal(t, Point{X: 6, Y: 12}, b.Center())
}

func TestBoxClamp(t *testing.T) {
	b := NewBox(-5, -5, 120, 50).Clamp(100, 40)
	assert.Equal(t, Box{MinX: 0, MinY: 0, MaxX: 100, MaxY: 40}, b)
}

func TestIoU(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	assert.InDelta(t, 1.0, IoU(a, a), 1e-9)
	assert.InDelta(t, 0.0, IoU(a, NewBox(20, 20, 30, 30)), 1e-9)
	// 5x10 overlap over 150 union
	assert.InDelta(t, 50.0/150.0, IoU(a, NewBox(5, 0, 15, 10)), 1e-9)
}

func TestToRectClamps(t *testing.T) {
	r := NewBox(-3.2, 1.5, 12.1, 8.9).ToRect(image.Rect(0, 0, 10, 10))
	assert.Equal(t, image.Rect(0, 1, 10, 9), r)
}

func TestDrawRectOutline(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	red := color.RGBA{R: 255, A: 255}
	DrawRect(dst, image.Rect(5, 5, 15, 15), red, 1)

	assert.Equal(t, red, dst.RGBAAt(5, 5))
	assert.Equal(t, red, dst.RGBAAt(14, 14))
	assert.Equal(t, red, dst.RGBAAt(10, 5))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(10, 10), "interior must stay untouched")
}

func TestDrawLabelWritesPixels(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 80, 30))
	DrawLabel(dst, image.Pt(2, 20), "box", color.RGBA{G: 255, A: 255})

	found := false
	for y := 0; y < 30; y++ {
		for x := 0; x < 80; x++ {
			if dst.RGBAAt(x, y).G == 255 {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestLetterboxImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	canvas, lb, err := LetterboxImage(src, 64)
	require.NoError(t, err)

	assert.Equal(t, 64, canvas.Bounds().Dx())
	assert.Equal(t, 64, canvas.Bounds().Dy())
	assert.InDelta(t, 0.32, lb.Scale, 1e-9)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 16, lb.PadY)

	// A box covering the whole resized area maps back to the full source.
	back := lb.ToSource(Box{MinX: 0, MinY: 16, MaxX: 64, MaxY: 48})
	assert.InDelta(t, 0, back.MinX, 1e-6)
	assert.InDelta(t, 0, back.MinY, 1e-6)
	assert.InDelta(t, 200, back.MaxX, 1e-6)
	assert.InDelta(t, 100, back.MaxY, 1e-6)
}

func TestLetterboxImageRejectsBadInput(t *testing.T) {
	_, _, err := LetterboxImage(nil, 64)
	require.Error(t, err)

	_, _, err = LetterboxImage(image.NewRGBA(image.Rect(0, 0, 4, 4)), 0)
	require.Error(t, err)
}

func TestNormalizeImageLayout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 0, B: 255, A: 255})

	data, w, h, err := NormalizeImage(img)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	require.Len(t, data, 6)
	// R plane, G plane, B plane
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 1}, data)
}

func TestNormalizeImageIntoReusesBuffer(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	dst := make([]float32, 6)
	data, _, _, err := NormalizeImageInto(img, dst)
	require.NoError(t, err)
	assert.Same(t, &dst[0], &data[0])
	assert.Equal(t, []float32{1, 0, 1, 0, 1, 0}, data)

	data, _, _, err = NormalizeImageInto(img, make([]float32, 5))
	require.NoError(t, err)
	assert.Len(t, data, 6)
}

func TestJPEGRoundTripDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 16))
	data, err := EncodeJPEG(src, 0)
	require.NoError(t, err)

	img, err := DecodeJPEG(data)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestDecodeJPEGErrors(t *testing.T) {
	_, err := DecodeJPEG(nil)
	require.Error(t, err)

	_, err = DecodeJPEG([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9})
	require.Error(t, err)

	var ipe *ImageProcessingError
	assert.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}
