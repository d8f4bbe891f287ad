// Package inspect decides which detections lie in the inspection zone and
// whether the package seen there is defective.
package inspect

import (
	"image"
	"math"

	"github.com/MeKo-Tech/boxguard/internal/detector"
)

// Zone is a fixed-size inspection rectangle centred on each frame.
type Zone struct {
	Width  int
	Height int
}

// Bounds is an inclusive pixel rectangle.
type Bounds struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Bounds places the zone on a frame of the given size. The centre and the half
// sizes use integer halving on both axes.
func (z Zone) Bounds(frameW, frameH int) Bounds {
	cx, cy := frameW/2, frameH/2
	halfW, halfH := z.Width/2, z.Height/2
	return Bounds{
		MinX: cx - halfW,
		MinY: cy - halfH,
		MaxX: cx + halfW,
		MaxY: cy + halfH,
	}
}

// ContainsPoint reports whether (x, y) lies inside b, edges included.
func (b Bounds) ContainsPoint(x, y float64) bool {
	return x >= float64(b.MinX) && x <= float64(b.MaxX) &&
		y >= float64(b.MinY) && y <= float64(b.MaxY)
}

// Rect converts b into an image rectangle covering the same pixels.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.MinX, b.MinY, b.MaxX+1, b.MaxY+1)
}

// Contains reports whether the centre of d's box lies in the zone.
func (z Zone) Contains(frameW, frameH int, d detector.Detection) bool {
	x, y := pixelCentre(d)
	return z.Bounds(frameW, frameH).ContainsPoint(x, y)
}

// pixelCentre truncates the box corners to whole pixels before halving, so a
// centre can land on a half pixel but never between.
func pixelCentre(d detector.Detection) (float64, float64) {
	x1, y1 := math.Trunc(d.Box.MinX), math.Trunc(d.Box.MinY)
	x2, y2 := math.Trunc(d.Box.MaxX), math.Trunc(d.Box.MaxY)
	return (x1 + x2) / 2, (y1 + y2) / 2
}

// Filter keeps the detections whose centres are in the zone, in order.
func (z Zone) Filter(dets []detector.Detection, frameW, frameH int) []detector.Detection {
	b := z.Bounds(frameW, frameH)
	var kept []detector.Detection
	for _, d := range dets {
		if x, y := pixelCentre(d); b.ContainsPoint(x, y) {
			kept = append(kept, d)
		}
	}
	return kept
}
