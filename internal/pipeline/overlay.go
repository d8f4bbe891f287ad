package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/inspect"
	"github.com/MeKo-Tech/boxguard/internal/utils"
)

var (
	zoneColor = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	okColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	badColor  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// RenderOverlay returns an RGBA copy of img with the zone rectangle and the
// in-zone detections drawn on it. Boxes whose label is in okLabels are green,
// all others red.
func RenderOverlay(img image.Image, zone inspect.Bounds, inZone []detector.Detection, okLabels inspect.LabelSet) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.CloneRGBA(img)
	b := dst.Bounds()

	utils.DrawRect(dst, zone.Rect(), zoneColor, 2)

	for _, d := range inZone {
		col := badColor
		if okLabels.Has(d.Label) {
			col = okColor
		}
		rect := d.Box.ToRect(b)
		utils.DrawRect(dst, rect, col, 2)

		utils.DrawLabel(dst, image.Pt(rect.Min.X+2, rect.Min.Y), fmt.Sprintf("%s %.2f", d.Label, d.Confidence), col)
	}
	return dst
}
