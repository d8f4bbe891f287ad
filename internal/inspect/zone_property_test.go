package inspect

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestZone_EdgeInclusion checks for arbitrary frame and zone sizes that the
// zone edges are in and one pixel beyond them is out.
func TestZone_EdgeInclusion(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("edges inclusive, one unit outside excluded", prop.ForAll(
		func(fw, fh, zw, zh int) bool {
			z := Zone{Width: zw, Height: zh}
			b := z.Bounds(fw, fh)
			cy := float64(fh / 2)
			cx := float64(fw / 2)

			return z.Contains(fw, fh, centred("box", float64(b.MinX), cy)) &&
				z.Contains(fw, fh, centred("box", float64(b.MaxX), cy)) &&
				z.Contains(fw, fh, centred("box", cx, float64(b.MinY))) &&
				z.Contains(fw, fh, centred("box", cx, float64(b.MaxY))) &&
				!z.Contains(fw, fh, centred("box", float64(b.MinX-1), cy)) &&
				!z.Contains(fw, fh, centred("box", float64(b.MaxX+1), cy)) &&
				!z.Contains(fw, fh, centred("box", cx, float64(b.MinY-1))) &&
				!z.Contains(fw, fh, centred("box", cx, float64(b.MaxY+1)))
		},
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.Property("bounds are symmetric about the integer centre", prop.ForAll(
		func(fw, fh, zw, zh int) bool {
			b := Zone{Width: zw, Height: zh}.Bounds(fw, fh)
			return b.MinX+b.MaxX == 2*(fw/2) && b.MinY+b.MaxY == 2*(fh/2)
		},
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
