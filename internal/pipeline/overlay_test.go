package pipeline

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/inspect"
	"github.com/MeKo-Tech/boxguard/internal/testutil"
	"github.com/MeKo-Tech/boxguard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOverlay(t *testing.T) {
	src := testutil.CreateTestImage(100, 100, color.Black)
	zone := inspect.Zone{Width: 40, Height: 40}.Bounds(100, 100)
	dets := []detector.Detection{
		{Box: utils.NewBox(10, 60, 30, 90), Label: "box", Confidence: 0.9},
		{Box: utils.NewBox(60, 60, 90, 90), Label: "hole", Confidence: 0.8},
	}

	out := RenderOverlay(src, zone, dets, inspect.NewLabelSet("box"))
	require.NotNil(t, out)
	assert.Equal(t, src.Bounds(), out.Bounds())

	assert.Equal(t, zoneColor, out.RGBAAt(zone.MinX, 35))
	assert.Equal(t, okColor, out.RGBAAt(10, 75))
	assert.Equal(t, badColor, out.RGBAAt(60, 75))
	// Inside a box nothing is painted.
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(75, 75))
	// The source is untouched.
	assert.Equal(t, color.RGBA{A: 255}, src.RGBAAt(zone.MinX, 35))
}

func TestRenderOverlayNil(t *testing.T) {
	assert.Nil(t, RenderOverlay(nil, inspect.Bounds{}, nil, nil))
}
