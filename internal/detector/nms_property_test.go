package detector

import (
	"testing"

	"github.com/MeKo-Tech/boxguard/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genDetection() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0, 190),
		gen.Float64Range(0, 190),
		gen.Float64Range(0.1, 1.0),
		gen.IntRange(0, 2),
	).Map(func(vals []interface{}) Detection {
		x, ok := vals[0].(float64)
		if !ok {
			panic("expected float64")
		}
		y, ok := vals[1].(float64)
		if !ok {
			panic("expected float64")
		}
		conf, ok := vals[2].(float64)
		if !ok {
			panic("expected float64")
		}
		class, ok := vals[3].(int)
		if !ok {
			panic("expected int")
		}
		return Detection{Box: utils.NewBox(x, y, x+10, y+10), ClassID: class, Confidence: conf}
	})
}

// TestNonMaxSuppression_Properties checks ordering and the overlap guarantee.
func TestNonMaxSuppression_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("output sorted by confidence", prop.ForAll(
		func(dets []Detection) bool {
			kept := NonMaxSuppression(dets, 0.45)
			for i := 1; i < len(kept); i++ {
				if kept[i].Confidence > kept[i-1].Confidence {
					return false
				}
			}
			return len(kept) <= len(dets)
		},
		gen.SliceOfN(20, genDetection()),
	))

	properties.Property("no kept pair of one class overlaps above threshold", prop.ForAll(
		func(dets []Detection) bool {
			kept := NonMaxSuppression(dets, 0.45)
			for i := range kept {
				for j := i + 1; j < len(kept); j++ {
					if kept[i].ClassID == kept[j].ClassID && utils.IoU(kept[i].Box, kept[j].Box) > 0.45 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(20, genDetection()),
	))

	properties.TestingRun(t)
}
