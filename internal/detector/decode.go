package detector

import (
	"fmt"

	"github.com/MeKo-Tech/boxguard/internal/utils"
)

// decodeOutput turns a YOLOv8-style output tensor into detections in source
// image coordinates. The tensor is [1, 4+C, N] (cx, cy, w, h, class scores per
// anchor); the transposed [1, N, 4+C] layout is accepted as well.
func decodeOutput(data []float32, shape []int64, labels []string, confThreshold float64,
	lb utils.Letterbox,
) ([]Detection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v, want [1, 4+C, N]", shape)
	}
	rows, cols := int(shape[1]), int(shape[2])
	if rows*cols != len(data) {
		return nil, fmt.Errorf("output data length %d does not match shape %v", len(data), shape)
	}

	numClasses := len(labels)
	attrs := 4 + numClasses
	var anchors int
	var at func(attr, anchor int) float32
	switch {
	case rows == attrs:
		anchors = cols
		at = func(attr, anchor int) float32 { return data[attr*cols+anchor] }
	case cols == attrs:
		anchors = rows
		at = func(attr, anchor int) float32 { return data[anchor*cols+attr] }
	default:
		return nil, fmt.Errorf("output shape %v does not fit %d classes", shape, numClasses)
	}

	var dets []Detection
	for i := 0; i < anchors; i++ {
		best, score := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); best < 0 || s > score {
				best, score = c, s
			}
		}
		if best < 0 || float64(score) <= confThreshold {
			continue
		}

		cx, cy, w, h := float64(at(0, i)), float64(at(1, i)), float64(at(2, i)), float64(at(3, i))
		box := lb.ToSource(utils.NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2))
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		dets = append(dets, Detection{
			Box:        box,
			Label:      labels[best],
			ClassID:    best,
			Confidence: float64(score),
		})
	}
	return dets, nil
}
