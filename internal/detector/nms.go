package detector

import (
	"sort"

	"github.com/MeKo-Tech/boxguard/internal/utils"
)

// NonMaxSuppression performs greedy, class-wise NMS. Boxes of different classes
// never suppress each other. The result is ordered by confidence, highest first.
func NonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) <= 1 {
		return dets
	}

	indices := make([]int, len(dets))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return dets[indices[i]].Confidence > dets[indices[j]].Confidence
	})

	suppressed := make([]bool, len(dets))
	kept := make([]Detection, 0, len(dets))
	for n, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, dets[a])

		for _, b := range indices[n+1:] {
			if suppressed[b] || dets[a].ClassID != dets[b].ClassID {
				continue
			}
			if utils.IoU(dets[a].Box, dets[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}
