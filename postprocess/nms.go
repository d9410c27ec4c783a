package postprocess

import (
	"math"
	"sort"
)

// candidate is a decoded box in letterboxed input coordinates before
// suppression
type candidate struct {
	x1, y1, x2, y2 float32
	prob           float32
	class          int
	// anchor is the column of the output tensor the box came from
	anchor int
}

// nms implements a class aware Non-Maximum Suppression (NMS), candidates are
// returned highest probability first
func nms(cands []candidate, threshold float32, maxObjects int) []candidate {

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].prob > cands[j].prob
	})

	suppressed := make([]bool, len(cands))
	keep := make([]candidate, 0, len(cands))

	for i := range cands {

		if suppressed[i] {
			continue
		}

		keep = append(keep, cands[i])

		if maxObjects > 0 && len(keep) >= maxObjects {
			break
		}

		for j := i + 1; j < len(cands); j++ {

			if suppressed[j] || cands[j].class != cands[i].class {
				continue
			}

			iou := calculateOverlap(cands[i].x1, cands[i].y1, cands[i].x2, cands[i].y2,
				cands[j].x1, cands[j].y1, cands[j].x2, cands[j].y2)

			if iou > threshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}

// calculateOverlap works out the Intersection of Union (IoU) value of two
// boxes dimensions
func calculateOverlap(xmin0, ymin0, xmax0, ymax0, xmin1, ymin1,
	xmax1, ymax1 float32) float32 {

	w := math.Max(0.0, math.Min(float64(xmax0), float64(xmax1))-math.Max(float64(xmin0), float64(xmin1))+1.0)
	h := math.Max(0.0, math.Min(float64(ymax0), float64(ymax1))-math.Max(float64(ymin0), float64(ymin1))+1.0)
	intersection := w * h

	// area of both rectangles with added 1.0 for inclusive pixel calculation
	area0 := (xmax0 - xmin0 + 1) * (ymax0 - ymin0 + 1)
	area1 := (xmax1 - xmin1 + 1) * (ymax1 - ymin1 + 1)

	union := area0 + area1 - float32(intersection)

	if union <= 0 {
		return 0.0
	}

	return float32(intersection) / union
}

// clamp restricts val to the range min and max
func clamp(val, min, max float32) float32 {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
