package landmark

import (
	"fmt"
	"math"

	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// RefineWithHeatmap refines each keypoint's (x, y) against a [H,W,K]
// heatmap tensor (flat, row-major, channel-minor): it finds the maximum
// value within a square kernel window centered on the keypoint's integer
// (row, col), and — if that maximum exceeds minConfidenceToRefine —
// replaces (x, y) with the score-weighted centroid of the window. Below
// threshold, the keypoint is left unchanged.
func RefineWithHeatmap(landmarks []pose.Keypoint, heatmap []float64, height, width, channels int, kernelSize int, minConfidenceToRefine float64) ([]pose.Keypoint, error) {
	if len(heatmap) != height*width*channels {
		return nil, fmt.Errorf("landmark: heatmap length %d does not match %d·%d·%d", len(heatmap), height, width, channels)
	}
	if len(landmarks) > channels {
		return nil, fmt.Errorf("landmark: %d landmarks exceeds %d heatmap channels", len(landmarks), channels)
	}
	if kernelSize <= 0 {
		return nil, fmt.Errorf("landmark: kernelSize must be positive, got %d", kernelSize)
	}

	out := make([]pose.Keypoint, len(landmarks))
	copy(out, landmarks)

	half := kernelSize / 2

	for k := range out {
		row := int(math.Round(out[k].Y * float64(height)))
		col := int(math.Round(out[k].X * float64(width)))

		rMin, rMax := clampWindow(row-half, row+half, height)
		cMin, cMax := clampWindow(col-half, col+half, width)

		maxVal := math.Inf(-1)
		for r := rMin; r <= rMax; r++ {
			for c := cMin; c <= cMax; c++ {
				v := heatmap[(r*width+c)*channels+k]
				if v > maxVal {
					maxVal = v
				}
			}
		}

		if maxVal <= minConfidenceToRefine {
			continue
		}

		var sumX, sumY, sumW float64
		for r := rMin; r <= rMax; r++ {
			for c := cMin; c <= cMax; c++ {
				v := heatmap[(r*width+c)*channels+k]
				sumX += float64(c) * v
				sumY += float64(r) * v
				sumW += v
			}
		}
		if sumW == 0 {
			continue
		}

		out[k].X = (sumX / sumW) / float64(width)
		out[k].Y = (sumY / sumW) / float64(height)
	}

	return out, nil
}

func clampWindow(lo, hi, limit int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > limit-1 {
		hi = limit - 1
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}
