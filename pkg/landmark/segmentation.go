package landmark

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DecodeSegmentationMask reshapes a model's flat segmentation output into
// a single-channel float32 gocv.Mat of height x width, optionally passing
// each value through a sigmoid activation (the raw output is commonly a
// per-pixel logit, matching the landmark visibility/presence convention).
func DecodeSegmentationMask(raw []float64, height, width int, applyActivation bool) (gocv.Mat, error) {
	if len(raw) != height*width {
		return gocv.Mat{}, fmt.Errorf("landmark: segmentation mask expects %d values (%dx%d), got %d", height*width, width, height, len(raw))
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV32F)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			v := raw[row*width+col]
			if applyActivation {
				v = sigmoid(v)
			}
			mat.SetFloatAt(row, col, float32(v))
		}
	}
	return mat, nil
}
