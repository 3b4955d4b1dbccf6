// Package landmark decodes a landmark model's raw tensor output into
// keypoints, optionally refines them against a heatmap, removes
// letterbox padding, and projects them from ROI-local to image-global
// (or world) coordinates. See spec.md §4.3.
package landmark

import (
	"fmt"
	"math"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

const valuesPerLandmark = 5 // x, y, z, visibility, presence

// DecodeConfig parameterizes the raw-tensor-to-keypoints decode.
type DecodeConfig struct {
	InputImageWidth, InputImageHeight int

	// NormalizeZ scales z by inputImageWidth/NormalizeZ. Zero means 1
	// (spec.md §4.3 default).
	NormalizeZ float64

	ApplyVisibilityActivation bool
	FlipHorizontally          bool
	FlipVertically            bool
}

// DecodeResult carries the decoded keypoints plus, for each, the
// activated per-landmark presence value the raw tensor provided
// alongside visibility. Presence is distinct from the pipeline-level
// pose-presence scalar (spec.md §4.4 step 5), which is a separate model
// output gating the whole frame, not a per-keypoint quantity.
type DecodeResult struct {
	Landmarks []pose.Keypoint
	Presence  []float64
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Decode reshapes a flat [numLandmarks·5] tensor into keypoints, applying
// the configured visibility activation and normalizing x, y by the input
// tensor's pixel size and z by inputImageWidth/NormalizeZ. Optional
// flips are applied after normalization.
func Decode(raw []float64, numLandmarks int, cfg DecodeConfig) (DecodeResult, error) {
	if len(raw) != numLandmarks*valuesPerLandmark {
		return DecodeResult{}, fmt.Errorf("landmark: raw tensor length %d does not match numLandmarks·%d = %d", len(raw), valuesPerLandmark, numLandmarks*valuesPerLandmark)
	}
	if cfg.InputImageWidth <= 0 || cfg.InputImageHeight <= 0 {
		return DecodeResult{}, fmt.Errorf("landmark: input image size must be positive, got %dx%d", cfg.InputImageWidth, cfg.InputImageHeight)
	}

	normalizeZ := cfg.NormalizeZ
	if normalizeZ == 0 {
		normalizeZ = 1
	}

	landmarks := make([]pose.Keypoint, numLandmarks)
	presence := make([]float64, numLandmarks)

	for i := 0; i < numLandmarks; i++ {
		off := i * valuesPerLandmark
		x, y, z := raw[off], raw[off+1], raw[off+2]
		visibility, presenceRaw := raw[off+3], raw[off+4]

		if cfg.ApplyVisibilityActivation {
			visibility = sigmoid(visibility)
			presenceRaw = sigmoid(presenceRaw)
		}

		normX := x / float64(cfg.InputImageWidth)
		normY := y / float64(cfg.InputImageHeight)
		normZ := z / (float64(cfg.InputImageWidth) / normalizeZ)

		if cfg.FlipHorizontally {
			normX = 1 - normX
		}
		if cfg.FlipVertically {
			normY = 1 - normY
		}

		landmarks[i] = pose.Keypoint{
			X: normX, Y: normY,
			Z: normZ, HasZ: true,
			Score: visibility, HasScore: true,
		}
		presence[i] = presenceRaw
	}

	return DecodeResult{Landmarks: landmarks, Presence: presence}, nil
}

const valuesPerWorldLandmark = 3 // x, y, z; world landmarks carry no per-point visibility/presence

// DecodeWorld reshapes a flat [numLandmarks·3] world-landmark tensor into
// keypoints. World coordinates are already metric (meters, subject-
// centered) and carry no visibility/presence of their own — callers
// attach 2D visibility separately via pose.CopyScore.
func DecodeWorld(raw []float64, numLandmarks int) ([]pose.Keypoint, error) {
	if len(raw) != numLandmarks*valuesPerWorldLandmark {
		return nil, fmt.Errorf("landmark: raw world tensor length %d does not match numLandmarks·%d = %d", len(raw), valuesPerWorldLandmark, numLandmarks*valuesPerWorldLandmark)
	}
	out := make([]pose.Keypoint, numLandmarks)
	for i := 0; i < numLandmarks; i++ {
		off := i * valuesPerWorldLandmark
		out[i] = pose.Keypoint{X: raw[off], Y: raw[off+1], Z: raw[off+2], HasZ: true}
	}
	return out, nil
}

// RemoveLetterbox unprojects keypoints out of letterboxed tensor space.
// z (when present) is rescaled by the x-axis factor, to preserve
// isotropy with x.
func RemoveLetterbox(landmarks []pose.Keypoint, padding geom.Padding) []pose.Keypoint {
	out := make([]pose.Keypoint, len(landmarks))
	xScale := 1 - padding.Left - padding.Right
	for i, lm := range landmarks {
		x, y := geom.RemoveLetterbox(lm.X, lm.Y, padding)
		out[i] = lm
		out[i].X, out[i].Y = x, y
		if lm.HasZ {
			out[i].Z = lm.Z / xScale
		}
	}
	return out
}

// ToAbsolute converts normalized keypoints ([0,1]) to pixel coordinates
// against imageSize. Always returns a fresh slice — spec.md §9 selects
// the fresh-record variant over the in-place-mutating one.
func ToAbsolute(landmarks []pose.Keypoint, imageSize geom.ImageSize) []pose.Keypoint {
	out := make([]pose.Keypoint, len(landmarks))
	w, h := float64(imageSize.Width), float64(imageSize.Height)
	for i, lm := range landmarks {
		out[i] = lm
		out[i].X = lm.X * w
		out[i].Y = lm.Y * h
		if lm.HasZ {
			out[i].Z = lm.Z * w
		}
	}
	return out
}

// ToNormalized converts absolute (pixel) keypoints to normalized
// ([0,1]) coordinates against imageSize. Always returns a fresh slice.
func ToNormalized(landmarks []pose.Keypoint, imageSize geom.ImageSize) []pose.Keypoint {
	out := make([]pose.Keypoint, len(landmarks))
	w, h := float64(imageSize.Width), float64(imageSize.Height)
	for i, lm := range landmarks {
		out[i] = lm
		out[i].X = lm.X / w
		out[i].Y = lm.Y / h
		if lm.HasZ {
			out[i].Z = lm.Z / w
		}
	}
	return out
}
