// Package pose holds the small set of data types shared across the
// landmark, filter, pipeline, and track packages: a single keypoint and
// a decoded pose (a keypoint set plus an optional box and score).
//
// Optional fields (Z, Score, Box) are represented with explicit presence
// flags/pointers rather than sentinel zero values: spec.md §9 requires
// that z=0 and "z absent" never be confused, since they carry different
// downstream arithmetic.
package pose

import (
	"gocv.io/x/gocv"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
)

// Keypoint is a single 2D-or-3D point with optional depth and visibility.
// For normalized keypoints, X and Y are in [0,1] relative to a reference
// image, and Z (when present) is scaled as if using the same unit as X.
type Keypoint struct {
	X, Y float64

	Z    float64
	HasZ bool

	Score    float64
	HasScore bool

	Name string
}

// CopyScore returns a copy of dst with Score/HasScore taken from src,
// leaving all other fields untouched. dst and src must be the same
// length — used to attach 2D visibility onto 3D world landmarks (spec.md
// §4.3 "Score copy").
func CopyScore(dst, src []Keypoint) []Keypoint {
	out := make([]Keypoint, len(dst))
	copy(out, dst)
	for i := range out {
		if i >= len(src) {
			break
		}
		out[i].Score = src[i].Score
		out[i].HasScore = src[i].HasScore
	}
	return out
}

// Pose is one decoded person: their keypoints, plus optionally a
// bounding box and an overall detection/presence score. Box is a pointer
// because "no box" (e.g. a keypoint-only pose) is a meaningfully
// different state from a zero-sized box.
type Pose struct {
	ID        int
	Keypoints []Keypoint
	Box       *geom.BoundingBox
	Score     float64

	// Mask is the blended segmentation mask (spec.md §3
	// prevSegmentationMask), nil when the model/config doesn't produce
	// one. It is a private copy: the caller owns its native memory and
	// must Close it.
	Mask *gocv.Mat
}
