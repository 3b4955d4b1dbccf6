package landmark

import (
	"math"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// Project maps a ROI-local normalized keypoint into image-normalized
// coordinates, per spec.md §4.3:
//
//	x' = roi.xCenter + (xN−0.5)·roi.width·cos(rot)  − (yN−0.5)·roi.height·sin(rot)
//	y' = roi.yCenter + (xN−0.5)·roi.width·sin(rot)  + (yN−0.5)·roi.height·cos(rot)
//	z' = zN · roi.width
func Project(lm pose.Keypoint, roi geom.Rect) pose.Keypoint {
	cosR, sinR := math.Cos(roi.Rotation), math.Sin(roi.Rotation)
	dx := (lm.X - 0.5) * roi.Width
	dy := (lm.Y - 0.5) * roi.Height

	out := lm
	out.X = roi.XCenter + dx*cosR - dy*sinR
	out.Y = roi.YCenter + dx*sinR + dy*cosR
	if lm.HasZ {
		out.Z = lm.Z * roi.Width
	}
	return out
}

// ProjectAll applies Project to every keypoint, returning a fresh slice.
func ProjectAll(landmarks []pose.Keypoint, roi geom.Rect) []pose.Keypoint {
	out := make([]pose.Keypoint, len(landmarks))
	for i, lm := range landmarks {
		out[i] = Project(lm, roi)
	}
	return out
}

// ProjectWorld rotates a world-space landmark by the ROI's rotation with
// no translation and no scaling — world landmarks are already expressed
// in real-world metric units centered at the subject.
func ProjectWorld(lm pose.Keypoint, rotation float64) pose.Keypoint {
	cosR, sinR := math.Cos(rotation), math.Sin(rotation)
	out := lm
	out.X = lm.X*cosR - lm.Y*sinR
	out.Y = lm.X*sinR + lm.Y*cosR
	return out
}

// ProjectWorldAll applies ProjectWorld to every keypoint.
func ProjectWorldAll(landmarks []pose.Keypoint, rotation float64) []pose.Keypoint {
	out := make([]pose.Keypoint, len(landmarks))
	for i, lm := range landmarks {
		out[i] = ProjectWorld(lm, rotation)
	}
	return out
}
