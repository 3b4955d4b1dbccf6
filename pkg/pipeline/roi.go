package pipeline

import (
	"fmt"
	"math"

	"github.com/PoseFlowDEV/poseflow/pkg/detect"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// roiFromDetection converts a detection to an oriented ROI rect: the
// rotation is derived from the vector between the configured alignment
// keypoints so it points at cfg.TargetRotation, the base rect is the
// detection's axis-aligned box carrying that rotation, and the
// configured rect transform (shift/scale/square) is applied on top
// (spec.md §4.4 step 3).
func roiFromDetection(d detect.Detection, cfg RoiConfig) (geom.Rect, error) {
	i0, i1 := cfg.AlignmentKeypoints[0], cfg.AlignmentKeypoints[1]
	if i0 < 0 || i1 < 0 || i0 >= len(d.Keypoints) || i1 >= len(d.Keypoints) {
		return geom.Rect{}, fmt.Errorf("pipeline: alignment keypoints %v out of range for %d detection keypoints", cfg.AlignmentKeypoints, len(d.Keypoints))
	}
	p0, p1 := d.Keypoints[i0], d.Keypoints[i1]
	rotation := geom.NormalizeRadians(cfg.TargetRotation - math.Atan2(p1.Y-p0.Y, p1.X-p0.X))

	base := geom.Rect{
		XCenter:  (d.Box.XMin + d.Box.XMax) / 2,
		YCenter:  (d.Box.YMin + d.Box.YMax) / 2,
		Width:    d.Box.Width,
		Height:   d.Box.Height,
		Rotation: rotation,
	}
	if err := base.Valid(); err != nil {
		return geom.Rect{}, err
	}

	return geom.TransformNormalizedRect(base, cfg.RectTransform), nil
}

// detectionFromKeypoints builds a synthetic single-keypoint-set
// detection from a landmark set — used to re-derive the next frame's
// ROI from the current frame's auxiliary landmarks (spec.md §4.4 step
// 9), reusing roiFromDetection's alignment/transform logic unchanged.
func detectionFromKeypoints(keypoints []pose.Keypoint) (detect.Detection, error) {
	if len(keypoints) == 0 {
		return detect.Detection{}, fmt.Errorf("pipeline: cannot derive a detection from zero keypoints")
	}

	minX, maxX := keypoints[0].X, keypoints[0].X
	minY, maxY := keypoints[0].Y, keypoints[0].Y
	kps := make([]detect.Keypoint2D, len(keypoints))
	for i, kp := range keypoints {
		kps[i] = detect.Keypoint2D{X: kp.X, Y: kp.Y}
		minX, maxX = math.Min(minX, kp.X), math.Max(maxX, kp.X)
		minY, maxY = math.Min(minY, kp.Y), math.Max(maxY, kp.Y)
	}

	return detect.Detection{
		Box:       geom.NewBoundingBox(minX, minY, maxX, maxY),
		Keypoints: kps,
		Score:     1,
	}, nil
}
