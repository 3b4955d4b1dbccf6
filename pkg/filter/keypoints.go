package filter

import (
	"math"
	"sync"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// KeypointsFilter holds three parallel arrays of scalar filters (one per
// keypoint, for x, y, and z) built by newFilter. If the incoming keypoint
// count differs from the stored array length, the filter re-initializes —
// a soft reset for that stream.
type KeypointsFilter struct {
	mu        sync.Mutex
	newFilter func() ScalarFilter

	x, y, z []ScalarFilter
}

// NewKeypointsFilter returns a KeypointsFilter that builds a fresh
// ScalarFilter per axis per keypoint via newFilter.
func NewKeypointsFilter(newFilter func() ScalarFilter) *KeypointsFilter {
	return &KeypointsFilter{newFilter: newFilter}
}

// Apply filters every keypoint's x, y (and z, when present), returning a
// fresh slice.
func (kf *KeypointsFilter) Apply(keypoints []pose.Keypoint, timestampUs int64, objectScale float64) []pose.Keypoint {
	kf.mu.Lock()
	defer kf.mu.Unlock()

	if len(kf.x) != len(keypoints) {
		kf.initLocked(len(keypoints))
	}

	out := make([]pose.Keypoint, len(keypoints))
	for i, kp := range keypoints {
		out[i] = kp
		out[i].X = kf.x[i].Apply(kp.X, timestampUs, objectScale)
		out[i].Y = kf.y[i].Apply(kp.Y, timestampUs, objectScale)
		if kp.HasZ {
			out[i].Z = kf.z[i].Apply(kp.Z, timestampUs, objectScale)
		}
	}
	return out
}

func (kf *KeypointsFilter) initLocked(n int) {
	kf.x = make([]ScalarFilter, n)
	kf.y = make([]ScalarFilter, n)
	kf.z = make([]ScalarFilter, n)
	for i := 0; i < n; i++ {
		kf.x[i] = kf.newFilter()
		kf.y[i] = kf.newFilter()
		kf.z[i] = kf.newFilter()
	}
}

// Reset drops all per-keypoint filter state; the next Apply re-initializes.
func (kf *KeypointsFilter) Reset() {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	kf.x, kf.y, kf.z = nil, nil, nil
}

// VisibilityFilter applies a per-keypoint low-pass to the Score field
// only; X, Y, and Z are left untouched.
type VisibilityFilter struct {
	mu      sync.Mutex
	alpha   float64
	filters []*LowPass
}

// NewVisibilityFilter returns a VisibilityFilter with smoothing factor
// alpha ∈ [0,1].
func NewVisibilityFilter(alpha float64) *VisibilityFilter {
	return &VisibilityFilter{alpha: alpha}
}

// Apply smooths the Score of every keypoint that has one, returning a
// fresh slice.
func (vf *VisibilityFilter) Apply(keypoints []pose.Keypoint) []pose.Keypoint {
	vf.mu.Lock()
	defer vf.mu.Unlock()

	if len(vf.filters) != len(keypoints) {
		vf.filters = make([]*LowPass, len(keypoints))
		for i := range vf.filters {
			vf.filters[i] = NewLowPass(vf.alpha)
		}
	}

	out := make([]pose.Keypoint, len(keypoints))
	for i, kp := range keypoints {
		out[i] = kp
		if kp.HasScore {
			out[i].Score = vf.filters[i].Apply(kp.Score, 0, 0)
		}
	}
	return out
}

// Reset drops all per-keypoint filter state.
func (vf *VisibilityFilter) Reset() {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	vf.filters = nil
}

// ObjectScale computes the scale value used by RelativeVelocityFilter to
// gate and rescale smoothing: the average of box's width and height, or —
// when box is nil — the bounding extent of the keypoint cloud.
func ObjectScale(box *geom.BoundingBox, keypoints []pose.Keypoint) float64 {
	if box != nil {
		return (box.Width + box.Height) / 2
	}
	if len(keypoints) == 0 {
		return 0
	}

	minX, maxX := keypoints[0].X, keypoints[0].X
	minY, maxY := keypoints[0].Y, keypoints[0].Y
	for _, kp := range keypoints[1:] {
		minX = math.Min(minX, kp.X)
		maxX = math.Max(maxX, kp.X)
		minY = math.Min(minY, kp.Y)
		maxY = math.Max(maxY, kp.Y)
	}
	return ((maxX - minX) + (maxY - minY)) / 2
}
