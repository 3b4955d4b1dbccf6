package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/PoseFlowDEV/poseflow/pkg/filter"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
)

// roiState distinguishes the two states of spec.md §4.4's state
// machine: noRoi (run the detector this frame) and hasRoi (reuse the
// cached crop region).
type roiState int

const (
	noRoi roiState = iota
	hasRoi
)

// pipelineState is everything a failed or reset frame must drop: the
// cached ROI, every temporal filter's internal state, and the recorded
// landmark-count/timestamp bookkeeping used to detect the conditions
// that force a reset.
type pipelineState struct {
	kind roiState
	roi  geom.Rect

	actualFilter    *filter.KeypointSmoother
	auxiliaryFilter *filter.KeypointSmoother
	worldFilter     *filter.KeypointSmoother
	visibility      *filter.VisibilityFilter

	actualLen, auxiliaryLen, worldLen int

	hasTimestamp  bool
	lastTimestamp int64

	// segmentationMask caches the previous frame's blended mask
	// (spec.md §3 prevSegmentationMask). It owns native OpenCV memory
	// and must be released by closeSegmentationMask (which resetLocked
	// and Dispose call) before being overwritten or dropped.
	segmentationMask    gocv.Mat
	hasSegmentationMask bool
}

// closeSegmentationMask releases the cached mask's native memory, if any.
func (s *pipelineState) closeSegmentationMask() {
	if s.hasSegmentationMask {
		s.segmentationMask.Close()
		s.hasSegmentationMask = false
	}
}

// sizeMismatch reports whether the incoming landmark-set lengths differ
// from those recorded for the currently-held filter state — the
// "filter-state size mismatch" condition of spec.md §4.4's failure/reset
// contract. A zero recorded length means no filter state has been
// observed yet, so it can never mismatch.
func (s *pipelineState) sizeMismatch(actualLen, auxiliaryLen, worldLen int) bool {
	if s.actualLen != 0 && s.actualLen != actualLen {
		return true
	}
	if s.auxiliaryLen != 0 && s.auxiliaryLen != auxiliaryLen {
		return true
	}
	if s.worldLen != 0 && worldLen != 0 && s.worldLen != worldLen {
		return true
	}
	return false
}
