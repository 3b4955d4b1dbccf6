package detect

import (
	"testing"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
)

// TestNMSGocvScenarioS2 mirrors TestNMSScenarioS2 against the
// gocv.NMSBoxes-backed variant: same two overlapping boxes, same
// suppression threshold, same expected survivor.
func TestNMSGocvScenarioS2(t *testing.T) {
	dets := []Detection{
		{Box: geom.NewBoundingBox(0.1, 0.1, 0.5, 0.5), Score: 0.9},
		{Box: geom.NewBoundingBox(0.2, 0.2, 0.6, 0.6), Score: 0.8},
	}

	kept := NMSGocv(dets, NMSConfig{
		Similarity:              SimilarityIoU,
		MinSuppressionThreshold: 0.3,
		MaxDetections:           10,
	})

	if len(kept) != 1 {
		t.Fatalf("got %d detections, want 1", len(kept))
	}
	if kept[0].Score != 0.9 {
		t.Errorf("kept detection score = %g, want 0.9", kept[0].Score)
	}
}

func TestNMSGocvDropsBelowScoreThreshold(t *testing.T) {
	dets := []Detection{
		{Box: geom.NewBoundingBox(0, 0, 1, 1), Score: 0.9},
		{Box: geom.NewBoundingBox(0.5, 0.5, 0.9, 0.9), Score: 0.1},
	}

	kept := NMSGocv(dets, NMSConfig{
		MinSuppressionThreshold: 0.3,
		MinScoreThreshold:       0.5,
		MaxDetections:           10,
	})

	if len(kept) != 1 || kept[0].Score != 0.9 {
		t.Fatalf("got %+v, want only the 0.9-score detection", kept)
	}
}

func TestNMSGocvNonOverlappingBoxesBothSurvive(t *testing.T) {
	dets := []Detection{
		{Box: geom.NewBoundingBox(0, 0, 0.2, 0.2), Score: 0.9},
		{Box: geom.NewBoundingBox(0.5, 0.5, 0.7, 0.7), Score: 0.8},
	}

	kept := NMSGocv(dets, NMSConfig{MinSuppressionThreshold: 0.3, MaxDetections: 10})
	if len(kept) != 2 {
		t.Fatalf("got %d detections, want 2 (non-overlapping)", len(kept))
	}
}
