package track

import (
	"testing"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

func boxPose(xmin, ymin, xmax, ymax float64) pose.Pose {
	box := geom.NewBoundingBox(xmin, ymin, xmax, ymax)
	return pose.Pose{Box: &box}
}

// TestBoxTrackerScenarioS6 covers spec.md §8 scenario S6: an identical box
// arriving after the track has aged out spawns a new id, not a re-link.
func TestBoxTrackerScenarioS6(t *testing.T) {
	tr, err := New(Config{MaxTracks: 4, MaxAgeMillis: 1000, MinSimilarity: 0.1}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 0)
	if first[0].ID != 1 {
		t.Fatalf("first id = %d, want 1", first[0].ID)
	}

	second := tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 1_050_000)
	if second[0].ID == first[0].ID {
		t.Errorf("id %d re-linked to an evicted track, want a new id", second[0].ID)
	}
	if second[0].ID != 2 {
		t.Errorf("second id = %d, want 2 (freshly minted)", second[0].ID)
	}
}

// TestBoxTrackerRetainsIDWithinMaxAge covers invariant 7: identical input
// at a delta under maxAge keeps the same id.
func TestBoxTrackerRetainsIDWithinMaxAge(t *testing.T) {
	tr, err := New(Config{MaxTracks: 4, MaxAgeMillis: 1000, MinSimilarity: 0.1}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 0)
	second := tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 500_000)

	if second[0].ID != first[0].ID {
		t.Errorf("id changed from %d to %d within maxAge", first[0].ID, second[0].ID)
	}
}

// TestBoxTrackerNoDuplicateIDs covers invariant 8.
func TestBoxTrackerNoDuplicateIDs(t *testing.T) {
	tr, err := New(Config{MaxTracks: 10, MaxAgeMillis: 1000, MinSimilarity: 0.5}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	poses := []pose.Pose{
		boxPose(0, 0, 1, 1),
		boxPose(10, 10, 11, 11),
		boxPose(20, 20, 21, 21),
	}
	out := tr.Apply(poses, 0)

	seen := make(map[int]bool)
	for _, p := range out {
		if seen[p.ID] {
			t.Fatalf("duplicate id %d", p.ID)
		}
		seen[p.ID] = true
	}
	for _, id := range tr.LiveIDs() {
		if _, ok := seen[id]; !ok {
			t.Errorf("live id %d missing from assigned ids %v", id, seen)
		}
	}
}

func TestBoxTrackerMaxTracksTruncatesToFreshest(t *testing.T) {
	tr, err := New(Config{MaxTracks: 1, MaxAgeMillis: 10_000, MinSimilarity: 0.9}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 0)
	tr.Apply([]pose.Pose{boxPose(50, 50, 51, 51)}, 1000)

	live := tr.LiveIDs()
	if len(live) != 1 {
		t.Fatalf("live tracks = %d, want 1", len(live))
	}
	if live[0] != 2 {
		t.Errorf("surviving id = %d, want 2 (most recent)", live[0])
	}
}

func TestRemoveDropsByID(t *testing.T) {
	tr, err := New(Config{MaxTracks: 10, MaxAgeMillis: 10_000, MinSimilarity: 0.5}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 0)
	tr.Remove(1)
	if live := tr.LiveIDs(); len(live) != 0 {
		t.Errorf("live = %v, want empty after Remove", live)
	}
}

func TestResetClearsTracksNotCounter(t *testing.T) {
	tr, err := New(Config{MaxTracks: 10, MaxAgeMillis: 10_000, MinSimilarity: 0.5}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 0)
	tr.Reset()
	if live := tr.LiveIDs(); len(live) != 0 {
		t.Errorf("live = %v, want empty after Reset", live)
	}
	out := tr.Apply([]pose.Pose{boxPose(0, 0, 1, 1)}, 0)
	if out[0].ID != 2 {
		t.Errorf("id after reset = %d, want 2 (counter not reset)", out[0].ID)
	}
}

func kpPose(score float64, pts ...[2]float64) pose.Pose {
	kps := make([]pose.Keypoint, len(pts))
	for i, pt := range pts {
		kps[i] = pose.Keypoint{X: pt[0], Y: pt[1], Score: score, HasScore: true}
	}
	return pose.Pose{Keypoints: kps}
}

func TestKeypointTrackerMatchesNearbyPose(t *testing.T) {
	cfg := KeypointOKSConfig{KeypointConfidenceThreshold: 0.2, Falloff: []float64{0.1, 0.1, 0.1, 0.1}, MinNumberOfKeypoints: 2}
	tr, err := New(Config{MaxTracks: 4, MaxAgeMillis: 1000, MinSimilarity: 0.5}, KeypointOKSSimilarity(cfg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p1 := kpPose(0.9, [2]float64{0, 0}, [2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3})
	first := tr.Apply([]pose.Pose{p1}, 0)

	p2 := kpPose(0.9, [2]float64{0.001, 0.001}, [2]float64{1.001, 1.001}, [2]float64{2, 2}, [2]float64{3, 3})
	second := tr.Apply([]pose.Pose{p2}, 100_000)

	if second[0].ID != first[0].ID {
		t.Errorf("id changed for near-identical pose: %d -> %d", first[0].ID, second[0].ID)
	}
}

func TestKeypointTrackerBelowMinKeypointsNeverMatches(t *testing.T) {
	cfg := KeypointOKSConfig{KeypointConfidenceThreshold: 0.2, Falloff: []float64{0.1, 0.1}, MinNumberOfKeypoints: 5}
	sim := KeypointOKSSimilarity(cfg)

	p := kpPose(0.9, [2]float64{0, 0}, [2]float64{1, 1})
	tr := &Track{Keypoints: p.Keypoints}

	if s := sim(p, tr); s != 0 {
		t.Errorf("similarity = %g, want 0 (below minNumberOfKeypoints)", s)
	}
}

func TestApplyOutputLengthMatchesInput(t *testing.T) {
	tr, err := New(Config{MaxTracks: 10, MaxAgeMillis: 1000, MinSimilarity: 0.5}, BoxIoUSimilarity(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	poses := []pose.Pose{boxPose(0, 0, 1, 1), boxPose(5, 5, 6, 6), boxPose(9, 9, 10, 10)}
	out := tr.Apply(poses, 0)
	if len(out) != len(poses) {
		t.Errorf("len(out) = %d, want %d", len(out), len(poses))
	}
}

func TestKeypointOKSConfigValidate(t *testing.T) {
	bad := KeypointOKSConfig{KeypointConfidenceThreshold: 1.5, Falloff: []float64{0.1}, MinNumberOfKeypoints: 1}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range confidence threshold")
	}

	bad2 := KeypointOKSConfig{KeypointConfidenceThreshold: 0.2, Falloff: []float64{0}, MinNumberOfKeypoints: 1}
	if err := bad2.Validate(); err == nil {
		t.Error("expected error for non-positive falloff")
	}
}

func TestConfigValidateRejectsZeroMaxTracks(t *testing.T) {
	if err := (Config{MaxTracks: 0, MaxAgeMillis: 1000}).Validate(); err == nil {
		t.Error("expected error for maxTracks=0")
	}
	if err := (Config{MaxTracks: 1, MaxAgeMillis: 0}).Validate(); err == nil {
		t.Error("expected error for maxAge=0")
	}
}
