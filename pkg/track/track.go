// Package track assigns stable integer identities to a stream of pose
// batches, matching each incoming pose against a bounded, age-evicted set
// of tracks by a pluggable similarity function. See spec.md §4.6.
package track

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// Track is one tracked identity: its id and the last pose matched to it.
type Track struct {
	ID            int
	Keypoints     []pose.Keypoint
	Box           *geom.BoundingBox
	LastTimestamp int64
}

// Config parameterizes a Tracker's lifecycle.
type Config struct {
	MaxTracks     int
	MaxAgeMillis  int64
	MinSimilarity float64
}

// Validate checks Config's range constraints.
func (c Config) Validate() error {
	if c.MaxTracks < 1 {
		return fmt.Errorf("track: maxTracks must be >= 1, got %d", c.MaxTracks)
	}
	if c.MaxAgeMillis <= 0 {
		return fmt.Errorf("track: maxAge must be > 0, got %d", c.MaxAgeMillis)
	}
	return nil
}

// Similarity scores how well a pose matches a track. A return value below
// the tracker's minSimilarity means "do not match"; a return of 0 rules a
// pair out only when minSimilarity is above 0.
type Similarity func(p pose.Pose, tr *Track) float64

// Tracker assigns stable integer ids to a stream of pose batches via
// greedy, pose-order assignment against live tracks.
type Tracker struct {
	mu sync.Mutex

	cfg        Config
	similarity Similarity

	tracks []*Track
	nextID int
}

// New builds a Tracker. similarity must be non-nil.
func New(cfg Config, similarity Similarity) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if similarity == nil {
		return nil, errors.New("track: similarity function is required")
	}
	return &Tracker{cfg: cfg, similarity: similarity}, nil
}

// Apply runs one tracking step: it ages out stale tracks, greedily
// assigns poses (assumed sorted by confidence descending) to the best
// unassigned live track scoring at least cfg.MinSimilarity, mints a new
// track for every pose left unmatched, then truncates to cfg.MaxTracks
// (freshest kept). It returns poses with ID populated.
func (t *Tracker) Apply(poses []pose.Pose, tsMicros int64) []pose.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxAgeMicros := t.cfg.MaxAgeMillis * 1000
	live := make([]*Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tsMicros-tr.LastTimestamp <= maxAgeMicros {
			live = append(live, tr)
		}
	}
	t.tracks = live

	assigned := make([]bool, len(t.tracks))
	out := make([]pose.Pose, len(poses))

	for i, p := range poses {
		out[i] = p

		bestIdx := -1
		bestScore := math.Inf(-1)
		for j, tr := range t.tracks {
			if assigned[j] {
				continue
			}
			s := t.similarity(p, tr)
			if s >= t.cfg.MinSimilarity && s > bestScore {
				bestScore = s
				bestIdx = j
			}
		}

		if bestIdx >= 0 {
			tr := t.tracks[bestIdx]
			tr.Keypoints = p.Keypoints
			tr.Box = p.Box
			tr.LastTimestamp = tsMicros
			assigned[bestIdx] = true
			out[i].ID = tr.ID
			continue
		}

		t.nextID++
		id := t.nextID
		tr := &Track{ID: id, Keypoints: p.Keypoints, Box: p.Box, LastTimestamp: tsMicros}
		t.tracks = append(t.tracks, tr)
		assigned = append(assigned, true)
		out[i].ID = id
	}

	sort.SliceStable(t.tracks, func(a, b int) bool {
		return t.tracks[a].LastTimestamp > t.tracks[b].LastTimestamp
	})
	if len(t.tracks) > t.cfg.MaxTracks {
		t.tracks = t.tracks[:t.cfg.MaxTracks]
	}

	return out
}

// Remove drops tracks by id.
func (t *Tracker) Remove(ids ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	filtered := t.tracks[:0]
	for _, tr := range t.tracks {
		if !drop[tr.ID] {
			filtered = append(filtered, tr)
		}
	}
	t.tracks = filtered
}

// Reset clears all tracks without resetting the id counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
}

// NextID returns the next unused positive integer id without consuming it.
func (t *Tracker) NextID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextID + 1
}

// LiveIDs returns the ids of all currently live tracks.
func (t *Tracker) LiveIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, len(t.tracks))
	for i, tr := range t.tracks {
		ids[i] = tr.ID
	}
	return ids
}
