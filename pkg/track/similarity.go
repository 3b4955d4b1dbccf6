package track

import (
	"fmt"
	"math"

	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// BoxIoUSimilarity returns a Similarity comparing poses and tracks by
// bounding-box IoU, thresholded to 0 below iouThreshold. Poses or tracks
// with no box score 0.
func BoxIoUSimilarity(iouThreshold float64) Similarity {
	return func(p pose.Pose, tr *Track) float64 {
		if p.Box == nil || tr.Box == nil {
			return 0
		}
		s := p.Box.IoU(*tr.Box)
		if s < iouThreshold {
			return 0
		}
		return s
	}
}

// KeypointOKSConfig parameterizes the keypoint (OKS) similarity.
type KeypointOKSConfig struct {
	KeypointConfidenceThreshold float64
	Falloff                     []float64
	MinNumberOfKeypoints        int
}

// Validate checks KeypointOKSConfig's documented ranges.
func (c KeypointOKSConfig) Validate() error {
	if c.KeypointConfidenceThreshold < 0 || c.KeypointConfidenceThreshold > 1 {
		return fmt.Errorf("track: keypointConfidenceThreshold must be in [0,1], got %g", c.KeypointConfidenceThreshold)
	}
	for i, f := range c.Falloff {
		if f <= 0 {
			return fmt.Errorf("track: falloff[%d] must be > 0, got %g", i, f)
		}
	}
	if c.MinNumberOfKeypoints < 1 {
		return fmt.Errorf("track: minNumberOfKeypoints must be >= 1, got %d", c.MinNumberOfKeypoints)
	}
	return nil
}

// KeypointOKSSimilarity returns a Similarity implementing Object Keypoint
// Similarity: using only keypoints with both pose- and track-scores above
// cfg.KeypointConfidenceThreshold,
//
//	OKS = (1/nValid) · Σ exp( −d_i² / (2·boxArea·(2·falloff_i)²) )
//
// where boxArea is the area of the bounding box around valid track
// keypoints (plus a 1e-6 epsilon). If fewer than
// cfg.MinNumberOfKeypoints are valid, the similarity is 0.
func KeypointOKSSimilarity(cfg KeypointOKSConfig) Similarity {
	return func(p pose.Pose, tr *Track) float64 {
		n := len(p.Keypoints)
		if len(tr.Keypoints) < n {
			n = len(tr.Keypoints)
		}

		valid := make([]int, 0, n)
		var minX, maxX, minY, maxY float64
		for i := 0; i < n; i++ {
			pk, tk := p.Keypoints[i], tr.Keypoints[i]
			if !pk.HasScore || pk.Score < cfg.KeypointConfidenceThreshold {
				continue
			}
			if !tk.HasScore || tk.Score < cfg.KeypointConfidenceThreshold {
				continue
			}
			if len(valid) == 0 {
				minX, maxX, minY, maxY = tk.X, tk.X, tk.Y, tk.Y
			} else {
				minX = math.Min(minX, tk.X)
				maxX = math.Max(maxX, tk.X)
				minY = math.Min(minY, tk.Y)
				maxY = math.Max(maxY, tk.Y)
			}
			valid = append(valid, i)
		}

		if len(valid) < cfg.MinNumberOfKeypoints {
			return 0
		}

		boxArea := (maxX-minX)*(maxY-minY) + 1e-6

		var sum float64
		for _, i := range valid {
			pk, tk := p.Keypoints[i], tr.Keypoints[i]
			dx, dy := pk.X-tk.X, pk.Y-tk.Y
			d2 := dx*dx + dy*dy

			falloff := 0.0
			if i < len(cfg.Falloff) {
				falloff = cfg.Falloff[i]
			}
			denom := 2 * boxArea * (2 * falloff) * (2 * falloff)
			if denom == 0 {
				continue
			}
			sum += math.Exp(-d2 / denom)
		}

		return sum / float64(len(valid))
	}
}
