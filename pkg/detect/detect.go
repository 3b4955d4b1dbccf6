// Package detect turns a detector model's raw (scores, boxes) tensors
// into a list of oriented-box-free detections (spec.md §4.2): SSD-style
// box/keypoint decoding against an anchor grid, followed by
// non-maximum suppression and letterbox removal.
package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/PoseFlowDEV/poseflow/pkg/anchors"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
)

// Keypoint2D is a normalized alignment keypoint attached to a Detection.
type Keypoint2D struct {
	X, Y float64
}

// Detection is a decoded detector output: a normalized axis-aligned box,
// its alignment keypoints (typically 4-6), and a confidence score.
type Detection struct {
	Box       geom.BoundingBox
	Keypoints []Keypoint2D
	Score     float64
}

// DecodeConfig parameterizes the SSD-style tensor decode. See spec.md
// §4.2.
type DecodeConfig struct {
	NumClasses           int
	NumCoords            int
	NumKeypoints         int
	NumValuesPerKeypoint int

	XScale, YScale, WScale, HScale float64

	ApplyExponentialOnBoxSize bool
	ReverseOutputOrder        bool
	FlipVertically            bool

	ApplySigmoidToScore   bool
	SigmoidScoreClipThresh float64
	IgnoreClasses          map[int]bool

	MinScoreThresh float64
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clip(x, limit float64) float64 {
	if limit <= 0 {
		return x
	}
	if x < -limit {
		return -limit
	}
	if x > limit {
		return limit
	}
	return x
}

// bestClassScore returns the best (score, classIndex) among raw, skipping
// any class present in ignore. raw has length numClasses.
func bestClassScore(raw []float64, ignore map[int]bool, applySigmoid bool, clipThresh float64) (float64, int) {
	best := math.Inf(-1)
	bestIdx := -1
	for c, v := range raw {
		if ignore[c] {
			continue
		}
		score := v
		if applySigmoid {
			score = sigmoid(clip(score, clipThresh))
		}
		if score > best {
			best = score
			bestIdx = c
		}
	}
	return best, bestIdx
}

// DecodeDetections decodes rawScores/rawBoxes against grid into a list of
// detections passing cfg.MinScoreThresh. rawScores has length
// numBoxes·cfg.NumClasses (or numBoxes, for the single-class case).
// rawBoxes has length numBoxes·cfg.NumCoords, where the first 4 values per
// box are the box offsets and the remaining
// cfg.NumKeypoints·cfg.NumValuesPerKeypoint are keypoint offsets.
func DecodeDetections(rawScores, rawBoxes []float64, grid *anchors.Grid, cfg DecodeConfig) ([]Detection, error) {
	numBoxes := len(grid.Anchors)
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("detect: numClasses must be positive, got %d", cfg.NumClasses)
	}
	if len(rawScores) != numBoxes*cfg.NumClasses {
		return nil, fmt.Errorf("detect: rawScores length %d does not match numBoxes·numClasses %d", len(rawScores), numBoxes*cfg.NumClasses)
	}
	wantCoords := 4 + cfg.NumKeypoints*cfg.NumValuesPerKeypoint
	if cfg.NumCoords < wantCoords {
		return nil, fmt.Errorf("detect: numCoords %d too small for 4 box coords + %d keypoint values", cfg.NumCoords, wantCoords-4)
	}
	if len(rawBoxes) != numBoxes*cfg.NumCoords {
		return nil, fmt.Errorf("detect: rawBoxes length %d does not match numBoxes·numCoords %d", len(rawBoxes), numBoxes*cfg.NumCoords)
	}

	var out []Detection

	for i := 0; i < numBoxes; i++ {
		var score float64
		var classIdx int
		if cfg.NumClasses == 1 {
			score = rawScores[i]
			if cfg.ApplySigmoidToScore {
				score = sigmoid(clip(score, cfg.SigmoidScoreClipThresh))
			}
			classIdx = 0
		} else {
			classScores := rawScores[i*cfg.NumClasses : (i+1)*cfg.NumClasses]
			score, classIdx = bestClassScore(classScores, cfg.IgnoreClasses, cfg.ApplySigmoidToScore, cfg.SigmoidScoreClipThresh)
		}
		if classIdx < 0 || score < cfg.MinScoreThresh {
			continue
		}

		anchor := grid.Anchors[i]
		boxOff := i * cfg.NumCoords

		var rawX, rawY, rawW, rawH float64
		if cfg.ReverseOutputOrder {
			rawX, rawY, rawW, rawH = rawBoxes[boxOff], rawBoxes[boxOff+1], rawBoxes[boxOff+2], rawBoxes[boxOff+3]
		} else {
			rawY, rawX, rawH, rawW = rawBoxes[boxOff], rawBoxes[boxOff+1], rawBoxes[boxOff+2], rawBoxes[boxOff+3]
		}

		cx := rawX/cfg.XScale*anchor.Width + anchor.XCenter
		cy := rawY/cfg.YScale*anchor.Height + anchor.YCenter

		var w, h float64
		if cfg.ApplyExponentialOnBoxSize {
			w = math.Exp(rawW/cfg.WScale) * anchor.Width
			h = math.Exp(rawH/cfg.HScale) * anchor.Height
		} else {
			w = rawW / cfg.WScale * anchor.Width
			h = rawH / cfg.HScale * anchor.Height
		}

		box := geom.NewBoundingBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2)

		keypoints := make([]Keypoint2D, cfg.NumKeypoints)
		for k := 0; k < cfg.NumKeypoints; k++ {
			kpOff := boxOff + 4 + k*cfg.NumValuesPerKeypoint
			kx := anchor.XCenter + rawBoxes[kpOff]/cfg.XScale
			ky := anchor.YCenter + rawBoxes[kpOff+1]/cfg.YScale
			if cfg.FlipVertically {
				ky = 1 - ky
			}
			keypoints[k] = Keypoint2D{X: kx, Y: ky}
		}

		out = append(out, Detection{Box: box, Keypoints: keypoints, Score: score})
	}

	return out, nil
}

// Similarity selects the metric NMS uses to compare two detections.
type Similarity int

const (
	SimilarityIoU Similarity = iota
	SimilarityIoM
)

// NMSConfig parameterizes greedy non-maximum suppression.
type NMSConfig struct {
	Similarity              Similarity
	MinSuppressionThreshold float64
	MinScoreThreshold       float64
	MaxDetections           int
}

// NMS greedily suppresses overlapping detections in score-descending
// order: a candidate is dropped if its similarity with any already-kept
// detection exceeds cfg.MinSuppressionThreshold. At most
// cfg.MaxDetections survivors (scoring at least cfg.MinScoreThreshold)
// are returned.
func NMS(detections []Detection, cfg NMSConfig) []Detection {
	candidates := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= cfg.MinScoreThreshold {
			candidates = append(candidates, d)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	maxDetections := cfg.MaxDetections
	if maxDetections <= 0 {
		maxDetections = len(candidates)
	}

	kept := make([]Detection, 0, maxDetections)
	for _, cand := range candidates {
		if len(kept) >= maxDetections {
			break
		}
		suppressed := false
		for _, k := range kept {
			var sim float64
			switch cfg.Similarity {
			case SimilarityIoM:
				sim = cand.Box.IoM(k.Box)
			default:
				sim = cand.Box.IoU(k.Box)
			}
			if sim > cfg.MinSuppressionThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}

	return kept
}

// RemoveLetterbox unprojects a detection's box and keypoints out of
// letterboxed tensor space, per spec.md §4.2.
func RemoveLetterbox(d Detection, padding geom.Padding) Detection {
	xMin, yMin := geom.RemoveLetterbox(d.Box.XMin, d.Box.YMin, padding)
	xMax, yMax := geom.RemoveLetterbox(d.Box.XMax, d.Box.YMax, padding)

	keypoints := make([]Keypoint2D, len(d.Keypoints))
	for i, kp := range d.Keypoints {
		x, y := geom.RemoveLetterbox(kp.X, kp.Y, padding)
		keypoints[i] = Keypoint2D{X: x, Y: y}
	}

	return Detection{
		Box:       geom.NewBoundingBox(xMin, yMin, xMax, yMax),
		Keypoints: keypoints,
		Score:     d.Score,
	}
}
