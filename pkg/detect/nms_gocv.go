package detect

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// nmsScale converts a normalized [0,1] coordinate to the fixed-point
// integer space gocv.NMSBoxes operates on.
const nmsScale = 10000

// NMSGocv suppresses overlapping detections using gocv's OpenCV-backed
// NMSBoxes instead of the greedy pure-Go pass NMS runs. It only supports
// axis-aligned IoU suppression (cfg.Similarity is ignored; OpenCV's NMS
// has no IoM variant), and exists as a drop-in alternative for callers
// that already link OpenCV and want its vectorized implementation on a
// large detection count.
func NMSGocv(detections []Detection, cfg NMSConfig) []Detection {
	candidates := make([]Detection, 0, len(detections))
	rects := make([]image.Rectangle, 0, len(detections))
	scores := make([]float32, 0, len(detections))

	for _, d := range detections {
		if d.Score < cfg.MinScoreThreshold {
			continue
		}
		candidates = append(candidates, d)
		rects = append(rects, image.Rect(
			int(d.Box.XMin*nmsScale), int(d.Box.YMin*nmsScale),
			int(d.Box.XMax*nmsScale), int(d.Box.YMax*nmsScale),
		))
		scores = append(scores, float32(d.Score))
	}

	maxDetections := cfg.MaxDetections
	if maxDetections <= 0 {
		maxDetections = len(candidates)
	}

	kept := gocv.NMSBoxes(rects, scores, float32(cfg.MinScoreThreshold), float32(cfg.MinSuppressionThreshold), maxDetections)

	out := make([]Detection, len(kept))
	for i, idx := range kept {
		out[i] = candidates[idx]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	return out
}
