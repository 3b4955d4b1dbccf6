// Package pipeline implements the per-frame pose-estimation state
// machine of spec.md §4.4: detect once, track an oriented ROI across
// frames, decode and project landmarks, optionally smooth them, and
// re-derive the next frame's ROI from the result. It is the one package
// that wires geom, anchors, detect, landmark, filter, track, and infer
// together into the public createPipeline/estimatePoses/reset/dispose
// surface of spec.md §6.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/PoseFlowDEV/poseflow/pkg/anchors"
	"github.com/PoseFlowDEV/poseflow/pkg/detect"
	"github.com/PoseFlowDEV/poseflow/pkg/filter"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/infer"
	"github.com/PoseFlowDEV/poseflow/pkg/landmark"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
	"github.com/PoseFlowDEV/poseflow/pkg/track"
)

// Pipeline is one independent pose-estimation stream: the cached ROI,
// filter states, and (optionally) a multi-object tracker, plus the
// model configuration and inference collaborators needed to decode a
// frame. Instances share nothing — two cameras mean two Pipelines.
type Pipeline struct {
	mu sync.Mutex

	cfg    Config
	grid   *anchors.Grid
	tracker *track.Tracker
	logger *slog.Logger

	state pipelineState
}

// New builds a Pipeline from cfg: it validates the configuration,
// generates the detector's anchor grid once, and constructs the
// tracker, if configured. The detector and landmark backends/samplers
// in cfg are assumed already loaded; Dispose closes them.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	grid, err := anchors.Generate(cfg.Detector.Anchors)
	if err != nil {
		return nil, fmt.Errorf("pipeline: generate anchors: %w", err)
	}

	var tr *track.Tracker
	if cfg.Tracker != nil {
		tr, err = track.New(*cfg.Tracker, cfg.TrackerSimilarity)
		if err != nil {
			return nil, fmt.Errorf("pipeline: build tracker: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{cfg: cfg, grid: grid, tracker: tr, logger: logger}
	p.initFiltersLocked()
	return p, nil
}

// initFiltersLocked (re)builds the three independently-stated keypoint
// smoothers (actual, auxiliary, world) and the visibility smoother from
// cfg.Landmark.Smoother. A nil Smoother leaves all four nil: smoothing
// is then a no-op regardless of EstimationConfig.EnableSmoothing.
func (p *Pipeline) initFiltersLocked() {
	sc := p.cfg.Landmark.Smoother
	if sc == nil {
		return
	}
	// Construction errors here cannot happen: cfg.validate already
	// requires Smoother's Kind/Velocity/OneEuro to agree, and
	// NewKeypointSmoother only rejects that one condition.
	p.state.actualFilter, _ = filter.NewKeypointSmoother(*sc)
	p.state.auxiliaryFilter, _ = filter.NewKeypointSmoother(*sc)
	if p.cfg.Landmark.HasWorldLandmarks {
		p.state.worldFilter, _ = filter.NewKeypointSmoother(*sc)
	}
	p.state.visibility = filter.NewVisibilityFilter(p.cfg.Landmark.VisibilityAlpha)
}

// EstimatePoses runs one frame through the pipeline. image.Empty()
// (spec.md's "None" input) and a cancelled ctx both reset nothing they
// don't have to: an empty image fully resets pipeline state per spec.md
// §4.4 step 1, while a cancellation leaves state exactly as it was
// (spec.md §5) and returns an empty result. timestampMs is optional
// (nil disables temporal filtering and the monotonicity check for this
// call, per spec.md §4.4 step 2).
func (p *Pipeline) EstimatePoses(ctx context.Context, image gocv.Mat, estCfg EstimationConfig, timestampMs *int64) ([]pose.Pose, error) {
	if err := estCfg.validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if image.Empty() {
		p.resetLocked()
		return nil, nil
	}

	var timestampUs int64
	hasTimestamp := timestampMs != nil
	if hasTimestamp {
		timestampUs = *timestampMs * 1000
		if p.state.hasTimestamp && timestampUs <= p.state.lastTimestamp {
			p.logger.Warn("pipeline: non-monotone timestamp, resetting state",
				"previous_us", p.state.lastTimestamp, "got_us", timestampUs)
			p.resetLocked()
			return nil, nil
		}
	}

	if ctx.Err() != nil {
		return nil, nil
	}

	roi := p.state.roi
	if p.state.kind == noRoi {
		detections, err := p.runDetector(image)
		if err != nil {
			return nil, fmt.Errorf("pipeline: detector stage: %w", err)
		}
		if len(detections) == 0 {
			p.logger.Debug("pipeline: no detections, resetting state")
			p.resetLocked()
			return nil, nil
		}
		roi, err = roiFromDetection(detections[0], p.cfg.Roi)
		if err != nil {
			return nil, fmt.Errorf("pipeline: derive roi from detection: %w", err)
		}
	}

	if ctx.Err() != nil {
		return nil, nil
	}

	lm, err := p.runLandmark(image, roi, estCfg.FlipHorizontal)
	if err != nil {
		return nil, fmt.Errorf("pipeline: landmark stage: %w", err)
	}

	if p.cfg.Landmark.HasPresenceOutput && lm.presence < p.cfg.Landmark.PresenceThreshold {
		if lm.hasSegmentationMask {
			lm.segmentationMask.Close()
		}
		p.logger.Debug("pipeline: pose presence below threshold, resetting state",
			"presence", lm.presence, "threshold", p.cfg.Landmark.PresenceThreshold)
		p.resetLocked()
		return nil, nil
	}

	numActual := p.cfg.Landmark.NumActualLandmarks
	numAuxiliary := p.cfg.Landmark.NumAuxiliaryLandmarks
	actual := lm.landmarks[:numActual]
	auxiliary := lm.landmarks[numActual : numActual+numAuxiliary]
	world := lm.world

	if p.state.sizeMismatch(len(actual), len(auxiliary), len(world)) {
		if lm.hasSegmentationMask {
			lm.segmentationMask.Close()
		}
		p.logger.Warn("pipeline: filter-state size mismatch, resetting state")
		p.resetLocked()
		return nil, nil
	}

	actual = landmark.ProjectAll(landmark.RemoveLetterbox(actual, lm.padding), roi)
	auxiliary = landmark.ProjectAll(landmark.RemoveLetterbox(auxiliary, lm.padding), roi)
	if world != nil {
		world = pose.CopyScore(landmark.ProjectWorldAll(world, roi.Rotation), actual)
	}

	if estCfg.EnableSmoothing && hasTimestamp && p.state.actualFilter != nil {
		objectScale := filter.ObjectScale(nil, actual)
		actual = p.state.actualFilter.Apply(actual, timestampUs, objectScale, nil)
		auxiliary = p.state.auxiliaryFilter.Apply(auxiliary, timestampUs, objectScale, nil)
		if world != nil && p.state.worldFilter != nil {
			world = p.state.worldFilter.Apply(world, timestampUs, objectScale, nil)
		}
		actual = p.state.visibility.Apply(actual)
	}

	p.state.actualLen, p.state.auxiliaryLen, p.state.worldLen = len(actual), len(auxiliary), len(world)
	if hasTimestamp {
		p.state.hasTimestamp = true
		p.state.lastTimestamp = timestampUs
	}

	if nextDet, err := detectionFromKeypoints(auxiliary); err == nil {
		if nextRoi, err := roiFromDetection(nextDet, p.cfg.Roi); err == nil {
			p.state.roi = nextRoi
			p.state.kind = hasRoi
		} else {
			p.logger.Debug("pipeline: could not derive next-frame roi, keeping current", "error", err)
		}
	}

	var mask *gocv.Mat
	if lm.hasSegmentationMask {
		blended := p.blendSegmentationMaskLocked(lm.segmentationMask)
		lm.segmentationMask.Close()
		clone := blended.Clone()
		mask = &clone
	}

	box := geom.FromRect(roi)
	out := pose.Pose{Keypoints: actual, Box: &box, Score: lm.presence, Mask: mask}
	poses := []pose.Pose{out}
	if len(poses) > estCfg.MaxPoses {
		poses = poses[:estCfg.MaxPoses]
	}

	if p.tracker != nil {
		poses = p.tracker.Apply(poses, timestampUs)
	}

	return poses, nil
}

// Reset drops the cached ROI and every filter's internal state, as if
// no frame had ever been processed. The tracker (spec.md §4.6) is a
// separate lifecycle and is left untouched.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Pipeline) resetLocked() {
	p.state.closeSegmentationMask()
	p.state = pipelineState{}
	p.initFiltersLocked()
}

// Dispose releases the detector and landmark backends. It is safe to
// call once, after which the Pipeline must not be used again.
func (p *Pipeline) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.closeSegmentationMask()

	var errs []error
	if p.cfg.Detector.Backend != nil {
		if err := p.cfg.Detector.Backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detector backend: %w", err))
		}
	}
	if p.cfg.Landmark.Backend != nil {
		if err := p.cfg.Landmark.Backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("landmark backend: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pipeline: dispose: %v", errs)
	}
	return nil
}

// runDetector samples the full frame into the detector's input tensor,
// runs it, and decodes+NMS+letterbox-removes the result into a list of
// detections. Every returned tensor handle is released on every exit
// path (spec.md §5's scoped-acquisition requirement).
func (p *Pipeline) runDetector(image gocv.Mat) ([]detect.Detection, error) {
	imgSize := geom.ImageSize{Width: image.Cols(), Height: image.Rows()}
	full, err := geom.GetRoi(imgSize, nil)
	if err != nil {
		return nil, err
	}
	paddedRoi, padding, err := geom.PadRoi(full, p.cfg.Detector.InputSize, p.cfg.Detector.KeepAspectRatio)
	if err != nil {
		return nil, err
	}
	transform, err := geom.ProjectiveTransformMatrix(paddedRoi, imgSize, false, p.cfg.Detector.InputSize)
	if err != nil {
		return nil, err
	}

	sampled, err := p.cfg.Detector.Sampler.Sample(image, transform, p.cfg.Detector.InputSize)
	if err != nil {
		return nil, err
	}
	defer sampled.Close()

	tensorInput, err := matToTensor(sampled, p.cfg.Detector.Layout, p.cfg.Detector.InputRangeMin, p.cfg.Detector.InputRangeMax)
	if err != nil {
		return nil, err
	}

	outputs, err := p.cfg.Detector.Backend.Run(tensorInput)
	if err != nil {
		return nil, err
	}
	defer releaseAll(outputs)

	if len(outputs) < 2 {
		return nil, fmt.Errorf("pipeline: detector backend returned %d outputs, want at least 2 (scores, boxes)", len(outputs))
	}

	rawScores := float32To64(outputs[0].Data())
	rawBoxes := float32To64(outputs[1].Data())

	detections, err := detect.DecodeDetections(rawScores, rawBoxes, p.grid, p.cfg.Detector.Decode)
	if err != nil {
		return nil, err
	}

	kept := detect.NMS(detections, p.cfg.Detector.NMS)
	out := make([]detect.Detection, len(kept))
	for i, d := range kept {
		out[i] = detect.RemoveLetterbox(d, padding)
	}
	return out, nil
}

// landmarkOutput is runLandmark's decoded result, ahead of the
// letterbox-removal/projection/filtering steps the caller applies.
type landmarkOutput struct {
	landmarks []pose.Keypoint
	world     []pose.Keypoint
	presence  float64
	padding   geom.Padding

	// segmentationMask is valid only when hasSegmentationMask is true;
	// the caller takes ownership and must Close it on every path.
	segmentationMask    gocv.Mat
	hasSegmentationMask bool
}

// runLandmark crops image to roi, samples it into the landmark model's
// input tensor, runs it, and decodes the keypoint (and, depending on
// configuration, presence/heatmap/world) outputs. Every returned tensor
// handle is released on every exit path.
func (p *Pipeline) runLandmark(image gocv.Mat, roi geom.Rect, flipHorizontal bool) (landmarkOutput, error) {
	imgSize := geom.ImageSize{Width: image.Cols(), Height: image.Rows()}

	// roi is image-normalized (it comes from a detection or from
	// projected landmarks, both normalized spaces); PadRoi and the
	// transform matrix below operate in the image's absolute pixel
	// space, matching the convention GetRoi establishes.
	absRoi, err := geom.GetRoi(imgSize, &roi)
	if err != nil {
		return landmarkOutput{}, err
	}
	paddedRoi, padding, err := geom.PadRoi(absRoi, p.cfg.Landmark.InputSize, p.cfg.Landmark.KeepAspectRatio)
	if err != nil {
		return landmarkOutput{}, err
	}
	transform, err := geom.ProjectiveTransformMatrix(paddedRoi, imgSize, flipHorizontal, p.cfg.Landmark.InputSize)
	if err != nil {
		return landmarkOutput{}, err
	}

	sampled, err := p.cfg.Landmark.Sampler.Sample(image, transform, p.cfg.Landmark.InputSize)
	if err != nil {
		return landmarkOutput{}, err
	}
	defer sampled.Close()

	tensorInput, err := matToTensor(sampled, p.cfg.Landmark.Layout, p.cfg.Landmark.InputRangeMin, p.cfg.Landmark.InputRangeMax)
	if err != nil {
		return landmarkOutput{}, err
	}

	outputs, err := p.cfg.Landmark.Backend.Run(tensorInput)
	if err != nil {
		return landmarkOutput{}, err
	}
	defer releaseAll(outputs)

	if len(outputs) == 0 {
		return landmarkOutput{}, fmt.Errorf("pipeline: landmark backend returned no outputs")
	}

	numLandmarks := p.cfg.Landmark.NumActualLandmarks + p.cfg.Landmark.NumAuxiliaryLandmarks
	raw := float32To64(outputs[0].Data())
	decoded, err := landmark.Decode(raw, numLandmarks, p.cfg.Landmark.Decode)
	if err != nil {
		return landmarkOutput{}, err
	}
	landmarks := decoded.Landmarks

	idx := 1
	presence := 1.0
	if p.cfg.Landmark.HasPresenceOutput {
		if idx >= len(outputs) {
			return landmarkOutput{}, fmt.Errorf("pipeline: landmark backend missing presence output")
		}
		presenceRaw := float64(outputs[idx].Data()[0])
		if p.cfg.Landmark.Decode.ApplyVisibilityActivation {
			presenceRaw = sigmoid(presenceRaw)
		}
		presence = presenceRaw
		idx++
	}

	var segmentationMask gocv.Mat
	hasSegmentationMask := false
	if p.cfg.Landmark.HasSegmentationMask {
		if idx >= len(outputs) {
			return landmarkOutput{}, fmt.Errorf("pipeline: landmark backend missing segmentation output")
		}
		maskRaw := float32To64(outputs[idx].Data())
		segmentationMask, err = landmark.DecodeSegmentationMask(maskRaw,
			p.cfg.Landmark.SegmentationHeight, p.cfg.Landmark.SegmentationWidth, true)
		if err != nil {
			return landmarkOutput{}, err
		}
		hasSegmentationMask = true
		idx++
	}
	// Every error return below this point must release segmentationMask:
	// its native memory otherwise leaks, since it never reaches the
	// caller-owned landmarkOutput.
	releaseMaskOnErr := func() {
		if hasSegmentationMask {
			segmentationMask.Close()
		}
	}

	if p.cfg.Landmark.HasHeatmap {
		if idx >= len(outputs) {
			releaseMaskOnErr()
			return landmarkOutput{}, fmt.Errorf("pipeline: landmark backend missing heatmap output")
		}
		heatmap := float32To64(outputs[idx].Data())
		landmarks, err = landmark.RefineWithHeatmap(landmarks, heatmap,
			p.cfg.Landmark.HeatmapHeight, p.cfg.Landmark.HeatmapWidth, p.cfg.Landmark.HeatmapChannels,
			p.cfg.Landmark.HeatmapKernelSize, p.cfg.Landmark.HeatmapMinConfidence)
		if err != nil {
			releaseMaskOnErr()
			return landmarkOutput{}, err
		}
		idx++
	}

	var world []pose.Keypoint
	if p.cfg.Landmark.HasWorldLandmarks {
		if idx >= len(outputs) {
			releaseMaskOnErr()
			return landmarkOutput{}, fmt.Errorf("pipeline: landmark backend missing world-landmark output")
		}
		worldRaw := float32To64(outputs[idx].Data())
		world, err = landmark.DecodeWorld(worldRaw, p.cfg.Landmark.NumActualLandmarks)
		if err != nil {
			releaseMaskOnErr()
			return landmarkOutput{}, err
		}
	}

	return landmarkOutput{
		landmarks:           landmarks,
		world:               world,
		presence:            presence,
		padding:             padding,
		segmentationMask:    segmentationMask,
		hasSegmentationMask: hasSegmentationMask,
	}, nil
}

// blendSegmentationMaskLocked applies spec.md §3's prevSegmentationMask
// rule, newMask = α·decoded + (1-α)·prevMask, the same α-EMA formula
// filter.LowPass uses, vectorized over every pixel with gocv.AddWeighted.
// The first frame with no cached mask returns decoded unchanged. The
// returned Mat is owned by p.state and must not be closed by the caller;
// it remains valid until the next call replaces or resetLocked drops it.
func (p *Pipeline) blendSegmentationMaskLocked(decoded gocv.Mat) gocv.Mat {
	alpha := p.cfg.Landmark.SegmentationAlpha

	if !p.state.hasSegmentationMask {
		blended := decoded.Clone()
		p.state.segmentationMask = blended
		p.state.hasSegmentationMask = true
		return blended
	}

	blended := gocv.NewMat()
	gocv.AddWeighted(decoded, alpha, p.state.segmentationMask, 1-alpha, 0, &blended)

	p.state.segmentationMask.Close()
	p.state.segmentationMask = blended
	return blended
}

func releaseAll(handles []infer.TensorHandle) {
	for _, h := range handles {
		h.Release()
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
