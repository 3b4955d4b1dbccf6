package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/PoseFlowDEV/poseflow/pkg/anchors"
	"github.com/PoseFlowDEV/poseflow/pkg/detect"
	"github.com/PoseFlowDEV/poseflow/pkg/filter"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/infer"
	"github.com/PoseFlowDEV/poseflow/pkg/landmark"
	"github.com/PoseFlowDEV/poseflow/pkg/track"
)

// Layout is the channel ordering a backend's input tensor expects.
type Layout int

const (
	LayoutNHWC Layout = iota
	LayoutNCHW
)

// RoiConfig parameterizes the conversion of a detection (real or
// synthetic) to an oriented ROI rect, per spec.md §4.4 steps 3 and 9: an
// alignment rotation derived from two keypoints, plus the configured
// shift/scale/square rect transform.
type RoiConfig struct {
	// AlignmentKeypoints names the two detection keypoints whose vector
	// defines the ROI's rotation.
	AlignmentKeypoints [2]int
	// TargetRotation is the angle (radians) that vector should point at
	// once rotation is applied — conventionally π/2 (90°).
	TargetRotation float64
	RectTransform  geom.RectTransformConfig
	KeepAspectRatio bool
}

func (c RoiConfig) validate() error {
	if c.AlignmentKeypoints[0] == c.AlignmentKeypoints[1] {
		return fmt.Errorf("pipeline: alignment keypoints must be distinct, got %v", c.AlignmentKeypoints)
	}
	return nil
}

// DetectorStageConfig wires the detector model's backend, the affine
// sampler used to build its input, and the anchor/decode/NMS parameters
// that turn its raw output into detections.
type DetectorStageConfig struct {
	Backend   infer.Backend
	Sampler   infer.Sampler
	InputSize geom.ImageSize
	Layout    Layout

	InputRangeMin, InputRangeMax float64

	Anchors anchors.Config
	Decode  detect.DecodeConfig
	NMS     detect.NMSConfig

	KeepAspectRatio bool
}

func (c DetectorStageConfig) validate() error {
	if c.Backend == nil {
		return fmt.Errorf("pipeline: detector backend is required")
	}
	if c.Sampler == nil {
		return fmt.Errorf("pipeline: detector sampler is required")
	}
	if c.InputSize.Width <= 0 || c.InputSize.Height <= 0 {
		return fmt.Errorf("pipeline: detector input size must be positive, got %dx%d", c.InputSize.Width, c.InputSize.Height)
	}
	return c.Anchors.Validate()
}

// LandmarkStageConfig wires the landmark model's backend and sampler,
// the tensor-to-keypoint decode parameters, the split between "actual"
// and "auxiliary" landmark sets, and the optional heatmap/world/presence
// outputs a given model variant may or may not produce.
type LandmarkStageConfig struct {
	Backend   infer.Backend
	Sampler   infer.Sampler
	InputSize geom.ImageSize
	Layout    Layout

	InputRangeMin, InputRangeMax float64

	Decode             landmark.DecodeConfig
	NumActualLandmarks int
	NumAuxiliaryLandmarks int

	HasPresenceOutput bool
	PresenceThreshold float64

	HasHeatmap            bool
	HeatmapHeight          int
	HeatmapWidth           int
	HeatmapChannels        int
	HeatmapKernelSize      int
	HeatmapMinConfidence   float64

	HasWorldLandmarks bool

	// HasSegmentationMask enables decode of the model's segmentation
	// output: a SegmentationHeight x SegmentationWidth single-channel
	// tensor, blended frame-to-frame with SegmentationAlpha (spec.md §3
	// prevSegmentationMask).
	HasSegmentationMask bool
	SegmentationHeight  int
	SegmentationWidth   int
	// SegmentationAlpha is the α-EMA weight applied to the newly decoded
	// mask: newMask = α·decoded + (1-α)·prevMask.
	SegmentationAlpha float64

	KeepAspectRatio bool

	// Smoother, when non-nil, enables temporal filtering of the actual,
	// auxiliary, and world landmark sets (spec.md §4.5). Each set gets
	// its own independently-stated filter instance built from this
	// shared configuration.
	Smoother *filter.KeypointSmootherConfig
	// VisibilityAlpha parameterizes the score-only low-pass applied to
	// the actual landmark set's visibility, when Smoother is set.
	VisibilityAlpha float64
}

func (c LandmarkStageConfig) validate() error {
	if c.Backend == nil {
		return fmt.Errorf("pipeline: landmark backend is required")
	}
	if c.Sampler == nil {
		return fmt.Errorf("pipeline: landmark sampler is required")
	}
	if c.InputSize.Width <= 0 || c.InputSize.Height <= 0 {
		return fmt.Errorf("pipeline: landmark input size must be positive, got %dx%d", c.InputSize.Width, c.InputSize.Height)
	}
	if c.NumActualLandmarks <= 0 {
		return fmt.Errorf("pipeline: numActualLandmarks must be positive, got %d", c.NumActualLandmarks)
	}
	if c.NumAuxiliaryLandmarks <= 0 {
		return fmt.Errorf("pipeline: numAuxiliaryLandmarks must be positive, got %d", c.NumAuxiliaryLandmarks)
	}
	if c.HasPresenceOutput && (c.PresenceThreshold < 0 || c.PresenceThreshold > 1) {
		return fmt.Errorf("pipeline: presenceThreshold must be in [0,1], got %g", c.PresenceThreshold)
	}
	if c.HasSegmentationMask {
		if c.SegmentationHeight <= 0 || c.SegmentationWidth <= 0 {
			return fmt.Errorf("pipeline: segmentation mask size must be positive, got %dx%d", c.SegmentationWidth, c.SegmentationHeight)
		}
		if c.SegmentationAlpha < 0 || c.SegmentationAlpha > 1 {
			return fmt.Errorf("pipeline: segmentationAlpha must be in [0,1], got %g", c.SegmentationAlpha)
		}
	}
	if c.Smoother != nil {
		if _, err := filter.NewKeypointSmoother(*c.Smoother); err != nil {
			return fmt.Errorf("pipeline: landmark smoother: %w", err)
		}
	}
	return nil
}

// Config is createPipeline's full construction argument: the detector
// and landmark stages, the ROI-derivation rule shared by both, and an
// optional tracker. Logger is nil-safe — a nil Logger defaults to
// slog.Default().
type Config struct {
	Detector DetectorStageConfig
	Landmark LandmarkStageConfig
	Roi      RoiConfig

	Tracker           *track.Config
	TrackerSimilarity track.Similarity

	Logger *slog.Logger
}

func (c Config) validate() error {
	if err := c.Detector.validate(); err != nil {
		return err
	}
	if err := c.Landmark.validate(); err != nil {
		return err
	}
	if err := c.Roi.validate(); err != nil {
		return err
	}
	if c.Tracker != nil {
		if err := c.Tracker.Validate(); err != nil {
			return err
		}
		if c.TrackerSimilarity == nil {
			return fmt.Errorf("pipeline: tracker config set without a similarity function")
		}
	}
	return nil
}

// EstimationConfig are the per-call options recognized by
// Pipeline.EstimatePoses (spec.md §6).
type EstimationConfig struct {
	MaxPoses        int
	FlipHorizontal  bool
	EnableSmoothing bool
}

func (c EstimationConfig) validate() error {
	if c.MaxPoses < 1 {
		return fmt.Errorf("pipeline: maxPoses must be >= 1, got %d", c.MaxPoses)
	}
	return nil
}
