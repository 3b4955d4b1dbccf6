//go:build cgo
// +build cgo

package miface

import (
	"fmt"
	"math"

	"github.com/PoseFlowDEV/poseflow/internal/config"
	"github.com/PoseFlowDEV/poseflow/pkg/anchors"
	"github.com/PoseFlowDEV/poseflow/pkg/detect"
	"github.com/PoseFlowDEV/poseflow/pkg/filter"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/infer"
	"github.com/PoseFlowDEV/poseflow/pkg/landmark"
	"github.com/PoseFlowDEV/poseflow/pkg/pipeline"
	"github.com/PoseFlowDEV/poseflow/pkg/track"
)

// Pose detector and landmark model shapes, matching the BlazePose family
// of models the core pipeline is built for. Alignment keypoints 0 and 1
// are the detector's mid-hip-center and full-body-scale points.
const (
	detectorAlignmentHip   = 0
	detectorAlignmentScale = 1
	numDetectorKeypoints   = 4
	numActualLandmarks     = 33
	numAuxiliaryLandmarks  = 2
)

// NewPoseFlowPipeline loads the detector and landmark ONNX models named
// in cfg.Pipeline and wires them, together with the anchor grid, decode,
// NMS, smoothing, and tracker parameters, into a *pipeline.Pipeline.
// Both backends (and the Pipeline itself) are closed by the returned
// Pipeline's Dispose.
func NewPoseFlowPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	pc := cfg.Pipeline

	detectorAnchors := detectorAnchorsConfig(pc.DetectorInputSize)
	grid, err := anchors.Generate(detectorAnchors)
	if err != nil {
		return nil, fmt.Errorf("miface: generate detector anchor grid: %w", err)
	}
	numAnchors := int64(len(grid.Anchors))

	detectorBackend, err := infer.NewONNXBackend(infer.ModelConfig{
		Path:        pc.DetectorModel,
		InputName:   "input",
		InputShape:  []int64{1, int64(pc.DetectorInputSize), int64(pc.DetectorInputSize), 3},
		OutputNames: []string{"regressors", "classificators"},
		OutputShapes: [][]int64{
			{1, numAnchors, int64(4 + numDetectorKeypoints*2)},
			{1, numAnchors, 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("miface: load detector model: %w", err)
	}

	landmarkBackend, err := infer.NewONNXBackend(infer.ModelConfig{
		Path:        pc.LandmarkModel,
		InputName:   "input",
		InputShape:  []int64{1, int64(pc.LandmarkInputSize), int64(pc.LandmarkInputSize), 3},
		OutputNames: []string{"landmarks", "presence", "world_landmarks"},
		OutputShapes: [][]int64{
			{1, (numActualLandmarks + numAuxiliaryLandmarks) * 5},
			{1, 1},
			{1, numActualLandmarks * 3},
		},
	})
	if err != nil {
		detectorBackend.Close()
		return nil, fmt.Errorf("miface: load landmark model: %w", err)
	}

	smoother, visibilityAlpha, err := smootherConfig(pc.Smoothing)
	if err != nil {
		detectorBackend.Close()
		landmarkBackend.Close()
		return nil, err
	}

	trackerCfg := &track.Config{
		MaxTracks:     pc.MaxTracks,
		MaxAgeMillis:  pc.MaxAgeMillis,
		MinSimilarity: pc.MinSimilarity,
	}

	p, err := pipeline.New(pipeline.Config{
		Detector: pipeline.DetectorStageConfig{
			Backend:       detectorBackend,
			Sampler:       infer.NewGocvSampler(),
			InputSize:     geom.ImageSize{Width: pc.DetectorInputSize, Height: pc.DetectorInputSize},
			InputRangeMin: -1,
			InputRangeMax: 1,
			Anchors:       detectorAnchors,
			Decode:        detectorDecodeConfig(pc.DetectorInputSize),
			NMS: detect.NMSConfig{
				Similarity:              detect.SimilarityIoU,
				MinSuppressionThreshold: pc.MinSuppressionThreshold,
				MinScoreThreshold:       pc.MinScoreThreshold,
				MaxDetections:           pc.MaxTracks,
			},
			KeepAspectRatio: true,
		},
		Landmark: pipeline.LandmarkStageConfig{
			Backend:               landmarkBackend,
			Sampler:                infer.NewGocvSampler(),
			InputSize:              geom.ImageSize{Width: pc.LandmarkInputSize, Height: pc.LandmarkInputSize},
			InputRangeMin:          0,
			InputRangeMax:          1,
			Decode: landmark.DecodeConfig{
				InputImageWidth:           pc.LandmarkInputSize,
				InputImageHeight:          pc.LandmarkInputSize,
				ApplyVisibilityActivation: true,
			},
			NumActualLandmarks:    numActualLandmarks,
			NumAuxiliaryLandmarks: numAuxiliaryLandmarks,
			HasPresenceOutput:     true,
			PresenceThreshold:     0.5,
			HasWorldLandmarks:     true,
			KeepAspectRatio:       true,
			Smoother:              smoother,
			VisibilityAlpha:       visibilityAlpha,
		},
		Roi: pipeline.RoiConfig{
			AlignmentKeypoints: [2]int{detectorAlignmentHip, detectorAlignmentScale},
			TargetRotation:     math.Pi / 2,
			RectTransform: geom.RectTransformConfig{
				ScaleX: 1.5,
				ScaleY: 1.5,
			},
		},
		Tracker:           trackerCfg,
		TrackerSimilarity: track.BoxIoUSimilarity(0.1),
	})
	if err != nil {
		detectorBackend.Close()
		landmarkBackend.Close()
		return nil, fmt.Errorf("miface: build pipeline: %w", err)
	}

	return p, nil
}

// detectorAnchorsConfig mirrors the BlazePose pose-detector's SSD anchor
// layout: four layers at a shared aspect ratio, strided 8/16/16/16 over a
// square input.
func detectorAnchorsConfig(inputSize int) anchors.Config {
	return anchors.Config{
		NumLayers:       4,
		MinScale:        0.1484375,
		MaxScale:        0.75,
		InputSizeWidth:  inputSize,
		InputSizeHeight: inputSize,
		Strides:         []int{8, 16, 16, 16},
		AspectRatios:    []float64{1.0},
		AnchorOffsetX:   0.5,
		AnchorOffsetY:   0.5,
		FixedAnchorSize: true,
	}
}

func detectorDecodeConfig(inputSize int) detect.DecodeConfig {
	scale := float64(inputSize)
	return detect.DecodeConfig{
		NumClasses:            1,
		NumCoords:             4 + numDetectorKeypoints*2,
		NumKeypoints:          numDetectorKeypoints,
		NumValuesPerKeypoint:  2,
		XScale:                scale,
		YScale:                scale,
		WScale:                scale,
		HScale:                scale,
		ApplySigmoidToScore:   true,
		SigmoidScoreClipThresh: 100,
	}
}

// smootherConfig builds the keypoint smoother configuration selected by
// the "-smoothing" flag / config.toml's [pipeline].smoothing: "velocity"
// for the relative-velocity filter, "one-euro" for the 1-Euro filter.
func smootherConfig(kind string) (*filter.KeypointSmootherConfig, float64, error) {
	switch kind {
	case "velocity":
		return &filter.KeypointSmootherConfig{
			Kind: filter.SmootherVelocity,
			Velocity: &filter.RelativeVelocityConfig{
				WindowSize:    5,
				VelocityScale: 10,
			},
		}, 0.1, nil
	case "one-euro":
		return &filter.KeypointSmootherConfig{
			Kind: filter.SmootherOneEuro,
			OneEuro: &filter.OneEuroConfig{
				Frequency:      30,
				MinCutOff:      1,
				Beta:           0,
				DerivateCutOff: 1,
			},
		}, 0.1, nil
	default:
		return nil, 0, fmt.Errorf("miface: unrecognized smoothing kind %q", kind)
	}
}
