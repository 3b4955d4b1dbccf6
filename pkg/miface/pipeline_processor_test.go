//go:build cgo
// +build cgo

package miface

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/PoseFlowDEV/poseflow/pkg/anchors"
	"github.com/PoseFlowDEV/poseflow/pkg/detect"
	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/infer"
	"github.com/PoseFlowDEV/poseflow/pkg/landmark"
	"github.com/PoseFlowDEV/poseflow/pkg/pipeline"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

func TestPoseDataFromPose(t *testing.T) {
	p := pose.Pose{
		Keypoints: []pose.Keypoint{
			{X: 0.1, Y: 0.2, Z: 0.3, HasZ: true, Score: 0.9, HasScore: true},
			{X: 0.4, Y: 0.5},
		},
	}

	data := poseDataFromPose(p)
	if len(data.Landmarks) != 2 {
		t.Fatalf("expected 2 landmarks, got %d", len(data.Landmarks))
	}
	if data.Landmarks[0].Point != (Point3D{X: 0.1, Y: 0.2, Z: 0.3}) {
		t.Errorf("unexpected point for landmark 0: %+v", data.Landmarks[0].Point)
	}
	if data.Landmarks[0].Visibility != 0.9 {
		t.Errorf("expected visibility 0.9, got %f", data.Landmarks[0].Visibility)
	}
	// No score on the model output means full visibility, not zero.
	if data.Landmarks[1].Visibility != 1.0 {
		t.Errorf("expected visibility 1.0 for scoreless keypoint, got %f", data.Landmarks[1].Visibility)
	}
}

// fakeTensorHandle and fakeBackend exist only to let New() construct a
// Pipeline; no test here drives a frame through EstimatePoses.
type fakeTensorHandle struct {
	shape []int64
	data  []float32
}

func (h *fakeTensorHandle) Shape() []int64   { return h.shape }
func (h *fakeTensorHandle) Data() []float32  { return h.data }
func (h *fakeTensorHandle) Release()         {}

type fakeBackend struct {
	closed bool
}

func (b *fakeBackend) Run(input []float32) ([]infer.TensorHandle, error) {
	return nil, errors.New("fake backend: Run not implemented")
}

func (b *fakeBackend) NewAnchorTensor1D(data []float32) (infer.TensorHandle, error) {
	return &fakeTensorHandle{shape: []int64{int64(len(data))}, data: data}, nil
}

func (b *fakeBackend) NewAnchorTensor2D(rows, cols int, data []float32) (infer.TensorHandle, error) {
	return &fakeTensorHandle{shape: []int64{int64(rows), int64(cols)}, data: data}, nil
}

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

type fakeSampler struct{}

func (fakeSampler) Sample(src gocv.Mat, transform geom.Matrix, targetSize geom.ImageSize) (gocv.Mat, error) {
	return gocv.NewMatWithSize(targetSize.Height, targetSize.Width, gocv.MatTypeCV8UC3), nil
}

func newTestPipelineConfig(detectorBackend, landmarkBackend *fakeBackend) pipeline.Config {
	return pipeline.Config{
		Detector: pipeline.DetectorStageConfig{
			Backend:   detectorBackend,
			Sampler:   fakeSampler{},
			InputSize: geom.ImageSize{Width: 8, Height: 8},
			Anchors: anchors.Config{
				NumLayers:       1,
				MinScale:        0.2,
				MaxScale:        0.95,
				InputSizeHeight: 8,
				InputSizeWidth:  8,
				Strides:         []int{8},
				AspectRatios:    []float64{1.0},
				FixedAnchorSize: true,
			},
			Decode: detect.DecodeConfig{
				NumClasses:   1,
				NumCoords:    4,
				MinScoreThresh: 0.5,
			},
			NMS: detect.NMSConfig{MaxDetections: 1},
		},
		Landmark: pipeline.LandmarkStageConfig{
			Backend:               landmarkBackend,
			Sampler:                fakeSampler{},
			InputSize:              geom.ImageSize{Width: 4, Height: 4},
			NumActualLandmarks:     1,
			NumAuxiliaryLandmarks:  1,
			Decode:                 landmark.DecodeConfig{},
		},
		Roi: pipeline.RoiConfig{
			AlignmentKeypoints: [2]int{0, 1},
			TargetRotation:     0,
		},
	}
}

func TestPipelineProcessorCloseDisposesBackends(t *testing.T) {
	detectorBackend := &fakeBackend{}
	landmarkBackend := &fakeBackend{}

	p, err := pipeline.New(newTestPipelineConfig(detectorBackend, landmarkBackend))
	if err != nil {
		t.Fatalf("unexpected error building pipeline: %v", err)
	}

	processor := NewPipelineProcessor(p, pipeline.EstimationConfig{MaxPoses: 1})
	if err := processor.Close(); err != nil {
		t.Fatalf("unexpected error closing processor: %v", err)
	}

	if !detectorBackend.closed {
		t.Error("expected detector backend to be closed")
	}
	if !landmarkBackend.closed {
		t.Error("expected landmark backend to be closed")
	}
}

func TestPipelineProcessorProcessEmptyFrameReturnsNoPose(t *testing.T) {
	detectorBackend := &fakeBackend{}
	landmarkBackend := &fakeBackend{}

	p, err := pipeline.New(newTestPipelineConfig(detectorBackend, landmarkBackend))
	if err != nil {
		t.Fatalf("unexpected error building pipeline: %v", err)
	}
	defer p.Dispose()

	processor := NewPipelineProcessor(p, pipeline.EstimationConfig{MaxPoses: 1})

	// A zero-byte frame decodes to an empty Mat, which resets the
	// pipeline rather than invoking either fake backend's unimplemented
	// Run.
	data, err := processor.Process(nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Pose != nil {
		t.Errorf("expected nil Pose for an empty frame, got %+v", data.Pose)
	}
}
