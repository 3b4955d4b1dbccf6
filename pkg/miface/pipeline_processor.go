//go:build cgo
// +build cgo

package miface

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/PoseFlowDEV/poseflow/pkg/pipeline"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// PipelineProcessor adapts a *pipeline.Pipeline to the Processor
// interface, turning its decoded []pose.Pose output into the
// TrackingData shape VMCSender/OSCSender and Tracker subscribers expect.
//
// Face and hand tracking are outside the core pipeline's scope, so a
// PipelineProcessor always reports TrackingData with nil Face/LeftHand/
// RightHand — only Pose is populated.
type PipelineProcessor struct {
	pipeline *pipeline.Pipeline
	estCfg   pipeline.EstimationConfig
}

// NewPipelineProcessor wraps an already-constructed pipeline with the
// per-call estimation options (max poses, mirroring, smoothing) it
// should run with.
func NewPipelineProcessor(p *pipeline.Pipeline, estCfg pipeline.EstimationConfig) *PipelineProcessor {
	return &PipelineProcessor{pipeline: p, estCfg: estCfg}
}

// Process decodes a raw RGB24 camera frame into a gocv.Mat, runs it
// through the pipeline, and reports the first pose EstimatePoses returns
// (carrying its tracker id, when a tracker is configured) as
// TrackingData.Pose; Pose is nil when no pose is returned.
func (pp *PipelineProcessor) Process(ctx context.Context, frame []byte, width, height int) (*TrackingData, error) {
	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, frame)
	if err != nil {
		return nil, fmt.Errorf("pipeline processor: wrap frame as mat: %w", err)
	}
	defer mat.Close()

	poses, err := pp.pipeline.EstimatePoses(ctx, mat, pp.estCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("pipeline processor: estimate poses: %w", err)
	}

	data := &TrackingData{}
	if len(poses) > 0 {
		data.Pose = poseDataFromPose(poses[0])
	}
	return data, nil
}

// Close releases the wrapped pipeline's inference backends.
func (pp *PipelineProcessor) Close() error {
	return pp.pipeline.Dispose()
}

// poseDataFromPose converts one decoded pose's keypoints to the
// Landmark shape TrackingData carries. Keypoints without a score (no
// presence output from the landmark model) report full visibility.
func poseDataFromPose(p pose.Pose) *PoseData {
	landmarks := make([]Landmark, len(p.Keypoints))
	for i, kp := range p.Keypoints {
		visibility := 1.0
		if kp.HasScore {
			visibility = kp.Score
		}
		landmarks[i] = Landmark{
			Point:      Point3D{X: kp.X, Y: kp.Y, Z: kp.Z},
			Visibility: visibility,
		}
	}
	return &PoseData{Landmarks: landmarks}
}
