// Package config provides TOML configuration loading for PoseFlow.
//
// The configuration file supports the following structure:
//
//	[camera]
//	device_id = 0
//	width = 1280
//	height = 720
//	fps = 30
//
//	[tracking]
//	enable_face = true
//	enable_hands = true
//	enable_pose = true
//	smoothing_factor = 0.5
//
//	[vmc]
//	enabled = true
//	address = "127.0.0.1"
//	port = 39539
//
//	[pipeline]
//	detector_model = "pose_detection.onnx"
//	landmark_model = "pose_landmark.onnx"
//	max_poses = 1
//	flip_horizontal = false
//	enable_smoothing = true
//	smoothing = "one-euro"
//	max_tracks = 4
//	max_age_millis = 1000
//	min_similarity = 0.4
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Camera device: %d\n", cfg.Camera.DeviceID)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for PoseFlow.
type Config struct {
	Camera   CameraConfig   `toml:"camera"`
	Tracking TrackingConfig `toml:"tracking"`
	VMC      VMCConfig      `toml:"vmc"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// CameraConfig holds webcam capture settings.
type CameraConfig struct {
	// DeviceID is the camera device index (default: 0).
	DeviceID int `toml:"device_id"`
	// Width is the capture width in pixels (default: 1280).
	Width int `toml:"width"`
	// Height is the capture height in pixels (default: 720).
	Height int `toml:"height"`
	// FPS is the target frame rate (default: 30).
	FPS int `toml:"fps"`
}

// TrackingConfig holds face/body tracking settings.
type TrackingConfig struct {
	// EnableFace is a legacy face-tracking switch kept for config-file
	// compatibility; nothing in the pose pipeline reads it (default: true).
	EnableFace bool `toml:"enable_face"`
	// EnableHands is a legacy hand-tracking switch kept for config-file
	// compatibility; nothing in the pose pipeline reads it (default: true).
	EnableHands bool `toml:"enable_hands"`
	// EnablePose is a legacy pose-tracking switch kept for config-file
	// compatibility; nothing in the pose pipeline reads it (default: true).
	EnablePose bool `toml:"enable_pose"`
	// SmoothingFactor is a legacy 0.0-1.0 smoothing knob, superseded by
	// Pipeline.Smoothing for pose landmarks (default: 0.5).
	SmoothingFactor float64 `toml:"smoothing_factor"`
}

// VMCConfig holds VMC (Virtual Motion Capture) protocol sender settings.
// VMC uses the OSC protocol for communication.
type VMCConfig struct {
	// Enabled enables VMC protocol output (default: true).
	Enabled bool `toml:"enabled"`
	// Address is the destination IP address (default: "127.0.0.1").
	Address string `toml:"address"`
	// Port is the destination UDP port (default: 39539).
	Port int `toml:"port"`
}

// PipelineConfig holds the core pose-estimation pipeline's model,
// detection, and tracking parameters.
type PipelineConfig struct {
	// DetectorModel is the path to the ONNX pose-detection model.
	DetectorModel string `toml:"detector_model"`
	// LandmarkModel is the path to the ONNX pose-landmark model.
	LandmarkModel string `toml:"landmark_model"`

	// DetectorInputSize is the detector model's square input resolution.
	DetectorInputSize int `toml:"detector_input_size"`
	// LandmarkInputSize is the landmark model's square input resolution.
	LandmarkInputSize int `toml:"landmark_input_size"`

	// MaxPoses caps how many people EstimatePoses reports per frame.
	MaxPoses int `toml:"max_poses"`
	// FlipHorizontal mirrors the input before landmark sampling.
	FlipHorizontal bool `toml:"flip_horizontal"`
	// EnableSmoothing turns on the temporal keypoint filters.
	EnableSmoothing bool `toml:"enable_smoothing"`
	// Smoothing selects the temporal filter kind: "velocity" or
	// "one-euro".
	Smoothing string `toml:"smoothing"`

	// MinSuppressionThreshold is the IoU threshold the detector's NMS
	// pass suppresses overlapping boxes at.
	MinSuppressionThreshold float64 `toml:"min_suppression_threshold"`
	// MinScoreThreshold discards detections below this score before NMS.
	MinScoreThreshold float64 `toml:"min_score_threshold"`

	// MaxTracks caps the number of simultaneously tracked people.
	MaxTracks int `toml:"max_tracks"`
	// MaxAgeMillis evicts a track that has gone unmatched this long.
	MaxAgeMillis int64 `toml:"max_age_millis"`
	// MinSimilarity is the minimum pose/track similarity score the
	// tracker accepts as a match.
	MinSimilarity float64 `toml:"min_similarity"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    1280,
			Height:   720,
			FPS:      30,
		},
		Tracking: TrackingConfig{
			EnableFace:      true,
			EnableHands:     true,
			EnablePose:      true,
			SmoothingFactor: 0.5,
		},
		VMC: VMCConfig{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    39539,
		},
		Pipeline: PipelineConfig{
			DetectorModel:           "pose_detection.onnx",
			LandmarkModel:           "pose_landmark.onnx",
			DetectorInputSize:       224,
			LandmarkInputSize:       256,
			MaxPoses:                1,
			FlipHorizontal:          false,
			EnableSmoothing:         true,
			Smoothing:               "one-euro",
			MinSuppressionThreshold: 0.3,
			MinScoreThreshold:       0.5,
			MaxTracks:               4,
			MaxAgeMillis:            1000,
			MinSimilarity:           0.4,
		},
	}
}

// Load reads and parses a TOML configuration file.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 {
		return fmt.Errorf("camera width must be positive, got %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 {
		return fmt.Errorf("camera height must be positive, got %d", c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera FPS must be positive, got %d", c.Camera.FPS)
	}
	if c.Tracking.SmoothingFactor < 0 || c.Tracking.SmoothingFactor > 1 {
		return fmt.Errorf("smoothing factor must be between 0 and 1, got %f", c.Tracking.SmoothingFactor)
	}
	if c.VMC.Port <= 0 || c.VMC.Port > 65535 {
		return fmt.Errorf("VMC port must be between 1 and 65535, got %d", c.VMC.Port)
	}
	if c.Pipeline.DetectorInputSize <= 0 {
		return fmt.Errorf("pipeline detector input size must be positive, got %d", c.Pipeline.DetectorInputSize)
	}
	if c.Pipeline.LandmarkInputSize <= 0 {
		return fmt.Errorf("pipeline landmark input size must be positive, got %d", c.Pipeline.LandmarkInputSize)
	}
	if c.Pipeline.MaxPoses <= 0 {
		return fmt.Errorf("pipeline max poses must be positive, got %d", c.Pipeline.MaxPoses)
	}
	if c.Pipeline.Smoothing != "velocity" && c.Pipeline.Smoothing != "one-euro" {
		return fmt.Errorf("pipeline smoothing must be %q or %q, got %q", "velocity", "one-euro", c.Pipeline.Smoothing)
	}
	if c.Pipeline.MaxTracks <= 0 {
		return fmt.Errorf("pipeline max tracks must be positive, got %d", c.Pipeline.MaxTracks)
	}
	if c.Pipeline.MinSimilarity < 0 || c.Pipeline.MinSimilarity > 1 {
		return fmt.Errorf("pipeline min similarity must be between 0 and 1, got %f", c.Pipeline.MinSimilarity)
	}
	return nil
}
