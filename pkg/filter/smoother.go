package filter

import (
	"errors"
	"fmt"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
	"github.com/PoseFlowDEV/poseflow/pkg/landmark"
	"github.com/PoseFlowDEV/poseflow/pkg/pose"
)

// SmootherKind selects which scalar filter backs a KeypointSmoother. It is
// a tagged variant rather than an interface with a heap-allocated backing:
// the hot path is one call per keypoint per axis per frame, and there are
// only ever two variants.
type SmootherKind int

const (
	SmootherVelocity SmootherKind = iota
	SmootherOneEuro
)

// RelativeVelocityConfig parameterizes the velocity-smoother variant.
type RelativeVelocityConfig struct {
	WindowSize            int
	VelocityScale         float64
	MinAllowedObjectScale float64
	DisableValueScaling   bool
}

// OneEuroConfig parameterizes the 1-Euro-smoother variant.
type OneEuroConfig struct {
	Frequency      float64
	MinCutOff      float64
	Beta           float64
	DerivateCutOff float64
}

// KeypointSmootherConfig selects exactly one of Velocity or OneEuro,
// matching Kind.
type KeypointSmootherConfig struct {
	Kind SmootherKind

	Velocity *RelativeVelocityConfig
	OneEuro  *OneEuroConfig
}

// KeypointSmoother is the composite smoothing calculator: it holds either
// a velocity or a 1-Euro filter per axis per keypoint, and accepts
// normalized or absolute keypoints — when imageSize is supplied it
// denormalizes before filtering and re-normalizes the result.
type KeypointSmoother struct {
	kind   SmootherKind
	filter *KeypointsFilter
}

// NewKeypointSmoother builds a KeypointSmoother from cfg. Exactly one of
// cfg.Velocity / cfg.OneEuro must be set, matching cfg.Kind; any other
// combination is a configuration error.
func NewKeypointSmoother(cfg KeypointSmootherConfig) (*KeypointSmoother, error) {
	switch cfg.Kind {
	case SmootherVelocity:
		if cfg.Velocity == nil {
			return nil, errors.New("filter: SmootherVelocity requires a Velocity config")
		}
		vc := *cfg.Velocity
		return &KeypointSmoother{
			kind: cfg.Kind,
			filter: NewKeypointsFilter(func() ScalarFilter {
				return NewRelativeVelocityFilter(vc.WindowSize, vc.VelocityScale, vc.MinAllowedObjectScale, vc.DisableValueScaling)
			}),
		}, nil

	case SmootherOneEuro:
		if cfg.OneEuro == nil {
			return nil, errors.New("filter: SmootherOneEuro requires a OneEuro config")
		}
		ec := *cfg.OneEuro
		return &KeypointSmoother{
			kind: cfg.Kind,
			filter: NewKeypointsFilter(func() ScalarFilter {
				return NewOneEuroFilter(ec.Frequency, ec.MinCutOff, ec.Beta, ec.DerivateCutOff)
			}),
		}, nil

	default:
		return nil, fmt.Errorf("filter: unknown smoother kind %d", cfg.Kind)
	}
}

// Apply filters keypoints sampled at timestampUs with the given
// objectScale (consulted only by the velocity variant). When imageSize is
// non-nil, keypoints are treated as normalized: they are converted to
// absolute coordinates before filtering and back to normalized after.
func (s *KeypointSmoother) Apply(keypoints []pose.Keypoint, timestampUs int64, objectScale float64, imageSize *geom.ImageSize) []pose.Keypoint {
	working := keypoints
	if imageSize != nil {
		working = landmark.ToAbsolute(keypoints, *imageSize)
	}

	filtered := s.filter.Apply(working, timestampUs, objectScale)

	if imageSize != nil {
		filtered = landmark.ToNormalized(filtered, *imageSize)
	}
	return filtered
}

// Reset drops all per-keypoint filter state.
func (s *KeypointSmoother) Reset() {
	s.filter.Reset()
}
