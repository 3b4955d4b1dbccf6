package filter

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

type velocitySample struct {
	distance float64
	duration float64 // microseconds
}

// RelativeVelocityFilter adapts a low-pass α to the signal's recent
// velocity: fast-moving signals are smoothed less, slow ones more. When
// value scaling is enabled, distance is expressed relative to the tracked
// object's size so that filtering strength is resolution/scale invariant.
type RelativeVelocityFilter struct {
	mu sync.Mutex

	windowSize            int
	velocityScale         float64
	minAllowedObjectScale float64
	disableValueScaling   bool

	window []velocitySample
	low    *LowPass

	lastValue     float64
	lastTimestamp int64
	hasLast       bool
}

// NewRelativeVelocityFilter returns a RelativeVelocityFilter. windowSize
// bounds the number of (distance, duration) samples retained.
func NewRelativeVelocityFilter(windowSize int, velocityScale, minAllowedObjectScale float64, disableValueScaling bool) *RelativeVelocityFilter {
	return &RelativeVelocityFilter{
		windowSize:            windowSize,
		velocityScale:         velocityScale,
		minAllowedObjectScale: minAllowedObjectScale,
		disableValueScaling:   disableValueScaling,
		low:                   NewLowPass(1),
	}
}

// Apply smooths value sampled at timestampUs (strictly increasing
// microseconds). When value scaling is enabled and objectScale is below
// minAllowedObjectScale, the input is returned unchanged and no state is
// updated.
func (f *RelativeVelocityFilter) Apply(value float64, timestampUs int64, objectScale float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.disableValueScaling && objectScale < f.minAllowedObjectScale {
		return value
	}

	if !f.hasLast {
		f.lastValue = value
		f.lastTimestamp = timestampUs
		f.hasLast = true
		return f.low.ApplyWithAlpha(1, value)
	}

	duration := float64(timestampUs - f.lastTimestamp)
	if duration <= 0 {
		duration = 1
	}

	valueScale := 1.0
	if !f.disableValueScaling {
		valueScale = 1 / objectScale
	}
	distance := (value - f.lastValue) * valueScale

	f.window = append(f.window, velocitySample{distance: distance, duration: duration})
	if len(f.window) > f.windowSize {
		f.window = f.window[len(f.window)-f.windowSize:]
	}

	n := len(f.window)
	weights := make([]float64, n)
	distances := make([]float64, n)
	durations := make([]float64, n)
	for i, s := range f.window {
		age := n - 1 - i // 0 = newest sample
		weights[i] = 1 / float64(age+1)
		distances[i] = math.Abs(s.distance)
		durations[i] = s.duration
	}
	weightedDistance := floats.Dot(weights, distances)
	weightedDuration := floats.Dot(weights, durations)

	var velocity float64
	if weightedDuration > 0 {
		velocity = weightedDistance / weightedDuration
	}

	alpha := 1 / (1 + f.velocityScale*velocity)

	f.lastValue = value
	f.lastTimestamp = timestampUs

	return f.low.ApplyWithAlpha(alpha, value)
}

// Reset clears the window, last-sample state, and internal low-pass.
func (f *RelativeVelocityFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = nil
	f.hasLast = false
	f.lastValue = 0
	f.lastTimestamp = 0
	f.low.Reset()
}
