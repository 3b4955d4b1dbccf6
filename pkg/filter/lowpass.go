// Package filter implements the temporal smoothing filters applied to
// decoded poses: a plain low-pass EMA, a relative-velocity filter, a
// 1-Euro filter, and the vector wrappers that apply a scalar filter
// per axis per keypoint. See spec.md §4.5.
package filter

import "sync"

// ScalarFilter smooths a single scalar stream sampled at strictly
// increasing microsecond timestamps. objectScale is only consulted by
// filters that gate or rescale on tracked-object size; others ignore it.
type ScalarFilter interface {
	Apply(value float64, timestampUs int64, objectScale float64) float64
	Reset()
}

// LowPass implements the α-EMA filter: y = α·x + (1−α)·y_prev. The first
// sample always initializes the filter and is returned unchanged.
type LowPass struct {
	mu sync.Mutex

	alpha float64

	rawValue    float64
	storedValue float64
	initialized bool
}

// NewLowPass returns a LowPass filter with the given smoothing factor
// alpha ∈ [0,1].
func NewLowPass(alpha float64) *LowPass {
	return &LowPass{alpha: alpha}
}

// Apply smooths value using the filter's configured alpha. timestampUs and
// objectScale are accepted (and ignored) so LowPass satisfies ScalarFilter.
func (lp *LowPass) Apply(value float64, _ int64, _ float64) float64 {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.applyLocked(lp.alpha, value)
}

// ApplyWithAlpha smooths value using an alpha supplied by the caller for
// this call only — used internally by filters whose alpha adapts per
// sample (relative-velocity, 1-Euro).
func (lp *LowPass) ApplyWithAlpha(alpha, value float64) float64 {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.applyLocked(alpha, value)
}

func (lp *LowPass) applyLocked(alpha, value float64) float64 {
	lp.rawValue = value
	if !lp.initialized {
		lp.storedValue = value
		lp.initialized = true
		return lp.storedValue
	}
	lp.storedValue = alpha*value + (1-alpha)*lp.storedValue
	return lp.storedValue
}

// LastRaw returns the most recently applied raw (pre-filter) value.
func (lp *LowPass) LastRaw() float64 {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.rawValue
}

// Reset clears both the last raw value and the last filtered value.
func (lp *LowPass) Reset() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.rawValue = 0
	lp.storedValue = 0
	lp.initialized = false
}
