// Package geom implements the oriented-rectangle geometry that glues a
// pose-estimation pipeline to its models: padding, letterbox bookkeeping,
// affine transform construction/inversion, and normalized↔absolute
// coordinate projection. It has no dependency on any particular inference
// backend or image library; image sampling lives in package infer.
package geom

import "fmt"

// ImageSize is a pixel width/height pair. Both fields must be strictly
// positive; the functions in this package that take one validate that.
type ImageSize struct {
	Width, Height int
}

// Rect is an oriented rectangle: a center, an extent, and a CCW rotation
// in radians about the center, normalized to (−π, π]. Coordinates may be
// normalized (∈ [0,1] relative to some reference image) or absolute
// (pixels) — callers must not mix the two within one computation.
type Rect struct {
	XCenter  float64
	YCenter  float64
	Width    float64
	Height   float64
	Rotation float64
}

// Valid reports whether r has strictly positive extent.
func (r Rect) Valid() error {
	if r.Width <= 0 {
		return fmt.Errorf("geom: rect width must be positive, got %g", r.Width)
	}
	if r.Height <= 0 {
		return fmt.Errorf("geom: rect height must be positive, got %g", r.Height)
	}
	return nil
}

// BoundingBox is an axis-aligned box, used by the tracker and crop logic.
type BoundingBox struct {
	XMin, YMin, XMax, YMax float64
	Width, Height          float64
}

// NewBoundingBox builds a BoundingBox from corner coordinates, filling in
// Width/Height. xMin must be ≤ xMax and yMin must be ≤ yMax.
func NewBoundingBox(xMin, yMin, xMax, yMax float64) BoundingBox {
	return BoundingBox{
		XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax,
		Width:  xMax - xMin,
		Height: yMax - yMin,
	}
}

// FromRect returns the axis-aligned bounding box of an (unrotated) Rect.
// Rotation is ignored — callers that need the rotated footprint should
// compute it from the four corners directly.
func FromRect(r Rect) BoundingBox {
	return NewBoundingBox(
		r.XCenter-r.Width/2, r.YCenter-r.Height/2,
		r.XCenter+r.Width/2, r.YCenter+r.Height/2,
	)
}

// IoU returns the intersection-over-union of two bounding boxes.
func (b BoundingBox) IoU(o BoundingBox) float64 {
	interXMin := max(b.XMin, o.XMin)
	interYMin := max(b.YMin, o.YMin)
	interXMax := min(b.XMax, o.XMax)
	interYMax := min(b.YMax, o.YMax)

	interW := interXMax - interXMin
	interH := interYMax - interYMin
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH
	union := b.Width*b.Height + o.Width*o.Height - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// IoM returns the intersection-over-minimum of two bounding boxes, used
// by NMS as an alternative to IoU for heavily nested detections.
func (b BoundingBox) IoM(o BoundingBox) float64 {
	interXMin := max(b.XMin, o.XMin)
	interYMin := max(b.YMin, o.YMin)
	interXMax := min(b.XMax, o.XMax)
	interYMax := min(b.YMax, o.YMax)

	interW := interXMax - interXMin
	interH := interYMax - interYMin
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH
	minArea := min(b.Width*b.Height, o.Width*o.Height)
	if minArea <= 0 {
		return 0
	}
	return interArea / minArea
}

// Padding holds letterbox fractions of the output tensor that are padding,
// not image, one per edge. Each fraction is in [0,1) and left+right (and
// separately top+bottom) must sum to strictly less than 1.
type Padding struct {
	Left, Top, Right, Bottom float64
}

// Valid reports whether the padding fractions are within the documented
// range.
func (p Padding) Valid() error {
	if p.Left+p.Right >= 1 {
		return fmt.Errorf("geom: left+right padding must be < 1, got %g", p.Left+p.Right)
	}
	if p.Top+p.Bottom >= 1 {
		return fmt.Errorf("geom: top+bottom padding must be < 1, got %g", p.Top+p.Bottom)
	}
	return nil
}
