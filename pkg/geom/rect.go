package geom

import (
	"fmt"
	"math"
)

// NormalizeRadians folds a into (−π, π].
func NormalizeRadians(a float64) float64 {
	r := a - 2*math.Pi*math.Floor((a+math.Pi)/(2*math.Pi))
	if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}

// TransformValueRange returns the (scale, offset) pair of an affine map
// that takes fromMin↦toMin and fromMax↦toMax. It fails when fromMin equals
// fromMax (the source range is degenerate).
func TransformValueRange(fromMin, fromMax, toMin, toMax float64) (scale, offset float64, err error) {
	if fromMin == fromMax {
		return 0, 0, fmt.Errorf("geom: degenerate source range [%g, %g]", fromMin, fromMax)
	}
	scale = (toMax - toMin) / (fromMax - fromMin)
	offset = toMin - fromMin*scale
	return scale, offset, nil
}

// GetRoi returns the absolute Rect to use as a region of interest. When
// normRect is nil, the full image is returned, centered, unrotated. When
// normRect is given, its normalized coordinates are denormalized against
// imageSize.
func GetRoi(imageSize ImageSize, normRect *Rect) (Rect, error) {
	if imageSize.Width <= 0 || imageSize.Height <= 0 {
		return Rect{}, fmt.Errorf("geom: image size must be positive, got %dx%d", imageSize.Width, imageSize.Height)
	}

	if normRect == nil {
		return Rect{
			XCenter:  float64(imageSize.Width) / 2,
			YCenter:  float64(imageSize.Height) / 2,
			Width:    float64(imageSize.Width),
			Height:   float64(imageSize.Height),
			Rotation: 0,
		}, nil
	}

	w := float64(imageSize.Width)
	h := float64(imageSize.Height)
	return Rect{
		XCenter:  normRect.XCenter * w,
		YCenter:  normRect.YCenter * h,
		Width:    normRect.Width * w,
		Height:   normRect.Height * h,
		Rotation: normRect.Rotation,
	}, nil
}

// PadRoi enlarges the shorter side of roi so its aspect ratio matches
// targetSize, returning the new Rect and the letterbox Padding the
// enlargement implies. When keepAspectRatio is false, roi is returned
// unchanged and padding is zero. Fails if targetSize or roi has a
// non-positive dimension.
func PadRoi(roi Rect, targetSize ImageSize, keepAspectRatio bool) (Rect, Padding, error) {
	if !keepAspectRatio {
		return roi, Padding{}, nil
	}

	if targetSize.Width <= 0 {
		return Rect{}, Padding{}, fmt.Errorf("geom: target width must be positive, got %d", targetSize.Width)
	}
	if targetSize.Height <= 0 {
		return Rect{}, Padding{}, fmt.Errorf("geom: target height must be positive, got %d", targetSize.Height)
	}
	if err := roi.Valid(); err != nil {
		return Rect{}, Padding{}, err
	}

	targetAspect := float64(targetSize.Height) / float64(targetSize.Width)
	roiAspect := roi.Height / roi.Width

	newRoi := roi
	var padding Padding

	if targetAspect > roiAspect {
		// Target is relatively taller than roi: grow roi's height.
		newRoi.Width = roi.Width
		newRoi.Height = roi.Width * targetAspect
		v := (1 - roiAspect/targetAspect) / 2
		padding.Top, padding.Bottom = v, v
	} else {
		// Target is relatively wider than (or equal to) roi: grow roi's width.
		newRoi.Width = roi.Height / targetAspect
		newRoi.Height = roi.Height
		h := (1 - targetAspect/roiAspect) / 2
		padding.Left, padding.Right = h, h
	}

	return newRoi, padding, nil
}

// RectTransformConfig parameterizes TransformNormalizedRect: a shift
// (applied in the rect's own rotated frame), a scale, and an optional
// "squaring" of the rect to its long or short side. At most one of
// SquareLong/SquareShort should be set.
type RectTransformConfig struct {
	ShiftX, ShiftY float64
	ScaleX, ScaleY float64
	SquareLong     bool
	SquareShort    bool
}

// TransformNormalizedRect shifts roi by (shiftX·width, shiftY·height) in
// the rotated frame (the shift vector is itself rotated by roi.Rotation
// before being added), scales by (scaleX, scaleY), and then — if
// requested — forces both sides to the rect's long or short side.
// Rotation is left unchanged.
func TransformNormalizedRect(roi Rect, cfg RectTransformConfig) Rect {
	out := roi

	if cfg.ShiftX != 0 || cfg.ShiftY != 0 {
		cosR := math.Cos(roi.Rotation)
		sinR := math.Sin(roi.Rotation)
		dx := cfg.ShiftX * roi.Width
		dy := cfg.ShiftY * roi.Height
		out.XCenter += dx*cosR - dy*sinR
		out.YCenter += dx*sinR + dy*cosR
	}

	if cfg.ScaleX != 0 {
		out.Width *= cfg.ScaleX
	}
	if cfg.ScaleY != 0 {
		out.Height *= cfg.ScaleY
	}

	switch {
	case cfg.SquareLong:
		side := math.Max(out.Width, out.Height)
		out.Width, out.Height = side, side
	case cfg.SquareShort:
		side := math.Min(out.Width, out.Height)
		out.Width, out.Height = side, side
	}

	return out
}
