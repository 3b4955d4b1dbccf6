package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix holds the 8 explicit coefficients of a 3×3 projective transform
// whose implied third row is [0, 0, 1] — i.e. a pure affine map expressed
// with a redundant trailing pair of zeros for parity with the tensor
// builders a model runtime would hand these coefficients to.
//
//	[a0 a1 a2]   [x]
//	[b0 b1 b2] · [y]
//	[c0 c1  1]   [1]
type Matrix struct {
	A0, A1, A2 float64
	B0, B1, B2 float64
	C0, C1     float64
}

// Coefficients returns the 8 values in [a0,a1,a2,b0,b1,b2,0,0] order.
func (m Matrix) Coefficients() [8]float64 {
	return [8]float64{m.A0, m.A1, m.A2, m.B0, m.B1, m.B2, m.C0, m.C1}
}

func (m Matrix) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m.A0, m.A1, m.A2,
		m.B0, m.B1, m.B2,
		m.C0, m.C1, 1,
	})
}

func matrixFromDense(d *mat.Dense) Matrix {
	return Matrix{
		A0: d.At(0, 0), A1: d.At(0, 1), A2: d.At(0, 2),
		B0: d.At(1, 0), B1: d.At(1, 1), B2: d.At(1, 2),
		C0: d.At(2, 0), C1: d.At(2, 1),
	}
}

func translationMatrix(dx, dy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, dx,
		0, 1, dy,
		0, 0, 1,
	})
}

func scaleMatrix(sx, sy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		sx, 0, 0,
		0, sy, 0,
		0, 0, 1,
	})
}

func rotationMatrix(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// ProjectiveTransformMatrix builds the forward affine matrix that maps
// output-tensor-normalized coordinates ([-0.5,0.5] centered, then
// translated through the ROI) back to input-image-normalized coordinates.
// It is the matrix product (applied in this order to a column vector):
// translate-to-[-0.5,0.5], scale-to-ROI-size, optional horizontal flip,
// rotate by roi.Rotation, translate to the ROI center, scale to
// normalized image coordinates.
//
// targetSize is accepted for interface parity with the image-sampling
// stage (which needs it to know how many destination pixels to iterate)
// but does not affect this matrix: the composition above operates
// entirely in normalized coordinates and so is resolution-independent.
func ProjectiveTransformMatrix(roi Rect, imageSize ImageSize, flipHorizontally bool, targetSize ImageSize) (Matrix, error) {
	_ = targetSize
	if imageSize.Width <= 0 || imageSize.Height <= 0 {
		return Matrix{}, fmt.Errorf("geom: image size must be positive, got %dx%d", imageSize.Width, imageSize.Height)
	}
	if err := roi.Valid(); err != nil {
		return Matrix{}, err
	}

	flip := 1.0
	if flipHorizontally {
		flip = -1.0
	}

	toCentered := translationMatrix(-0.5, -0.5)
	toRoiSize := scaleMatrix(roi.Width, roi.Height)
	flipX := scaleMatrix(flip, 1)
	rotate := rotationMatrix(roi.Rotation)
	toRoiCenter := translationMatrix(roi.XCenter, roi.YCenter)
	toImageNorm := scaleMatrix(1/float64(imageSize.Width), 1/float64(imageSize.Height))

	var tmp, result mat.Dense
	tmp.Mul(toRoiSize, toCentered)
	tmp.Mul(flipX, &tmp)
	tmp.Mul(rotate, &tmp)
	tmp.Mul(toRoiCenter, &tmp)
	result.Mul(toImageNorm, &tmp)

	return matrixFromDense(&result), nil
}

// InverseMatrix inverts a projective transform built by
// ProjectiveTransformMatrix (or any non-singular affine 3×3 matrix with
// implied bottom row [0,0,1]). Used to project segmentation masks back
// from tensor space to image space.
func InverseMatrix(m Matrix) (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.dense()); err != nil {
		return Matrix{}, fmt.Errorf("geom: matrix is not invertible: %w", err)
	}
	return matrixFromDense(&inv), nil
}

// Apply transforms a normalized point (x, y) through m, returning the
// mapped (x', y'). z, when present, passes through unscaled — callers
// that need to rescale z alongside x (e.g. landmark projection) do so
// separately per spec.md §4.3.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A0*x + m.A1*y + m.A2, m.B0*x + m.B1*y + m.B2
}
