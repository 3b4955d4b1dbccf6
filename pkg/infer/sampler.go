package infer

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
)

// Sampler resamples an image into a fixed-size tensor image via an affine
// transform, with bilinear interpolation and a constant-zero border — the
// image-to-tensor half of spec.md §6's external-interface contract.
type Sampler interface {
	Sample(src gocv.Mat, transform geom.Matrix, targetSize geom.ImageSize) (gocv.Mat, error)
}

// GocvSampler implements Sampler using gocv's WarpAffine.
type GocvSampler struct{}

// NewGocvSampler returns a GocvSampler.
func NewGocvSampler() *GocvSampler {
	return &GocvSampler{}
}

// Sample warps src into a targetSize image using transform, which must
// map destination-normalized coordinates to source-normalized coordinates
// (the convention produced by geom.ProjectiveTransformMatrix). Samples
// falling outside src read as zero (black border).
func (s *GocvSampler) Sample(src gocv.Mat, transform geom.Matrix, targetSize geom.ImageSize) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, fmt.Errorf("infer: source image is empty")
	}
	if targetSize.Width <= 0 || targetSize.Height <= 0 {
		return gocv.Mat{}, fmt.Errorf("infer: target size must be positive, got %dx%d", targetSize.Width, targetSize.Height)
	}

	srcW, srcH := float64(src.Cols()), float64(src.Rows())
	dstW, dstH := float64(targetSize.Width), float64(targetSize.Height)

	// transform already maps dst-normalized -> src-normalized, which is
	// exactly the inverse-mapping direction gocv.WarpInverseMap expects —
	// no extra matrix inversion needed.
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV32F)
	defer m.Close()
	m.SetFloatAt(0, 0, float32(srcW*transform.A0/dstW))
	m.SetFloatAt(0, 1, float32(srcW*transform.A1/dstH))
	m.SetFloatAt(0, 2, float32(srcW*transform.A2))
	m.SetFloatAt(1, 0, float32(srcH*transform.B0/dstW))
	m.SetFloatAt(1, 1, float32(srcH*transform.B1/dstH))
	m.SetFloatAt(1, 2, float32(srcH*transform.B2))

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(
		src, &dst, m,
		image.Pt(targetSize.Width, targetSize.Height),
		gocv.InterpolationLinear,
		gocv.BorderConstant+gocv.WarpInverseMap,
		color.RGBA{},
	)
	return dst, nil
}
