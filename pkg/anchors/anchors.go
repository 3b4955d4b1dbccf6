// Package anchors generates the SSD-style anchor grid a detector decodes
// its raw box/keypoint offsets against.
package anchors

import (
	"fmt"
	"math"

	"github.com/PoseFlowDEV/poseflow/pkg/geom"
)

// Config parameterizes the anchor grid generator. See spec.md §4.2.
type Config struct {
	NumLayers                   int
	MinScale                    float64
	MaxScale                    float64
	InputSizeHeight              int
	InputSizeWidth               int
	Strides                      []int
	AspectRatios                 []float64
	AnchorOffsetX                float64
	AnchorOffsetY                float64
	FixedAnchorSize              bool
	// ReduceBoxesInLowestLayer replaces layer 0's aspect ratios/scales
	// with the fixed {1,1,1}/{0.1,MinScale,MinScale} triple mobile SSD
	// detectors use to cut the lowest layer's box count. The values are
	// carried over from that convention; this codebase has not been
	// checked against a model's decoded output to confirm the layer-0
	// anchor count it implies still lines up with what the detector was
	// trained against.
	ReduceBoxesInLowestLayer     bool
	InterpolatedScaleAspectRatio float64
}

// Validate checks the configuration for required, well-formed fields.
func (c Config) Validate() error {
	if c.NumLayers <= 0 {
		return fmt.Errorf("anchors: numLayers must be positive, got %d", c.NumLayers)
	}
	if len(c.Strides) != c.NumLayers {
		return fmt.Errorf("anchors: expected %d strides, got %d", c.NumLayers, len(c.Strides))
	}
	if c.InputSizeWidth <= 0 || c.InputSizeHeight <= 0 {
		return fmt.Errorf("anchors: input size must be positive, got %dx%d", c.InputSizeWidth, c.InputSizeHeight)
	}
	if len(c.AspectRatios) == 0 {
		return fmt.Errorf("anchors: at least one aspect ratio is required")
	}
	for _, s := range c.Strides {
		if s <= 0 {
			return fmt.Errorf("anchors: stride must be positive, got %d", s)
		}
	}
	return nil
}

// layerScale returns the scale assigned to layer k, per
// scale(k) = minScale + (maxScale-minScale)*k/(numLayers-1), or just
// minScale when there is a single layer.
func layerScale(cfg Config, k int) float64 {
	if cfg.NumLayers == 1 {
		return cfg.MinScale
	}
	return cfg.MinScale + (cfg.MaxScale-cfg.MinScale)*float64(k)/float64(cfg.NumLayers-1)
}

// Grid is the anchor set materialized two ways: as the ordered list of
// Rects (rotation 0) for callers that want structured access, and as
// struct-of-arrays for the vectorized decode hot path (spec.md §9 design
// notes).
type Grid struct {
	Anchors []geom.Rect
	X, Y    []float64
	W, H    []float64
}

func (g *Grid) append(x, y, w, h float64) {
	g.Anchors = append(g.Anchors, geom.Rect{XCenter: x, YCenter: y, Width: w, Height: h, Rotation: 0})
	g.X = append(g.X, x)
	g.Y = append(g.Y, y)
	g.W = append(g.W, w)
	g.H = append(g.H, h)
}

// Generate builds the anchor grid described by cfg. Anchors are ordered
// layer-major, row-major, col-major, aspect-ratio-minor, matching the
// index order the detector's raw tensor output assumes.
func Generate(cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	grid := &Grid{}

	for k := 0; k < cfg.NumLayers; k++ {
		stride := cfg.Strides[k]

		var aspectRatios []float64
		var scales []float64

		if k == 0 && cfg.ReduceBoxesInLowestLayer {
			aspectRatios = []float64{1.0, 1.0, 1.0}
			scales = []float64{0.1, cfg.MinScale, cfg.MinScale}
		} else {
			scale := layerScale(cfg, k)
			aspectRatios = append(aspectRatios, cfg.AspectRatios...)
			for range cfg.AspectRatios {
				scales = append(scales, scale)
			}
			if cfg.InterpolatedScaleAspectRatio != 0 {
				nextScale := 1.0
				if k < cfg.NumLayers-1 {
					nextScale = layerScale(cfg, k+1)
				} else {
					nextScale = scale
				}
				aspectRatios = append(aspectRatios, cfg.InterpolatedScaleAspectRatio)
				scales = append(scales, math.Sqrt(scale*nextScale))
			}
		}

		featureMapH := int(math.Ceil(float64(cfg.InputSizeHeight) / float64(stride)))
		featureMapW := int(math.Ceil(float64(cfg.InputSizeWidth) / float64(stride)))

		for row := 0; row < featureMapH; row++ {
			for col := 0; col < featureMapW; col++ {
				xCenter := (float64(col) + cfg.AnchorOffsetX) * float64(stride) / float64(cfg.InputSizeWidth)
				yCenter := (float64(row) + cfg.AnchorOffsetY) * float64(stride) / float64(cfg.InputSizeHeight)

				for i, aspect := range aspectRatios {
					if cfg.FixedAnchorSize {
						grid.append(xCenter, yCenter, 1, 1)
						continue
					}
					scale := scales[i]
					w := scale * math.Sqrt(aspect)
					h := scale / math.Sqrt(aspect)
					grid.append(xCenter, yCenter, w, h)
				}
			}
		}
	}

	return grid, nil
}
