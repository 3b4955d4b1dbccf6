package anchors

import "testing"

// TestGenerateAnchorCountS1 is scenario S1 from spec.md §8: this exact
// detector configuration must produce 896 anchors.
func TestGenerateAnchorCountS1(t *testing.T) {
	cfg := Config{
		NumLayers:                    4,
		MinScale:                     0.1484375,
		MaxScale:                     0.75,
		InputSizeHeight:              128,
		InputSizeWidth:               128,
		Strides:                      []int{8, 16, 16, 16},
		AspectRatios:                 []float64{1.0},
		FixedAnchorSize:              true,
		InterpolatedScaleAspectRatio: 1.0,
		ReduceBoxesInLowestLayer:     false,
	}

	grid, err := Generate(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(grid.Anchors); got != 896 {
		t.Errorf("got %d anchors, want 896", got)
	}
	if len(grid.X) != 896 || len(grid.Y) != 896 || len(grid.W) != 896 || len(grid.H) != 896 {
		t.Errorf("struct-of-arrays length mismatch: x=%d y=%d w=%d h=%d", len(grid.X), len(grid.Y), len(grid.W), len(grid.H))
	}
}

func TestGenerateSingleLayerUsesMinScaleUnmodified(t *testing.T) {
	cfg := Config{
		NumLayers:        1,
		MinScale:         0.2,
		MaxScale:         0.9,
		InputSizeHeight:  64,
		InputSizeWidth:   64,
		Strides:          []int{16},
		AspectRatios:     []float64{1.0},
		FixedAnchorSize:  false,
		AnchorOffsetX:    0.5,
		AnchorOffsetY:    0.5,
	}

	grid, err := Generate(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// width = scale * sqrt(aspect) = minScale, regardless of maxScale.
	for i, w := range grid.W {
		if w != cfg.MinScale {
			t.Fatalf("anchor %d width = %g, want minScale %g", i, w, cfg.MinScale)
			break
		}
	}
}

func TestGenerateFixedAnchorSizeUnitExtent(t *testing.T) {
	cfg := Config{
		NumLayers:       1,
		MinScale:        0.2,
		MaxScale:        0.2,
		InputSizeHeight: 32,
		InputSizeWidth:  32,
		Strides:         []int{16},
		AspectRatios:    []float64{1.0, 2.0},
		FixedAnchorSize: true,
	}

	grid, err := Generate(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range grid.W {
		if grid.W[i] != 1 || grid.H[i] != 1 {
			t.Fatalf("anchor %d size = %gx%g, want 1x1", i, grid.W[i], grid.H[i])
		}
	}
}

func TestGenerateReduceBoxesInLowestLayer(t *testing.T) {
	cfg := Config{
		NumLayers:                2,
		MinScale:                 0.2,
		MaxScale:                 0.8,
		InputSizeHeight:          16,
		InputSizeWidth:           16,
		Strides:                  []int{16, 16},
		AspectRatios:             []float64{1.0},
		ReduceBoxesInLowestLayer: true,
	}

	grid, err := Generate(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Layer 0 has a single 1x1 cell at stride 16 over a 16x16 input,
	// emitting exactly 3 anchors (the fixed reduced-box set).
	if len(grid.Anchors) != 3+1 {
		t.Fatalf("got %d anchors, want 4 (3 reduced + 1 normal)", len(grid.Anchors))
	}

	wantScales := []float64{0.1, cfg.MinScale, cfg.MinScale}
	for i, want := range wantScales {
		if grid.W[i] != want {
			t.Errorf("anchor %d width = %g, want %g", i, grid.W[i], want)
		}
	}
}

func TestValidateRejectsMismatchedStrides(t *testing.T) {
	cfg := Config{
		NumLayers:       2,
		Strides:         []int{8},
		InputSizeWidth:  128,
		InputSizeHeight: 128,
		AspectRatios:    []float64{1.0},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for mismatched strides length")
	}
}
