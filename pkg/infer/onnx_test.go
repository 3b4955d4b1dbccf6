package infer

import "testing"

func TestModelConfigValidateRejectsMismatchedOutputs(t *testing.T) {
	cfg := ModelConfig{
		InputShape:  []int64{1, 3, 128, 128},
		OutputNames: []string{"a", "b"},
		OutputShapes: [][]int64{
			{1, 2254, 13},
		},
	}
	if err := cfg.validate(); err == nil {
		t.Error("expected error for mismatched output names/shapes")
	}
}

func TestModelConfigValidateRejectsEmptyInputShape(t *testing.T) {
	cfg := ModelConfig{
		OutputNames:  []string{"a"},
		OutputShapes: [][]int64{{1}},
	}
	if err := cfg.validate(); err == nil {
		t.Error("expected error for empty input shape")
	}
}

func TestModelConfigValidateAcceptsMatchedConfig(t *testing.T) {
	cfg := ModelConfig{
		InputShape:  []int64{1, 3, 128, 128},
		OutputNames: []string{"scores", "boxes"},
		OutputShapes: [][]int64{
			{1, 896, 1},
			{1, 896, 12},
		},
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
