package pipeline

import (
	"fmt"

	"gocv.io/x/gocv"
)

// matToTensor flattens a 3-channel 8-bit image into a float32 tensor
// scaled linearly from [0,255] to [min,max], in either channel-minor
// (NHWC) or channel-major (NCHW) layout — the "shift pixel values to the
// documented input range" step of spec.md §4.4 step 4.
func matToTensor(m gocv.Mat, layout Layout, min, max float64) ([]float32, error) {
	if m.Empty() {
		return nil, fmt.Errorf("pipeline: sampled image is empty")
	}
	if m.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("pipeline: sampled image must be 8-bit 3-channel, got type %d", m.Type())
	}

	data, err := m.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("pipeline: read sampled image pixels: %w", err)
	}

	rows, cols, channels := m.Rows(), m.Cols(), 3
	scale := float32((max - min) / 255.0)
	offset := float32(min)

	out := make([]float32, rows*cols*channels)

	switch layout {
	case LayoutNCHW:
		planeSize := rows * cols
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				pix := (y*cols + x) * channels
				for c := 0; c < channels; c++ {
					out[c*planeSize+y*cols+x] = float32(data[pix+c])*scale + offset
				}
			}
		}
	default: // LayoutNHWC
		for i, v := range data {
			out[i] = float32(v)*scale + offset
		}
	}

	return out, nil
}

func float32To64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
