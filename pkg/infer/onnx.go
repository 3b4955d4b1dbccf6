package infer

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ModelConfig describes how to load and run one ONNX model: its fixed
// input shape and its ordered, fixed-shape outputs.
type ModelConfig struct {
	Path        string
	InputName   string
	InputShape  []int64
	OutputNames []string
	OutputShapes [][]int64

	IntraOpThreads int
	InterOpThreads int
}

func (c ModelConfig) validate() error {
	if len(c.OutputNames) != len(c.OutputShapes) {
		return fmt.Errorf("infer: %d output names but %d output shapes", len(c.OutputNames), len(c.OutputShapes))
	}
	if len(c.InputShape) == 0 {
		return fmt.Errorf("infer: input shape must be non-empty")
	}
	return nil
}

// ONNXBackend implements Backend against github.com/yalue/onnxruntime_go.
// Every tensor it allocates is destroyed on every exit path: constructor
// failure, and Close.
type ONNXBackend struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
}

// NewONNXBackend loads cfg's model and allocates its fixed-shape input
// and output tensors once, for the lifetime of the backend.
func NewONNXBackend(cfg ModelConfig) (*ONNXBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("infer: create session options: %w", err)
	}
	defer opts.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("infer: set intra_op_threads: %w", err)
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return nil, fmt.Errorf("infer: set inter_op_threads: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("infer: create input tensor: %w", err)
	}

	outputTensors := make([]*ort.Tensor[float32], len(cfg.OutputShapes))
	outputValues := make([]ort.Value, len(cfg.OutputShapes))
	for i, shape := range cfg.OutputShapes {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("infer: create output tensor %d (%s): %w", i, cfg.OutputNames[i], err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(cfg.Path,
		[]string{cfg.InputName},
		cfg.OutputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("infer: create session for %s: %w", cfg.Path, err)
	}

	return &ONNXBackend{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
	}, nil
}

// Run copies input into the backend's fixed input tensor, executes the
// session, and returns a handle onto each output tensor's live buffer.
// Handles are only valid until the next Run call.
func (b *ONNXBackend) Run(input []float32) ([]TensorHandle, error) {
	dst := b.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("infer: input length %d does not match tensor size %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("infer: run session: %w", err)
	}

	out := make([]TensorHandle, len(b.outputTensors))
	for i, t := range b.outputTensors {
		out[i] = &reusedHandle{tensor: t}
	}
	return out, nil
}

// NewAnchorTensor1D builds a standalone 1-D tensor, e.g. for feeding a
// precomputed anchor grid as a constant model input.
func (b *ONNXBackend) NewAnchorTensor1D(data []float32) (TensorHandle, error) {
	t, err := ort.NewTensor(ort.NewShape(int64(len(data))), data)
	if err != nil {
		return nil, fmt.Errorf("infer: create 1-D anchor tensor: %w", err)
	}
	return &ownedHandle{tensor: t}, nil
}

// NewAnchorTensor2D builds a standalone 2-D tensor from row-major data.
func (b *ONNXBackend) NewAnchorTensor2D(rows, cols int, data []float32) (TensorHandle, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("infer: 2-D anchor tensor data length %d does not match %d×%d", len(data), rows, cols)
	}
	t, err := ort.NewTensor(ort.NewShape(int64(rows), int64(cols)), data)
	if err != nil {
		return nil, fmt.Errorf("infer: create 2-D anchor tensor: %w", err)
	}
	return &ownedHandle{tensor: t}, nil
}

// Close destroys the session and all tensors it owns.
func (b *ONNXBackend) Close() error {
	if b.session != nil {
		b.session.Destroy()
	}
	if b.inputTensor != nil {
		b.inputTensor.Destroy()
	}
	for _, t := range b.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
	return nil
}

// reusedHandle wraps a session-owned output tensor. Release is a no-op:
// the buffer is reused in place by the next Run, not freed per call.
type reusedHandle struct {
	tensor *ort.Tensor[float32]
}

func (h *reusedHandle) Shape() []int64 {
	shape := h.tensor.GetShape()
	out := make([]int64, len(shape))
	copy(out, shape)
	return out
}
func (h *reusedHandle) Data() []float32 { return h.tensor.GetData() }
func (h *reusedHandle) Release()        {}

// ownedHandle wraps a standalone tensor (e.g. an anchor grid) that the
// caller allocated directly; Release destroys it.
type ownedHandle struct {
	tensor *ort.Tensor[float32]
}

func (h *ownedHandle) Shape() []int64 {
	shape := h.tensor.GetShape()
	out := make([]int64, len(shape))
	copy(out, shape)
	return out
}
func (h *ownedHandle) Data() []float32 { return h.tensor.GetData() }
func (h *ownedHandle) Release()        { h.tensor.Destroy() }
