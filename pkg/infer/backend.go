// Package infer defines the pipeline's only external runtime dependency —
// an inference backend able to run a model against a fixed-shape tensor
// input and hand back named output tensors — plus the affine image
// sampler used to build those inputs from a ROI. See spec.md §6.
package infer

// TensorHandle is a borrowed view onto one output tensor from a Run call.
// The pipeline must call Release on every exit path (success, low-score
// skip, error) before the backend's next Run — the data backing the
// handle may be reused by that call.
type TensorHandle interface {
	Shape() []int64
	Data() []float32
	Release()
}

// Backend is the inference collaborator the pipeline depends on. A
// concrete backend owns one loaded model with a fixed input shape and a
// fixed, ordered set of named outputs.
type Backend interface {
	// Run copies input (flat, row-major, matching the backend's
	// configured input shape) into the model's input tensor, executes it,
	// and returns one TensorHandle per configured output, in order.
	Run(input []float32) ([]TensorHandle, error)

	// NewAnchorTensor1D and NewAnchorTensor2D build standalone tensors —
	// e.g. to feed a precomputed anchor grid as a constant model input.
	// Unlike Run's output handles, these own their memory outright and
	// must be Released exactly once, typically on pipeline disposal.
	NewAnchorTensor1D(data []float32) (TensorHandle, error)
	NewAnchorTensor2D(rows, cols int, data []float32) (TensorHandle, error)

	// Close releases the session and all tensors it owns.
	Close() error
}
