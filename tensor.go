package falldetect

import (
	"fmt"
)

// Tensor is a dense multi-dimensional float32 array produced by an inference
// backend.  Backends dequantize or convert their native output buffers to
// float32 before returning, so the postprocessing stages are independent of
// the backend's quantization scheme.
//
// Detection model outputs come grouped in triples per detection scale: a box
// distribution tensor, a class probability tensor and an implicit unit
// confidence tensor which backends may omit.  The output slice length is
// therefore always a multiple of 3.
type Tensor struct {
	// Data holds the tensor values in row-major order
	Data []float32
	// Dims are the tensor dimensions, eg: [1, 64, 80, 80] for NCHW
	Dims []int
}

// NumElems returns the number of elements the tensor dimensions describe.
func (t Tensor) NumElems() int {

	n := 1

	for _, d := range t.Dims {
		n *= d
	}

	return n
}

// Check validates the Data buffer length against the tensor dimensions.
func (t Tensor) Check() error {

	if len(t.Dims) == 0 {
		return fmt.Errorf("tensor has no dimensions")
	}

	if want := t.NumElems(); len(t.Data) != want {
		return fmt.Errorf("tensor data length %d does not match dims %v (%d elements)",
			len(t.Data), t.Dims, want)
	}

	return nil
}
