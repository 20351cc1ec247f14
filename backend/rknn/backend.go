package rknn

/*
#include "rknn_api.h"
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"fmt"
	"unsafe"

	"gocv.io/x/gocv"

	falldetect "github.com/edgevision/go-falldetect"
)

// Backend runs compiled RKNN models on the Rockchip NPU.  It satisfies the
// detector.Backend interface, output buffers are converted to float32
// tensors and the C memory released before Run returns.
type Backend struct {
	rt *runtime
}

// NewBackend loads the compiled RKNN model at modelFile and binds it to the
// NPU cores selected by the core mask.
func NewBackend(modelFile string, core CoreMask) (*Backend, error) {

	rt, err := newRuntime(modelFile, core)

	if err != nil {
		return nil, fmt.Errorf("error initializing RKNN runtime: %w", err)
	}

	return &Backend{rt: rt}, nil
}

// InputSize returns the model input canvas dimensions.
func (b *Backend) InputSize() (width, height int) {
	w, h, _ := b.rt.inputSize()
	return w, h
}

// Run executes a forward pass over the canvas image.  The NPU consumes the
// uint8 HWC canvas directly, quantization and normalization happen inside
// the compiled model.
func (b *Backend) Run(canvas gocv.Mat) ([]falldetect.Tensor, error) {

	if !canvas.IsContinuous() {
		canvas = canvas.Clone()
		defer canvas.Close()
	}

	data, err := canvas.DataPtrUint8()

	if err != nil {
		return nil, fmt.Errorf("error getting data pointer to Mat: %w", err)
	}

	var cInput C.rknn_input
	cInput.index = 0
	cInput.buf = unsafe.Pointer(&data[0])
	cInput.size = C.uint32_t(canvas.Cols() * canvas.Rows() * canvas.Channels())
	cInput.pass_through = 0
	cInput._type = C.RKNN_TENSOR_UINT8
	cInput.fmt = C.RKNN_TENSOR_NHWC

	ret := C.rknn_inputs_set(b.rt.ctx, 1, &cInput)

	if ret != C.RKNN_SUCC {
		return nil, fmt.Errorf("C.rknn_inputs_set failed with code %d, error: %s",
			int(ret), errorCode(ret))
	}

	ret = C.rknn_run(b.rt.ctx, nil)

	if ret < 0 {
		return nil, fmt.Errorf("C.rknn_run failed with code %d, error: %s",
			int(ret), errorCode(ret))
	}

	return b.getOutputs()
}

// getOutputs collects the inference outputs as float32 tensors.  Quantized
// int8 outputs are dequantized by the C API, native fp16 outputs are fetched
// raw and converted through the lookup table which is faster than the C
// conversion path.
func (b *Backend) getOutputs() ([]falldetect.Tensor, error) {

	n := b.rt.numOutputs
	cOutputs := make([]C.rknn_output, n)

	for i := uint32(0); i < n; i++ {
		cOutputs[i].index = C.uint32_t(i)

		if b.rt.outputAttrs[i].typ == C.RKNN_TENSOR_FLOAT16 {
			cOutputs[i].want_float = 0
		} else {
			cOutputs[i].want_float = 1
		}
	}

	ret := C.rknn_outputs_get(b.rt.ctx, C.uint32_t(n),
		(*C.rknn_output)(unsafe.Pointer(&cOutputs[0])), nil)

	if ret < 0 {
		return nil, fmt.Errorf("C.rknn_outputs_get failed with code %d, error: %s",
			int(ret), errorCode(ret))
	}

	tensors := make([]falldetect.Tensor, n)

	for i := uint32(0); i < n; i++ {

		size := uint32(cOutputs[i].size)

		var buf []float32

		if cOutputs[i].want_float == 1 {
			// copy out of the C owned float32 buffer
			cBuf := (*[1 << 30]float32)(cOutputs[i].buf)[: size/4 : size/4]
			buf = make([]float32, len(cBuf))
			copy(buf, cBuf)

		} else {
			// raw fp16 buffer, convert via lookup table
			cBuf := (*[1 << 30]uint16)(cOutputs[i].buf)[: size/2 : size/2]
			buf = convertFloat16Buffer(cBuf)
		}

		tensors[i] = falldetect.Tensor{
			Data: buf,
			Dims: b.rt.outputAttrs[i].goDims(),
		}
	}

	// outputs are copied into Go memory, release the C buffers immediately
	relRet := C.rknn_outputs_release(b.rt.ctx, C.uint32_t(n),
		(*C.rknn_output)(unsafe.Pointer(&cOutputs[0])))

	if relRet != 0 {
		return nil, fmt.Errorf("C.rknn_outputs_release failed with code %d, error: %s",
			int(relRet), errorCode(relRet))
	}

	return tensors, nil
}

// Close unloads the model and destroys the RKNN context.  Closing an
// already closed backend is a no-op.
func (b *Backend) Close() error {

	if b.rt == nil {
		return nil
	}

	err := b.rt.close()
	b.rt = nil

	return err
}
