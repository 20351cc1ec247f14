// Package rknn implements the inference backend contract over the RKNN
// Toolkit2 C API, running compiled models on the Rockchip NPU.  Building it
// requires the rknn_api header and shared library installed on the target
// board.
package rknn

/*
#cgo LDFLAGS: -lrknnrt
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"os"
	"strings"
	"unsafe"
)

// CoreMask selects which NPU cores a model runs on.  Auto picks an idle
// core.  The RK3588 has three cores, the RK3576 two, the RK356x one.
type CoreMask int

const (
	CoreAuto CoreMask = C.RKNN_NPU_CORE_AUTO
	Core0    CoreMask = C.RKNN_NPU_CORE_0
	Core1    CoreMask = C.RKNN_NPU_CORE_1
	Core2    CoreMask = C.RKNN_NPU_CORE_2
	Core01   CoreMask = C.RKNN_NPU_CORE_0_1
	Core012  CoreMask = C.RKNN_NPU_CORE_0_1_2
	// CoreSkip leaves the core mask unset for Rockchip models that do not
	// support rknn_set_core_mask
	CoreSkip CoreMask = 9999
)

// errorCode values returned by the C API.
type errorCode int

// String returns a readable description of the error code.
func (e errorCode) String() string {
	switch C.int(e) {
	case C.RKNN_SUCC:
		return "execution successful"
	case C.RKNN_ERR_FAIL:
		return "execution failed"
	case C.RKNN_ERR_TIMEOUT:
		return "execution timed out"
	case C.RKNN_ERR_DEVICE_UNAVAILABLE:
		return "device is unavailable"
	case C.RKNN_ERR_MALLOC_FAIL:
		return "C memory allocation failed"
	case C.RKNN_ERR_PARAM_INVALID:
		return "parameter is invalid"
	case C.RKNN_ERR_MODEL_INVALID:
		return "model file is invalid"
	case C.RKNN_ERR_CTX_INVALID:
		return "context is invalid"
	case C.RKNN_ERR_INPUT_INVALID:
		return "input is invalid"
	case C.RKNN_ERR_OUTPUT_INVALID:
		return "output is invalid"
	case C.RKNN_ERR_DEVICE_UNMATCH:
		return "device mismatch, please update rknn sdk and npu driver/firmware"
	case C.RKNN_ERR_TARGET_PLATFORM_UNMATCH:
		return "the RKNN model target platform is not compatible with the current platform"
	default:
		return fmt.Sprintf("unknown error code %d", int(e))
	}
}

// tensorAttr holds the subset of the C rknn_tensor_attr fields the backend
// needs to shape and convert output buffers.
type tensorAttr struct {
	name  string
	nDims uint32
	dims  [C.RKNN_MAX_DIMS]uint32
	typ   C.rknn_tensor_type
	fmt   C.rknn_tensor_format
	zp    int32
	scale float32
}

// goDims returns the attribute dimensions as an int slice.
func (a tensorAttr) goDims() []int {

	dims := make([]int, a.nDims)

	for i := range dims {
		dims[i] = int(a.dims[i])
	}

	return dims
}

// runtime wraps an initialized RKNN context and its cached model tensor
// attributes.
type runtime struct {
	ctx         C.rknn_context
	numInputs   uint32
	numOutputs  uint32
	inputAttrs  []tensorAttr
	outputAttrs []tensorAttr
}

// newRuntime initializes an RKNN context from the compiled model file and
// queries the model's input and output tensor attributes.
func newRuntime(modelFile string, core CoreMask) (*runtime, error) {

	// check file exists in Go, before passing to C
	info, err := os.Stat(modelFile)

	if err != nil {
		return nil, fmt.Errorf("model file does not exist at %s, error: %w",
			modelFile, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("model file is a directory")
	}

	r := &runtime{}

	cModelFile := C.CString(modelFile)
	defer C.free(unsafe.Pointer(cModelFile))

	ret := C.rknn_init(&r.ctx, unsafe.Pointer(cModelFile), 0, 0, nil)

	if ret != C.RKNN_SUCC {
		return nil, fmt.Errorf("C.rknn_init failed with code %d, error: %s",
			int(ret), errorCode(ret))
	}

	// core mask setting is only supported on multi core NPUs
	if core != CoreSkip {
		ret = C.rknn_set_core_mask(r.ctx, C.rknn_core_mask(core))

		if ret != C.RKNN_SUCC {
			r.close()
			return nil, fmt.Errorf("C.rknn_set_core_mask failed with code %d, error: %s",
				int(ret), errorCode(ret))
		}
	}

	if err := r.queryIONumber(); err != nil {
		r.close()
		return nil, err
	}

	r.inputAttrs, err = r.queryAttrs(C.RKNN_QUERY_INPUT_ATTR, r.numInputs)

	if err != nil {
		r.close()
		return nil, err
	}

	r.outputAttrs, err = r.queryAttrs(C.RKNN_QUERY_OUTPUT_ATTR, r.numOutputs)

	if err != nil {
		r.close()
		return nil, err
	}

	return r, nil
}

// queryIONumber queries the number of model input and output tensors.
func (r *runtime) queryIONumber() error {

	var ioNum C.rknn_input_output_num

	ret := C.rknn_query(r.ctx, C.RKNN_QUERY_IN_OUT_NUM,
		unsafe.Pointer(&ioNum), C.uint(C.sizeof_rknn_input_output_num))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_query io number failed with code %d, error: %s",
			int(ret), errorCode(ret))
	}

	r.numInputs = uint32(ioNum.n_input)
	r.numOutputs = uint32(ioNum.n_output)

	return nil
}

// queryAttrs queries the tensor attributes for the given query target.
func (r *runtime) queryAttrs(query C.rknn_query_cmd, count uint32) ([]tensorAttr, error) {

	attrs := make([]tensorAttr, count)

	for i := uint32(0); i < count; i++ {

		var cAttr C.rknn_tensor_attr
		cAttr.index = C.uint32_t(i)

		ret := C.rknn_query(r.ctx, query, unsafe.Pointer(&cAttr),
			C.uint(C.sizeof_rknn_tensor_attr))

		if ret != C.RKNN_SUCC {
			return nil, fmt.Errorf("C.rknn_query tensor attr %d failed with code %d, error: %s",
				i, int(ret), errorCode(ret))
		}

		attrs[i] = convertTensorAttr(&cAttr)
	}

	return attrs, nil
}

// convertTensorAttr converts a C rknn_tensor_attr into the Go subset.
func convertTensorAttr(cAttr *C.rknn_tensor_attr) tensorAttr {

	nameBytes := C.GoBytes(unsafe.Pointer(&cAttr.name[0]), C.RKNN_MAX_NAME_LEN)
	name := string(nameBytes)

	// end the string at the first null byte
	if nullIndex := strings.IndexByte(name, 0); nullIndex != -1 {
		name = name[:nullIndex]
	}

	attr := tensorAttr{
		name:  name,
		nDims: uint32(cAttr.n_dims),
		typ:   cAttr._type,
		fmt:   cAttr.fmt,
		zp:    int32(cAttr.zp),
		scale: float32(cAttr.scale),
	}

	for i := range attr.dims {
		attr.dims[i] = uint32(cAttr.dims[i])
	}

	return attr
}

// inputSize returns the model input canvas dimensions.
func (r *runtime) inputSize() (width, height, channels int) {

	// NCHW default layout
	channels = int(r.inputAttrs[0].dims[1])
	height = int(r.inputAttrs[0].dims[2])
	width = int(r.inputAttrs[0].dims[3])

	if r.inputAttrs[0].fmt == C.RKNN_TENSOR_NHWC {
		height = int(r.inputAttrs[0].dims[1])
		width = int(r.inputAttrs[0].dims[2])
		channels = int(r.inputAttrs[0].dims[3])
	}

	return width, height, channels
}

// close destroys the RKNN context releasing all C resources.
func (r *runtime) close() error {

	ret := C.rknn_destroy(r.ctx)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_destroy failed with code %d, error: %s",
			int(ret), errorCode(ret))
	}

	return nil
}
