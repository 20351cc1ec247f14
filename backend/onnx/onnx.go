// Package onnx implements the inference backend contract over ONNX Runtime,
// the portable graph executor used for development on a PC without the NPU.
package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	falldetect "github.com/edgevision/go-falldetect"
)

var (
	initOnce sync.Once
	initErr  error
)

// initRuntime initializes the ONNX Runtime environment once per process.
func initRuntime() error {

	initOnce.Do(func() {
		if !ort.IsInitialized() {
			initErr = ort.InitializeEnvironment()
		}
	})

	return initErr
}

// Backend runs model inference through ONNX Runtime.  It satisfies the
// detector.Backend interface.
type Backend struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
	width       int
	height      int
}

// NewBackend loads the ONNX model at modelPath and prepares an inference
// session.  Width and height are the model input canvas dimensions.
func NewBackend(modelPath string, width, height int) (*Backend, error) {

	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("error initializing onnxruntime environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)

	if err != nil {
		return nil, fmt.Errorf("error reading model input/output info: %w", err)
	}

	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected model with 1 input tensor, got %d", len(inputs))
	}

	outputNames := make([]string, len(outputs))

	for i, o := range outputs {
		outputNames[i] = o.Name
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, outputNames, nil)

	if err != nil {
		return nil, fmt.Errorf("error creating onnxruntime session: %w", err)
	}

	return &Backend{
		session:     session,
		inputName:   inputs[0].Name,
		outputNames: outputNames,
		width:       width,
		height:      height,
	}, nil
}

// Run executes a forward pass over the canvas image.  The uint8 HWC canvas
// is converted to the NCHW float32 input the graph executor expects,
// normalized to [0,1].
func (b *Backend) Run(canvas gocv.Mat) ([]falldetect.Tensor, error) {

	if !canvas.IsContinuous() {
		canvas = canvas.Clone()
		defer canvas.Close()
	}

	data, err := canvas.DataPtrUint8()

	if err != nil {
		return nil, fmt.Errorf("error getting data pointer to Mat: %w", err)
	}

	h := canvas.Rows()
	w := canvas.Cols()
	ch := canvas.Channels()

	if h != b.height || w != b.width || ch != 3 {
		return nil, fmt.Errorf("canvas is %dx%dx%d, model expects %dx%dx3",
			w, h, ch, b.width, b.height)
	}

	// HWC uint8 to NCHW float32 in [0,1]
	input := make([]float32, ch*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				input[c*h*w+y*w+x] = float32(data[(y*w+x)*ch+c]) / 255.0
			}
		}
	}

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, int64(ch), int64(h), int64(w)), input)

	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	defer inputTensor.Destroy()

	outputs := make([]ort.Value, len(b.outputNames))

	if err := b.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("error running inference: %w", err)
	}

	tensors := make([]falldetect.Tensor, len(outputs))

	for i, out := range outputs {

		t, ok := out.(*ort.Tensor[float32])

		if !ok {
			releaseValues(outputs[i:])
			return nil, fmt.Errorf("output %d is not a float32 tensor", i)
		}

		shape := t.GetShape()
		dims := make([]int, len(shape))

		for j, d := range shape {
			dims[j] = int(d)
		}

		// copy out of the onnxruntime owned buffer before destroying it
		buf := make([]float32, len(t.GetData()))
		copy(buf, t.GetData())

		tensors[i] = falldetect.Tensor{Data: buf, Dims: dims}

		out.Destroy()
	}

	return tensors, nil
}

// releaseValues destroys any remaining output values after a conversion
// failure.
func releaseValues(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

// Close releases the inference session.
func (b *Backend) Close() error {
	return b.session.Destroy()
}
