// Package backend selects an inference backend implementation from the
// model file extension: .onnx models run on the ONNX Runtime graph executor
// and .rknn models run on the Rockchip NPU.
package backend

import (
	"fmt"
	"path/filepath"
	"strings"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/backend/onnx"
	"github.com/edgevision/go-falldetect/backend/rknn"
	"github.com/edgevision/go-falldetect/detector"
)

// Open loads the model at modelPath with the backend matching its file
// extension.  The core mask is only used by the RKNN backend, pass
// rknn.CoreAuto unless pinning to specific NPU cores.
func Open(modelPath string, cfg falldetect.Config, core rknn.CoreMask) (detector.Backend, error) {

	switch strings.ToLower(filepath.Ext(modelPath)) {

	case ".onnx":
		return onnx.NewBackend(modelPath, cfg.InputWidth, cfg.InputHeight)

	case ".rknn":
		return rknn.NewBackend(modelPath, core)

	default:
		return nil, fmt.Errorf("unsupported model format %q, supported formats are .onnx and .rknn",
			filepath.Ext(modelPath))
	}
}
