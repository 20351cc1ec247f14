package postprocess

import (
	"fmt"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/postprocess/result"
)

// defaultBranches is the number of detection scale levels a YOLOv8 model
// outputs.
const defaultBranches = 3

// YOLOv8 decodes raw YOLOv8 model outputs into object detections.
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params falldetect.Config
	// idGen provides the next number for each detection result ID
	idGen *result.IDGenerator
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor.
func NewYOLOv8(params falldetect.Config) *YOLOv8 {
	return &YOLOv8{
		Params: params,
		idGen:  result.NewIDGenerator(),
	}
}

// DetectObjects takes the backend output tensors and runs the full object
// detection decode: per scale box decoding, confidence filtering and per
// class non-maximum suppression.  The returned boxes are in input canvas
// space.
//
// A frame in which no candidate survives returns (nil, nil), the absent
// detections sentinel, distinguishable from an allocated empty result.
func (y *YOLOv8) DetectObjects(outputs []falldetect.Tensor) (*result.Detections, error) {

	if len(outputs) == 0 || len(outputs)%defaultBranches != 0 {
		return nil, fmt.Errorf("expected a multiple of %d output tensors, got %d",
			defaultBranches, len(outputs))
	}

	// outputs are grouped per scale level as box distribution tensor, class
	// probability tensor and an optional quantized score sum tensor which is
	// only meaningful on the NPU and ignored here
	perBranch := len(outputs) / defaultBranches

	if perBranch < 2 {
		return nil, fmt.Errorf("expected at least 2 output tensors per scale, got %d", perBranch)
	}

	var boxes, classProbs [][]float32
	var confidences []float32

	for i := 0; i < defaultBranches; i++ {

		boxTensor := outputs[i*perBranch]
		classTensor := outputs[i*perBranch+1]

		decoded, err := DecodeBoxes(boxTensor, y.Params.InputWidth,
			y.Params.InputHeight, y.Params.DFLBins)

		if err != nil {
			return nil, fmt.Errorf("scale %d: %w", i, err)
		}

		boxRows, err := FlattenChannelLast(decoded)

		if err != nil {
			return nil, fmt.Errorf("scale %d: %w", i, err)
		}

		classRows, err := FlattenChannelLast(classTensor)

		if err != nil {
			return nil, fmt.Errorf("scale %d: %w", i, err)
		}

		if len(classRows) != len(boxRows) {
			return nil, fmt.Errorf("scale %d: box rows %d do not match class rows %d",
				i, len(boxRows), len(classRows))
		}

		boxes = append(boxes, boxRows...)
		classProbs = append(classProbs, classRows...)

		// the models in use emit class probabilities already multiplied by
		// objectness, so the confidence factor is unity
		for range boxRows {
			confidences = append(confidences, 1.0)
		}
	}

	cands := FilterCandidates(boxes, classProbs, confidences, y.Params.BoxThreshold)

	if len(cands) == 0 {
		// no object detected
		return nil, nil
	}

	kept := Suppress(cands, y.Params.NMSThreshold, y.Params.MaxObjects)

	group := make([]result.Detection, 0, len(kept))

	for _, idx := range kept {
		group = append(group, result.Detection{
			Box:   cands[idx].Box,
			Class: cands[idx].Class,
			Score: cands[idx].Score,
			ID:    y.idGen.GetNext(),
		})
	}

	return &result.Detections{Items: group}, nil
}
