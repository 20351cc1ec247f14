package postprocess

import (
	"fmt"

	"github.com/chewxy/math32"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/postprocess/result"
)

// YOLOv8Pose decodes raw YOLOv8 pose model outputs into person detections
// with COCO skeleton keypoints.
type YOLOv8Pose struct {
	// Params are the Model configuration parameters
	Params falldetect.Config
	// KeyPointsNum is the number of skeleton keypoints the pose model is
	// trained on
	KeyPointsNum int
	// idGen provides the next number for each detection result ID
	idGen *result.IDGenerator
}

// PoseConfig returns a Config with default values for a YOLOv8 pose model
// trained on the COCO keypoints dataset, a single person class with 17
// skeleton keypoints.
func PoseConfig() falldetect.Config {
	cfg := falldetect.COCOConfig()
	cfg.ClassNum = 1
	cfg.BoxThreshold = 0.5
	cfg.NMSThreshold = 0.4
	return cfg
}

// NewYOLOv8Pose returns an instance of the YOLOv8 pose post processor.
func NewYOLOv8Pose(params falldetect.Config, keyPointsNum int) *YOLOv8Pose {
	return &YOLOv8Pose{
		Params:       params,
		KeyPointsNum: keyPointsNum,
		idGen:        result.NewIDGenerator(),
	}
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + math32.Exp(-x))
}

// DetectPose takes the backend output tensors of a pose model and returns
// the person detections with one keypoint set per detection, both in input
// canvas space.  Pose models output one combined tensor per scale level
// holding the box distribution and raw class logits, plus a final keypoints
// tensor covering the cells of all scale levels.
//
// A frame with no detections returns (nil, nil, nil).
func (y *YOLOv8Pose) DetectPose(outputs []falldetect.Tensor) (*result.Detections, [][]result.KeyPoint, error) {

	if len(outputs) != defaultBranches+1 {
		return nil, nil, fmt.Errorf("expected %d output tensors, got %d",
			defaultBranches+1, len(outputs))
	}

	locLen := 4 * y.Params.DFLBins

	var cands []Candidate
	// cell index into the keypoints tensor for each candidate
	var kpCells []int

	cellBase := 0

	for i := 0; i < defaultBranches; i++ {

		t := outputs[i]

		if err := t.Check(); err != nil {
			return nil, nil, fmt.Errorf("scale %d: %w", i, err)
		}

		if len(t.Dims) != 4 {
			return nil, nil, fmt.Errorf("scale %d: tensor must have 4 dimensions, got %v", i, t.Dims)
		}

		// the combined decode indexes cells without a batch offset
		if t.Dims[0] != 1 {
			return nil, nil, fmt.Errorf("scale %d: pose decode supports batch size 1, got %d",
				i, t.Dims[0])
		}

		ch, gridH, gridW := t.Dims[1], t.Dims[2], t.Dims[3]

		if ch < locLen+y.Params.ClassNum {
			return nil, nil, fmt.Errorf("scale %d: tensor channels %d too small for %d dfl values and %d classes",
				i, ch, locLen, y.Params.ClassNum)
		}

		strideX := y.Params.InputWidth / gridW
		strideY := y.Params.InputHeight / gridH
		gridLen := gridH * gridW

		cellVals := make([]float32, locLen)

		for h := 0; h < gridH; h++ {
			for w := 0; w < gridW; w++ {

				cell := h*gridW + w

				// best class for this cell, raw logits through sigmoid
				maxClassID := 0
				maxScore := sigmoid(t.Data[(locLen+0)*gridLen+cell])

				for a := 1; a < y.Params.ClassNum; a++ {
					score := sigmoid(t.Data[(locLen+a)*gridLen+cell])
					if score > maxScore {
						maxScore = score
						maxClassID = a
					}
				}

				if maxScore < y.Params.BoxThreshold {
					continue
				}

				for c := 0; c < locLen; c++ {
					cellVals[c] = t.Data[c*gridLen+cell]
				}

				offset := dflExpectation(cellVals, y.Params.DFLBins)

				cands = append(cands, Candidate{
					Box: result.Box{
						X1: (float32(w) + 0.5 - offset[0]) * float32(strideX),
						Y1: (float32(h) + 0.5 - offset[1]) * float32(strideY),
						X2: (float32(w) + 0.5 + offset[2]) * float32(strideX),
						Y2: (float32(h) + 0.5 + offset[3]) * float32(strideY),
					},
					Class: maxClassID,
					Score: maxScore,
				})
				kpCells = append(kpCells, cellBase+cell)
			}
		}

		cellBase += gridLen
	}

	if len(cands) == 0 {
		// no object detected
		return nil, nil, nil
	}

	kept := Suppress(cands, y.Params.NMSThreshold, y.Params.MaxObjects)

	kpTensor := outputs[defaultBranches]

	if err := kpTensor.Check(); err != nil {
		return nil, nil, fmt.Errorf("keypoints tensor: %w", err)
	}

	if kpTensor.Dims[0] != 1 {
		return nil, nil, fmt.Errorf("keypoints tensor supports batch size 1, got %d",
			kpTensor.Dims[0])
	}

	// keypoints tensor is [batch, keypoints*3, total cells] with x, y and
	// visibility score channels per keypoint
	totalCells := kpTensor.Dims[len(kpTensor.Dims)-1]

	if totalCells != cellBase {
		return nil, nil, fmt.Errorf("keypoints tensor covers %d cells, expected %d",
			totalCells, cellBase)
	}

	group := make([]result.Detection, 0, len(kept))
	allKeyPoints := make([][]result.KeyPoint, 0, len(kept))

	for _, idx := range kept {

		group = append(group, result.Detection{
			Box:   cands[idx].Box,
			Class: cands[idx].Class,
			Score: cands[idx].Score,
			ID:    y.idGen.GetNext(),
		})

		cell := kpCells[idx]
		keyPoints := make([]result.KeyPoint, 0, y.KeyPointsNum)

		for j := 0; j < y.KeyPointsNum; j++ {
			keyPoints = append(keyPoints, result.KeyPoint{
				X:     kpTensor.Data[(j*3+0)*totalCells+cell],
				Y:     kpTensor.Data[(j*3+1)*totalCells+cell],
				Score: kpTensor.Data[(j*3+2)*totalCells+cell],
			})
		}

		allKeyPoints = append(allKeyPoints, keyPoints)
	}

	return &result.Detections{Items: group}, allKeyPoints, nil
}
