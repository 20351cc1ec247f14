package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/postprocess"
)

// makePoseOutputs builds a full set of single cell pose model outputs: one
// confident person on the first scale level with all 17 keypoints placed at
// canvas (320, 460).
func makePoseOutputs(cfg falldetect.Config) []falldetect.Tensor {

	branch := func(sides [4]int, classLogit float32) falldetect.Tensor {

		var data []float32

		for _, target := range sides {
			data = append(data, sideLogits(cfg.DFLBins, target)...)
		}

		data = append(data, classLogit)

		return falldetect.Tensor{
			Data: data,
			Dims: []int{1, 4*cfg.DFLBins + 1, 1, 1},
		}
	}

	const keyPointsNum = 17
	const totalCells = 3

	kpData := make([]float32, keyPointsNum*3*totalCells)

	for j := 0; j < keyPointsNum; j++ {
		for cell := 0; cell < totalCells; cell++ {
			kpData[(j*3+0)*totalCells+cell] = 320
			kpData[(j*3+1)*totalCells+cell] = 460
			kpData[(j*3+2)*totalCells+cell] = 0.9
		}
	}

	return []falldetect.Tensor{
		branch([4]int{0, 0, 1, 1}, 2),
		branch([4]int{0, 0, 0, 0}, -50),
		branch([4]int{0, 0, 0, 0}, -50),
		{Data: kpData, Dims: []int{1, keyPointsNum * 3, totalCells}},
	}
}

func TestPoseDetect(t *testing.T) {

	cfg := postprocess.PoseConfig()
	be := &fakeBackend{outputs: makePoseOutputs(cfg)}

	det := NewPose(be, cfg, 17)
	defer det.Close()

	// 1280x720 letterboxes with scale 0.5 and a 140 pixel top pad
	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets, keyPoints, err := det.Detect(frame)
	require.NoError(t, err)
	require.NotNil(t, dets)
	require.Len(t, dets.Items, 1)
	require.Len(t, keyPoints, 1)
	require.Len(t, keyPoints[0], 17)

	assert.Equal(t, "person", dets.Items[0].Label)

	// canvas keypoint (320, 460) restores to frame (640, 640)
	assert.InDelta(t, 640, keyPoints[0][0].X, 1)
	assert.InDelta(t, 640, keyPoints[0][0].Y, 1)
	assert.InDelta(t, 0.9, keyPoints[0][0].Score, 1e-3)
}

// TestPoseDetectNone checks a frame with no person returns the nil
// sentinels.
func TestPoseDetectNone(t *testing.T) {

	cfg := postprocess.PoseConfig()

	outputs := makePoseOutputs(cfg)
	// suppress the person logit on the first scale level
	outputs[0].Data[4*cfg.DFLBins] = -50

	be := &fakeBackend{outputs: outputs}

	det := NewPose(be, cfg, 17)
	defer det.Close()

	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets, keyPoints, err := det.Detect(frame)
	require.NoError(t, err)
	assert.Nil(t, dets)
	assert.Nil(t, keyPoints)
}
