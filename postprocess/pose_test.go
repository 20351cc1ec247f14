package postprocess

import (
	"math"
	"testing"

	falldetect "github.com/edgevision/go-falldetect"
)

// makePoseBranch builds one scale level's combined output for a single cell
// grid: the box distribution peaked at the given side offsets followed by
// the raw person class logit.
func makePoseBranch(bins int, sides [4]float32, classLogit float32) falldetect.Tensor {

	data := append(boxLogits(bins, sides), classLogit)

	return falldetect.Tensor{
		Data: data,
		Dims: []int{1, 4*bins + 1, 1, 1},
	}
}

// makePoseKeyPoints builds the keypoints tensor for totalCells cells where
// keypoint j of every cell sits at (10j, 20j) with score 0.9.
func makePoseKeyPoints(keyPointsNum, totalCells int) falldetect.Tensor {

	data := make([]float32, keyPointsNum*3*totalCells)

	for j := 0; j < keyPointsNum; j++ {
		for cell := 0; cell < totalCells; cell++ {
			data[(j*3+0)*totalCells+cell] = float32(10 * j)
			data[(j*3+1)*totalCells+cell] = float32(20 * j)
			data[(j*3+2)*totalCells+cell] = 0.9
		}
	}

	return falldetect.Tensor{
		Data: data,
		Dims: []int{1, keyPointsNum * 3, totalCells},
	}
}

func TestDetectPose(t *testing.T) {

	cfg := PoseConfig()
	proc := NewYOLOv8Pose(cfg, 17)

	// one confident person on the first scale level, sigmoid(2) = 0.88
	outputs := []falldetect.Tensor{
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 1, 1}, 2),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseKeyPoints(17, 3),
	}

	dets, keyPoints, err := proc.DetectPose(outputs)

	if err != nil {
		t.Fatalf("DetectPose failed: %v", err)
	}

	if dets == nil || len(dets.Items) != 1 {
		t.Fatalf("Got %+v, expected a single detection", dets)
	}

	d := dets.Items[0]

	if d.Class != 0 {
		t.Errorf("Detection class is %d, expected 0", d.Class)
	}

	if math.Abs(float64(d.Score-0.8808)) > 1e-3 {
		t.Errorf("Detection score is %f, expected 0.8808", d.Score)
	}

	expected := [4]float32{320, 320, 960, 960}
	got := [4]float32{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2}

	for i := range expected {
		if math.Abs(float64(got[i]-expected[i])) > 1 {
			t.Errorf("Box coordinate %d is %f, expected %f", i, got[i], expected[i])
		}
	}

	if len(keyPoints) != 1 || len(keyPoints[0]) != 17 {
		t.Fatalf("Got %d keypoint sets, expected 1 set of 17", len(keyPoints))
	}

	kp := keyPoints[0][2]

	if kp.X != 20 || kp.Y != 40 || kp.Score != 0.9 {
		t.Errorf("Keypoint 2 is (%f, %f, %f), expected (20, 40, 0.9)",
			kp.X, kp.Y, kp.Score)
	}
}

// TestDetectPoseNone checks an empty frame returns the nil sentinel.
func TestDetectPoseNone(t *testing.T) {

	cfg := PoseConfig()
	proc := NewYOLOv8Pose(cfg, 17)

	outputs := []falldetect.Tensor{
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseKeyPoints(17, 3),
	}

	dets, keyPoints, err := proc.DetectPose(outputs)

	if err != nil {
		t.Fatalf("DetectPose failed: %v", err)
	}

	if dets != nil || keyPoints != nil {
		t.Errorf("Got %+v and %+v, expected nil sentinels", dets, keyPoints)
	}
}

func TestDetectPoseBadOutputs(t *testing.T) {

	cfg := PoseConfig()
	proc := NewYOLOv8Pose(cfg, 17)

	if _, _, err := proc.DetectPose(make([]falldetect.Tensor, 3)); err == nil {
		t.Error("Expected error for 3 output tensors")
	}

	// keypoints tensor covering the wrong number of cells
	outputs := []falldetect.Tensor{
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 1, 1}, 2),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseKeyPoints(17, 5),
	}

	if _, _, err := proc.DetectPose(outputs); err == nil {
		t.Error("Expected error for keypoints cell count mismatch")
	}
}

// TestDetectPoseBatchRejected checks multi batch tensors are rejected
// rather than silently decoding only the first batch element.
func TestDetectPoseBatchRejected(t *testing.T) {

	cfg := PoseConfig()
	proc := NewYOLOv8Pose(cfg, 17)

	single := makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 1, 1}, 2)

	batched := falldetect.Tensor{
		Data: append(append([]float32{}, single.Data...), single.Data...),
		Dims: []int{2, 4*cfg.DFLBins + 1, 1, 1},
	}

	outputs := []falldetect.Tensor{
		batched,
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseKeyPoints(17, 3),
	}

	if _, _, err := proc.DetectPose(outputs); err == nil {
		t.Error("Expected error for batch size 2 scale tensor")
	}

	// batched keypoints tensor is rejected the same way
	kp := makePoseKeyPoints(17, 3)
	kp.Data = append(kp.Data, kp.Data...)
	kp.Dims = []int{2, 17 * 3, 3}

	outputs = []falldetect.Tensor{
		single,
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		makePoseBranch(cfg.DFLBins, [4]float32{0, 0, 0, 0}, -50),
		kp,
	}

	if _, _, err := proc.DetectPose(outputs); err == nil {
		t.Error("Expected error for batch size 2 keypoints tensor")
	}
}
