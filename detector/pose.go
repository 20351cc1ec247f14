package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/postprocess"
	"github.com/edgevision/go-falldetect/postprocess/result"
	"github.com/edgevision/go-falldetect/preprocess"
)

// PoseDetector is the pose estimation pipeline, the same stages as Detector
// but decoding person boxes with skeleton keypoints for downstream fall
// detection.
type PoseDetector struct {
	cfg       falldetect.Config
	backend   Backend
	post      *postprocess.YOLOv8Pose
	letterbox *preprocess.Letterbox
	canvas    gocv.Mat
	params    preprocess.Params
}

// NewPose returns a pose estimation pipeline over the given inference
// backend with the given number of skeleton keypoints, 17 for COCO trained
// pose models.
func NewPose(backend Backend, cfg falldetect.Config, keyPointsNum int) *PoseDetector {
	return &PoseDetector{
		cfg:     cfg,
		backend: backend,
		post:    postprocess.NewYOLOv8Pose(cfg, keyPointsNum),
		canvas:  gocv.NewMat(),
	}
}

// Detect runs the pose pipeline over one frame and returns the person
// detections and their keypoint sets in original frame coordinates.  A
// frame with no detections returns (nil, nil, nil).
func (d *PoseDetector) Detect(frame gocv.Mat) (*result.Detections, [][]result.KeyPoint, error) {

	w := frame.Cols()
	h := frame.Rows()

	if w <= 0 || h <= 0 {
		return nil, nil, fmt.Errorf("frame has invalid dimensions %dx%d", w, h)
	}

	if d.letterbox == nil || d.letterbox.SrcWidth() != w || d.letterbox.SrcHeight() != h {

		if d.letterbox != nil {
			d.letterbox.Close()
		}

		d.letterbox = preprocess.NewLetterbox(w, h, d.cfg.InputWidth, d.cfg.InputHeight)
	}

	d.letterbox.Apply(frame, &d.canvas, preprocess.Black)
	d.params = d.letterbox.Params()

	outputs, err := d.backend.Run(d.canvas)

	if err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}

	dets, keyPoints, err := d.post.DetectPose(outputs)

	if err != nil {
		return nil, nil, fmt.Errorf("postprocess failed: %w", err)
	}

	if dets == nil {
		return nil, nil, nil
	}

	preprocess.RestoreBoxes(d.params, dets.Items)
	preprocess.RestoreKeyPoints(d.params, keyPoints)

	for i := range dets.Items {
		dets.Items[i].Label = "person"
	}

	return dets, keyPoints, nil
}

// Close releases the pipeline resources including the backend.
func (d *PoseDetector) Close() error {

	if d.letterbox != nil {
		d.letterbox.Close()
		d.letterbox = nil
	}

	d.canvas.Close()

	return d.backend.Close()
}
