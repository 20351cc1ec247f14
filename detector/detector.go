// Package detector composes the preprocessing, inference and postprocessing
// stages into a single detect call over an interchangeable inference
// backend.
package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/postprocess"
	"github.com/edgevision/go-falldetect/postprocess/result"
	"github.com/edgevision/go-falldetect/preprocess"
)

// Backend is the inference capability the detection pipeline consumes.  The
// pipeline does not know whether a forward pass runs on a software graph
// executor or a hardware accelerator, it only requires the output tensor
// grouping contract of falldetect.Tensor.
type Backend interface {
	// Run executes a forward pass over the canvas image and returns the raw
	// output tensors
	Run(canvas gocv.Mat) ([]falldetect.Tensor, error)
	// Close releases the backend resources
	Close() error
}

// Detector is the object detection pipeline: letterbox, inference, box
// decode, filtering, suppression and coordinate restoration.  A Detector is
// driven by a single calling context, it performs no internal locking.
type Detector struct {
	cfg     falldetect.Config
	backend Backend
	labels  []string
	post    *postprocess.YOLOv8
	// letterbox is rebuilt when the source frame dimensions change
	letterbox *preprocess.Letterbox
	// canvas holds the letterboxed model input between calls to avoid
	// reallocating per frame
	canvas gocv.Mat
	// params caches the letterbox parameters of the most recent Detect call
	// for the coordinate restore step of that same call
	params preprocess.Params
}

// New returns a detection pipeline over the given inference backend.
// Labels resolve detection class numbers to human readable names, pass
// falldetect.COCOLabels for COCO trained models.
func New(backend Backend, cfg falldetect.Config, labels []string) *Detector {
	return &Detector{
		cfg:     cfg,
		backend: backend,
		labels:  labels,
		post:    postprocess.NewYOLOv8(cfg),
		canvas:  gocv.NewMat(),
	}
}

// prepare letterboxes the frame into the model input canvas, rebuilding the
// letterbox transform if the source dimensions changed.
func (d *Detector) prepare(frame gocv.Mat) error {

	w := frame.Cols()
	h := frame.Rows()

	if w <= 0 || h <= 0 {
		return fmt.Errorf("frame has invalid dimensions %dx%d", w, h)
	}

	if d.letterbox == nil || d.letterbox.SrcWidth() != w || d.letterbox.SrcHeight() != h {

		if d.letterbox != nil {
			d.letterbox.Close()
		}

		d.letterbox = preprocess.NewLetterbox(w, h, d.cfg.InputWidth, d.cfg.InputHeight)
	}

	d.letterbox.Apply(frame, &d.canvas, preprocess.Black)
	d.params = d.letterbox.Params()

	return nil
}

// Detect runs the full pipeline over one frame and returns the detections
// in original frame coordinates.
//
// A frame with no detections returns (nil, nil), the absent detections
// sentinel.  A backend error is propagated to the caller unchanged and
// aborts that call only, the Detector stays usable for the next frame.
func (d *Detector) Detect(frame gocv.Mat) (*result.Detections, error) {

	if err := d.prepare(frame); err != nil {
		return nil, err
	}

	outputs, err := d.backend.Run(d.canvas)

	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	dets, err := d.post.DetectObjects(outputs)

	if err != nil {
		return nil, fmt.Errorf("postprocess failed: %w", err)
	}

	if dets == nil {
		// no object detected
		return nil, nil
	}

	preprocess.RestoreBoxes(d.params, dets.Items)

	for i := range dets.Items {
		dets.Items[i].Label = falldetect.Label(d.labels, dets.Items[i].Class)
	}

	return dets, nil
}

// Close releases the pipeline resources including the backend.
func (d *Detector) Close() error {

	if d.letterbox != nil {
		d.letterbox.Close()
		d.letterbox = nil
	}

	d.canvas.Close()

	return d.backend.Close()
}
