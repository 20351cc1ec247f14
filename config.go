package falldetect

import (
	"log/slog"
)

// Config defines the detection pipeline parameters.  The preprocess and
// postprocess stages depend on the same input size values, they must not be
// changed independently of each other.
type Config struct {
	// InputWidth is the width of the model input tensor
	InputWidth int
	// InputHeight is the height of the model input tensor
	InputHeight int
	// BoxThreshold is the minimum confidence score required for a bounding
	// box candidate to be kept
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// ClassNum is the number of different object classes the Model has
	// been trained with
	ClassNum int
	// MaxObjects is the maximum number of detected objects that can be
	// returned
	MaxObjects int
	// DFLBins is the number of discretized offset buckets per box side in
	// the distribution focal loss encoding
	DFLBins int
}

// COCOConfig returns a Config with default values for a YOLOv8 model
// trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Maximum Objects: 64
// - DFL Bins: 16
func COCOConfig() Config {
	return Config{
		InputWidth:   640,
		InputHeight:  640,
		BoxThreshold: 0.25,
		NMSThreshold: 0.45,
		ClassNum:     80,
		MaxObjects:   64,
		DFLBins:      16,
	}
}

// Validate warns about out of range threshold values.  Configuration errors
// are not fatal, processing continues with the values given.
func (c Config) Validate(log *slog.Logger) {

	if log == nil {
		log = slog.Default()
	}

	if c.BoxThreshold < 0 || c.BoxThreshold > 1 {
		log.Warn("box threshold outside [0,1], using value as given",
			"threshold", c.BoxThreshold)
	}

	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		log.Warn("nms threshold outside [0,1], using value as given",
			"threshold", c.NMSThreshold)
	}
}
