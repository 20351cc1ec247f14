// Package result defines the detection result types shared between the
// postprocessing stages and their consumers.
package result

// Box are the corner coordinates of an object bounding box.  Values are in
// canvas space when produced by the postprocessor and in original frame
// space after coordinate restoration.
type Box struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// Detection defines the attributes of a single object detected.
type Detection struct {
	// Box are the bounding box dimensions of the object location
	Box Box
	// Class is the class number the Model was trained on defining the
	// detected object
	Class int
	// Score is the confidence score of the object detected
	Score float32
	// Label is the human readable class label, resolved by the detector
	Label string
	// ID is a unique ID assigned to the detection result
	ID int64
}

// Detections holds the surviving detections of one frame, grouped by class
// in ascending class order with input order preserved within each class.
//
// A frame with no detections is represented by a nil *Detections, never by
// an allocated value holding zero items.  Callers must branch on nil.
type Detections struct {
	Items []Detection
}

// KeyPoint is a single pose estimation skeleton point.
type KeyPoint struct {
	X     float32
	Y     float32
	Score float32
}
