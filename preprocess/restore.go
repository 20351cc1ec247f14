package preprocess

import (
	"github.com/edgevision/go-falldetect/postprocess/result"
)

// RestoreBoxes maps canvas space detection boxes back into source frame
// coordinates by inverting the letterbox transform.  Boxes are not clamped
// to the frame bounds, rounding may leave coordinates slightly outside the
// original dimensions.
func RestoreBoxes(p Params, dets []result.Detection) {

	for i := range dets {
		dets[i].Box.X1 = (dets[i].Box.X1 - float32(p.XPad)) / p.Scale
		dets[i].Box.Y1 = (dets[i].Box.Y1 - float32(p.YPad)) / p.Scale
		dets[i].Box.X2 = (dets[i].Box.X2 - float32(p.XPad)) / p.Scale
		dets[i].Box.Y2 = (dets[i].Box.Y2 - float32(p.YPad)) / p.Scale
	}
}

// RestoreKeyPoints maps canvas space pose keypoints back into source frame
// coordinates.
func RestoreKeyPoints(p Params, keyPoints [][]result.KeyPoint) {

	for i := range keyPoints {
		for j := range keyPoints[i] {
			keyPoints[i][j].X = (keyPoints[i][j].X - float32(p.XPad)) / p.Scale
			keyPoints[i][j].Y = (keyPoints[i][j].Y - float32(p.YPad)) / p.Scale
		}
	}
}

// CanvasPoint maps a source frame coordinate into canvas space, the forward
// direction of the letterbox transform.
func CanvasPoint(p Params, x, y float32) (float32, float32) {
	return x*p.Scale + float32(p.XPad), y*p.Scale + float32(p.YPad)
}
