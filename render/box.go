// Package render draws detection results onto frames for the demo and
// debugging programs.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/edgevision/go-falldetect/postprocess/result"
)

// boxLabel records a label to draw after all boxes, so labels stay on the
// top most layer.
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders the bounding boxes and score labels of the
// detected objects.
func DetectionBoxes(img *gocv.Mat, dets []result.Detection, font Font,
	lineThickness int) {

	boxLabels := make([]boxLabel, 0, len(dets))

	for i, det := range dets {

		useClr := classColors[i%len(classColors)]

		rect := image.Rect(int(det.Box.X1), int(det.Box.Y1),
			int(det.Box.X2), int(det.Box.Y2))
		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("%s %.2f", det.Label, det.Score)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// alignment of the text label against the box
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = rect.Min.X + rect.Dx()/2

		case Right:
			centerX = rect.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		labelPosition := image.Pt(centerX-textSize.X/2, rect.Min.Y-font.BottomPad)

		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
			rect.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, rect.Min.Y)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		})
	}

	// draw the labels last so they sit on top of box lines
	for _, box := range boxLabels {
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
