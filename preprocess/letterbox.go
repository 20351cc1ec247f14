// Package preprocess implements the image transforms that prepare a camera
// frame for model inference and map detection coordinates back to the
// original frame.
package preprocess

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Black is the default letterbox padding fill.
var Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// Letterbox scales an arbitrary size frame into a fixed size input canvas
// whilst preserving the aspect ratio, padding the remainder with a fill
// color.  The scale factor and padding offsets are recorded so detection
// coordinates can later be restored into source frame space.
type Letterbox struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// Params are the letterbox transform parameters needed to invert the
// transform.  They are produced once per detect call and consumed by
// RestoreBoxes for that same call.
type Params struct {
	// Scale is the resize factor applied to the source frame
	Scale float32
	// XPad is the horizontal padding on the left edge of the canvas
	XPad int
	// YPad is the vertical padding on the top edge of the canvas
	YPad int
}

// NewLetterbox returns a letterbox transform for scaling an image to the
// dimensions needed for the model input tensor.
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) *Letterbox {

	l := &Letterbox{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	// precalculate scaling dimensions
	l.preCalc()

	return l
}

// Close frees memory allocated during the resize process.
func (l *Letterbox) Close() error {
	return l.tempMat.Close()
}

// preCalc the scale factor, resize dimensions and padding offsets.
func (l *Letterbox) preCalc() {

	scaleW := float32(l.destWidth) / float32(l.srcWidth)
	scaleH := float32(l.destHeight) / float32(l.srcHeight)

	l.scale = scaleH

	if scaleW < scaleH {
		l.scale = scaleW
	}

	l.resizeW = int(math.Round(float64(float32(l.srcWidth) * l.scale)))
	l.resizeH = int(math.Round(float64(float32(l.srcHeight) * l.scale)))

	// integer floor division centers the resized image on the canvas
	l.xPad = (l.destWidth - l.resizeW) / 2
	l.yPad = (l.destHeight - l.resizeH) / 2
}

// Apply resizes the BGR source image into the canvas dimensions, pads with
// the fill color and converts the result to the RGB channel order the model
// input expects.  Pixel values stay in native uint8 range, normalization if
// any is the inference backend's responsibility.
func (l *Letterbox) Apply(src gocv.Mat, dest *gocv.Mat, fill color.RGBA) {

	// equal dimensions need no resize or padding, only color conversion
	if l.srcWidth == l.destWidth && l.srcHeight == l.destHeight {
		gocv.CvtColor(src, dest, gocv.ColorBGRToRGB)
		return
	}

	gocv.Resize(src, &l.tempMat, image.Pt(l.resizeW, l.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(l.tempMat, dest, l.yPad, l.destHeight-l.resizeH-l.yPad,
		l.xPad, l.destWidth-l.resizeW-l.xPad, gocv.BorderConstant, fill)

	gocv.CvtColor(*dest, dest, gocv.ColorBGRToRGB)
}

// Params returns the transform parameters of this letterbox.
func (l *Letterbox) Params() Params {
	return Params{
		Scale: l.scale,
		XPad:  l.xPad,
		YPad:  l.yPad,
	}
}

// ScaleFactor returns the scale factor used in the letterbox resize.
func (l *Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the x padding used in the letterbox resize.
func (l *Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the y padding used in the letterbox resize.
func (l *Letterbox) YPad() int {
	return l.yPad
}

// SrcWidth returns the width of the source image.
func (l *Letterbox) SrcWidth() int {
	return l.srcWidth
}

// SrcHeight returns the height of the source image.
func (l *Letterbox) SrcHeight() int {
	return l.srcHeight
}
