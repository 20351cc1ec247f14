package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Banner renders alarm text with a TTF font, used for the fall alarm
// overlay where the Hershey fonts are too light to read at a glance.
type Banner struct {
	face font.Face
	// pad is the pixel padding around the banner text
	pad int
}

// NewBanner loads the TTF font at fontPath and prepares a banner renderer
// with the given point size.
func NewBanner(fontPath string, size float64) (*Banner, error) {

	fontBytes, err := os.ReadFile(fontPath)

	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	f, err := opentype.Parse(fontBytes)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	return &Banner{
		face: face,
		pad:  8,
	}, nil
}

// Close releases the font face.
func (b *Banner) Close() error {
	return b.face.Close()
}

// Draw paints a filled banner with the given text at the top left corner of
// the image.
func (b *Banner) Draw(img *gocv.Mat, text string, bg, fg color.RGBA) error {

	metrics := b.face.Metrics()

	textWidth := font.MeasureString(b.face, text).Ceil()
	textHeight := metrics.Height.Ceil()

	w := textWidth + 2*b.pad
	h := textHeight + 2*b.pad

	if w > img.Cols() || h > img.Rows() {
		return fmt.Errorf("banner %dx%d does not fit image %dx%d",
			w, h, img.Cols(), img.Rows())
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	dr := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(fg),
		Face: b.face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(b.pad * 64),
			Y: fixed.Int26_6((b.pad + metrics.Ascent.Ceil()) * 64),
		},
	}
	dr.DrawString(text)

	banner, err := gocv.ImageToMatRGB(rgba)

	if err != nil {
		return fmt.Errorf("failed to convert banner image: %w", err)
	}

	defer banner.Close()

	gocv.CvtColor(banner, &banner, gocv.ColorRGBToBGR)

	region := img.Region(image.Rect(0, 0, w, h))
	defer region.Close()

	banner.CopyTo(&region)

	return nil
}
