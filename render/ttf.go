package render

import (
	"fmt"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"image"
	"image/color"
	"os"
)

// TextDrawer renders TrueType text onto Mats, for overlay text that the
// Hershey fonts render poorly at large sizes
type TextDrawer struct {
	face font.Face
}

// NewTextDrawer loads the TTF font file at the given point size.  An empty
// fontPath uses the embedded Go Regular font.
func NewTextDrawer(fontPath string, size float64) (*TextDrawer, error) {

	fontBytes := goregular.TTF

	if fontPath != "" {
		var err error
		fontBytes, err = os.ReadFile(fontPath)

		if err != nil {
			return nil, fmt.Errorf("failed to load font: %w", err)
		}
	}

	// parse the font
	f, err := opentype.Parse(fontBytes)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	// create a type face
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create type face: %w", err)
	}

	return &TextDrawer{face: face}, nil
}

// Measure returns the pixel size of the rendered text
func (t *TextDrawer) Measure(text string) image.Point {

	bounds, _ := font.BoundString(t.face, text)

	return image.Pt((bounds.Max.X - bounds.Min.X).Ceil(),
		(bounds.Max.Y - bounds.Min.Y).Ceil())
}

// Draw writes text onto img with its baseline starting at pt
func (t *TextDrawer) Draw(img *gocv.Mat, text string, pt image.Point, clr color.RGBA) {

	bounds, _ := font.BoundString(t.face, text)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()

	if w <= 0 || h <= 0 {
		return
	}

	// render the glyph coverage into a mask the size of the text
	mask := image.NewGray(image.Rect(0, 0, w, h))

	dr := &font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Gray{Y: 255}),
		Face: t.face,
		Dot:  fixed.Point26_6{X: -bounds.Min.X, Y: -bounds.Min.Y},
	}
	dr.DrawString(text)

	origin := image.Pt(pt.X+bounds.Min.X.Floor(), pt.Y+bounds.Min.Y.Floor())
	dst := image.Rect(origin.X, origin.Y, origin.X+w, origin.Y+h).
		Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if dst.Empty() {
		return
	}

	maskMat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, mask.Pix)

	if err != nil {
		return
	}

	defer maskMat.Close()

	maskRoi := maskMat.Region(dst.Sub(origin))
	defer maskRoi.Close()

	roi := img.Region(dst)
	defer roi.Close()

	fill := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(clr.B), float64(clr.G), float64(clr.R), 0),
		dst.Dy(), dst.Dx(), gocv.MatTypeCV8UC3)
	defer fill.Close()

	fill.CopyToWithMask(&roi, maskRoi)
}

// Close releases the font face
func (t *TextDrawer) Close() error {
	return t.face.Close()
}
