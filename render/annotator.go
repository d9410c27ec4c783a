package render

import (
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
)

// Annotator draws detection boxes and labels onto a copy of a frame
type Annotator struct {
	Font          Font
	LineThickness int
}

// NewAnnotator returns an annotator using the default font
func NewAnnotator() *Annotator {
	return &Annotator{
		Font:          DefaultFont(),
		LineThickness: 2,
	}
}

// Render returns a new Mat holding img with the detections drawn on it, img
// itself is left untouched.  labels are matched to dets by index.
func (a *Annotator) Render(img gocv.Mat, dets []postprocess.Detection,
	labels []string) gocv.Mat {

	res := img.Clone()
	DetectionBoxes(&res, dets, labels, a.Font, a.LineThickness)

	return res
}
