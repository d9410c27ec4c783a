package render

import (
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// boxLabel is a label placement calculated while drawing boxes
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders the bounding boxes around the detections with the
// given label text.  Tracked detections are colored by track identity, the
// others by class.
func DetectionBoxes(img *gocv.Mat, dets []postprocess.Detection,
	labels []string, font Font, lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	for i, det := range dets {

		useClr := ColorFor(det.Class)

		if det.Tracked() {
			useClr = ColorFor(det.TrackID)
		}

		// draw rectangle around detected object
		gocv.Rectangle(img, det.Box.Rect(), useClr, lineThickness)

		if i >= len(labels) || labels[i] == "" {
			continue
		}

		boxLabels = append(boxLabels,
			placeLabel(det.Box, labels[i], useClr, font, lineThickness))
	}

	// draw all precalculated box labels so they are the top most layer on the
	// image and don't get overlapped by neighbouring boxes
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// placeLabel calculates where the label of a box goes
func placeLabel(box postprocess.BoxRect, text string, clr color.RGBA,
	font Font, lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	// Calculate the alignment of text label
	var centerX int

	switch font.Alignment {
	case Center:
		centerX = (box.Left + box.Right) / 2

	case Right:
		centerX = box.Right - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = box.Left + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	}

	// keep the label inside the image when the box touches the top edge
	top := box.Top

	if top-textSize.Y-font.TopPad-font.BottomPad < 0 {
		top = textSize.Y + font.TopPad + font.BottomPad
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
			top-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, top),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, top-font.BottomPad),
	}
}
