package render

import (
	"fmt"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// ExerciseStyle defines the per person rep counter overlay
type ExerciseStyle struct {
	Background color.RGBA
	Text       color.RGBA
	Pad        int
}

// DefaultExerciseStyle returns white text on a dark blue panel
func DefaultExerciseStyle() ExerciseStyle {
	return ExerciseStyle{
		Background: color.RGBA{R: 52, G: 69, B: 147, A: 255},
		Text:       White,
		Pad:        6,
	}
}

// Exercise draws the joint angle next to the joint at and a panel with the
// rep count and stage above it
func Exercise(img *gocv.Mat, td *TextDrawer, at image.Point, angle float64,
	count int, stage string, style ExerciseStyle) {

	angleText := fmt.Sprintf("%.1f", angle)
	td.Draw(img, angleText, image.Pt(at.X+style.Pad, at.Y), style.Text)

	panel := fmt.Sprintf("Reps: %d  Stage: %s", count, stage)
	size := td.Measure(panel)

	org := image.Pt(at.X, at.Y-size.Y-4*style.Pad)
	rect := image.Rect(org.X-style.Pad, org.Y-size.Y-style.Pad,
		org.X+size.X+style.Pad, org.Y+style.Pad)

	gocv.Rectangle(img, rect, style.Background, -1)
	td.Draw(img, panel, org, style.Text)
}
