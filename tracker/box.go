package tracker

import (
	"github.com/swdee/go-framewatch/postprocess"
	"math"
)

// Box is an axis aligned bounding box in pixel coordinates
type Box struct {
	X1, Y1, X2, Y2 float64
}

// BoxFromRect converts a detection bounding box
func BoxFromRect(r postprocess.BoxRect) Box {
	return Box{
		X1: float64(r.Left),
		Y1: float64(r.Top),
		X2: float64(r.Right),
		Y2: float64(r.Bottom),
	}
}

// boxFromXyah converts a (center x, center y, aspect ratio, height)
// measurement back into a box
func boxFromXyah(cx, cy, a, h float64) Box {
	w := a * h
	return Box{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// Width of the box
func (b Box) Width() float64 {
	return b.X2 - b.X1
}

// Height of the box
func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// Center returns the box center
func (b Box) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Xyah returns the box as the Kalman filter measurement vector
func (b Box) Xyah() [4]float64 {

	cx, cy := b.Center()
	h := b.Height()
	a := 0.0

	if h > 0 {
		a = b.Width() / h
	}

	return [4]float64{cx, cy, a, h}
}

// IoU returns the Intersection over Union with another box
func (b Box) IoU(o Box) float64 {

	iw := math.Min(b.X2, o.X2) - math.Max(b.X1, o.X1)
	ih := math.Min(b.Y2, o.Y2) - math.Max(b.Y1, o.Y1)

	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := b.Width()*b.Height() + o.Width()*o.Height() - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}
