package framewatch

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"time"
)

// Frame is a decoded image moving through the pipeline.  A Frame has a single
// owner at any time, whoever holds it is responsible for calling Close.
type Frame struct {
	// Mat is the BGR pixel buffer
	Mat gocv.Mat
	// Seq is the per session arrival sequence number, starting at 1
	Seq uint64
	// Time is when the frame arrived from the source
	Time time.Time
}

// NewFrame wraps a Mat received at the current time
func NewFrame(mat gocv.Mat, seq uint64) *Frame {
	return &Frame{
		Mat:  mat,
		Seq:  seq,
		Time: time.Now(),
	}
}

// NewPlaceholder returns a solid color frame of the given size
func NewPlaceholder(width, height int, clr color.RGBA) *Frame {

	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(clr.B), float64(clr.G), float64(clr.R), 0),
		height, width, gocv.MatTypeCV8UC3)

	return &Frame{
		Mat:  mat,
		Time: time.Now(),
	}
}

// Width returns the image width in pixels
func (f *Frame) Width() int {
	return f.Mat.Cols()
}

// Height returns the image height in pixels
func (f *Frame) Height() int {
	return f.Mat.Rows()
}

// Size returns the image geometry
func (f *Frame) Size() image.Point {
	return image.Pt(f.Mat.Cols(), f.Mat.Rows())
}

// Close frees the pixel buffer, it is safe to call on a nil Frame
func (f *Frame) Close() error {

	if f == nil {
		return nil
	}

	return f.Mat.Close()
}
