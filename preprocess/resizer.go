package preprocess

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Resizer scales frames of one source resolution into the fixed input size
// of a model, keeping aspect ratio and padding the remainder (letterbox)
type Resizer struct {
	src  image.Point
	dest image.Point
	// resized is the scaled image size before padding
	resized image.Point
	pad     image.Point
	scale   float32
	tempMat gocv.Mat
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {

	r := &Resizer{
		src:     image.Pt(srcWidth, srcHeight),
		dest:    image.Pt(destWidth, destHeight),
		tempMat: gocv.NewMat(),
	}

	scaleW := float32(destWidth) / float32(srcWidth)
	scaleH := float32(destHeight) / float32(srcHeight)

	// the smaller scale fits the whole frame, the other axis gets padded
	r.scale = scaleH
	r.resized = image.Pt(int(float32(srcWidth)*scaleH), destHeight)

	if scaleW < scaleH {
		r.scale = scaleW
		r.resized = image.Pt(destWidth, int(float32(srcHeight)*scaleW))
	}

	r.pad = image.Pt((destWidth-r.resized.X)/2, (destHeight-r.resized.Y)/2)

	return r
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// Matches reports whether the resizer was built for the given source size
func (r *Resizer) Matches(width, height int) bool {
	return r.src.X == width && r.src.Y == height
}

// LetterBoxResize resizes src into dest at the model input size, padding
// with the given color
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, r.resized, 0, 0, gocv.InterpolationArea)

	top, left := r.pad.Y, r.pad.X
	bottom := r.dest.Y - r.resized.Y - top
	right := r.dest.X - r.resized.X - left

	gocv.CopyMakeBorder(r.tempMat, dest, top, bottom, left, right,
		gocv.BorderConstant, color)
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.pad.X
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.pad.Y
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.src.X
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.src.Y
}

// InputSize returns the model input size
func (r *Resizer) InputSize() image.Point {
	return r.dest
}
