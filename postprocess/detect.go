package postprocess

import "image"

// BoxRect are the dimensions of the bounding box of a detect object
type BoxRect struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Width of the box
func (b BoxRect) Width() int {
	return b.Right - b.Left
}

// Height of the box
func (b BoxRect) Height() int {
	return b.Bottom - b.Top
}

// Rect returns the box as an image.Rectangle
func (b BoxRect) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Center returns the center point of the box
func (b BoxRect) Center() image.Point {
	return image.Pt((b.Left+b.Right)/2, (b.Top+b.Bottom)/2)
}

// BottomCenter returns the middle point of the bottom edge, the anchor used
// when testing if an object stands inside a zone
func (b BoxRect) BottomCenter() image.Point {
	return image.Pt((b.Left+b.Right)/2, b.Bottom)
}

// KeyPoint is a single pose estimation keypoint in source image coordinates
type KeyPoint struct {
	X     int
	Y     int
	Score float32
}

// Point returns the keypoint location
func (k KeyPoint) Point() image.Point {
	return image.Pt(k.X, k.Y)
}

// Detection defines the attributes of a single object detected in a frame
type Detection struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// ClassName is the label of Class.  It is empty when the model carries
	// no label for the class.
	ClassName string
	// Box are the bounding box dimensions of the object location
	Box BoxRect
	// Probability is the confidence score of the object detected
	Probability float32
	// ID is a unique ID assigned to the detection result
	ID int64
	// TrackID is the stable tracker identity, zero until the detection has
	// been matched to a confirmed track
	TrackID int
	// KeyPoints are the pose keypoints for pose models, nil otherwise
	KeyPoints []KeyPoint
}

// HasClassName reports whether a class label is known for the detection
func (d Detection) HasClassName() bool {
	return d.ClassName != ""
}

// Tracked reports whether the detection carries a tracker identity
func (d Detection) Tracked() bool {
	return d.TrackID > 0
}

// WithClassNames sets ClassName on each detection whose class is a valid
// index into names.  Detections with an unknown class keep an empty name.
func WithClassNames(dets []Detection, names []string) []Detection {

	for i := range dets {
		c := dets[i].Class

		if c >= 0 && c < len(names) {
			dets[i].ClassName = names[c]
		}
	}

	return dets
}

// TrackIDs returns the tracker identities of the tracked detections
func TrackIDs(dets []Detection) []int {

	ids := make([]int, 0, len(dets))

	for _, d := range dets {
		if d.Tracked() {
			ids = append(ids, d.TrackID)
		}
	}

	return ids
}
