/*
Package detector runs object detection and pose estimation models on frames.
*/
package detector

import (
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
)

// Detector is the inference black box, an image in and structured
// detections out.  conf is the minimum confidence and iou the NMS overlap
// threshold.
type Detector interface {
	Detect(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error)
	Close() error
}

// Func adapts a plain function to the Detector interface
type Func func(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error)

// Detect calls f
func (f Func) Detect(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {
	return f(img, conf, iou)
}

// Close does nothing
func (f Func) Close() error {
	return nil
}
