package postprocess

import (
	"fmt"
)

// Letterbox describes how a source image was scaled and padded into the
// model input tensor.  preprocess.Resizer satisfies it.
type Letterbox interface {
	ScaleFactor() float32
	XPad() int
	YPad() int
	SrcWidth() int
	SrcHeight() int
}

// YOLOv8 defines the struct for decoding the output tensor of YOLOv8 ONNX
// models as returned by the OpenCV DNN module.  Detect models output a
// [1, 4+classes, anchors] tensor and pose models [1, 5+keypoints*3, anchors].
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
	idGen  *IDGenerator
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
	// KeyPointsNumber is the number of keypoints a pose model outputs per
	// object, zero for detect models
	KeyPointsNumber int
}

// YOLOv8COCOParams returns parameters for a detect Model trained on the COCO
// dataset featuring 80 classes and up to 300 objects
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		ObjectClassNum:  80,
		MaxObjectNumber: 300,
	}
}

// YOLOv8PoseCOCOParams returns parameters for a pose Model trained on the
// COCO keypoints dataset featuring a single person class and 17 keypoints
func YOLOv8PoseCOCOParams() YOLOv8Params {
	return YOLOv8Params{
		ObjectClassNum:  1,
		MaxObjectNumber: 64,
		KeyPointsNumber: 17,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
		idGen:  NewIDGenerator(),
	}
}

// Rows returns the number of rows expected in the output tensor
func (y *YOLOv8) Rows() int {

	if y.Params.KeyPointsNumber > 0 {
		return 4 + y.Params.ObjectClassNum + y.Params.KeyPointsNumber*3
	}

	return 4 + y.Params.ObjectClassNum
}

// Decode takes the flattened output tensor holding anchors columns and
// returns the detections scoring at least boxThresh that survive NMS at
// nmsThresh, mapped back into source image coordinates
func (y *YOLOv8) Decode(data []float32, anchors int, lb Letterbox,
	boxThresh, nmsThresh float32) ([]Detection, error) {

	rows := y.Rows()

	if anchors <= 0 || len(data) != rows*anchors {
		return nil, fmt.Errorf("output tensor size %d does not match %d rows x %d anchors",
			len(data), rows, anchors)
	}

	at := func(row, col int) float32 {
		return data[row*anchors+col]
	}

	cands := make([]candidate, 0)

	for i := 0; i < anchors; i++ {

		// best class score for this anchor
		best := -1
		bestProb := float32(0)

		for c := 0; c < y.Params.ObjectClassNum; c++ {
			if p := at(4+c, i); p > bestProb {
				best = c
				bestProb = p
			}
		}

		if best < 0 || bestProb < boxThresh {
			continue
		}

		cx, cy := at(0, i), at(1, i)
		w, h := at(2, i), at(3, i)

		cands = append(cands, candidate{
			x1:     cx - w/2,
			y1:     cy - h/2,
			x2:     cx + w/2,
			y2:     cy + h/2,
			prob:   bestProb,
			class:  best,
			anchor: i,
		})
	}

	if len(cands) == 0 {
		// no object detected
		return nil, nil
	}

	keep := nms(cands, nmsThresh, y.Params.MaxObjectNumber)

	dets := make([]Detection, 0, len(keep))

	for _, k := range keep {

		det := Detection{
			Class:       k.class,
			Box:         y.toSource(k.x1, k.y1, k.x2, k.y2, lb),
			Probability: k.prob,
			ID:          y.idGen.GetNext(),
		}

		if y.Params.KeyPointsNumber > 0 {
			det.KeyPoints = y.keyPoints(at, k.anchor, lb)
		}

		dets = append(dets, det)
	}

	return dets, nil
}

// toSource maps a box in letterboxed input space back to the source image
func (y *YOLOv8) toSource(x1, y1, x2, y2 float32, lb Letterbox) BoxRect {

	scale := lb.ScaleFactor()
	xPad := float32(lb.XPad())
	yPad := float32(lb.YPad())
	maxW := float32(lb.SrcWidth())
	maxH := float32(lb.SrcHeight())

	return BoxRect{
		Left:   int(clamp((x1-xPad)/scale, 0, maxW)),
		Top:    int(clamp((y1-yPad)/scale, 0, maxH)),
		Right:  int(clamp((x2-xPad)/scale, 0, maxW)),
		Bottom: int(clamp((y2-yPad)/scale, 0, maxH)),
	}
}

// keyPoints reads the keypoint triplets for an anchor
func (y *YOLOv8) keyPoints(at func(row, col int) float32, anchor int,
	lb Letterbox) []KeyPoint {

	base := 4 + y.Params.ObjectClassNum
	scale := lb.ScaleFactor()
	kps := make([]KeyPoint, 0, y.Params.KeyPointsNumber)

	for j := 0; j < y.Params.KeyPointsNumber; j++ {
		kpX := at(base+j*3+0, anchor)
		kpY := at(base+j*3+1, anchor)
		kpScore := at(base+j*3+2, anchor)

		kps = append(kps, KeyPoint{
			X:     int((kpX - float32(lb.XPad())) / scale),
			Y:     int((kpY - float32(lb.YPad())) / scale),
			Score: kpScore,
		})
	}

	return kps
}
