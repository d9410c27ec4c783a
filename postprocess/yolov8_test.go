package postprocess

import (
	"testing"
)

// fakeLetterbox is a fixed Letterbox for a 1280x720 source scaled into a
// 640x640 input
type fakeLetterbox struct {
	scale      float32
	xPad, yPad int
	w, h       int
}

func (f fakeLetterbox) ScaleFactor() float32 { return f.scale }
func (f fakeLetterbox) XPad() int            { return f.xPad }
func (f fakeLetterbox) YPad() int            { return f.yPad }
func (f fakeLetterbox) SrcWidth() int        { return f.w }
func (f fakeLetterbox) SrcHeight() int       { return f.h }

var hdLetterbox = fakeLetterbox{scale: 0.5, xPad: 0, yPad: 140, w: 1280, h: 720}

// tensor builds a row major [rows, anchors] output from per anchor columns
func tensor(columns [][]float32) ([]float32, int) {

	anchors := len(columns)
	rows := len(columns[0])
	data := make([]float32, rows*anchors)

	for a, col := range columns {
		for r, v := range col {
			data[r*anchors+a] = v
		}
	}

	return data, anchors
}

func TestYOLOv8Decode(t *testing.T) {

	y := NewYOLOv8(YOLOv8Params{ObjectClassNum: 2, MaxObjectNumber: 10})

	data, anchors := tensor([][]float32{
		// cx, cy, w, h, class0, class1
		{100, 240, 50, 50, 0.9, 0.1},
		{102, 241, 50, 50, 0.8, 0.1},
		{300, 300, 40, 60, 0.1, 0.7},
		{500, 500, 10, 10, 0.2, 0.0},
	})

	dets, err := y.Decode(data, anchors, hdLetterbox, 0.5, 0.45)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []Detection{
		{Class: 0, Box: BoxRect{Left: 150, Right: 250, Top: 150, Bottom: 250}, Probability: 0.9, ID: 1},
		{Class: 1, Box: BoxRect{Left: 560, Right: 640, Top: 260, Bottom: 380}, Probability: 0.7, ID: 2},
	}

	if len(dets) != len(expected) {
		t.Fatalf("expected %d detections, got %d: %+v", len(expected), len(dets), dets)
	}

	for i, exp := range expected {
		got := dets[i]

		if got.Class != exp.Class || got.Box != exp.Box || got.Probability != exp.Probability || got.ID != exp.ID {
			t.Errorf("detection %d: expected %+v, got %+v", i, exp, got)
		}

		if got.KeyPoints != nil {
			t.Errorf("detection %d: detect model should not return keypoints", i)
		}
	}
}

func TestYOLOv8DecodeNothingAboveThreshold(t *testing.T) {

	y := NewYOLOv8(YOLOv8Params{ObjectClassNum: 1, MaxObjectNumber: 10})
	data, anchors := tensor([][]float32{{10, 10, 5, 5, 0.3}})

	dets, err := y.Decode(data, anchors, hdLetterbox, 0.7, 0.3)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 0 {
		t.Errorf("expected no detections, got %d", len(dets))
	}
}

func TestYOLOv8DecodeSizeMismatch(t *testing.T) {

	y := NewYOLOv8(YOLOv8COCOParams())

	if _, err := y.Decode(make([]float32, 10), 3, hdLetterbox, 0.5, 0.5); err == nil {
		t.Error("expected error for mismatched tensor size")
	}
}

func TestYOLOv8DecodePose(t *testing.T) {

	y := NewYOLOv8(YOLOv8Params{ObjectClassNum: 1, MaxObjectNumber: 4, KeyPointsNumber: 2})

	if y.Rows() != 11 {
		t.Fatalf("expected 11 rows, got %d", y.Rows())
	}

	data, anchors := tensor([][]float32{
		{100, 240, 50, 50, 0.9, 100, 240, 0.8, 120, 260, 0.3},
		{400, 400, 50, 50, 0.1, 0, 0, 0, 0, 0, 0},
	})

	dets, err := y.Decode(data, anchors, hdLetterbox, 0.5, 0.45)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}

	expected := []KeyPoint{{X: 200, Y: 200, Score: 0.8}, {X: 240, Y: 240, Score: 0.3}}

	if len(dets[0].KeyPoints) != len(expected) {
		t.Fatalf("expected %d keypoints, got %d", len(expected), len(dets[0].KeyPoints))
	}

	for i, kp := range expected {
		if dets[0].KeyPoints[i] != kp {
			t.Errorf("keypoint %d: expected %+v, got %+v", i, kp, dets[0].KeyPoints[i])
		}
	}
}

func TestNMS(t *testing.T) {

	tests := []struct {
		name     string
		cands    []candidate
		max      int
		expected []float32
	}{
		{
			name: "overlapping same class suppressed",
			cands: []candidate{
				{x1: 0, y1: 0, x2: 100, y2: 100, prob: 0.6},
				{x1: 2, y1: 2, x2: 102, y2: 102, prob: 0.9},
			},
			expected: []float32{0.9},
		},
		{
			name: "overlapping different class kept",
			cands: []candidate{
				{x1: 0, y1: 0, x2: 100, y2: 100, prob: 0.6, class: 1},
				{x1: 2, y1: 2, x2: 102, y2: 102, prob: 0.9, class: 2},
			},
			expected: []float32{0.9, 0.6},
		},
		{
			name: "max objects",
			cands: []candidate{
				{x1: 0, y1: 0, x2: 10, y2: 10, prob: 0.5},
				{x1: 50, y1: 50, x2: 60, y2: 60, prob: 0.7},
				{x1: 100, y1: 100, x2: 110, y2: 110, prob: 0.6},
			},
			max:      2,
			expected: []float32{0.7, 0.6},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			keep := nms(tc.cands, 0.45, tc.max)

			if len(keep) != len(tc.expected) {
				t.Fatalf("expected %d boxes, got %d", len(tc.expected), len(keep))
			}

			for i, p := range tc.expected {
				if keep[i].prob != p {
					t.Errorf("box %d: expected prob %.2f, got %.2f", i, p, keep[i].prob)
				}
			}
		})
	}
}
