package detector

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
	"image"
	"testing"
)

func TestTilePositions(t *testing.T) {

	cases := []struct {
		name    string
		src     int
		slice   int
		overlap float32
		pos     []int
		length  int
	}{
		{"two tiles", 1280, 640, 0.2, []int{0, 512}, 768},
		{"tile larger than source", 720, 640, 0.2, []int{0}, 720},
		{"no overlap", 1200, 400, 0, []int{0, 400, 800}, 400},
		{"spread evenly", 1000, 400, 0, []int{0, 300, 600}, 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos, length := tilePositions(tc.src, tc.slice, tc.overlap)
			assert.Equal(t, tc.pos, pos)
			assert.Equal(t, tc.length, length)
		})
	}
}

func TestSlicedTiles(t *testing.T) {

	s, err := NewSliced(Func(nil), SliceConfig{Width: 640, Height: 640,
		OverlapWidth: 0.2, OverlapHeight: 0.2})
	require.NoError(t, err)

	tiles := s.Tiles(1280, 720)

	assert.Equal(t, []image.Rectangle{
		image.Rect(0, 0, 768, 720),
		image.Rect(512, 0, 1280, 720),
	}, tiles)
}

func TestSliceConfigValidate(t *testing.T) {

	c := SliceConfig{Width: 320, Height: 320}
	require.NoError(t, c.Validate())
	assert.Equal(t, float32(0.7), c.SmallBoxOverlap)

	assert.Error(t, (&SliceConfig{Width: 0, Height: 320}).Validate())
	assert.Error(t, (&SliceConfig{Width: 320, Height: 320, OverlapWidth: 1}).Validate())

	cfg := Config{Model: "m.onnx", Slice: &SliceConfig{Width: -1, Height: 1}}
	assert.Error(t, cfg.Validate())
}

func TestSlicedMergesTileBoundary(t *testing.T) {

	calls := 0

	// the same object seen by both tiles, in tile local coordinates
	base := Func(func(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {

		calls++

		switch calls {
		case 1:
			return []postprocess.Detection{{
				Class: 2, Probability: 0.8,
				Box:       postprocess.BoxRect{Left: 600, Top: 100, Right: 700, Bottom: 200},
				KeyPoints: []postprocess.KeyPoint{{X: 650, Y: 150, Score: 1}},
			}}, nil
		case 2:
			return []postprocess.Detection{
				{Class: 2, Probability: 0.9,
					Box:       postprocess.BoxRect{Left: 88, Top: 100, Right: 188, Bottom: 200},
					KeyPoints: []postprocess.KeyPoint{{X: 138, Y: 150, Score: 1}}},
				{Class: 5, Probability: 0.6,
					Box: postprocess.BoxRect{Left: 400, Top: 300, Right: 500, Bottom: 400}},
			}, nil
		}

		return nil, nil
	})

	s, err := NewSliced(base, SliceConfig{Width: 640, Height: 640,
		OverlapWidth: 0.2, OverlapHeight: 0.2})
	require.NoError(t, err)

	img := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer img.Close()

	dets, err := s.Detect(img, 0.5, 0.45)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, 2, calls)

	assert.Equal(t, 2, dets[0].Class)
	assert.Equal(t, float32(0.9), dets[0].Probability)
	assert.Equal(t, postprocess.BoxRect{Left: 600, Top: 100, Right: 700, Bottom: 200}, dets[0].Box)
	assert.Equal(t, image.Pt(650, 150), dets[0].KeyPoints[0].Point())

	assert.Equal(t, 5, dets[1].Class)
	assert.Equal(t, postprocess.BoxRect{Left: 912, Top: 300, Right: 1012, Bottom: 400}, dets[1].Box)
}

func TestSlicedFullFrameAndErrors(t *testing.T) {

	calls := 0

	base := Func(func(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {
		calls++
		return nil, nil
	})

	s, err := NewSliced(base, SliceConfig{Width: 320, Height: 320, FullFrame: true})
	require.NoError(t, err)

	img := gocv.NewMatWithSize(320, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err = s.Detect(img, 0.5, 0.45)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	failing, err := NewSliced(Func(func(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {
		return nil, errors.New("inference failed")
	}), SliceConfig{Width: 320, Height: 320})
	require.NoError(t, err)

	_, err = failing.Detect(img, 0.5, 0.45)
	assert.Error(t, err)

	empty := gocv.NewMat()
	defer empty.Close()

	_, err = s.Detect(empty, 0.5, 0.45)
	assert.Error(t, err)
}

func TestMergeClustersSmallBox(t *testing.T) {

	dets := []postprocess.Detection{
		{Class: 1, Probability: 0.9, Box: postprocess.BoxRect{Left: 0, Top: 0, Right: 100, Bottom: 100}},
		{Class: 1, Probability: 0.8, Box: postprocess.BoxRect{Left: 10, Top: 10, Right: 50, Bottom: 50}},
		{Class: 3, Probability: 0.7, Box: postprocess.BoxRect{Left: 10, Top: 10, Right: 50, Bottom: 50}},
		{Class: 1, Probability: 0.5, Box: postprocess.BoxRect{Left: 300, Top: 300, Right: 340, Bottom: 340}},
	}

	keep := mergeClusters(dets, 0.45, 0.7)

	require.Len(t, keep, 3)
	assert.Equal(t, float32(0.9), keep[0].Probability)
	assert.Equal(t, 3, keep[1].Class)
	assert.Equal(t, float32(0.5), keep[2].Probability)
}

func TestMergeClustersKeepsLargestBox(t *testing.T) {

	dets := []postprocess.Detection{
		{Class: 1, Probability: 0.9, Box: postprocess.BoxRect{Left: 0, Top: 0, Right: 100, Bottom: 100}},
		{Class: 1, Probability: 0.6, Box: postprocess.BoxRect{Left: 0, Top: 0, Right: 100, Bottom: 120}},
	}

	keep := mergeClusters(dets, 0.45, 0.7)

	require.Len(t, keep, 1)
	assert.Equal(t, float32(0.6), keep[0].Probability)
	assert.Equal(t, 120, keep[0].Box.Bottom)
}
