package render

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-framewatch/postprocess"
	"github.com/swdee/go-framewatch/tracker"
	"gocv.io/x/gocv"
	"image"
	"testing"
)

// blank returns a black BGR image
func blank(w, h int) gocv.Mat {
	return gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
}

// nonZero counts the pixels that are not black
func nonZero(img gocv.Mat) int {
	g := gocv.NewMat()
	defer g.Close()

	gocv.CvtColor(img, &g, gocv.ColorBGRToGray)
	return gocv.CountNonZero(g)
}

func TestLabel(t *testing.T) {

	cases := []struct {
		name string
		det  postprocess.Detection
		want string
	}{
		{
			name: "with class name",
			det: postprocess.Detection{Class: 39, ClassName: "bottle",
				TrackID: 3, Probability: 0.876},
			want: "#39 3 bottle 0.88",
		},
		{
			name: "missing class name",
			det:  postprocess.Detection{Class: 39, TrackID: 3, Probability: 0.876},
			want: "#39 3 0.88",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Label(tc.det))
		})
	}

	labels := Labels([]postprocess.Detection{cases[0].det, cases[1].det})
	assert.Equal(t, []string{cases[0].want, cases[1].want}, labels)
}

func TestAnnotatorLeavesInputUntouched(t *testing.T) {

	img := blank(200, 200)
	defer img.Close()

	dets := []postprocess.Detection{{
		Class:       1,
		TrackID:     2,
		Probability: 0.9,
		Box:         postprocess.BoxRect{Left: 50, Top: 60, Right: 150, Bottom: 160},
	}}

	res := NewAnnotator().Render(img, dets, Labels(dets))
	defer res.Close()

	assert.Equal(t, 0, nonZero(img))
	assert.Greater(t, nonZero(res), 0)
	assert.Equal(t, img.Cols(), res.Cols())
	assert.Equal(t, img.Rows(), res.Rows())
}

func TestAnnotatorLabelAtTopEdge(t *testing.T) {

	img := blank(100, 100)
	defer img.Close()

	dets := []postprocess.Detection{{
		Box: postprocess.BoxRect{Left: 10, Top: 0, Right: 60, Bottom: 40},
	}}

	res := NewAnnotator().Render(img, dets, []string{"#0 0 0.00"})
	defer res.Close()

	// label panel is moved inside the image instead of above it
	top := res.Region(image.Rect(0, 0, 100, 12))
	defer top.Close()
	assert.Greater(t, nonZero(top), 0)
}

func TestWarning(t *testing.T) {

	img := blank(1280, 720)
	defer img.Close()

	Warning(&img, DefaultWarningStyle())

	// text starts at x=350 and sits above y=50
	left := img.Region(image.Rect(0, 0, 340, 720))
	defer left.Close()
	banner := img.Region(image.Rect(340, 0, 1280, 60))
	defer banner.Close()

	assert.Equal(t, 0, nonZero(left))
	assert.Greater(t, nonZero(banner), 0)

	// red in BGR order
	px := findLit(img)
	require.NotEqual(t, image.Pt(-1, -1), px)
	assert.Equal(t, uint8(0), img.GetVecbAt(px.Y, px.X)[0])
	assert.Equal(t, uint8(255), img.GetVecbAt(px.Y, px.X)[2])
}

// findLit returns the first fully saturated pixel found
func findLit(img gocv.Mat) image.Point {

	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Cols(); x++ {
			if img.GetVecbAt(y, x)[2] == 255 {
				return image.Pt(x, y)
			}
		}
	}

	return image.Pt(-1, -1)
}

func TestZone(t *testing.T) {

	zone, err := postprocess.NewPolygonZone([]image.Point{
		{0, 450}, {1280, 450}, {1280, 720}, {0, 720},
	}, 0)
	require.NoError(t, err)
	defer zone.Close()

	img := blank(1280, 720)
	defer img.Close()

	zone.CurrentCount = 3
	Zone(&img, zone, DefaultZoneStyle())

	above := img.Region(image.Rect(0, 0, 1280, 440))
	defer above.Close()

	assert.Equal(t, 0, nonZero(above))
	assert.Greater(t, nonZero(img), 0)
}

func TestPoseKeyPoints(t *testing.T) {

	img := blank(100, 100)
	defer img.Close()

	kps := make([]postprocess.KeyPoint, 17)

	for i := range kps {
		kps[i] = postprocess.KeyPoint{X: 10 + i*4, Y: 50, Score: 0.9}
	}

	PoseKeyPoints(&img, []postprocess.Detection{{KeyPoints: kps}}, DefaultPoseStyle())
	assert.Greater(t, nonZero(img), 0)

	// low confidence keypoints are hidden
	hidden := blank(100, 100)
	defer hidden.Close()

	for i := range kps {
		kps[i].Score = 0.1
	}

	PoseKeyPoints(&hidden, []postprocess.Detection{{KeyPoints: kps}}, DefaultPoseStyle())
	assert.Equal(t, 0, nonZero(hidden))
}

func TestTrail(t *testing.T) {

	trail := tracker.NewTrail(10)

	det := postprocess.Detection{
		TrackID: 1,
		Box:     postprocess.BoxRect{Left: 10, Top: 10, Right: 20, Bottom: 20},
	}

	trail.Add([]postprocess.Detection{det})
	det.Box = postprocess.BoxRect{Left: 40, Top: 40, Right: 50, Bottom: 50}
	trail.Add([]postprocess.Detection{det})

	img := blank(100, 100)
	defer img.Close()

	Trail(&img, []postprocess.Detection{det}, trail, DefaultTrailStyle())
	assert.Greater(t, nonZero(img), 0)
}

func TestTextDrawer(t *testing.T) {

	td, err := NewTextDrawer("", 24)
	require.NoError(t, err)
	defer td.Close()

	size := td.Measure("Reps: 3")
	assert.Greater(t, size.X, 0)
	assert.Greater(t, size.Y, 0)

	img := blank(200, 100)
	defer img.Close()

	td.Draw(&img, "Reps: 3", image.Pt(10, 50), White)
	assert.Greater(t, nonZero(img), 0)

	// text entirely outside the image is ignored
	assert.NotPanics(t, func() {
		td.Draw(&img, "far", image.Pt(500, 500), White)
	})

	_, err = NewTextDrawer("missing.ttf", 12)
	assert.Error(t, err)
}

func TestExercise(t *testing.T) {

	td, err := NewTextDrawer("", 18)
	require.NoError(t, err)
	defer td.Close()

	img := blank(400, 300)
	defer img.Close()

	Exercise(&img, td, image.Pt(150, 200), 95.5, 4, "down", DefaultExerciseStyle())
	assert.Greater(t, nonZero(img), 0)
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, ColorFor(1), ColorFor(1+len(classColors)))
	assert.Equal(t, ColorFor(3), ColorFor(-3))
}
