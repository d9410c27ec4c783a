package workout

import (
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-framewatch"
	"github.com/swdee/go-framewatch/alert"
	"github.com/swdee/go-framewatch/detector"
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
	"image"
	"math"
	"testing"
)

func TestJointAngle(t *testing.T) {

	cases := []struct {
		name    string
		a, b, c image.Point
		want    float64
	}{
		{"straight", image.Pt(0, 0), image.Pt(10, 0), image.Pt(20, 0), 180},
		{"right angle", image.Pt(0, 0), image.Pt(10, 0), image.Pt(10, 10), 90},
		{"folded", image.Pt(0, 0), image.Pt(10, 0), image.Pt(0, 0), 0},
		{"obtuse", image.Pt(10, 0), image.Pt(0, 0), image.Pt(-10, -10), 135},
		{"reflex folds back", image.Pt(-10, -1), image.Pt(0, 0), image.Pt(-10, 1), 11.42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, JointAngle(tc.a, tc.b, tc.c), 0.01)
		})
	}
}

// arm returns a tracked person whose left elbow (keypoint 7) is bent to
// the given angle
func arm(trackID int, angle float64) postprocess.Detection {

	kps := make([]postprocess.KeyPoint, 17)

	for i := range kps {
		kps[i] = postprocess.KeyPoint{X: 200, Y: 200, Score: 0.9}
	}

	rad := angle * math.Pi / 180

	kps[5] = postprocess.KeyPoint{X: 200, Y: 100, Score: 0.9}
	kps[7] = postprocess.KeyPoint{X: 200, Y: 200, Score: 0.9}
	kps[9] = postprocess.KeyPoint{
		X:     200 + int(math.Round(100*math.Sin(rad))),
		Y:     200 - int(math.Round(100*math.Cos(rad))),
		Score: 0.9,
	}

	return postprocess.Detection{
		Class:       0,
		TrackID:     trackID,
		Probability: 0.9,
		Box:         postprocess.BoxRect{Left: 150, Top: 80, Right: 320, Bottom: 400},
		KeyPoints:   kps,
	}
}

func TestGymCountsReps(t *testing.T) {

	g := NewGym(DefaultGymConfig())

	steps := []struct {
		angle float64
		stage string
		count int
		rep   bool
	}{
		{120, StageNone, 0, false},
		{90, StageDown, 0, false},
		{170, StageUp, 0, false},
		{90, StageDown, 1, true},
		{95, StageDown, 1, false},
		{130, StageDown, 1, false},
		{170, StageUp, 1, false},
		{60, StageDown, 2, true},
	}

	for i, s := range steps {
		reps := g.Update([]postprocess.Detection{arm(1, s.angle)})

		p, ok := g.Person(1)
		require.True(t, ok)
		assert.Equal(t, s.stage, p.Stage, "step %d", i)
		assert.Equal(t, s.count, p.Count, "step %d", i)
		assert.InDelta(t, s.angle, p.Angle, 1, "step %d", i)
		assert.Equal(t, s.rep, len(reps) == 1, "step %d", i)
	}
}

func TestGymPerPerson(t *testing.T) {

	g := NewGym(DefaultGymConfig())

	g.Update([]postprocess.Detection{arm(1, 170), arm(2, 170)})
	reps := g.Update([]postprocess.Detection{arm(1, 90), arm(2, 150)})

	require.Len(t, reps, 1)
	assert.Equal(t, 1, reps[0].ID)

	people := g.People()
	require.Len(t, people, 2)
	assert.Equal(t, 1, people[0].Count)
	assert.Equal(t, 0, people[1].Count)
	assert.Equal(t, StageUp, people[1].Stage)
}

func TestGymSkipsUntrackedAndLowScore(t *testing.T) {

	cfg := DefaultGymConfig()
	cfg.MinKeyPointScore = 0.5
	g := NewGym(cfg)

	untracked := arm(0, 170)
	weak := arm(3, 170)
	weak.KeyPoints[9].Score = 0.2
	short := arm(4, 170)
	short.KeyPoints = short.KeyPoints[:5]

	g.Update([]postprocess.Detection{untracked, weak, short})
	assert.Empty(t, g.People())
}

func TestConfigValidate(t *testing.T) {

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, [3]int{5, 7, 9}, cfg.Gym.KeyPoints)
	assert.Equal(t, 165.0, cfg.Gym.UpAngle)
	assert.Equal(t, 100.0, cfg.Gym.DownAngle)

	cfg.Gym.DownAngle = 170
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.IoU = 0
	assert.Error(t, cfg.Validate())
}

// poseDetector returns one person per call with the scripted elbow angles
func poseDetector(angles []float64) detector.Detector {

	calls := 0

	return detector.Func(func(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {

		if calls >= len(angles) {
			return nil, nil
		}

		det := arm(0, angles[calls])
		calls++

		return []postprocess.Detection{det}, nil
	})
}

func TestAnalyserPublishesReps(t *testing.T) {

	var events []alert.Event
	pub := alert.PublisherFunc(func(ev alert.Event) error {
		events = append(events, ev)
		return nil
	})

	a, err := New(poseDetector([]float64{170, 90, 170, 80}), DefaultConfig(),
		pub, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	a.SetSession("gym1")

	for i := 0; i < 4; i++ {
		f := framewatch.NewFrame(gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3), uint64(i+1))

		res, err := a.Analyse(f)
		require.NoError(t, err)
		assert.False(t, res.Empty())

		res.Close()
		f.Close()
	}

	require.Len(t, events, 2)
	assert.Equal(t, alert.RepCompleted, events[1].Kind)
	assert.Equal(t, "gym1", events[1].Session)
	assert.Equal(t, 2, events[1].Count)

	require.NoError(t, a.Reset(image.Pt(640, 480)))
	assert.Empty(t, a.Gym().People())
}
