package workout

import (
	"github.com/swdee/go-framewatch/postprocess"
	"gonum.org/v1/gonum/spatial/r2"
	"image"
	"math"
	"sort"
)

const (
	// StageNone is the stage of a person before any position is reached
	StageNone = "-"
	StageUp   = "up"
	StageDown = "down"
)

// GymConfig defines the exercise being counted
type GymConfig struct {
	// KeyPoints are the three pose keypoint indices forming the joint angle,
	// the middle one is the joint
	KeyPoints [3]int `yaml:"keypoints"`
	// UpAngle and DownAngle are the joint angles in degrees marking the two
	// positions of a repetition
	UpAngle   float64 `yaml:"up_angle"`
	DownAngle float64 `yaml:"down_angle"`
	// MinKeyPointScore skips people whose joint keypoints score lower
	MinKeyPointScore float32 `yaml:"min_keypoint_score"`
}

// DefaultGymConfig counts arm curls from the left shoulder, elbow and wrist
func DefaultGymConfig() GymConfig {
	return GymConfig{
		KeyPoints: [3]int{5, 7, 9},
		UpAngle:   165,
		DownAngle: 100,
	}
}

// Person is the exercise progress of one tracked person
type Person struct {
	ID    int
	Count int
	Stage string
	Angle float64
	// Joint is the position of the middle keypoint
	Joint image.Point
}

// Gym counts exercise repetitions for each tracked person
type Gym struct {
	cfg    GymConfig
	people map[int]*Person
}

// NewGym returns an empty gym
func NewGym(cfg GymConfig) *Gym {
	return &Gym{
		cfg:    cfg,
		people: make(map[int]*Person),
	}
}

// Update applies the pose of each tracked detection and returns the people
// that completed a repetition
func (g *Gym) Update(dets []postprocess.Detection) []Person {

	var reps []Person

	for _, det := range dets {

		if !det.Tracked() {
			continue
		}

		a, b, c, ok := g.joint(det.KeyPoints)

		if !ok {
			continue
		}

		p, exists := g.people[det.TrackID]

		if !exists {
			p = &Person{ID: det.TrackID, Stage: StageNone}
			g.people[det.TrackID] = p
		}

		p.Angle = JointAngle(a.Point(), b.Point(), c.Point())
		p.Joint = b.Point()

		switch {
		case p.Angle < g.cfg.DownAngle:
			if p.Stage == StageUp {
				p.Count++
				reps = append(reps, *p)
			}

			p.Stage = StageDown

		case p.Angle > g.cfg.UpAngle:
			p.Stage = StageUp
		}
	}

	return reps
}

// joint returns the three configured keypoints
func (g *Gym) joint(kps []postprocess.KeyPoint) (a, b, c postprocess.KeyPoint, ok bool) {

	for _, i := range g.cfg.KeyPoints {
		if i < 0 || i >= len(kps) || kps[i].Score < g.cfg.MinKeyPointScore {
			return a, b, c, false
		}
	}

	return kps[g.cfg.KeyPoints[0]], kps[g.cfg.KeyPoints[1]], kps[g.cfg.KeyPoints[2]], true
}

// Person returns the progress of the given track identity
func (g *Gym) Person(id int) (Person, bool) {

	p, ok := g.people[id]

	if !ok {
		return Person{}, false
	}

	return *p, true
}

// People returns everyone seen so far ordered by identity
func (g *Gym) People() []Person {

	res := make([]Person, 0, len(g.people))

	for _, p := range g.people {
		res = append(res, *p)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})

	return res
}

// JointAngle returns the angle in degrees at b formed by the segments to a
// and c, in the range 0 to 180
func JointAngle(a, b, c image.Point) float64 {

	ba := r2.Sub(toVec(a), toVec(b))
	bc := r2.Sub(toVec(c), toVec(b))

	rad := math.Atan2(bc.Y, bc.X) - math.Atan2(ba.Y, ba.X)
	deg := math.Abs(rad * 180 / math.Pi)

	if deg > 180 {
		deg = 360 - deg
	}

	return deg
}

func toVec(p image.Point) r2.Vec {
	return r2.Vec{X: float64(p.X), Y: float64(p.Y)}
}
