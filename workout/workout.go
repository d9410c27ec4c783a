/*
Package workout implements the workout assistant analyser, counting exercise
repetitions per person from the joint angle of pose estimation keypoints.
*/
package workout

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/swdee/go-framewatch"
	"github.com/swdee/go-framewatch/alert"
	"github.com/swdee/go-framewatch/detector"
	"github.com/swdee/go-framewatch/render"
	"github.com/swdee/go-framewatch/tracker"
	"gocv.io/x/gocv"
	"image"
	"time"
)

// Config holds the workout analyser policy
type Config struct {
	Confidence float32                   `yaml:"confidence"`
	IoU        float32                   `yaml:"iou"`
	Gym        GymConfig                 `yaml:"gym"`
	Tracker    tracker.ByteTrackerConfig `yaml:"tracker"`
	// FontSize is the point size of the rep counter text
	FontSize float64 `yaml:"font_size"`
	// FontFile is an optional TTF file, the embedded Go font is used when
	// empty
	FontFile string `yaml:"font_file"`
}

// DefaultConfig returns the workout assistant policy
func DefaultConfig() Config {
	return Config{
		Confidence: 0.25,
		IoU:        0.7,
		Gym:        DefaultGymConfig(),
		Tracker:    tracker.DefaultByteTrackerConfig(),
		FontSize:   24,
	}
}

// Validate checks the policy values
func (c *Config) Validate() error {

	if c.Confidence <= 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", c.Confidence)
	}

	if c.IoU <= 0 || c.IoU > 1 {
		return fmt.Errorf("iou %v out of range", c.IoU)
	}

	if c.Gym.DownAngle >= c.Gym.UpAngle {
		return errors.New("down_angle must be smaller than up_angle")
	}

	if c.FontSize <= 0 {
		c.FontSize = 24
	}

	return nil
}

// Analyser runs pose estimation, tracking and rep counting on each frame
type Analyser struct {
	cfg     Config
	det     detector.Detector
	bt      *tracker.ByteTracker
	gym     *Gym
	td      *render.TextDrawer
	pub     alert.Publisher
	session string
	log     zerolog.Logger

	poseStyle render.PoseStyle
	exStyle   render.ExerciseStyle
}

// New returns an analyser using the pose model det.  pub may be nil.
func New(det detector.Detector, cfg Config, pub alert.Publisher,
	log zerolog.Logger) (*Analyser, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	td, err := render.NewTextDrawer(cfg.FontFile, cfg.FontSize)

	if err != nil {
		return nil, fmt.Errorf("error creating text drawer: %w", err)
	}

	if pub == nil {
		pub = alert.Nop
	}

	return &Analyser{
		cfg:       cfg,
		det:       det,
		bt:        tracker.NewByteTracker(cfg.Tracker),
		gym:       NewGym(cfg.Gym),
		td:        td,
		pub:       pub,
		log:       log.With().Str("component", "workout").Logger(),
		poseStyle: render.DefaultPoseStyle(),
		exStyle:   render.DefaultExerciseStyle(),
	}, nil
}

// SetSession sets the session id attached to published alerts
func (a *Analyser) SetSession(id string) {
	a.session = id
}

// Gym returns the current rep counter
func (a *Analyser) Gym() *Gym {
	return a.gym
}

// Analyse estimates poses, counts repetitions and draws the progress
func (a *Analyser) Analyse(f *framewatch.Frame) (gocv.Mat, error) {

	dets, err := a.det.Detect(f.Mat, a.cfg.Confidence, a.cfg.IoU)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("pose inference failed: %w", err)
	}

	tracked, err := a.bt.Update(dets)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("tracker update failed: %w", err)
	}

	for _, p := range a.gym.Update(tracked) {
		a.log.Info().Int("person", p.ID).Int("count", p.Count).Msg("Rep completed")

		err := a.pub.Publish(alert.Event{
			Kind:    alert.RepCompleted,
			Session: a.session,
			Time:    time.Now(),
			Person:  p.ID,
			Count:   p.Count,
		})

		if err != nil {
			a.log.Error().Err(err).Msg("Failed to publish alert")
		}
	}

	res := f.Mat.Clone()
	render.PoseKeyPoints(&res, tracked, a.poseStyle)

	for _, det := range tracked {
		p, ok := a.gym.Person(det.TrackID)

		if !ok {
			continue
		}

		render.Exercise(&res, a.td, p.Joint, p.Angle, p.Count, p.Stage, a.exStyle)
	}

	return res, nil
}

// Reset starts a new gym and tracker after a resolution change
func (a *Analyser) Reset(size image.Point) error {

	a.bt.Reset()
	a.gym = NewGym(a.cfg.Gym)

	a.log.Info().Int("width", size.X).Int("height", size.Y).
		Msg("Workout analyser reset")

	return nil
}

// Close releases the detector and font
func (a *Analyser) Close() error {

	if err := a.td.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Error closing font face")
	}

	return a.det.Close()
}
