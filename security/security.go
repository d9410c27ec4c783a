/*
Package security implements the security monitoring analyser.  Objects are
detected, tracked across frames and classified through the item lifecycle,
and a warning is drawn once any tracked item has been missing for too long.
*/
package security

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/swdee/go-framewatch"
	"github.com/swdee/go-framewatch/alert"
	"github.com/swdee/go-framewatch/detector"
	"github.com/swdee/go-framewatch/postprocess"
	"github.com/swdee/go-framewatch/render"
	"github.com/swdee/go-framewatch/tracker"
	"gocv.io/x/gocv"
	"image"
	"time"
)

// Config holds the security analyser policy
type Config struct {
	// Confidence and IoU are the inference thresholds
	Confidence float32 `yaml:"confidence"`
	IoU        float32 `yaml:"iou"`
	// ExcludeClasses are class ids dropped before tracking
	ExcludeClasses []int `yaml:"exclude_classes"`
	// MissThreshold is the miss count an item may exceed before eviction
	MissThreshold int                       `yaml:"miss_threshold"`
	Tracker       tracker.ByteTrackerConfig `yaml:"tracker"`
	// Zone is the region of interest polygon in source pixels
	Zone       [][2]int `yaml:"zone"`
	ZoneMargin int      `yaml:"zone_margin"`
	// WarningHoldCycles is how many cycles the warning stays up after an
	// eviction, zero keeps it up until the analyser is reset
	WarningHoldCycles int `yaml:"warning_hold_cycles"`
	// TrailSize is the number of points kept per track for trails, zero
	// disables trails
	TrailSize int `yaml:"trail_size"`
}

// DefaultConfig returns the security monitoring policy
func DefaultConfig() Config {

	bt := tracker.DefaultByteTrackerConfig()
	bt.MinConsecutiveFrames = 15

	return Config{
		Confidence:     0.7,
		IoU:            0.3,
		ExcludeClasses: []int{4, 5, 12, 20, 21, 24, 25, 31, 36},
		MissThreshold:  tracker.DefaultMissThreshold,
		Tracker:        bt,
		Zone:           [][2]int{{0, 450}, {1280, 450}, {1280, 720}, {0, 720}},
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

	if c.MissThreshold < 0 {
		return errors.New("miss_threshold must not be negative")
	}

	if c.WarningHoldCycles < 0 {
		return errors.New("warning_hold_cycles must not be negative")
	}

	if len(c.Zone) > 0 && len(c.Zone) < 3 {
		return errors.New("zone needs at least 3 points")
	}

	return nil
}

func (c *Config) zonePolygon() []image.Point {

	pts := make([]image.Point, len(c.Zone))

	for i, p := range c.Zone {
		pts[i] = image.Pt(p[0], p[1])
	}

	return pts
}

// Analyser runs the security monitoring steps on each frame.  It is used by
// a single worker goroutine.
type Analyser struct {
	cfg     Config
	det     detector.Detector
	exclude postprocess.ClassSet
	bt      *tracker.ByteTracker
	life    *tracker.Lifecycle
	trail   *tracker.Trail
	zone    *postprocess.PolygonZone
	ann     *render.Annotator
	pub     alert.Publisher
	session string
	log     zerolog.Logger

	zoneStyle  render.ZoneStyle
	warnStyle  render.WarningStyle
	trailStyle render.TrailStyle
	// warnLeft is the remaining warning cycles, negative means latched
	warnLeft int
	warned   bool
}

// New returns an analyser using det for inference.  pub may be nil.
func New(det detector.Detector, cfg Config, pub alert.Publisher,
	log zerolog.Logger) (*Analyser, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if pub == nil {
		pub = alert.Nop
	}

	a := &Analyser{
		cfg:        cfg,
		det:        det,
		exclude:    postprocess.NewClassSet(cfg.ExcludeClasses...),
		bt:         tracker.NewByteTracker(cfg.Tracker),
		life:       tracker.NewLifecycle(cfg.MissThreshold, log),
		ann:        render.NewAnnotator(),
		pub:        pub,
		log:        log.With().Str("component", "security").Logger(),
		zoneStyle:  render.DefaultZoneStyle(),
		warnStyle:  render.DefaultWarningStyle(),
		trailStyle: render.DefaultTrailStyle(),
	}

	if cfg.TrailSize > 0 {
		a.trail = tracker.NewTrail(cfg.TrailSize)
	}

	if len(cfg.Zone) > 0 {
		zone, err := postprocess.NewPolygonZone(cfg.zonePolygon(), cfg.ZoneMargin)

		if err != nil {
			return nil, fmt.Errorf("error creating zone: %w", err)
		}

		a.zone = zone
	}

	return a, nil
}

// SetSession sets the session id attached to published alerts
func (a *Analyser) SetSession(id string) {
	a.session = id
}

// Lifecycle returns the item lifecycle state machine
func (a *Analyser) Lifecycle() *tracker.Lifecycle {
	return a.life
}

// Warning reports whether the last analysed frame carried the missing items
// warning
func (a *Analyser) Warning() bool {
	return a.warned
}

// Analyse detects, tracks and annotates a frame
func (a *Analyser) Analyse(f *framewatch.Frame) (gocv.Mat, error) {

	dets, err := a.det.Detect(f.Mat, a.cfg.Confidence, a.cfg.IoU)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("inference failed: %w", err)
	}

	// conf is only a hint to the Detector
	dets = postprocess.FilterConfidence(dets, a.cfg.Confidence)
	dets = postprocess.ExcludeClasses(dets, a.exclude)

	tracked, err := a.bt.Update(dets)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("tracker update failed: %w", err)
	}

	rep := a.life.Update(postprocess.TrackIDs(tracked))

	if len(rep.Evicted) > 0 {
		a.evicted(rep)
	}

	res := a.ann.Render(f.Mat, tracked, render.Labels(tracked))

	if a.trail != nil {
		a.trail.Add(tracked)
		a.trail.Forget(rep.Evicted)
		render.Trail(&res, tracked, a.trail, a.trailStyle)
	}

	if a.zone != nil {
		a.zone.Trigger(tracked)
		render.Zone(&res, a.zone, a.zoneStyle)
	}

	a.warned = a.warnLeft != 0

	if a.warned {
		render.Warning(&res, a.warnStyle)

		if a.warnLeft > 0 {
			a.warnLeft--
		}
	}

	return res, nil
}

// evicted raises the warning and publishes the alert for evicted items
func (a *Analyser) evicted(rep tracker.Report) {

	a.log.Warn().Ints("items", rep.Evicted).Int("cycle", rep.Cycle).
		Msg("Items are missing")

	a.warnLeft = a.cfg.WarningHoldCycles

	if a.warnLeft == 0 {
		a.warnLeft = -1
	}

	err := a.pub.Publish(alert.Event{
		Kind:    alert.ItemsMissing,
		Session: a.session,
		Time:    time.Now(),
		Cycle:   rep.Cycle,
		Items:   rep.Evicted,
	})

	if err != nil {
		a.log.Error().Err(err).Msg("Failed to publish alert")
	}
}

// Reset discards tracker, lifecycle and warning state after a resolution
// change
func (a *Analyser) Reset(size image.Point) error {

	a.bt.Reset()
	a.life.Reset()
	a.warnLeft = 0
	a.warned = false

	if a.trail != nil {
		a.trail.Reset()
	}

	a.log.Info().Int("width", size.X).Int("height", size.Y).
		Msg("Security analyser reset")

	return nil
}

// Close releases the detector and zone
func (a *Analyser) Close() error {

	if a.zone != nil {
		a.zone.Close()
	}

	return a.det.Close()
}
