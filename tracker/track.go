package tracker

import (
	"fmt"
	"github.com/swdee/go-framewatch/postprocess"
)

// TrackState represents the association state of a track
type TrackState int

const (
	// Tentative tracks have not yet been matched on enough consecutive
	// frames to be reported
	Tentative TrackState = iota
	// Tracked tracks were matched on the current frame
	Tracked
	// Lost tracks were not matched and are kept for re-identification
	Lost
	// Removed tracks are discarded
	Removed
)

// String returns the state name
func (s TrackState) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Tracked:
		return "tracked"
	case Lost:
		return "lost"
	case Removed:
		return "removed"
	}

	return "unknown"
}

// Track is a single object followed across frames
type Track struct {
	kf    *kalmanFilter
	state TrackState
	// id is the reported identity, zero until the track is confirmed
	id int
	// confirmed is set once the track has been matched on enough
	// consecutive frames
	confirmed bool
	// hits is the number of consecutive frames the track was matched
	hits int
	// frameID is the last frame the track was matched on
	frameID      int
	startFrameID int
	score        float32
	det          postprocess.Detection
}

// newTrack starts a tentative track from a detection
func newTrack(det postprocess.Detection, frameID int) *Track {
	return &Track{
		kf:           newKalmanFilter(BoxFromRect(det.Box).Xyah()),
		state:        Tentative,
		hits:         1,
		frameID:      frameID,
		startFrameID: frameID,
		score:        det.Probability,
		det:          det,
	}
}

// ID returns the reported identity, zero while unconfirmed
func (t *Track) ID() int {
	return t.id
}

// State returns the association state
func (t *Track) State() TrackState {
	return t.state
}

// Confirmed reports whether the track has an identity
func (t *Track) Confirmed() bool {
	return t.confirmed
}

// Box returns the Kalman filtered box
func (t *Track) Box() Box {
	return t.kf.box()
}

// Detection returns the last detection matched to the track
func (t *Track) Detection() postprocess.Detection {
	return t.det
}

// FrameID returns the last frame the track was matched on
func (t *Track) FrameID() int {
	return t.frameID
}

// predict advances the motion model one frame
func (t *Track) predict() {

	if t.state != Tracked {
		t.kf.freezeHeightVelocity()
	}

	t.kf.predict()
}

// match updates the track with the detection assigned to it on frameID
func (t *Track) match(det postprocess.Detection, frameID int) error {

	if err := t.kf.update(BoxFromRect(det.Box).Xyah()); err != nil {
		return fmt.Errorf("error updating track: %w", err)
	}

	if t.frameID == frameID-1 {
		t.hits++
	} else {
		t.hits = 1
	}

	t.frameID = frameID
	t.score = det.Probability
	t.det = det

	if t.state != Tentative {
		t.state = Tracked
	}

	return nil
}

// markLost flags the track as not matched this frame
func (t *Track) markLost() {
	t.state = Lost
	t.hits = 0
}

// markRemoved discards the track
func (t *Track) markRemoved() {
	t.state = Removed
}
