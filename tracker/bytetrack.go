package tracker

import (
	"fmt"
	"github.com/swdee/go-framewatch/postprocess"
)

// ByteTrackerConfig defines the association thresholds of the ByteTracker
type ByteTrackerConfig struct {
	// TrackThresh splits detections into high and low score sets
	TrackThresh float32 `yaml:"track_thresh"`
	// LowThresh is the minimum score a detection needs to be considered in
	// the second, low score, association
	LowThresh float32 `yaml:"low_thresh"`
	// NewTrackThresh is the minimum score to start a new track
	NewTrackThresh float32 `yaml:"new_track_thresh"`
	// MatchThresh is the maximum IoU distance (1 - IoU) accepted when
	// matching high score detections
	MatchThresh float32 `yaml:"match_thresh"`
	// FrameRate and TrackBuffer give the number of frames a lost track is
	// kept for re-identification
	FrameRate   int `yaml:"frame_rate"`
	TrackBuffer int `yaml:"track_buffer"`
	// MinConsecutiveFrames is the number of consecutive frames a new track
	// must be matched on before it is given an identity
	MinConsecutiveFrames int `yaml:"min_consecutive_frames"`
}

// DefaultByteTrackerConfig returns the ByteTrack defaults
func DefaultByteTrackerConfig() ByteTrackerConfig {
	return ByteTrackerConfig{
		TrackThresh:          0.25,
		LowThresh:            0.1,
		NewTrackThresh:       0.35,
		MatchThresh:          0.8,
		FrameRate:            30,
		TrackBuffer:          30,
		MinConsecutiveFrames: 1,
	}
}

// ByteTracker associates detections across frames using the BYTE algorithm,
// matching high score detections first and recovering occluded objects from
// low score detections
type ByteTracker struct {
	cfg         ByteTrackerConfig
	maxTimeLost int
	frameID     int
	lastID      int
	// tracks holds every tentative, tracked and lost track
	tracks []*Track
}

// NewByteTracker returns a tracker for the given configuration
func NewByteTracker(cfg ByteTrackerConfig) *ByteTracker {

	if cfg.MinConsecutiveFrames < 1 {
		cfg.MinConsecutiveFrames = 1
	}

	return &ByteTracker{
		cfg:         cfg,
		maxTimeLost: int(float32(cfg.FrameRate) / 30.0 * float32(cfg.TrackBuffer)),
	}
}

// Reset clears the tracked data and restarts identities from 1
func (bt *ByteTracker) Reset() {
	bt.frameID = 0
	bt.lastID = 0
	bt.tracks = nil
}

// Tracks returns the tentative, tracked and lost tracks
func (bt *ByteTracker) Tracks() []*Track {
	return bt.tracks
}

// Update associates the detections of the next frame with the existing
// tracks.  It returns the detections matched to confirmed tracks with their
// TrackID set, in track creation order.
func (bt *ByteTracker) Update(dets []postprocess.Detection) ([]postprocess.Detection, error) {

	bt.frameID++

	var high, low []postprocess.Detection

	for _, d := range dets {
		switch {
		case d.Probability >= bt.cfg.TrackThresh:
			high = append(high, d)
		case d.Probability > bt.cfg.LowThresh:
			low = append(low, d)
		}
	}

	var pool, tentative []*Track

	for _, t := range bt.tracks {
		t.predict()

		if t.state == Tentative {
			tentative = append(tentative, t)
		} else {
			pool = append(pool, t)
		}
	}

	// first association, high score detections with tracked and lost tracks
	matches, unTracks, unDets, err := associate(pool, high, float64(1-bt.cfg.MatchThresh))

	if err != nil {
		return nil, fmt.Errorf("first association: %w", err)
	}

	for _, m := range matches {
		if err := pool[m[0]].match(high[m[1]], bt.frameID); err != nil {
			return nil, fmt.Errorf("first association: %w", err)
		}
	}

	remainHigh := pickDetections(high, unDets)

	var remainTracked []*Track

	for _, i := range unTracks {
		if pool[i].state == Tracked {
			remainTracked = append(remainTracked, pool[i])
		}
	}

	// second association, low score detections with still unmatched tracks
	matches, unTracks, _, err = associate(remainTracked, low, 0.5)

	if err != nil {
		return nil, fmt.Errorf("second association: %w", err)
	}

	for _, m := range matches {
		if err := remainTracked[m[0]].match(low[m[1]], bt.frameID); err != nil {
			return nil, fmt.Errorf("second association: %w", err)
		}
	}

	for _, i := range unTracks {
		remainTracked[i].markLost()
	}

	// tentative tracks must match on consecutive frames or are dropped
	matches, unTracks, unDets, err = associate(tentative, remainHigh, 0.3)

	if err != nil {
		return nil, fmt.Errorf("tentative association: %w", err)
	}

	for _, m := range matches {
		if err := tentative[m[0]].match(remainHigh[m[1]], bt.frameID); err != nil {
			return nil, fmt.Errorf("tentative association: %w", err)
		}
	}

	for _, i := range unTracks {
		tentative[i].markRemoved()
	}

	for _, j := range unDets {
		if remainHigh[j].Probability < bt.cfg.NewTrackThresh {
			continue
		}

		bt.tracks = append(bt.tracks, newTrack(remainHigh[j], bt.frameID))
	}

	out := make([]postprocess.Detection, 0, len(bt.tracks))
	live := bt.tracks[:0]

	for _, t := range bt.tracks {

		if t.state == Tentative && t.frameID == bt.frameID &&
			t.hits >= bt.cfg.MinConsecutiveFrames {
			bt.lastID++
			t.id = bt.lastID
			t.confirmed = true
			t.state = Tracked
		}

		if t.state == Lost && bt.frameID-t.frameID > bt.maxTimeLost {
			t.markRemoved()
		}

		if t.state == Removed {
			continue
		}

		live = append(live, t)

		if t.state == Tracked && t.frameID == bt.frameID {
			det := t.det
			det.TrackID = t.id
			out = append(out, det)
		}
	}

	// clear the tail so removed tracks can be collected
	for i := len(live); i < len(bt.tracks); i++ {
		bt.tracks[i] = nil
	}

	bt.tracks = live

	return out, nil
}

// pickDetections returns the detections at the given indices
func pickDetections(dets []postprocess.Detection, idx []int) []postprocess.Detection {

	res := make([]postprocess.Detection, 0, len(idx))

	for _, i := range idx {
		res = append(res, dets[i])
	}

	return res
}

// associate matches tracks to detections with the lowest total IoU distance
// (1 - IoU), never pairing a track and detection with an IoU below minIoU.
// Unmatched indices are returned in ascending order.
func associate(tracks []*Track, dets []postprocess.Detection,
	minIoU float64) (matches [][2]int, unTracks, unDets []int, err error) {

	cost := make([][]float64, len(tracks))

	for ti, t := range tracks {
		tb := t.Box()
		cost[ti] = make([]float64, len(dets))

		for di, d := range dets {
			cost[ti][di] = 1 - tb.IoU(BoxFromRect(d.Box))
		}
	}

	return linearAssignment(cost, len(dets), 1-minIoU)
}
