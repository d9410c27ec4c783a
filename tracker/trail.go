package tracker

import (
	"github.com/swdee/go-framewatch/postprocess"
	"image"
	"sync"
)

// Trail keeps the recent center points of each tracked identity, used for
// drawing the path an object has taken
type Trail struct {
	// size is the maximum number of most recent points to keep per identity
	size    int
	history map[int][]image.Point
	sync.Mutex
}

// NewTrail returns a trail keeping up to size points per identity
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int][]image.Point),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int][]image.Point)
}

// Add records the box center of each tracked detection
func (t *Trail) Add(dets []postprocess.Detection) {
	t.Lock()
	defer t.Unlock()

	for _, d := range dets {

		if !d.Tracked() {
			continue
		}

		points := append(t.history[d.TrackID], d.Box.Center())

		// drop oldest point once history is exceeded
		if len(points) > t.size {
			points = points[len(points)-t.size:]
		}

		t.history[d.TrackID] = points
	}
}

// Forget drops the history of the given identities
func (t *Trail) Forget(ids []int) {
	t.Lock()
	defer t.Unlock()

	for _, id := range ids {
		delete(t.history, id)
	}
}

// GetPoints returns a copy of the point history for an identity
func (t *Trail) GetPoints(id int) []image.Point {
	t.Lock()
	defer t.Unlock()

	points, exists := t.history[id]

	if !exists {
		return nil
	}

	res := make([]image.Point, len(points))
	copy(res, points)

	return res
}
