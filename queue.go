package framewatch

import (
	"context"
	"sync"
	"time"
)

// PollState is the outcome of waiting on a FrameQueue
type PollState int

const (
	// PollReceived means a frame was returned
	PollReceived PollState = iota
	// PollTimeout means no frame arrived before the deadline, the normal
	// "no new frame this cycle" case
	PollTimeout
	// PollClosed means the queue was closed
	PollClosed
	// PollCancelled means the context was done
	PollCancelled
)

// String returns the state name
func (s PollState) String() string {
	switch s {
	case PollReceived:
		return "received"
	case PollTimeout:
		return "timeout"
	case PollClosed:
		return "closed"
	case PollCancelled:
		return "cancelled"
	}

	return "unknown"
}

// QueueStats are the running counters of a FrameQueue
type QueueStats struct {
	Pushed    uint64 `json:"pushed"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
}

// FrameQueue is a bounded hand-off buffer between one producer and one
// consumer.  Push never blocks, when the queue is full the oldest frame is
// dropped so the consumer always sees the freshest frames.
type FrameQueue struct {
	mu     sync.Mutex
	frames []*Frame
	size   int
	closed bool
	sealed bool
	stats  QueueStats
	// notify wakes a waiting consumer, it holds at most one pending signal
	notify chan struct{}
	done   chan struct{}
}

// NewFrameQueue returns a queue holding up to size frames
func NewFrameQueue(size int) *FrameQueue {

	if size < 1 {
		size = 1
	}

	return &FrameQueue{
		frames: make([]*Frame, 0, size),
		size:   size,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push adds a frame without blocking, dropping and closing the oldest frame
// when the queue is full.  Frames pushed after Close are closed and false is
// returned.
func (q *FrameQueue) Push(f *Frame) bool {

	q.mu.Lock()

	if q.closed || q.sealed {
		q.mu.Unlock()
		f.Close()
		return false
	}

	var dropped *Frame

	if len(q.frames) >= q.size {
		dropped = q.frames[0]
		q.frames[0] = nil
		q.frames = q.frames[1:]
		q.stats.Dropped++
	}

	q.frames = append(q.frames, f)
	q.stats.Pushed++
	q.mu.Unlock()

	if dropped != nil {
		dropped.Close()
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return true
}

// Poll waits up to timeout for a frame.  An empty queue is reported as
// PollTimeout, never as an error.
func (q *FrameQueue) Poll(ctx context.Context, timeout time.Duration) (*Frame, PollState) {

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		f, state := q.pop()

		if state != PollTimeout {
			return f, state
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-timer.C:
			return nil, PollTimeout
		case <-ctx.Done():
			return nil, PollCancelled
		}
	}
}

// TryPop returns the oldest frame without waiting
func (q *FrameQueue) TryPop() (*Frame, PollState) {
	return q.pop()
}

// pop removes the oldest frame, PollTimeout means the queue is empty
func (q *FrameQueue) pop() (*Frame, PollState) {

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) > 0 {
		f := q.frames[0]
		q.frames[0] = nil
		q.frames = q.frames[1:]
		q.stats.Delivered++
		return f, PollReceived
	}

	if q.closed || q.sealed {
		return nil, PollClosed
	}

	return nil, PollTimeout
}

// Seal stops the queue accepting frames.  Consumers still receive the frames
// already queued, then PollClosed.
func (q *FrameQueue) Seal() {

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.sealed {
		return
	}

	q.sealed = true
	close(q.done)
}

// Close wakes any waiting consumer and closes the frames still queued
func (q *FrameQueue) Close() {

	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return
	}

	if !q.sealed {
		close(q.done)
	}

	q.closed = true
	pending := q.frames
	q.frames = nil
	q.mu.Unlock()

	for _, f := range pending {
		f.Close()
	}
}

// Len returns the number of queued frames
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.frames)
}

// Stats returns a snapshot of the queue counters
func (q *FrameQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.stats
}
