package framewatch

import (
	"context"
	"github.com/rs/zerolog"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// VideoClockRate is the 90 kHz clock outbound video timestamps are counted in
const VideoClockRate = 90000

// Rational is a time base expressed as Num/Den seconds
type Rational struct {
	Num int
	Den int
}

// EmitterOptions configure the Frame Emitter
type EmitterOptions struct {
	// Timeout is how long each Recv waits for a new output frame before
	// repeating the last good frame
	Timeout time.Duration
	// FrameRate is the outbound cadence in frames per second, zero disables
	// pacing
	FrameRate int
	// PlaceholderWidth and PlaceholderHeight size the black frame emitted
	// before any real frame arrives
	PlaceholderWidth  int
	PlaceholderHeight int
	// Debug optionally saves every emitted frame
	Debug *DebugSink
}

// DefaultEmitterOptions returns options for a 30 fps stream with a 5 second
// output wait and a 1920x1080 placeholder
func DefaultEmitterOptions() EmitterOptions {
	return EmitterOptions{
		Timeout:           5 * time.Second,
		FrameRate:         30,
		PlaceholderWidth:  1920,
		PlaceholderHeight: 1080,
	}
}

// Sample is one outbound video sample
type Sample struct {
	// Frame is owned by the Emitter and only valid until the next Recv
	Frame *Frame
	// PTS is the presentation timestamp in TimeBase units
	PTS      int64
	TimeBase Rational
	// Fresh is set when Frame arrived from the output queue during this call
	// rather than being repeated
	Fresh bool
}

// EmitterStats are the running counters of an Emitter
type EmitterStats struct {
	Emitted  uint64 `json:"emitted"`
	Fresh    uint64 `json:"fresh"`
	Repeated uint64 `json:"repeated"`
}

// Emitter is a pull based video source that always has a frame ready.  Each
// Recv returns the newest frame from the output queue, or repeats the last
// good frame when none arrives before the timeout.
type Emitter struct {
	out  *FrameQueue
	opts EmitterOptions
	log  zerolog.Logger

	mu      sync.Mutex
	last    *Frame
	started bool
	start   time.Time
	pts     int64
	closed  bool

	emitted  atomic.Uint64
	fresh    atomic.Uint64
	repeated atomic.Uint64
}

// NewEmitter returns an emitter pulling from the given output queue
func NewEmitter(out *FrameQueue, opts EmitterOptions, log zerolog.Logger) *Emitter {

	def := DefaultEmitterOptions()

	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}

	if opts.FrameRate < 0 {
		opts.FrameRate = def.FrameRate
	}

	if opts.PlaceholderWidth <= 0 || opts.PlaceholderHeight <= 0 {
		opts.PlaceholderWidth = def.PlaceholderWidth
		opts.PlaceholderHeight = def.PlaceholderHeight
	}

	return &Emitter{
		out:  out,
		opts: opts,
		log:  log.With().Str("component", "emitter").Logger(),
		last: NewPlaceholder(opts.PlaceholderWidth, opts.PlaceholderHeight,
			color.RGBA{A: 255}),
	}
}

// Recv blocks until the next sample is due and returns it.  Only a cancelled
// context or a closed Emitter produce an error.
func (e *Emitter) Recv(ctx context.Context) (Sample, error) {

	pts, err := e.pace(ctx)

	if err != nil {
		return Sample{}, err
	}

	f, state := e.out.Poll(ctx, e.opts.Timeout)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		f.Close()
		return Sample{}, ErrEmitterClosed
	}

	fresh := false

	switch state {
	case PollReceived:
		e.last.Close()
		e.last = f
		fresh = true
		e.fresh.Add(1)

	case PollCancelled:
		return Sample{}, ctx.Err()

	default:
		// timeout or closed output queue, repeat the last good frame
		e.repeated.Add(1)
	}

	e.emitted.Add(1)
	e.opts.Debug.SaveEmitted(e.last.Mat, pts)

	return Sample{
		Frame:    e.last,
		PTS:      pts,
		TimeBase: Rational{Num: 1, Den: VideoClockRate},
		Fresh:    fresh,
	}, nil
}

// Next receives the next sample and calls fn with it while the Emitter
// cannot be closed, for consumers running on a different goroutine than the
// owner that closes the Emitter
func (e *Emitter) Next(ctx context.Context, fn func(Sample) error) error {

	s, err := e.Recv(ctx)

	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEmitterClosed
	}

	return fn(s)
}

// pace advances the presentation timestamp and waits until it is due
func (e *Emitter) pace(ctx context.Context) (int64, error) {

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return 0, ErrEmitterClosed
	}

	if !e.started || e.opts.FrameRate == 0 {
		if !e.started {
			e.started = true
			e.start = time.Now()
		} else {
			e.pts = int64(time.Since(e.start) * VideoClockRate / time.Second)
		}

		pts := e.pts
		e.mu.Unlock()
		return pts, nil
	}

	e.pts += int64(VideoClockRate / e.opts.FrameRate)
	pts := e.pts
	due := e.start.Add(time.Duration(pts) * time.Second / VideoClockRate)
	e.mu.Unlock()

	wait := time.Until(due)

	if wait <= 0 {
		return pts, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return pts, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stats returns a snapshot of the emitter counters
func (e *Emitter) Stats() EmitterStats {
	return EmitterStats{
		Emitted:  e.emitted.Load(),
		Fresh:    e.fresh.Load(),
		Repeated: e.repeated.Load(),
	}
}

// Close releases the last good frame
func (e *Emitter) Close() error {

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true
	err := e.last.Close()
	e.last = nil

	return err
}
