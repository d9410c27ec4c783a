package framewatch

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"image"
	"sync/atomic"
	"time"
)

// Analyser runs the per frame analysis of a pipeline variant
type Analyser interface {
	// Analyse runs inference, tracking and annotation on the frame and
	// returns a new annotated Mat, the frame itself is left untouched
	Analyse(f *Frame) (gocv.Mat, error)
	// Reset discards all per stream state, it is called when the input
	// resolution changes
	Reset(size image.Point) error
	// Close releases the resources held by the Analyser
	Close() error
}

// WorkerOptions configure the Analysis Worker
type WorkerOptions struct {
	// PollTimeout is the bounded wait on the ingestion queue
	PollTimeout time.Duration
	// InitialSize is the resolution the Analyser was built for, a zero
	// value adopts the size of the first frame
	InitialSize image.Point
	// Debug optionally saves every ingested and rendered frame
	Debug *DebugSink
}

// WorkerStats are the running counters of a Worker
type WorkerStats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Resets    uint64 `json:"resets"`
	Timeouts  uint64 `json:"timeouts"`
}

// Worker pulls frames from the ingestion queue, runs the Analyser on them
// and pushes the annotated results to the output queue
type Worker struct {
	in       *FrameQueue
	out      *FrameQueue
	analyser Analyser
	opts     WorkerOptions
	log      zerolog.Logger
	size     image.Point

	processed atomic.Uint64
	failed    atomic.Uint64
	resets    atomic.Uint64
	timeouts  atomic.Uint64
}

// NewWorker returns a worker connecting the two queues through analyser
func NewWorker(in, out *FrameQueue, analyser Analyser, opts WorkerOptions,
	log zerolog.Logger) *Worker {

	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}

	return &Worker{
		in:       in,
		out:      out,
		analyser: analyser,
		opts:     opts,
		log:      log.With().Str("component", "worker").Logger(),
		size:     opts.InitialSize,
	}
}

// Run processes frames until the ingestion queue is closed, which returns
// nil, or the context is cancelled, which returns the context error
func (w *Worker) Run(ctx context.Context) error {

	for {
		f, state := w.in.Poll(ctx, w.opts.PollTimeout)

		switch state {
		case PollTimeout:
			w.timeouts.Add(1)
			continue

		case PollClosed:
			w.log.Debug().Msg("Ingestion queue closed")
			return nil

		case PollCancelled:
			return ctx.Err()
		}

		w.process(f)
	}
}

// process runs one analysis cycle, a failed cycle produces no output
func (w *Worker) process(f *Frame) {

	defer f.Close()

	size := f.Size()

	if size != w.size {
		if w.size == (image.Point{}) {
			w.size = size
		} else {
			w.log.Info().Str("from", pointStr(w.size)).
				Str("to", pointStr(size)).
				Msg("Frame resolution changed, resetting analyser")

			// keep the old size so the next frame retries the reset
			if err := w.analyser.Reset(size); err != nil {
				w.failed.Add(1)
				w.log.Error().Err(err).Msg("Analyser reset failed")
				return
			}

			w.size = size
			w.resets.Add(1)
		}
	}

	w.opts.Debug.SaveInput(f.Mat, f.Seq)

	result, err := w.analyse(f)

	if err != nil {
		w.failed.Add(1)
		w.log.Error().Err(err).Uint64("seq", f.Seq).Msg("Frame analysis failed")
		return
	}

	w.opts.Debug.SaveRendered(result, f.Seq)

	w.processed.Add(1)
	w.out.Push(&Frame{
		Mat:  result,
		Seq:  f.Seq,
		Time: f.Time,
	})
}

// analyse calls the Analyser converting a panic into an error
func (w *Worker) analyse(f *Frame) (res gocv.Mat, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyser panic: %v", r)
		}
	}()

	return w.analyser.Analyse(f)
}

// Stats returns a snapshot of the worker counters
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		Resets:    w.resets.Load(),
		Timeouts:  w.timeouts.Load(),
	}
}

func pointStr(p image.Point) string {
	return fmt.Sprintf("%dx%d", p.X, p.Y)
}
