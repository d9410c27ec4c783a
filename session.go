package framewatch

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"io"
	"sync"
	"time"
)

// FrameSource delivers decoded frames from a live stream.  NextFrame returns
// io.EOF when the stream has ended.
type FrameSource interface {
	NextFrame(ctx context.Context) (gocv.Mat, error)
}

// SessionOptions configure the pipeline built for one stream
type SessionOptions struct {
	// Label names the session variant in listings
	Label string
	// IngestQueueSize and OutputQueueSize bound the two hand-off queues
	IngestQueueSize int
	OutputQueueSize int
	Worker          WorkerOptions
	Emitter         EmitterOptions
}

// DefaultSessionOptions returns options with small queues so the pipeline
// always works on the freshest frames
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		IngestQueueSize: 4,
		OutputQueueSize: 4,
		Worker:          WorkerOptions{PollTimeout: time.Second},
		Emitter:         DefaultEmitterOptions(),
	}
}

// Session is the pipeline object graph of a single stream, it owns its
// queues, worker, emitter and analyser
type Session struct {
	id       string
	label    string
	started  time.Time
	in       *FrameQueue
	out      *FrameQueue
	worker   *Worker
	emitter  *Emitter
	analyser Analyser
	log      zerolog.Logger
	seq      uint64
	done     chan struct{}
	once     sync.Once
}

// NewSession builds the pipeline around analyser
func NewSession(analyser Analyser, opts SessionOptions, log zerolog.Logger) *Session {

	def := DefaultSessionOptions()

	if opts.IngestQueueSize < 1 {
		opts.IngestQueueSize = def.IngestQueueSize
	}

	if opts.OutputQueueSize < 1 {
		opts.OutputQueueSize = def.OutputQueueSize
	}

	id := uuid.New().String()
	log = log.With().Str("session", id).Logger()

	in := NewFrameQueue(opts.IngestQueueSize)
	out := NewFrameQueue(opts.OutputQueueSize)

	return &Session{
		id:       id,
		label:    opts.Label,
		started:  time.Now(),
		in:       in,
		out:      out,
		worker:   NewWorker(in, out, analyser, opts.Worker, log),
		emitter:  NewEmitter(out, opts.Emitter, log),
		analyser: analyser,
		log:      log,
		done:     make(chan struct{}),
	}
}

// ID returns the unique session identifier
func (s *Session) ID() string {
	return s.id
}

// Emitter returns the outbound frame source of the session
func (s *Session) Emitter() *Emitter {
	return s.emitter
}

// Done is closed once Run has returned
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run reads frames from src into the pipeline until the source ends, fails
// or the context is cancelled.  The end of stream is not an error.
func (s *Session) Run(ctx context.Context, src FrameSource) error {

	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()
		runErr = s.worker.Run(ctx)
	}()

	s.log.Info().Str("label", s.label).Msg("Session started")

	err := s.ingest(ctx, src)

	// the worker processes what is still queued then ends
	s.in.Seal()
	wg.Wait()
	s.out.Seal()

	if err == nil && runErr != nil && ctx.Err() == nil {
		err = fmt.Errorf("worker: %w", runErr)
	}

	s.log.Info().Err(err).Msg("Session ended")

	return err
}

// ingest moves frames from the source into the ingestion queue
func (s *Session) ingest(ctx context.Context, src FrameSource) error {

	for {
		if ctx.Err() != nil {
			return nil
		}

		mat, err := src.NextFrame(ctx)

		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("error reading frame: %w", err)
		}

		s.seq++

		if !s.in.Push(NewFrame(mat, s.seq)) {
			return ErrQueueClosed
		}
	}
}

// SessionInfo is a snapshot of a session's counters
type SessionInfo struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Started time.Time    `json:"started"`
	Ingest  QueueStats   `json:"ingest"`
	Output  QueueStats   `json:"output"`
	Worker  WorkerStats  `json:"worker"`
	Emitter EmitterStats `json:"emitter"`
}

// Info returns the session counters
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:      s.id,
		Label:   s.label,
		Started: s.started,
		Ingest:  s.in.Stats(),
		Output:  s.out.Stats(),
		Worker:  s.worker.Stats(),
		Emitter: s.emitter.Stats(),
	}
}

// Close releases the queues, emitter and analyser
func (s *Session) Close() error {

	var err error

	s.once.Do(func() {
		s.in.Close()
		s.out.Close()
		s.emitter.Close()
		err = s.analyser.Close()
	})

	return err
}
