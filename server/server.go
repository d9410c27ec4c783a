/*
Package server exposes pipeline sessions over HTTP.  Annotated output is
served as MJPEG at /stream/{id}, running sessions are listed at /sessions and
clients may push their own video as JPEG frames over a websocket at /ingest.
*/
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/hybridgroup/mjpeg"
	"github.com/rs/zerolog"
	"github.com/swdee/go-framewatch"
	"github.com/swdee/go-framewatch/source"
	"gocv.io/x/gocv"
	"html/template"
	"net/http"
	"sync"
	"time"
)

// AnalyserFactory builds the analyser for a new ingest session
type AnalyserFactory func() (framewatch.Analyser, error)

// sessionBinder is implemented by analysers that tag their alerts with the
// session id
type sessionBinder interface {
	SetSession(id string)
}

// Server serves the sessions of a Hub
type Server struct {
	ctx     context.Context
	hub     *framewatch.Hub
	factory AnalyserFactory
	opts    framewatch.SessionOptions
	log     zerolog.Logger
	mux     *http.ServeMux

	mu      sync.Mutex
	streams map[string]*mjpeg.Stream
}

// New returns a server for hub.  Sessions created through /ingest run until
// ctx is done and use factory and opts, a nil factory disables /ingest.
func New(ctx context.Context, hub *framewatch.Hub, factory AnalyserFactory,
	opts framewatch.SessionOptions, log zerolog.Logger) *Server {

	s := &Server{
		ctx:     ctx,
		hub:     hub,
		factory: factory,
		opts:    opts,
		log:     log.With().Str("component", "server").Logger(),
		mux:     http.NewServeMux(),
		streams: make(map[string]*mjpeg.Stream),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /sessions", s.handleSessions)
	s.mux.HandleFunc("GET /stream/{id}", s.handleStream)
	s.mux.HandleFunc("GET /ingest", s.handleIngest)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Attach starts streaming the emitter output of a session to MJPEG clients.
// The session must not have any other emitter consumer.
func (s *Server) Attach(sess *framewatch.Session) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[sess.ID()]; ok {
		return
	}

	stream := mjpeg.NewStream()
	s.streams[sess.ID()] = stream

	go s.pump(sess, stream)
}

// lingerInterval and lingerTime control how the final frame of an ended
// session is repeated.  The MJPEG handler only notices a closed client
// connection when it writes, so it needs frames to keep arriving.
const (
	lingerInterval = 200 * time.Millisecond
	lingerTime     = 10 * time.Second
)

// pump feeds emitter samples to the MJPEG stream until the session ends
func (s *Server) pump(sess *framewatch.Session, stream *mjpeg.Stream) {

	log := s.log.With().Str("session", sess.ID()).Logger()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var last []byte

	for {
		err := sess.Emitter().Next(ctx, func(sample framewatch.Sample) error {

			buf, err := gocv.IMEncode(gocv.JPEGFileExt, sample.Frame.Mat)

			if err != nil {
				log.Error().Err(err).Msg("Error encoding JPEG")
				return nil
			}

			defer buf.Close()

			last = append(last[:0], buf.GetBytes()...)
			stream.UpdateJPEG(last)
			return nil
		})

		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, framewatch.ErrEmitterClosed) {
				log.Warn().Err(err).Msg("Stream ended")
			}

			break
		}
	}

	s.mu.Lock()
	delete(s.streams, sess.ID())
	s.mu.Unlock()

	s.linger(stream, last)
}

// linger repeats the final frame for a while so the handlers of connected
// clients get to write and return once their client has gone
func (s *Server) linger(stream *mjpeg.Stream, last []byte) {

	if len(last) == 0 {
		return
	}

	ticker := time.NewTicker(lingerInterval)
	defer ticker.Stop()

	deadline := time.After(lingerTime)
	final := 0

	for final < 5 {
		select {
		case <-ticker.C:
			stream.UpdateJPEG(last)

			if s.ctx.Err() != nil {
				final++
			}

		case <-deadline:
			return
		}
	}
}

func (s *Server) stream(id string) (*mjpeg.Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id]
	return st, ok
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {

	st, ok := s.stream(r.PathValue("id"))

	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	st.ServeHTTP(flushWriter{w}, r)
}

// flushWriter pushes every write to the client so a gone client surfaces as
// a write error
type flushWriter struct {
	http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {

	n, err := f.ResponseWriter.Write(p)

	if fl, ok := f.ResponseWriter.(http.Flusher); ok && err == nil {
		fl.Flush()
	}

	return n, err
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.hub.Sessions()); err != nil {
		s.log.Error().Err(err).Msg("Error writing session list")
	}
}

// handleIngest runs a new session fed by the client's websocket frames and
// returns once that session has ended
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {

	if s.factory == nil {
		http.Error(w, "ingest disabled", http.StatusNotFound)
		return
	}

	analyser, err := s.factory()

	if err != nil {
		s.log.Error().Err(err).Msg("Error creating analyser")
		http.Error(w, "error creating analyser", http.StatusInternalServerError)
		return
	}

	ws, err := source.Upgrade(w, r, s.log)

	if err != nil {
		analyser.Close()
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	defer ws.Close()

	sess := framewatch.NewSession(analyser, s.opts, s.log)

	if b, ok := analyser.(sessionBinder); ok {
		b.SetSession(sess.ID())
	}

	if err := s.hub.Start(s.ctx, sess, ws); err != nil {
		sess.Close()
		s.log.Error().Err(err).Msg("Error starting session")
		return
	}

	s.Attach(sess)
	s.log.Info().Str("session", sess.ID()).Str("remote", r.RemoteAddr).
		Msg("Ingest session started")

	<-sess.Done()
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>framewatch</title></head>
<body>
<h1>framewatch</h1>
{{range .}}<div>
<h3>{{.Label}} {{.ID}}</h3>
<img src="/stream/{{.ID}}" width="640">
</div>
{{else}}<p>No active sessions</p>
{{end}}</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {

	w.Header().Set("Content-Type", "text/html")

	if err := indexTmpl.Execute(w, s.hub.Sessions()); err != nil {
		s.log.Error().Err(err).Msg("Error rendering index")
	}
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {

	srv := &http.Server{
		Addr:    addr,
		Handler: s,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.log.Info().Str("addr", addr).Msg("HTTP server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}
