package framewatch

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"sort"
	"sync"
)

// Hub runs many sessions side by side, each in its own goroutine so a
// failing stream never affects the others
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*hubEntry
	wg       sync.WaitGroup
	log      zerolog.Logger
}

type hubEntry struct {
	session *Session
	cancel  context.CancelFunc
}

// NewHub returns an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*hubEntry),
		log:      log.With().Str("component", "hub").Logger(),
	}
}

// Start runs the session reading from src.  The session is removed from the
// hub and closed when it ends.
func (h *Hub) Start(ctx context.Context, s *Session, src FrameSource) error {

	h.mu.Lock()

	if _, ok := h.sessions[s.ID()]; ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID())
	}

	ctx, cancel := context.WithCancel(ctx)
	h.sessions[s.ID()] = &hubEntry{session: s, cancel: cancel}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		defer cancel()
		defer h.remove(s)

		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Str("session", s.ID()).Interface("panic", r).
					Msg("Session panicked")
			}
		}()

		if err := s.Run(ctx, src); err != nil {
			h.log.Error().Err(err).Str("session", s.ID()).Msg("Session failed")
		}
	}()

	return nil
}

// remove drops the session from the hub and releases it
func (h *Hub) remove(s *Session) {

	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()

	if err := s.Close(); err != nil {
		h.log.Warn().Err(err).Str("session", s.ID()).Msg("Error closing session")
	}
}

// Get returns the running session with the given id
func (h *Hub) Get(id string) (*Session, bool) {

	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.sessions[id]

	if !ok {
		return nil, false
	}

	return e.session, true
}

// Stop cancels the session with the given id
func (h *Hub) Stop(id string) error {

	h.mu.Lock()
	e, ok := h.sessions[id]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.cancel()
	return nil
}

// Sessions returns the info of all running sessions, oldest first
func (h *Hub) Sessions() []SessionInfo {

	h.mu.Lock()
	infos := make([]SessionInfo, 0, len(h.sessions))

	for _, e := range h.sessions {
		infos = append(infos, e.session.Info())
	}

	h.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Started.Equal(infos[j].Started) {
			return infos[i].ID < infos[j].ID
		}

		return infos[i].Started.Before(infos[j].Started)
	})

	return infos
}

// Len returns the number of running sessions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.sessions)
}

// Wait blocks until every started session has ended
func (h *Hub) Wait() {
	h.wg.Wait()
}
