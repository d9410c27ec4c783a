package framewatch

import "errors"

var (
	// ErrQueueClosed is returned when pushing into a session whose ingestion
	// queue has been closed
	ErrQueueClosed = errors.New("frame queue closed")
	// ErrEmitterClosed is returned by Recv after the Emitter was closed
	ErrEmitterClosed = errors.New("emitter closed")
	// ErrSessionExists is returned when adding a session id twice to a Hub
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound is returned for an unknown session id
	ErrSessionNotFound = errors.New("session not found")
)
