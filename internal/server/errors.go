package server

import "errors"

var (
	// ErrBind is returned when the listen address cannot be bound.
	ErrBind = errors.New("bind listen address")
	// ErrShutdownTimeout is returned when in-flight requests outlive the drain bound.
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrNotListening is returned by Serve before Listen succeeded.
	ErrNotListening = errors.New("server is not listening")
)
