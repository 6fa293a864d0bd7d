package server

import "errors"

// Server-specific errors
var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrShuttingDown         = errors.New("server is shutting down")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSignalNotFound       = errors.New("signal not found")
	ErrInvalidConfig        = errors.New("invalid server configuration")
	ErrListenerFailed       = errors.New("failed to create listener")
	ErrKindNotUpdatable     = errors.New("component kind has no Update message on the wire")
)
