package messaging

import "errors"

var (
	// ErrClientClosed indicates a call issued after Close
	ErrClientClosed = errors.New("messaging client closed")

	// ErrNoBackend indicates a client constructed without a backend
	ErrNoBackend = errors.New("no backend configured")
)
