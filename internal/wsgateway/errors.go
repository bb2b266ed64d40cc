package wsgateway

import "errors"

// Connection-related errors.
var (
	ErrConnectionClosed = errors.New("wsgateway: connection is closed")
	ErrWriteTimeout     = errors.New("wsgateway: write queue did not drain before the configured write timeout")
	ErrInvalidJSON      = errors.New("wsgateway: payload does not marshal to JSON")
)

// Manager-related errors.
var (
	ErrNonLoopbackPeer   = errors.New("connections from non-loopback peers are refused")
	ErrShuttingDown      = errors.New("connection manager is shutting down")
	ErrConnectionUnknown = errors.New("no connection with that id")
)
