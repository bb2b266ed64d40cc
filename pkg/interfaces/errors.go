package interfaces

import "errors"

// Common interface errors used across components.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotSubscribed      = errors.New("connection is not subscribed to event")
)
