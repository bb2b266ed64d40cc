package hub

import "errors"

// ErrHubAlreadyRunning is returned by Start if the hub's handler-triple
// is already installed on the connection manager.
var ErrHubAlreadyRunning = errors.New("hub is already running")
