package interfaces

// Connection is the router's view of an accepted WebSocket connection.
// Implementations must serialize writes through a single goroutine;
// callers never need to hold a lock around WriteJSON.
type Connection interface {
	// WriteJSON sends a JSON-encodable value to the client. Safe for
	// concurrent use.
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources. Idempotent.
	Close() error

	// ConnectionID returns the id assigned at accept time.
	ConnectionID() uint32

	// AppID returns the application identity bound to this connection,
	// or "" if the handshake has not completed.
	AppID() string

	// IsJSONRPCCompliant reports whether the connection opted into
	// envelope responses and errors rather than bare result/error bodies.
	IsJSONRPCCompliant() bool
}
