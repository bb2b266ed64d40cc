package interfaces

import "context"

// TelemetrySink is the opaque marker/payload sink: the gateway never
// inspects what the far side of this interface does with a flush,
// only that it accepted it.
type TelemetrySink interface {
	// Send delivers one flush payload tagged with marker (e.g.
	// "AppGwHealthStats_split") to the sink.
	Send(ctx context.Context, marker string, payload []byte) error

	// HealthCheck verifies the sink is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the sink's resources.
	Close() error
}
