package interfaces

import (
	"context"

	"appgateway/pkg/types"
)

// RequestHandler dispatches a resolved method call to its destination
// and returns the raw result payload, or an error carrying an RPCError.
type RequestHandler interface {
	Handle(ctx context.Context, gctx types.GatewayContext, entry *types.ResolutionEntry, params interface{}) (interface{}, error)
}

// Router resolves an inbound method name against the resolution table
// and either dispatches a request or updates an event subscription.
type Router interface {
	// Dispatch resolves method and routes it according to whether the
	// resolution entry describes a request or an event subscription.
	Dispatch(ctx context.Context, gctx types.GatewayContext, frame *types.InboundFrame) (interface{}, *types.RPCError)
}

// EventDelegate owns one event's subscriber set and decides whether a
// connection may subscribe, and how to fan out a firing to subscribers.
type EventDelegate interface {
	// HandleSubscription toggles connectionID's subscription to event.
	HandleSubscription(connectionID uint32, event string, listen bool) error

	// HandleEvent fans params out to every current subscriber of event.
	HandleEvent(event string, params interface{})
}
