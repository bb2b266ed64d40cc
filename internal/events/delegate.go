// Package events implements the gateway's event delegates: bounded
// subscriber sets that validate subscription requests against a fixed
// allow-list and fan out producer notifications as JSON-RPC events,
// generalized from a single broadcast channel to a named-event
// subscriber table per delegate.
package events

import (
	"errors"
	"strings"

	"appgateway/internal/registries"
)

// ErrUnknownEvent is returned by HandleSubscription when the
// requested event name is not in the delegate's allow-list.
var ErrUnknownEvent = errors.New("event not recognized by this delegate")

// Emitter delivers a wire event to a single connection, wrapping it
// in the JSON-RPC notification envelope or the bare-response
// equivalent depending on that connection's compliance flag. The
// responder (component F) implements this.
type Emitter interface {
	Emit(connectionID uint32, method string, payload interface{})
}

// BaseDelegate is the common shape shared by every event delegate: a
// fixed set of recognized event names, a subscriber table, and a
// sink to fan notifications out through. Concrete delegates embed
// this and add their own producer-side transformation logic.
type BaseDelegate struct {
	allowed map[string]struct{}
	subs    *registries.SubscriptionTable
	emitter Emitter
}

// NewBaseDelegate returns a delegate recognizing exactly the events
// named, matched case-insensitively.
func NewBaseDelegate(emitter Emitter, allowedEvents ...string) *BaseDelegate {
	allowed := make(map[string]struct{}, len(allowedEvents))
	for _, e := range allowedEvents {
		allowed[strings.ToLower(e)] = struct{}{}
	}
	return &BaseDelegate{
		allowed: allowed,
		subs:    registries.NewSubscriptionTable(),
		emitter: emitter,
	}
}

// HandleSubscription implements interfaces.EventDelegate: validates
// event against the allow-list, then toggles the subscription.
func (d *BaseDelegate) HandleSubscription(connectionID uint32, event string, listen bool) error {
	key := strings.ToLower(event)
	if _, ok := d.allowed[key]; !ok {
		return ErrUnknownEvent
	}
	if listen {
		d.subs.Subscribe(connectionID, key)
	} else {
		d.subs.Unsubscribe(connectionID, key)
	}
	return nil
}

// HandleEvent implements interfaces.EventDelegate: fans params out to
// every connection currently subscribed to event.
func (d *BaseDelegate) HandleEvent(event string, params interface{}) {
	key := strings.ToLower(event)
	for _, connectionID := range d.subs.SubscribersOf(key) {
		d.emitter.Emit(connectionID, event, params)
	}
}

// UnsubscribeAll drops every subscription held by connectionID,
// called on disconnect cleanup.
func (d *BaseDelegate) UnsubscribeAll(connectionID uint32) {
	d.subs.UnsubscribeAll(connectionID)
}

// IsSubscribed reports whether connectionID currently subscribes to
// event, case-insensitively.
func (d *BaseDelegate) IsSubscribed(connectionID uint32, event string) bool {
	return d.subs.IsSubscribed(connectionID, strings.ToLower(event))
}
