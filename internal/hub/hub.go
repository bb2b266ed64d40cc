// Package hub wires the gateway's components together behind the
// connection manager's handler-triple: it resolves a connection's
// identity on auth, offloads dispatch onto the shared worker pool on
// every message (so a slow handler never stalls a reader goroutine),
// and tears down a connection's registry entries on disconnect.
package hub

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"appgateway/internal/registries"
	"appgateway/internal/responder"
	"appgateway/internal/router"
	"appgateway/internal/telemetry"
	"appgateway/internal/workerpool"
	"appgateway/internal/wsgateway"
	"appgateway/pkg/types"
)

// Authenticator resolves the raw URI query string a connection
// presented at handshake time into an application identity. A real
// authenticator is typically a separate downstream service;
// DefaultAuthenticator below is the local stand-in used when nothing
// else is wired.
type Authenticator interface {
	Resolve(rawQuery string) (appID string, jsonRPCCompliant bool, ok bool)
}

// Unsubscriber is implemented by every event delegate the hub must
// clean up on disconnect.
type Unsubscriber interface {
	UnsubscribeAll(connectionID uint32)
}

// InstanceBinder binds an appID to the appInstanceId the hub mints
// for it at auth time. The lifecycle delegate implements this over
// its bidirectional appId<->appInstanceId registry; a delegate passed
// to New that doesn't implement it is simply not bound.
type InstanceBinder interface {
	BindInstance(appID, appInstanceID string)
}

// Hub owns the wiring between the connection manager, the router, the
// responder, and telemetry. SetHandlers on the manager is called once,
// at Start.
type Hub struct {
	manager       *wsgateway.Manager
	router        *router.Router
	responder     *responder.Responder
	telemetry     *telemetry.Aggregator
	pool          *workerpool.Pool
	connections   *registries.ConnectionTable
	authenticator Authenticator
	delegates     []Unsubscriber
	instances     InstanceBinder

	mu      sync.Mutex
	running bool
}

// New builds a Hub. delegates lists every event delegate whose
// subscriber state must be cleared when a connection disconnects.
func New(
	manager *wsgateway.Manager,
	rtr *router.Router,
	resp *responder.Responder,
	telem *telemetry.Aggregator,
	pool *workerpool.Pool,
	connections *registries.ConnectionTable,
	authenticator Authenticator,
	delegates ...Unsubscriber,
) *Hub {
	h := &Hub{
		manager:       manager,
		router:        rtr,
		responder:     resp,
		telemetry:     telem,
		pool:          pool,
		connections:   connections,
		authenticator: authenticator,
		delegates:     delegates,
	}

	for _, d := range delegates {
		if binder, ok := d.(InstanceBinder); ok {
			h.instances = binder
		}
	}

	return h
}

// Start installs the hub's handler-triple on the connection manager.
// The manager's own Start (the blocking accept loop) is called
// separately by the process entrypoint.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.manager.SetHandlers(h.onAuth, h.onMessage, h.onDisconnect)
	return nil
}

func (h *Hub) onAuth(connectionID uint32, rawQuery string) bool {
	appID, compliant, ok := h.authenticator.Resolve(rawQuery)
	if !ok || !types.IsValidAppID(appID) {
		return false
	}

	h.connections.Register(connectionID, appID, compliant)
	h.manager.SetIdentity(connectionID, appID, compliant)
	if h.instances != nil {
		h.instances.BindInstance(appID, fmt.Sprintf("%s#%d", appID, connectionID))
	}
	if h.telemetry != nil {
		h.telemetry.IncrementWebSocketConnections()
	}
	return true
}

func (h *Hub) onMessage(connectionID uint32, frame *types.InboundFrame) {
	appID, _ := h.connections.AppID(connectionID)
	gctx := types.GatewayContext{
		RequestID:    frameRequestID(frame),
		ConnectionID: connectionID,
		AppID:        appID,
	}

	err := h.pool.Submit(func() {
		result, rpcErr := h.router.Dispatch(context.Background(), gctx, frame)
		h.responder.Respond(gctx, result, rpcErr)
	})
	if err != nil {
		log.Printf("hub: dropping frame from connection %d, dispatch queue saturated: %v", connectionID, err)
	}
}

func (h *Hub) onDisconnect(connectionID uint32) {
	h.connections.Unregister(connectionID)
	for _, d := range h.delegates {
		d.UnsubscribeAll(connectionID)
	}
	if h.telemetry != nil {
		h.telemetry.DecrementWebSocketConnections()
	}
}

func frameRequestID(frame *types.InboundFrame) uint32 {
	if frame.ID == nil {
		return 0
	}
	return *frame.ID
}

// DefaultAuthenticator resolves the session token directly to an
// appId: the raw query's "session" value is treated as the appId
// itself, and a "compliant=true" key opts the connection into
// JSON-RPC-compliant envelopes. Local-only deployments that need a
// real session->appId lookup wire in their own Authenticator instead.
type DefaultAuthenticator struct{}

func (DefaultAuthenticator) Resolve(rawQuery string) (appID string, jsonRPCCompliant bool, ok bool) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", false, false
	}

	session := values.Get("session")
	if session == "" {
		return "", false, false
	}

	compliant := strings.EqualFold(values.Get("compliant"), "true")
	return session, compliant, true
}
