// Package responder implements the gateway's asynchronous write path:
// Respond, Emit, and Request each submit a weak-self-guarded work item
// to the shared worker pool that resolves to a send on the connection
// manager, silently doing nothing if the target connection is gone by
// the time the job runs.
package responder

import (
	"appgateway/internal/weakref"
	"appgateway/internal/workerpool"
	"appgateway/internal/wsgateway"
	"appgateway/pkg/types"
)

// Responder submits outbound work items to pool, resolving them
// through a weak reference to manager so a teardown mid-flight leaves
// queued jobs as silent no-ops instead of touching a freed manager.
type Responder struct {
	manager *weakref.Ref[wsgateway.Manager]
	pool    *workerpool.Pool
}

// New builds a Responder over manager and pool. Invalidate must be
// called (via Close) before manager is discarded so in-flight jobs
// stop dereferencing it.
func New(manager *wsgateway.Manager, pool *workerpool.Pool) *Responder {
	return &Responder{
		manager: weakref.New(manager),
		pool:    pool,
	}
}

// Close invalidates the responder's reference to its connection
// manager. Any job already queued or running sees a missing target
// and becomes a no-op; idempotent.
func (r *Responder) Close() {
	r.manager.Invalidate()
}

// Respond answers gctx's originating frame with result on success or
// rpcErr on failure, writing the envelope shape appropriate to the
// connection's JSON-RPC compliance.
func (r *Responder) Respond(gctx types.GatewayContext, result interface{}, rpcErr *types.RPCError) {
	r.submit(func(m *wsgateway.Manager) {
		deliverResponse(m, gctx, result, rpcErr)
	})
}

// Emit pushes an unsolicited notification to connectionID: a JSON-RPC
// notification for compliant connections, or a bare response keyed by
// requestId 0 (no originating frame) for non-compliant ones.
func (r *Responder) Emit(connectionID uint32, method string, payload interface{}) {
	r.submit(func(m *wsgateway.Manager) {
		conn, ok := m.Connection(connectionID)
		if !ok {
			return
		}
		if conn.IsJSONRPCCompliant() {
			_ = m.Send(connectionID, types.EventNotification{
				JSONRPC: "2.0",
				Method:  method,
				Params:  payload,
			})
			return
		}
		_ = m.Send(connectionID, types.BareResponse{ID: 0, Result: payload})
	})
}

// Request sends a server-initiated JSON-RPC request to connectionID,
// identified by id so the application's reply can be correlated by
// the caller's own bookkeeping.
func (r *Responder) Request(connectionID, id uint32, method string, params interface{}) {
	r.submit(func(m *wsgateway.Manager) {
		_ = m.Send(connectionID, types.InboundFrame{ID: &id, Method: method, Params: params})
	})
}

func (r *Responder) submit(work func(*wsgateway.Manager)) {
	// Queue saturation degrades to a dropped send rather than a blocked
	// caller; the caller (router or event delegate) never waits on it.
	_ = r.pool.Submit(func() {
		m, ok := r.manager.Get()
		if !ok {
			return
		}
		work(m)
	})
}

func deliverResponse(m *wsgateway.Manager, gctx types.GatewayContext, result interface{}, rpcErr *types.RPCError) {
	conn, ok := m.Connection(gctx.ConnectionID)
	if !ok {
		return
	}

	if conn.IsJSONRPCCompliant() {
		if rpcErr != nil {
			_ = m.Send(gctx.ConnectionID, types.ErrorResponse{JSONRPC: "2.0", ID: gctx.RequestID, Error: rpcErr})
			return
		}
		_ = m.Send(gctx.ConnectionID, types.SuccessResponse{JSONRPC: "2.0", ID: gctx.RequestID, Result: result})
		return
	}

	_ = m.Send(gctx.ConnectionID, types.BareResponse{ID: gctx.RequestID, Result: result, Error: rpcErr})
}
