// Package router implements the gateway's request path: resolve an
// inbound method, apply event-vs-request policy, enrich context,
// dispatch downstream, and record a telemetry side-effect for every
// path.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"appgateway/internal/resolution"
	"appgateway/pkg/interfaces"
	"appgateway/pkg/types"
)

// TelemetryRecorder is the telemetry side effect every dispatch
// records, keyed by entry.alias as the plugin name.
type TelemetryRecorder interface {
	RecordAPICall(plugin, method string, success bool, latencyMs float64)
}

// Router resolves, routes, and dispatches inbound frames through
// exactly one dispatch path, keyed by the resolution table.
type Router struct {
	resolution *resolution.Table
	telemetry  TelemetryRecorder

	mu              sync.RWMutex
	requestHandlers map[string]interfaces.RequestHandler
	eventDelegates  map[string]interfaces.EventDelegate
}

// New constructs a Router over table, recording telemetry through
// telemetry.
func New(table *resolution.Table, telemetry TelemetryRecorder) *Router {
	return &Router{
		resolution:      table,
		telemetry:       telemetry,
		requestHandlers: make(map[string]interfaces.RequestHandler),
		eventDelegates:  make(map[string]interfaces.EventDelegate),
	}
}

// RegisterRequestHandler binds a downstream request handler under the
// callsign alias, the name a resolution entry's alias field refers to.
func (r *Router) RegisterRequestHandler(alias string, handler interfaces.RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestHandlers[alias] = handler
}

// RegisterEventDelegate binds an event delegate under the callsign
// alias.
func (r *Router) RegisterEventDelegate(alias string, delegate interfaces.EventDelegate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventDelegates[alias] = delegate
}

func (r *Router) requestHandler(alias string) (interfaces.RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.requestHandlers[alias]
	return h, ok
}

func (r *Router) eventDelegate(alias string) (interfaces.EventDelegate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.eventDelegates[alias]
	return d, ok
}

// Dispatch implements interfaces.Router: resolve the method, apply
// event-vs-request policy, dispatch, and record telemetry for every
// resolved method regardless of outcome. A method missing from the
// resolution table returns ErrMethodNotFound without recording
// telemetry.
func (r *Router) Dispatch(ctx context.Context, gctx types.GatewayContext, frame *types.InboundFrame) (interface{}, *types.RPCError) {
	method := types.NormalizeMethod(frame.Method)

	entry, ok := r.resolution.Lookup(method)
	if !ok {
		return nil, types.ErrMethodNotFound
	}

	start := time.Now()

	if entry.IsEvent() {
		result, rpcErr := r.dispatchEvent(gctx, entry, frame.Params)
		r.recordTelemetry(entry.Alias, method, rpcErr == nil, elapsedMs(start))
		return result, rpcErr
	}

	result, rpcErr := r.dispatchRequest(ctx, gctx, entry, frame.Params)
	r.recordTelemetry(entry.Alias, method, rpcErr == nil, elapsedMs(start))
	return result, rpcErr
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// dispatchEvent toggles an event subscription for the resolved entry.
func (r *Router) dispatchEvent(gctx types.GatewayContext, entry *types.ResolutionEntry, params interface{}) (interface{}, *types.RPCError) {
	listen, ok := extractListenParam(params)
	if !ok {
		return nil, types.NewInvalidListenParamError()
	}

	delegate, ok := r.eventDelegate(entry.Alias)
	if !ok {
		return nil, types.ErrNotAvailable
	}

	if err := delegate.HandleSubscription(gctx.ConnectionID, entry.Event, listen); err != nil {
		return nil, &types.RPCError{Code: types.CodeNotAvailable, Message: err.Error()}
	}

	return nil, nil
}

// extractListenParam pulls the mandatory boolean "listen" field out of
// params using gjson, avoiding a full unmarshal into a typed struct
// for what is otherwise arbitrary JSON.
func extractListenParam(params interface{}) (bool, bool) {
	data, err := json.Marshal(params)
	if err != nil {
		return false, false
	}

	result := gjson.GetBytes(data, "listen")
	if !result.Exists() || (result.Type != gjson.True && result.Type != gjson.False) {
		return false, false
	}
	return result.Bool(), true
}

// dispatchRequest routes a resolved request entry to its handler.
func (r *Router) dispatchRequest(ctx context.Context, gctx types.GatewayContext, entry *types.ResolutionEntry, params interface{}) (interface{}, *types.RPCError) {
	handler, ok := r.requestHandler(entry.Alias)
	if !ok {
		return nil, types.ErrNotAvailable
	}

	finalParams, err := buildFinalParams(entry, gctx.AppID, params)
	if err != nil {
		return nil, &types.RPCError{Code: types.CodeInvalidParams, Message: err.Error()}
	}

	result, err := handler.Handle(ctx, gctx, entry, finalParams)
	if err != nil {
		if rpcErr, ok := err.(*types.RPCError); ok {
			return nil, rpcErr
		}
		return nil, &types.RPCError{Code: types.CodeNotAvailable, Message: err.Error()}
	}
	return result, nil
}

// buildFinalParams wraps params with the additional-context envelope
// when entry.IncludeContext is set, using sjson to merge the origin
// into a copy of entry.AdditionalContext without round-tripping
// through a typed Go struct.
func buildFinalParams(entry *types.ResolutionEntry, originAlias string, params interface{}) (interface{}, error) {
	if !entry.IncludeContext {
		return params, nil
	}

	contextData, err := json.Marshal(entry.AdditionalContext)
	if err != nil {
		return nil, fmt.Errorf("marshal additionalContext: %w", err)
	}
	contextData, err = sjson.SetBytes(contextData, "origin", originAlias)
	if err != nil {
		return nil, fmt.Errorf("merge origin into additionalContext: %w", err)
	}

	var mergedContext map[string]interface{}
	if err := json.Unmarshal(contextData, &mergedContext); err != nil {
		return nil, fmt.Errorf("unmarshal merged additionalContext: %w", err)
	}

	return map[string]interface{}{
		"params":             params,
		"_additionalContext": mergedContext,
	}, nil
}

func (r *Router) recordTelemetry(plugin, method string, success bool, latencyMs float64) {
	if r.telemetry == nil {
		return
	}
	r.telemetry.RecordAPICall(plugin, method, success, latencyMs)
}
