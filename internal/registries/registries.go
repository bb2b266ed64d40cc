// Package registries holds the gateway's connection-scoped and
// app-scoped lookup tables. Each table owns its own mutex and exposes
// O(1) operations with absent-sentinel semantics: a missing key is
// reported via a boolean or zero value, never an error, since "not
// yet registered" is routine rather than exceptional.
package registries

import (
	"sync"

	"appgateway/pkg/types"
)

// ConnectionEntry is what the connection table stores per connection.
type ConnectionEntry struct {
	AppID            string
	JSONRPCCompliant bool
}

// ConnectionTable maps a connection id to its bound application
// identity and wire-protocol compliance flag, generalized from a
// userID-keyed connection map to numeric connection ids.
type ConnectionTable struct {
	mu      sync.RWMutex
	entries map[uint32]ConnectionEntry
	byAppID map[string]uint32
}

// NewConnectionTable returns an empty connection table.
func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{
		entries: make(map[uint32]ConnectionEntry),
		byAppID: make(map[string]uint32),
	}
}

// Register binds connectionID to appID and records its compliance
// flag. A second Register for the same connectionID replaces the
// entry in place, for re-authentication.
func (t *ConnectionTable) Register(connectionID uint32, appID string, jsonRPCCompliant bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[connectionID] = ConnectionEntry{AppID: appID, JSONRPCCompliant: jsonRPCCompliant}
	t.byAppID[appID] = connectionID
}

// Unregister removes connectionID's entry. Idempotent.
func (t *ConnectionTable) Unregister(connectionID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[connectionID]
	if !ok {
		return
	}
	delete(t.entries, connectionID)
	if t.byAppID[entry.AppID] == connectionID {
		delete(t.byAppID, entry.AppID)
	}
}

// AppID returns the application identity bound to connectionID.
func (t *ConnectionTable) AppID(connectionID uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[connectionID]
	return entry.AppID, ok
}

// IsJSONRPCCompliant reports the compliance flag recorded at Register
// time, defaulting to false for an unknown connection.
func (t *ConnectionTable) IsJSONRPCCompliant(connectionID uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.entries[connectionID].JSONRPCCompliant
}

// ConnectionForApp returns the connection id currently bound to appID.
func (t *ConnectionTable) ConnectionForApp(appID string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.byAppID[appID]
	return id, ok
}

// Count returns the number of currently registered connections, used
// by the diagnostics endpoint's health snapshot.
func (t *ConnectionTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// SubscriptionTable tracks, per event name, the set of connection ids
// currently subscribed, one per-key map per event.
type SubscriptionTable struct {
	mu            sync.RWMutex
	subscribers   map[string]map[uint32]struct{}
	byConnection  map[uint32]map[string]struct{}
}

// NewSubscriptionTable returns an empty subscription table.
func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{
		subscribers:  make(map[string]map[uint32]struct{}),
		byConnection: make(map[uint32]map[string]struct{}),
	}
}

// Subscribe adds connectionID to event's subscriber set.
func (t *SubscriptionTable) Subscribe(connectionID uint32, event string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subscribers[event] == nil {
		t.subscribers[event] = make(map[uint32]struct{})
	}
	t.subscribers[event][connectionID] = struct{}{}

	if t.byConnection[connectionID] == nil {
		t.byConnection[connectionID] = make(map[string]struct{})
	}
	t.byConnection[connectionID][event] = struct{}{}
}

// Unsubscribe removes connectionID from event's subscriber set.
func (t *SubscriptionTable) Unsubscribe(connectionID uint32, event string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if subs, ok := t.subscribers[event]; ok {
		delete(subs, connectionID)
		if len(subs) == 0 {
			delete(t.subscribers, event)
		}
	}
	if events, ok := t.byConnection[connectionID]; ok {
		delete(events, event)
		if len(events) == 0 {
			delete(t.byConnection, connectionID)
		}
	}
}

// IsSubscribed reports whether connectionID currently subscribes to event.
func (t *SubscriptionTable) IsSubscribed(connectionID uint32, event string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.subscribers[event][connectionID]
	return ok
}

// SubscribersOf returns a snapshot of the connection ids subscribed to
// event, safe to iterate after the table is unlocked.
func (t *SubscriptionTable) SubscribersOf(event string) []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	subs := t.subscribers[event]
	out := make([]uint32, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	return out
}

// UnsubscribeAll removes every subscription held by connectionID, used
// on disconnect cleanup.
func (t *SubscriptionTable) UnsubscribeAll(connectionID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	events, ok := t.byConnection[connectionID]
	if !ok {
		return
	}
	for event := range events {
		if subs, ok := t.subscribers[event]; ok {
			delete(subs, connectionID)
			if len(subs) == 0 {
				delete(t.subscribers, event)
			}
		}
	}
	delete(t.byConnection, connectionID)
}

// LifecycleTable caches the last known lifecycle state per appID.
// Absent means the app has never reported a state, which the caller
// should treat as LifecycleUnloaded.
type LifecycleTable struct {
	mu     sync.RWMutex
	states map[string]types.LifecycleState
}

// NewLifecycleTable returns an empty lifecycle table.
func NewLifecycleTable() *LifecycleTable {
	return &LifecycleTable{states: make(map[string]types.LifecycleState)}
}

// Set records appID's current lifecycle state.
func (t *LifecycleTable) Set(appID string, state types.LifecycleState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[appID] = state
}

// Get returns appID's last recorded lifecycle state.
func (t *LifecycleTable) Get(appID string) (types.LifecycleState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[appID]
	return state, ok
}

// Delete removes appID's lifecycle entry, used on full teardown.
func (t *LifecycleTable) Delete(appID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, appID)
}

// NavigationIntent is the last navigation payload delivered to an app,
// replayed when the app re-enters the active lifecycle state.
type NavigationIntent struct {
	Params interface{}
}

// IntentCache holds the single most recent navigation intent per
// appID. Grounded on the original gateway's DispatchLastIntent /
// GetLastIntent pair, folded here into a plain cache rather than
// separate request handlers (those are out of this core's scope).
type IntentCache struct {
	mu      sync.RWMutex
	intents map[string]NavigationIntent
}

// NewIntentCache returns an empty intent cache.
func NewIntentCache() *IntentCache {
	return &IntentCache{intents: make(map[string]NavigationIntent)}
}

// Set records appID's most recent navigation intent, overwriting any
// previous one.
func (c *IntentCache) Set(appID string, intent NavigationIntent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents[appID] = intent
}

// Get returns appID's last recorded navigation intent.
func (c *IntentCache) Get(appID string) (NavigationIntent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	intent, ok := c.intents[appID]
	return intent, ok
}

// FocusRegistry tracks which single appID currently holds window
// focus, the way a window manager would. Only one app can be focused
// at a time; focusing a new app implicitly blurs the previous one.
type FocusRegistry struct {
	mu      sync.RWMutex
	focused string
}

// NewFocusRegistry returns a registry with no app focused.
func NewFocusRegistry() *FocusRegistry {
	return &FocusRegistry{}
}

// Focus sets appID as focused and returns the previously focused
// appID (possibly "" if none).
func (r *FocusRegistry) Focus(appID string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.focused
	r.focused = appID
	return previous
}

// Blur clears the focused app if it is currently appID. Blurring an
// app that is not focused is a no-op so stale blur calls can't clobber
// a newer focus.
func (r *FocusRegistry) Blur(appID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.focused == appID {
		r.focused = ""
	}
}

// Focused returns the currently focused appID, or "" if none.
func (r *FocusRegistry) Focused() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.focused
}

// InstanceTable is the bidirectional appId<->appInstanceId registry:
// the identifier the window manager assigns when it actually
// instantiates an application. appId and appInstanceId are distinct
// concepts: one app definition has at most one live instance under
// this core's single-instance-per-app assumption, so binding a new
// appInstanceId to an appID replaces the previous one in both
// directions (last wins).
type InstanceTable struct {
	mu         sync.RWMutex
	byApp      map[string]string
	byInstance map[string]string
}

// NewInstanceTable returns an empty instance table.
func NewInstanceTable() *InstanceTable {
	return &InstanceTable{
		byApp:      make(map[string]string),
		byInstance: make(map[string]string),
	}
}

// Set records appID's current appInstanceId, evicting whatever
// instance it previously held from the reverse map.
func (t *InstanceTable) Set(appID, appInstanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if previous, ok := t.byApp[appID]; ok {
		delete(t.byInstance, previous)
	}
	t.byApp[appID] = appInstanceID
	t.byInstance[appInstanceID] = appID
}

// Get returns appID's current appInstanceId.
func (t *InstanceTable) Get(appID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byApp[appID]
	return id, ok
}

// AppID is the reverse lookup: it returns the appID that owns
// appInstanceID, for producers (window-manager events, lifecycle
// callbacks) that only know the instance side of the pair.
func (t *InstanceTable) AppID(appInstanceID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byInstance[appInstanceID]
	return id, ok
}

// Delete removes appID's instance mapping in both directions.
func (t *InstanceTable) Delete(appID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if instance, ok := t.byApp[appID]; ok {
		delete(t.byInstance, instance)
	}
	delete(t.byApp, appID)
}
