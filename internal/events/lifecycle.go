package events

import (
	"appgateway/internal/registries"
	"appgateway/pkg/types"
)

const (
	eventStateChanged   = "Lifecycle2.onStateChanged"
	eventInactive       = "Lifecycle.onInactive"
	eventSuspended      = "Lifecycle.onSuspended"
	eventUnloading      = "Lifecycle.onUnloading"
	eventForeground     = "Lifecycle.onForeground"
	eventBackground     = "Lifecycle.onBackground"
	eventFocusedChanged = "Presentation.onFocusedChanged"
	eventNavigateTo     = "Discovery.onNavigateTo"
)

// LifecycleDelegate is the full lifecycle event surface: beyond
// subscriber fan-out, it owns the lifecycle-state cache, the
// navigation-intent cache, and the focused-app registry, and derives
// the legacy Lifecycle-1 event alongside every Lifecycle-2 state
// change.
type LifecycleDelegate struct {
	*BaseDelegate

	states    *registries.LifecycleTable
	focus     *registries.FocusRegistry
	intents   *registries.IntentCache
	instances *registries.InstanceTable
}

// NewLifecycleDelegate wires a lifecycle delegate over emitter,
// recognizing the fixed set of lifecycle, presentation, and discovery
// events it owns.
func NewLifecycleDelegate(emitter Emitter) *LifecycleDelegate {
	return &LifecycleDelegate{
		BaseDelegate: NewBaseDelegate(emitter,
			eventStateChanged,
			eventInactive,
			eventSuspended,
			eventUnloading,
			eventForeground,
			eventBackground,
			eventFocusedChanged,
			eventNavigateTo,
		),
		states:    registries.NewLifecycleTable(),
		focus:     registries.NewFocusRegistry(),
		intents:   registries.NewIntentCache(),
		instances: registries.NewInstanceTable(),
	}
}

// BindInstance records appID's current appInstanceId, implementing
// hub.InstanceBinder so the hub can bind a connection's identity to
// its running instance as soon as auth resolves the appID. Rebinding
// an appID that already has a live instance replaces it (last wins).
func (d *LifecycleDelegate) BindInstance(appID, appInstanceID string) {
	d.instances.Set(appID, appInstanceID)
}

// InstanceFor returns the appInstanceId currently bound to appID.
func (d *LifecycleDelegate) InstanceFor(appID string) (string, bool) {
	return d.instances.Get(appID)
}

// AppFor is the reverse lookup: it returns the appID that owns
// appInstanceID, for callers (window-manager state/focus callbacks)
// that only carry the instance id.
func (d *LifecycleDelegate) AppFor(appInstanceID string) (string, bool) {
	return d.instances.AppID(appInstanceID)
}

// legacyEventFor maps a new Lifecycle-2 state (and current focus) to
// its Lifecycle-1 event name. The second return is false when no
// legacy event corresponds.
func legacyEventFor(newState types.LifecycleState, focused bool) (string, bool) {
	switch newState {
	case types.LifecyclePaused:
		return eventInactive, true
	case types.LifecycleSuspended, types.LifecycleHibernated:
		return eventSuspended, true
	case types.LifecycleUnloaded, types.LifecycleTerminating:
		return eventUnloading, true
	case types.LifecycleActive:
		if focused {
			return eventForeground, true
		}
		return eventBackground, true
	default:
		return "", false
	}
}

// OnStateChange records appInstanceID's transition to newState and
// dispatches Lifecycle2.onStateChanged followed by the derived
// legacy Lifecycle.on<Variant> event. Entering Active additionally
// replays the most recent navigation intent as Discovery.onNavigateTo.
func (d *LifecycleDelegate) OnStateChange(appInstanceID string, newState types.LifecycleState) {
	oldState, _ := d.states.Get(appInstanceID)
	d.states.Set(appInstanceID, newState)

	d.HandleEvent(eventStateChanged, map[string]interface{}{
		"oldState": oldState.Name(),
		"newState": newState.Name(),
	})

	if legacy, ok := legacyEventFor(newState, d.focus.Focused() == appInstanceID); ok {
		d.HandleEvent(legacy, nil)
	}

	if newState == types.LifecycleActive {
		if intent, ok := d.intents.Get(appInstanceID); ok {
			d.HandleEvent(eventNavigateTo, intent.Params)
		}
	}
}

// OnFocusChange records a focus or blur from the window-manager
// producer and dispatches Presentation.onFocusedChanged, plus
// Lifecycle.onForeground/onBackground when the app is currently
// Active.
func (d *LifecycleDelegate) OnFocusChange(appInstanceID string, focused bool) {
	if focused {
		d.focus.Focus(appInstanceID)
	} else {
		d.focus.Blur(appInstanceID)
	}

	d.HandleEvent(eventFocusedChanged, map[string]interface{}{"value": focused})

	state, ok := d.states.Get(appInstanceID)
	if !ok || state != types.LifecycleActive {
		return
	}
	if focused {
		d.HandleEvent(eventForeground, nil)
	} else {
		d.HandleEvent(eventBackground, nil)
	}
}

// SetNavigationIntent records appInstanceID's most recent navigation
// payload, to be replayed the next time it enters Active. Grounded
// on the original gateway's DispatchLastIntent/GetLastIntent pair.
func (d *LifecycleDelegate) SetNavigationIntent(appInstanceID string, params interface{}) {
	d.intents.Set(appInstanceID, registries.NavigationIntent{Params: params})
}

// State returns appInstanceID's last recorded lifecycle state.
func (d *LifecycleDelegate) State(appInstanceID string) (types.LifecycleState, bool) {
	return d.states.Get(appInstanceID)
}

// Focused returns the currently focused appInstanceID, or "" if none.
func (d *LifecycleDelegate) Focused() string {
	return d.focus.Focused()
}
