// Package app wires the gateway's components together in strict
// dependency order: each layer is constructed only once everything it
// depends on already exists, and torn down in the fixed shutdown order.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"appgateway/internal/api"
	"appgateway/internal/config"
	"appgateway/internal/events"
	"appgateway/internal/hub"
	"appgateway/internal/registries"
	"appgateway/internal/resolution"
	"appgateway/internal/responder"
	"appgateway/internal/router"
	"appgateway/internal/telemetry"
	"appgateway/internal/telemetrysink"
	"appgateway/internal/workerpool"
	"appgateway/internal/wsgateway"
)

// Application coordinates every gateway component behind a single
// Start/Stop pair.
type Application struct {
	config *config.Config

	sink              *telemetrysink.Sink
	telemetryAggr     *telemetry.Aggregator
	resolutionTable   *resolution.Table
	resolutionWatcher *resolution.Watcher
	connections       *registries.ConnectionTable
	lifecycleDelegate *events.LifecycleDelegate
	rtr               *router.Router
	pool              *workerpool.Pool
	manager           *wsgateway.Manager
	resp              *responder.Responder
	coordinator       *hub.Hub
}

// New builds an Application from cfg, wiring components in order:
// telemetry sink → telemetry aggregator → resolution table (+
// watcher) → registries → connection manager → responder → event
// delegates → router → hub. Nothing is started yet; call Start.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: telemetry sink (foundation layer; everything downstream
	// only ever writes through the interfaces.TelemetrySink contract).
	sink, err := telemetrysink.Open(&telemetrysink.Config{
		DatabasePath:    cfg.Telemetry.SinkPath,
		MaxConnections:  5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry sink: %w", err)
	}

	// STEP 2: telemetry aggregator over the sink.
	format := telemetry.FormatJSON
	if cfg.Telemetry.CompactFormat {
		format = telemetry.FormatCompact
	}
	telemetryAggr := telemetry.New(sink, cfg.Telemetry.FlushInterval, format)

	// STEP 3: resolution table, loaded once at startup and optionally
	// watched for hot reload.
	resolutionTable := resolution.NewTable()
	if err := resolutionTable.LoadFile(cfg.Resolution.Path); err != nil {
		sink.Close()
		return nil, fmt.Errorf("failed to load resolution table: %w", err)
	}

	var watcher *resolution.Watcher
	if cfg.Resolution.ReloadOnChange {
		watcher, err = resolution.NewWatcher(resolutionTable, cfg.Resolution.Path)
		if err != nil {
			sink.Close()
			return nil, fmt.Errorf("failed to start resolution watcher: %w", err)
		}
	}

	// STEP 4: in-memory registries (component A).
	connections := registries.NewConnectionTable()

	// STEP 5: worker pool, shared by the hub (dispatch) and the
	// responder (writes).
	pool := workerpool.New(cfg.Listener.WorkerPoolSize, cfg.Listener.BufferSize)

	// STEP 6: connection manager (component C), built before the
	// responder and router so both can be handed a live *Manager.
	manager := wsgateway.NewManager(
		cfg.Listener.Host,
		cfg.Listener.Port,
		cfg.Listener.PingInterval,
		cfg.Listener.ReadTimeout,
		cfg.Listener.WriteTimeout,
	)
	manager.SetDiagnosticsHandler(api.NewServer(sink, connections))

	// STEP 7: responder (component F), over the manager and pool, so
	// the event delegates constructed next can already emit through it.
	resp := responder.New(manager, pool)

	// STEP 8: event delegates (component E). The lifecycle delegate is
	// the only one wired by default; a deployment needing additional
	// event surfaces registers more BaseDelegate instances against the
	// router below before Start.
	lifecycleDelegate := events.NewLifecycleDelegate(resp)

	// STEP 9: router (component D), wired to the resolution table and
	// telemetry aggregator, with the lifecycle delegate registered
	// under its resolution alias.
	rtr := router.New(resolutionTable, telemetryAggr)
	rtr.RegisterEventDelegate("lifecycle", lifecycleDelegate)

	// STEP 10: hub, the coordination layer that installs the
	// handler-triple on the manager once Start runs.
	coordinator := hub.New(
		manager,
		rtr,
		resp,
		telemetryAggr,
		pool,
		connections,
		hub.DefaultAuthenticator{},
		lifecycleDelegate,
	)

	return &Application{
		config:            cfg,
		sink:              sink,
		telemetryAggr:     telemetryAggr,
		resolutionTable:   resolutionTable,
		resolutionWatcher: watcher,
		connections:       connections,
		lifecycleDelegate: lifecycleDelegate,
		rtr:               rtr,
		pool:              pool,
		manager:           manager,
		resp:              resp,
		coordinator:       coordinator,
	}, nil
}

// Lifecycle exposes the lifecycle delegate so an out-of-process
// producer bridge can drive state, focus, and navigation-intent
// updates.
func (a *Application) Lifecycle() *events.LifecycleDelegate {
	return a.lifecycleDelegate
}

// Router exposes the router so a deployment can register additional
// request handlers and event delegates before Start.
func (a *Application) Router() *router.Router {
	return a.rtr
}

// Start brings the telemetry aggregator's periodic flush online,
// installs the hub's handler-triple, and starts the connection
// manager's accept loop in the background.
func (a *Application) Start(ctx context.Context) error {
	if err := a.telemetryAggr.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize telemetry aggregator: %w", err)
	}

	if err := a.coordinator.Start(); err != nil {
		a.telemetryAggr.Deinitialize()
		return fmt.Errorf("failed to start hub: %w", err)
	}

	log.Printf("app-gateway: starting on %s:%d", a.config.Listener.Host, a.config.Listener.Port)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.manager.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case err := <-serverErrCh:
		a.telemetryAggr.Deinitialize()
		return fmt.Errorf("connection manager error: %w", err)
	case <-time.After(100 * time.Millisecond):
		log.Printf("app-gateway: started successfully")
		return nil
	case <-ctx.Done():
		a.telemetryAggr.Deinitialize()
		return ctx.Err()
	}
}

// Stop tears the application down in a fixed order: quiesce the
// connection manager's handlers, clear the responder's weak
// reference, revoke the telemetry timer and flush once more, then
// close the listener and every connection.
func (a *Application) Stop(ctx context.Context) error {
	log.Printf("app-gateway: shutting down")

	// Steps 1-2: swap in no-op handlers, yield to in-flight handlers.
	a.manager.Quiesce()

	// Step 3: clear the weak self-reference so queued responder jobs
	// observe an expired target and no-op.
	a.resp.Close()

	// Step 4: revoke the telemetry timer and perform one final flush.
	a.telemetryAggr.Deinitialize()

	if a.resolutionWatcher != nil {
		if err := a.resolutionWatcher.Close(); err != nil {
			log.Printf("app-gateway: resolution watcher shutdown error: %v", err)
		}
	}

	// Step 5: close the listener and every live connection, then join
	// the worker pool and the telemetry sink.
	if err := a.manager.Shutdown(ctx); err != nil {
		log.Printf("app-gateway: connection manager shutdown error: %v", err)
	}

	a.pool.Shutdown()

	if err := a.sink.Close(); err != nil {
		log.Printf("app-gateway: telemetry sink shutdown error: %v", err)
	}

	log.Printf("app-gateway: shutdown complete")
	return nil
}

// Addr returns the loopback address the connection manager listens on.
func (a *Application) Addr() string {
	return fmt.Sprintf("%s:%d", a.config.Listener.Host, a.config.Listener.Port)
}
