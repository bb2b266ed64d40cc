package wsgateway

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"appgateway/pkg/types"
)

// AuthHandler validates the raw URI query string for a newly upgraded
// connection and decides whether to admit it.
type AuthHandler func(connectionID uint32, token string) bool

// MessageHandler is invoked for every well-formed inbound frame.
type MessageHandler func(connectionID uint32, frame *types.InboundFrame)

// DisconnectHandler is invoked exactly once per admitted connection.
type DisconnectHandler func(connectionID uint32)

type handlerSet struct {
	onAuth       AuthHandler
	onMessage    MessageHandler
	onDisconnect DisconnectHandler
}

func noOpHandlers() *handlerSet {
	return &handlerSet{
		onAuth:       func(uint32, string) bool { return false },
		onMessage:    func(uint32, *types.InboundFrame) {},
		onDisconnect: func(uint32) {},
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Manager listens on a loopback endpoint, performs the WebSocket
// handshake, and dispatches through a handler-triple that can be
// atomically swapped for a no-op set during shutdown.
type Manager struct {
	host           string
	port           int
	pingInterval   time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	handlers atomic.Pointer[handlerSet]
	nextID   atomic.Uint32

	mu          sync.RWMutex
	connections map[uint32]*Connection

	throttle *Throttle
	server   *http.Server

	diagnostics http.Handler
}

// NewManager constructs a manager bound to host:port. SetHandlers must
// be called before Start for onAuth to admit any connection.
func NewManager(host string, port int, pingInterval, readTimeout, writeTimeout time.Duration) *Manager {
	m := &Manager{
		host:         host,
		port:         port,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		connections:  make(map[uint32]*Connection),
		throttle:     NewThrottle(),
	}
	m.handlers.Store(noOpHandlers())
	return m
}

// SetHandlers installs the active handler-triple. Safe to call before
// Start; not intended to be swapped while connections are live except
// via Shutdown's no-op replacement.
func (m *Manager) SetHandlers(onAuth AuthHandler, onMessage MessageHandler, onDisconnect DisconnectHandler) {
	m.handlers.Store(&handlerSet{onAuth: onAuth, onMessage: onMessage, onDisconnect: onDisconnect})
}

// SetDiagnosticsHandler mounts h at /health on the same loopback
// listener the WebSocket upgrade path uses, so an operator health
// check never requires a second network listener. Must be called
// before Start.
func (m *Manager) SetDiagnosticsHandler(h http.Handler) {
	m.diagnostics = h
}

// Start begins listening and serving WebSocket upgrades. It blocks
// until the listener stops (typically via Shutdown).
func (m *Manager) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleUpgrade)
	if m.diagnostics != nil {
		mux.Handle("/health", m.diagnostics)
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	m.server = &http.Server{Addr: addr, Handler: mux}

	log.Printf("wsgateway: listening on %s", addr)
	err := m.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (m *Manager) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, ErrNonLoopbackPeer.Error(), http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsgateway: upgrade failed: %v", err)
		return
	}

	id := m.nextID.Add(1)
	wsConn := newConnection(conn, id, m.writeTimeout)

	m.mu.Lock()
	m.connections[id] = wsConn
	m.mu.Unlock()

	handlers := m.handlers.Load()
	if !handlers.onAuth(id, r.URL.RawQuery) {
		m.mu.Lock()
		delete(m.connections, id)
		m.mu.Unlock()
		_ = wsConn.Close()
		return
	}

	go m.readPump(wsConn, handlers)
}

func (m *Manager) readPump(conn *Connection, handlers *handlerSet) {
	defer func() {
		m.mu.Lock()
		delete(m.connections, conn.id)
		m.mu.Unlock()
		m.throttle.Forget(conn.id)
		handlers.onDisconnect(conn.id)
		_ = conn.Close()
	}()

	_ = conn.conn.SetReadDeadline(time.Now().Add(m.readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(m.readTimeout))
	})

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(m.writeTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("wsgateway: connection %d error: %v", conn.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		frame, ok := parseFrame(data)
		if !ok {
			log.Printf("wsgateway: dropping malformed frame from connection %d", conn.id)
			continue
		}

		if !m.throttle.Allow(conn.id) {
			log.Printf("wsgateway: dropping frame from connection %d, throttle exceeded", conn.id)
			continue
		}

		current := m.handlers.Load()
		current.onMessage(conn.id, frame)
	}
}

// SetIdentity records the appID/compliance bound to connectionID once
// the router or an authenticator has resolved it, so subsequent
// Connection() lookups return an interfaces.Connection carrying the
// right identity.
func (m *Manager) SetIdentity(connectionID uint32, appID string, jsonRPCCompliant bool) {
	m.mu.RLock()
	conn, ok := m.connections[connectionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	conn.setIdentity(appID, jsonRPCCompliant)
}

// Connection returns the live connection for connectionID, if any.
func (m *Manager) Connection(connectionID uint32) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[connectionID]
	return conn, ok
}

// Send unicasts v to connectionID.
func (m *Manager) Send(connectionID uint32, v interface{}) error {
	conn, ok := m.Connection(connectionID)
	if !ok {
		return ErrConnectionUnknown
	}
	return conn.WriteJSON(v)
}

// Quiesce atomically swaps in no-op handlers and waits a short
// stabilization window so any in-flight reader/handler calls observe
// the swap before the caller goes on to tear down anything handlers
// might still reach. Separated from Shutdown so callers can interleave
// their own teardown (clearing a responder's weak reference, revoking
// the telemetry timer) between the handler swap and the listener close.
func (m *Manager) Quiesce() {
	m.handlers.Store(noOpHandlers())
	time.Sleep(50 * time.Millisecond)
}

// Shutdown quiesces the handler-triple, then closes the listener and
// every live connection.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Quiesce()

	var err error
	if m.server != nil {
		err = m.server.Shutdown(ctx)
	}

	m.mu.Lock()
	for id, conn := range m.connections {
		_ = conn.Close()
		delete(m.connections, id)
	}
	m.mu.Unlock()

	return err
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
