// Package wsgateway is the WebSocket connection manager: it owns the
// loopback listener, performs the handshake, and exposes a
// handler-triple {onAuth, onMessage, onDisconnect} that the rest of
// the gateway wires up.
package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// outboundQueueDepth bounds how many pending frames a connection will
// buffer before WriteJSON starts blocking on the writer goroutine. The
// gateway fans events out one delegate call at a time rather than in
// the teacher's classroom broadcast bursts, so a shallower queue than
// a chat server needs is enough to absorb a slow client without
// hiding backpressure from the caller for long.
const outboundQueueDepth = 32

// Connection wraps one accepted WebSocket with the single-writer
// goroutine pattern: every WriteJSON hands its payload to writeCh, and
// only writeLoop ever calls the underlying gorilla/websocket write
// methods, eliminating concurrent-write races on the socket.
type Connection struct {
	conn             *websocket.Conn
	id               uint32
	writeCh          chan []byte
	writeTimeout     time.Duration
	appID            string
	jsonRPCCompliant bool
	ctx              context.Context
	cancel           context.CancelFunc
	closeOnce        sync.Once
	mu               sync.RWMutex
}

// newConnection wraps conn with id as its connection identity, using
// writeTimeout as the deadline for both draining a queued frame onto
// the socket and admitting a new one onto writeCh — the same budget
// the manager already enforces for ping control frames. The caller
// sets appID/jsonRPCCompliant once onAuth succeeds.
func newConnection(conn *websocket.Conn, id uint32, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		writeCh:      make(chan []byte, outboundQueueDepth),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
		close(c.writeCh)
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON implements interfaces.Connection.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close implements interfaces.Connection. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// ConnectionID implements interfaces.Connection.
func (c *Connection) ConnectionID() uint32 {
	return c.id
}

// setIdentity records the appID/compliance bound at handshake time.
func (c *Connection) setIdentity(appID string, jsonRPCCompliant bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appID = appID
	c.jsonRPCCompliant = jsonRPCCompliant
}

// AppID implements interfaces.Connection.
func (c *Connection) AppID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appID
}

// IsJSONRPCCompliant implements interfaces.Connection.
func (c *Connection) IsJSONRPCCompliant() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jsonRPCCompliant
}
