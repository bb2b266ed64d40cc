package responder

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"appgateway/internal/workerpool"
	"appgateway/internal/wsgateway"
	"appgateway/pkg/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func startTestManager(t *testing.T) (*wsgateway.Manager, int) {
	t.Helper()
	port := freePort(t)
	m := wsgateway.NewManager("127.0.0.1", port, 30*time.Second, 60*time.Second, 5*time.Second)
	m.SetHandlers(
		func(uint32, string) bool { return true },
		func(uint32, *types.InboundFrame) {},
		func(uint32) {},
	)

	go func() { _ = m.Start() }()
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})

	// Poll until the listener accepts connections.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port)); err == nil {
			_ = conn.Close()
			return m, port
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("manager never started listening")
	return nil, 0
}

func dial(t *testing.T, port int) (*websocket.Conn, uint32) {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("127.0.0.1:%d", port), Path: "/"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, 1
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]interface{}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return out
}

func TestResponder_RespondDeliversSuccessEnvelopeToCompliantConnection(t *testing.T) {
	m, port := startTestManager(t)
	conn, connID := dial(t, port)
	time.Sleep(50 * time.Millisecond)
	m.SetIdentity(connID, "app-1", true)

	pool := workerpool.New(2, 8)
	defer pool.Shutdown()
	r := New(m, pool)

	r.Respond(types.GatewayContext{RequestID: 7, ConnectionID: connID}, map[string]interface{}{"ok": true}, nil)

	got := readJSON(t, conn)
	if got["id"] != float64(7) {
		t.Errorf("expected id 7, got %v", got["id"])
	}
	if got["jsonrpc"] != "2.0" {
		t.Errorf("expected jsonrpc 2.0 envelope, got %v", got)
	}
}

func TestResponder_RespondDeliversBareEnvelopeToNonCompliantConnection(t *testing.T) {
	m, port := startTestManager(t)
	conn, connID := dial(t, port)
	time.Sleep(50 * time.Millisecond)
	m.SetIdentity(connID, "app-1", false)

	pool := workerpool.New(2, 8)
	defer pool.Shutdown()
	r := New(m, pool)

	r.Respond(types.GatewayContext{RequestID: 9, ConnectionID: connID}, "plain-result", nil)

	got := readJSON(t, conn)
	if _, hasEnvelope := got["jsonrpc"]; hasEnvelope {
		t.Errorf("expected bare response without a jsonrpc envelope, got %v", got)
	}
	if got["id"] != float64(9) {
		t.Errorf("expected id 9, got %v", got["id"])
	}
}

func TestResponder_EmitSendsNotificationToCompliantConnection(t *testing.T) {
	m, port := startTestManager(t)
	conn, connID := dial(t, port)
	time.Sleep(50 * time.Millisecond)
	m.SetIdentity(connID, "app-1", true)

	pool := workerpool.New(2, 8)
	defer pool.Shutdown()
	r := New(m, pool)

	r.Emit(connID, "Lifecycle.onInactive", map[string]interface{}{"appId": "app-1"})

	got := readJSON(t, conn)
	if got["method"] != "Lifecycle.onInactive" {
		t.Errorf("expected notification method, got %v", got)
	}
}

func TestResponder_SilentNoOpForUnknownConnection(t *testing.T) {
	m, _ := startTestManager(t)

	pool := workerpool.New(2, 8)
	defer pool.Shutdown()
	r := New(m, pool)

	// No connection with id 999 exists; these must not panic or block.
	r.Respond(types.GatewayContext{RequestID: 1, ConnectionID: 999}, "x", nil)
	r.Emit(999, "Some.Event", nil)
	r.Request(999, 1, "some.method", nil)
}

func TestResponder_CloseInvalidatesReferenceSoQueuedJobsNoOp(t *testing.T) {
	m, port := startTestManager(t)
	conn, connID := dial(t, port)
	time.Sleep(50 * time.Millisecond)
	m.SetIdentity(connID, "app-1", true)
	_ = conn

	pool := workerpool.New(1, 8)
	defer pool.Shutdown()
	r := New(m, pool)
	r.Close()

	r.Respond(types.GatewayContext{RequestID: 1, ConnectionID: connID}, "x", nil)

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var out map[string]interface{}
	if err := conn.ReadJSON(&out); err == nil {
		t.Fatal("expected no message to be delivered after Close invalidated the responder's reference")
	}
}
