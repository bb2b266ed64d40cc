package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"appgateway/internal/api"
	"appgateway/internal/config"
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

func writeResolutionFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolution.json")
	doc := `{"resolutions":{"lifecycle.subscribe":{"alias":"lifecycle","event":"Lifecycle2.onStateChanged"}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write resolution file: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Listener.Port = freePort(t)
	cfg.Resolution.Path = writeResolutionFile(t)
	cfg.Resolution.ReloadOnChange = false
	cfg.Telemetry.SinkPath = filepath.Join(t.TempDir(), "telemetry.db")
	cfg.Telemetry.FlushInterval = time.Hour
	return cfg
}

func startApp(t *testing.T) *Application {
	t.Helper()
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a
}

func TestApplication_LifecycleSubscriptionRoundTripsThroughStack(t *testing.T) {
	a := startApp(t)

	u := url.URL{Scheme: "ws", Host: a.Addr(), Path: "/", RawQuery: "session=app-1&compliant=true"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	id := uint32(1)
	frame := types.InboundFrame{ID: &id, Method: "lifecycle.subscribe", Params: map[string]interface{}{"listen": true}}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got["id"] != float64(1) {
		t.Errorf("expected id 1, got %v", got["id"])
	}
	if _, isError := got["error"]; isError {
		t.Errorf("expected a successful subscription, got %v", got)
	}

	a.Lifecycle().OnStateChange("app-1", types.LifecycleActive)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("event read failed: %v", err)
	}
	if event["method"] != "Lifecycle2.onStateChanged" {
		t.Errorf("expected Lifecycle2.onStateChanged, got %v", event)
	}
}

func TestApplication_UnresolvedMethodReturnsMethodNotFound(t *testing.T) {
	a := startApp(t)

	u := url.URL{Scheme: "ws", Host: a.Addr(), Path: "/", RawQuery: "session=app-2&compliant=true"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	id := uint32(2)
	frame := types.InboundFrame{ID: &id, Method: "does.not.exist"}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	errBody, ok := got["error"].(map[string]interface{})
	if !ok || int(errBody["code"].(float64)) != types.CodeMethodNotFound {
		t.Errorf("expected MethodNotFound error, got %v", got)
	}
}

func TestApplication_StopIsIdempotentAgainstDoubleInvocation(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}

	// A second Stop must not panic even though every component has
	// already released its resources once.
	_ = a.Stop(ctx)
}

func TestApplication_DiagnosticsHealthSharesTheSameListener(t *testing.T) {
	a := startApp(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", a.Addr()))
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /health response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy status, got %+v", body)
	}
}
