package interfaces_test

import (
	"context"
	"testing"

	"appgateway/pkg/interfaces"
	"appgateway/pkg/types"
)

type mockConnection struct {
	id       uint32
	appID    string
	compliant bool
}

func (m *mockConnection) WriteJSON(v interface{}) error  { return nil }
func (m *mockConnection) Close() error                   { return nil }
func (m *mockConnection) ConnectionID() uint32           { return m.id }
func (m *mockConnection) AppID() string                  { return m.appID }
func (m *mockConnection) IsJSONRPCCompliant() bool       { return m.compliant }

type mockRouter struct{}

func (m *mockRouter) Dispatch(ctx context.Context, gctx types.GatewayContext, frame *types.InboundFrame) (interface{}, *types.RPCError) {
	return nil, nil
}

type mockEventDelegate struct{}

func (m *mockEventDelegate) HandleSubscription(connectionID uint32, event string, listen bool) error {
	return nil
}
func (m *mockEventDelegate) HandleEvent(event string, params interface{}) {}

type mockSink struct{}

func (m *mockSink) Send(ctx context.Context, marker string, payload []byte) error { return nil }
func (m *mockSink) HealthCheck(ctx context.Context) error                         { return nil }
func (m *mockSink) Close() error                                                  { return nil }

func TestInterfaces_ArchitecturalCompliance(t *testing.T) {
	var _ interfaces.Connection
	var _ interfaces.Router
	var _ interfaces.EventDelegate
	var _ interfaces.TelemetrySink
}

func TestConnection_InterfaceContract(t *testing.T) {
	var conn interfaces.Connection = &mockConnection{id: 1, appID: "app1", compliant: true}

	_ = conn.WriteJSON(struct{}{})
	_ = conn.Close()
	if conn.ConnectionID() != 1 {
		t.Fatalf("expected connection id 1")
	}
	if conn.AppID() != "app1" {
		t.Fatalf("expected appID app1")
	}
	if !conn.IsJSONRPCCompliant() {
		t.Fatalf("expected compliant connection")
	}
}

func TestRouter_InterfaceContract(t *testing.T) {
	var router interfaces.Router = &mockRouter{}
	ctx := context.Background()
	gctx := types.GatewayContext{RequestID: 1, ConnectionID: 1, AppID: "app1"}
	frame := &types.InboundFrame{Method: "plugin.method"}

	_, _ = router.Dispatch(ctx, gctx, frame)
}

func TestEventDelegate_InterfaceContract(t *testing.T) {
	var delegate interfaces.EventDelegate = &mockEventDelegate{}

	_ = delegate.HandleSubscription(1, "onactivated", true)
	delegate.HandleEvent("onactivated", map[string]interface{}{})
}

func TestTelemetrySink_InterfaceContract(t *testing.T) {
	var sink interfaces.TelemetrySink = &mockSink{}
	ctx := context.Background()

	_ = sink.Send(ctx, "health", []byte("{}"))
	_ = sink.HealthCheck(ctx)
	_ = sink.Close()
}
