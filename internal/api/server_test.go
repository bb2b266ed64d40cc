package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSink struct {
	healthErr error
}

func (f *fakeSink) Send(ctx context.Context, marker string, payload []byte) error { return nil }
func (f *fakeSink) HealthCheck(ctx context.Context) error                        { return f.healthErr }
func (f *fakeSink) Close() error                                                 { return nil }

type fakeCounter int

func (c fakeCounter) Count() int { return int(c) }

func TestServer_HealthReturns200WhenSinkIsReachable(t *testing.T) {
	server := NewServer(&fakeSink{}, fakeCounter(3))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "healthy" || body.Connections != 3 {
		t.Errorf("unexpected health response: %+v", body)
	}
}

func TestServer_HealthReturns503WhenSinkIsUnreachable(t *testing.T) {
	server := NewServer(&fakeSink{healthErr: errors.New("db closed")}, fakeCounter(0))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
