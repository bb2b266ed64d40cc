// Package api serves the gateway's local diagnostics surface: a
// single /health endpoint reporting telemetry-sink reachability and
// the current connection count, for an operator or supervising process
// to poll. Not part of the request/response wire protocol; this is
// ambient ops tooling.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"appgateway/pkg/interfaces"
)

// ConnectionCounter is the narrow surface the diagnostics handler
// needs from the connection registry.
type ConnectionCounter interface {
	Count() int
}

// Server is a pure HTTP interface layer: no business logic, only
// reading already-computed state off its dependencies and encoding it.
type Server struct {
	telemetrySink interfaces.TelemetrySink
	connections   ConnectionCounter
	router        *http.ServeMux
}

// NewServer builds a diagnostics server reporting on sink and
// connections.
func NewServer(sink interfaces.TelemetrySink, connections ConnectionCounter) *Server {
	s := &Server{
		telemetrySink: sink,
		connections:   connections,
		router:        http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.jsonMiddleware(http.HandlerFunc(s.healthCheck)))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Telemetry   string    `json:"telemetry"`
	Connections int       `json:"connections"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	telemetryStatus := "healthy"

	if err := s.telemetrySink.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		telemetryStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Telemetry:   telemetryStatus,
		Connections: s.connections.Count(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
