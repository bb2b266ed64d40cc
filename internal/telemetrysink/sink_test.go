package telemetrysink

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestSink(t *testing.T) (*Sink, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	config := &Config{
		DatabasePath:    dbPath,
		MaxConnections:  5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
	}

	sink, err := Open(config)
	if err != nil {
		t.Fatalf("failed to open sink: %v", err)
	}
	return sink, func() { _ = sink.Close() }
}

func TestSink_SendPersistsPayload(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	if err := sink.Send(context.Background(), "health", []byte(`{"total_calls":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	row := sink.db.QueryRow(`SELECT COUNT(*) FROM telemetry_flushes WHERE marker = ?`, "health")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row for marker health, got %d", count)
	}
}

func TestSink_HealthCheckSucceedsOnOpenDatabase(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	if err := sink.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected health check error: %v", err)
	}
}

func TestSink_CloseIsIdempotentAndRejectsFurtherWrites(t *testing.T) {
	sink, _ := setupTestSink(t)

	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error on close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}

	if err := sink.Send(context.Background(), "health", []byte("{}")); err == nil {
		t.Fatal("expected send after close to fail")
	}
}

func TestSink_MultipleSendsPersistInOrder(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	markers := []string{"health", "apiMethod", "apiLatency"}
	for _, m := range markers {
		if err := sink.Send(context.Background(), m, []byte("{}")); err != nil {
			t.Fatalf("send %s: %v", m, err)
		}
	}

	rows, err := sink.db.Query(`SELECT marker FROM telemetry_flushes ORDER BY id`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var marker string
		if err := rows.Scan(&marker); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, marker)
	}

	if len(got) != len(markers) {
		t.Fatalf("expected %d rows, got %d", len(markers), len(got))
	}
	for i, m := range markers {
		if got[i] != m {
			t.Errorf("position %d: expected %s, got %s", i, m, got[i])
		}
	}
}
