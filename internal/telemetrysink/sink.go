// Package telemetrysink implements a local stand-in for the gateway's
// out-of-process telemetry bus (the real delivery transport is out of
// scope here). It persists flush payloads to a local SQLite database
// using a single-writer-goroutine pattern, so an aggregator flush has
// somewhere durable to land during local development and
// testing without requiring the external pipeline.
package telemetrysink

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"appgateway/pkg/interfaces"
)

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Sink is a sqlite-backed interfaces.TelemetrySink. All writes funnel
// through a single goroutine to avoid SQLite write contention; reads
// (HealthCheck) go straight to the pool.
type Sink struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Open creates the sink's backing database, applying schema and pool
// settings, and starts its write loop.
func Open(config *Config) (*Sink, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("telemetrysink: invalid config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("telemetrysink: open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if _, err := db.Exec(sqliteOptimizations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telemetrysink: apply pragmas: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telemetrysink: create schema: %w", err)
	}

	s := &Sink{
		db:           db,
		writeChannel: make(chan writeOperation, 256),
		shutdown:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Sink) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("telemetrysink: write failed, retrying in 5s: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("telemetrysink: write failed after retry: %v", err)
				}
			}
			op.result <- err
		case <-s.shutdown:
			return
		}
	}
}

func (s *Sink) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("telemetrysink: sink is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("telemetrysink: write timeout")
	case <-s.shutdown:
		return fmt.Errorf("telemetrysink: sink is shutting down")
	}
}

// Send persists one flush payload tagged with marker.
func (s *Sink) Send(ctx context.Context, marker string, payload []byte) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO telemetry_flushes (marker, payload) VALUES (?, ?)`,
			marker, string(payload))
		return err
	})
}

// HealthCheck verifies the underlying database connection is alive.
func (s *Sink) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the write loop and closes the database. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}

var _ interfaces.TelemetrySink = (*Sink)(nil)
