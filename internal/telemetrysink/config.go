package telemetrysink

import (
	"errors"
	"time"
)

// Config holds the local telemetry sink's database settings.
type Config struct {
	DatabasePath    string
	MaxConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns sane settings for a single-process local sink;
// the gateway has one writer and a handful of readers at most, so the
// connection pool stays small.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./data/telemetry.db",
		MaxConnections:  5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("connection max lifetime must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		return errors.New("connection max idle time must be greater than 0")
	}
	return nil
}

// sqliteOptimizations are applied to every connection opened against
// the sink's database. WAL keeps flush reads from blocking the single
// writer.
const sqliteOptimizations = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA cache_size = -16000;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
`
