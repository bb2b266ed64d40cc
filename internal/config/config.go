package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the system-wide settings coordinator, kept separate from
// the resolution table (that is a standalone JSON document, loaded by
// internal/resolution, not by this package).
type Config struct {
	Listener  *ListenerConfig  `json:"listener"`
	Resolution *ResolutionConfig `json:"resolution"`
	Telemetry *TelemetryConfig `json:"telemetry"`
}

// ListenerConfig describes the loopback WebSocket listener. This
// gateway only serves co-resident processes, so Host defaults to
// the loopback address only.
type ListenerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
	WorkerPoolSize int         `json:"worker_pool_size"`
}

// ResolutionConfig points at the method resolution table on disk and
// controls whether it is watched for changes.
type ResolutionConfig struct {
	Path         string        `json:"path"`
	ReloadOnChange bool        `json:"reload_on_change"`
}

// TelemetryConfig controls the periodic flush cadence and wire format
// for the telemetry aggregator (component G).
type TelemetryConfig struct {
	FlushInterval time.Duration `json:"flush_interval"`
	CompactFormat bool          `json:"compact_format"`
	SinkPath      string        `json:"sink_path"`
}

// DefaultConfig returns the gateway's production defaults: loopback-only
// listener on the well-known app-gateway port, a 30s telemetry flush,
// and the standard resolution table path.
func DefaultConfig() *Config {
	return &Config{
		Listener: &ListenerConfig{
			Host:           "127.0.0.1",
			Port:           3473,
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     100,
			WorkerPoolSize: 16,
		},
		Resolution: &ResolutionConfig{
			Path:           "/etc/app-gateway/resolution.base.json",
			ReloadOnChange: true,
		},
		Telemetry: &TelemetryConfig{
			FlushInterval: 30 * time.Second,
			CompactFormat: false,
			SinkPath:      "./telemetry.db",
		},
	}
}

// Validate rejects configurations that would cause a confusing runtime
// failure later rather than a clear one now.
func (c *Config) Validate() error {
	if c.Listener == nil {
		return fmt.Errorf("listener configuration is required")
	}
	if c.Listener.Host == "" {
		return fmt.Errorf("listener host cannot be empty")
	}
	if c.Listener.Host != "127.0.0.1" && c.Listener.Host != "localhost" && c.Listener.Host != "::1" {
		return fmt.Errorf("listener host must be a loopback address, got %q", c.Listener.Host)
	}
	if c.Listener.Port <= 0 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener port must be between 1 and 65535")
	}
	if c.Listener.PingInterval <= 0 {
		return fmt.Errorf("listener ping interval must be positive")
	}
	if c.Listener.ReadTimeout <= 0 {
		return fmt.Errorf("listener read timeout must be positive")
	}
	if c.Listener.WriteTimeout <= 0 {
		return fmt.Errorf("listener write timeout must be positive")
	}
	if c.Listener.BufferSize <= 0 {
		return fmt.Errorf("listener buffer size must be positive")
	}
	if c.Listener.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive")
	}

	if c.Resolution == nil {
		return fmt.Errorf("resolution configuration is required")
	}
	if c.Resolution.Path == "" {
		return fmt.Errorf("resolution path cannot be empty")
	}

	if c.Telemetry == nil {
		return fmt.Errorf("telemetry configuration is required")
	}
	if c.Telemetry.FlushInterval <= 0 {
		return fmt.Errorf("telemetry flush interval must be positive")
	}
	if c.Telemetry.SinkPath == "" {
		return fmt.Errorf("telemetry sink path cannot be empty")
	}

	return nil
}

// LoadFromEnv overlays APPGATEWAY_* environment variables onto the
// defaults, ignoring any variable that fails to parse.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("APPGATEWAY_LISTENER_HOST"); host != "" {
		config.Listener.Host = host
	}
	if port := os.Getenv("APPGATEWAY_LISTENER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Listener.Port = p
		}
	}
	if pingInterval := os.Getenv("APPGATEWAY_LISTENER_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.Listener.PingInterval = interval
		}
	}
	if readTimeout := os.Getenv("APPGATEWAY_LISTENER_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.Listener.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("APPGATEWAY_LISTENER_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.Listener.WriteTimeout = timeout
		}
	}
	if bufferSize := os.Getenv("APPGATEWAY_LISTENER_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.Listener.BufferSize = size
		}
	}
	if poolSize := os.Getenv("APPGATEWAY_WORKER_POOL_SIZE"); poolSize != "" {
		if size, err := strconv.Atoi(poolSize); err == nil {
			config.Listener.WorkerPoolSize = size
		}
	}
	if resolutionPath := os.Getenv("APPGATEWAY_RESOLUTION_PATH"); resolutionPath != "" {
		config.Resolution.Path = resolutionPath
	}
	if flushInterval := os.Getenv("APPGATEWAY_TELEMETRY_FLUSH_INTERVAL"); flushInterval != "" {
		if interval, err := time.ParseDuration(flushInterval); err == nil {
			config.Telemetry.FlushInterval = interval
		}
	}
	if sinkPath := os.Getenv("APPGATEWAY_TELEMETRY_SINK_PATH"); sinkPath != "" {
		config.Telemetry.SinkPath = sinkPath
	}
	if compact := os.Getenv("APPGATEWAY_TELEMETRY_COMPACT"); compact != "" {
		if b, err := strconv.ParseBool(compact); err == nil {
			config.Telemetry.CompactFormat = b
		}
	}

	return config
}

// ConfigFile is the JSON shape accepted on disk; durations are strings
// so the file stays human-editable.
type ConfigFile struct {
	Listener   *ListenerConfigFile   `json:"listener"`
	Resolution *ResolutionConfigFile `json:"resolution"`
	Telemetry  *TelemetryConfigFile  `json:"telemetry"`
}

type ListenerConfigFile struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	PingInterval   string `json:"ping_interval"`
	ReadTimeout    string `json:"read_timeout"`
	WriteTimeout   string `json:"write_timeout"`
	BufferSize     int    `json:"buffer_size"`
	WorkerPoolSize int    `json:"worker_pool_size"`
}

type ResolutionConfigFile struct {
	Path           string `json:"path"`
	ReloadOnChange *bool  `json:"reload_on_change"`
}

type TelemetryConfigFile struct {
	FlushInterval string `json:"flush_interval"`
	CompactFormat bool   `json:"compact_format"`
	SinkPath      string `json:"sink_path"`
}

// LoadFromFile parses a gateway config file and fills it in over the
// defaults, validating the merged result before returning it.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.Listener != nil {
		if configFile.Listener.Host != "" {
			config.Listener.Host = configFile.Listener.Host
		}
		if configFile.Listener.Port > 0 {
			config.Listener.Port = configFile.Listener.Port
		}
		if configFile.Listener.BufferSize > 0 {
			config.Listener.BufferSize = configFile.Listener.BufferSize
		}
		if configFile.Listener.WorkerPoolSize > 0 {
			config.Listener.WorkerPoolSize = configFile.Listener.WorkerPoolSize
		}
		if configFile.Listener.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.Listener.PingInterval); err == nil {
				config.Listener.PingInterval = interval
			}
		}
		if configFile.Listener.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.Listener.ReadTimeout); err == nil {
				config.Listener.ReadTimeout = timeout
			}
		}
		if configFile.Listener.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.Listener.WriteTimeout); err == nil {
				config.Listener.WriteTimeout = timeout
			}
		}
	}

	if configFile.Resolution != nil {
		if configFile.Resolution.Path != "" {
			config.Resolution.Path = configFile.Resolution.Path
		}
		if configFile.Resolution.ReloadOnChange != nil {
			config.Resolution.ReloadOnChange = *configFile.Resolution.ReloadOnChange
		}
	}

	if configFile.Telemetry != nil {
		config.Telemetry.CompactFormat = configFile.Telemetry.CompactFormat
		if configFile.Telemetry.SinkPath != "" {
			config.Telemetry.SinkPath = configFile.Telemetry.SinkPath
		}
		if configFile.Telemetry.FlushInterval != "" {
			if interval, err := time.ParseDuration(configFile.Telemetry.FlushInterval); err == nil {
				config.Telemetry.FlushInterval = interval
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence starts from the environment-derived config
// (defaults overlaid with env variables). If the file at filepath
// exists and parses, its config (defaults overlaid with the file)
// replaces that result whole: environment variables are not layered
// under a loaded file. File errors are swallowed so a missing optional
// config file never blocks startup.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := DefaultConfig()

	envConfig := LoadFromEnv()
	if envConfig != nil {
		config = envConfig
	}

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
