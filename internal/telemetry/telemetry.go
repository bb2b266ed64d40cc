// Package telemetry implements the gateway's metrics aggregator:
// health counters, per-plugin method/latency aggregates, a
// metric-name grammar classifier, and a cron-driven periodic flush to
// an opaque sink, scheduled with robfig/cron/v3.
package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"

	"appgateway/pkg/interfaces"
)

type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
	stateDeinitialized
)

const defaultCacheThreshold = 1000

type methodStats struct {
	pluginName, methodName                    string
	successCount, errorCount                  uint64
	sumSuccessMs, sumErrorMs                   float64
	minSuccessMs, maxSuccessMs                 float64
	minErrorMs, maxErrorMs                     float64
}

func newMethodStats(plugin, name string) *methodStats {
	return &methodStats{
		pluginName: plugin, methodName: name,
		minSuccessMs: math.MaxFloat64, minErrorMs: math.MaxFloat64,
	}
}

func (s *methodStats) record(latencyMs float64, isError bool) {
	if isError {
		s.errorCount++
		s.sumErrorMs += latencyMs
		if latencyMs < s.minErrorMs {
			s.minErrorMs = latencyMs
		}
		if latencyMs > s.maxErrorMs {
			s.maxErrorMs = latencyMs
		}
		return
	}
	s.successCount++
	s.sumSuccessMs += latencyMs
	if latencyMs < s.minSuccessMs {
		s.minSuccessMs = latencyMs
	}
	if latencyMs > s.maxSuccessMs {
		s.maxSuccessMs = latencyMs
	}
}

type latencyStats struct {
	pluginName, name   string
	count              uint64
	sumMs, minMs, maxMs float64
}

func newLatencyStats(plugin, name string) *latencyStats {
	return &latencyStats{pluginName: plugin, name: name, minMs: math.MaxFloat64}
}

func (s *latencyStats) record(latencyMs float64) {
	s.count++
	s.sumMs += latencyMs
	if latencyMs < s.minMs {
		s.minMs = latencyMs
	}
	if latencyMs > s.maxMs {
		s.maxMs = latencyMs
	}
}

type genericMetric struct {
	sum, min, max float64
	count         uint64
	unit          string
}

// Aggregator is the gateway's single telemetry aggregator instance.
// All aggregation state is guarded by mu, matching the original
// component's single admin lock; the health gauge/counters use
// atomics since they are read far more often than the aggregate maps.
type Aggregator struct {
	sink   interfaces.TelemetrySink
	format Format

	reportingInterval time.Duration
	cacheThreshold    int

	websocketConnections   atomic.Int64
	totalCalls             atomic.Int64
	successfulCalls        atomic.Int64
	failedCalls            atomic.Int64
	bootstrapPluginsLoaded atomic.Uint32
	totalBootstrapTimeMs   atomic.Uint64

	mu                         sync.Mutex
	state                      lifecycleState
	cachedEventCount           int
	reportingStart             time.Time
	apiMethodStats             map[string]*methodStats
	serviceMethodStats         map[string]*methodStats
	apiLatencyStats            map[string]*latencyStats
	serviceLatencyStats        map[string]*latencyStats
	apiErrorCounts             map[string]uint64
	externalServiceErrorCounts map[string]uint64
	genericMetrics             map[string]*genericMetric

	cronRunner *cron.Cron
}

// New constructs an aggregator that flushes every interval (and
// whenever the cached event count reaches cacheThreshold) through
// sink, encoding payloads in format.
func New(sink interfaces.TelemetrySink, interval time.Duration, format Format) *Aggregator {
	return &Aggregator{
		sink:                       sink,
		format:                     format,
		reportingInterval:          interval,
		cacheThreshold:             defaultCacheThreshold,
		apiMethodStats:             make(map[string]*methodStats),
		serviceMethodStats:         make(map[string]*methodStats),
		apiLatencyStats:            make(map[string]*latencyStats),
		serviceLatencyStats:        make(map[string]*latencyStats),
		apiErrorCounts:             make(map[string]uint64),
		externalServiceErrorCounts: make(map[string]uint64),
		genericMetrics:             make(map[string]*genericMetric),
	}
}

// Initialize starts the periodic flush timer. A second call is a
// no-op, matching the Uninitialized->Initialized->Deinitialized state
// machine.
func (a *Aggregator) Initialize() error {
	a.mu.Lock()
	if a.state != stateUninitialized {
		a.mu.Unlock()
		return nil
	}
	a.state = stateInitialized
	a.reportingStart = time.Now()
	a.mu.Unlock()

	runner := cron.New()
	if _, err := runner.AddFunc(fmt.Sprintf("@every %s", a.reportingInterval), a.Flush); err != nil {
		return fmt.Errorf("telemetry: schedule flush: %w", err)
	}
	runner.Start()

	a.mu.Lock()
	a.cronRunner = runner
	a.mu.Unlock()
	return nil
}

// Deinitialize revokes the flush timer and performs one final flush.
// A second call is a no-op.
func (a *Aggregator) Deinitialize() {
	a.mu.Lock()
	if a.state != stateInitialized {
		a.mu.Unlock()
		return
	}
	a.state = stateDeinitialized
	runner := a.cronRunner
	a.mu.Unlock()

	if runner != nil {
		<-runner.Stop().Done()
	}
	a.Flush()
}

// IncrementWebSocketConnections bumps the live-connection gauge.
func (a *Aggregator) IncrementWebSocketConnections() { a.websocketConnections.Add(1) }

// DecrementWebSocketConnections drops the live-connection gauge,
// floored at zero so a stray extra disconnect can't go negative.
func (a *Aggregator) DecrementWebSocketConnections() {
	for {
		cur := a.websocketConnections.Load()
		if cur <= 0 {
			return
		}
		if a.websocketConnections.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (a *Aggregator) IncrementTotalCalls()      { a.totalCalls.Add(1) }
func (a *Aggregator) IncrementSuccessfulCalls() { a.successfulCalls.Add(1) }
func (a *Aggregator) IncrementFailedCalls()     { a.failedCalls.Add(1) }

// RecordAPICall is the router's per-dispatch telemetry side effect: it
// increments the health counters and routes a success/error sample
// through the same metric-name grammar a metric submitted through
// RecordMetric uses.
func (a *Aggregator) RecordAPICall(plugin, method string, success bool, latencyMs float64) {
	a.IncrementTotalCalls()
	if success {
		a.IncrementSuccessfulCalls()
	} else {
		a.IncrementFailedCalls()
	}
	a.RecordMetric(buildAPIMethodMetricName(plugin, method, success), latencyMs, unitMilliseconds)
}

// RecordBootstrapTime accumulates a plugin's startup duration into
// the cumulative bootstrap total and plugin count, special-cased out
// of the generic metric-name grammar the way the original component
// does.
func (a *Aggregator) RecordBootstrapTime(durationMs uint64) {
	count := a.bootstrapPluginsLoaded.Add(1)
	total := a.totalBootstrapTimeMs.Add(durationMs)

	a.mu.Lock()
	a.recordGenericLocked(bootstrapDurationMarker, float64(total), unitMilliseconds)
	a.recordGenericLocked(bootstrapPluginCountMarker, float64(count), unitCount)
	a.mu.Unlock()
}

// RecordMetric classifies metricName via the grammar in metrics.go
// and folds value into the matching aggregate, flushing immediately
// if the cache threshold is reached.
func (a *Aggregator) RecordMetric(metricName string, value float64, unit string) {
	if metricName == bootstrapDurationMarker {
		a.RecordBootstrapTime(uint64(value))
		return
	}

	parsed := parseMetricName(metricName)

	a.mu.Lock()
	switch parsed.kind {
	case kindAPIMethod:
		recordMethodStatLocked(a.apiMethodStats, parsed.plugin, parsed.name, value, parsed.isError)
	case kindServiceMethod:
		recordMethodStatLocked(a.serviceMethodStats, parsed.plugin, parsed.name, value, parsed.isError)
	case kindAPILatency:
		recordLatencyStatLocked(a.apiLatencyStats, parsed.plugin, parsed.name, value)
	case kindServiceLatency:
		recordLatencyStatLocked(a.serviceLatencyStats, parsed.plugin, parsed.name, value)
	default:
		a.recordGenericLocked(metricName, value, unit)
	}
	a.cachedEventCount++
	shouldFlush := a.cachedEventCount >= a.cacheThreshold
	a.mu.Unlock()

	if shouldFlush {
		a.Flush()
	}
}

func (a *Aggregator) recordGenericLocked(name string, value float64, unit string) {
	data, ok := a.genericMetrics[name]
	if !ok {
		data = &genericMetric{min: math.MaxFloat64, max: -math.MaxFloat64}
		a.genericMetrics[name] = data
	}
	data.sum += value
	data.count++
	if value < data.min {
		data.min = value
	}
	if value > data.max {
		data.max = value
	}
	if data.unit == "" {
		data.unit = unit
	}
}

func recordMethodStatLocked(m map[string]*methodStats, plugin, name string, latencyMs float64, isError bool) {
	key := plugin + "_" + name
	stats, ok := m[key]
	if !ok {
		stats = newMethodStats(plugin, name)
		m[key] = stats
	}
	stats.record(latencyMs, isError)
}

func recordLatencyStatLocked(m map[string]*latencyStats, plugin, name string, latencyMs float64) {
	key := plugin + "_" + name
	stats, ok := m[key]
	if !ok {
		stats = newLatencyStats(plugin, name)
		m[key] = stats
	}
	stats.record(latencyMs)
}

// RecordEvent handles the two forensic event names that bypass
// aggregation and forward to the sink immediately, bumping their
// error-count maps along the way; every other event name just
// advances the cache-threshold counter.
func (a *Aggregator) RecordEvent(ctx context.Context, eventName string, eventDataJSON []byte) {
	switch eventName {
	case markerAPIError:
		api := gjson.GetBytes(eventDataJSON, "api").String()
		if api == "" {
			api = eventName
		}
		a.mu.Lock()
		a.apiErrorCounts[api]++
		a.mu.Unlock()
		a.sendImmediate(ctx, eventName, eventDataJSON)
		return
	case markerExtServiceError:
		svc := gjson.GetBytes(eventDataJSON, "service").String()
		if svc == "" {
			svc = eventName
		}
		a.mu.Lock()
		a.externalServiceErrorCounts[svc]++
		a.mu.Unlock()
		a.sendImmediate(ctx, eventName, eventDataJSON)
		return
	}

	a.mu.Lock()
	a.cachedEventCount++
	shouldFlush := a.cachedEventCount >= a.cacheThreshold
	a.mu.Unlock()
	if shouldFlush {
		a.Flush()
	}
}

func (a *Aggregator) sendImmediate(ctx context.Context, marker string, payload []byte) {
	if a.sink == nil {
		return
	}
	_ = a.sink.Send(ctx, marker, payload)
}

// Flush snapshots and emits every aggregate in a fixed order, then
// resets interval state. The websocket-connections gauge and
// cumulative bootstrap totals are never reset.
func (a *Aggregator) Flush() {
	ctx := context.Background()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.sendHealthStatsLocked(ctx)
	a.sendMethodStatsLocked(ctx, a.apiMethodStats, markerAPIMethodStat)
	a.sendLatencyStatsLocked(ctx, a.apiLatencyStats, markerAPILatency)
	a.sendLatencyStatsLocked(ctx, a.serviceLatencyStats, markerServiceLatency)
	a.sendMethodStatsLocked(ctx, a.serviceMethodStats, markerServiceMethodStat)
	a.sendErrorCountsLocked(ctx, a.apiErrorCounts, apiErrorMetricPrefix)
	a.sendErrorCountsLocked(ctx, a.externalServiceErrorCounts, extErrorMetricPrefix)
	a.sendGenericMetricsLocked(ctx)

	a.resetLocked()
}

func (a *Aggregator) sendHealthStatsLocked(ctx context.Context) {
	ws := a.websocketConnections.Load()
	total := a.totalCalls.Load()
	if total == 0 && ws == 0 {
		return
	}
	payload := encode(a.format, fields(
		"reporting_interval_sec", int64(a.reportingInterval/time.Second),
		"websocket_connections", ws,
		"total_calls", total,
		"successful_calls", a.successfulCalls.Load(),
		"failed_calls", a.failedCalls.Load(),
		"unit", unitCount,
	))
	a.sendImmediate(ctx, markerHealthStats, payload)
}

func (a *Aggregator) sendMethodStatsLocked(ctx context.Context, stats map[string]*methodStats, marker string) {
	for _, s := range stats {
		if s.successCount == 0 && s.errorCount == 0 {
			continue
		}
		fs := fields(
			"plugin_name", s.pluginName,
			"method_name", s.methodName,
			"reporting_interval_sec", int64(a.reportingInterval/time.Second),
		)
		if s.successCount > 0 {
			fs = append(fs, fields(
				"success_count", s.successCount,
				"success_latency_avg_ms", s.sumSuccessMs/float64(s.successCount),
				"success_latency_min_ms", s.minSuccessMs,
				"success_latency_max_ms", s.maxSuccessMs,
			)...)
		} else {
			fs = append(fs, field{"success_count", uint64(0)})
		}
		if s.errorCount > 0 {
			fs = append(fs, fields(
				"error_count", s.errorCount,
				"error_latency_avg_ms", s.sumErrorMs/float64(s.errorCount),
				"error_latency_min_ms", s.minErrorMs,
				"error_latency_max_ms", s.maxErrorMs,
			)...)
		} else {
			fs = append(fs, field{"error_count", uint64(0)})
		}
		fs = append(fs, field{"total_count", s.successCount + s.errorCount})

		a.sendImmediate(ctx, marker, encode(a.format, fs))
	}
}

func (a *Aggregator) sendLatencyStatsLocked(ctx context.Context, stats map[string]*latencyStats, marker string) {
	for _, s := range stats {
		if s.count == 0 {
			continue
		}
		payload := encode(a.format, fields(
			"plugin_name", s.pluginName,
			"api_name", s.name,
			"reporting_interval_sec", int64(a.reportingInterval/time.Second),
			"count", s.count,
			"avg_ms", s.sumMs/float64(s.count),
			"min_ms", s.minMs,
			"max_ms", s.maxMs,
			"total_ms", s.sumMs,
			"unit", unitMilliseconds,
		))
		a.sendImmediate(ctx, marker, payload)
	}
}

func (a *Aggregator) sendErrorCountsLocked(ctx context.Context, counts map[string]uint64, prefix string) {
	for name, count := range counts {
		marker := prefix + name + metricSuffixSplit
		payload := encode(a.format, fields(
			"reporting_interval_sec", int64(a.reportingInterval/time.Second),
			"sum", count,
			"count", uint64(1),
			"unit", unitCount,
		))
		a.sendImmediate(ctx, marker, payload)
	}
}

func (a *Aggregator) sendGenericMetricsLocked(ctx context.Context) {
	for name, data := range a.genericMetrics {
		if data.count == 0 {
			continue
		}
		payload := encode(a.format, fields(
			"sum", data.sum,
			"min", data.min,
			"max", data.max,
			"count", data.count,
			"avg", data.sum/float64(data.count),
			"unit", data.unit,
			"reporting_interval_sec", int64(a.reportingInterval/time.Second),
		))
		a.sendImmediate(ctx, name, payload)
	}
}

func (a *Aggregator) resetLocked() {
	a.totalCalls.Store(0)
	a.successfulCalls.Store(0)
	a.failedCalls.Store(0)

	a.apiMethodStats = make(map[string]*methodStats)
	a.serviceMethodStats = make(map[string]*methodStats)
	a.apiLatencyStats = make(map[string]*latencyStats)
	a.serviceLatencyStats = make(map[string]*latencyStats)
	a.apiErrorCounts = make(map[string]uint64)
	a.externalServiceErrorCounts = make(map[string]uint64)
	a.genericMetrics = make(map[string]*genericMetric)
	a.cachedEventCount = 0
	a.reportingStart = time.Now()
}
