package telemetry

import "strings"

// Metric names follow a rigid grammar: a fixed plugin-name tag, a
// category tag (method, API, or service), and a success/error or
// latency suffix. Parsing a name classifies it into one of the five
// known shapes, or falls through to a generic per-name aggregate.
const (
	metricPluginPrefix = "AppGw_PluginName_"
	methodTag          = "_MethodName_"
	apiTag             = "_ApiName_"
	serviceTag         = "_ServiceName_"
	successSuffix      = "_Success_split"
	errorSuffix        = "_Error_split"
	apiLatencySuffix   = "_ApiLatency_split"
	serviceLatencySuffix = "_ServiceLatency_split"
)

type metricKind int

const (
	kindGeneric metricKind = iota
	kindAPIMethod
	kindServiceMethod
	kindAPILatency
	kindServiceLatency
)

type parsedMetric struct {
	kind    metricKind
	plugin  string
	name    string
	isError bool
}

// parseSuccessErrorShaped matches "AppGw_PluginName_<P><tag><N>_Success_split"
// or the _Error_split variant, shared by API-method and service-method
// names (tag is _MethodName_ or _ServiceName_ respectively).
func parseSuccessErrorShaped(metricName, tag string) (plugin, name string, isError, ok bool) {
	var suffix string
	switch {
	case len(metricName) > len(successSuffix) && strings.HasSuffix(metricName, successSuffix):
		suffix = successSuffix
		isError = false
	case len(metricName) > len(errorSuffix) && strings.HasSuffix(metricName, errorSuffix):
		suffix = errorSuffix
		isError = true
	default:
		return "", "", false, false
	}

	if len(metricName) <= len(metricPluginPrefix) || !strings.HasPrefix(metricName, metricPluginPrefix) {
		return "", "", false, false
	}

	middle := metricName[len(metricPluginPrefix) : len(metricName)-len(suffix)]
	tagPos := strings.Index(middle, tag)
	if tagPos <= 0 {
		return "", "", false, false
	}

	plugin = middle[:tagPos]
	name = middle[tagPos+len(tag):]
	if plugin == "" || name == "" {
		return "", "", false, false
	}
	return plugin, name, isError, true
}

// parseLatencyShaped matches "AppGw_PluginName_<P><tag><N><suffix>",
// shared by API-latency and service-latency names.
func parseLatencyShaped(metricName, tag, suffix string) (plugin, name string, ok bool) {
	if len(metricName) <= len(suffix) || !strings.HasSuffix(metricName, suffix) {
		return "", "", false
	}
	if len(metricName) <= len(metricPluginPrefix) || !strings.HasPrefix(metricName, metricPluginPrefix) {
		return "", "", false
	}

	middle := metricName[len(metricPluginPrefix) : len(metricName)-len(suffix)]
	tagPos := strings.Index(middle, tag)
	if tagPos <= 0 {
		return "", "", false
	}

	plugin = middle[:tagPos]
	name = middle[tagPos+len(tag):]
	if plugin == "" || name == "" {
		return "", "", false
	}
	return plugin, name, true
}

// parseMetricName classifies metricName into one of the five known
// shapes, trying API-method, then service-method, then the two
// latency shapes, in the same order the original telemetry component
// tries them. A name matching none of them is generic.
func parseMetricName(metricName string) parsedMetric {
	if plugin, method, isError, ok := parseSuccessErrorShaped(metricName, methodTag); ok {
		return parsedMetric{kind: kindAPIMethod, plugin: plugin, name: method, isError: isError}
	}
	if plugin, svc, isError, ok := parseSuccessErrorShaped(metricName, serviceTag); ok {
		return parsedMetric{kind: kindServiceMethod, plugin: plugin, name: svc, isError: isError}
	}
	if plugin, api, ok := parseLatencyShaped(metricName, apiTag, apiLatencySuffix); ok {
		return parsedMetric{kind: kindAPILatency, plugin: plugin, name: api}
	}
	if plugin, svc, ok := parseLatencyShaped(metricName, serviceTag, serviceLatencySuffix); ok {
		return parsedMetric{kind: kindServiceLatency, plugin: plugin, name: svc}
	}
	return parsedMetric{kind: kindGeneric}
}

// buildAPIMethodMetricName constructs the canonical wire name for an
// API-method success/error sample, the inverse of parseMetricName's
// kindAPIMethod branch. Used internally so an in-process call like
// RecordAPICall still travels through the same name-grammar path a
// metric submitted through RecordMetric uses.
func buildAPIMethodMetricName(plugin, method string, success bool) string {
	suffix := successSuffix
	if !success {
		suffix = errorSuffix
	}
	return metricPluginPrefix + plugin + methodTag + method + suffix
}
