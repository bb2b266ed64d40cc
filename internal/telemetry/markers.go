package telemetry

// Marker names mirror the T2-style naming convention used throughout
// the gateway's telemetry surface: a short tag plus a trailing
// "_split" suggesting the field is emitted as a delimited record
// rather than free text. Grounded on
// _examples/original_source/helpers/AppGatewayTelemetryMarkers.h.
const (
	markerHealthStats       = "AppGwHealthStats_split"
	markerAPIMethodStat     = "AppGwApiMethodStat_split"
	markerAPILatency        = "AppGwPluginApiLatency_split"
	markerServiceLatency    = "AppGwPluginServiceLatency_split"
	markerServiceMethodStat = "AppGwServiceMethodStat_split"

	markerAPIError         = "AppGwPluginApiError_split"
	markerExtServiceError  = "AppGwPluginExtServiceError_split"
	apiErrorMetricPrefix   = "AppGwApiErrorCount_"
	extErrorMetricPrefix   = "AppGwExtServiceErrorCount_"
	metricSuffixSplit      = "_split"

	bootstrapDurationMarker    = "AppGwBootstrapTime_split"
	bootstrapPluginCountMarker = "AppGwBootstrapPluginCount_split"

	unitMilliseconds = "ms"
	unitCount        = "count"
)
