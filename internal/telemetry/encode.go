package telemetry

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Format selects how a flushed payload is serialized before being
// handed to the sink.
type Format int

const (
	// FormatJSON emits a standard JSON object.
	FormatJSON Format = iota
	// FormatCompact drops keys entirely and emits values
	// comma-separated in field order, the on-device encoding used
	// when payload size matters more than self-description.
	FormatCompact
)

// field is one key/value pair of a telemetry payload, kept as an
// ordered slice rather than a map so the compact encoding's field
// order is deterministic.
type field struct {
	key   string
	value interface{}
}

func fields(kv ...interface{}) []field {
	out := make([]field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, field{key: kv[i].(string), value: kv[i+1]})
	}
	return out
}

// encode renders fs in the given format. Ported from
// AppGatewayTelemetry::FormatTelemetryPayload: integral numbers are
// emitted without a decimal point, non-integral ones with two decimal
// places, and booleans as literal true/false.
func encode(format Format, fs []field) []byte {
	if format == FormatJSON {
		obj := make(map[string]interface{}, len(fs))
		for _, f := range fs {
			if fv, ok := f.value.(float64); ok && fv != math.Trunc(fv) && !math.IsInf(fv, 0) && !math.IsNaN(fv) {
				obj[f.key] = json.Number(strconv.FormatFloat(fv, 'f', 2, 64))
				continue
			}
			obj[f.key] = f.value
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return []byte("{}")
		}
		return data
	}

	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = compactValue(f.value)
	}
	return []byte(strings.Join(parts, ","))
}

func compactValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', 2, 64)
	case []interface{}:
		return "(" + joinCompact(val) + ")"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		leaves := make([]interface{}, len(keys))
		for i, k := range keys {
			leaves[i] = val[k]
		}
		return "(" + joinCompact(leaves) + ")"
	default:
		return ""
	}
}

// joinCompact recurses compactValue over vs, so a nested array or
// object at any depth grows another layer of (v1,v2,...) grouping.
func joinCompact(vs []interface{}) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = compactValue(v)
	}
	return strings.Join(parts, ",")
}
