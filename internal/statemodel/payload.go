package statemodel

import (
	"encoding/json"
	"time"
)

// The following helpers extract typed values out of an event's opaque
// map[string]any payload. They are deliberately lenient (missing key ⇒
// zero value) since unknown/absent fields must never fail a replay —
// forward compatibility is part of spec.md §4.3.

func payloadString(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func payloadFloat(data map[string]any, key string) (float64, bool) {
	if v, ok := data[key]; ok {
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}

func payloadBool(data map[string]any, key string) (bool, bool) {
	if v, ok := data[key]; ok {
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	return false, false
}

func payloadStringSlice(data map[string]any, key string) []string {
	v, ok := data[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func payloadInt(data map[string]any, key string) (int, bool) {
	f, ok := payloadFloat(data, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// payloadGeneratedOperations decodes a META_OPERATION event's "generated"
// field (round-tripped through JSON, since it arrives as []any of
// map[string]any from a replayed event file).
func payloadGeneratedOperations(data map[string]any) []GeneratedOperation {
	v, ok := data["generated"]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var ops []GeneratedOperation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil
	}
	return ops
}

// parseTimestamp parses an ISO-8601 timestamp, returning the zero time on
// failure rather than erroring — a malformed timestamp must not crash replay.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
