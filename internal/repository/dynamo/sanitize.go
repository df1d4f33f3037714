package dynamo

import "time"

// maxSanitizeDepth bounds the recursion so a pathological or accidentally
// cyclic structure can't blow the stack during a write.
const maxSanitizeDepth = 16

// sanitize recursively normalizes a value before a KV write: date values
// become ISO-8601 strings and nil map/slice entries are dropped. Audit
// entries go through it before marshaling, since the KV client cannot
// marshal native date types correctly. The run_metadata writes in
// runmeta.go do not call it: they marshal runItem and scalar values
// directly, with timestamps already formatted as RFC3339 strings.
func sanitize(v interface{}) interface{} {
	return sanitizeDepth(v, 0)
}

func sanitizeDepth(v interface{}, depth int) interface{} {
	if depth >= maxSanitizeDepth {
		return nil
	}

	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			if v == nil {
				continue
			}
			sv := sanitizeDepth(v, depth+1)
			if sv == nil {
				continue
			}
			out[k] = sv
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, sanitizeDepth(item, depth+1))
		}
		return out
	default:
		return v
	}
}

// sanitizeMap applies sanitize to every value of a map and returns the
// result as a new map (never nil), leaving m unchanged, for convenient use
// at a write call site.
func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	s, _ := sanitize(m).(map[string]interface{})
	if s == nil {
		return map[string]interface{}{}
	}
	return s
}
