package engine

import "encoding/json"

// Raw request values arrive as JSON-decoded interface{} values, so numbers
// are usually float64 and sometimes json.Number.

func coerceInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func coerceFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func coerceString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// IntValue reads an int-ish field from a value map, with a fallback.
func IntValue(values map[string]interface{}, key string, fallback int) int {
	if v, ok := values[key]; ok {
		if n, ok := coerceInt(v); ok {
			return n
		}
	}
	return fallback
}

// FloatValue reads a float-ish field from a value map, with a fallback.
func FloatValue(values map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := values[key]; ok {
		if f, ok := coerceFloat(v); ok {
			return f
		}
	}
	return fallback
}

// StringValue reads a string field from a value map, with a fallback.
func StringValue(values map[string]interface{}, key string, fallback string) string {
	if v, ok := values[key]; ok {
		if s, ok := coerceString(v); ok {
			return s
		}
	}
	return fallback
}

// ResourcesFrom decodes the "resources" entry of a raw input map.
func ResourcesFrom(values map[string]interface{}) []Resource {
	raw, ok := values["resources"]
	if !ok {
		return nil
	}

	switch list := raw.(type) {
	case []Resource:
		return list
	case []interface{}:
		out := make([]Resource, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			res := Resource{Strength: 1}
			if id, ok := coerceString(m["id"]); ok {
				res.ID = id
			}
			if s, ok := coerceFloat(m["strength"]); ok {
				res.Strength = s
			}
			if res.ID != "" {
				out = append(out, res)
			}
		}
		return out
	}
	return nil
}
