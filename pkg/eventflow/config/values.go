package config

import "time"

// values wraps a decoded YAML/JSON object for lenient typed access.
// Every accessor returns def when the key is missing or has the wrong type.
type values map[string]any

func (v values) str(key, def string) string {
	if s, ok := v[key].(string); ok {
		return s
	}
	return def
}

func (v values) boolean(key string, def bool) bool {
	if b, ok := v[key].(bool); ok {
		return b
	}
	return def
}

// integer accepts int, int64 and whole float64 values.
func (v values) integer(key string, def int) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	}
	return def
}

func (v values) float(key string, def float64) float64 {
	switch n := v[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// duration accepts duration strings and numbers of seconds.
func (v values) duration(key string, def time.Duration) time.Duration {
	switch d := v[key].(type) {
	case string:
		if parsed, err := time.ParseDuration(d); err == nil {
			return parsed
		}
	case float64:
		return time.Duration(d * float64(time.Second))
	case int:
		return time.Duration(d) * time.Second
	case int64:
		return time.Duration(d) * time.Second
	case time.Duration:
		return d
	}
	return def
}

// section returns a nested object, or an empty one.
func (v values) section(key string) values {
	switch s := v[key].(type) {
	case map[string]any:
		return values(s)
	case map[any]any:
		out := make(values, len(s))
		for k, val := range s {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out
	}
	return values{}
}
