package config

import (
	"fmt"
	"strconv"
	"time"
)

// Options is the free-form option mapping handed to a backend on construction.
// Keys a backend does not know about are kept as-is.
type Options map[string]interface{}

// Merge returns a new Options holding defaults overlaid with overrides.
// Neither argument is modified; override values win.
func Merge(defaults, overrides Options) Options {
	merged := make(Options, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of the options. A nil receiver yields an empty map.
func (o Options) Clone() Options {
	return Merge(nil, o)
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the string value for key or def when unset.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Bool returns the boolean value for key. Strings such as "true" are parsed.
func (o Options) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Int returns the integer value for key or def when unset or not numeric.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// Duration returns the duration value for key. Durations may be given as
// time.Duration, a duration string ("30s") or a number of seconds.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	switch v := o[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}

// Strings returns the string list for key. A single string is treated as a
// one-element list.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// List returns the raw list stored under key, or nil.
func (o Options) List(key string) []interface{} {
	switch v := o[key].(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

// AsOptions converts a decoded mapping into Options. It reports false for
// values that are not mappings.
func AsOptions(v interface{}) (Options, bool) {
	switch m := v.(type) {
	case nil:
		return Options{}, true
	case Options:
		return m, true
	case map[string]interface{}:
		return Options(m), true
	case map[interface{}]interface{}:
		out := make(Options, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
