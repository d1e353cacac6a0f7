package sim

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Well-known run parameter names, qualified per model with ParamKey.
const (
	OwnerParam  = "owner"
	LoggerParam = "logger"
)

// ParamKey qualifies a run parameter name with a model ID, e.g.
// "oven-user.meanStep".
func ParamKey(modelID, name string) string {
	return modelID + "." + name
}

// Params is the run parameter map handed to every model before the
// simulation starts. Values are untyped; the typed getters accept the Go type
// as well as its string form so CLI overrides work unchanged.
type Params map[string]any

// Merge returns a new map holding p overridden by other.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Has reports whether key is set.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Float returns the float value at key, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def, fmt.Errorf("parameter %s: %w", key, err)
		}
		return f, nil
	default:
		return def, fmt.Errorf("parameter %s: unsupported type %T for float", key, raw)
	}
}

// Int returns the integer value at key, or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("parameter %s: %w", key, err)
		}
		return n, nil
	default:
		return def, fmt.Errorf("parameter %s: unsupported type %T for int", key, raw)
	}
}

// Duration returns the simulated duration at key, or def when absent. Plain
// numbers are read as seconds, strings as Go durations.
func (p Params) Duration(key string, def Time) (Time, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case Time:
		return v, nil
	case time.Duration:
		return FromDuration(v), nil
	case float64:
		return Seconds(v), nil
	case int:
		return Seconds(float64(v)), nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return def, fmt.Errorf("parameter %s: %w", key, err)
		}
		return FromDuration(d), nil
	default:
		return def, fmt.Errorf("parameter %s: unsupported type %T for duration", key, raw)
	}
}

// String returns the string value at key, or def when absent.
func (p Params) String(key string, def string) (string, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return def, fmt.Errorf("parameter %s: unsupported type %T for string", key, raw)
	}
	return s, nil
}

// Owner returns the control object injected for modelID, or nil.
func (p Params) Owner(modelID string) any {
	return p[ParamKey(modelID, OwnerParam)]
}

// Logger returns the logger injected for modelID, or nil.
func (p Params) Logger(modelID string) logrus.FieldLogger {
	if l, ok := p[ParamKey(modelID, LoggerParam)].(logrus.FieldLogger); ok {
		return l
	}
	return nil
}
