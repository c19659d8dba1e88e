package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params holds planner-supplied tool parameters.
// Values arrive loosely typed from JSON; tools read them through the typed
// accessors, which coerce where the conversion is lossless and fail with an
// INVALID_PARAMETER error otherwise.
type Params map[string]interface{}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Float returns key as a float64, falling back to def when absent.
func (p Params) Float(tool, key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, ErrInvalidParameter(tool, key, fmt.Sprintf("must be a number, got %T", v))
	}
	return f, nil
}

// FloatIn is Float with an inclusive range check.
func (p Params) FloatIn(tool, key string, def, lo, hi float64) (float64, error) {
	f, err := p.Float(tool, key, def)
	if err != nil {
		return 0, err
	}
	if f < lo || f > hi {
		return 0, ErrInvalidParameter(tool, key, fmt.Sprintf("must be between %g and %g, got %g", lo, hi, f))
	}
	return f, nil
}

// Int returns key as an int, falling back to def when absent.
// Floats with a fractional part are rejected.
func (p Params) Int(tool, key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, ErrInvalidParameter(tool, key, fmt.Sprintf("must be an integer, got %T", v))
	}
	if f != math.Trunc(f) {
		return 0, ErrInvalidParameter(tool, key, fmt.Sprintf("must be an integer, got %g", f))
	}
	return int(f), nil
}

// IntIn is Int with an inclusive range check.
func (p Params) IntIn(tool, key string, def, lo, hi int) (int, error) {
	n, err := p.Int(tool, key, def)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, ErrInvalidParameter(tool, key, fmt.Sprintf("must be between %d and %d, got %d", lo, hi, n))
	}
	return n, nil
}

// RequireInt is Int for parameters without a default.
func (p Params) RequireInt(tool, key string) (int, error) {
	if v, ok := p[key]; !ok || v == nil {
		return 0, ErrInvalidParameter(tool, key, "is required")
	}
	return p.Int(tool, key, 0)
}

// OptionalInt returns (value, true) when key is set.
func (p Params) OptionalInt(tool, key string) (int, bool, error) {
	if v, ok := p[key]; !ok || v == nil {
		return 0, false, nil
	}
	n, err := p.Int(tool, key, 0)
	return n, err == nil, err
}

// OptionalFloat returns (value, true) when key is set.
func (p Params) OptionalFloat(tool, key string) (float64, bool, error) {
	if v, ok := p[key]; !ok || v == nil {
		return 0, false, nil
	}
	f, err := p.Float(tool, key, 0)
	return f, err == nil, err
}

// Bool returns key as a bool, falling back to def when absent.
func (p Params) Bool(tool, key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, ErrInvalidParameter(tool, key, fmt.Sprintf("must be a boolean, got %q", b))
		}
		return parsed, nil
	}
	return false, ErrInvalidParameter(tool, key, fmt.Sprintf("must be a boolean, got %T", v))
}

// String returns key as a string, falling back to def when absent.
func (p Params) String(tool, key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrInvalidParameter(tool, key, fmt.Sprintf("must be a string, got %T", v))
	}
	return s, nil
}

// Enum returns key as one of allowed, falling back to def when absent.
func (p Params) Enum(tool, key, def string, allowed ...string) (string, error) {
	s, err := p.String(tool, key, def)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a, nil
		}
	}
	return "", ErrInvalidParameter(tool, key, fmt.Sprintf("must be one of %s, got %q", strings.Join(allowed, ", "), s))
}

// FloatList returns key as a list of numbers of the given length.
func (p Params) FloatList(tool, key string, length int) ([]float64, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		if fs, isFloats := v.([]float64); isFloats {
			items = make([]interface{}, len(fs))
			for i, f := range fs {
				items[i] = f
			}
		} else {
			return nil, false, ErrInvalidParameter(tool, key, fmt.Sprintf("must be a list, got %T", v))
		}
	}
	if length > 0 && len(items) != length {
		return nil, false, ErrInvalidParameter(tool, key, fmt.Sprintf("must have %d elements, got %d", length, len(items)))
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, false, ErrInvalidParameter(tool, key, fmt.Sprintf("element %d must be a number", i))
		}
		out[i] = f
	}
	return out, true, nil
}

// toFloat converts v to a finite float64. NaN and infinities are rejected.
func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// PointList returns key as a list of n [x, y] pairs.
func (p Params) PointList(tool, key string, n int) ([][2]float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, ErrInvalidParameter(tool, key, "is required")
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, ErrInvalidParameter(tool, key, fmt.Sprintf("must be a list of points, got %T", v))
	}
	if len(items) != n {
		return nil, ErrInvalidParameter(tool, key, fmt.Sprintf("must have exactly %d points, got %d", n, len(items)))
	}
	out := make([][2]float64, n)
	for i, item := range items {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, ErrInvalidParameter(tool, key, fmt.Sprintf("point %d must be [x, y]", i))
		}
		for j := 0; j < 2; j++ {
			f, ok := toFloat(pair[j])
			if !ok {
				return nil, ErrInvalidParameter(tool, key, fmt.Sprintf("point %d must contain numbers", i))
			}
			out[i][j] = f
		}
	}
	return out, nil
}
