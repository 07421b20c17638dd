package gradeengine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseScore converts an untyped score input into a clamped number.
//
// Missing, null and blank inputs are 0 without error. Anything non-numeric is also 0
// but reported as ErrInvalidScore so callers can log it; it is never fatal.
func ParseScore(raw interface{}) (float64, error) {
	var value float64
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidScore, v.String())
		}
		value = f
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidScore, v)
		}
		value = f
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidScore, raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, value)
	}
	return ClampScore(value), nil
}
