package inventory

import (
	"encoding/json"
	"math"
	"strconv"
)

// ParseItem accepts only non-empty, valid UTF-8 strings.
func ParseItem(v any) (string, error) {
	s, ok := v.(string)
	if !ok || !validItem(s) {
		return "", ErrInvalidItem
	}
	return s, nil
}

// ParseQuantity accepts Go integer types and integral json.Number values.
// Floats, bools and strings are rejected even when they look numeric.
func ParseQuantity(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return fromInt64(n)
	case uint:
		return fromUint64(uint64(n))
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return fromUint64(uint64(n))
	case uint64:
		return fromUint64(n)
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, strconv.IntSize)
		if err != nil {
			return 0, ErrInvalidQuantity
		}
		return int(i), nil
	default:
		return 0, ErrInvalidQuantity
	}
}

func fromInt64(n int64) (int, error) {
	if n > math.MaxInt || n < math.MinInt {
		return 0, ErrInvalidQuantity
	}
	return int(n), nil
}

func fromUint64(n uint64) (int, error) {
	if n > math.MaxInt {
		return 0, ErrInvalidQuantity
	}
	return int(n), nil
}
