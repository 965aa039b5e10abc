package codec

import (
	"fmt"
	"math"
)

// Scalar codecs store the value itself, so it can be aggregated in SQL
// (e.g. SELECT sum(value) FROM ...).

// NewIntCodec stores ints as INTEGER
func NewIntCodec() Codec[int] {
	return Funcs(
		func(v int) (any, error) { return int64(v), nil },
		func(stored any) (int, error) {
			i, err := toInt64(stored)
			return int(i), err
		},
	)
}

// NewInt64Codec stores int64 values as INTEGER
func NewInt64Codec() Codec[int64] {
	return Funcs(
		func(v int64) (any, error) { return v, nil },
		toInt64,
	)
}

// NewFloat64Codec stores float64 values as REAL
func NewFloat64Codec() Codec[float64] {
	return Funcs(
		func(v float64) (any, error) { return v, nil },
		func(stored any) (float64, error) {
			switch s := stored.(type) {
			case float64:
				return s, nil
			case int64:
				return float64(s), nil
			default:
				return 0, fmt.Errorf("expected real, got %T", stored)
			}
		},
	)
}

// NewStringCodec stores strings as TEXT
func NewStringCodec() Codec[string] {
	return Funcs(
		func(v string) (any, error) { return v, nil },
		func(stored any) (string, error) {
			b, err := asBytes(stored)
			return string(b), err
		},
	)
}

// NewBytesCodec stores byte slices as BLOB
func NewBytesCodec() Codec[[]byte] {
	return Funcs(
		func(v []byte) (any, error) { return v, nil },
		asBytes,
	)
}

// NewRawCodec passes persisted scalars through unchanged
func NewRawCodec() Codec[any] {
	return Funcs(
		func(v any) (any, error) { return v, nil },
		func(stored any) (any, error) { return stored, nil },
	)
}

func toInt64(stored any) (int64, error) {
	switch s := stored.(type) {
	case int64:
		return s, nil
	case float64:
		if s != math.Trunc(s) {
			return 0, fmt.Errorf("expected integer, got real %v", s)
		}
		return int64(s), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", stored)
	}
}
