package db

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Extra column values pass through two steps before they reach the store:
//
//	Go value → scalar (Normalize)  → coerced scalar (CoerceValue) → SQLite class
//	int8..uint64, bool             → int64                        → INTEGER
//	float32/float64                → float64                      → REAL
//	string, fmt.Stringer           → string                       → TEXT
//	[]byte                         → []byte                       → BLOB
//	time.Time                      → string (RFC 3339)            → TEXT
//
// The coercion then follows the column affinity:
//   - TEXT: numbers → string
//   - INTEGER: floats truncated, numeric strings parsed
//   - REAL: all numbers → float64, numeric strings parsed
//   - NUMERIC: whole floats → int64, fractional → float64
//   - BLOB: no coercion
//
// See https://www.sqlite.org/datatype3.html for the SQLite rules.

// Affinity is the SQLite type affinity of a column.
type Affinity int

const (
	// AffinityBLOB has no type preference; values are stored as-is.
	AffinityBLOB Affinity = iota
	// AffinityTEXT stores numbers as their string representation.
	AffinityTEXT
	// AffinityINTEGER forces integer representation.
	AffinityINTEGER
	// AffinityREAL forces floating point representation.
	AffinityREAL
	// AffinityNUMERIC stores whole numbers as INTEGER and others as REAL.
	AffinityNUMERIC
)

// SQLType returns the declared column type used in CREATE TABLE statements.
func (a Affinity) SQLType() string {
	switch a {
	case AffinityTEXT:
		return "TEXT"
	case AffinityINTEGER:
		return "INTEGER"
	case AffinityREAL:
		return "REAL"
	case AffinityNUMERIC:
		return "NUMERIC"
	default:
		return "BLOB"
	}
}

func (a Affinity) String() string {
	return a.SQLType()
}

// ParseAffinity maps a declared column type to its affinity using the
// SQLite name matching rules (e.g. "VARCHAR(10)" → TEXT, "BIGINT" → INTEGER).
func ParseAffinity(declared string) Affinity {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityINTEGER
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityTEXT
	case t == "", strings.Contains(t, "BLOB"):
		return AffinityBLOB
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityREAL
	default:
		return AffinityNUMERIC
	}
}

// Normalize converts a Go value into one of the scalar types understood by
// the store (nil, int64, float64, string, []byte).
func Normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int64, float64, string, []byte:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", value)
	}
}

// CoerceValue applies the affinity rules to a normalized scalar.
// Nil values pass through unchanged.
func CoerceValue(value any, affinity Affinity) any {
	if value == nil {
		return nil
	}

	switch affinity {
	case AffinityTEXT:
		return coerceToText(value)
	case AffinityINTEGER:
		return coerceToInteger(value)
	case AffinityREAL:
		return coerceToReal(value)
	case AffinityNUMERIC:
		return coerceToNumeric(value)
	default:
		return value
	}
}

func coerceToText(value any) any {
	switch v := value.(type) {
	case float64:
		if isWhole(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return value
	}
}

func coerceToInteger(value any) any {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return int64(f)
		}
		// non-numeric text stays TEXT
		return v
	default:
		return value
	}
}

func coerceToReal(value any) any {
	switch v := value.(type) {
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	default:
		return value
	}
}

func coerceToNumeric(value any) any {
	switch v := value.(type) {
	case float64:
		if isWhole(v) {
			return int64(v)
		}
		return v
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			if isWhole(f) {
				return int64(f)
			}
			return f
		}
		return v
	default:
		return value
	}
}

func isWhole(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f) && f >= math.MinInt64 && f <= math.MaxInt64
}
