package generic

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// =============================================================================
// VALUE - A single scalar query result
// =============================================================================

// Value wraps a scalar returned by the driver. Use NormalizeNull to apply the
// zero-default policy; Executor.Scalar already does.
type Value struct {
	raw any
}

// NewValue wraps v as-is. A nil v stays NULL.
func NewValue(v any) Value { return Value{raw: normalizeDriverValue(v)} }

// NormalizeNull maps a NULL or missing scalar to 0. Report arithmetic relies
// on empty data reading as zero, not as an error.
func NormalizeNull(v any) Value {
	if v == nil {
		return Value{raw: int64(0)}
	}
	return NewValue(v)
}

func (v Value) Raw() any     { return v.raw }
func (v Value) IsNull() bool { return v.raw == nil }

// Float64 converts numeric, boolean and numeric-text values. Anything else
// reads as 0.
func (v Value) Float64() float64 {
	switch x := v.raw.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case float64:
		return x
	case float32:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int rounds the value to the nearest integer.
func (v Value) Int() int {
	if i, ok := v.raw.(int64); ok {
		return int(i)
	}
	f := v.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func (v Value) String() string {
	switch x := v.raw.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return DateOf(x).String()
	case Date:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// normalizeDriverValue converts []byte to string so values compare and
// marshal predictably across drivers.
func normalizeDriverValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
