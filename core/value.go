package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a single cell. The zero Value is the integer 0.
type Value struct {
	kind ColumnType
	i    int64
	f    float64
	s    string
}

// Int returns an INT value.
func Int(v int64) Value {
	return Value{kind: IntType, i: v}
}

// Float returns a FLOAT value.
func Float(v float64) Value {
	return Value{kind: FloatType, f: v}
}

// Text returns a TEXT value.
func Text(v string) Value {
	return Value{kind: TextType, s: v}
}

// Zero returns the default value of a kind: 0, 0.0 or the empty string.
func Zero(kind ColumnType) Value {
	return Value{kind: kind}
}

// Type returns the kind the value was built with.
func (v Value) Type() ColumnType { return v.kind }

// Int returns the integer payload; it is 0 unless Type is IntType.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload; it is 0 unless Type is FloatType.
func (v Value) Float() float64 { return v.f }

// Text returns the string payload; it is empty unless Type is TextType.
func (v Value) Text() string { return v.s }

// IsZero reports whether v is the null-like sentinel of its kind. Such
// values never violate a foreign key.
func (v Value) IsZero() bool {
	switch v.kind {
	case FloatType:
		return v.f == 0
	case TextType:
		return v.s == ""
	default:
		return v.i == 0
	}
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.Compare(other) == 0
}

// Compare orders values by kind first and then by value.
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		if v.kind < other.kind {
			return -1
		}
		return 1
	}

	switch v.kind {
	case FloatType:
		switch {
		case v.f < other.f:
			return -1
		case v.f > other.f:
			return 1
		}
		return 0
	case TextType:
		return strings.Compare(v.s, other.s)
	default:
		switch {
		case v.i < other.i:
			return -1
		case v.i > other.i:
			return 1
		}
		return 0
	}
}

// String formats the value as it appears in rendered results.
func (v Value) String() string {
	switch v.kind {
	case FloatType:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case TextType:
		return v.s
	default:
		return strconv.FormatInt(v.i, 10)
	}
}

// Interface returns the Go value carried by v (int64, float64 or string).
func (v Value) Interface() any {
	switch v.kind {
	case FloatType:
		return v.f
	case TextType:
		return v.s
	default:
		return v.i
	}
}

// MarshalJSON encodes the payload as a JSON number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Coerce converts raw to a Value of the given kind. A nil raw value yields the
// zero value of the kind.
func Coerce(raw any, kind ColumnType) (Value, error) {
	if !kind.Valid() {
		return Value{}, fmt.Errorf("unknown column type %d", int(kind))
	}

	switch x := raw.(type) {
	case nil:
		return Zero(kind), nil
	case Value:
		return fromValue(x, kind)
	case *Value:
		if x == nil {
			return Zero(kind), nil
		}
		return fromValue(*x, kind)
	case int:
		return fromInt(int64(x), kind), nil
	case int8:
		return fromInt(int64(x), kind), nil
	case int16:
		return fromInt(int64(x), kind), nil
	case int32:
		return fromInt(int64(x), kind), nil
	case int64:
		return fromInt(x, kind), nil
	case uint:
		return fromUint(uint64(x), kind)
	case uint8:
		return fromInt(int64(x), kind), nil
	case uint16:
		return fromInt(int64(x), kind), nil
	case uint32:
		return fromInt(int64(x), kind), nil
	case uint64:
		return fromUint(x, kind)
	case float32:
		return fromFloat(float64(x), kind)
	case float64:
		return fromFloat(x, kind)
	case bool:
		if x {
			return fromInt(1, kind), nil
		}
		return fromInt(0, kind), nil
	case json.Number:
		return fromString(x.String(), kind)
	case string:
		return fromString(x, kind)
	default:
		return Value{}, fmt.Errorf("cannot convert %T to %s", raw, kind)
	}
}

func fromValue(v Value, kind ColumnType) (Value, error) {
	if v.kind == kind {
		return v, nil
	}
	switch v.kind {
	case FloatType:
		return fromFloat(v.f, kind)
	case TextType:
		return fromString(v.s, kind)
	default:
		return fromInt(v.i, kind), nil
	}
}

func fromInt(i int64, kind ColumnType) Value {
	switch kind {
	case FloatType:
		return Float(float64(i))
	case TextType:
		return Text(strconv.FormatInt(i, 10))
	default:
		return Int(i)
	}
}

func fromUint(u uint64, kind ColumnType) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("unsigned %d overflows INT", u)
	}
	return fromInt(int64(u), kind), nil
}

// maxIntFloat is 2^63, the smallest float64 that does not fit in an int64.
const maxIntFloat = -float64(math.MinInt64)

func fromFloat(f float64, kind ColumnType) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("non-finite float %v", f)
	}
	switch kind {
	case IntType:
		if f >= maxIntFloat || f < math.MinInt64 {
			return Value{}, fmt.Errorf("float %v overflows INT", f)
		}
		return Int(int64(f)), nil
	case TextType:
		return Text(strconv.FormatFloat(f, 'f', -1, 64)), nil
	default:
		return Float(f), nil
	}
}

func fromString(s string, kind ColumnType) (Value, error) {
	switch kind {
	case IntType:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return Zero(IntType), nil
		}
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot convert %q to INT", s)
		}
		return fromFloat(f, IntType)
	case FloatType:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return Zero(FloatType), nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot convert %q to FLOAT", s)
		}
		return fromFloat(f, FloatType)
	default:
		return Text(s), nil
	}
}
