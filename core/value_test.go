package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceToDeclaredKind(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		kind ColumnType
		want Value
	}{
		{"nil int", nil, IntType, Int(0)},
		{"nil float", nil, FloatType, Float(0)},
		{"nil text", nil, TextType, Text("")},
		{"int to float", 3, FloatType, Float(3)},
		{"float truncates to int", 3.9, IntType, Int(3)},
		{"int to text", int64(42), TextType, Text("42")},
		{"float to text", 2.5, TextType, Text("2.5")},
		{"string to int", " 17 ", IntType, Int(17)},
		{"decimal string to int", "17.8", IntType, Int(17)},
		{"string to float", "1.25", FloatType, Float(1.25)},
		{"empty string to int", "", IntType, Int(0)},
		{"json number to int", json.Number("999"), IntType, Int(999)},
		{"json number to float", json.Number("50000"), FloatType, Float(50000)},
		{"value passes through", Text("IT"), TextType, Text("IT")},
		{"value converts", Int(7), FloatType, Float(7)},
		{"bool to int", true, IntType, Int(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, tt.kind)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v (%s), got %v (%s)", tt.want, tt.want.Type(), got, got.Type())
		})
	}
}

func TestCoerceRejectsUnconvertible(t *testing.T) {
	_, err := Coerce("abc", IntType)
	assert.Error(t, err)

	_, err = Coerce("1.2.3", FloatType)
	assert.Error(t, err)

	_, err = Coerce(math.NaN(), FloatType)
	assert.Error(t, err)

	_, err = Coerce(struct{}{}, TextType)
	assert.Error(t, err)

	_, err = Coerce(1, ColumnType(9))
	assert.Error(t, err)
}

func TestCoerceRejectsIntOverflow(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"json number above max", json.Number("9223372036854775808")},
		{"string above max", "9223372036854775808"},
		{"float two to the 63", 9223372036854775808.0},
		{"float below min", -9223372036854777856.0},
		{"max uint", uint(math.MaxUint64)},
		{"max uint64", uint64(math.MaxUint64)},
		{"uint64 above max int", uint64(math.MaxInt64) + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, IntType)
			assert.Error(t, err, "got %v", got)
		})
	}
}

func TestCoerceIntBounds(t *testing.T) {
	v, err := Coerce(json.Number("9223372036854775807"), IntType)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.Int())

	v, err = Coerce(float64(math.MinInt64), IntType)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v.Int())

	v, err = Coerce(uint64(math.MaxInt64), IntType)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.Int())

	v, err = Coerce(uint64(12), TextType)
	require.NoError(t, err)
	assert.Equal(t, "12", v.Text())
}

func TestValueIsZero(t *testing.T) {
	assert.True(t, Int(0).IsZero())
	assert.True(t, Float(0).IsZero())
	assert.True(t, Text("").IsZero())
	assert.False(t, Int(1).IsZero())
	assert.False(t, Text("x").IsZero())
	assert.True(t, Zero(TextType).IsZero())
}

func TestValueCompareAcrossKinds(t *testing.T) {
	assert.Equal(t, -1, Int(5).Compare(Float(1)))
	assert.Equal(t, 1, Text("a").Compare(Int(100)))
	assert.Equal(t, 0, Text("a").Compare(Text("a")))
	assert.Equal(t, -1, Float(1.5).Compare(Float(2)))
	assert.False(t, Int(1).Equal(Float(1)))
}

func TestValueMarshalJSON(t *testing.T) {
	data, err := json.Marshal([]Value{Int(1), Float(2.5), Text("IT")})
	require.NoError(t, err)
	assert.Equal(t, `[1,2.5,"IT"]`, string(data))
}

func TestParseColumnType(t *testing.T) {
	for name, want := range map[string]ColumnType{
		"int": IntType, "INTEGER": IntType, "float": FloatType, "double": FloatType,
		"TEXT": TextType, "varchar": TextType, "0": IntType, "1": FloatType, "2": TextType,
	} {
		got, err := ParseColumnType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseColumnType("BLOB")
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(RowError, "insert", "expected %d values, got %d", 2, 3)
	assert.True(t, errors.Is(err, ErrRow))
	assert.False(t, errors.Is(err, ErrSchema))
	assert.Equal(t, RowError, KindOf(err))
	assert.Equal(t, "RowError: insert: expected 2 values, got 3", err.Error())

	wrapped := errors.Join(errors.New("context"), err)
	assert.Equal(t, RowError, KindOf(wrapped))
	assert.Equal(t, UnknownError, KindOf(errors.New("plain")))
}
