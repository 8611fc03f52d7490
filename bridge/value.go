package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind is the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindText
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt32, KindInt64:
		return "integer"
	case KindFloat64:
		return "double"
	case KindText:
		return "string"
	case KindBytes:
		return "binary"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a bindable or fetched SQL value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	p    []byte
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int32 returns a 32-bit integer value.
func Int32(i int32) Value { return Value{kind: KindInt32, i: int64(i)} }

// Int64 returns a 64-bit integer value.
func Int64(i int64) Value { return Value{kind: KindInt64, i: i} }

// Float64 returns a double precision value.
func Float64(f float64) Value { return Value{kind: KindFloat64, f: f} }

// Text returns a string value. It binds as UTF-8 text or streams as NCLOB
// depending on the parameter type.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Bytes returns a binary value. The slice is not copied.
func Bytes(p []byte) Value { return Value{kind: KindBytes, p: p} }

// Number classifies a numeric input: finite integral values in 32-bit range
// become Int32, other integral values Int64 and everything else Float64.
func Number(f float64) Value {
	if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Trunc(f) == f {
		if f >= math.MinInt32 && f <= math.MaxInt32 {
			return Int32(int32(f))
		}
		if f >= math.MinInt64 && f < math.MaxInt64 {
			return Int64(int64(f))
		}
	}
	return Float64(f)
}

// Integer picks Int32 or Int64 by magnitude.
func Integer(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return Int32(int32(i))
	}
	return Int64(i)
}

// ValueOf converts a Go value into a Value. Anything that is not a number,
// boolean, string, byte slice or time is bound as its fmt.Sprint text.
func ValueOf(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return Integer(int64(x))
	case int8:
		return Int32(int32(x))
	case int16:
		return Int32(int32(x))
	case int32:
		return Int32(x)
	case int64:
		return Integer(x)
	case uint8:
		return Int32(int32(x))
	case uint16:
		return Int32(int32(x))
	case uint32:
		return Integer(int64(x))
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Float64(float64(x))
		}
		return Integer(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return Float64(float64(x))
		}
		return Integer(int64(x))
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case string:
		return Text(x)
	case []byte:
		return Bytes(x)
	case time.Time:
		return Text(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return Text(x.String())
	}
	return Text(fmt.Sprint(v))
}

// Values converts each argument with ValueOf.
func Values(args ...interface{}) []Value {
	vals := make([]Value, len(args))
	for i, a := range args {
		vals[i] = ValueOf(a)
	}
	return vals
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Bool() bool   { return v.b }
func (v Value) Int64() int64 { return v.i }
func (v Value) Float64() float64 {
	if v.kind == KindInt32 || v.kind == KindInt64 {
		return float64(v.i)
	}
	return v.f
}
func (v Value) Text() string  { return v.s }
func (v Value) Bytes() []byte { return v.p }

// Interface returns the value as nil, bool, int64, float64, string or []byte.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt32, KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindText:
		return v.s
	case KindBytes:
		return v.p
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBytes:
		return fmt.Sprintf("%x", v.p)
	}
	return fmt.Sprint(v.Interface())
}

// MarshalJSON encodes binary values as base64 strings like encoding/json does
// for []byte.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
