package ports

import (
	"math"
	"strconv"
)

// ValueKind is the dynamic type of a script value.
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindNumber
	KindString
	KindBool
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an engine-neutral copy of a script result. It holds no reference
// into the engine, so it stays valid after the execution lock is released.
type Value struct {
	text string
	num  float64
	kind ValueKind
}

// Undefined returns the absent value.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null returns the explicit empty value.
func Null() Value { return Value{kind: KindNull} }

// Number wraps a numeric result.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string result.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool wraps a boolean result.
func Bool(b bool) Value {
	v := Value{kind: KindBool, text: strconv.FormatBool(b)}
	if b {
		v.num = 1
	}
	return v
}

// Object wraps a non-primitive result by its display string.
func Object(display string) Value { return Value{kind: KindObject, text: display} }

// Kind returns the dynamic type.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether v is undefined or null.
func (v Value) IsAbsent() bool {
	return v.kind == KindUndefined || v.kind == KindNull
}

// Float returns the value as a measurement. Only numbers convert; NaN is
// reported as not numeric.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.num) {
		return 0, false
	}
	return v.num, true
}

// String returns the display-string representation.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	default:
		return v.text
	}
}

// MaxValue is the mutable numeric out-parameter handed to a script's Reload.
type MaxValue struct {
	Value float64
	Set   bool
}

// Store records a new maximum.
func (m *MaxValue) Store(v float64) {
	m.Value = v
	m.Set = true
}
