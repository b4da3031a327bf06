package object

import (
	"math"
	"strconv"
)

// Float wraps float64.
type Float struct {
	Header
	value float64
}

func NewFloat(value float64) *Float {
	return &Float{Header: Header{refcnt: 1}, value: value}
}

// NewImmortalFloat returns a Float excluded from reference counting.
func NewImmortalFloat(value float64) *Float {
	return &Float{Header: immortal(), value: value}
}

func (f *Float) Type() *Type { return FloatType }

func (f *Float) Value() float64 { return f.value }

func (f *Float) Inspect() string {
	if math.IsInf(f.value, 0) || math.IsNaN(f.value) || f.value != math.Trunc(f.value) {
		return strconv.FormatFloat(f.value, 'g', -1, 64)
	}
	return strconv.FormatFloat(f.value, 'f', 1, 64)
}

func (f *Float) String() string { return f.Inspect() }

func (f *Float) Interface() any { return f.value }

func (f *Float) Equals(other Object) bool {
	switch other := other.(type) {
	case *Float:
		return f.value == other.value
	case *Int:
		return f.value == float64(other.value)
	default:
		return false
	}
}

func (f *Float) Compare(other Object) (int, bool) {
	switch other := other.(type) {
	case *Float:
		return cmpOrdered(f.value, other.value), true
	case *Int:
		return cmpOrdered(f.value, float64(other.value)), true
	default:
		return 0, false
	}
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
