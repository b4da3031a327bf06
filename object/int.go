package object

import (
	"strconv"
)

// Int wraps int64.
type Int struct {
	Header
	value int64
}

// NewInt returns a fresh Int with one reference. Callers that need it to be
// visible through handles must register it with a heap.
func NewInt(value int64) *Int {
	return &Int{Header: Header{refcnt: 1}, value: value}
}

// NewImmortalInt returns an Int excluded from reference counting. It is used
// for temporaries materialized from inline handles.
func NewImmortalInt(value int64) *Int {
	return &Int{Header: immortal(), value: value}
}

func (i *Int) Type() *Type { return IntType }

func (i *Int) Value() int64 { return i.value }

func (i *Int) Inspect() string { return strconv.FormatInt(i.value, 10) }

func (i *Int) String() string { return i.Inspect() }

func (i *Int) Interface() any { return i.value }

func (i *Int) Equals(other Object) bool {
	switch other := other.(type) {
	case *Int:
		return i.value == other.value
	case *Float:
		return float64(i.value) == other.value
	default:
		return false
	}
}

func (i *Int) Compare(other Object) (int, bool) {
	switch other := other.(type) {
	case *Int:
		return cmpOrdered(i.value, other.value), true
	case *Float:
		return cmpOrdered(float64(i.value), other.value), true
	default:
		return 0, false
	}
}
