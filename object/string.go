package object

import (
	"strconv"
)

// Str wraps an immutable Go string.
type Str struct {
	Header
	value string
}

func NewStr(value string) *Str {
	return &Str{Header: Header{refcnt: 1}, value: value}
}

func (s *Str) Type() *Type { return StrType }

func (s *Str) Value() string { return s.value }

func (s *Str) Inspect() string { return strconv.Quote(s.value) }

func (s *Str) String() string { return s.value }

func (s *Str) Interface() any { return s.value }

func (s *Str) Equals(other Object) bool {
	o, ok := other.(*Str)
	return ok && o.value == s.value
}

func (s *Str) Compare(other Object) (int, bool) {
	o, ok := other.(*Str)
	if !ok {
		return 0, false
	}
	return cmpOrdered(s.value, o.value), true
}
