package object

import (
	"fmt"
)

// Exception is an instance of BaseException or one of its subtypes.
type Exception struct {
	Header
	typ     *Type
	message string
}

func NewException(typ *Type, message string) *Exception {
	return &Exception{Header: Header{refcnt: 1}, typ: typ, message: message}
}

func (e *Exception) Type() *Type { return e.typ }

func (e *Exception) Message() string { return e.message }

func (e *Exception) Inspect() string {
	return fmt.Sprintf("%s(%q)", e.typ.Name(), e.message)
}

func (e *Exception) String() string {
	return fmt.Sprintf("%s: %s", e.typ.Name(), e.message)
}

func (e *Exception) Interface() any { return e.String() }

func (e *Exception) Equals(other Object) bool { return other == Object(e) }
