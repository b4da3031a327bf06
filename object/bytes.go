package object

import (
	"bytes"
	"fmt"
)

// Bytes is an immutable byte string. The slice is owned by the object and
// never shared with callers.
type Bytes struct {
	Header
	value []byte
}

// NewBytes copies value into a new Bytes object.
func NewBytes(value []byte) *Bytes {
	return &Bytes{Header: Header{refcnt: 1}, value: bytes.Clone(value)}
}

func (b *Bytes) Type() *Type { return BytesType }

// Value returns a copy of the contents.
func (b *Bytes) Value() []byte { return bytes.Clone(b.value) }

func (b *Bytes) Len() int { return len(b.value) }

func (b *Bytes) Inspect() string { return fmt.Sprintf("b%q", b.value) }

func (b *Bytes) String() string { return b.Inspect() }

func (b *Bytes) Interface() any { return b.Value() }

func (b *Bytes) Equals(other Object) bool {
	o, ok := other.(*Bytes)
	return ok && bytes.Equal(o.value, b.value)
}
