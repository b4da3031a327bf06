package object

import (
	"strings"
)

// Tuple is an immutable sequence. Struct sequences are tuples whose type
// derives from tuple and names the items.
type Tuple struct {
	Header
	typ   *Type
	items []Object
}

// NewTuple takes ownership of one reference to each item.
func NewTuple(items []Object) *Tuple {
	return &Tuple{Header: Header{refcnt: 1}, items: items}
}

// NewStructSeq creates an instance of the struct sequence type typ. It takes
// ownership of one reference to each item.
func NewStructSeq(typ *Type, items []Object) *Tuple {
	return &Tuple{Header: Header{refcnt: 1}, typ: typ, items: items}
}

func (t *Tuple) Type() *Type {
	if t.typ != nil {
		return t.typ
	}
	return TupleType
}

func (t *Tuple) Items() []Object { return t.items }

func (t *Tuple) Len() int { return len(t.items) }

// Get returns the item at index i without adding a reference.
func (t *Tuple) Get(i int) Object { return t.items[i] }

// ClearItems forgets every item and returns them so the caller can release
// their references.
func (t *Tuple) ClearItems() []Object {
	items := t.items
	t.items = nil
	return items
}

func (t *Tuple) Inspect() string {
	var sb strings.Builder
	if t.typ != nil && len(t.typ.fields) > 0 {
		sb.WriteString(t.typ.name)
		sb.WriteByte('(')
		for i, item := range t.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			if i < len(t.typ.fields) {
				sb.WriteString(t.typ.fields[i])
				sb.WriteByte('=')
			}
			sb.WriteString(item.Inspect())
		}
		sb.WriteByte(')')
		return sb.String()
	}
	sb.WriteByte('(')
	for i, item := range t.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(item.Inspect())
	}
	if len(t.items) == 1 {
		sb.WriteByte(',')
	}
	sb.WriteByte(')')
	return sb.String()
}

func (t *Tuple) String() string { return t.Inspect() }

func (t *Tuple) Interface() any {
	out := make([]any, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, item.Interface())
	}
	return out
}

func (t *Tuple) Equals(other Object) bool {
	o, ok := other.(*Tuple)
	if !ok || len(o.items) != len(t.items) {
		return false
	}
	for i, item := range t.items {
		if !item.Equals(o.items[i]) {
			return false
		}
	}
	return true
}
