package object

import (
	"strings"
)

// List is a mutable sequence.
type List struct {
	Header
	items []Object
}

// NewList takes ownership of one reference to each item.
func NewList(items []Object) *List {
	return &List{Header: Header{refcnt: 1}, items: items}
}

func (ls *List) Type() *Type { return ListType }

func (ls *List) Items() []Object { return ls.items }

func (ls *List) Len() int { return len(ls.items) }

func (ls *List) Get(i int) Object { return ls.items[i] }

// Append takes ownership of one reference to item.
func (ls *List) Append(item Object) {
	ls.items = append(ls.items, item)
}

// Set stores item at index i, taking ownership of one reference to it. The
// replaced item is returned so the caller can release it.
func (ls *List) Set(i int, item Object) Object {
	old := ls.items[i]
	ls.items[i] = item
	return old
}

// ClearItems empties the list and returns the former items.
func (ls *List) ClearItems() []Object {
	items := ls.items
	ls.items = nil
	return items
}

func (ls *List) Inspect() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, item := range ls.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(item.Inspect())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (ls *List) String() string { return ls.Inspect() }

func (ls *List) Interface() any {
	out := make([]any, 0, len(ls.items))
	for _, item := range ls.items {
		out = append(out, item.Interface())
	}
	return out
}

func (ls *List) Equals(other Object) bool {
	o, ok := other.(*List)
	if !ok || len(o.items) != len(ls.items) {
		return false
	}
	for i, item := range ls.items {
		if !item.Equals(o.items[i]) {
			return false
		}
	}
	return true
}
