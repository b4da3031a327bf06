// Package object provides the managed object model of the backing runtime.
//
// Every object carries a Header holding its heap id and reference count.
// Builtin singletons and type objects are immortal: reference counting on
// them is a no-op. Extension code never sees these values directly; it goes
// through handles and an abi.Context.
//
// For runtime-internal users, an Object will often be type asserted to a
// concrete type:
//
//	switch obj := obj.(type) {
//	case *object.Int:
//		// do something with obj.Value()
//	case *object.Str:
//		// do something with obj.Value()
//	}
package object

import (
	"fmt"
	"sort"
)

// HeaderSize is the number of bytes the runtime reserves at the start of
// every instance's storage.
const HeaderSize = 16

// Object is the interface that all managed objects implement.
type Object interface {
	// ObjectHeader returns the bookkeeping header of the object.
	ObjectHeader() *Header

	// Type returns the type object of the object.
	Type() *Type

	// Inspect returns a string representation of the object.
	Inspect() string

	// Interface converts the object to a native Go value.
	Interface() any

	// Equals returns true if the given object is equal to this object.
	Equals(other Object) bool
}

// Header is embedded in every object.
type Header struct {
	id       uint64
	refcnt   int64
	immortal bool
}

func (h *Header) ObjectHeader() *Header { return h }

// ID returns the heap id of the object, or zero if it was never registered.
func (h *Header) ID() uint64 { return h.id }

// SetID is called by the heap when it registers the object.
func (h *Header) SetID(id uint64) { h.id = id }

// RefCount returns the current reference count. Immortal objects report 1.
func (h *Header) RefCount() int64 {
	if h.immortal {
		return 1
	}
	return h.refcnt
}

// IsImmortal reports whether reference counting is disabled for the object.
func (h *Header) IsImmortal() bool { return h.immortal }

// MakeImmortal disables reference counting for the object.
func (h *Header) MakeImmortal() { h.immortal = true }

// IncRef adds one reference.
func (h *Header) IncRef() {
	if !h.immortal {
		h.refcnt++
	}
}

// DecRef drops one reference and returns the remaining count. Immortal
// objects always return 1.
func (h *Header) DecRef() int64 {
	if h.immortal {
		return 1
	}
	h.refcnt--
	if h.refcnt < 0 {
		panic(fmt.Sprintf("object %d: reference count dropped below zero", h.id))
	}
	return h.refcnt
}

// InitRef sets the count of a freshly allocated object.
func (h *Header) InitRef() { h.refcnt = 1 }

func immortal() Header {
	return Header{refcnt: 1, immortal: true}
}

// CompareOp selects a rich comparison.
type CompareOp int

const (
	LT CompareOp = iota
	LE
	EQ
	NE
	GT
	GE
)

func (op CompareOp) String() string {
	switch op {
	case LT:
		return "<"
	case LE:
		return "<="
	case EQ:
		return "=="
	case NE:
		return "!="
	case GT:
		return ">"
	case GE:
		return ">="
	default:
		return "?"
	}
}

// Apply interprets a three-way comparison result for op.
func (op CompareOp) Apply(cmp int) bool {
	switch op {
	case LT:
		return cmp < 0
	case LE:
		return cmp <= 0
	case EQ:
		return cmp == 0
	case NE:
		return cmp != 0
	case GT:
		return cmp > 0
	case GE:
		return cmp >= 0
	default:
		return false
	}
}

// Referents returns the objects directly referenced by a builtin container.
// Instances report their references through their type's traverse chain.
func Referents(obj Object) []Object {
	switch obj := obj.(type) {
	case *Tuple:
		return obj.items
	case *List:
		return obj.items
	case *Builtin:
		if obj.self != nil {
			return []Object{obj.self}
		}
	case *SeqIter:
		return []Object{obj.seq}
	case *Module:
		out := make([]Object, 0, len(obj.attrs))
		for _, name := range obj.names {
			out = append(out, obj.attrs[name])
		}
		return out
	}
	return nil
}

// Keys returns the keys of an object map as a sorted slice of strings.
func Keys(m map[string]Object) []string {
	var names []string
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TypeName returns the qualified name of the type of obj.
func TypeName(obj Object) string {
	if obj == nil {
		return "<null>"
	}
	return obj.Type().Name()
}
