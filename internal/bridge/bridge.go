// Package bridge defines what every backend Context offers on top of the
// extension-facing abi.Context: conversion between handles and heap
// objects. Trampolines, the type factory and the shared operations are
// written against this interface only.
package bridge

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Bridge is a backend Context.
type Bridge interface {
	abi.Context

	// Heap returns the heap the context operates on.
	Heap() *heap.Heap

	// Borrow resolves h without changing any reference count. Inline
	// handles resolve to immortal temporaries.
	Borrow(h handle.Handle) (object.Object, error)

	// Own wraps a new reference to obj in a handle. The reference is
	// consumed, also on failure.
	Own(obj object.Object) (handle.Handle, error)

	// InlineScalars reports whether small ints and floats are encoded in
	// the handle itself.
	InlineScalars() bool
}

// NewRef returns a handle holding a new reference to the borrowed obj.
func NewRef(b Bridge, obj object.Object) (handle.Handle, error) {
	b.Heap().IncRef(obj)
	return b.Own(obj)
}

// BorrowAll resolves every handle in hs.
func BorrowAll(b Bridge, hs []handle.Handle) ([]object.Object, error) {
	out := make([]object.Object, len(hs))
	for i, h := range hs {
		obj, err := b.Borrow(h)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

// FromInline materializes an inline scalar handle as an immortal object.
func FromInline(h handle.Handle) (object.Object, bool) {
	if i, ok := h.Int(); ok {
		return object.NewImmortalInt(i), true
	}
	if f, ok := h.Float(); ok {
		return object.NewImmortalFloat(f), true
	}
	return nil, false
}

// ToInline encodes obj in a handle when it is an int or float that fits.
// Bools are never inlined: they are singletons with identity.
func ToInline(obj object.Object) (handle.Handle, bool) {
	switch o := obj.(type) {
	case *object.Int:
		return handle.MakeInt(o.Value())
	case *object.Float:
		return handle.MakeFloat(o.Value())
	}
	return handle.Null, false
}

// ErrNull is returned for operations on the null handle.
func ErrNull() error {
	return errz.ContractErrorf("operation on the null handle")
}

// ErrClosed is returned for handles that are not open.
func ErrClosed(h handle.Handle) error {
	return errz.ContractErrorf("%s is not open (closed or never issued)", h).WithCode(errz.H4003)
}
