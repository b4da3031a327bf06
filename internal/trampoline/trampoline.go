// Package trampoline adapts implementation functions written against the
// abi calling conventions to the native conventions of the heap. Every
// adapter converts objects to handles owned by a per-call Tracker, calls the
// implementation, converts the result back and closes what it opened.
package trampoline

import (
	"reflect"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

// convert checks that impl has the function type F, accepting unnamed
// function literals of the same shape.
func convert[F any](name string, sig abi.Sig, impl any) (F, error) {
	var zero F
	if f, ok := impl.(F); ok {
		if reflect.ValueOf(f).IsNil() {
			return zero, errz.ConfigurationErrorf("%s: nil implementation", name).WithCode(errz.H2005)
		}
		return f, nil
	}
	v := reflect.ValueOf(impl)
	target := reflect.TypeOf(zero)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() || !v.Type().ConvertibleTo(target) {
		return zero, errz.ConfigurationErrorf("%s: implementation of type %T does not match signature %s (want %s)",
			name, impl, sig, target).WithCode(errz.H2005)
	}
	return v.Convert(target).Interface().(F), nil
}

// guard turns a panic in an implementation into a system error.
func guard(name string, err *error) {
	if r := recover(); r != nil {
		*err = errz.SystemErrorf("%s panicked: %v", name, r).WithCode(errz.H9003)
	}
}

// frame holds the handles opened for one call.
type frame struct {
	b    bridge.Bridge
	name string
	tr   *abi.Tracker
}

func enter(b bridge.Bridge, name string, n int) *frame {
	return &frame{b: b, name: name, tr: abi.NewTracker(b, n+1)}
}

func (f *frame) leave() {
	_ = f.tr.Close()
}

// handle opens a tracked handle to obj. A nil obj yields Null.
func (f *frame) handle(obj object.Object) (handle.Handle, error) {
	if obj == nil {
		return handle.Null, nil
	}
	h, err := bridge.NewRef(f.b, obj)
	if err != nil {
		return handle.Null, err
	}
	if err := f.tr.Add(h); err != nil {
		if f.tr.Err() != nil {
			// Poisoned trackers do not keep the handle.
			_ = f.b.Close(h)
		}
		return handle.Null, err
	}
	return h, nil
}

func (f *frame) handles(objs []object.Object) ([]handle.Handle, error) {
	out := make([]handle.Handle, len(objs))
	for i, obj := range objs {
		h, err := f.handle(obj)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// result converts a returned handle into a new object reference and closes
// the handle.
func (f *frame) result(h handle.Handle, err error) (object.Object, error) {
	return takeResult(f.b, f.name, h, err)
}

func takeResult(b bridge.Bridge, name string, h handle.Handle, err error) (object.Object, error) {
	if err != nil {
		if !h.IsNull() {
			_ = b.Close(h)
		}
		return nil, err
	}
	if h.IsNull() {
		return nil, nullResult(b, name)
	}
	obj, err := b.Borrow(h)
	if err != nil {
		return nil, err
	}
	b.Heap().IncRef(obj)
	if err := b.Close(h); err != nil {
		b.Heap().DecRef(obj)
		return nil, err
	}
	return obj, nil
}

// nullResult reports a Null result: the pending exception if the
// implementation raised one, a system error otherwise.
func nullResult(b bridge.Bridge, name string) error {
	if exc := b.Heap().PendingError(); exc != nil {
		return heap.ErrorFromException(exc)
	}
	return errz.SystemErrorf("%s returned NULL without setting an error", name).WithCode(errz.H9002)
}

func noKeywords(name string, kwnames []string) error {
	if len(kwnames) > 0 {
		return errz.TypeErrorf("%s() takes no keyword arguments", name)
	}
	return nil
}
