package ops

import (
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

func exceptionType(b bridge.Bridge, typ handle.Handle) (*object.Type, error) {
	t, err := typeArg(b, typ)
	if err != nil {
		return nil, err
	}
	if !t.IsSubtype(object.BaseExceptionType) {
		return nil, fail(b, errz.TypeErrorf("exceptions must derive from BaseException, not '%s'", t.Name()))
	}
	return t, nil
}

// ErrSetString raises an exception of type typ and returns it as an error.
func ErrSetString(b bridge.Bridge, typ handle.Handle, msg string) error {
	t, err := exceptionType(b, typ)
	if err != nil {
		return err
	}
	b.Heap().SetErrorString(t, msg)
	return heap.ErrorFromException(b.Heap().PendingError())
}

// ErrSet raises value: an exception instance is raised as is, anything
// else becomes the message of a new exception of type typ.
func ErrSet(b bridge.Bridge, typ, value handle.Handle) error {
	t, err := exceptionType(b, typ)
	if err != nil {
		return err
	}
	hp := b.Heap()
	if value.IsNull() {
		hp.SetErrorString(t, "")
		return heap.ErrorFromException(hp.PendingError())
	}
	v, err := borrow(b, value)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case *object.Exception:
		hp.IncRef(v)
		hp.SetError(v)
	case *object.Str:
		hp.SetErrorString(t, v.Value())
	default:
		s, err := hp.Str(v)
		if err != nil {
			return fail(b, err)
		}
		hp.SetErrorString(t, s.(*object.Str).Value())
		hp.DecRef(s)
	}
	return heap.ErrorFromException(hp.PendingError())
}

func ErrOccurred(b bridge.Bridge) bool {
	return b.Heap().PendingError() != nil
}

func ErrExceptionMatches(b bridge.Bridge, typ handle.Handle) bool {
	obj, err := b.Borrow(typ)
	if err != nil {
		return false
	}
	t, ok := obj.(*object.Type)
	return ok && b.Heap().ExceptionMatches(t)
}

// ErrFetch removes the pending exception and returns a handle to it, or
// Null when none is pending.
func ErrFetch(b bridge.Bridge) (handle.Handle, error) {
	exc := b.Heap().FetchError()
	if exc == nil {
		return handle.Null, nil
	}
	h, err := b.Own(exc)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return h, nil
}

func ErrClear(b bridge.Bridge) {
	b.Heap().ClearError()
}

// ErrRaise raises err as the exception matching its kind. A nil err leaves
// the slot alone.
func ErrRaise(b bridge.Bridge, err error) error {
	if err == nil {
		return nil
	}
	return fail(b, err)
}
