// Package ops implements the Context operations once, in terms of the
// Bridge primitives. Backends differ only in how handles map to objects and
// how an operation is dispatched; every observable result comes from here.
//
// Arguments are borrowed handles. Every failing operation records the
// failure in the environment error slot before returning it.
package ops

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

// fail raises err, which must not be nil.
func fail(b bridge.Bridge, err error) error {
	return b.Heap().Raise(err)
}

func borrow(b bridge.Bridge, h handle.Handle) (object.Object, error) {
	obj, err := b.Borrow(h)
	if err != nil {
		return nil, fail(b, err)
	}
	return obj, nil
}

func borrowAll(b bridge.Bridge, hs []handle.Handle) ([]object.Object, error) {
	objs, err := bridge.BorrowAll(b, hs)
	if err != nil {
		return nil, fail(b, err)
	}
	return objs, nil
}

// own wraps a new reference in a handle, inlining small scalars when the
// environment allows it.
func own(b bridge.Bridge, obj object.Object) (handle.Handle, error) {
	if b.InlineScalars() {
		if h, ok := bridge.ToInline(obj); ok {
			b.Heap().DecRef(obj)
			return h, nil
		}
	}
	h, err := b.Own(obj)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return h, nil
}

// result converts the outcome of a heap operation returning a new
// reference.
func result(b bridge.Bridge, obj object.Object, err error) (handle.Handle, error) {
	if err != nil {
		return handle.Null, fail(b, err)
	}
	if obj == nil {
		return handle.Null, fail(b, errz.SystemErrorf("operation returned no object"))
	}
	return own(b, obj)
}

// materialize returns a new reference to the object behind h. Inline
// scalars become real heap objects so that they can be stored.
func materialize(b bridge.Bridge, h handle.Handle) (object.Object, error) {
	if i, ok := h.Int(); ok {
		obj, err := b.Heap().NewInt(i)
		if err != nil {
			return nil, fail(b, err)
		}
		return obj, nil
	}
	if f, ok := h.Float(); ok {
		obj, err := b.Heap().NewFloat(f)
		if err != nil {
			return nil, fail(b, err)
		}
		return obj, nil
	}
	obj, err := borrow(b, h)
	if err != nil {
		return nil, err
	}
	b.Heap().IncRef(obj)
	return obj, nil
}

func typeArg(b bridge.Bridge, h handle.Handle) (*object.Type, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*object.Type)
	if !ok {
		return nil, fail(b, errz.TypeErrorf("expected a type, got %s", object.TypeName(obj)))
	}
	return t, nil
}

// Dup returns a new handle to the object behind h. Inline handles are
// returned unchanged.
func Dup(b bridge.Bridge, h handle.Handle) (handle.Handle, error) {
	if h.IsNull() {
		return handle.Null, fail(b, bridge.ErrNull())
	}
	if h.IsInline() {
		return h, nil
	}
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	nh, err := bridge.NewRef(b, obj)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return nh, nil
}

// AsReference returns the heap id behind an object handle.
func AsReference(b bridge.Bridge, h handle.Handle) (uint64, error) {
	if h.IsNull() {
		return 0, fail(b, bridge.ErrNull())
	}
	if h.IsInline() {
		return 0, fail(b, errz.ContractErrorf("%s is an inline scalar, not a reference", h).WithCode(errz.H4002))
	}
	obj, err := borrow(b, h)
	if err != nil {
		return 0, err
	}
	return b.Heap().IDOf(obj), nil
}

// Constant returns a handle to an immortal object. Closing it has no
// effect on the object.
func Constant(b bridge.Bridge, obj object.Object) handle.Handle {
	h, err := b.Own(obj)
	if err != nil {
		return handle.Null
	}
	return h
}

var builtinTypes = map[abi.BuiltinID]func() *object.Type{
	abi.BuiltinObject:             func() *object.Type { return object.ObjectType },
	abi.BuiltinType:               func() *object.Type { return object.TypeType },
	abi.BuiltinNone:               func() *object.Type { return object.NoneType },
	abi.BuiltinBool:               func() *object.Type { return object.BoolType },
	abi.BuiltinInt:                func() *object.Type { return object.IntType },
	abi.BuiltinFloat:              func() *object.Type { return object.FloatType },
	abi.BuiltinStr:                func() *object.Type { return object.StrType },
	abi.BuiltinBytes:              func() *object.Type { return object.BytesType },
	abi.BuiltinTuple:              func() *object.Type { return object.TupleType },
	abi.BuiltinList:               func() *object.Type { return object.ListType },
	abi.BuiltinModule:             func() *object.Type { return object.ModuleType },
	abi.BuiltinBaseException:      func() *object.Type { return object.BaseExceptionType },
	abi.BuiltinException:          func() *object.Type { return object.ExceptionType },
	abi.BuiltinTypeError:          func() *object.Type { return object.TypeErrorType },
	abi.BuiltinValueError:         func() *object.Type { return object.ValueErrorType },
	abi.BuiltinIndexError:         func() *object.Type { return object.IndexErrorType },
	abi.BuiltinKeyError:           func() *object.Type { return object.KeyErrorType },
	abi.BuiltinAttributeError:     func() *object.Type { return object.AttributeErrorType },
	abi.BuiltinStopIteration:      func() *object.Type { return object.StopIterationType },
	abi.BuiltinMemoryError:        func() *object.Type { return object.MemoryErrorType },
	abi.BuiltinSystemError:        func() *object.Type { return object.SystemErrorType },
	abi.BuiltinConfigurationError: func() *object.Type { return object.ConfigurationErrorType },
	abi.BuiltinContractViolation:  func() *object.Type { return object.ContractViolationType },
}

// BuiltinType returns the type object of a builtin id, or nil.
func BuiltinType(id abi.BuiltinID) *object.Type {
	if fn, ok := builtinTypes[id]; ok {
		return fn()
	}
	return nil
}

func Reserve(b bridge.Bridge, n int64) error {
	if err := b.Heap().Reserve(n); err != nil {
		return fail(b, err)
	}
	return nil
}

func TryReserve(b bridge.Bridge, n int64) error {
	return b.Heap().Reserve(n)
}

func Release(b bridge.Bridge, n int64) {
	b.Heap().Release(n)
}
