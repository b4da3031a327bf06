package trampoline

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Slot adapters. Each converts impl to the function type of its signature
// and returns the native slot function, or a configuration error when impl
// has the wrong type.

func New(b bridge.Bridge, name string, impl any) (object.NewFunc, error) {
	fn, err := convert[abi.NewFunc](name, abi.SigNew, impl)
	if err != nil {
		return nil, err
	}
	return func(typ *object.Type, args []object.Object, kwnames []string) (result object.Object, err error) {
		f := enter(b, name, len(args)+1)
		defer f.leave()
		defer guard(name, &err)
		t, err := f.handle(typ)
		if err != nil {
			return nil, err
		}
		hs, err := f.handles(args)
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, t, hs, kwnames))
	}, nil
}

func Init(b bridge.Bridge, name string, impl any) (object.InitFunc, error) {
	fn, err := convert[abi.InitProc](name, abi.SigInit, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object, args []object.Object, kwnames []string) (err error) {
		f := enter(b, name, len(args)+1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return err
		}
		hs, err := f.handles(args)
		if err != nil {
			return err
		}
		return fn(b, s, hs, kwnames)
	}, nil
}

func Call(b bridge.Bridge, name string, impl any) (object.NativeFunc, error) {
	fn, err := convert[abi.KeywordsFunc](name, abi.SigCall, impl)
	if err != nil {
		return nil, err
	}
	return keywords(b, name, fn), nil
}

func Unary(b bridge.Bridge, name string, impl any) (object.UnaryFunc, error) {
	fn, err := convert[abi.UnaryFunc](name, abi.SigUnary, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) (result object.Object, err error) {
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, s))
	}, nil
}

// IterNext adapts an iternext slot: a Null result without a pending
// exception means exhaustion.
func IterNext(b bridge.Bridge, name string, impl any) (object.UnaryFunc, error) {
	fn, err := convert[abi.UnaryFunc](name, abi.SigUnary, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) (result object.Object, err error) {
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		h, err := fn(b, s)
		if err == nil && h.IsNull() && b.Heap().PendingError() == nil {
			return nil, errz.StopIterationError()
		}
		return f.result(h, err)
	}, nil
}

func Binary(b bridge.Bridge, name string, impl any) (object.BinaryFunc, error) {
	fn, err := convert[abi.BinaryFunc](name, abi.SigBinary, impl)
	if err != nil {
		return nil, err
	}
	return func(self, other object.Object) (result object.Object, err error) {
		f := enter(b, name, 2)
		defer f.leave()
		defer guard(name, &err)
		hs, err := f.handles([]object.Object{self, other})
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, hs[0], hs[1]))
	}, nil
}

func RichCompare(b bridge.Bridge, name string, impl any) (object.RichCompareFunc, error) {
	fn, err := convert[abi.RichCompareFunc](name, abi.SigRichCompare, impl)
	if err != nil {
		return nil, err
	}
	return func(self, other object.Object, op object.CompareOp) (result object.Object, err error) {
		f := enter(b, name, 2)
		defer f.leave()
		defer guard(name, &err)
		hs, err := f.handles([]object.Object{self, other})
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, hs[0], hs[1], abi.CompareOp(op)))
	}, nil
}

func Len(b bridge.Bridge, name string, impl any) (object.LenFunc, error) {
	fn, err := convert[abi.LenFunc](name, abi.SigLen, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) (n int, err error) {
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return 0, err
		}
		return fn(b, s)
	}, nil
}

func Hash(b bridge.Bridge, name string, impl any) (object.HashFunc, error) {
	fn, err := convert[abi.HashFunc](name, abi.SigHash, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) (v int64, err error) {
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return 0, err
		}
		return fn(b, s)
	}, nil
}

func SetItem(b bridge.Bridge, name string, impl any) (object.SetItemFunc, error) {
	fn, err := convert[abi.SetItemFunc](name, abi.SigSetItem, impl)
	if err != nil {
		return nil, err
	}
	return func(self, key, value object.Object) (err error) {
		f := enter(b, name, 3)
		defer f.leave()
		defer guard(name, &err)
		hs, err := f.handles([]object.Object{self, key, value})
		if err != nil {
			return err
		}
		return fn(b, hs[0], hs[1], hs[2])
	}, nil
}

func Getter(b bridge.Bridge, name string, fn abi.GetterFunc, closure any) object.GetterFunc {
	return func(self object.Object) (result object.Object, err error) {
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, s, closure))
	}
}

func Setter(b bridge.Bridge, name string, fn abi.SetterFunc, closure any) object.SetterFunc {
	return func(self, value object.Object) (err error) {
		f := enter(b, name, 2)
		defer f.leave()
		defer guard(name, &err)
		hs, err := f.handles([]object.Object{self, value})
		if err != nil {
			return err
		}
		return fn(b, hs[0], hs[1], closure)
	}
}

func GetBuffer(b bridge.Bridge, name string, impl any) (object.GetBufferFunc, error) {
	fn, err := convert[abi.GetBufferFunc](name, abi.SigGetBuffer, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) (data []byte, err error) {
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		buf, err := fn(b, s)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), buf.Data...), nil
	}, nil
}

func ReleaseBuffer(b bridge.Bridge, name string, impl any) (object.ReleaseBufferFunc, error) {
	fn, err := convert[abi.ReleaseBufferFunc](name, abi.SigReleaseBuffer, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) {
		f := enter(b, name, 1)
		defer f.leave()
		defer func() {
			if r := recover(); r != nil {
				b.Heap().Logger().Error().Str("slot", name).Interface("panic", r).Msg("release buffer panicked")
			}
		}()
		s, err := f.handle(self)
		if err != nil {
			return
		}
		fn(b, s, abi.Buffer{})
	}, nil
}

func Finalize(b bridge.Bridge, name string, impl any) (object.FinalizeFunc, error) {
	fn, err := convert[abi.FinalizeFunc](name, abi.SigFinalize, impl)
	if err != nil {
		return nil, err
	}
	return func(self object.Object) {
		f := enter(b, name, 1)
		defer f.leave()
		defer func() {
			if r := recover(); r != nil {
				b.Heap().Logger().Error().Str("slot", name).Interface("panic", r).Msg("finalizer panicked")
			}
		}()
		s, err := f.handle(self)
		if err != nil {
			return
		}
		fn(b, s)
	}, nil
}

// Traverse adapts a traverse hook of a type whose payload starts at base.
func Traverse(name string, impl any, base int) (object.TraverseFunc, error) {
	fn, err := convert[abi.TraverseFunc](name, abi.SigTraverse, impl)
	if err != nil {
		return nil, err
	}
	return func(inst *object.Instance, visit object.VisitFunc) (err error) {
		defer guard(name, &err)
		return fn(abi.NewPayload(inst, base), func(field abi.Field) error {
			return visit(field.Offset())
		})
	}, nil
}

// Destroy adapts a destroy hook of a type whose payload starts at base. The
// result is only reachable through the type's destroy chain.
func Destroy(b bridge.Bridge, name string, impl any, base int) (object.DestroyFunc, error) {
	fn, err := convert[abi.DestroyFunc](name, abi.SigDestroy, impl)
	if err != nil {
		return nil, err
	}
	return func(inst *object.Instance) {
		defer func() {
			if r := recover(); r != nil {
				b.Heap().Logger().Error().Str("slot", name).Interface("panic", r).Msg("destroy hook panicked")
			}
		}()
		fn(abi.NewPayload(inst, base))
	}, nil
}

// ModExec adapts a module exec slot.
func ModExec(b bridge.Bridge, name string, impl any) (func(*object.Module) error, error) {
	fn, err := convert[abi.ModExecFunc](name, abi.SigModExec, impl)
	if err != nil {
		return nil, err
	}
	return func(m *object.Module) (err error) {
		defer guard(name, &err)
		h, err := bridge.NewRef(b, m)
		if err != nil {
			return err
		}
		defer func() { _ = b.Close(h) }()
		return fn(b, h)
	}, nil
}
