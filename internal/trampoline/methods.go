package trampoline

import (
	"fmt"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Method adapts a method implementation with the given signature. Only the
// call signatures (NoArgs, O, VarArgs, Keywords) are valid for methods;
// SigDestroy yields a function that aborts when called.
func Method(b bridge.Bridge, name string, sig abi.Sig, impl any) (object.NativeFunc, error) {
	switch sig {
	case abi.SigNoArgs:
		fn, err := convert[abi.NoArgsFunc](name, sig, impl)
		if err != nil {
			return nil, err
		}
		return noArgs(b, name, fn), nil
	case abi.SigO:
		fn, err := convert[abi.OFunc](name, sig, impl)
		if err != nil {
			return nil, err
		}
		return oneArg(b, name, fn), nil
	case abi.SigVarArgs:
		fn, err := convert[abi.VarArgsFunc](name, sig, impl)
		if err != nil {
			return nil, err
		}
		return varArgs(b, name, fn), nil
	case abi.SigKeywords, abi.SigCall:
		fn, err := convert[abi.KeywordsFunc](name, sig, impl)
		if err != nil {
			return nil, err
		}
		return keywords(b, name, fn), nil
	case abi.SigDestroy:
		if _, err := convert[abi.DestroyFunc](name, sig, impl); err != nil {
			return nil, err
		}
		return func(object.Object, []object.Object, []string) (object.Object, error) {
			panic(fmt.Sprintf("%s: destroy hook invoked as a regular call", name))
		}, nil
	default:
		return nil, errz.ConfigurationErrorf("%s: signature %s is not valid for a method", name, sig).WithCode(errz.H2005)
	}
}

func noArgs(b bridge.Bridge, name string, fn abi.NoArgsFunc) object.NativeFunc {
	return func(self object.Object, args []object.Object, kwnames []string) (result object.Object, err error) {
		if len(args) != 0 {
			return nil, errz.TypeErrorf("%s() takes no arguments (%d given)", name, len(args))
		}
		f := enter(b, name, 1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, s))
	}
}

func oneArg(b bridge.Bridge, name string, fn abi.OFunc) object.NativeFunc {
	return func(self object.Object, args []object.Object, kwnames []string) (result object.Object, err error) {
		if err := noKeywords(name, kwnames); err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, errz.TypeErrorf("%s() takes exactly one argument (%d given)", name, len(args))
		}
		f := enter(b, name, 2)
		defer f.leave()
		defer guard(name, &err)
		hs, err := f.handles([]object.Object{self, args[0]})
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, hs[0], hs[1]))
	}
}

func varArgs(b bridge.Bridge, name string, fn abi.VarArgsFunc) object.NativeFunc {
	return func(self object.Object, args []object.Object, kwnames []string) (result object.Object, err error) {
		if err := noKeywords(name, kwnames); err != nil {
			return nil, err
		}
		f := enter(b, name, len(args)+1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		hs, err := f.handles(args)
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, s, hs))
	}
}

func keywords(b bridge.Bridge, name string, fn abi.KeywordsFunc) object.NativeFunc {
	return func(self object.Object, args []object.Object, kwnames []string) (result object.Object, err error) {
		f := enter(b, name, len(args)+1)
		defer f.leave()
		defer guard(name, &err)
		s, err := f.handle(self)
		if err != nil {
			return nil, err
		}
		hs, err := f.handles(args)
		if err != nil {
			return nil, err
		}
		return f.result(fn(b, s, hs, kwnames))
	}
}

// Legacy adapts a legacy method. Arguments are passed as plain handles that
// the runtime closes after the call; there is no tracker and no keyword
// support.
func Legacy(b bridge.Bridge, name string, fn abi.LegacyFunc) (object.NativeFunc, error) {
	if fn == nil {
		return nil, errz.ConfigurationErrorf("%s: nil implementation", name).WithCode(errz.H2005)
	}
	return func(self object.Object, args []object.Object, kwnames []string) (object.Object, error) {
		if err := noKeywords(name, kwnames); err != nil {
			return nil, err
		}
		var opened []handle.Handle
		defer func() {
			for _, h := range opened {
				_ = b.Close(h)
			}
		}()
		s := handle.Null
		if self != nil {
			h, err := bridge.NewRef(b, self)
			if err != nil {
				return nil, err
			}
			opened = append(opened, h)
			s = h
		}
		hs := make([]handle.Handle, len(args))
		for i, arg := range args {
			h, err := bridge.NewRef(b, arg)
			if err != nil {
				return nil, err
			}
			opened = append(opened, h)
			hs[i] = h
		}
		result, err := fn(b, s, hs)
		return takeResult(b, name, result, err)
	}, nil
}
