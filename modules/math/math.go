// Package math is an extension module exposing floating point functions
// and constants. It is written purely against abi.Context and works with
// every backend.
package math

import (
	"fmt"
	"math"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/handle"
)

// Name is the module name.
const Name = "math"

// Init creates the module.
func Init(ctx abi.Context) (handle.Handle, error) {
	return ctx.ModuleCreate(&abi.ModuleDef{
		Name:    Name,
		Doc:     "Mathematical functions and constants",
		Defines: definitions(),
	})
}

type unaryFn struct {
	name string
	doc  string
	fn   func(float64) float64
}

var unary = []unaryFn{
	{"sqrt", "Square root", math.Sqrt},
	{"floor", "Floor (round down)", math.Floor},
	{"ceil", "Ceiling (round up)", math.Ceil},
	{"round", "Round to nearest integer", math.Round},
	{"trunc", "Truncate toward zero", math.Trunc},
	{"sin", "Sine", math.Sin},
	{"cos", "Cosine", math.Cos},
	{"tan", "Tangent", math.Tan},
	{"log", "Natural logarithm", math.Log},
	{"log10", "Base 10 logarithm", math.Log10},
	{"log2", "Base 2 logarithm", math.Log2},
	{"exp", "e raised to x", math.Exp},
}

type binaryFn struct {
	name string
	doc  string
	fn   func(float64, float64) float64
}

var binary = []binaryFn{
	{"pow", "x raised to y", math.Pow},
	{"atan2", "Arc tangent of y/x", math.Atan2},
	{"hypot", "Euclidean norm sqrt(x*x + y*y)", math.Hypot},
	{"mod", "Floating point remainder of x/y", math.Mod},
}

func definitions() []abi.Def {
	defs := []abi.Def{
		abi.MethodDef{Name: "abs", Doc: "Absolute value", Sig: abi.SigO, Impl: abs},
		abi.MethodDef{Name: "min", Doc: "Minimum of values", Sig: abi.SigVarArgs, Impl: extreme("min", math.Min)},
		abi.MethodDef{Name: "max", Doc: "Maximum of values", Sig: abi.SigVarArgs, Impl: extreme("max", math.Max)},
		abi.MethodDef{Name: "sum", Doc: "Sum of an iterable of numbers", Sig: abi.SigO, Impl: sum},
		abi.MethodDef{Name: "divmod", Doc: "Quotient and remainder of integer division", Sig: abi.SigVarArgs, Impl: divmod},
		abi.MethodDef{Name: "is_inf", Doc: "Check if x is infinite", Sig: abi.SigO, Impl: isInf},
		abi.SlotDef{Slot: abi.SlotModExec, Impl: constants},
	}
	for _, u := range unary {
		defs = append(defs, abi.MethodDef{Name: u.name, Doc: u.doc, Sig: abi.SigO, Impl: unaryImpl(u.fn)})
	}
	for _, b := range binary {
		defs = append(defs, abi.MethodDef{Name: b.name, Doc: b.doc, Sig: abi.SigVarArgs, Impl: binaryImpl(b.name, b.fn)})
	}
	return defs
}

func typeError(ctx abi.Context, format string, args ...any) error {
	return ctx.ErrSetString(ctx.Builtin(abi.BuiltinTypeError), fmt.Sprintf(format, args...))
}

func isInt(ctx abi.Context, h handle.Handle) bool {
	ok, err := ctx.TypeCheck(h, ctx.Builtin(abi.BuiltinInt))
	if err != nil {
		ctx.ErrClear()
		return false
	}
	return ok
}

func unaryImpl(fn func(float64) float64) abi.OFunc {
	return func(ctx abi.Context, _, arg handle.Handle) (handle.Handle, error) {
		x, err := ctx.FloatAsFloat64(arg)
		if err != nil {
			return handle.Null, err
		}
		return ctx.FloatFromFloat64(fn(x))
	}
}

func binaryImpl(name string, fn func(float64, float64) float64) abi.VarArgsFunc {
	return func(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
		if len(args) != 2 {
			return handle.Null, typeError(ctx, "math.%s: expected 2 arguments, got %d", name, len(args))
		}
		x, err := ctx.FloatAsFloat64(args[0])
		if err != nil {
			return handle.Null, err
		}
		y, err := ctx.FloatAsFloat64(args[1])
		if err != nil {
			return handle.Null, err
		}
		return ctx.FloatFromFloat64(fn(x, y))
	}
}

func abs(ctx abi.Context, _, arg handle.Handle) (handle.Handle, error) {
	if isInt(ctx, arg) {
		v, err := ctx.LongAsInt64(arg)
		if err != nil {
			return handle.Null, err
		}
		if v < 0 {
			v = -v
		}
		return ctx.LongFromInt64(v)
	}
	v, err := ctx.FloatAsFloat64(arg)
	if err != nil {
		return handle.Null, err
	}
	return ctx.FloatFromFloat64(math.Abs(v))
}

func isInf(ctx abi.Context, _, arg handle.Handle) (handle.Handle, error) {
	v, err := ctx.FloatAsFloat64(arg)
	if err != nil {
		return handle.Null, err
	}
	return ctx.BoolFromBool(math.IsInf(v, 0)), nil
}

// extreme returns min or max. Ints are compared as floats but the winning
// argument is returned unchanged.
func extreme(name string, pick func(float64, float64) float64) abi.VarArgsFunc {
	return func(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
		if len(args) == 0 {
			return handle.Null, typeError(ctx, "math.%s: expected at least 1 argument, got 0", name)
		}
		best := 0
		bestVal, err := ctx.FloatAsFloat64(args[0])
		if err != nil {
			return handle.Null, err
		}
		for i, arg := range args[1:] {
			v, err := ctx.FloatAsFloat64(arg)
			if err != nil {
				return handle.Null, err
			}
			if p := pick(bestVal, v); p != bestVal {
				best, bestVal = i+1, p
			}
		}
		return ctx.Dup(args[best])
	}
}

func sum(ctx abi.Context, _, iterable handle.Handle) (handle.Handle, error) {
	it, err := ctx.GetIter(iterable)
	if err != nil {
		return handle.Null, err
	}
	tr := abi.NewTracker(ctx, 0)
	defer tr.Close()
	if err := tr.Add(it); err != nil {
		return handle.Null, err
	}
	var total float64
	allInts := true
	var intTotal int64
	for {
		item, err := ctx.IterNext(it)
		if err != nil {
			return handle.Null, err
		}
		if item.IsNull() {
			break
		}
		if err := tr.Add(item); err != nil {
			return handle.Null, err
		}
		if allInts && isInt(ctx, item) {
			v, err := ctx.LongAsInt64(item)
			if err != nil {
				return handle.Null, err
			}
			intTotal += v
			total += float64(v)
			continue
		}
		allInts = false
		v, err := ctx.FloatAsFloat64(item)
		if err != nil {
			return handle.Null, err
		}
		total += v
	}
	if allInts {
		return ctx.LongFromInt64(intTotal)
	}
	return ctx.FloatFromFloat64(total)
}

func divmod(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	if len(args) != 2 {
		return handle.Null, typeError(ctx, "math.divmod: expected 2 arguments, got %d", len(args))
	}
	x, err := ctx.LongAsInt64(args[0])
	if err != nil {
		return handle.Null, err
	}
	y, err := ctx.LongAsInt64(args[1])
	if err != nil {
		return handle.Null, err
	}
	if y == 0 {
		return handle.Null, ctx.ErrSetString(ctx.Builtin(abi.BuiltinValueError), "math.divmod: division by zero")
	}
	q, r := x/y, x%y
	if r != 0 && (r < 0) != (y < 0) {
		q--
		r += y
	}

	tr := abi.NewTracker(ctx, 2)
	defer tr.Close()
	b := abi.NewTupleBuilder(ctx, 2)
	for i, v := range []int64{q, r} {
		h, err := ctx.LongFromInt64(v)
		if err != nil {
			_ = b.Cancel()
			return handle.Null, err
		}
		if err := tr.Add(h); err != nil {
			_ = b.Cancel()
			return handle.Null, err
		}
		b.Set(i, h)
	}
	return b.Build()
}

func constants(ctx abi.Context, mod handle.Handle) error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"pi", math.Pi},
		{"e", math.E},
		{"tau", 2 * math.Pi},
		{"inf", math.Inf(1)},
		{"nan", math.NaN()},
	} {
		h, err := ctx.FloatFromFloat64(c.value)
		if err != nil {
			return err
		}
		err = ctx.SetAttr(mod, c.name, h)
		_ = ctx.Close(h)
		if err != nil {
			return err
		}
	}
	return nil
}
