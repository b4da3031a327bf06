// Package strings is an extension module wrapping the Go strings package.
package strings

import (
	"fmt"
	"math"
	"strings"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/handle"
)

// Name is the module name.
const Name = "strings"

// Init creates the module.
func Init(ctx abi.Context) (handle.Handle, error) {
	return ctx.ModuleCreate(&abi.ModuleDef{
		Name:    Name,
		Doc:     "String manipulation functions",
		Defines: definitions(),
	})
}

var predicates = []struct {
	name string
	doc  string
	fn   func(string, string) bool
}{
	{"contains", "Check if substr is within s", strings.Contains},
	{"has_prefix", "Check if s begins with prefix", strings.HasPrefix},
	{"has_suffix", "Check if s ends with suffix", strings.HasSuffix},
	{"equal_fold", "Check if s and t are equal under case folding", strings.EqualFold},
}

var counters = []struct {
	name string
	doc  string
	fn   func(string, string) int
}{
	{"count", "Count non-overlapping instances of substr in s", strings.Count},
	{"compare", "Compare two strings lexicographically", strings.Compare},
	{"index", "Index of the first instance of substr in s, or -1", strings.Index},
	{"last_index", "Index of the last instance of substr in s, or -1", strings.LastIndex},
}

var mappers = []struct {
	name string
	doc  string
	fn   func(string) string
}{
	{"to_lower", "Map all letters to lower case", strings.ToLower},
	{"to_upper", "Map all letters to upper case", strings.ToUpper},
	{"trim_space", "Remove leading and trailing white space", strings.TrimSpace},
}

var trimmers = []struct {
	name string
	doc  string
	fn   func(string, string) string
}{
	{"trim", "Remove leading and trailing code points contained in cutset", strings.Trim},
	{"trim_prefix", "Remove a leading prefix", strings.TrimPrefix},
	{"trim_suffix", "Remove a trailing suffix", strings.TrimSuffix},
}

func definitions() []abi.Def {
	defs := []abi.Def{
		abi.MethodDef{Name: "repeat", Doc: "Concatenate count copies of s", Sig: abi.SigVarArgs, Impl: repeat},
		abi.MethodDef{Name: "join", Doc: "Join an iterable of strings with a separator", Sig: abi.SigVarArgs, Impl: join},
		abi.MethodDef{Name: "split", Doc: "Split s around each instance of sep", Sig: abi.SigVarArgs, Impl: split},
		abi.MethodDef{Name: "fields", Doc: "Split s around runs of white space", Sig: abi.SigO, Impl: fields},
		abi.MethodDef{Name: "replace_all", Doc: "Replace all instances of old with new", Sig: abi.SigVarArgs, Impl: replaceAll},
	}
	for _, p := range predicates {
		fn := p.fn
		defs = append(defs, abi.MethodDef{Name: p.name, Doc: p.doc, Sig: abi.SigVarArgs,
			Impl: pairImpl(p.name, func(ctx abi.Context, s, t string) (handle.Handle, error) {
				return ctx.BoolFromBool(fn(s, t)), nil
			})})
	}
	for _, c := range counters {
		fn := c.fn
		defs = append(defs, abi.MethodDef{Name: c.name, Doc: c.doc, Sig: abi.SigVarArgs,
			Impl: pairImpl(c.name, func(ctx abi.Context, s, t string) (handle.Handle, error) {
				return ctx.LongFromInt64(int64(fn(s, t)))
			})})
	}
	for _, tr := range trimmers {
		fn := tr.fn
		defs = append(defs, abi.MethodDef{Name: tr.name, Doc: tr.doc, Sig: abi.SigVarArgs,
			Impl: pairImpl(tr.name, func(ctx abi.Context, s, t string) (handle.Handle, error) {
				return ctx.UnicodeFromString(fn(s, t))
			})})
	}
	for _, m := range mappers {
		defs = append(defs, abi.MethodDef{Name: m.name, Doc: m.doc, Sig: abi.SigO, Impl: mapImpl(m.fn)})
	}
	return defs
}

func argsError(ctx abi.Context, name string, want, got int) error {
	return ctx.ErrSetString(ctx.Builtin(abi.BuiltinTypeError),
		fmt.Sprintf("strings.%s: expected %d arguments, got %d", name, want, got))
}

// stringArgs converts every argument to a Go string.
func stringArgs(ctx abi.Context, name string, want int, args []handle.Handle) ([]string, error) {
	if len(args) != want {
		return nil, argsError(ctx, name, want, len(args))
	}
	out := make([]string, len(args))
	for i, arg := range args {
		s, err := ctx.UnicodeAsString(arg)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func pairImpl(name string, fn func(ctx abi.Context, s, t string) (handle.Handle, error)) abi.VarArgsFunc {
	return func(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
		strs, err := stringArgs(ctx, name, 2, args)
		if err != nil {
			return handle.Null, err
		}
		return fn(ctx, strs[0], strs[1])
	}
}

func mapImpl(fn func(string) string) abi.OFunc {
	return func(ctx abi.Context, _, arg handle.Handle) (handle.Handle, error) {
		s, err := ctx.UnicodeAsString(arg)
		if err != nil {
			return handle.Null, err
		}
		return ctx.UnicodeFromString(fn(s))
	}
}

func repeat(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	if len(args) != 2 {
		return handle.Null, argsError(ctx, "repeat", 2, len(args))
	}
	s, err := ctx.UnicodeAsString(args[0])
	if err != nil {
		return handle.Null, err
	}
	n, err := ctx.LongAsInt64(args[1])
	if err != nil {
		return handle.Null, err
	}
	valueError := ctx.Builtin(abi.BuiltinValueError)
	if n < 0 {
		return handle.Null, ctx.ErrSetString(valueError, "strings.repeat: negative count")
	}
	if len(s) > 0 && n > int64(math.MaxInt32/len(s)) {
		return handle.Null, ctx.ErrSetString(valueError, "strings.repeat: result too large")
	}
	size := int64(len(s)) * n
	if err := ctx.Reserve(size); err != nil {
		return handle.Null, err
	}
	defer ctx.Release(size)
	return ctx.UnicodeFromString(strings.Repeat(s, int(n)))
}

func join(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	if len(args) != 2 {
		return handle.Null, argsError(ctx, "join", 2, len(args))
	}
	sep, err := ctx.UnicodeAsString(args[1])
	if err != nil {
		return handle.Null, err
	}
	it, err := ctx.GetIter(args[0])
	if err != nil {
		return handle.Null, err
	}
	tr := abi.NewTracker(ctx, 0)
	defer tr.Close()
	if err := tr.Add(it); err != nil {
		return handle.Null, err
	}
	var parts []string
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
		s, err := ctx.UnicodeAsString(item)
		if err != nil {
			return handle.Null, err
		}
		parts = append(parts, s)
	}
	return ctx.UnicodeFromString(strings.Join(parts, sep))
}

// stringList builds a list of str from parts.
func stringList(ctx abi.Context, parts []string) (handle.Handle, error) {
	b := abi.NewListBuilder(ctx, len(parts))
	for i, part := range parts {
		h, err := ctx.UnicodeFromString(part)
		if err != nil {
			_ = b.Cancel()
			return handle.Null, err
		}
		b.Set(i, h)
		if err := ctx.Close(h); err != nil {
			_ = b.Cancel()
			return handle.Null, err
		}
	}
	return b.Build()
}

func split(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	strs, err := stringArgs(ctx, "split", 2, args)
	if err != nil {
		return handle.Null, err
	}
	return stringList(ctx, strings.Split(strs[0], strs[1]))
}

func fields(ctx abi.Context, _, arg handle.Handle) (handle.Handle, error) {
	s, err := ctx.UnicodeAsString(arg)
	if err != nil {
		return handle.Null, err
	}
	return stringList(ctx, strings.Fields(s))
}

func replaceAll(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	strs, err := stringArgs(ctx, "replace_all", 3, args)
	if err != nil {
		return handle.Null, err
	}
	return ctx.UnicodeFromString(strings.ReplaceAll(strs[0], strs[1], strs[2]))
}
