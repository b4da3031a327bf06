package factory_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/backend/direct"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/object"
)

func setup(t *testing.T) (*direct.Context, *factory.Factory) {
	t.Helper()
	h := heap.New()
	ctx, err := direct.New(h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return ctx, ctx.Factory()
}

func requireConfig(t *testing.T, err error, code errz.Code, contains ...string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, errz.ErrConfiguration), "got %v", err)
	require.Equal(t, code, errz.From(err).Code, err.Error())
	for _, s := range contains {
		require.Contains(t, err.Error(), s)
	}
}

func noArgs(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	return ctx.Dup(ctx.None())
}

// ref returns a handle to an immortal type; it needs no closing.
func ref(t *testing.T, ctx *direct.Context, typ *object.Type) handle.Handle {
	t.Helper()
	h, err := bridge.NewRef(ctx, typ)
	require.NoError(t, err)
	return h
}

func baseParam(t *testing.T, ctx *direct.Context, typ *object.Type) abi.TypeSpecParam {
	return abi.TypeSpecParam{Kind: abi.ParamBase, Object: ref(t, ctx, typ)}
}

func TestNameIsSplitOnLastDot(t *testing.T) {
	_, f := setup(t)
	typ, err := f.FromSpec(&abi.TypeSpec{Name: "pkg.sub.Widget", Doc: "A widget."})
	require.NoError(t, err)
	require.Equal(t, "Widget", typ.Name())
	require.Equal(t, "pkg.sub", typ.Module())
	require.Equal(t, "pkg.sub.Widget", typ.QualifiedName())
	require.Equal(t, "A widget.", typ.Doc())

	plain, err := f.FromSpec(&abi.TypeSpec{Name: "Plain"})
	require.NoError(t, err)
	require.Equal(t, "", plain.Module())
}

func TestPayloadOffsets(t *testing.T) {
	ctx, f := setup(t)
	parent, err := f.FromSpec(&abi.TypeSpec{
		Name:      "m.Parent",
		BasicSize: 16,
		Flags:     abi.FlagBaseType,
		Defines:   []abi.Def{abi.MemberDef{Name: "x", Kind: abi.MemberInt, Offset: 0}},
	})
	require.NoError(t, err)
	require.Equal(t, object.HeaderSize, parent.PayloadOffset())
	require.Equal(t, object.HeaderSize+16, parent.BasicSize())

	child, err := f.FromSpec(&abi.TypeSpec{Name: "m.Child", Flags: abi.FlagBaseType}, baseParam(t, ctx, parent))
	require.NoError(t, err)
	require.Equal(t, parent.PayloadOffset(), child.PayloadOffset())
	require.Equal(t, parent.BasicSize(), child.BasicSize())

	grandchild, err := f.FromSpec(&abi.TypeSpec{
		Name:      "m.Grandchild",
		BasicSize: 8,
		Defines:   []abi.Def{abi.MemberDef{Name: "y", Kind: abi.MemberLong, Offset: 0}},
	}, baseParam(t, ctx, child))
	require.NoError(t, err)
	require.Equal(t, parent.BasicSize(), grandchild.PayloadOffset())
	require.Equal(t, parent.BasicSize()+8, grandchild.BasicSize())
	y, ok := grandchild.LookupMember("y")
	require.True(t, ok)
	require.Equal(t, parent.BasicSize(), y.Offset)
	x, ok := grandchild.LookupMember("x")
	require.True(t, ok)
	require.Equal(t, object.HeaderSize, x.Offset)
}

func TestTableBytesAreOwnedByTheType(t *testing.T) {
	ctx, f := setup(t)
	used := ctx.Heap().Used()
	typ, err := f.FromSpec(&abi.TypeSpec{
		Name:      "m.T",
		BasicSize: 8,
		Defines: []abi.Def{
			abi.MemberDef{Name: "a", Kind: abi.MemberLong},
			abi.MethodDef{Name: "m", Sig: abi.SigNoArgs, Impl: noArgs},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(6*32), ctx.Heap().TableBytes(typ))
	require.Equal(t, used+heap.TypeCost()+6*32, ctx.Heap().Used())
}

func TestConfigurationProblems(t *testing.T) {
	tests := []struct {
		name     string
		spec     abi.TypeSpec
		code     errz.Code
		contains string
	}{
		{
			name:     "unknown flags",
			spec:     abi.TypeSpec{Name: "m.A", Flags: 1 << 7},
			code:     errz.H2001,
			contains: "unknown flags",
		},
		{
			name:     "unknown shape",
			spec:     abi.TypeSpec{Name: "m.A", Shape: abi.Shape(9)},
			code:     errz.H2001,
			contains: "unknown shape",
		},
		{
			name: "legacy definitions on object shape",
			spec: abi.TypeSpec{Name: "m.A", LegacyMethods: []abi.LegacyMethod{{Name: "f", Impl: func(ctx abi.Context, self handle.Handle, args []handle.Handle) (handle.Handle, error) {
				return handle.Null, nil
			}}}},
			code:     errz.H2003,
			contains: "legacy shape",
		},
		{
			name:     "legacy struct smaller than the header",
			spec:     abi.TypeSpec{Name: "m.A", Shape: abi.ShapeLegacy, BasicSize: 8},
			code:     errz.H2003,
			contains: "cannot hold",
		},
		{
			name: "duplicate names",
			spec: abi.TypeSpec{Name: "m.A", BasicSize: 8, Defines: []abi.Def{
				abi.MemberDef{Name: "v", Kind: abi.MemberLong},
				abi.MethodDef{Name: "v", Sig: abi.SigNoArgs, Impl: noArgs},
			}},
			code:     errz.H2006,
			contains: `duplicate definition of "v"`,
		},
		{
			name: "duplicate slot",
			spec: abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
				abi.SlotDef{Slot: abi.SlotRepr, Impl: noArgs},
				abi.SlotDef{Slot: abi.SlotRepr, Impl: noArgs},
			}},
			code:     errz.H2006,
			contains: "slot repr",
		},
		{
			name: "wrong signature",
			spec: abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
				abi.SlotDef{Slot: abi.SlotLen, Impl: noArgs},
			}},
			code:     errz.H2005,
			contains: "does not match signature len",
		},
		{
			name: "method with invalid signature",
			spec: abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
				abi.MethodDef{Name: "f", Sig: abi.SigHash, Impl: noArgs},
			}},
			code:     errz.H2005,
			contains: "not valid for a method",
		},
		{
			name: "module exec on a type",
			spec: abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
				abi.SlotDef{Slot: abi.SlotModExec, Impl: func(abi.Context, handle.Handle) error { return nil }},
			}},
			code:     errz.H2001,
			contains: "only valid in a module",
		},
		{
			name: "dealloc outside the legacy slots",
			spec: abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
				abi.SlotDef{Slot: abi.SlotDealloc, Impl: func(abi.Payload) {}},
			}},
			code:     errz.H2001,
			contains: "legacy slot",
		},
		{
			name: "member outside the instance",
			spec: abi.TypeSpec{Name: "m.A", BasicSize: 8, Defines: []abi.Def{
				abi.MemberDef{Name: "v", Kind: abi.MemberLong, Offset: 4},
			}},
			code:     errz.H2003,
			contains: "outside",
		},
		{
			name: "unaligned object member",
			spec: abi.TypeSpec{Name: "m.A", BasicSize: 16, Defines: []abi.Def{
				abi.MemberDef{Name: "v", Kind: abi.MemberObject, Offset: 4},
			}},
			code:     errz.H2003,
			contains: "aligned",
		},
		{
			name: "getset without getter",
			spec: abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
				abi.GetSetDef{Name: "g"},
			}},
			code:     errz.H2001,
			contains: "no getter",
		},
		{
			name: "gc without traverse",
			spec: abi.TypeSpec{Name: "m.A", BasicSize: 8, Flags: abi.FlagHaveGC},
			code: errz.H2004,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, f := setup(t)
			types := len(ctx.Heap().Types())
			used := ctx.Heap().Used()
			_, err := f.FromSpec(&tt.spec)
			requireConfig(t, err, tt.code, tt.contains)
			require.Len(t, ctx.Heap().Types(), types)
			require.Equal(t, used, ctx.Heap().Used())
		})
	}
}

func TestProblemsAreCollected(t *testing.T) {
	_, f := setup(t)
	_, err := f.FromSpec(&abi.TypeSpec{
		Name:  "m.Many",
		Flags: 1 << 9,
		Defines: []abi.Def{
			abi.MemberDef{Name: "a", Kind: abi.MemberLong},
			abi.MemberDef{Name: "a", Kind: abi.MemberLong},
		},
	})
	requireConfig(t, err, errz.H2001, "unknown flags", "duplicate definition")
	require.Equal(t, 1, strings.Count(err.Error(), "; "))
}

func TestInheritanceParameters(t *testing.T) {
	ctx, f := setup(t)
	base, err := f.FromSpec(&abi.TypeSpec{Name: "m.Base", Flags: abi.FlagBaseType})
	require.NoError(t, err)
	final, err := f.FromSpec(&abi.TypeSpec{Name: "m.Final"})
	require.NoError(t, err)

	_, err = f.FromSpec(&abi.TypeSpec{Name: "m.Sub"}, baseParam(t, ctx, final))
	require.True(t, errors.Is(err, errz.ErrType))
	require.Equal(t, errz.H3003, errz.From(err).Code)

	_, err = f.FromSpec(&abi.TypeSpec{Name: "m.Sub"}, baseParam(t, ctx, base), baseParam(t, ctx, base))
	require.Equal(t, errz.H3003, errz.From(err).Code)

	tup, err := ctx.TupleFromArray([]handle.Handle{ref(t, ctx, base)})
	require.NoError(t, err)
	defer ctx.Close(tup)
	_, err = f.FromSpec(&abi.TypeSpec{Name: "m.Sub"},
		abi.TypeSpecParam{Kind: abi.ParamBasesTuple, Object: tup},
		baseParam(t, ctx, base))
	requireConfig(t, err, errz.H2002, "cannot be combined")

	_, err = f.FromSpec(&abi.TypeSpec{Name: "m.Sub"},
		abi.TypeSpecParam{Kind: abi.ParamMetaclass, Object: ref(t, ctx, object.TypeType)},
		abi.TypeSpecParam{Kind: abi.ParamMetaclass, Object: ref(t, ctx, object.TypeType)})
	requireConfig(t, err, errz.H2002, "metaclass given 2 times")

	_, err = f.FromSpec(&abi.TypeSpec{Name: "m.Sub"},
		abi.TypeSpecParam{Kind: abi.ParamMetaclass, Object: ref(t, ctx, object.IntType)})
	requireConfig(t, err, errz.H2002, "subtype of type")

	sub, err := f.FromSpec(&abi.TypeSpec{Name: "m.Sub"}, abi.TypeSpecParam{Kind: abi.ParamBasesTuple, Object: tup})
	require.NoError(t, err)
	require.Equal(t, []*object.Type{base}, sub.Bases())
}

func TestLayoutConflicts(t *testing.T) {
	ctx, f := setup(t)
	left, err := f.FromSpec(&abi.TypeSpec{Name: "m.Left", BasicSize: 8, Flags: abi.FlagBaseType})
	require.NoError(t, err)
	right, err := f.FromSpec(&abi.TypeSpec{Name: "m.Right", BasicSize: 8, Flags: abi.FlagBaseType})
	require.NoError(t, err)
	_, err = f.FromSpec(&abi.TypeSpec{Name: "m.Both"}, baseParam(t, ctx, left), baseParam(t, ctx, right))
	require.True(t, errors.Is(err, errz.ErrType))
	require.Equal(t, errz.H3002, errz.From(err).Code)

	mixin, err := f.FromSpec(&abi.TypeSpec{Name: "m.Mixin", Flags: abi.FlagBaseType})
	require.NoError(t, err)
	both, err := f.FromSpec(&abi.TypeSpec{Name: "m.Both"}, baseParam(t, ctx, left), baseParam(t, ctx, mixin))
	require.NoError(t, err)
	require.Equal(t, left.BasicSize(), both.BasicSize())
}

func TestLegacyMismatchIsDiscarded(t *testing.T) {
	ctx, f := setup(t)
	modern, err := f.FromSpec(&abi.TypeSpec{Name: "m.Modern", BasicSize: 8, Flags: abi.FlagBaseType})
	require.NoError(t, err)
	types := len(ctx.Heap().Types())
	used := ctx.Heap().Used()

	_, err = f.FromSpec(&abi.TypeSpec{
		Name:      "m.Old",
		Shape:     abi.ShapeLegacy,
		BasicSize: modern.BasicSize() + 8,
	}, baseParam(t, ctx, modern))
	require.True(t, errors.Is(err, errz.ErrType))
	require.Equal(t, errz.H3002, errz.From(err).Code)
	require.Len(t, ctx.Heap().Types(), types)
	require.Equal(t, used, ctx.Heap().Used())
}

func TestLegacyType(t *testing.T) {
	ctx, f := setup(t)
	var released []int64
	typ, err := f.FromSpec(&abi.TypeSpec{
		Name:      "m.Legacy",
		Shape:     abi.ShapeLegacy,
		BasicSize: object.HeaderSize + 8,
		LegacyMembers: []abi.MemberDef{
			{Name: "count", Kind: abi.MemberLong, Offset: object.HeaderSize},
		},
		LegacySlots: []abi.LegacySlot{
			{Slot: abi.SlotDealloc, Impl: func(p abi.Payload) {
				released = append(released, p.Int64(object.HeaderSize))
			}},
		},
		LegacyMethods: []abi.LegacyMethod{
			{Name: "bump", Impl: func(ctx abi.Context, self handle.Handle, args []handle.Handle) (handle.Handle, error) {
				p, err := ctx.AsStructLegacy(self)
				if err != nil {
					return handle.Null, err
				}
				p.SetInt64(object.HeaderSize, p.Int64(object.HeaderSize)+1)
				return ctx.Dup(ctx.None())
			}},
		},
	})
	require.NoError(t, err)
	require.True(t, typ.IsLegacy())
	require.Zero(t, typ.PayloadOffset())
	m, ok := typ.LookupMember("count")
	require.True(t, ok)
	require.Equal(t, object.HeaderSize, m.Offset)

	inst, p, err := ctx.New(ref(t, ctx, typ))
	require.NoError(t, err)
	require.Zero(t, p.Base())
	res, err := ctx.CallMethod(inst, "bump", nil, nil)
	require.NoError(t, err)
	require.NoError(t, ctx.Close(res))

	_, err = ctx.AsStruct(inst)
	require.Equal(t, errz.H3001, errz.From(err).Code)
	ctx.ErrClear()

	require.NoError(t, ctx.Close(inst))
	require.Equal(t, []int64{1}, released)
}

func TestDestroyChain(t *testing.T) {
	ctx, f := setup(t)
	var order []string
	parent, err := f.FromSpec(&abi.TypeSpec{
		Name:      "m.Parent",
		BasicSize: 8,
		Flags:     abi.FlagBaseType,
		Defines: []abi.Def{abi.SlotDef{Slot: abi.SlotDestroy, Impl: func(p abi.Payload) {
			order = append(order, "parent")
		}}},
	})
	require.NoError(t, err)
	child, err := f.FromSpec(&abi.TypeSpec{
		Name:      "m.Child",
		BasicSize: 8,
		Defines: []abi.Def{abi.SlotDef{Slot: abi.SlotDestroy, Impl: func(p abi.Payload) {
			order = append(order, "child")
		}}},
	}, baseParam(t, ctx, parent))
	require.NoError(t, err)

	inst, _, err := ctx.New(ref(t, ctx, child))
	require.NoError(t, err)
	require.NoError(t, ctx.Close(inst))
	require.ElementsMatch(t, []string{"parent", "child"}, order)
}

func TestCustomSlotMap(t *testing.T) {
	h := heap.New()
	slots := factory.DefaultSlotMap().Clone()
	delete(slots, abi.SlotRepr)
	ctx, err := direct.New(h, direct.WithSlotMap(slots))
	require.NoError(t, err)
	defer h.Close()

	_, err = ctx.Factory().FromSpec(&abi.TypeSpec{Name: "m.A", Defines: []abi.Def{
		abi.SlotDef{Slot: abi.SlotRepr, Impl: noArgs},
	}})
	requireConfig(t, err, errz.H2001, "not supported by this backend")
	require.Contains(t, factory.DefaultSlotMap(), abi.SlotRepr)
}

func TestStructSequenceType(t *testing.T) {
	_, f := setup(t)
	typ, err := f.StructSequenceType(&abi.StructSequenceDesc{
		Name:   "os.stat_result",
		Fields: []abi.StructSequenceField{{Name: "st_mode"}, {Name: "st_size"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"st_mode", "st_size"}, typ.Fields())
	require.True(t, typ.IsSubtype(object.TupleType))
	require.Equal(t, "os", typ.Module())

	_, err = f.StructSequenceType(&abi.StructSequenceDesc{
		Name:   "m.Dup",
		Fields: []abi.StructSequenceField{{Name: "a"}, {Name: "a"}},
	})
	requireConfig(t, err, errz.H2006)
}

func TestCreateModule(t *testing.T) {
	ctx, f := setup(t)
	live := ctx.Heap().LiveMortal()

	_, err := f.CreateModule(&abi.ModuleDef{Name: "m", Defines: []abi.Def{
		abi.MethodDef{Name: "f", Sig: abi.SigNoArgs, Impl: noArgs},
		abi.MethodDef{Name: "f", Sig: abi.SigNoArgs, Impl: noArgs},
	}})
	requireConfig(t, err, errz.H2006)

	_, err = f.CreateModule(&abi.ModuleDef{Name: "m", Defines: []abi.Def{
		abi.MemberDef{Name: "x", Kind: abi.MemberLong},
	}})
	requireConfig(t, err, errz.H2001, "not valid in a module")

	var ran []int
	_, err = f.CreateModule(&abi.ModuleDef{Name: "m", Defines: []abi.Def{
		abi.SlotDef{Slot: abi.SlotModExec, Impl: func(ctx abi.Context, mod handle.Handle) error {
			ran = append(ran, 1)
			return nil
		}},
		abi.SlotDef{Slot: abi.SlotModExec, Impl: func(ctx abi.Context, mod handle.Handle) error {
			ran = append(ran, 2)
			return ctx.ErrSetString(ctx.Builtin(abi.BuiltinValueError), "exec failed")
		}},
		abi.SlotDef{Slot: abi.SlotModExec, Impl: func(ctx abi.Context, mod handle.Handle) error {
			ran = append(ran, 3)
			return nil
		}},
	}})
	require.True(t, errors.Is(err, errz.ErrValue))
	require.Equal(t, []int{1, 2}, ran)
	ctx.ErrClear()
	require.Equal(t, live, ctx.Heap().LiveMortal())

	mod, err := f.CreateModule(&abi.ModuleDef{Name: "ok", Doc: "Fine.", Defines: []abi.Def{
		abi.MethodDef{Name: "f", Sig: abi.SigNoArgs, Impl: noArgs},
	}})
	require.NoError(t, err)
	require.Equal(t, "ok", mod.Name())
	fn, ok := mod.Get("f")
	require.True(t, ok)
	require.Equal(t, "builtin_function", fn.Type().Name())
	ctx.Heap().DecRef(mod)
	require.Equal(t, live, ctx.Heap().LiveMortal())
}
