package object

import (
	"testing"

	"github.com/deepnoodle-ai/hbridge/storage"
	"github.com/stretchr/testify/require"
)

func mustType(t *testing.T, l Layout) *Type {
	t.Helper()
	typ, err := NewType(l)
	require.NoError(t, err)
	return typ
}

func TestBuiltinTypes(t *testing.T) {
	require.Equal(t, TypeType, TypeType.Type())
	require.Equal(t, TypeType, IntType.Type())
	require.Equal(t, []*Type{IntType, ObjectType}, IntType.MRO())
	require.True(t, ConfigurationErrorType.IsSubtype(SystemErrorType))
	require.True(t, IndexErrorType.IsSubtype(ExceptionType))
	require.False(t, IntType.HasFlag(FlagBaseType))
	require.True(t, ObjectType.HasFlag(FlagBaseType))

	typ, ok := LookupBuiltinType("MemoryError")
	require.True(t, ok)
	require.Equal(t, MemoryErrorType, typ)
	require.NotEmpty(t, BuiltinTypes())
}

func TestHeaderAccess(t *testing.T) {
	values := []Object{
		None, True, NewInt(1), NewFloat(0.5), NewStr("s"), NewBytes([]byte("b")),
		NewList(nil), NewTuple(nil), NewModule("m", ""), IntType,
	}
	for _, v := range values {
		hdr := v.ObjectHeader()
		require.NotNil(t, hdr, v.Inspect())
		require.Equal(t, int64(1), hdr.RefCount(), v.Inspect())
	}
	i := NewInt(2)
	i.ObjectHeader().InitRef()
	i.ObjectHeader().IncRef()
	require.Equal(t, int64(2), i.Header.RefCount())
}

func TestImmortalRefcount(t *testing.T) {
	None.IncRef()
	require.Equal(t, int64(1), None.DecRef())
	require.Equal(t, int64(1), True.RefCount())

	i := NewInt(4)
	i.IncRef()
	require.Equal(t, int64(2), i.RefCount())
	require.Equal(t, int64(1), i.DecRef())
	require.Equal(t, int64(0), i.DecRef())
	require.Panics(t, func() { i.DecRef() })
}

func TestC3Diamond(t *testing.T) {
	a := mustType(t, Layout{Name: "A", Flags: FlagBaseType})
	b := mustType(t, Layout{Name: "B", Bases: []*Type{a}, Flags: FlagBaseType})
	c := mustType(t, Layout{Name: "C", Bases: []*Type{a}, Flags: FlagBaseType})
	d := mustType(t, Layout{Name: "D", Bases: []*Type{b, c}})
	require.Equal(t, []*Type{d, b, c, a, ObjectType}, d.MRO())
	require.True(t, d.IsSubtype(a))
	require.False(t, a.IsSubtype(d))
}

func TestC3Inconsistent(t *testing.T) {
	a := mustType(t, Layout{Name: "A"})
	b := mustType(t, Layout{Name: "B", Bases: []*Type{a}})
	_, err := NewType(Layout{Name: "X", Bases: []*Type{a, b}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "method resolution order")
}

func TestSlotInheritanceAndChains(t *testing.T) {
	var order []string
	repr := func(self Object) (Object, error) { return NewStr("base"), nil }
	parent := mustType(t, Layout{
		Name:    "Parent",
		Flags:   FlagBaseType,
		Slots:   Slots{Repr: repr, Traverse: func(*Instance, VisitFunc) error { return nil }},
		Destroy: func(*Instance) { order = append(order, "parent") },
	})
	child := mustType(t, Layout{
		Name:    "Child",
		Bases:   []*Type{parent},
		Destroy: func(*Instance) { order = append(order, "child") },
	})
	require.NotNil(t, child.Slots().Repr)
	require.Nil(t, child.OwnSlots().Repr)
	require.Len(t, child.TraverseChain(), 1)
	require.Len(t, child.DestroyChain(), 2)
	for _, fn := range child.DestroyChain() {
		fn(nil)
	}
	require.Equal(t, []string{"child", "parent"}, order)
}

func TestLookupAlongMRO(t *testing.T) {
	base := mustType(t, Layout{
		Name:    "Base",
		Methods: []*MethodDescr{{Name: "hello"}},
		Members: []*MemberDescr{{Name: "x", Kind: MemberLong, Offset: 16}},
		GetSets: []*GetSetDescr{{Name: "y"}},
	})
	sub := mustType(t, Layout{Name: "Sub", Bases: []*Type{base}})
	_, ok := sub.LookupMethod("hello")
	require.True(t, ok)
	m, ok := sub.LookupMember("x")
	require.True(t, ok)
	require.Equal(t, 16, m.Offset)
	_, ok = sub.LookupGetSet("y")
	require.True(t, ok)
	require.Len(t, sub.Members(), 1)
	_, ok = sub.LookupMethod("missing")
	require.False(t, ok)
}

func TestInstanceMembers(t *testing.T) {
	typ := mustType(t, Layout{Name: "Rec", BasicSize: HeaderSize + 24, PayloadOffset: HeaderSize})
	arena := storage.NewGoArena()
	block, err := arena.Alloc(typ.BasicSize())
	require.NoError(t, err)
	inst := NewInstance(typ, arena, block, 0)
	inst.SetID(42)
	inst.WriteHeader()
	ref, err := inst.LoadRef(0)
	require.NoError(t, err)
	require.Equal(t, uint64(42), ref)

	short := &MemberDescr{Name: "s", Kind: MemberShort, Offset: 16}
	dbl := &MemberDescr{Name: "d", Kind: MemberDouble, Offset: 24}
	flag := &MemberDescr{Name: "b", Kind: MemberBool, Offset: 32}

	require.NoError(t, inst.StoreMember(short, MemberValue{Int: -7}))
	require.Error(t, inst.StoreMember(short, MemberValue{Int: 1 << 20}))
	require.NoError(t, inst.StoreMember(dbl, MemberValue{Float: 2.5}))
	require.NoError(t, inst.StoreMember(flag, MemberValue{Bool: true}))

	v, err := inst.LoadMember(short)
	require.NoError(t, err)
	require.Equal(t, int64(-7), v.Int)
	v, err = inst.LoadMember(dbl)
	require.NoError(t, err)
	require.Equal(t, 2.5, v.Float)
	v, err = inst.LoadMember(flag)
	require.NoError(t, err)
	require.True(t, v.Bool)

	_, err = inst.LoadMember(&MemberDescr{Name: "oob", Kind: MemberLong, Offset: 40})
	require.Error(t, err)

	inst.Release()
	require.True(t, inst.IsReleased())
	require.Equal(t, 0, arena.InUse())
}

func TestInspect(t *testing.T) {
	seq := mustType(t, Layout{Name: "point", Bases: []*Type{TupleType}, Fields: []string{"x", "y"}})
	tests := []struct {
		obj      Object
		expected string
	}{
		{None, "None"},
		{True, "True"},
		{NewInt(-3), "-3"},
		{NewFloat(2), "2.0"},
		{NewFloat(0.5), "0.5"},
		{NewStr("hi"), `"hi"`},
		{NewTuple([]Object{NewInt(1)}), "(1,)"},
		{NewList([]Object{NewInt(1), NewInt(2)}), "[1, 2]"},
		{NewStructSeq(seq, []Object{NewInt(1), NewInt(2)}), "point(x=1, y=2)"},
		{NewException(TypeErrorType, "bad"), `TypeError("bad")`},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.obj.Inspect())
		})
	}
}

func TestCompareOp(t *testing.T) {
	require.True(t, LT.Apply(-1))
	require.True(t, GE.Apply(0))
	require.False(t, NE.Apply(0))
	cmp, ok := NewInt(1).Compare(NewFloat(1.5))
	require.True(t, ok)
	require.Equal(t, -1, cmp)
	_, ok = NewStr("a").Compare(NewInt(1))
	require.False(t, ok)
}
