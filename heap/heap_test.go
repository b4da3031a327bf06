package heap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

func newHeap(t *testing.T, opts ...Option) *Heap {
	t.Helper()
	h := New(opts...)
	require.NoError(t, h.Init())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func nodeType(t *testing.T, h *Heap, destroyed *[]string) *object.Type {
	t.Helper()
	typ, err := h.NewType(object.Layout{
		Name:          "Node",
		Flags:         object.FlagHaveGC,
		BasicSize:     object.HeaderSize + 16,
		PayloadOffset: object.HeaderSize,
		Members: []*object.MemberDescr{
			{Name: "next", Kind: object.MemberObject, Offset: object.HeaderSize},
			{Name: "value", Kind: object.MemberLong, Offset: object.HeaderSize + 8},
		},
		Slots: object.Slots{
			Traverse: func(inst *object.Instance, visit object.VisitFunc) error {
				return visit(object.HeaderSize)
			},
		},
		Destroy: func(inst *object.Instance) {
			if destroyed != nil {
				*destroyed = append(*destroyed, "node")
			}
		},
	})
	require.NoError(t, err)
	return typ
}

func TestInitIsIdempotent(t *testing.T) {
	h := newHeap(t)
	live := h.Live()
	noneID := h.IDOf(object.None)
	require.NoError(t, h.Init())
	require.Equal(t, live, h.Live())
	require.Equal(t, noneID, h.IDOf(object.None))
	require.True(t, h.Initialized())
	require.Zero(t, h.LiveMortal())
}

func TestBudget(t *testing.T) {
	h := newHeap(t, WithLimit(100))
	a, err := h.NewInt(1)
	require.NoError(t, err)
	_, err = h.NewStr("this string does not fit in the remaining budget at all......")
	require.Error(t, err)
	require.True(t, errors.Is(err, errz.ErrAllocation))
	h.DecRef(a)
	require.Zero(t, h.Used())
}

func TestFailAfter(t *testing.T) {
	h := newHeap(t)
	h.FailAfter(2)
	_, err := h.NewInt(1)
	require.NoError(t, err)
	_, err = h.NewInt(2)
	require.NoError(t, err)
	_, err = h.NewInt(3)
	require.ErrorIs(t, err, errz.ErrAllocation)
	_, err = h.NewInt(4)
	require.ErrorIs(t, err, errz.ErrAllocation)
	h.FailAfter(-1)
	_, err = h.NewInt(5)
	require.NoError(t, err)
}

func TestContainerReleasesItems(t *testing.T) {
	h := newHeap(t)
	x, err := h.NewInt(10)
	require.NoError(t, err)
	tup, err := h.NewTuple([]object.Object{x, x})
	require.NoError(t, err)
	require.Equal(t, int64(3), x.RefCount())
	h.DecRef(x)
	require.Equal(t, 2, h.LiveMortal())
	h.DecRef(tup)
	require.Zero(t, h.LiveMortal())
	require.Zero(t, h.Used())
}

func TestInstanceDeallocRunsChainAndReleasesRefs(t *testing.T) {
	var destroyed []string
	h := newHeap(t)
	typ := nodeType(t, h, &destroyed)
	inst, err := h.NewInstance(typ, 0)
	require.NoError(t, err)
	payload, err := h.NewStr("payload")
	require.NoError(t, err)
	require.NoError(t, h.SetAttr(inst, "next", payload))
	h.DecRef(payload)
	require.Equal(t, int64(1), payload.RefCount())

	got, err := h.GetAttr(inst, "next")
	require.NoError(t, err)
	require.Same(t, payload, got)
	h.DecRef(got)

	h.DecRef(inst)
	require.Equal(t, []string{"node"}, destroyed)
	require.Zero(t, h.LiveMortal())
	require.Zero(t, h.Arena().InUse())
}

func TestCollectCycle(t *testing.T) {
	h := newHeap(t)
	typ := nodeType(t, h, nil)
	a, err := h.NewInstance(typ, 0)
	require.NoError(t, err)
	b, err := h.NewInstance(typ, 0)
	require.NoError(t, err)
	require.NoError(t, h.SetAttr(a, "next", b))
	require.NoError(t, h.SetAttr(b, "next", a))

	require.Zero(t, h.Collect())

	h.DecRef(a)
	h.DecRef(b)
	require.Equal(t, 2, h.LiveMortal())
	require.Equal(t, 2, h.Collect())
	require.Zero(t, h.LiveMortal())
	require.Zero(t, h.Arena().InUse())
	require.Equal(t, 2, h.Stats().Collected)
}

func TestCollectListCycle(t *testing.T) {
	h := newHeap(t)
	ls, err := h.NewList(nil)
	require.NoError(t, err)
	require.NoError(t, h.ListAppend(ls, ls))
	h.DecRef(ls)
	require.Equal(t, 1, h.Collect())
	require.Zero(t, h.LiveMortal())
}

func TestErrorSlot(t *testing.T) {
	h := newHeap(t)
	require.Nil(t, h.PendingError())
	e := h.Raise(errz.TypeErrorf("expected int"))
	require.Equal(t, "TypeError", e.Exception)
	require.True(t, h.ExceptionMatches(object.TypeErrorType))
	require.True(t, h.ExceptionMatches(object.ExceptionType))
	require.False(t, h.ExceptionMatches(object.ValueErrorType))

	h.Raise(errz.ConfigurationErrorf("bad spec"))
	require.True(t, h.ExceptionMatches(object.SystemErrorType))

	exc := h.FetchError()
	require.NotNil(t, exc)
	require.Nil(t, h.PendingError())
	converted := ErrorFromException(exc)
	require.Equal(t, errz.Configuration, converted.Kind)
	require.Equal(t, "bad spec", converted.Message)
	h.DecRef(exc)
	require.Zero(t, h.LiveMortal())
}

func TestExceptionMapping(t *testing.T) {
	kinds := []errz.Kind{
		errz.Allocation, errz.Configuration, errz.Type, errz.Contract, errz.Value,
		errz.Index, errz.Key, errz.Attribute, errz.StopIteration, errz.System,
	}
	for _, k := range kinds {
		require.Equal(t, k, KindForException(ExceptionTypeFor(k)), k.String())
	}
}

func TestProtocol(t *testing.T) {
	h := newHeap(t)
	one, _ := h.NewInt(1)
	two, _ := h.NewFloat(2)
	s, _ := h.NewStr("héllo")
	tup, _ := h.NewTuple([]object.Object{one, two})

	n, err := h.Len(s)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	lt, err := h.RichCompareBool(one, two, object.LT)
	require.NoError(t, err)
	require.True(t, lt)
	_, err = h.RichCompareBool(one, s, object.LT)
	require.ErrorIs(t, err, errz.ErrType)

	item, err := h.GetItemInt(tup, -1)
	require.NoError(t, err)
	require.Same(t, two, item)
	h.DecRef(item)
	_, err = h.GetItemInt(tup, 2)
	require.ErrorIs(t, err, errz.ErrIndex)

	ok, err := h.Contains(tup, one)
	require.NoError(t, err)
	require.True(t, ok)

	it, err := h.Iter(tup)
	require.NoError(t, err)
	var seen []string
	for {
		x, err := h.IterNext(it)
		if IsStopIteration(err) {
			break
		}
		require.NoError(t, err)
		seen = append(seen, x.Inspect())
		h.DecRef(x)
	}
	require.Equal(t, []string{"1", "2.0"}, seen)
	h.DecRef(it)

	sum, err := h.Binary(OpAdd, one, two)
	require.NoError(t, err)
	require.Equal(t, "3.0", sum.Inspect())
	h.DecRef(sum)

	_, err = h.Hash(object.Object(tup))
	require.NoError(t, err)
	ls, _ := h.NewList(nil)
	_, err = h.Hash(ls)
	require.ErrorIs(t, err, errz.ErrType)

	_, err = h.GetAttr(one, "missing")
	require.ErrorIs(t, err, errz.ErrAttribute)

	for _, obj := range []object.Object{one, two, s, tup, ls} {
		h.DecRef(obj)
	}
	require.Zero(t, h.LiveMortal())
}

func TestConstructHeapType(t *testing.T) {
	h := newHeap(t)
	typ := nodeType(t, h, nil)
	obj, err := h.Call(typ, nil, nil)
	require.NoError(t, err)
	require.Equal(t, typ, obj.Type())
	h.DecRef(obj)

	arg, _ := h.NewInt(1)
	_, err = h.Call(typ, []object.Object{arg}, nil)
	require.ErrorIs(t, err, errz.ErrType)
	h.DecRef(arg)

	_, err = h.Call(object.IntType, nil, nil)
	require.ErrorIs(t, err, errz.ErrType)
}

func TestDiscardType(t *testing.T) {
	h := newHeap(t)
	used := h.Used()
	typ := nodeType(t, h, nil)
	require.Len(t, h.Types(), 1)
	h.DiscardType(typ)
	require.Empty(t, h.Types())
	require.Equal(t, used, h.Used())
}
