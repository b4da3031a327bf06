package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListSetAndAppend(t *testing.T) {
	one := NewInt(1)
	two := NewInt(2)
	thr := NewInt(3)

	list := NewList([]Object{one})
	list.Append(two)
	require.Equal(t, []Object{one, two}, list.Items())
	require.Equal(t, 2, list.Len())

	old := list.Set(0, thr)
	require.Same(t, one, old)
	require.Equal(t, []Object{thr, two}, list.Items())
	require.Same(t, two, list.Get(1))

	items := list.ClearItems()
	require.Len(t, items, 2)
	require.Zero(t, list.Len())
}

func TestListInspectAndEquals(t *testing.T) {
	list := NewList([]Object{NewInt(1), NewStr("a"), None})
	require.Equal(t, `[1, "a", None]`, list.Inspect())
	require.Equal(t, []any{int64(1), "a", nil}, list.Interface())

	require.True(t, list.Equals(NewList([]Object{NewFloat(1), NewStr("a"), None})))
	require.False(t, list.Equals(NewList([]Object{NewInt(1)})))
	require.False(t, list.Equals(NewTuple([]Object{NewInt(1), NewStr("a"), None})))
}

func TestTupleInspect(t *testing.T) {
	require.Equal(t, "(1,)", NewTuple([]Object{NewInt(1)}).Inspect())
	require.Equal(t, "(1, 2)", NewTuple([]Object{NewInt(1), NewInt(2)}).Inspect())
}
