package direct

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
)

func newContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	h := heap.New()
	ctx, err := New(h, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return ctx
}

func TestHandleIsObjectID(t *testing.T) {
	ctx := newContext(t)
	s, err := ctx.UnicodeFromString("s")
	require.NoError(t, err)
	require.Equal(t, handle.KindReference, s.Kind())
	obj, err := ctx.Borrow(s)
	require.NoError(t, err)
	id, ok := s.Reference()
	require.True(t, ok)
	require.Equal(t, ctx.Heap().IDOf(obj), id)

	// Duplicates share the bits and own a reference each.
	d, err := ctx.Dup(s)
	require.NoError(t, err)
	require.Equal(t, s, d)
	require.Equal(t, int64(2), obj.ObjectHeader().RefCount())
	require.NoError(t, ctx.Close(d))
	require.NoError(t, ctx.Close(s))

	_, err = ctx.Borrow(s)
	require.Equal(t, errz.H4003, errz.From(err).Code)
}

func TestConstantsAreStable(t *testing.T) {
	ctx := newContext(t)
	require.Equal(t, ctx.None(), ctx.None())
	require.NoError(t, ctx.Close(ctx.None()))
	_, err := ctx.TypeName(ctx.None())
	require.NoError(t, err)
}

func TestIndirectHandlesRejected(t *testing.T) {
	ctx := newContext(t)
	idx, ok := handle.FromIndex(1)
	require.True(t, ok)
	_, err := ctx.Borrow(idx)
	require.True(t, errors.Is(err, errz.ErrContract))
}
