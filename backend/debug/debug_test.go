package debug

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/backend/direct"
	"github.com/deepnoodle-ai/hbridge/backend/universal"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
)

func wrapDirect(t *testing.T, opts ...heap.Option) *Context {
	t.Helper()
	h := heap.New(opts...)
	inner, err := direct.New(h, direct.WithInlineScalars(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return New(inner)
}

func TestName(t *testing.T) {
	ctx := wrapDirect(t)
	require.Equal(t, "debug(direct)", ctx.Name())

	h := heap.New()
	inner, err := universal.New(h)
	require.NoError(t, err)
	require.Equal(t, "debug(universal)", New(inner).Name())
	require.Same(t, inner, New(inner).Inner().(*universal.Context))
}

func TestHandlesAreNeverReused(t *testing.T) {
	ctx := wrapDirect(t)
	a, err := ctx.UnicodeFromString("a")
	require.NoError(t, err)
	require.Equal(t, handle.KindIndirect, a.Kind())
	require.NoError(t, ctx.Close(a))
	b, err := ctx.UnicodeFromString("b")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NoError(t, ctx.Close(b))
}

func TestUseAfterClose(t *testing.T) {
	ctx := wrapDirect(t)
	s, err := ctx.UnicodeFromString("gone")
	require.NoError(t, err)
	require.NoError(t, ctx.Close(s))

	_, err = ctx.UnicodeAsString(s)
	require.True(t, errors.Is(err, errz.ErrContract))
	require.Equal(t, errz.H4003, errz.From(err).Code)
	require.Contains(t, err.Error(), "after close")
	require.True(t, ctx.ErrOccurred())
	ctx.ErrClear()
}

func TestDoubleClose(t *testing.T) {
	ctx := wrapDirect(t)
	s, err := ctx.UnicodeFromString("twice")
	require.NoError(t, err)
	require.NoError(t, ctx.Close(s))
	err = ctx.Close(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "double close")
	require.Equal(t, errz.H4003, errz.From(err).Code)
	ctx.ErrClear()
}

func TestForeignHandle(t *testing.T) {
	ctx := wrapDirect(t)
	foreign, ok := handle.FromReference(12345)
	require.True(t, ok)
	_, err := ctx.Borrow(foreign)
	require.True(t, errors.Is(err, errz.ErrContract))

	never, ok := handle.FromIndex(1 << 40)
	require.True(t, ok)
	_, err = ctx.Borrow(never)
	require.Equal(t, errz.H4003, errz.From(err).Code)

	_, err = ctx.Borrow(handle.Null)
	require.True(t, errors.Is(err, errz.ErrContract))
}

func TestConstantsArePermanent(t *testing.T) {
	ctx := wrapDirect(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, ctx.Close(ctx.None()))
	}
	require.Zero(t, ctx.OpenHandles())
	require.Empty(t, ctx.Leaks())
}

func TestLeakReport(t *testing.T) {
	var buf bytes.Buffer
	ctx := wrapDirect(t, heap.WithLogger(zerolog.New(&buf)))
	live := ctx.Heap().LiveMortal()

	kept, err := ctx.UnicodeFromString("kept")
	require.NoError(t, err)
	leaked, err := ctx.LongFromInt64(1 << 40)
	require.NoError(t, err)
	closed, err := ctx.UnicodeFromString("closed")
	require.NoError(t, err)
	require.NoError(t, ctx.Close(closed))
	require.Equal(t, 2, ctx.OpenHandles())

	leaks := ctx.Leaks()
	require.Len(t, leaks, 2)
	require.Equal(t, kept, leaks[0].Handle)
	require.Equal(t, "str", leaks[0].TypeName)
	require.Equal(t, leaked, leaks[1].Handle)
	require.Equal(t, "int", leaks[1].TypeName)
	require.Less(t, leaks[0].Seq, leaks[1].Seq)

	err = ctx.Shutdown()
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 errors occurred")
	require.Contains(t, err.Error(), "leaked handle")
	require.Contains(t, buf.String(), `"handle"`)
	require.Contains(t, buf.String(), "leaked handle")

	require.Zero(t, ctx.OpenHandles())
	require.Equal(t, live, ctx.Heap().LiveMortal())
	require.NoError(t, ctx.Shutdown())
}

var _ bridge.Bridge = (*Context)(nil)
