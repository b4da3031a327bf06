package bridge_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/backend"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

func TestInlineConversion(t *testing.T) {
	h, ok := bridge.ToInline(object.NewInt(-5))
	require.True(t, ok)
	obj, ok := bridge.FromInline(h)
	require.True(t, ok)
	require.Equal(t, int64(-5), obj.(*object.Int).Value())
	require.True(t, obj.ObjectHeader().IsImmortal())

	h, ok = bridge.ToInline(object.NewFloat(0.5))
	require.True(t, ok)
	obj, ok = bridge.FromInline(h)
	require.True(t, ok)
	require.Equal(t, 0.5, obj.(*object.Float).Value())

	_, ok = bridge.ToInline(object.NewInt(1 << 40))
	require.False(t, ok)
	_, ok = bridge.ToInline(object.NewFloat(0.1))
	require.False(t, ok)
	_, ok = bridge.ToInline(object.True)
	require.False(t, ok)
	_, ok = bridge.FromInline(handle.Null)
	require.False(t, ok)
}

func TestNewRefAndBorrowAll(t *testing.T) {
	hp := heap.New()
	b, err := backend.Open(hp, "direct")
	require.NoError(t, err)
	defer hp.Close()

	s, err := hp.NewStr("shared")
	require.NoError(t, err)
	h1, err := bridge.NewRef(b, s)
	require.NoError(t, err)
	h2, err := bridge.NewRef(b, s)
	require.NoError(t, err)
	require.Equal(t, int64(3), s.ObjectHeader().RefCount())

	objs, err := bridge.BorrowAll(b, []handle.Handle{h1, h2})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	require.Same(t, objs[0], objs[1])
	require.Equal(t, int64(3), s.ObjectHeader().RefCount())

	require.NoError(t, b.Close(h1))
	require.NoError(t, b.Close(h2))
	hp.DecRef(s)
}

func TestSentinelErrors(t *testing.T) {
	require.True(t, errors.Is(bridge.ErrNull(), errz.ErrContract))
	err := bridge.ErrClosed(handle.Null)
	require.True(t, errors.Is(err, errz.ErrContract))
	require.Equal(t, errz.H4003, errz.From(err).Code)
}
