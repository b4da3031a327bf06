package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/stretchr/testify/require"
)

func arenas(t *testing.T) map[string]Arena {
	t.Helper()
	wasm, err := NewWasmArena(context.Background(), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wasm.Close() })
	return map[string]Arena{
		"go":   NewGoArena(),
		"wasm": wasm,
	}
}

func TestArenaAllocZeroedAndWritable(t *testing.T) {
	for name, a := range arenas(t) {
		t.Run(name, func(t *testing.T) {
			b, err := a.Alloc(20)
			require.NoError(t, err)
			require.False(t, b.IsZero())
			require.Equal(t, uint32(24), b.Size)
			view := a.Bytes(b)
			require.Len(t, view, 24)
			for _, c := range view {
				require.Zero(t, c)
			}
			view[3] = 0xAB
			require.Equal(t, byte(0xAB), a.Bytes(b)[3])
			require.Equal(t, 24, a.InUse())

			a.Free(b)
			require.Equal(t, 0, a.InUse())
		})
	}
}

func TestArenaReuseIsZeroed(t *testing.T) {
	for name, a := range arenas(t) {
		t.Run(name, func(t *testing.T) {
			b, err := a.Alloc(16)
			require.NoError(t, err)
			a.Bytes(b)[0] = 1
			a.Free(b)
			b2, err := a.Alloc(16)
			require.NoError(t, err)
			require.Zero(t, a.Bytes(b2)[0])
		})
	}
}

func TestWasmArenaGrowsAndExhausts(t *testing.T) {
	a, err := NewWasmArena(context.Background(), 2)
	require.NoError(t, err)
	defer a.Close()
	require.Equal(t, uint32(1), a.Pages())

	big, err := a.Alloc(pageSize)
	require.NoError(t, err)
	require.Equal(t, uint32(2), a.Pages())

	_, err = a.Alloc(pageSize)
	require.Error(t, err)
	require.True(t, errors.Is(err, errz.ErrAllocation))

	a.Free(big)
	_, err = a.Alloc(pageSize)
	require.NoError(t, err)
}

func TestWasmArenaCoalesces(t *testing.T) {
	a, err := NewWasmArena(context.Background(), 1)
	require.NoError(t, err)
	defer a.Close()
	b1, _ := a.Alloc(8)
	b2, _ := a.Alloc(8)
	b3, _ := a.Alloc(8)
	a.Free(b1)
	a.Free(b2)
	b4, err := a.Alloc(16)
	require.NoError(t, err)
	require.Equal(t, b1.Addr, b4.Addr)
	a.Free(b3)
	a.Free(b4)
	require.Equal(t, 0, a.InUse())
}
