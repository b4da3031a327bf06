package handle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullHandle(t *testing.T) {
	require.Equal(t, KindNull, Null.Kind())
	require.True(t, Null.IsNull())
	require.False(t, Null.IsInline())
	require.False(t, Null.IsObject())
	_, ok := Null.Int()
	require.False(t, ok)
	_, ok = Null.Reference()
	require.False(t, ok)
}

func TestInlineIntRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 42, -42, math.MaxInt32, math.MinInt32, 1 << 20, -(1 << 30)}
	for _, v := range values {
		h, ok := MakeInt(v)
		require.True(t, ok, "value %d", v)
		require.Equal(t, KindInt, h.Kind())
		require.True(t, h.IsInline())
		got, ok := h.Int()
		require.True(t, ok)
		require.Equal(t, v, got)
		_, ok = h.Float()
		require.False(t, ok)
	}
}

func TestInlineIntRange(t *testing.T) {
	for _, v := range []int64{math.MaxInt32 + 1, math.MinInt32 - 1, math.MaxInt64, math.MinInt64} {
		_, ok := MakeInt(v)
		require.False(t, ok, "value %d", v)
	}
}

func TestInlineIntSweep(t *testing.T) {
	for v := int64(math.MinInt32); v <= math.MaxInt32; v += 65521 {
		h, ok := MakeInt(v)
		require.True(t, ok)
		got, _ := h.Int()
		require.Equal(t, v, got)
	}
}

func TestInlineFloat(t *testing.T) {
	exact := []float64{0, 1, -1, 0.5, -0.25, 1e10, math.Inf(1), math.Inf(-1), math.Copysign(0, -1)}
	for _, f := range exact {
		h, ok := MakeFloat(f)
		require.True(t, ok, "value %g", f)
		require.Equal(t, KindFloat, h.Kind())
		got, ok := h.Float()
		require.True(t, ok)
		require.Equal(t, math.Float64bits(f), math.Float64bits(got))
	}
	for _, f := range []float64{0.1, math.Pi, 1e300, math.SmallestNonzeroFloat64} {
		_, ok := MakeFloat(f)
		require.False(t, ok, "value %g", f)
	}
}

func TestReferenceAndIndex(t *testing.T) {
	h, ok := FromReference(7)
	require.True(t, ok)
	require.Equal(t, KindReference, h.Kind())
	id, ok := h.Reference()
	require.True(t, ok)
	require.Equal(t, uint64(7), id)
	_, ok = h.Index()
	require.False(t, ok)

	_, ok = FromReference(0)
	require.False(t, ok)
	_, ok = FromReference(MaxPayload)
	require.False(t, ok)

	for _, i := range []uint64{0, 1, 99, MaxPayload - 1} {
		h, ok := FromIndex(i)
		require.True(t, ok)
		require.Equal(t, KindIndirect, h.Kind())
		require.True(t, h.IsObject())
		got, ok := h.Index()
		require.True(t, ok)
		require.Equal(t, i, got)
	}
	_, ok = FromIndex(MaxPayload)
	require.False(t, ok)
}

func TestKindsNeverCollide(t *testing.T) {
	ref, _ := FromReference(MaxPayload - 1)
	idx, _ := FromIndex(MaxPayload - 1)
	i, _ := MakeInt(-1)
	f, _ := MakeFloat(math.Inf(-1))
	kinds := map[Kind]Handle{
		KindReference: ref,
		KindIndirect:  idx,
		KindInt:       i,
		KindFloat:     f,
		KindNull:      Null,
	}
	for want, h := range kinds {
		require.Equal(t, want, h.Kind(), h.String())
	}
}
