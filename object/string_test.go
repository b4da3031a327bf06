package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrBasics(t *testing.T) {
	s := NewStr("hi \"there\"")
	require.Equal(t, StrType, s.Type())
	require.Equal(t, `hi "there"`, s.Value())
	require.Equal(t, `hi "there"`, s.String())
	require.Equal(t, `"hi \"there\""`, s.Inspect())
	require.Equal(t, `hi "there"`, s.Interface())
}

func TestStrCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"abc", "abc", 0},
		{"", "a", -1},
	}
	for _, tc := range tests {
		result, ok := NewStr(tc.a).Compare(NewStr(tc.b))
		require.True(t, ok)
		require.Equal(t, tc.expected, result, "%q vs %q", tc.a, tc.b)
	}
	_, ok := NewStr("1").Compare(NewInt(1))
	require.False(t, ok)
	require.True(t, NewStr("x").Equals(NewStr("x")))
	require.False(t, NewStr("x").Equals(NewBytes([]byte("x"))))
}

func TestBytesCopy(t *testing.T) {
	src := []byte("abc")
	b := NewBytes(src)
	src[0] = 'z'
	require.Equal(t, []byte("abc"), b.Value())
	v := b.Value()
	v[1] = 'z'
	require.Equal(t, []byte("abc"), b.Value())
	require.Equal(t, `b"abc"`, b.Inspect())
	require.Equal(t, 3, b.Len())
}
