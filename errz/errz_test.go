package errz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindSentinels(t *testing.T) {
	err := AllocationErrorf("out of memory: %d bytes", 64)
	require.True(t, errors.Is(err, ErrAllocation))
	require.False(t, errors.Is(err, ErrConfiguration))
	require.Equal(t, "allocation failure: out of memory: 64 bytes", err.Error())

	wrapped := fmt.Errorf("building tuple: %w", err)
	require.True(t, errors.Is(wrapped, ErrAllocation))
	require.Equal(t, Allocation, KindOf(wrapped))
}

func TestDeferred(t *testing.T) {
	err := AllocationErrorf("builder storage").WithCode(H1003)
	d := err.AsDeferred()
	require.False(t, err.Deferred)
	require.True(t, d.Deferred)
	require.Equal(t, H1003, d.Code)
	require.Contains(t, d.Error(), "(deferred)")
}

func TestFrom(t *testing.T) {
	require.Nil(t, From(nil))
	plain := errors.New("boom")
	e := From(plain)
	require.Equal(t, System, e.Kind)
	require.ErrorIs(t, e, plain)

	typed := TypeErrorf("bad")
	require.Same(t, typed, From(typed))
	require.Equal(t, System, KindOf(plain))
}

func TestExceptionPrefix(t *testing.T) {
	e := &Error{Kind: Value, Message: "nope", Exception: "geometry.DomainError"}
	require.Equal(t, "geometry.DomainError: nope", e.Error())
}

func TestCodes(t *testing.T) {
	tests := []struct {
		code     Code
		category string
	}{
		{H1001, "allocation"},
		{H2004, "configuration"},
		{H3002, "type"},
		{H4003, "contract"},
		{H5002, "value"},
		{H9002, "system"},
		{Code("X"), "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.category, tt.code.Category(), tt.code.String())
	}
	require.Equal(t, "gc participation without traversal", H2004.Description())
	require.Equal(t, "unknown error", Code("H0000").Description())
}
