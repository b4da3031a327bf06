package env_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/env"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
)

// echo is a minimal extension: echo(x) returns x, fail() raises KeyError,
// broken() returns NULL without an exception.
func echo(ctx abi.Context) (handle.Handle, error) {
	return ctx.ModuleCreate(&abi.ModuleDef{
		Name: "echo",
		Defines: []abi.Def{
			abi.MethodDef{Name: "echo", Sig: abi.SigO, Impl: abi.OFunc(func(ctx abi.Context, _, arg handle.Handle) (handle.Handle, error) {
				return ctx.Dup(arg)
			})},
			abi.MethodDef{Name: "fail", Sig: abi.SigNoArgs, Impl: abi.NoArgsFunc(func(ctx abi.Context, _ handle.Handle) (handle.Handle, error) {
				return handle.Null, ctx.ErrSetString(ctx.Builtin(abi.BuiltinKeyError), "missing")
			})},
			abi.MethodDef{Name: "broken", Sig: abi.SigNoArgs, Impl: abi.NoArgsFunc(func(ctx abi.Context, _ handle.Handle) (handle.Handle, error) {
				return handle.Null, nil
			})},
		},
	})
}

func notAModule(ctx abi.Context) (handle.Handle, error) {
	return ctx.LongFromInt64(1)
}

func newEnv(t *testing.T, opts ...env.Option) *env.Environment {
	t.Helper()
	opts = append(opts, env.WithExtension("echo", echo))
	e, err := env.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestNewDefaults(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, "direct", e.Backend())
	require.Equal(t, "go", e.Storage())
	require.False(t, e.ID().IsNil())
	require.Equal(t, []string{"echo"}, e.Extensions())
}

func TestNewWasmStorage(t *testing.T) {
	e := newEnv(t, env.WithStorage(env.StorageWasm), env.WithWasmMaxPages(4))
	require.Equal(t, "wasm", e.Storage())
	result, err := e.Call("echo", "echo", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", result)
}

func TestNewConfigurationErrors(t *testing.T) {
	_, err := env.New(env.WithBackend("nope"))
	require.True(t, errors.Is(err, errz.ErrConfiguration))
	require.Contains(t, err.Error(), `unknown backend "nope"`)

	_, err = env.New(env.WithStorage("tape"))
	require.True(t, errors.Is(err, errz.ErrConfiguration))
	require.Contains(t, err.Error(), `unknown storage "tape"`)
}

func TestCallConversions(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 3, int64(3)},
		{"uint8", uint8(7), int64(7)},
		{"float32", float32(0.5), 0.5},
		{"string", "abc", "abc"},
		{"bytes", []byte("xy"), []byte("xy")},
		{"slice", []any{1, "a", []int{2}}, []any{int64(1), "a", []any{int64(2)}}},
	}
	for _, backend := range []string{"direct", "universal"} {
		e := newEnv(t, env.WithBackend(backend), env.WithDebug(true))
		for _, tt := range tests {
			t.Run(backend+"/"+tt.name, func(t *testing.T) {
				result, err := e.Call("echo", "echo", tt.input)
				require.NoError(t, err)
				require.Equal(t, tt.expected, result)
			})
		}
	}

	e := newEnv(t)
	_, err := e.Call("echo", "echo", struct{}{})
	require.True(t, errors.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "echo.echo: argument 0")
}

func TestCallErrors(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))

	_, err := e.Call("echo", "fail")
	require.True(t, errors.Is(err, errz.ErrKey))
	require.Contains(t, err.Error(), "missing")

	_, err = e.Call("echo", "broken")
	require.True(t, errors.Is(err, errz.ErrSystem))

	_, err = e.Call("echo", "nothing")
	require.True(t, errors.Is(err, errz.ErrAttribute))

	_, err = e.Call("other", "echo")
	require.True(t, errors.Is(err, errz.ErrKey))

	// The error slot is clear after each failure.
	result, err := e.Call("echo", "echo", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), result)
}

func TestRegisterAndImport(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.Register("bad", notAModule))
	_, err := e.Import("bad")
	require.True(t, errors.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "not a module")

	err = e.Register("nil", nil)
	require.True(t, errors.Is(err, errz.ErrConfiguration))

	names, err := e.Import("echo")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"echo", "fail", "broken"}, names)

	err = e.Register("echo", echo)
	require.True(t, errors.Is(err, errz.ErrConfiguration))
	require.Contains(t, err.Error(), "already imported")

	name, err := e.Get("echo", "__name__")
	require.NoError(t, err)
	require.Equal(t, "echo", name)
}

func TestDo(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))
	err := e.Do(func(ctx abi.Context) error {
		h, err := ctx.UnicodeFromString("x")
		if err != nil {
			return err
		}
		return ctx.Close(h)
	})
	require.NoError(t, err)

	err = e.Do(func(ctx abi.Context) error {
		_ = ctx.ErrSetString(ctx.Builtin(abi.BuiltinValueError), "left pending")
		return nil
	})
	require.True(t, errors.Is(err, errz.ErrValue))
	require.Contains(t, err.Error(), "left pending")

	err = e.Do(func(ctx abi.Context) error {
		require.False(t, ctx.ErrOccurred())
		return nil
	})
	require.NoError(t, err)
}

func TestWith(t *testing.T) {
	e := newEnv(t, env.WithBackend("universal"), env.WithDebug(true))
	err := e.With("echo", func(ctx abi.Context, mod handle.Handle) error {
		name, err := ctx.TypeName(mod)
		require.NoError(t, err)
		require.Equal(t, "module", name)
		require.True(t, ctx.HasAttr(mod, "echo"))
		return nil
	})
	require.NoError(t, err)

	err = e.With("missing", func(abi.Context, handle.Handle) error {
		t.Fatal("not reached")
		return nil
	})
	require.True(t, errors.Is(err, errz.ErrKey))
}

func TestCollectAndLive(t *testing.T) {
	e := newEnv(t)
	_, err := e.Import("echo")
	require.NoError(t, err)
	require.Positive(t, e.Live())
	require.GreaterOrEqual(t, e.Collect(), 0)
	require.Positive(t, e.Stats().Allocated)
}

func TestCloseReportsLeaks(t *testing.T) {
	e, err := env.New(env.WithDebug(true))
	require.NoError(t, err)
	err = e.Do(func(ctx abi.Context) error {
		_, err := ctx.UnicodeFromString("leaked")
		return err
	})
	require.NoError(t, err)

	err = e.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "leaked handle")

	require.NoError(t, e.Close())
	_, err = e.Call("echo", "echo", 1)
	require.True(t, errors.Is(err, errz.ErrContract))
	require.Zero(t, e.Collect())
}

func TestLoadPluginMissing(t *testing.T) {
	e := newEnv(t)
	err := e.LoadPlugin("/nonexistent/echo.so", "echo2")
	require.True(t, errors.Is(err, errz.ErrConfiguration))
	require.NotContains(t, e.Extensions(), "echo2")
}
