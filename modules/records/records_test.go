package records_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/env"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/modules/records"
)

func newEnv(t *testing.T, opts ...env.Option) *env.Environment {
	t.Helper()
	opts = append(opts, env.WithExtension(records.Name, records.Init))
	e, err := env.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func environments(t *testing.T) map[string]*env.Environment {
	return map[string]*env.Environment{
		"direct":    newEnv(t),
		"universal": newEnv(t, env.WithBackend("universal"), env.WithDebug(true)),
		"wasm":      newEnv(t, env.WithStorage(env.StorageWasm), env.WithDebug(true)),
	}
}

func TestBuiltinSpec(t *testing.T) {
	f := records.Builtin()
	require.Equal(t, records.Name, f.Module)
	require.Len(t, f.Types, 3)
	require.True(t, f.Types[1].Legacy)
}

func TestConstructAndRepr(t *testing.T) {
	for name, e := range environments(t) {
		t.Run(name, func(t *testing.T) {
			result, err := e.Call(records.Name, "Version", 1, 2, 3)
			require.NoError(t, err)
			require.Equal(t, "Version(major=1, minor=2, patch=3)", result)

			result, err = e.Call(records.Name, "Sample", 0.5)
			require.NoError(t, err)
			require.Equal(t, "Sample(level=0.5, count=0)", result)

			result, err = e.Call(records.Name, "Person", "Ann", 41, 1.5, true)
			require.NoError(t, err)
			require.Equal(t, `Person(name="Ann", age=41, height=1.5, active=True)`, result)

			result, err = e.Call(records.Name, "Person")
			require.NoError(t, err)
			require.Equal(t, "Person(name=None, age=0, height=0.0, active=False)", result)
		})
	}
}

func TestConstructErrors(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))

	_, err := e.Call(records.Name, "Version", 1, 2, 3, 4)
	require.True(t, errors.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "at most 3 positional arguments")

	_, err = e.Call(records.Name, "Version", 1<<40)
	require.True(t, errors.Is(err, errz.ErrValue))
	require.Contains(t, err.Error(), "does not fit in an int")

	_, err = e.Call(records.Name, "Version", 1, 2, 1<<20)
	require.True(t, errors.Is(err, errz.ErrValue))
	require.Contains(t, err.Error(), "does not fit in a short")

	_, err = e.Call(records.Name, "Person", "Ann", "old")
	require.True(t, errors.Is(err, errz.ErrType))
}

func TestKeywordsAndAttributes(t *testing.T) {
	for name, e := range environments(t) {
		t.Run(name, func(t *testing.T) {
			err := e.With(records.Name, func(ctx abi.Context, mod handle.Handle) error {
				tr := abi.NewTracker(ctx, 0)
				defer tr.Close()
				typ, err := ctx.GetAttr(mod, "Person")
				require.NoError(t, err)
				require.NoError(t, tr.Add(typ))
				ann, err := ctx.UnicodeFromString("Ann")
				require.NoError(t, err)
				require.NoError(t, tr.Add(ann))
				age, err := ctx.LongFromInt64(30)
				require.NoError(t, err)
				require.NoError(t, tr.Add(age))

				p, err := ctx.Call(typ, []handle.Handle{ann, age}, []string{"age"})
				require.NoError(t, err)
				require.NoError(t, tr.Add(p))

				got, err := ctx.GetAttr(p, "age")
				require.NoError(t, err)
				require.NoError(t, tr.Add(got))
				v, err := ctx.LongAsInt64(got)
				require.NoError(t, err)
				require.Equal(t, int64(30), v)

				got, err = ctx.GetAttr(p, "name")
				require.NoError(t, err)
				require.NoError(t, tr.Add(got))
				require.True(t, ctx.Is(got, ann))

				// age is read-only; height is writable.
				err = ctx.SetAttr(p, "age", age)
				require.True(t, errors.Is(err, errz.ErrAttribute))
				ctx.ErrClear()
				require.NoError(t, ctx.SetAttr(p, "height", age))

				_, err = ctx.Call(typ, []handle.Handle{ann}, []string{"nickname"})
				require.True(t, errors.Is(err, errz.ErrType))
				require.Contains(t, err.Error(), "unexpected keyword argument 'nickname'")
				ctx.ErrClear()

				_, err = ctx.Call(typ, []handle.Handle{ann, ann}, []string{"name"})
				require.True(t, errors.Is(err, errz.ErrType))
				require.Contains(t, err.Error(), "multiple values for argument 'name'")
				ctx.ErrClear()
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestEqualityAndTuple(t *testing.T) {
	e := newEnv(t, env.WithBackend("universal"), env.WithDebug(true))
	err := e.With(records.Name, func(ctx abi.Context, mod handle.Handle) error {
		tr := abi.NewTracker(ctx, 0)
		defer tr.Close()
		typ, err := ctx.GetAttr(mod, "Version")
		require.NoError(t, err)
		require.NoError(t, tr.Add(typ))
		version := func(parts ...int64) handle.Handle {
			args := make([]handle.Handle, len(parts))
			for i, p := range parts {
				h, err := ctx.LongFromInt64(p)
				require.NoError(t, err)
				require.NoError(t, tr.Add(h))
				args[i] = h
			}
			v, err := ctx.Call(typ, args, nil)
			require.NoError(t, err)
			require.NoError(t, tr.Add(v))
			return v
		}
		a, b, c := version(1, 2, 3), version(1, 2, 3), version(1, 3, 0)

		eq, err := ctx.RichCompareBool(a, b, abi.EQ)
		require.NoError(t, err)
		require.True(t, eq)
		eq, err = ctx.RichCompareBool(a, c, abi.EQ)
		require.NoError(t, err)
		require.False(t, eq)
		_, err = ctx.RichCompareBool(a, c, abi.LT)
		require.True(t, errors.Is(err, errz.ErrType))
		ctx.ErrClear()

		tup, err := ctx.CallMethod(c, "astuple", nil, nil)
		require.NoError(t, err)
		require.NoError(t, tr.Add(tup))
		n, err := ctx.Length(tup)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		minor, err := ctx.GetItemInt(tup, 1)
		require.NoError(t, err)
		require.NoError(t, tr.Add(minor))
		v, err := ctx.LongAsInt64(minor)
		require.NoError(t, err)
		require.Equal(t, int64(3), v)
		return nil
	})
	require.NoError(t, err)
}

func TestFields(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))
	err := e.With(records.Name, func(ctx abi.Context, mod handle.Handle) error {
		tr := abi.NewTracker(ctx, 0)
		defer tr.Close()
		typ, err := ctx.GetAttr(mod, "Version")
		require.NoError(t, err)
		require.NoError(t, tr.Add(typ))
		v, err := ctx.Call(typ, nil, nil)
		require.NoError(t, err)
		require.NoError(t, tr.Add(v))

		fields, err := ctx.CallMethod(v, "fields", nil, nil)
		require.NoError(t, err)
		require.NoError(t, tr.Add(fields))
		n, err := ctx.Length(fields)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		patch, err := ctx.GetItemInt(fields, 2)
		require.NoError(t, err)
		require.NoError(t, tr.Add(patch))
		name, err := ctx.TypeName(patch)
		require.NoError(t, err)
		require.Equal(t, "MemberInfo", name)

		kind, err := ctx.GetAttr(patch, "kind")
		require.NoError(t, err)
		require.NoError(t, tr.Add(kind))
		s, err := ctx.UnicodeAsString(kind)
		require.NoError(t, err)
		require.Equal(t, "short", s)

		off, err := ctx.GetAttr(patch, "offset")
		require.NoError(t, err)
		require.NoError(t, tr.Add(off))
		o, err := ctx.LongAsInt64(off)
		require.NoError(t, err)
		require.Equal(t, int64(24), o)
		return nil
	})
	require.NoError(t, err)
}

func TestStructSequenceFromSpec(t *testing.T) {
	e := newEnv(t)
	result, err := e.Call(records.Name, "Span", 1, 5)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"start": int64(1), "stop": int64(5)}, result)
}

func TestPersonCycleIsCollected(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))
	_, err := e.Import(records.Name)
	require.NoError(t, err)
	e.Collect()
	before := e.Live()

	err = e.With(records.Name, func(ctx abi.Context, mod handle.Handle) error {
		typ, err := ctx.GetAttr(mod, "Person")
		require.NoError(t, err)
		defer ctx.Close(typ)
		p, err := ctx.Call(typ, nil, nil)
		require.NoError(t, err)
		defer ctx.Close(p)
		// A person whose name is itself.
		require.NoError(t, ctx.SetAttr(p, "name", p))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, before+1, e.Live())
	require.Equal(t, 1, e.Collect())
	require.Equal(t, before, e.Live())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	spec := `
module: inventory
types:
  - name: inventory.Item
    members:
      - {name: sku, kind: long}
      - {name: price, kind: double}
`
	require.NoError(t, os.WriteFile(path, []byte(spec), 0o644))
	name, init, err := records.Load(path)
	require.NoError(t, err)
	require.Equal(t, "inventory", name)

	e, err := env.New(env.WithExtension(name, init))
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close()) }()
	result, err := e.Call(name, "Item", 7, 9.5)
	require.NoError(t, err)
	require.Equal(t, "Item(sku=7, price=9.5)", result)
}
