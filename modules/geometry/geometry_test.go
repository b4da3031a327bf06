package geometry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/env"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/modules/geometry"
)

func newEnv(t *testing.T, opts ...env.Option) *env.Environment {
	t.Helper()
	opts = append(opts, env.WithExtension(geometry.Name, geometry.Init))
	e, err := env.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func environments(t *testing.T) map[string]*env.Environment {
	return map[string]*env.Environment{
		"direct":    newEnv(t),
		"universal": newEnv(t, env.WithBackend("universal"), env.WithDebug(true)),
		"boxed":     newEnv(t, env.WithInlineScalars(false), env.WithDebug(true)),
	}
}

// construct calls the module attribute typ with float arguments. The
// returned handle is tracked by tr.
func construct(t *testing.T, ctx abi.Context, tr *abi.Tracker, mod handle.Handle, typ string, args ...handle.Handle) handle.Handle {
	t.Helper()
	callable, err := ctx.GetAttr(mod, typ)
	require.NoError(t, err)
	require.NoError(t, tr.Add(callable))
	h, err := ctx.Call(callable, args, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Add(h))
	return h
}

func point(t *testing.T, ctx abi.Context, tr *abi.Tracker, mod handle.Handle, x, y float64) handle.Handle {
	t.Helper()
	hx, err := ctx.FloatFromFloat64(x)
	require.NoError(t, err)
	require.NoError(t, tr.Add(hx))
	hy, err := ctx.FloatFromFloat64(y)
	require.NoError(t, err)
	require.NoError(t, tr.Add(hy))
	return construct(t, ctx, tr, mod, "Point", hx, hy)
}

// floatOf and strOf return functions consuming the result of a Context
// operation.
func floatOf(t *testing.T, ctx abi.Context) func(handle.Handle, error) float64 {
	return func(h handle.Handle, err error) float64 {
		t.Helper()
		require.NoError(t, err)
		defer ctx.Close(h)
		v, err := ctx.FloatAsFloat64(h)
		require.NoError(t, err)
		return v
	}
}

func strOf(t *testing.T, ctx abi.Context) func(handle.Handle, error) string {
	return func(h handle.Handle, err error) string {
		t.Helper()
		require.NoError(t, err)
		defer ctx.Close(h)
		s, err := ctx.UnicodeAsString(h)
		require.NoError(t, err)
		return s
	}
}

func TestPointThroughCall(t *testing.T) {
	for name, e := range environments(t) {
		t.Run(name, func(t *testing.T) {
			result, err := e.Call(geometry.Name, "Point", 1, 2.5)
			require.NoError(t, err)
			require.Equal(t, "Point(1, 2.5)", result)

			_, err = e.Call(geometry.Name, "Point", 1, 2, 3)
			require.True(t, errors.Is(err, errz.ErrType))
			require.Contains(t, err.Error(), "at most 2 positional arguments")

			_, err = e.Call(geometry.Name, "Point", "a")
			require.True(t, errors.Is(err, errz.ErrType))
		})
	}
}

func TestPointProtocol(t *testing.T) {
	for name, e := range environments(t) {
		t.Run(name, func(t *testing.T) {
			err := e.With(geometry.Name, func(ctx abi.Context, mod handle.Handle) error {
				tr := abi.NewTracker(ctx, 0)
				defer tr.Close()
				a := point(t, ctx, tr, mod, 3, 4)
				b := point(t, ctx, tr, mod, 1, 1)

				require.Equal(t, 3.0, floatOf(t, ctx)(ctx.GetAttr(a, "x")))
				require.Equal(t, 4.0, floatOf(t, ctx)(ctx.GetAttr(a, "y")))
				require.Equal(t, 5.0, floatOf(t, ctx)(ctx.GetAttr(a, "norm")))
				require.Equal(t, "Point(3, 4)", strOf(t, ctx)(ctx.Repr(a)))

				sum, err := ctx.Add(a, b)
				require.NoError(t, err)
				require.NoError(t, tr.Add(sum))
				require.Equal(t, "Point(4, 5)", strOf(t, ctx)(ctx.Repr(sum)))

				two, err := ctx.FloatFromFloat64(2)
				require.NoError(t, err)
				require.NoError(t, tr.Add(two))
				scaled, err := ctx.CallMethod(a, "scale", []handle.Handle{two}, nil)
				require.NoError(t, err)
				require.NoError(t, tr.Add(scaled))
				require.Equal(t, "Point(6, 8)", strOf(t, ctx)(ctx.Repr(scaled)))

				c := point(t, ctx, tr, mod, 3, 4)
				eq, err := ctx.RichCompareBool(a, c, abi.EQ)
				require.NoError(t, err)
				require.True(t, eq)
				ne, err := ctx.RichCompareBool(a, b, abi.NE)
				require.NoError(t, err)
				require.True(t, ne)

				ha, err := ctx.Hash(a)
				require.NoError(t, err)
				hc, err := ctx.Hash(c)
				require.NoError(t, err)
				require.Equal(t, ha, hc)

				_, err = ctx.RichCompareBool(a, b, abi.LT)
				require.True(t, errors.Is(err, errz.ErrType))
				ctx.ErrClear()

				_, err = ctx.Add(a, two)
				require.True(t, errors.Is(err, errz.ErrType))
				ctx.ErrClear()
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestPointKeywords(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))
	err := e.With(geometry.Name, func(ctx abi.Context, mod handle.Handle) error {
		tr := abi.NewTracker(ctx, 0)
		defer tr.Close()
		typ, err := ctx.GetAttr(mod, "Point")
		require.NoError(t, err)
		require.NoError(t, tr.Add(typ))
		one, err := ctx.FloatFromFloat64(1)
		require.NoError(t, err)
		require.NoError(t, tr.Add(one))
		two, err := ctx.FloatFromFloat64(2)
		require.NoError(t, err)
		require.NoError(t, tr.Add(two))

		p, err := ctx.Call(typ, []handle.Handle{one, two}, []string{"y"})
		require.NoError(t, err)
		require.NoError(t, tr.Add(p))
		require.Equal(t, "Point(1, 2)", strOf(t, ctx)(ctx.Repr(p)))

		_, err = ctx.Call(typ, []handle.Handle{one, two}, []string{"x"})
		require.True(t, errors.Is(err, errz.ErrType))
		require.Contains(t, err.Error(), "multiple values for argument 'x'")
		ctx.ErrClear()

		_, err = ctx.Call(typ, []handle.Handle{one}, []string{"z"})
		require.True(t, errors.Is(err, errz.ErrType))
		require.Contains(t, err.Error(), "unexpected keyword argument 'z'")
		ctx.ErrClear()
		return nil
	})
	require.NoError(t, err)
}

func TestPolygon(t *testing.T) {
	for name, e := range environments(t) {
		t.Run(name, func(t *testing.T) {
			err := e.With(geometry.Name, func(ctx abi.Context, mod handle.Handle) error {
				tr := abi.NewTracker(ctx, 0)
				defer tr.Close()
				vertices := []handle.Handle{
					point(t, ctx, tr, mod, 0, 0),
					point(t, ctx, tr, mod, 4, 0),
					point(t, ctx, tr, mod, 4, 3),
				}
				list, err := ctx.ListNew(vertices)
				require.NoError(t, err)
				require.NoError(t, tr.Add(list))
				poly := construct(t, ctx, tr, mod, "Polygon", list)

				n, err := ctx.Length(poly)
				require.NoError(t, err)
				require.Equal(t, 3, n)
				require.Equal(t, 6.0, floatOf(t, ctx)(ctx.GetAttr(poly, "area")))
				require.Equal(t, 12.0, floatOf(t, ctx)(ctx.CallMethod(poly, "perimeter", nil, nil)))

				last, err := ctx.GetItemInt(poly, 2)
				require.NoError(t, err)
				require.NoError(t, tr.Add(last))
				require.True(t, ctx.Is(last, vertices[2]))

				_, err = ctx.CallMethod(poly, "append", []handle.Handle{list}, nil)
				require.True(t, errors.Is(err, errz.ErrType))
				require.Contains(t, err.Error(), "vertices must be points, not list")
				ctx.ErrClear()

				none, err := ctx.CallMethod(poly, "append", []handle.Handle{point(t, ctx, tr, mod, 0, 3)}, nil)
				require.NoError(t, err)
				require.True(t, ctx.Is(none, ctx.None()))
				require.NoError(t, ctx.Close(none))
				require.Equal(t, 12.0, floatOf(t, ctx)(ctx.GetAttr(poly, "area")))

				it, err := ctx.GetIter(poly)
				require.NoError(t, err)
				require.NoError(t, tr.Add(it))
				count := 0
				for {
					item, err := ctx.IterNext(it)
					require.NoError(t, err)
					if item.IsNull() {
						break
					}
					count++
					require.NoError(t, ctx.Close(item))
				}
				require.Equal(t, 4, count)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestPolygonBounds(t *testing.T) {
	for name, e := range environments(t) {
		t.Run(name, func(t *testing.T) {
			err := e.With(geometry.Name, func(ctx abi.Context, mod handle.Handle) error {
				tr := abi.NewTracker(ctx, 0)
				defer tr.Close()
				empty := construct(t, ctx, tr, mod, "Polygon")
				_, err := ctx.CallMethod(empty, "bounds", nil, nil)
				require.True(t, errors.Is(err, errz.ErrValue))
				ctx.ErrClear()

				list, err := ctx.ListNew([]handle.Handle{
					point(t, ctx, tr, mod, -1, 2),
					point(t, ctx, tr, mod, 3, -4),
				})
				require.NoError(t, err)
				require.NoError(t, tr.Add(list))
				poly := construct(t, ctx, tr, mod, "Polygon", list)

				box, err := ctx.CallMethod(poly, "bounds", nil, nil)
				require.NoError(t, err)
				require.NoError(t, tr.Add(box))
				typeName, err := ctx.TypeName(box)
				require.NoError(t, err)
				require.Equal(t, "Bounds", typeName)
				require.Equal(t, -1.0, floatOf(t, ctx)(ctx.GetAttr(box, "min_x")))
				require.Equal(t, -4.0, floatOf(t, ctx)(ctx.GetAttr(box, "min_y")))
				require.Equal(t, 3.0, floatOf(t, ctx)(ctx.GetAttr(box, "max_x")))
				require.Equal(t, 2.0, floatOf(t, ctx)(ctx.GetItemInt(box, 3)))
				n, err := ctx.Length(box)
				require.NoError(t, err)
				require.Equal(t, 4, n)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDistanceAndDescribe(t *testing.T) {
	e := newEnv(t, env.WithBackend("universal"), env.WithDebug(true))
	err := e.With(geometry.Name, func(ctx abi.Context, mod handle.Handle) error {
		tr := abi.NewTracker(ctx, 0)
		defer tr.Close()
		a := point(t, ctx, tr, mod, 1, 1)
		b := point(t, ctx, tr, mod, 4, 5)
		fn, err := ctx.GetAttr(mod, "distance")
		require.NoError(t, err)
		require.NoError(t, tr.Add(fn))
		require.Equal(t, 5.0, floatOf(t, ctx)(ctx.Call(fn, []handle.Handle{a, b}, nil)))

		require.Equal(t, "Point: Point(1, 1)",
			strOf(t, ctx)(ctx.CallMethod(mod, "describe", []handle.Handle{a}, nil)))
		return nil
	})
	require.NoError(t, err)

	result, err := e.Call(geometry.Name, "describe", 3)
	require.NoError(t, err)
	require.Equal(t, "int: 3", result)

	_, err = e.Call(geometry.Name, "distance", 1)
	require.True(t, errors.Is(err, errz.ErrType))
}

func TestModuleNames(t *testing.T) {
	e := newEnv(t)
	names, err := e.Import(geometry.Name)
	require.NoError(t, err)
	for _, name := range []string{"Point", "Polygon", "Bounds", "distance", "describe"} {
		require.Contains(t, names, name)
	}
}

func TestObjectsReleased(t *testing.T) {
	e := newEnv(t, env.WithDebug(true))
	_, err := e.Import(geometry.Name)
	require.NoError(t, err)
	e.Collect()
	before := e.Live()

	for i := 0; i < 10; i++ {
		err := e.With(geometry.Name, func(ctx abi.Context, mod handle.Handle) error {
			tr := abi.NewTracker(ctx, 0)
			defer tr.Close()
			list, err := ctx.ListNew([]handle.Handle{point(t, ctx, tr, mod, 0, 0)})
			require.NoError(t, err)
			require.NoError(t, tr.Add(list))
			construct(t, ctx, tr, mod, "Polygon", list)
			return nil
		})
		require.NoError(t, err)
	}
	e.Collect()
	require.Equal(t, before, e.Live())
}
