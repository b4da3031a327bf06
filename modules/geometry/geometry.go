// Package geometry is an extension module defining two types: Point, a
// plain struct of two doubles, and Polygon, a garbage-collected container
// holding its vertices in a reference field. Polygon.bounds returns a
// Bounds struct sequence.
package geometry

import (
	"fmt"
	"math"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/handle"
)

// Name is the module name.
const Name = "geometry"

const (
	offX = 0
	offY = 8

	offVertices = 0
)

// Init creates the module.
func Init(ctx abi.Context) (handle.Handle, error) {
	return ctx.ModuleCreate(&abi.ModuleDef{
		Name: Name,
		Doc:  "Points and polygons in the plane.",
		Defines: []abi.Def{
			abi.MethodDef{Name: "distance", Doc: "Distance between two points", Sig: abi.SigVarArgs, Impl: distance},
			abi.SlotDef{Slot: abi.SlotModExec, Impl: exec},
		},
		LegacyMethods: []abi.LegacyMethod{
			{Name: "describe", Doc: "Type name and repr of an object", Impl: describe},
		},
	})
}

// PointSpec describes the Point type.
func PointSpec() *abi.TypeSpec {
	return &abi.TypeSpec{
		Name:      Name + ".Point",
		Doc:       "A point in the plane.",
		BasicSize: 16,
		Flags:     abi.FlagBaseType,
		Defines: []abi.Def{
			abi.MemberDef{Name: "x", Kind: abi.MemberDouble, Offset: offX},
			abi.MemberDef{Name: "y", Kind: abi.MemberDouble, Offset: offY},
			abi.SlotDef{Slot: abi.SlotInit, Impl: pointInit},
			abi.SlotDef{Slot: abi.SlotRepr, Impl: pointRepr},
			abi.SlotDef{Slot: abi.SlotAdd, Impl: pointAdd},
			abi.SlotDef{Slot: abi.SlotRichCompare, Impl: pointCompare},
			abi.SlotDef{Slot: abi.SlotHash, Impl: pointHash},
			abi.MethodDef{Name: "scale", Doc: "Multiply both coordinates by a factor", Sig: abi.SigO, Impl: pointScale},
			abi.GetSetDef{Name: "norm", Doc: "Distance from the origin", Getter: pointNorm},
		},
	}
}

// PolygonSpec describes the Polygon type.
func PolygonSpec() *abi.TypeSpec {
	return &abi.TypeSpec{
		Name:      Name + ".Polygon",
		Doc:       "A closed polygon.",
		BasicSize: 8,
		Flags:     abi.FlagHaveGC,
		Defines: []abi.Def{
			abi.SlotDef{Slot: abi.SlotInit, Impl: polygonInit},
			abi.SlotDef{Slot: abi.SlotTraverse, Impl: polygonTraverse},
			abi.SlotDef{Slot: abi.SlotLen, Impl: polygonLen},
			abi.SlotDef{Slot: abi.SlotGetItem, Impl: polygonGetItem},
			abi.SlotDef{Slot: abi.SlotIter, Impl: polygonIter},
			abi.MethodDef{Name: "append", Doc: "Add a vertex", Sig: abi.SigO, Impl: polygonAppend},
			abi.MethodDef{Name: "perimeter", Doc: "Length of the boundary", Sig: abi.SigNoArgs, Impl: polygonPerimeter},
			abi.MethodDef{Name: "bounds", Doc: "Axis-aligned bounding box", Sig: abi.SigNoArgs, Impl: polygonBounds},
			abi.GetSetDef{Name: "area", Doc: "Enclosed area (shoelace formula)", Getter: polygonArea},
		},
	}
}

// BoundsDesc describes the Bounds struct sequence.
func BoundsDesc() *abi.StructSequenceDesc {
	return &abi.StructSequenceDesc{
		Name: Name + ".Bounds",
		Doc:  "Axis-aligned bounding box.",
		Fields: []abi.StructSequenceField{
			{Name: "min_x"}, {Name: "min_y"}, {Name: "max_x"}, {Name: "max_y"},
		},
	}
}

// exec creates the types and publishes them on the module. Polygon keeps
// Point and Bounds as class attributes so its methods can reach them
// through any instance.
func exec(ctx abi.Context, mod handle.Handle) error {
	tr := abi.NewTracker(ctx, 3)
	defer tr.Close()

	point, err := ctx.TypeFromSpec(PointSpec())
	if err != nil {
		return err
	}
	if err := tr.Add(point); err != nil {
		return err
	}
	polygon, err := ctx.TypeFromSpec(PolygonSpec())
	if err != nil {
		return err
	}
	if err := tr.Add(polygon); err != nil {
		return err
	}
	bounds, err := ctx.StructSequenceNewType(BoundsDesc())
	if err != nil {
		return err
	}
	if err := tr.Add(bounds); err != nil {
		return err
	}
	for _, attr := range []struct {
		owner handle.Handle
		name  string
		value handle.Handle
	}{
		{mod, "Point", point},
		{mod, "Polygon", polygon},
		{mod, "Bounds", bounds},
		{polygon, "Point", point},
		{polygon, "Bounds", bounds},
	} {
		if err := ctx.SetAttr(attr.owner, attr.name, attr.value); err != nil {
			return err
		}
	}
	return nil
}

func typeError(ctx abi.Context, format string, args ...any) error {
	return ctx.ErrSetString(ctx.Builtin(abi.BuiltinTypeError), fmt.Sprintf(format, args...))
}

// isPoint reports whether h is an instance of the Point type published on
// the class of owner.
func isPoint(ctx abi.Context, owner, h handle.Handle) (bool, error) {
	pt, err := ctx.GetAttr(owner, "Point")
	if err != nil {
		return false, err
	}
	defer ctx.Close(pt)
	return ctx.TypeCheck(h, pt)
}

func coords(ctx abi.Context, h handle.Handle) (float64, float64, error) {
	p, err := ctx.AsStruct(h)
	if err != nil {
		return 0, 0, err
	}
	return p.Float64(offX), p.Float64(offY), nil
}

func newPoint(ctx abi.Context, typ handle.Handle, x, y float64) (handle.Handle, error) {
	h, p, err := ctx.New(typ)
	if err != nil {
		return handle.Null, err
	}
	p.SetFloat64(offX, x)
	p.SetFloat64(offY, y)
	return h, nil
}

// Point

func pointInit(ctx abi.Context, self handle.Handle, args []handle.Handle, kwnames []string) error {
	npos := len(args) - len(kwnames)
	if npos > 2 {
		return typeError(ctx, "Point() takes at most 2 positional arguments (%d given)", npos)
	}
	var vals [2]float64
	set := [2]bool{}
	for i := 0; i < npos; i++ {
		v, err := ctx.FloatAsFloat64(args[i])
		if err != nil {
			return err
		}
		vals[i], set[i] = v, true
	}
	for i, kw := range kwnames {
		var slot int
		switch kw {
		case "x":
			slot = 0
		case "y":
			slot = 1
		default:
			return typeError(ctx, "Point() got an unexpected keyword argument '%s'", kw)
		}
		if set[slot] {
			return typeError(ctx, "Point() got multiple values for argument '%s'", kw)
		}
		v, err := ctx.FloatAsFloat64(args[npos+i])
		if err != nil {
			return err
		}
		vals[slot], set[slot] = v, true
	}
	p, err := ctx.AsStruct(self)
	if err != nil {
		return err
	}
	p.SetFloat64(offX, vals[0])
	p.SetFloat64(offY, vals[1])
	return nil
}

func pointRepr(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	x, y, err := coords(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	return ctx.UnicodeFromString(fmt.Sprintf("Point(%g, %g)", x, y))
}

func pointAdd(ctx abi.Context, self, other handle.Handle) (handle.Handle, error) {
	typ, err := ctx.Type(self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(typ)
	ok, err := ctx.TypeCheck(other, typ)
	if err != nil {
		return handle.Null, err
	}
	if !ok {
		name, _ := ctx.TypeName(other)
		return handle.Null, typeError(ctx, "unsupported operand type for +: 'Point' and '%s'", name)
	}
	x1, y1, err := coords(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	x2, y2, err := coords(ctx, other)
	if err != nil {
		return handle.Null, err
	}
	return newPoint(ctx, typ, x1+x2, y1+y2)
}

func pointCompare(ctx abi.Context, self, other handle.Handle, op abi.CompareOp) (handle.Handle, error) {
	if op != abi.EQ && op != abi.NE {
		return handle.Null, typeError(ctx, "points are not ordered")
	}
	typ, err := ctx.Type(self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(typ)
	ok, err := ctx.TypeCheck(other, typ)
	if err != nil {
		return handle.Null, err
	}
	equal := false
	if ok {
		x1, y1, err := coords(ctx, self)
		if err != nil {
			return handle.Null, err
		}
		x2, y2, err := coords(ctx, other)
		if err != nil {
			return handle.Null, err
		}
		equal = x1 == x2 && y1 == y2
	}
	return ctx.BoolFromBool(equal == (op == abi.EQ)), nil
}

func pointHash(ctx abi.Context, self handle.Handle) (int64, error) {
	x, y, err := coords(ctx, self)
	if err != nil {
		return 0, err
	}
	h := int64(math.Float64bits(x)*31 + math.Float64bits(y))
	if h == -1 {
		h = -2
	}
	return h, nil
}

func pointScale(ctx abi.Context, self, factor handle.Handle) (handle.Handle, error) {
	f, err := ctx.FloatAsFloat64(factor)
	if err != nil {
		return handle.Null, err
	}
	x, y, err := coords(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	typ, err := ctx.Type(self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(typ)
	return newPoint(ctx, typ, x*f, y*f)
}

func pointNorm(ctx abi.Context, self handle.Handle, _ any) (handle.Handle, error) {
	x, y, err := coords(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	return ctx.FloatFromFloat64(math.Hypot(x, y))
}

// Polygon

func vertices(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	p, err := ctx.AsStruct(self)
	if err != nil {
		return handle.Null, err
	}
	list, err := ctx.FieldLoad(self, p.Field(offVertices))
	if err != nil {
		return handle.Null, err
	}
	if list.IsNull() {
		return ctx.ListNew(nil)
	}
	return list, nil
}

// points returns the coordinates of every vertex.
func points(ctx abi.Context, self handle.Handle) ([][2]float64, error) {
	list, err := vertices(ctx, self)
	if err != nil {
		return nil, err
	}
	tr := abi.NewTracker(ctx, 0)
	defer tr.Close()
	if err := tr.Add(list); err != nil {
		return nil, err
	}
	n, err := ctx.Length(list)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, n)
	for i := range out {
		item, err := ctx.GetItemInt(list, i)
		if err != nil {
			return nil, err
		}
		if err := tr.Add(item); err != nil {
			return nil, err
		}
		if out[i][0], out[i][1], err = coords(ctx, item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func polygonInit(ctx abi.Context, self handle.Handle, args []handle.Handle, kwnames []string) error {
	if len(kwnames) > 0 {
		return typeError(ctx, "Polygon() takes no keyword arguments")
	}
	if len(args) > 1 {
		return typeError(ctx, "Polygon() takes at most 1 argument (%d given)", len(args))
	}
	list, err := ctx.ListNew(nil)
	if err != nil {
		return err
	}
	tr := abi.NewTracker(ctx, 0)
	defer tr.Close()
	if err := tr.Add(list); err != nil {
		return err
	}
	if len(args) == 1 {
		it, err := ctx.GetIter(args[0])
		if err != nil {
			return err
		}
		if err := tr.Add(it); err != nil {
			return err
		}
		for {
			item, err := ctx.IterNext(it)
			if err != nil {
				return err
			}
			if item.IsNull() {
				break
			}
			if err := tr.Add(item); err != nil {
				return err
			}
			if err := appendVertex(ctx, self, list, item); err != nil {
				return err
			}
		}
	}
	p, err := ctx.AsStruct(self)
	if err != nil {
		return err
	}
	return ctx.FieldStore(self, p.Field(offVertices), list)
}

func appendVertex(ctx abi.Context, self, list, item handle.Handle) error {
	ok, err := isPoint(ctx, self, item)
	if err != nil {
		return err
	}
	if !ok {
		name, _ := ctx.TypeName(item)
		return typeError(ctx, "polygon vertices must be points, not %s", name)
	}
	return ctx.ListAppend(list, item)
}

func polygonTraverse(p abi.Payload, visit abi.VisitFunc) error {
	return visit(p.Field(offVertices))
}

func polygonLen(ctx abi.Context, self handle.Handle) (int, error) {
	list, err := vertices(ctx, self)
	if err != nil {
		return 0, err
	}
	defer ctx.Close(list)
	return ctx.Length(list)
}

func polygonGetItem(ctx abi.Context, self, key handle.Handle) (handle.Handle, error) {
	list, err := vertices(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(list)
	return ctx.GetItem(list, key)
}

func polygonIter(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	list, err := vertices(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(list)
	return ctx.GetIter(list)
}

func polygonAppend(ctx abi.Context, self, item handle.Handle) (handle.Handle, error) {
	list, err := vertices(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(list)
	if err := appendVertex(ctx, self, list, item); err != nil {
		return handle.Null, err
	}
	p, err := ctx.AsStruct(self)
	if err != nil {
		return handle.Null, err
	}
	if err := ctx.FieldStore(self, p.Field(offVertices), list); err != nil {
		return handle.Null, err
	}
	return ctx.None(), nil
}

func polygonPerimeter(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	pts, err := points(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	var total float64
	for i := range pts {
		j := (i + 1) % len(pts)
		total += math.Hypot(pts[j][0]-pts[i][0], pts[j][1]-pts[i][1])
	}
	return ctx.FloatFromFloat64(total)
}

func polygonArea(ctx abi.Context, self handle.Handle, _ any) (handle.Handle, error) {
	pts, err := points(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	var twice float64
	for i := range pts {
		j := (i + 1) % len(pts)
		twice += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return ctx.FloatFromFloat64(math.Abs(twice) / 2)
}

func polygonBounds(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	pts, err := points(ctx, self)
	if err != nil {
		return handle.Null, err
	}
	if len(pts) == 0 {
		return handle.Null, ctx.ErrSetString(ctx.Builtin(abi.BuiltinValueError), "bounds of an empty polygon")
	}
	box := [4]float64{pts[0][0], pts[0][1], pts[0][0], pts[0][1]}
	for _, pt := range pts[1:] {
		box[0] = math.Min(box[0], pt[0])
		box[1] = math.Min(box[1], pt[1])
		box[2] = math.Max(box[2], pt[0])
		box[3] = math.Max(box[3], pt[1])
	}

	typ, err := ctx.GetAttr(self, "Bounds")
	if err != nil {
		return handle.Null, err
	}
	tr := abi.NewTracker(ctx, len(box)+1)
	defer tr.Close()
	if err := tr.Add(typ); err != nil {
		return handle.Null, err
	}
	b := abi.NewStructSequenceBuilder(ctx, typ, len(box))
	for i, v := range box {
		h, err := ctx.FloatFromFloat64(v)
		if err != nil {
			_ = b.Cancel()
			return handle.Null, err
		}
		if err := tr.Add(h); err != nil {
			_ = b.Cancel()
			return handle.Null, err
		}
		b.Set(i, h)
	}
	return b.Build()
}

// Module functions

func distance(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	if len(args) != 2 {
		return handle.Null, typeError(ctx, "distance() takes exactly 2 arguments (%d given)", len(args))
	}
	x1, y1, err := coords(ctx, args[0])
	if err != nil {
		return handle.Null, err
	}
	x2, y2, err := coords(ctx, args[1])
	if err != nil {
		return handle.Null, err
	}
	return ctx.FloatFromFloat64(math.Hypot(x2-x1, y2-y1))
}

func describe(ctx abi.Context, _ handle.Handle, args []handle.Handle) (handle.Handle, error) {
	if len(args) != 1 {
		return handle.Null, typeError(ctx, "describe() takes exactly 1 argument (%d given)", len(args))
	}
	name, err := ctx.TypeName(args[0])
	if err != nil {
		return handle.Null, err
	}
	repr, err := ctx.Repr(args[0])
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(repr)
	s, err := ctx.UnicodeAsString(repr)
	if err != nil {
		return handle.Null, err
	}
	return ctx.UnicodeFromString(name + ": " + s)
}
