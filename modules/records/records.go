// Package records is an extension module whose types are declared in YAML
// (see package specfile). Every record type gets a constructor taking the
// members positionally or by keyword, a repr, equality and the methods
// astuple and fields.
package records

import (
	_ "embed"
	"fmt"
	"math"
	"strings"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/specfile"
)

// Name is the name of the builtin records module.
const Name = "records"

//go:embed records.yaml
var builtinSpec []byte

// Builtin returns the parsed spec of the builtin records module.
func Builtin() *specfile.File {
	f, err := specfile.Parse(builtinSpec)
	if err != nil {
		panic(err)
	}
	return f
}

// Init creates the builtin records module.
func Init(ctx abi.Context) (handle.Handle, error) {
	return FromFile(Builtin())(ctx)
}

// Load parses the spec file at path and returns its module name and init
// function.
func Load(path string) (string, abi.InitFunc, error) {
	f, err := specfile.Load(path)
	if err != nil {
		return "", nil, err
	}
	return f.Module, FromFile(f), nil
}

// FromFile returns an init function creating the module described by f.
func FromFile(f *specfile.File) abi.InitFunc {
	return func(ctx abi.Context) (handle.Handle, error) {
		return ctx.ModuleCreate(&abi.ModuleDef{
			Name: f.Module,
			Doc:  f.Doc,
			Defines: []abi.Def{
				abi.SlotDef{Slot: abi.SlotModExec, Impl: abi.ModExecFunc(func(ctx abi.Context, mod handle.Handle) error {
					return exec(ctx, mod, f)
				})},
			},
		})
	}
}

// memberInfo is the struct sequence returned by fields().
func memberInfo(module string) *abi.StructSequenceDesc {
	return &abi.StructSequenceDesc{
		Name: module + ".MemberInfo",
		Doc:  "Name, kind, offset and writability of a record member.",
		Fields: []abi.StructSequenceField{
			{Name: "name"}, {Name: "kind"}, {Name: "offset"}, {Name: "readonly"},
		},
	}
}

func exec(ctx abi.Context, mod handle.Handle, f *specfile.File) error {
	tr := abi.NewTracker(ctx, len(f.Types)+len(f.StructSequences)+1)
	defer tr.Close()

	info, err := ctx.StructSequenceNewType(memberInfo(f.Module))
	if err != nil {
		return err
	}
	if err := tr.Add(info); err != nil {
		return err
	}
	if err := ctx.SetAttr(mod, "MemberInfo", info); err != nil {
		return err
	}
	for i := range f.Types {
		r := &record{def: &f.Types[i]}
		typ, err := ctx.TypeFromSpec(r.spec())
		if err != nil {
			return err
		}
		if err := tr.Add(typ); err != nil {
			return err
		}
		if err := ctx.SetAttr(typ, "MemberInfo", info); err != nil {
			return err
		}
		if err := ctx.SetAttr(mod, r.def.ShortName(), typ); err != nil {
			return err
		}
	}
	for i := range f.StructSequences {
		s := &f.StructSequences[i]
		typ, err := ctx.StructSequenceNewType(s.Desc())
		if err != nil {
			return err
		}
		if err := tr.Add(typ); err != nil {
			return err
		}
		name := s.Name[strings.LastIndex(s.Name, ".")+1:]
		if err := ctx.SetAttr(mod, name, typ); err != nil {
			return err
		}
	}
	return nil
}

// record holds the slot and method implementations of one record type.
type record struct {
	def *specfile.Type
}

func (r *record) spec() *abi.TypeSpec {
	return r.def.Spec(
		abi.SlotDef{Slot: abi.SlotInit, Impl: abi.InitProc(r.init)},
		abi.SlotDef{Slot: abi.SlotRepr, Impl: abi.UnaryFunc(r.repr)},
		abi.SlotDef{Slot: abi.SlotRichCompare, Impl: abi.RichCompareFunc(r.compare)},
		abi.MethodDef{Name: "astuple", Doc: "Member values as a tuple", Sig: abi.SigNoArgs, Impl: abi.NoArgsFunc(r.astuple)},
		abi.MethodDef{Name: "fields", Doc: "Descriptions of the members", Sig: abi.SigNoArgs, Impl: abi.NoArgsFunc(r.fields)},
	)
}

func typeError(ctx abi.Context, format string, args ...any) error {
	return ctx.ErrSetString(ctx.Builtin(abi.BuiltinTypeError), fmt.Sprintf(format, args...))
}

func (r *record) payload(ctx abi.Context, self handle.Handle) (abi.Payload, error) {
	if r.def.Legacy {
		return ctx.AsStructLegacy(self)
	}
	return ctx.AsStruct(self)
}

func (r *record) init(ctx abi.Context, self handle.Handle, args []handle.Handle, kwnames []string) error {
	name := r.def.ShortName()
	npos := len(args) - len(kwnames)
	if npos > len(r.def.Members) {
		return typeError(ctx, "%s() takes at most %d positional arguments (%d given)", name, len(r.def.Members), npos)
	}
	values := make([]handle.Handle, len(r.def.Members))
	copy(values, args[:npos])
	for i, kw := range kwnames {
		idx := -1
		for j, m := range r.def.Members {
			if m.Name == kw {
				idx = j
				break
			}
		}
		if idx < 0 {
			return typeError(ctx, "%s() got an unexpected keyword argument '%s'", name, kw)
		}
		if !values[idx].IsNull() {
			return typeError(ctx, "%s() got multiple values for argument '%s'", name, kw)
		}
		values[idx] = args[npos+i]
	}
	p, err := r.payload(ctx, self)
	if err != nil {
		return err
	}
	for i, v := range values {
		if v.IsNull() {
			continue
		}
		if err := r.store(ctx, self, p, &r.def.Members[i], v); err != nil {
			return err
		}
	}
	return nil
}

// store writes v into member m, bypassing the read-only flag.
func (r *record) store(ctx abi.Context, self handle.Handle, p abi.Payload, m *specfile.Member, v handle.Handle) error {
	off := *m.Offset
	valueError := func(format string, args ...any) error {
		msg := fmt.Sprintf("%s.%s: ", r.def.ShortName(), m.Name) + fmt.Sprintf(format, args...)
		return ctx.ErrSetString(ctx.Builtin(abi.BuiltinValueError), msg)
	}
	switch m.MemberKind() {
	case abi.MemberShort, abi.MemberInt, abi.MemberLong:
		i, err := ctx.LongAsInt64(v)
		if err != nil {
			return err
		}
		switch m.MemberKind() {
		case abi.MemberShort:
			if i < math.MinInt16 || i > math.MaxInt16 {
				return valueError("%d does not fit in a short", i)
			}
			p.SetInt16(off, int16(i))
		case abi.MemberInt:
			if i < math.MinInt32 || i > math.MaxInt32 {
				return valueError("%d does not fit in an int", i)
			}
			p.SetInt32(off, int32(i))
		default:
			p.SetInt64(off, i)
		}
	case abi.MemberFloat, abi.MemberDouble:
		f, err := ctx.FloatAsFloat64(v)
		if err != nil {
			return err
		}
		if m.MemberKind() == abi.MemberFloat {
			p.SetFloat32(off, float32(f))
		} else {
			p.SetFloat64(off, f)
		}
	case abi.MemberBool:
		b, err := ctx.IsTrue(v)
		if err != nil {
			return err
		}
		var u uint8
		if b {
			u = 1
		}
		p.SetUint8(off, u)
	case abi.MemberObject:
		return ctx.FieldStore(self, p.Field(off), v)
	}
	return nil
}

// values returns a handle for every member, tracked by tr.
func (r *record) values(ctx abi.Context, tr *abi.Tracker, self handle.Handle) ([]handle.Handle, error) {
	out := make([]handle.Handle, len(r.def.Members))
	for i, m := range r.def.Members {
		v, err := ctx.GetAttr(self, m.Name)
		if err != nil {
			return nil, err
		}
		if err := tr.Add(v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *record) repr(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	tr := abi.NewTracker(ctx, len(r.def.Members))
	defer tr.Close()
	values, err := r.values(ctx, tr, self)
	if err != nil {
		return handle.Null, err
	}
	var sb strings.Builder
	sb.WriteString(r.def.ShortName())
	sb.WriteByte('(')
	for i, v := range values {
		repr, err := ctx.Repr(v)
		if err != nil {
			return handle.Null, err
		}
		if err := tr.Add(repr); err != nil {
			return handle.Null, err
		}
		s, err := ctx.UnicodeAsString(repr)
		if err != nil {
			return handle.Null, err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.def.Members[i].Name)
		sb.WriteByte('=')
		sb.WriteString(s)
	}
	sb.WriteByte(')')
	return ctx.UnicodeFromString(sb.String())
}

func (r *record) compare(ctx abi.Context, self, other handle.Handle, op abi.CompareOp) (handle.Handle, error) {
	if op != abi.EQ && op != abi.NE {
		return handle.Null, typeError(ctx, "%s objects are not ordered", r.def.ShortName())
	}
	typ, err := ctx.Type(self)
	if err != nil {
		return handle.Null, err
	}
	defer ctx.Close(typ)
	same, err := ctx.TypeCheck(other, typ)
	if err != nil {
		return handle.Null, err
	}
	equal := same
	if same {
		tr := abi.NewTracker(ctx, 2*len(r.def.Members))
		defer tr.Close()
		a, err := r.values(ctx, tr, self)
		if err != nil {
			return handle.Null, err
		}
		b, err := r.values(ctx, tr, other)
		if err != nil {
			return handle.Null, err
		}
		for i := range a {
			eq, err := ctx.RichCompareBool(a[i], b[i], abi.EQ)
			if err != nil {
				return handle.Null, err
			}
			if !eq {
				equal = false
				break
			}
		}
	}
	return ctx.BoolFromBool(equal == (op == abi.EQ)), nil
}

func (r *record) astuple(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	tr := abi.NewTracker(ctx, len(r.def.Members))
	defer tr.Close()
	values, err := r.values(ctx, tr, self)
	if err != nil {
		return handle.Null, err
	}
	b := abi.NewTupleBuilder(ctx, len(values))
	for i, v := range values {
		b.Set(i, v)
	}
	return b.Build()
}

func (r *record) fields(ctx abi.Context, self handle.Handle) (handle.Handle, error) {
	tr := abi.NewTracker(ctx, 0)
	defer tr.Close()
	info, err := ctx.GetAttr(self, "MemberInfo")
	if err != nil {
		return handle.Null, err
	}
	if err := tr.Add(info); err != nil {
		return handle.Null, err
	}
	list := abi.NewListBuilder(ctx, len(r.def.Members))
	for i, m := range r.def.Members {
		item, err := r.describe(ctx, tr, info, m)
		if err != nil {
			_ = list.Cancel()
			return handle.Null, err
		}
		list.Set(i, item)
	}
	return list.Build()
}

func (r *record) describe(ctx abi.Context, tr *abi.Tracker, info handle.Handle, m specfile.Member) (handle.Handle, error) {
	name, err := ctx.UnicodeFromString(m.Name)
	if err != nil {
		return handle.Null, err
	}
	if err := tr.Add(name); err != nil {
		return handle.Null, err
	}
	kind, err := ctx.UnicodeFromString(m.MemberKind().String())
	if err != nil {
		return handle.Null, err
	}
	if err := tr.Add(kind); err != nil {
		return handle.Null, err
	}
	off, err := ctx.LongFromInt64(int64(*m.Offset))
	if err != nil {
		return handle.Null, err
	}
	if err := tr.Add(off); err != nil {
		return handle.Null, err
	}
	b := abi.NewStructSequenceBuilder(ctx, info, 4)
	b.Set(0, name)
	b.Set(1, kind)
	b.Set(2, off)
	b.Set(3, ctx.BoolFromBool(m.ReadOnly))
	item, err := b.Build()
	if err != nil {
		return handle.Null, err
	}
	if err := tr.Add(item); err != nil {
		return handle.Null, err
	}
	return item, nil
}
