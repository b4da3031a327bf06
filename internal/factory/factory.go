// Package factory creates types, struct sequence types and modules from
// their declarative descriptions.
package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/trampoline"
	"github.com/deepnoodle-ai/hbridge/object"
)

// tableEntrySize is the accounted size of one slot, method, member or
// getset table entry. One extra entry per table is the terminator.
const tableEntrySize = 32

// Factory builds types and modules on behalf of one bridge.
type Factory struct {
	b     bridge.Bridge
	slots SlotMap
	log   zerolog.Logger
}

// New returns a factory for b. A nil slot map selects DefaultSlotMap.
func New(b bridge.Bridge, slots SlotMap) *Factory {
	if slots == nil {
		slots = DefaultSlotMap()
	}
	return &Factory{
		b:     b,
		slots: slots,
		log:   b.Heap().Logger().With().Str("component", "factory").Logger(),
	}
}

// problems collects every configuration problem of one definition.
type problems struct {
	errs *multierror.Error
	code errz.Code
}

func (p *problems) add(code errz.Code, format string, args ...any) {
	if p.code == "" {
		p.code = code
	}
	p.errs = multierror.Append(p.errs, fmt.Errorf(format, args...))
}

func (p *problems) addErr(err error) {
	e := errz.From(err)
	if p.code == "" {
		p.code = e.Code
	}
	p.errs = multierror.Append(p.errs, errors.New(e.Message))
}

func (p *problems) err(what string) error {
	if p.errs == nil {
		return nil
	}
	p.errs.ErrorFormat = func(es []error) string {
		msgs := make([]string, len(es))
		for i, e := range es {
			msgs[i] = e.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return errz.ConfigurationErrorf("%s: %s", what, p.errs.Error()).WithCode(p.code).WithCause(p.errs)
}

func splitName(full string) (module, name string) {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

func align8(n int) int {
	return (n + 7) &^ 7
}

func (f *Factory) reject(name string, err error) error {
	f.log.Debug().Str("type", name).Err(err).Msg("type rejected")
	return err
}

// FromSpec validates spec and creates the type it describes.
func (f *Factory) FromSpec(spec *abi.TypeSpec, params ...abi.TypeSpecParam) (*object.Type, error) {
	if spec == nil {
		return nil, errz.ConfigurationErrorf("type spec is nil")
	}
	if spec.Name == "" {
		return nil, f.reject("", errz.ConfigurationErrorf("type spec has no name"))
	}
	h := f.b.Heap()
	module, name := splitName(spec.Name)
	legacy := spec.Shape == abi.ShapeLegacy

	var p problems
	bases, meta := f.resolveParams(params, &p)
	checkLayout(spec, &p)
	if err := p.err(spec.Name); err != nil {
		return nil, f.reject(spec.Name, err)
	}
	if len(bases) == 0 {
		bases = []*object.Type{object.ObjectType}
	}
	if err := checkBases(spec.Name, bases); err != nil {
		return nil, f.reject(spec.Name, err)
	}

	l := object.Layout{
		Name:   name,
		Doc:    spec.Doc,
		Module: module,
		Meta:   meta,
		Bases:  bases,
		Legacy: legacy,
	}
	if spec.Flags&abi.FlagBaseType != 0 {
		l.Flags |= object.FlagBaseType
	}
	computeSizes(spec, bases[0], &l, &p)
	if err := p.err(spec.Name); err != nil {
		return nil, f.reject(spec.Name, err)
	}

	tableBytes := tableSize(spec)
	if err := h.Reserve(tableBytes); err != nil {
		return nil, f.reject(spec.Name, err)
	}
	f.partition(spec, &l, &p)
	requireTraverse(spec, bases, &l, &p)
	if err := p.err(spec.Name); err != nil {
		h.Release(tableBytes)
		return nil, f.reject(spec.Name, err)
	}

	t, err := h.NewType(l)
	if err != nil {
		h.Release(tableBytes)
		return nil, f.reject(spec.Name, err)
	}
	if err := postValidate(t); err != nil {
		h.DiscardType(t)
		h.Release(tableBytes)
		return nil, f.reject(spec.Name, err)
	}
	h.AdoptTables(t, tableBytes)
	return t, nil
}

// resolveParams validates the inheritance parameters and returns the bases
// in declaration order and the metaclass, if any.
func (f *Factory) resolveParams(params []abi.TypeSpecParam, p *problems) ([]*object.Type, *object.Type) {
	var (
		single []*object.Type
		tuple  []*object.Type
		meta   *object.Type
		nTuple int
		nMeta  int
	)
	for i, param := range params {
		obj, err := f.b.Borrow(param.Object)
		if err != nil {
			p.add(errz.H2002, "parameter %d: %s", i, errz.From(err).Message)
			continue
		}
		switch param.Kind {
		case abi.ParamBase:
			t, ok := obj.(*object.Type)
			if !ok {
				p.add(errz.H2002, "parameter %d: base must be a type, not %s", i, object.TypeName(obj))
				continue
			}
			single = append(single, t)
		case abi.ParamBasesTuple:
			nTuple++
			tup, ok := obj.(*object.Tuple)
			if !ok {
				p.add(errz.H2002, "parameter %d: bases must be a tuple, not %s", i, object.TypeName(obj))
				continue
			}
			for j, item := range tup.Items() {
				t, ok := item.(*object.Type)
				if !ok {
					p.add(errz.H2002, "parameter %d: bases item %d must be a type, not %s", i, j, object.TypeName(item))
					continue
				}
				tuple = append(tuple, t)
			}
		case abi.ParamMetaclass:
			nMeta++
			t, ok := obj.(*object.Type)
			if !ok || !t.IsSubtype(object.TypeType) {
				p.add(errz.H2002, "parameter %d: metaclass must be a subtype of type", i)
				continue
			}
			meta = t
		default:
			p.add(errz.H2002, "parameter %d: unknown parameter kind %s", i, param.Kind)
		}
	}
	if nTuple > 1 {
		p.add(errz.H2002, "bases tuple given %d times", nTuple)
	}
	if nTuple > 0 && len(single) > 0 {
		p.add(errz.H2002, "single bases cannot be combined with a bases tuple")
	}
	if nMeta > 1 {
		p.add(errz.H2002, "metaclass given %d times", nMeta)
	}
	if nTuple > 0 {
		return tuple, meta
	}
	return single, meta
}

// checkLayout reports conflicting layout requests and duplicate
// definitions.
func checkLayout(spec *abi.TypeSpec, p *problems) {
	legacy := spec.Shape == abi.ShapeLegacy
	switch spec.Shape {
	case abi.ShapeObject, abi.ShapeLegacy:
	default:
		p.add(errz.H2001, "unknown shape %d", int(spec.Shape))
	}
	if spec.Flags&^(abi.FlagBaseType|abi.FlagHaveGC) != 0 {
		p.add(errz.H2001, "unknown flags %#x", uint32(spec.Flags&^(abi.FlagBaseType|abi.FlagHaveGC)))
	}
	if spec.BasicSize < 0 || spec.ItemSize < 0 {
		p.add(errz.H2001, "negative size")
	}
	if spec.HasLegacy() && !legacy {
		p.add(errz.H2003, "legacy definitions require the legacy shape")
	}
	if legacy && spec.BasicSize > 0 && spec.BasicSize < object.HeaderSize {
		p.add(errz.H2003, "legacy struct of %d bytes cannot hold the %d byte header", spec.BasicSize, object.HeaderSize)
	}

	slots := map[abi.SlotID]bool{}
	names := map[string]bool{}
	addName := func(name string) {
		if name == "" {
			p.add(errz.H2001, "definition without a name")
			return
		}
		if names[name] {
			p.add(errz.H2006, "duplicate definition of %q", name)
		}
		names[name] = true
	}
	for _, d := range spec.Defines {
		switch d := d.(type) {
		case abi.SlotDef:
			if slots[d.Slot] {
				p.add(errz.H2006, "duplicate definition of slot %s", d.Slot)
			}
			slots[d.Slot] = true
		case abi.MethodDef:
			addName(d.Name)
		case abi.MemberDef:
			addName(d.Name)
		case abi.GetSetDef:
			addName(d.Name)
		case nil:
			p.add(errz.H2001, "nil definition")
		default:
			p.add(errz.H2001, "unsupported definition %T", d)
		}
	}
	for _, s := range spec.LegacySlots {
		switch {
		case s.Slot == abi.SlotDealloc && slots[abi.SlotDestroy]:
			p.add(errz.H2003, "destroy slot conflicts with legacy dealloc")
		case s.Slot == abi.SlotTraverse && slots[abi.SlotTraverse]:
			p.add(errz.H2003, "traverse slot conflicts with legacy traverse")
		case slots[s.Slot]:
			p.add(errz.H2006, "duplicate definition of slot %s", s.Slot)
		}
		slots[s.Slot] = true
	}
	for _, m := range spec.LegacyMethods {
		addName(m.Name)
	}
	for _, m := range spec.LegacyMembers {
		addName(m.Name)
	}
	for _, g := range spec.LegacyGetSets {
		addName(g.Name)
	}
}

// checkBases rejects bases that cannot be subclassed and combinations of
// bases whose instance layouts conflict.
func checkBases(name string, bases []*object.Type) error {
	seen := map[*object.Type]bool{}
	for _, b := range bases {
		if seen[b] {
			return errz.TypeErrorf("%s: duplicate base type '%s'", name, b.Name()).WithCode(errz.H3003)
		}
		seen[b] = true
		if !b.HasFlag(object.FlagBaseType) {
			return errz.TypeErrorf("%s: type '%s' is not an acceptable base type", name, b.Name()).WithCode(errz.H3003)
		}
	}
	for i, a := range bases {
		for _, b := range bases[i+1:] {
			if a.BasicSize() <= object.HeaderSize || b.BasicSize() <= object.HeaderSize {
				continue
			}
			if !a.IsSubtype(b) && !b.IsSubtype(a) {
				return errz.TypeErrorf("%s: multiple bases have instance layout conflict ('%s' and '%s')",
					name, a.Name(), b.Name()).WithCode(errz.H3002)
			}
		}
	}
	return nil
}

// computeSizes sets the instance size and the payload offset. Non-legacy
// types place their payload after the primary base's storage; a type
// without payload of its own shares the base's offset.
func computeSizes(spec *abi.TypeSpec, base *object.Type, l *object.Layout, p *problems) {
	switch {
	case l.Legacy:
		l.PayloadOffset = 0
		l.BasicSize = spec.BasicSize
		if l.BasicSize == 0 {
			l.BasicSize = base.BasicSize()
		}
		if l.BasicSize < base.BasicSize() {
			p.add(errz.H2003, "legacy struct of %d bytes is smaller than its base '%s' (%d bytes)",
				l.BasicSize, base.Name(), base.BasicSize())
		}
	case spec.BasicSize == 0:
		l.PayloadOffset = base.PayloadOffset()
		l.BasicSize = base.BasicSize()
	default:
		l.PayloadOffset = align8(base.BasicSize())
		l.BasicSize = l.PayloadOffset + spec.BasicSize
	}
	l.ItemSize = spec.ItemSize
	if l.ItemSize == 0 {
		l.ItemSize = base.ItemSize()
	}
}

func tableSize(spec *abi.TypeSpec) int64 {
	var slots, methods, members, getsets int
	for _, d := range spec.Defines {
		switch d.(type) {
		case abi.SlotDef:
			slots++
		case abi.MethodDef:
			methods++
		case abi.MemberDef:
			members++
		case abi.GetSetDef:
			getsets++
		}
	}
	slots += len(spec.LegacySlots)
	methods += len(spec.LegacyMethods)
	members += len(spec.LegacyMembers)
	getsets += len(spec.LegacyGetSets)
	return int64(slots+methods+members+getsets+4) * tableEntrySize
}

// partition translates the definitions into the layout: slots through the
// slot map, then methods, members and getsets with the non-legacy ones
// first.
func (f *Factory) partition(spec *abi.TypeSpec, l *object.Layout, p *problems) {
	qual := spec.Name
	base := object.HeaderSize
	if l.Legacy {
		base = 0
	}
	target := &Target{Bridge: f.b, Name: qual, Layout: l, Base: base}
	var members []abi.MemberDef
	var getsets []abi.GetSetDef
	for _, d := range spec.Defines {
		switch d := d.(type) {
		case abi.SlotDef:
			f.installSlot(target, d.Slot, d.Impl, false, p)
		case abi.MethodDef:
			fn, err := trampoline.Method(f.b, qual+"."+d.Name, d.Sig, d.Impl)
			if err != nil {
				p.addErr(err)
				continue
			}
			l.Methods = append(l.Methods, &object.MethodDescr{Name: d.Name, Doc: d.Doc, Fn: fn})
		case abi.MemberDef:
			members = append(members, d)
		case abi.GetSetDef:
			getsets = append(getsets, d)
		}
	}
	for _, s := range spec.LegacySlots {
		f.installSlot(target, s.Slot, s.Impl, true, p)
	}
	for _, m := range spec.LegacyMethods {
		fn, err := trampoline.Legacy(f.b, qual+"."+m.Name, m.Impl)
		if err != nil {
			p.addErr(err)
			continue
		}
		l.Methods = append(l.Methods, &object.MethodDescr{Name: m.Name, Doc: m.Doc, Fn: fn, Legacy: true})
	}
	members = append(members, spec.LegacyMembers...)
	for _, m := range members {
		if descr, ok := memberDescr(m, l, p); ok {
			l.Members = append(l.Members, descr)
		}
	}
	getsets = append(getsets, spec.LegacyGetSets...)
	for _, g := range getsets {
		if g.Getter == nil {
			p.add(errz.H2001, "getset %q has no getter", g.Name)
			continue
		}
		descr := &object.GetSetDescr{
			Name: g.Name,
			Doc:  g.Doc,
			Get:  trampoline.Getter(f.b, qual+"."+g.Name, g.Getter, g.Closure),
		}
		if g.Setter != nil {
			descr.Set = trampoline.Setter(f.b, qual+"."+g.Name, g.Setter, g.Closure)
		}
		l.GetSets = append(l.GetSets, descr)
	}
}

func (f *Factory) installSlot(t *Target, slot abi.SlotID, impl any, legacy bool, p *problems) {
	switch {
	case !slot.Valid():
		p.add(errz.H2001, "unknown slot %s", slot)
		return
	case slot == abi.SlotModExec:
		p.add(errz.H2001, "slot %s is only valid in a module", slot)
		return
	case slot == abi.SlotDealloc && !legacy:
		p.add(errz.H2001, "slot %s is only valid as a legacy slot", slot)
		return
	}
	inst, ok := f.slots[slot]
	if !ok {
		p.add(errz.H2001, "slot %s is not supported by this backend", slot)
		return
	}
	if err := inst(t, slot, impl); err != nil {
		p.addErr(err)
	}
}

// memberDescr converts a member definition, rebasing its offset onto the
// type's payload.
func memberDescr(m abi.MemberDef, l *object.Layout, p *problems) (*object.MemberDescr, bool) {
	if m.Kind < abi.MemberShort || m.Kind > abi.MemberObject {
		p.add(errz.H2001, "member %q has unknown kind %s", m.Name, m.Kind)
		return nil, false
	}
	kind := object.MemberKind(m.Kind)
	if m.Offset < 0 {
		p.add(errz.H2003, "member %q has negative offset %d", m.Name, m.Offset)
		return nil, false
	}
	off := l.PayloadOffset + m.Offset
	if off < object.HeaderSize {
		p.add(errz.H2003, "member %q at offset %d overlaps the object header", m.Name, off)
		return nil, false
	}
	if off+kind.Size() > l.BasicSize {
		p.add(errz.H2003, "member %q (%s at offset %d) lies outside the %d byte instance", m.Name, kind, off, l.BasicSize)
		return nil, false
	}
	if kind == object.MemberObject && off%8 != 0 {
		p.add(errz.H2003, "object member %q at offset %d is not 8-byte aligned", m.Name, off)
		return nil, false
	}
	return &object.MemberDescr{
		Name:     m.Name,
		Doc:      m.Doc,
		Kind:     kind,
		Offset:   off,
		ReadOnly: m.ReadOnly,
	}, true
}

// requireTraverse enforces that collected types can report their
// references. Types deriving from a collected type are collected too.
func requireTraverse(spec *abi.TypeSpec, bases []*object.Type, l *object.Layout, p *problems) {
	inherited := false
	gc := spec.Flags&abi.FlagHaveGC != 0
	for _, b := range bases {
		if len(b.TraverseChain()) > 0 {
			inherited = true
		}
		if b.HasFlag(object.FlagHaveGC) {
			gc = true
		}
	}
	if spec.Flags&abi.FlagHaveGC != 0 && l.Slots.Traverse == nil && !inherited {
		p.add(errz.H2004, "FlagHaveGC requires a traverse slot")
	}
	if gc {
		l.Flags |= object.FlagHaveGC
	}
}

// postValidate checks the produced type against its immediate bases: a
// legacy type cannot derive from a non-legacy user type or the other way
// round.
func postValidate(t *object.Type) error {
	for _, b := range t.Bases() {
		if !b.HasFlag(object.FlagHeapType) {
			continue
		}
		if b.IsLegacy() != t.IsLegacy() {
			return errz.TypeErrorf("%s: %s layout cannot derive from %s layout of '%s'",
				t.QualifiedName(), layoutName(t), layoutName(b), b.Name()).WithCode(errz.H3002)
		}
	}
	return nil
}

func layoutName(t *object.Type) string {
	if t.IsLegacy() {
		return "legacy"
	}
	return "object"
}
