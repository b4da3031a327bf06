package object

import (
	"fmt"
)

// TypeFlags are the feature flags of a type.
type TypeFlags uint32

const (
	// FlagBaseType allows the type to be used as a base.
	FlagBaseType TypeFlags = 1 << iota
	// FlagHaveGC makes instances participate in cycle collection.
	FlagHaveGC
	// FlagBuiltin marks types created by the runtime itself.
	FlagBuiltin
	// FlagHeapType marks types created at run time from a layout.
	FlagHeapType
)

// Native call conventions used by the backing runtime. Arguments are
// borrowed for the duration of the call; results are new references.
type (
	NativeFunc        func(self Object, args []Object, kwnames []string) (Object, error)
	NewFunc           func(typ *Type, args []Object, kwnames []string) (Object, error)
	InitFunc          func(self Object, args []Object, kwnames []string) error
	UnaryFunc         func(self Object) (Object, error)
	BinaryFunc        func(self, other Object) (Object, error)
	RichCompareFunc   func(self, other Object, op CompareOp) (Object, error)
	LenFunc           func(self Object) (int, error)
	HashFunc          func(self Object) (int64, error)
	SetItemFunc       func(self, key, value Object) error
	GetBufferFunc     func(self Object) ([]byte, error)
	ReleaseBufferFunc func(self Object)
	GetterFunc        func(self Object) (Object, error)
	SetterFunc        func(self Object, value Object) error
	FinalizeFunc      func(self Object)
	DestroyFunc       func(inst *Instance)
	TraverseFunc      func(inst *Instance, visit VisitFunc) error
)

// VisitFunc receives the storage offset of one reference slot of an instance.
type VisitFunc func(off int) error

// Slots holds the native special methods of a type. A nil entry means the
// type does not implement that protocol.
type Slots struct {
	New           NewFunc
	Init          InitFunc
	Call          NativeFunc
	Repr          UnaryFunc
	Str           UnaryFunc
	Iter          UnaryFunc
	IterNext      UnaryFunc
	Hash          HashFunc
	RichCompare   RichCompareFunc
	Len           LenFunc
	GetItem       BinaryFunc
	SetItem       SetItemFunc
	Add           BinaryFunc
	Sub           BinaryFunc
	Mul           BinaryFunc
	GetBuffer     GetBufferFunc
	ReleaseBuffer ReleaseBufferFunc
	Traverse      TraverseFunc
	Finalize      FinalizeFunc
	// Dealloc is the legacy deallocation hook. It runs as part of the
	// destroy chain, never as a separately callable slot.
	Dealloc DestroyFunc
}

// inherit fills every unset protocol slot of s from base. Lifecycle hooks
// are not inherited: they are chained instead.
func (s *Slots) inherit(base *Slots) {
	if s.New == nil {
		s.New = base.New
	}
	if s.Init == nil {
		s.Init = base.Init
	}
	if s.Call == nil {
		s.Call = base.Call
	}
	if s.Repr == nil {
		s.Repr = base.Repr
	}
	if s.Str == nil {
		s.Str = base.Str
	}
	if s.Iter == nil {
		s.Iter = base.Iter
	}
	if s.IterNext == nil {
		s.IterNext = base.IterNext
	}
	if s.Hash == nil {
		s.Hash = base.Hash
	}
	if s.RichCompare == nil {
		s.RichCompare = base.RichCompare
	}
	if s.Len == nil {
		s.Len = base.Len
	}
	if s.GetItem == nil {
		s.GetItem = base.GetItem
	}
	if s.SetItem == nil {
		s.SetItem = base.SetItem
	}
	if s.Add == nil {
		s.Add = base.Add
	}
	if s.Sub == nil {
		s.Sub = base.Sub
	}
	if s.Mul == nil {
		s.Mul = base.Mul
	}
	if s.GetBuffer == nil {
		s.GetBuffer = base.GetBuffer
		s.ReleaseBuffer = base.ReleaseBuffer
	}
}

// MemberKind is the storage kind of a member.
type MemberKind int

const (
	MemberShort MemberKind = iota
	MemberInt
	MemberLong
	MemberFloat
	MemberDouble
	MemberBool
	MemberObject
)

// Size returns the number of payload bytes the member occupies.
func (k MemberKind) Size() int {
	switch k {
	case MemberShort:
		return 2
	case MemberInt, MemberFloat:
		return 4
	case MemberBool:
		return 1
	default:
		return 8
	}
}

func (k MemberKind) String() string {
	switch k {
	case MemberShort:
		return "short"
	case MemberInt:
		return "int"
	case MemberLong:
		return "long"
	case MemberFloat:
		return "float"
	case MemberDouble:
		return "double"
	case MemberBool:
		return "bool"
	case MemberObject:
		return "object"
	default:
		return fmt.Sprintf("MemberKind(%d)", int(k))
	}
}

// MemberDescr describes a fixed-offset field of instance storage. Offset is
// absolute within the instance storage.
type MemberDescr struct {
	Name     string
	Doc      string
	Kind     MemberKind
	Offset   int
	ReadOnly bool
}

// MethodDescr describes a method callable on instances of a type.
type MethodDescr struct {
	Name   string
	Doc    string
	Fn     NativeFunc
	Legacy bool
}

// GetSetDescr describes a computed attribute.
type GetSetDescr struct {
	Name string
	Doc  string
	Get  GetterFunc
	Set  SetterFunc
}

// Layout is the assembled description from which a type is created.
type Layout struct {
	Name          string
	Doc           string
	Module        string
	Meta          *Type
	Bases         []*Type
	Flags         TypeFlags
	Legacy        bool
	BasicSize     int
	ItemSize      int
	PayloadOffset int
	Slots         Slots
	// Destroy is the type's own payload destructor.
	Destroy DestroyFunc
	Methods []*MethodDescr
	Members []*MemberDescr
	GetSets []*GetSetDescr
	Attrs   map[string]Object
	// Fields names the items of a struct sequence type.
	Fields []string
}

// Type is a type object: name, ancestry, instance layout and behavior.
type Type struct {
	Header
	meta          *Type
	name          string
	doc           string
	module        string
	bases         []*Type
	mro           []*Type
	flags         TypeFlags
	legacy        bool
	basicSize     int
	itemSize      int
	payloadOffset int
	own           Slots
	slots         Slots
	destroy       DestroyFunc
	methods       map[string]*MethodDescr
	members       map[string]*MemberDescr
	getsets       map[string]*GetSetDescr
	attrs         map[string]Object
	order         []string
	fields        []string

	destroyChain  []DestroyFunc
	traverseChain []TraverseFunc
	finalizeChain []FinalizeFunc
	memberChain   []*MemberDescr
}

// NewType builds a type from l. The C3 linearization of the bases is
// computed here, together with the inherited slots and the ancestor hook
// chains, so that no lookup has to walk the ancestry later.
func NewType(l Layout) (*Type, error) {
	if l.Name == "" {
		return nil, fmt.Errorf("type name must not be empty")
	}
	bases := l.Bases
	if len(bases) == 0 && ObjectType != nil {
		bases = []*Type{ObjectType}
	}
	meta := l.Meta
	if meta == nil {
		meta = TypeType
	}
	t := &Type{
		Header:        immortal(),
		meta:          meta,
		name:          l.Name,
		doc:           l.Doc,
		module:        l.Module,
		bases:         append([]*Type(nil), bases...),
		flags:         l.Flags,
		legacy:        l.Legacy,
		basicSize:     l.BasicSize,
		itemSize:      l.ItemSize,
		payloadOffset: l.PayloadOffset,
		own:           l.Slots,
		destroy:       l.Destroy,
		methods:       map[string]*MethodDescr{},
		members:       map[string]*MemberDescr{},
		getsets:       map[string]*GetSetDescr{},
		attrs:         map[string]Object{},
		fields:        append([]string(nil), l.Fields...),
	}
	for _, m := range l.Methods {
		t.methods[m.Name] = m
		t.order = append(t.order, m.Name)
	}
	for _, m := range l.Members {
		t.members[m.Name] = m
		t.order = append(t.order, m.Name)
	}
	for _, g := range l.GetSets {
		t.getsets[g.Name] = g
		t.order = append(t.order, g.Name)
	}
	for k, v := range l.Attrs {
		t.attrs[k] = v
	}
	mro, err := linearize(t)
	if err != nil {
		return nil, err
	}
	t.mro = mro
	t.finish()
	return t, nil
}

// finish resolves inherited slots and precomputes the ancestor chains.
func (t *Type) finish() {
	t.slots = t.own
	for _, anc := range t.mro[1:] {
		t.slots.inherit(&anc.own)
		if t.fields == nil && anc.fields != nil {
			t.fields = anc.fields
		}
	}
	t.destroyChain = nil
	t.traverseChain = nil
	t.finalizeChain = nil
	t.memberChain = nil
	for _, anc := range t.mro {
		if anc.destroy != nil {
			t.destroyChain = append(t.destroyChain, anc.destroy)
		}
		if anc.own.Dealloc != nil {
			t.destroyChain = append(t.destroyChain, anc.own.Dealloc)
		}
		if anc.own.Traverse != nil {
			t.traverseChain = append(t.traverseChain, anc.own.Traverse)
		}
		if anc.own.Finalize != nil {
			t.finalizeChain = append(t.finalizeChain, anc.own.Finalize)
		}
		for _, name := range anc.order {
			if m, ok := anc.members[name]; ok {
				t.memberChain = append(t.memberChain, m)
			}
		}
	}
}

func (t *Type) Type() *Type {
	return t.meta
}

func (t *Type) Name() string { return t.name }

func (t *Type) Doc() string { return t.doc }

func (t *Type) Module() string { return t.module }

// QualifiedName returns module.name for types that belong to a module.
func (t *Type) QualifiedName() string {
	if t.module == "" {
		return t.name
	}
	return t.module + "." + t.name
}

func (t *Type) Bases() []*Type { return t.bases }

// Base returns the primary base, or nil for the root type.
func (t *Type) Base() *Type {
	if len(t.bases) == 0 {
		return nil
	}
	return t.bases[0]
}

// MRO returns the method resolution order, starting with t itself.
func (t *Type) MRO() []*Type { return t.mro }

func (t *Type) Flags() TypeFlags { return t.flags }

func (t *Type) HasFlag(f TypeFlags) bool { return t.flags&f != 0 }

// IsLegacy reports whether the instance struct embeds the header itself.
func (t *Type) IsLegacy() bool { return t.legacy }

// BasicSize is the total instance storage size, header included.
func (t *Type) BasicSize() int { return t.basicSize }

func (t *Type) ItemSize() int { return t.itemSize }

// PayloadOffset is where the type's own payload starts within instance
// storage.
func (t *Type) PayloadOffset() int { return t.payloadOffset }

// StructOffset is where the struct view of an instance starts: at the
// header for legacy types, at the first payload byte otherwise. Payload
// of derived types follows the payload of their bases within the view.
func (t *Type) StructOffset() int {
	if t.legacy {
		return 0
	}
	return HeaderSize
}

// Slots returns the resolved slots, inherited entries included.
func (t *Type) Slots() *Slots { return &t.slots }

// OwnSlots returns only the slots defined on t.
func (t *Type) OwnSlots() *Slots { return &t.own }

// DestroyChain returns every destructor in the ancestry, most derived first.
func (t *Type) DestroyChain() []DestroyFunc { return t.destroyChain }

// TraverseChain returns every traverse hook in the ancestry.
func (t *Type) TraverseChain() []TraverseFunc { return t.traverseChain }

// FinalizeChain returns every finalizer in the ancestry.
func (t *Type) FinalizeChain() []FinalizeFunc { return t.finalizeChain }

// Members returns all members visible on instances, most derived first.
func (t *Type) Members() []*MemberDescr { return t.memberChain }

// Fields returns the item names of a struct sequence type.
func (t *Type) Fields() []string { return t.fields }

// IsSubtype reports whether t is other or derives from it.
func (t *Type) IsSubtype(other *Type) bool {
	for _, anc := range t.mro {
		if anc == other {
			return true
		}
	}
	return false
}

// LookupMethod finds a method along the MRO.
func (t *Type) LookupMethod(name string) (*MethodDescr, bool) {
	for _, anc := range t.mro {
		if m, ok := anc.methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// LookupMember finds a member along the MRO.
func (t *Type) LookupMember(name string) (*MemberDescr, bool) {
	for _, anc := range t.mro {
		if m, ok := anc.members[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// LookupGetSet finds a computed attribute along the MRO.
func (t *Type) LookupGetSet(name string) (*GetSetDescr, bool) {
	for _, anc := range t.mro {
		if g, ok := anc.getsets[name]; ok {
			return g, true
		}
	}
	return nil, false
}

// LookupAttr finds a class attribute along the MRO.
func (t *Type) LookupAttr(name string) (Object, bool) {
	for _, anc := range t.mro {
		if v, ok := anc.attrs[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// SetAttr stores a class attribute on t. The previous value, if any, is
// returned so the caller can release it.
func (t *Type) SetAttr(name string, value Object) (Object, bool) {
	old, ok := t.attrs[name]
	t.attrs[name] = value
	return old, ok
}

// Attrs returns the class attributes defined directly on t.
func (t *Type) Attrs() map[string]Object { return t.attrs }

// Names returns the names of methods, members and getsets defined
// directly on t, in definition order.
func (t *Type) Names() []string { return t.order }

func (t *Type) Inspect() string {
	return fmt.Sprintf("<class '%s'>", t.QualifiedName())
}

func (t *Type) Interface() any { return t }

func (t *Type) Equals(other Object) bool {
	return other == Object(t)
}

func (t *Type) String() string { return t.Inspect() }
