package abi

import (
	"fmt"

	"github.com/deepnoodle-ai/hbridge/handle"
)

// Sig is the calling signature of an implementation function. Each Sig
// has exactly one function type, listed next to it.
type Sig int

const (
	SigNoArgs        Sig = iota + 1 // NoArgsFunc
	SigO                            // OFunc
	SigVarArgs                      // VarArgsFunc
	SigKeywords                     // KeywordsFunc
	SigNew                          // NewFunc
	SigInit                         // InitProc
	SigCall                         // KeywordsFunc
	SigUnary                        // UnaryFunc
	SigBinary                       // BinaryFunc
	SigRichCompare                  // RichCompareFunc
	SigLen                          // LenFunc
	SigHash                         // HashFunc
	SigGetItem                      // BinaryFunc
	SigSetItem                      // SetItemFunc
	SigGetter                       // GetterFunc
	SigSetter                       // SetterFunc
	SigGetBuffer                    // GetBufferFunc
	SigReleaseBuffer                // ReleaseBufferFunc
	SigTraverse                     // TraverseFunc
	SigDestroy                      // DestroyFunc
	SigFinalize                     // FinalizeFunc
	SigModExec                      // ModExecFunc
)

var sigNames = map[Sig]string{
	SigNoArgs:        "noargs",
	SigO:             "o",
	SigVarArgs:       "varargs",
	SigKeywords:      "keywords",
	SigNew:           "new",
	SigInit:          "init",
	SigCall:          "call",
	SigUnary:         "unary",
	SigBinary:        "binary",
	SigRichCompare:   "richcompare",
	SigLen:           "len",
	SigHash:          "hash",
	SigGetItem:       "getitem",
	SigSetItem:       "setitem",
	SigGetter:        "getter",
	SigSetter:        "setter",
	SigGetBuffer:     "getbuffer",
	SigReleaseBuffer: "releasebuffer",
	SigTraverse:      "traverse",
	SigDestroy:       "destroy",
	SigFinalize:      "finalize",
	SigModExec:       "modexec",
}

func (s Sig) String() string {
	if name, ok := sigNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Sig(%d)", int(s))
}

// Implementation function types. Argument handles are borrowed; returned
// handles are owned by the caller. len(args) is the argument count.
type (
	NoArgsFunc        func(ctx Context, self handle.Handle) (handle.Handle, error)
	OFunc             func(ctx Context, self, arg handle.Handle) (handle.Handle, error)
	VarArgsFunc       func(ctx Context, self handle.Handle, args []handle.Handle) (handle.Handle, error)
	KeywordsFunc      func(ctx Context, self handle.Handle, args []handle.Handle, kwnames []string) (handle.Handle, error)
	NewFunc           func(ctx Context, typ handle.Handle, args []handle.Handle, kwnames []string) (handle.Handle, error)
	InitProc          func(ctx Context, self handle.Handle, args []handle.Handle, kwnames []string) error
	UnaryFunc         func(ctx Context, self handle.Handle) (handle.Handle, error)
	BinaryFunc        func(ctx Context, self, other handle.Handle) (handle.Handle, error)
	RichCompareFunc   func(ctx Context, self, other handle.Handle, op CompareOp) (handle.Handle, error)
	LenFunc           func(ctx Context, self handle.Handle) (int, error)
	HashFunc          func(ctx Context, self handle.Handle) (int64, error)
	SetItemFunc       func(ctx Context, self, key, value handle.Handle) error
	GetterFunc        func(ctx Context, self handle.Handle, closure any) (handle.Handle, error)
	SetterFunc        func(ctx Context, self, value handle.Handle, closure any) error
	GetBufferFunc     func(ctx Context, self handle.Handle) (Buffer, error)
	ReleaseBufferFunc func(ctx Context, self handle.Handle, buf Buffer)
	// TraverseFunc reports every reference field of the payload.
	TraverseFunc func(p Payload, visit VisitFunc) error
	// DestroyFunc releases native resources of the payload. It cannot call
	// into the runtime.
	DestroyFunc  func(p Payload)
	FinalizeFunc func(ctx Context, self handle.Handle)
	ModExecFunc  func(ctx Context, module handle.Handle) error
)

// SlotID names a special method of a type or module.
type SlotID int

const (
	SlotNew SlotID = iota + 1
	SlotInit
	SlotCall
	SlotRepr
	SlotStr
	SlotIter
	SlotIterNext
	SlotHash
	SlotRichCompare
	SlotLen
	SlotGetItem
	SlotSetItem
	SlotAdd
	SlotSubtract
	SlotMultiply
	SlotGetBuffer
	SlotReleaseBuffer
	SlotTraverse
	SlotDestroy
	SlotFinalize
	// SlotModExec runs after a module is created. It is not a type slot.
	SlotModExec
	// SlotDealloc is the legacy deallocation hook; only valid in
	// TypeSpec.LegacySlots.
	SlotDealloc
)

var slotInfo = map[SlotID]struct {
	name string
	sig  Sig
}{
	SlotNew:           {"new", SigNew},
	SlotInit:          {"init", SigInit},
	SlotCall:          {"call", SigCall},
	SlotRepr:          {"repr", SigUnary},
	SlotStr:           {"str", SigUnary},
	SlotIter:          {"iter", SigUnary},
	SlotIterNext:      {"iternext", SigUnary},
	SlotHash:          {"hash", SigHash},
	SlotRichCompare:   {"richcompare", SigRichCompare},
	SlotLen:           {"len", SigLen},
	SlotGetItem:       {"getitem", SigGetItem},
	SlotSetItem:       {"setitem", SigSetItem},
	SlotAdd:           {"add", SigBinary},
	SlotSubtract:      {"subtract", SigBinary},
	SlotMultiply:      {"multiply", SigBinary},
	SlotGetBuffer:     {"getbuffer", SigGetBuffer},
	SlotReleaseBuffer: {"releasebuffer", SigReleaseBuffer},
	SlotTraverse:      {"traverse", SigTraverse},
	SlotDestroy:       {"destroy", SigDestroy},
	SlotFinalize:      {"finalize", SigFinalize},
	SlotModExec:       {"modexec", SigModExec},
	SlotDealloc:       {"dealloc", SigDestroy},
}

func (s SlotID) String() string {
	if info, ok := slotInfo[s]; ok {
		return info.name
	}
	return fmt.Sprintf("SlotID(%d)", int(s))
}

// Sig returns the signature implementations of the slot must have.
func (s SlotID) Sig() Sig {
	return slotInfo[s].sig
}

// Valid reports whether s is a known slot.
func (s SlotID) Valid() bool {
	_, ok := slotInfo[s]
	return ok
}

// Def is one entry of a type or module definition list: a SlotDef,
// MethodDef, MemberDef or GetSetDef.
type Def interface {
	DefName() string
}

// SlotDef binds an implementation to a special method.
type SlotDef struct {
	Slot SlotID
	Impl any
}

func (d SlotDef) DefName() string { return d.Slot.String() }

// MethodDef defines a method (on a type) or a function (on a module).
type MethodDef struct {
	Name string
	Doc  string
	Sig  Sig
	Impl any
}

func (d MethodDef) DefName() string { return d.Name }

// MemberKind is the storage kind of a member.
type MemberKind int

const (
	MemberShort MemberKind = iota
	MemberInt
	MemberLong
	MemberFloat
	MemberDouble
	MemberBool
	// MemberObject holds a reference, managed like a Field.
	MemberObject
)

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

// MemberDef exposes a fixed-offset payload field as an attribute. Offset is
// relative to the payload of the defining type (for legacy types: to the
// start of the struct).
type MemberDef struct {
	Name     string
	Doc      string
	Kind     MemberKind
	Offset   int
	ReadOnly bool
}

func (d MemberDef) DefName() string { return d.Name }

// GetSetDef defines a computed attribute. Setter may be nil for read-only
// attributes. Closure is passed to both functions.
type GetSetDef struct {
	Name    string
	Doc     string
	Getter  GetterFunc
	Setter  SetterFunc
	Closure any
}

func (d GetSetDef) DefName() string { return d.Name }

// LegacyFunc is the convention of legacy methods: positional arguments only,
// no per-call handle tracking.
type LegacyFunc func(ctx Context, self handle.Handle, args []handle.Handle) (handle.Handle, error)

// LegacyMethod is a method inserted into a type or module without a
// trampoline.
type LegacyMethod struct {
	Name string
	Doc  string
	Impl LegacyFunc
}

// LegacySlot is a special method in the legacy convention. Impl must have
// the function type of the slot's Sig.
type LegacySlot struct {
	Slot SlotID
	Impl any
}

// Flags are type feature flags.
type Flags uint32

const (
	// FlagBaseType allows subclassing.
	FlagBaseType Flags = 1 << iota
	// FlagHaveGC enables cycle collection; requires a traverse slot.
	FlagHaveGC
)

// Shape is the builtin shape a type's instances have.
type Shape int

const (
	// ShapeObject instances carry a runtime header followed by the payload.
	ShapeObject Shape = iota
	// ShapeLegacy instances are a single struct that embeds the header.
	ShapeLegacy
)

func (s Shape) String() string {
	if s == ShapeLegacy {
		return "legacy"
	}
	return "object"
}

// TypeSpec describes a type to create with Context.TypeFromSpec.
type TypeSpec struct {
	Name      string
	Doc       string
	BasicSize int
	ItemSize  int
	Flags     Flags
	Shape     Shape
	Defines   []Def

	LegacySlots   []LegacySlot
	LegacyMethods []LegacyMethod
	LegacyMembers []MemberDef
	LegacyGetSets []GetSetDef
}

// HasLegacy reports whether the spec carries any legacy definition.
func (s *TypeSpec) HasLegacy() bool {
	return len(s.LegacySlots) > 0 || len(s.LegacyMethods) > 0 ||
		len(s.LegacyMembers) > 0 || len(s.LegacyGetSets) > 0
}

// ParamKind selects the meaning of a TypeSpecParam.
type ParamKind int

const (
	// ParamBase adds one base type. May repeat.
	ParamBase ParamKind = iota + 1
	// ParamBasesTuple supplies all bases as a tuple.
	ParamBasesTuple
	// ParamMetaclass sets the metaclass.
	ParamMetaclass
)

func (k ParamKind) String() string {
	switch k {
	case ParamBase:
		return "base"
	case ParamBasesTuple:
		return "bases tuple"
	case ParamMetaclass:
		return "metaclass"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// TypeSpecParam is an additional type creation parameter.
type TypeSpecParam struct {
	Kind   ParamKind
	Object handle.Handle
}

// ModuleDef describes a module created by Context.ModuleCreate.
type ModuleDef struct {
	Name          string
	Doc           string
	Defines       []Def
	LegacyMethods []LegacyMethod
}

// StructSequenceField names one item of a struct sequence.
type StructSequenceField struct {
	Name string
	Doc  string
}

// StructSequenceDesc describes a named tuple type.
type StructSequenceDesc struct {
	Name   string
	Doc    string
	Fields []StructSequenceField
}
