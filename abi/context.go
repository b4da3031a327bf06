// Package abi is the interface extension modules are written against.
//
// Extensions receive a Context and exchange handle.Handle values with it.
// They never see the objects of the backing runtime, so the same extension
// code runs unmodified on every backend. Handles returned by a Context
// operation are owned by the caller and must be closed exactly once;
// handles passed as arguments are borrowed.
package abi

import (
	"github.com/deepnoodle-ai/hbridge/handle"
)

// Context is the complete operation table of one environment. It is always
// the receiver of an operation, and it is the only way an extension reaches
// the runtime.
type Context interface {
	// Name identifies the backend ("direct", "universal", "debug(...)").
	Name() string

	// Dup returns a new, independently closable handle to the same object.
	Dup(h handle.Handle) (handle.Handle, error)
	// Close releases h. Closing an inline handle is a no-op.
	Close(h handle.Handle) error
	// AsReference returns the object id behind a managed handle. Inline and
	// null handles are rejected.
	AsReference(h handle.Handle) (uint64, error)

	None() handle.Handle
	True() handle.Handle
	False() handle.Handle
	// Builtin returns a handle to a builtin type. The handle is permanent;
	// closing it is allowed and has no effect.
	Builtin(id BuiltinID) handle.Handle

	LongFromInt64(v int64) (handle.Handle, error)
	LongAsInt64(h handle.Handle) (int64, error)
	FloatFromFloat64(v float64) (handle.Handle, error)
	FloatAsFloat64(h handle.Handle) (float64, error)
	BoolFromBool(v bool) handle.Handle
	IsTrue(h handle.Handle) (bool, error)
	UnicodeFromString(s string) (handle.Handle, error)
	UnicodeAsString(h handle.Handle) (string, error)
	// BytesFromBytes copies b into a new bytes object.
	BytesFromBytes(b []byte) (handle.Handle, error)
	// BytesAsBytes returns a copy of the contents of a bytes object.
	BytesAsBytes(h handle.Handle) ([]byte, error)

	TupleFromArray(items []handle.Handle) (handle.Handle, error)
	ListNew(items []handle.Handle) (handle.Handle, error)
	ListAppend(list, item handle.Handle) error
	Length(h handle.Handle) (int, error)
	GetItem(obj, key handle.Handle) (handle.Handle, error)
	GetItemInt(obj handle.Handle, i int) (handle.Handle, error)
	SetItem(obj, key, value handle.Handle) error
	Contains(container, item handle.Handle) (bool, error)
	StructSequenceNewType(desc *StructSequenceDesc) (handle.Handle, error)
	StructSequenceFromArray(typ handle.Handle, items []handle.Handle) (handle.Handle, error)

	GetAttr(obj handle.Handle, name string) (handle.Handle, error)
	SetAttr(obj handle.Handle, name string, value handle.Handle) error
	HasAttr(obj handle.Handle, name string) bool

	// Call invokes callable. The last len(kwnames) args are keyword values.
	Call(callable handle.Handle, args []handle.Handle, kwnames []string) (handle.Handle, error)
	CallMethod(self handle.Handle, name string, args []handle.Handle, kwnames []string) (handle.Handle, error)

	Repr(h handle.Handle) (handle.Handle, error)
	Str(h handle.Handle) (handle.Handle, error)
	Hash(h handle.Handle) (int64, error)
	RichCompare(a, b handle.Handle, op CompareOp) (handle.Handle, error)
	RichCompareBool(a, b handle.Handle, op CompareOp) (bool, error)
	GetIter(h handle.Handle) (handle.Handle, error)
	// IterNext returns the next item, or Null and no error when the
	// iterator is exhausted.
	IterNext(it handle.Handle) (handle.Handle, error)
	// Is reports object identity.
	Is(a, b handle.Handle) bool
	Add(a, b handle.Handle) (handle.Handle, error)
	Subtract(a, b handle.Handle) (handle.Handle, error)
	Multiply(a, b handle.Handle) (handle.Handle, error)
	// GetBuffer returns a copy of the bytes an object exposes.
	GetBuffer(h handle.Handle) (Buffer, error)

	Type(h handle.Handle) (handle.Handle, error)
	TypeCheck(h, typ handle.Handle) (bool, error)
	TypeName(h handle.Handle) (string, error)
	// New allocates a zeroed instance of typ and returns it together with
	// a view of its payload.
	New(typ handle.Handle) (handle.Handle, Payload, error)
	NewVar(typ handle.Handle, nitems int) (handle.Handle, Payload, error)
	// AsStruct returns the payload of an instance of a non-legacy type.
	AsStruct(h handle.Handle) (Payload, error)
	// AsStructLegacy returns the whole struct of an instance of a legacy
	// type, header included.
	AsStructLegacy(h handle.Handle) (Payload, error)
	TypeFromSpec(spec *TypeSpec, params ...TypeSpecParam) (handle.Handle, error)
	// FieldStore stores a reference to value (Null clears) in field f of
	// owner. The owner keeps the object alive until the field is cleared
	// or the owner is destroyed.
	FieldStore(owner handle.Handle, f Field, value handle.Handle) error
	// FieldLoad returns a new handle to the object in field f, or Null.
	FieldLoad(owner handle.Handle, f Field) (handle.Handle, error)

	ModuleCreate(def *ModuleDef) (handle.Handle, error)

	// ErrSetString raises an exception of type typ and returns the
	// matching error, so that implementations can write
	// `return handle.Null, ctx.ErrSetString(...)`.
	ErrSetString(typ handle.Handle, msg string) error
	// ErrSet raises value, which must be an exception instance or a string
	// message for typ.
	ErrSet(typ, value handle.Handle) error
	ErrOccurred() bool
	ErrExceptionMatches(typ handle.Handle) bool
	// ErrFetch removes the pending exception and returns a handle to it, or
	// Null when none is pending.
	ErrFetch() (handle.Handle, error)
	ErrClear()

	// ErrRaise sets the error slot from err and returns the raised error.
	ErrRaise(err error) error

	// Reserve accounts native memory against the environment budget.
	Reserve(n int64) error
	// TryReserve is Reserve without raising: a failure is returned but the
	// error slot is left as it was.
	TryReserve(n int64) error
	// Release returns memory previously reserved.
	Release(n int64)
}

// CompareOp selects a rich comparison.
type CompareOp int

const (
	LT CompareOp = iota
	LE
	EQ
	NE
	GT
	GE
)

func (op CompareOp) String() string {
	switch op {
	case LT:
		return "<"
	case LE:
		return "<="
	case EQ:
		return "=="
	case NE:
		return "!="
	case GT:
		return ">"
	case GE:
		return ">="
	default:
		return "?"
	}
}

// BuiltinID names a builtin type constant.
type BuiltinID int

const (
	BuiltinObject BuiltinID = iota
	BuiltinType
	BuiltinNone
	BuiltinBool
	BuiltinInt
	BuiltinFloat
	BuiltinStr
	BuiltinBytes
	BuiltinTuple
	BuiltinList
	BuiltinModule
	BuiltinBaseException
	BuiltinException
	BuiltinTypeError
	BuiltinValueError
	BuiltinIndexError
	BuiltinKeyError
	BuiltinAttributeError
	BuiltinStopIteration
	BuiltinMemoryError
	BuiltinSystemError
	BuiltinConfigurationError
	BuiltinContractViolation
	numBuiltins
)

var builtinNames = [...]string{
	BuiltinObject:             "object",
	BuiltinType:               "type",
	BuiltinNone:               "NoneType",
	BuiltinBool:               "bool",
	BuiltinInt:                "int",
	BuiltinFloat:              "float",
	BuiltinStr:                "str",
	BuiltinBytes:              "bytes",
	BuiltinTuple:              "tuple",
	BuiltinList:               "list",
	BuiltinModule:             "module",
	BuiltinBaseException:      "BaseException",
	BuiltinException:          "Exception",
	BuiltinTypeError:          "TypeError",
	BuiltinValueError:         "ValueError",
	BuiltinIndexError:         "IndexError",
	BuiltinKeyError:           "KeyError",
	BuiltinAttributeError:     "AttributeError",
	BuiltinStopIteration:      "StopIteration",
	BuiltinMemoryError:        "MemoryError",
	BuiltinSystemError:        "SystemError",
	BuiltinConfigurationError: "ConfigurationError",
	BuiltinContractViolation:  "ContractViolation",
}

// String returns the runtime name of the builtin type.
func (id BuiltinID) String() string {
	if id < 0 || id >= numBuiltins {
		return "unknown"
	}
	return builtinNames[id]
}

// Builtins returns every builtin id.
func Builtins() []BuiltinID {
	out := make([]BuiltinID, 0, numBuiltins)
	for id := BuiltinID(0); id < numBuiltins; id++ {
		out = append(out, id)
	}
	return out
}

// Buffer is a copy of the bytes exposed by an object.
type Buffer struct {
	Data     []byte
	ReadOnly bool
	ItemSize int
	Format   string
}

// InitFunc is the entry point of an extension module. It returns a handle
// to the created module.
type InitFunc func(ctx Context) (handle.Handle, error)
