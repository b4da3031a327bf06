package object

import "sort"

// Builtin type objects. They are immortal and shared by every heap.
var (
	TypeType            *Type
	ObjectType          *Type
	NoneType            *Type
	BoolType            *Type
	IntType             *Type
	FloatType           *Type
	StrType             *Type
	BytesType           *Type
	TupleType           *Type
	ListType            *Type
	ModuleType          *Type
	BuiltinFunctionType *Type
	IteratorType        *Type

	BaseExceptionType      *Type
	ExceptionType          *Type
	TypeErrorType          *Type
	ValueErrorType         *Type
	IndexErrorType         *Type
	KeyErrorType           *Type
	AttributeErrorType     *Type
	StopIterationType      *Type
	MemoryErrorType        *Type
	SystemErrorType        *Type
	ConfigurationErrorType *Type
	ContractViolationType  *Type
)

// typeRegistry holds the builtin types by name.
var typeRegistry = map[string]*Type{}

func registerType(name, doc string, base *Type, flags TypeFlags, basicSize int) *Type {
	var bases []*Type
	if base != nil {
		bases = []*Type{base}
	}
	t, err := NewType(Layout{
		Name:          name,
		Doc:           doc,
		Bases:         bases,
		Flags:         flags | FlagBuiltin,
		BasicSize:     basicSize,
		PayloadOffset: basicSize,
	})
	if err != nil {
		panic(err)
	}
	typeRegistry[name] = t
	return t
}

func init() {
	ObjectType = registerType("object", "The base of all types.", nil, FlagBaseType, HeaderSize)
	TypeType = registerType("type", "The type of all types.", ObjectType, FlagBaseType, HeaderSize)
	TypeType.meta = TypeType
	ObjectType.meta = TypeType

	NoneType = registerType("NoneType", "The type of None.", ObjectType, 0, HeaderSize)
	BoolType = registerType("bool", "Boolean truth values.", ObjectType, 0, HeaderSize)
	IntType = registerType("int", "Signed 64-bit integers.", ObjectType, 0, HeaderSize)
	FloatType = registerType("float", "Double precision floating point numbers.", ObjectType, 0, HeaderSize)
	StrType = registerType("str", "Immutable text.", ObjectType, 0, HeaderSize)
	BytesType = registerType("bytes", "Immutable byte strings.", ObjectType, 0, HeaderSize)
	TupleType = registerType("tuple", "Immutable sequences.", ObjectType, 0, HeaderSize)
	ListType = registerType("list", "Mutable sequences.", ObjectType, 0, HeaderSize)
	ModuleType = registerType("module", "Extension modules.", ObjectType, 0, HeaderSize)
	BuiltinFunctionType = registerType("builtin_function", "Native functions and bound methods.", ObjectType, 0, HeaderSize)
	IteratorType = registerType("iterator", "Sequence iterators.", ObjectType, 0, HeaderSize)

	BaseExceptionType = registerType("BaseException", "Common base of all exceptions.", ObjectType, 0, HeaderSize)
	ExceptionType = registerType("Exception", "Common base of non-exit exceptions.", BaseExceptionType, 0, HeaderSize)
	TypeErrorType = registerType("TypeError", "Inappropriate argument type.", ExceptionType, 0, HeaderSize)
	ValueErrorType = registerType("ValueError", "Inappropriate argument value.", ExceptionType, 0, HeaderSize)
	lookupError := registerType("LookupError", "Base of lookup errors.", ExceptionType, 0, HeaderSize)
	IndexErrorType = registerType("IndexError", "Sequence index out of range.", lookupError, 0, HeaderSize)
	KeyErrorType = registerType("KeyError", "Mapping key not found.", lookupError, 0, HeaderSize)
	AttributeErrorType = registerType("AttributeError", "Attribute not found.", ExceptionType, 0, HeaderSize)
	StopIterationType = registerType("StopIteration", "Signal the end of an iterator.", ExceptionType, 0, HeaderSize)
	MemoryErrorType = registerType("MemoryError", "Out of memory.", ExceptionType, 0, HeaderSize)
	SystemErrorType = registerType("SystemError", "Internal error.", ExceptionType, 0, HeaderSize)
	ConfigurationErrorType = registerType("ConfigurationError", "Inconsistent type or module specification.", SystemErrorType, 0, HeaderSize)
	ContractViolationType = registerType("ContractViolation", "Misuse of a handle, builder or tracker.", SystemErrorType, 0, HeaderSize)
}

// LookupBuiltinType returns the builtin type with the given name.
func LookupBuiltinType(name string) (*Type, bool) {
	t, ok := typeRegistry[name]
	return t, ok
}

// BuiltinTypes returns every builtin type, sorted by name.
func BuiltinTypes() []*Type {
	out := make([]*Type, 0, len(typeRegistry))
	for _, t := range typeRegistry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
