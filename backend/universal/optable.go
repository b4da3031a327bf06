package universal

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/internal/ops"
)

// OpTable holds one function value per operation. The context dispatches
// every call through it, so a table can be patched entry by entry.
type OpTable struct {
	Dup         func(bridge.Bridge, handle.Handle) (handle.Handle, error)
	AsReference func(bridge.Bridge, handle.Handle) (uint64, error)

	LongFromInt64     func(bridge.Bridge, int64) (handle.Handle, error)
	LongAsInt64       func(bridge.Bridge, handle.Handle) (int64, error)
	FloatFromFloat64  func(bridge.Bridge, float64) (handle.Handle, error)
	FloatAsFloat64    func(bridge.Bridge, handle.Handle) (float64, error)
	IsTrue            func(bridge.Bridge, handle.Handle) (bool, error)
	UnicodeFromString func(bridge.Bridge, string) (handle.Handle, error)
	UnicodeAsString   func(bridge.Bridge, handle.Handle) (string, error)
	BytesFromBytes    func(bridge.Bridge, []byte) (handle.Handle, error)
	BytesAsBytes      func(bridge.Bridge, handle.Handle) ([]byte, error)

	TupleFromArray          func(bridge.Bridge, []handle.Handle) (handle.Handle, error)
	ListNew                 func(bridge.Bridge, []handle.Handle) (handle.Handle, error)
	ListAppend              func(bridge.Bridge, handle.Handle, handle.Handle) error
	Length                  func(bridge.Bridge, handle.Handle) (int, error)
	GetItem                 func(bridge.Bridge, handle.Handle, handle.Handle) (handle.Handle, error)
	GetItemInt              func(bridge.Bridge, handle.Handle, int) (handle.Handle, error)
	SetItem                 func(bridge.Bridge, handle.Handle, handle.Handle, handle.Handle) error
	Contains                func(bridge.Bridge, handle.Handle, handle.Handle) (bool, error)
	StructSequenceNewType   func(bridge.Bridge, *factory.Factory, *abi.StructSequenceDesc) (handle.Handle, error)
	StructSequenceFromArray func(bridge.Bridge, handle.Handle, []handle.Handle) (handle.Handle, error)

	GetAttr func(bridge.Bridge, handle.Handle, string) (handle.Handle, error)
	SetAttr func(bridge.Bridge, handle.Handle, string, handle.Handle) error
	HasAttr func(bridge.Bridge, handle.Handle, string) bool

	Call       func(bridge.Bridge, handle.Handle, []handle.Handle, []string) (handle.Handle, error)
	CallMethod func(bridge.Bridge, handle.Handle, string, []handle.Handle, []string) (handle.Handle, error)

	Repr            func(bridge.Bridge, handle.Handle) (handle.Handle, error)
	Str             func(bridge.Bridge, handle.Handle) (handle.Handle, error)
	Hash            func(bridge.Bridge, handle.Handle) (int64, error)
	RichCompare     func(bridge.Bridge, handle.Handle, handle.Handle, abi.CompareOp) (handle.Handle, error)
	RichCompareBool func(bridge.Bridge, handle.Handle, handle.Handle, abi.CompareOp) (bool, error)
	GetIter         func(bridge.Bridge, handle.Handle) (handle.Handle, error)
	IterNext        func(bridge.Bridge, handle.Handle) (handle.Handle, error)
	Is              func(bridge.Bridge, handle.Handle, handle.Handle) bool
	Binary          func(bridge.Bridge, heap.BinaryOp, handle.Handle, handle.Handle) (handle.Handle, error)
	GetBuffer       func(bridge.Bridge, handle.Handle) (abi.Buffer, error)

	Type           func(bridge.Bridge, handle.Handle) (handle.Handle, error)
	TypeCheck      func(bridge.Bridge, handle.Handle, handle.Handle) (bool, error)
	TypeName       func(bridge.Bridge, handle.Handle) (string, error)
	NewVar         func(bridge.Bridge, handle.Handle, int) (handle.Handle, abi.Payload, error)
	AsStruct       func(bridge.Bridge, handle.Handle) (abi.Payload, error)
	AsStructLegacy func(bridge.Bridge, handle.Handle) (abi.Payload, error)
	TypeFromSpec   func(bridge.Bridge, *factory.Factory, *abi.TypeSpec, ...abi.TypeSpecParam) (handle.Handle, error)
	FieldStore     func(bridge.Bridge, handle.Handle, abi.Field, handle.Handle) error
	FieldLoad      func(bridge.Bridge, handle.Handle, abi.Field) (handle.Handle, error)
	ModuleCreate   func(bridge.Bridge, *factory.Factory, *abi.ModuleDef) (handle.Handle, error)

	ErrSetString        func(bridge.Bridge, handle.Handle, string) error
	ErrSet              func(bridge.Bridge, handle.Handle, handle.Handle) error
	ErrOccurred         func(bridge.Bridge) bool
	ErrExceptionMatches func(bridge.Bridge, handle.Handle) bool
	ErrFetch            func(bridge.Bridge) (handle.Handle, error)
	ErrClear            func(bridge.Bridge)
	ErrRaise            func(bridge.Bridge, error) error

	Reserve    func(bridge.Bridge, int64) error
	TryReserve func(bridge.Bridge, int64) error
	Release    func(bridge.Bridge, int64)
}

// DefaultOpTable returns a table bound to the shared operations.
func DefaultOpTable() *OpTable {
	return &OpTable{
		Dup:         ops.Dup,
		AsReference: ops.AsReference,

		LongFromInt64:     ops.LongFromInt64,
		LongAsInt64:       ops.LongAsInt64,
		FloatFromFloat64:  ops.FloatFromFloat64,
		FloatAsFloat64:    ops.FloatAsFloat64,
		IsTrue:            ops.IsTrue,
		UnicodeFromString: ops.UnicodeFromString,
		UnicodeAsString:   ops.UnicodeAsString,
		BytesFromBytes:    ops.BytesFromBytes,
		BytesAsBytes:      ops.BytesAsBytes,

		TupleFromArray:          ops.TupleFromArray,
		ListNew:                 ops.ListNew,
		ListAppend:              ops.ListAppend,
		Length:                  ops.Length,
		GetItem:                 ops.GetItem,
		GetItemInt:              ops.GetItemInt,
		SetItem:                 ops.SetItem,
		Contains:                ops.Contains,
		StructSequenceNewType:   ops.StructSequenceNewType,
		StructSequenceFromArray: ops.StructSequenceFromArray,

		GetAttr: ops.GetAttr,
		SetAttr: ops.SetAttr,
		HasAttr: ops.HasAttr,

		Call:       ops.Call,
		CallMethod: ops.CallMethod,

		Repr:            ops.Repr,
		Str:             ops.Str,
		Hash:            ops.Hash,
		RichCompare:     ops.RichCompare,
		RichCompareBool: ops.RichCompareBool,
		GetIter:         ops.GetIter,
		IterNext:        ops.IterNext,
		Is:              ops.Is,
		Binary:          ops.Binary,
		GetBuffer:       ops.GetBuffer,

		Type:           ops.Type,
		TypeCheck:      ops.TypeCheck,
		TypeName:       ops.TypeName,
		NewVar:         ops.NewVar,
		AsStruct:       ops.AsStruct,
		AsStructLegacy: ops.AsStructLegacy,
		TypeFromSpec:   ops.TypeFromSpec,
		FieldStore:     ops.FieldStore,
		FieldLoad:      ops.FieldLoad,
		ModuleCreate:   ops.ModuleCreate,

		ErrSetString:        ops.ErrSetString,
		ErrSet:              ops.ErrSet,
		ErrOccurred:         ops.ErrOccurred,
		ErrExceptionMatches: ops.ErrExceptionMatches,
		ErrFetch:            ops.ErrFetch,
		ErrClear:            ops.ErrClear,
		ErrRaise:            ops.ErrRaise,

		Reserve:    ops.Reserve,
		TryReserve: ops.TryReserve,
		Release:    ops.Release,
	}
}

// Clone returns a copy of t that can be patched without affecting t.
func (t *OpTable) Clone() *OpTable {
	cp := *t
	return &cp
}
