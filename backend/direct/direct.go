// Package direct is the in-process backend: a handle is the heap id of the
// object it refers to, and every operation is a plain function call.
package direct

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/internal/ops"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Name identifies the backend.
const Name = "direct"

// Context implements abi.Context by calling the shared operations
// directly.
type Context struct {
	heap    *heap.Heap
	inline  bool
	slots   factory.SlotMap
	factory *factory.Factory
}

// Option configures a Context.
type Option func(*Context)

// WithInlineScalars enables or disables encoding small ints and floats in
// handles.
func WithInlineScalars(enabled bool) Option {
	return func(c *Context) {
		c.inline = enabled
	}
}

// WithSlotMap replaces the slot table used when creating types.
func WithSlotMap(m factory.SlotMap) Option {
	return func(c *Context) {
		c.slots = m
	}
}

// New creates a context over h, initializing the heap if needed.
func New(h *heap.Heap, opts ...Option) (*Context, error) {
	c := &Context{heap: h, inline: true}
	for _, opt := range opts {
		opt(c)
	}
	if err := h.Init(); err != nil {
		return nil, err
	}
	c.factory = factory.New(c, c.slots)
	return c, nil
}

var _ bridge.Bridge = (*Context)(nil)

func (c *Context) Name() string { return Name }

func (c *Context) Heap() *heap.Heap { return c.heap }

func (c *Context) InlineScalars() bool { return c.inline }

// Factory returns the type factory bound to this context.
func (c *Context) Factory() *factory.Factory { return c.factory }

func (c *Context) Borrow(h handle.Handle) (object.Object, error) {
	switch h.Kind() {
	case handle.KindNull:
		return nil, bridge.ErrNull()
	case handle.KindInt, handle.KindFloat:
		obj, _ := bridge.FromInline(h)
		return obj, nil
	case handle.KindReference:
		id, _ := h.Reference()
		if obj, ok := c.heap.Lookup(id); ok {
			return obj, nil
		}
		return nil, bridge.ErrClosed(h)
	default:
		return nil, errz.ContractErrorf("%s is not a handle of the %s backend", h, Name)
	}
}

func (c *Context) Own(obj object.Object) (handle.Handle, error) {
	h, ok := handle.FromReference(c.heap.IDOf(obj))
	if !ok {
		c.heap.DecRef(obj)
		return handle.Null, errz.SystemErrorf("object id of %s cannot be encoded", object.TypeName(obj))
	}
	return h, nil
}

func (c *Context) Dup(h handle.Handle) (handle.Handle, error) { return ops.Dup(c, h) }

// Close drops the reference held by h. Closing Null or an inline handle
// does nothing.
func (c *Context) Close(h handle.Handle) error {
	if h.IsNull() || h.IsInline() {
		return nil
	}
	obj, err := c.Borrow(h)
	if err != nil {
		return err
	}
	c.heap.DecRef(obj)
	return nil
}

func (c *Context) AsReference(h handle.Handle) (uint64, error) { return ops.AsReference(c, h) }

func (c *Context) None() handle.Handle  { return ops.Constant(c, object.None) }
func (c *Context) True() handle.Handle  { return ops.Constant(c, object.True) }
func (c *Context) False() handle.Handle { return ops.Constant(c, object.False) }

func (c *Context) Builtin(id abi.BuiltinID) handle.Handle {
	t := ops.BuiltinType(id)
	if t == nil {
		return handle.Null
	}
	return ops.Constant(c, t)
}

func (c *Context) LongFromInt64(v int64) (handle.Handle, error) { return ops.LongFromInt64(c, v) }
func (c *Context) LongAsInt64(h handle.Handle) (int64, error)   { return ops.LongAsInt64(c, h) }
func (c *Context) FloatFromFloat64(v float64) (handle.Handle, error) {
	return ops.FloatFromFloat64(c, v)
}
func (c *Context) FloatAsFloat64(h handle.Handle) (float64, error) { return ops.FloatAsFloat64(c, h) }

func (c *Context) BoolFromBool(v bool) handle.Handle {
	if v {
		return c.True()
	}
	return c.False()
}

func (c *Context) IsTrue(h handle.Handle) (bool, error) { return ops.IsTrue(c, h) }
func (c *Context) UnicodeFromString(s string) (handle.Handle, error) {
	return ops.UnicodeFromString(c, s)
}
func (c *Context) UnicodeAsString(h handle.Handle) (string, error) { return ops.UnicodeAsString(c, h) }
func (c *Context) BytesFromBytes(b []byte) (handle.Handle, error)  { return ops.BytesFromBytes(c, b) }
func (c *Context) BytesAsBytes(h handle.Handle) ([]byte, error)    { return ops.BytesAsBytes(c, h) }

func (c *Context) TupleFromArray(items []handle.Handle) (handle.Handle, error) {
	return ops.TupleFromArray(c, items)
}
func (c *Context) ListNew(items []handle.Handle) (handle.Handle, error) { return ops.ListNew(c, items) }
func (c *Context) ListAppend(list, item handle.Handle) error            { return ops.ListAppend(c, list, item) }
func (c *Context) Length(h handle.Handle) (int, error)                  { return ops.Length(c, h) }
func (c *Context) GetItem(obj, key handle.Handle) (handle.Handle, error) {
	return ops.GetItem(c, obj, key)
}
func (c *Context) GetItemInt(obj handle.Handle, i int) (handle.Handle, error) {
	return ops.GetItemInt(c, obj, i)
}
func (c *Context) SetItem(obj, key, value handle.Handle) error { return ops.SetItem(c, obj, key, value) }
func (c *Context) Contains(container, item handle.Handle) (bool, error) {
	return ops.Contains(c, container, item)
}
func (c *Context) StructSequenceNewType(desc *abi.StructSequenceDesc) (handle.Handle, error) {
	return ops.StructSequenceNewType(c, c.factory, desc)
}
func (c *Context) StructSequenceFromArray(typ handle.Handle, items []handle.Handle) (handle.Handle, error) {
	return ops.StructSequenceFromArray(c, typ, items)
}

func (c *Context) GetAttr(obj handle.Handle, name string) (handle.Handle, error) {
	return ops.GetAttr(c, obj, name)
}
func (c *Context) SetAttr(obj handle.Handle, name string, value handle.Handle) error {
	return ops.SetAttr(c, obj, name, value)
}
func (c *Context) HasAttr(obj handle.Handle, name string) bool { return ops.HasAttr(c, obj, name) }

func (c *Context) Call(callable handle.Handle, args []handle.Handle, kwnames []string) (handle.Handle, error) {
	return ops.Call(c, callable, args, kwnames)
}
func (c *Context) CallMethod(self handle.Handle, name string, args []handle.Handle, kwnames []string) (handle.Handle, error) {
	return ops.CallMethod(c, self, name, args, kwnames)
}

func (c *Context) Repr(h handle.Handle) (handle.Handle, error) { return ops.Repr(c, h) }
func (c *Context) Str(h handle.Handle) (handle.Handle, error)  { return ops.Str(c, h) }
func (c *Context) Hash(h handle.Handle) (int64, error)         { return ops.Hash(c, h) }
func (c *Context) RichCompare(a, b handle.Handle, op abi.CompareOp) (handle.Handle, error) {
	return ops.RichCompare(c, a, b, op)
}
func (c *Context) RichCompareBool(a, b handle.Handle, op abi.CompareOp) (bool, error) {
	return ops.RichCompareBool(c, a, b, op)
}
func (c *Context) GetIter(h handle.Handle) (handle.Handle, error)   { return ops.GetIter(c, h) }
func (c *Context) IterNext(it handle.Handle) (handle.Handle, error) { return ops.IterNext(c, it) }
func (c *Context) Is(a, b handle.Handle) bool                       { return ops.Is(c, a, b) }
func (c *Context) Add(a, b handle.Handle) (handle.Handle, error)    { return ops.Binary(c, heap.OpAdd, a, b) }
func (c *Context) Subtract(a, b handle.Handle) (handle.Handle, error) {
	return ops.Binary(c, heap.OpSub, a, b)
}
func (c *Context) Multiply(a, b handle.Handle) (handle.Handle, error) {
	return ops.Binary(c, heap.OpMul, a, b)
}
func (c *Context) GetBuffer(h handle.Handle) (abi.Buffer, error) { return ops.GetBuffer(c, h) }

func (c *Context) Type(h handle.Handle) (handle.Handle, error) { return ops.Type(c, h) }
func (c *Context) TypeCheck(h, typ handle.Handle) (bool, error) {
	return ops.TypeCheck(c, h, typ)
}
func (c *Context) TypeName(h handle.Handle) (string, error) { return ops.TypeName(c, h) }
func (c *Context) New(typ handle.Handle) (handle.Handle, abi.Payload, error) {
	return ops.NewVar(c, typ, 0)
}
func (c *Context) NewVar(typ handle.Handle, nitems int) (handle.Handle, abi.Payload, error) {
	return ops.NewVar(c, typ, nitems)
}
func (c *Context) AsStruct(h handle.Handle) (abi.Payload, error) { return ops.AsStruct(c, h) }
func (c *Context) AsStructLegacy(h handle.Handle) (abi.Payload, error) {
	return ops.AsStructLegacy(c, h)
}
func (c *Context) TypeFromSpec(spec *abi.TypeSpec, params ...abi.TypeSpecParam) (handle.Handle, error) {
	return ops.TypeFromSpec(c, c.factory, spec, params...)
}
func (c *Context) FieldStore(owner handle.Handle, f abi.Field, value handle.Handle) error {
	return ops.FieldStore(c, owner, f, value)
}
func (c *Context) FieldLoad(owner handle.Handle, f abi.Field) (handle.Handle, error) {
	return ops.FieldLoad(c, owner, f)
}

func (c *Context) ModuleCreate(def *abi.ModuleDef) (handle.Handle, error) {
	return ops.ModuleCreate(c, c.factory, def)
}

func (c *Context) ErrSetString(typ handle.Handle, msg string) error {
	return ops.ErrSetString(c, typ, msg)
}
func (c *Context) ErrSet(typ, value handle.Handle) error      { return ops.ErrSet(c, typ, value) }
func (c *Context) ErrOccurred() bool                          { return ops.ErrOccurred(c) }
func (c *Context) ErrExceptionMatches(typ handle.Handle) bool { return ops.ErrExceptionMatches(c, typ) }
func (c *Context) ErrFetch() (handle.Handle, error)           { return ops.ErrFetch(c) }
func (c *Context) ErrClear()                                  { ops.ErrClear(c) }
func (c *Context) ErrRaise(err error) error                   { return ops.ErrRaise(c, err) }
func (c *Context) Reserve(n int64) error                      { return ops.Reserve(c, n) }
func (c *Context) Release(n int64)                            { ops.Release(c, n) }
func (c *Context) TryReserve(n int64) error                   { return ops.TryReserve(c, n) }
