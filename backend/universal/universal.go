// Package universal is the decoupled backend: a handle is an index into a
// side table owned by the context, and every operation is dispatched
// through an OpTable of function values.
package universal

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/internal/handletable"
	"github.com/deepnoodle-ai/hbridge/internal/ops"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Name identifies the backend.
const Name = "universal"

// Context implements abi.Context over a handle table.
type Context struct {
	heap    *heap.Heap
	inline  bool
	ops     *OpTable
	slots   factory.SlotMap
	factory *factory.Factory
	table   handletable.Table[object.Object]

	none, tru, fals handle.Handle
	builtins        map[abi.BuiltinID]handle.Handle
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

// WithOpTable replaces the operation table.
func WithOpTable(t *OpTable) Option {
	return func(c *Context) {
		c.ops = t
	}
}

// WithSlotMap replaces the slot table used when creating types.
func WithSlotMap(m factory.SlotMap) Option {
	return func(c *Context) {
		c.slots = m
	}
}

// New creates a context over h. The singleton handles are populated once,
// in permanent table slots.
func New(h *heap.Heap, opts ...Option) (*Context, error) {
	c := &Context{heap: h, inline: true}
	for _, opt := range opts {
		opt(c)
	}
	if c.ops == nil {
		c.ops = DefaultOpTable()
	}
	if err := h.Init(); err != nil {
		return nil, err
	}
	c.initConstants()
	c.factory = factory.New(c, c.slots)
	return c, nil
}

func (c *Context) permanent(obj object.Object) handle.Handle {
	h, _ := handle.FromIndex(c.table.PutPermanent(obj))
	return h
}

func (c *Context) initConstants() {
	if c.builtins != nil {
		return
	}
	c.none = c.permanent(object.None)
	c.tru = c.permanent(object.True)
	c.fals = c.permanent(object.False)
	c.builtins = map[abi.BuiltinID]handle.Handle{}
	for _, id := range abi.Builtins() {
		if t := ops.BuiltinType(id); t != nil {
			c.builtins[id] = c.permanent(t)
		}
	}
}

var _ bridge.Bridge = (*Context)(nil)

func (c *Context) Name() string { return Name }

func (c *Context) Heap() *heap.Heap { return c.heap }

func (c *Context) InlineScalars() bool { return c.inline }

// Ops returns the operation table in use.
func (c *Context) Ops() *OpTable { return c.ops }

// Factory returns the type factory bound to this context.
func (c *Context) Factory() *factory.Factory { return c.factory }

// OpenHandles returns the number of open, non-permanent handles.
func (c *Context) OpenHandles() int {
	n := 0
	c.table.Each(func(uint64, object.Object) { n++ })
	return n
}

func (c *Context) Borrow(h handle.Handle) (object.Object, error) {
	switch h.Kind() {
	case handle.KindNull:
		return nil, bridge.ErrNull()
	case handle.KindInt, handle.KindFloat:
		obj, _ := bridge.FromInline(h)
		return obj, nil
	case handle.KindIndirect:
		i, _ := h.Index()
		if obj, ok := c.table.Get(i); ok {
			return obj, nil
		}
		return nil, bridge.ErrClosed(h)
	default:
		return nil, errz.ContractErrorf("%s is not a handle of the %s backend", h, Name)
	}
}

func (c *Context) Own(obj object.Object) (handle.Handle, error) {
	i := c.table.Put(obj)
	h, ok := handle.FromIndex(i)
	if !ok {
		c.table.Remove(i)
		c.heap.DecRef(obj)
		return handle.Null, errz.AllocationErrorf("handle table exhausted")
	}
	return h, nil
}

// Close frees the table slot of h and drops its reference. Permanent
// handles, inline handles and Null are left alone.
func (c *Context) Close(h handle.Handle) error {
	if h.IsNull() || h.IsInline() {
		return nil
	}
	i, ok := h.Index()
	if !ok {
		return errz.ContractErrorf("%s is not a handle of the %s backend", h, Name)
	}
	if c.table.IsPermanent(i) {
		return nil
	}
	obj, ok := c.table.Remove(i)
	if !ok {
		return bridge.ErrClosed(h)
	}
	c.heap.DecRef(obj)
	return nil
}

func (c *Context) Dup(h handle.Handle) (handle.Handle, error) { return c.ops.Dup(c, h) }
func (c *Context) AsReference(h handle.Handle) (uint64, error) {
	return c.ops.AsReference(c, h)
}

func (c *Context) None() handle.Handle  { return c.none }
func (c *Context) True() handle.Handle  { return c.tru }
func (c *Context) False() handle.Handle { return c.fals }

func (c *Context) Builtin(id abi.BuiltinID) handle.Handle {
	return c.builtins[id]
}

func (c *Context) LongFromInt64(v int64) (handle.Handle, error) { return c.ops.LongFromInt64(c, v) }
func (c *Context) LongAsInt64(h handle.Handle) (int64, error)   { return c.ops.LongAsInt64(c, h) }
func (c *Context) FloatFromFloat64(v float64) (handle.Handle, error) {
	return c.ops.FloatFromFloat64(c, v)
}
func (c *Context) FloatAsFloat64(h handle.Handle) (float64, error) {
	return c.ops.FloatAsFloat64(c, h)
}

func (c *Context) BoolFromBool(v bool) handle.Handle {
	if v {
		return c.tru
	}
	return c.fals
}

func (c *Context) IsTrue(h handle.Handle) (bool, error) { return c.ops.IsTrue(c, h) }
func (c *Context) UnicodeFromString(s string) (handle.Handle, error) {
	return c.ops.UnicodeFromString(c, s)
}
func (c *Context) UnicodeAsString(h handle.Handle) (string, error) {
	return c.ops.UnicodeAsString(c, h)
}
func (c *Context) BytesFromBytes(b []byte) (handle.Handle, error) { return c.ops.BytesFromBytes(c, b) }
func (c *Context) BytesAsBytes(h handle.Handle) ([]byte, error)   { return c.ops.BytesAsBytes(c, h) }

func (c *Context) TupleFromArray(items []handle.Handle) (handle.Handle, error) {
	return c.ops.TupleFromArray(c, items)
}
func (c *Context) ListNew(items []handle.Handle) (handle.Handle, error) {
	return c.ops.ListNew(c, items)
}
func (c *Context) ListAppend(list, item handle.Handle) error { return c.ops.ListAppend(c, list, item) }
func (c *Context) Length(h handle.Handle) (int, error)       { return c.ops.Length(c, h) }
func (c *Context) GetItem(obj, key handle.Handle) (handle.Handle, error) {
	return c.ops.GetItem(c, obj, key)
}
func (c *Context) GetItemInt(obj handle.Handle, i int) (handle.Handle, error) {
	return c.ops.GetItemInt(c, obj, i)
}
func (c *Context) SetItem(obj, key, value handle.Handle) error {
	return c.ops.SetItem(c, obj, key, value)
}
func (c *Context) Contains(container, item handle.Handle) (bool, error) {
	return c.ops.Contains(c, container, item)
}
func (c *Context) StructSequenceNewType(desc *abi.StructSequenceDesc) (handle.Handle, error) {
	return c.ops.StructSequenceNewType(c, c.factory, desc)
}
func (c *Context) StructSequenceFromArray(typ handle.Handle, items []handle.Handle) (handle.Handle, error) {
	return c.ops.StructSequenceFromArray(c, typ, items)
}

func (c *Context) GetAttr(obj handle.Handle, name string) (handle.Handle, error) {
	return c.ops.GetAttr(c, obj, name)
}
func (c *Context) SetAttr(obj handle.Handle, name string, value handle.Handle) error {
	return c.ops.SetAttr(c, obj, name, value)
}
func (c *Context) HasAttr(obj handle.Handle, name string) bool { return c.ops.HasAttr(c, obj, name) }

func (c *Context) Call(callable handle.Handle, args []handle.Handle, kwnames []string) (handle.Handle, error) {
	return c.ops.Call(c, callable, args, kwnames)
}
func (c *Context) CallMethod(self handle.Handle, name string, args []handle.Handle, kwnames []string) (handle.Handle, error) {
	return c.ops.CallMethod(c, self, name, args, kwnames)
}

func (c *Context) Repr(h handle.Handle) (handle.Handle, error) { return c.ops.Repr(c, h) }
func (c *Context) Str(h handle.Handle) (handle.Handle, error)  { return c.ops.Str(c, h) }
func (c *Context) Hash(h handle.Handle) (int64, error)         { return c.ops.Hash(c, h) }
func (c *Context) RichCompare(a, b handle.Handle, op abi.CompareOp) (handle.Handle, error) {
	return c.ops.RichCompare(c, a, b, op)
}
func (c *Context) RichCompareBool(a, b handle.Handle, op abi.CompareOp) (bool, error) {
	return c.ops.RichCompareBool(c, a, b, op)
}
func (c *Context) GetIter(h handle.Handle) (handle.Handle, error)   { return c.ops.GetIter(c, h) }
func (c *Context) IterNext(it handle.Handle) (handle.Handle, error) { return c.ops.IterNext(c, it) }
func (c *Context) Is(a, b handle.Handle) bool                       { return c.ops.Is(c, a, b) }
func (c *Context) Add(a, b handle.Handle) (handle.Handle, error) {
	return c.ops.Binary(c, heap.OpAdd, a, b)
}
func (c *Context) Subtract(a, b handle.Handle) (handle.Handle, error) {
	return c.ops.Binary(c, heap.OpSub, a, b)
}
func (c *Context) Multiply(a, b handle.Handle) (handle.Handle, error) {
	return c.ops.Binary(c, heap.OpMul, a, b)
}
func (c *Context) GetBuffer(h handle.Handle) (abi.Buffer, error) { return c.ops.GetBuffer(c, h) }

func (c *Context) Type(h handle.Handle) (handle.Handle, error) { return c.ops.Type(c, h) }
func (c *Context) TypeCheck(h, typ handle.Handle) (bool, error) {
	return c.ops.TypeCheck(c, h, typ)
}
func (c *Context) TypeName(h handle.Handle) (string, error) { return c.ops.TypeName(c, h) }
func (c *Context) New(typ handle.Handle) (handle.Handle, abi.Payload, error) {
	return c.ops.NewVar(c, typ, 0)
}
func (c *Context) NewVar(typ handle.Handle, nitems int) (handle.Handle, abi.Payload, error) {
	return c.ops.NewVar(c, typ, nitems)
}
func (c *Context) AsStruct(h handle.Handle) (abi.Payload, error) { return c.ops.AsStruct(c, h) }
func (c *Context) AsStructLegacy(h handle.Handle) (abi.Payload, error) {
	return c.ops.AsStructLegacy(c, h)
}
func (c *Context) TypeFromSpec(spec *abi.TypeSpec, params ...abi.TypeSpecParam) (handle.Handle, error) {
	return c.ops.TypeFromSpec(c, c.factory, spec, params...)
}
func (c *Context) FieldStore(owner handle.Handle, f abi.Field, value handle.Handle) error {
	return c.ops.FieldStore(c, owner, f, value)
}
func (c *Context) FieldLoad(owner handle.Handle, f abi.Field) (handle.Handle, error) {
	return c.ops.FieldLoad(c, owner, f)
}

func (c *Context) ModuleCreate(def *abi.ModuleDef) (handle.Handle, error) {
	return c.ops.ModuleCreate(c, c.factory, def)
}

func (c *Context) ErrSetString(typ handle.Handle, msg string) error {
	return c.ops.ErrSetString(c, typ, msg)
}
func (c *Context) ErrSet(typ, value handle.Handle) error { return c.ops.ErrSet(c, typ, value) }
func (c *Context) ErrOccurred() bool                     { return c.ops.ErrOccurred(c) }
func (c *Context) ErrExceptionMatches(typ handle.Handle) bool {
	return c.ops.ErrExceptionMatches(c, typ)
}
func (c *Context) ErrFetch() (handle.Handle, error) { return c.ops.ErrFetch(c) }
func (c *Context) ErrClear()                        { c.ops.ErrClear(c) }
func (c *Context) ErrRaise(err error) error         { return c.ops.ErrRaise(c, err) }
func (c *Context) Reserve(n int64) error            { return c.ops.Reserve(c, n) }
func (c *Context) Release(n int64)                  { c.ops.Release(c, n) }
func (c *Context) TryReserve(n int64) error         { return c.ops.TryReserve(c, n) }
