// Package debug wraps another backend with handle checking. Every handle
// it issues is unique for the lifetime of the context, so a closed handle
// is recognised as such when it is used or closed again, and handles still
// open when the context is shut down are reported as leaks.
package debug

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/internal/ops"
	"github.com/deepnoodle-ai/hbridge/object"
)

type entry struct {
	inner     handle.Handle
	typeName  string
	seq       uint64
	permanent bool
}

// Leak describes a handle that was never closed.
type Leak struct {
	Handle   handle.Handle
	TypeName string
	// Seq is the issue order of the handle, starting at 1.
	Seq uint64
}

func (l Leak) String() string {
	return fmt.Sprintf("%s (%s, #%d)", l.Handle, l.TypeName, l.Seq)
}

// Context checks handle use and forwards storage to an inner backend.
type Context struct {
	inner   bridge.Bridge
	log     zerolog.Logger
	factory *factory.Factory

	open   map[uint64]*entry
	closed map[uint64]struct{}
	next   uint64

	none, tru, fals handle.Handle
	builtins        map[abi.BuiltinID]handle.Handle
}

// Option configures a Context.
type Option func(*Context)

// WithSlotMap replaces the slot table used when creating types.
func WithSlotMap(m factory.SlotMap) Option {
	return func(c *Context) {
		c.factory = factory.New(c, m)
	}
}

// New wraps inner.
func New(inner bridge.Bridge, opts ...Option) *Context {
	c := &Context{
		inner:  inner,
		log:    inner.Heap().Logger().With().Str("component", "debug").Logger(),
		open:   map[uint64]*entry{},
		closed: map[uint64]struct{}{},
		next:   1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.factory == nil {
		c.factory = factory.New(c, nil)
	}
	c.none = c.permanent(inner.None())
	c.tru = c.permanent(inner.True())
	c.fals = c.permanent(inner.False())
	c.builtins = map[abi.BuiltinID]handle.Handle{}
	for _, id := range abi.Builtins() {
		if h := inner.Builtin(id); !h.IsNull() {
			c.builtins[id] = c.permanent(h)
		}
	}
	return c
}

var _ bridge.Bridge = (*Context)(nil)

func (c *Context) issue(inner handle.Handle, typeName string, permanent bool) (handle.Handle, bool) {
	i := c.next
	h, ok := handle.FromIndex(i)
	if !ok {
		return handle.Null, false
	}
	c.next++
	c.open[i] = &entry{inner: inner, typeName: typeName, seq: i, permanent: permanent}
	return h, true
}

func (c *Context) permanent(inner handle.Handle) handle.Handle {
	name := ""
	if obj, err := c.inner.Borrow(inner); err == nil {
		name = object.TypeName(obj)
	}
	h, _ := c.issue(inner, name, true)
	return h
}

func (c *Context) Name() string { return fmt.Sprintf("debug(%s)", c.inner.Name()) }

// Inner returns the wrapped backend.
func (c *Context) Inner() bridge.Bridge { return c.inner }

func (c *Context) Heap() *heap.Heap { return c.inner.Heap() }

func (c *Context) InlineScalars() bool { return c.inner.InlineScalars() }

// Factory returns the type factory bound to this context.
func (c *Context) Factory() *factory.Factory { return c.factory }

func (c *Context) lookup(h handle.Handle, what string) (uint64, *entry, error) {
	i, ok := h.Index()
	if !ok {
		return 0, nil, errz.ContractErrorf("%s: %s was not issued by this context", what, h)
	}
	if e, ok := c.open[i]; ok {
		return i, e, nil
	}
	if _, ok := c.closed[i]; ok {
		if what == "close" {
			return i, nil, errz.ContractErrorf("double close of %s", h).WithCode(errz.H4003)
		}
		return i, nil, errz.ContractErrorf("%s: use of %s after close", what, h).WithCode(errz.H4003)
	}
	return i, nil, bridge.ErrClosed(h)
}

func (c *Context) Borrow(h handle.Handle) (object.Object, error) {
	switch {
	case h.IsNull():
		return nil, bridge.ErrNull()
	case h.IsInline():
		obj, _ := bridge.FromInline(h)
		return obj, nil
	}
	_, e, err := c.lookup(h, "borrow")
	if err != nil {
		return nil, err
	}
	return c.inner.Borrow(e.inner)
}

func (c *Context) Own(obj object.Object) (handle.Handle, error) {
	typeName := object.TypeName(obj)
	inner, err := c.inner.Own(obj)
	if err != nil {
		return handle.Null, err
	}
	if inner.IsInline() {
		return inner, nil
	}
	h, ok := c.issue(inner, typeName, false)
	if !ok {
		_ = c.inner.Close(inner)
		return handle.Null, errz.AllocationErrorf("debug handle space exhausted")
	}
	return h, nil
}

// Close closes h. Closing a handle twice is a contract violation.
func (c *Context) Close(h handle.Handle) error {
	if h.IsNull() || h.IsInline() {
		return nil
	}
	i, e, err := c.lookup(h, "close")
	if err != nil {
		return c.inner.Heap().Raise(err)
	}
	if e.permanent {
		return nil
	}
	delete(c.open, i)
	c.closed[i] = struct{}{}
	return c.inner.Close(e.inner)
}

// OpenHandles returns the number of open, non-permanent handles.
func (c *Context) OpenHandles() int {
	n := 0
	for _, e := range c.open {
		if !e.permanent {
			n++
		}
	}
	return n
}

// Leaks lists the open, non-permanent handles in issue order.
func (c *Context) Leaks() []Leak {
	var leaks []Leak
	for i, e := range c.open {
		if e.permanent {
			continue
		}
		h, _ := handle.FromIndex(i)
		leaks = append(leaks, Leak{Handle: h, TypeName: e.typeName, Seq: e.seq})
	}
	sort.Slice(leaks, func(a, b int) bool { return leaks[a].Seq < leaks[b].Seq })
	return leaks
}

// Shutdown closes every leaked handle and reports each of them. The
// context remains usable.
func (c *Context) Shutdown() error {
	var result *multierror.Error
	for _, leak := range c.Leaks() {
		c.log.Warn().
			Str("handle", leak.Handle.String()).
			Str("type", leak.TypeName).
			Uint64("seq", leak.Seq).
			Msg("leaked handle")
		result = multierror.Append(result, errz.ContractErrorf("leaked handle %s", leak))
		if err := c.Close(leak.Handle); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (c *Context) Dup(h handle.Handle) (handle.Handle, error) { return ops.Dup(c, h) }
func (c *Context) AsReference(h handle.Handle) (uint64, error) {
	return ops.AsReference(c, h)
}

func (c *Context) None() handle.Handle  { return c.none }
func (c *Context) True() handle.Handle  { return c.tru }
func (c *Context) False() handle.Handle { return c.fals }

func (c *Context) Builtin(id abi.BuiltinID) handle.Handle { return c.builtins[id] }

func (c *Context) LongFromInt64(v int64) (handle.Handle, error) { return ops.LongFromInt64(c, v) }
func (c *Context) LongAsInt64(h handle.Handle) (int64, error)   { return ops.LongAsInt64(c, h) }
func (c *Context) FloatFromFloat64(v float64) (handle.Handle, error) {
	return ops.FloatFromFloat64(c, v)
}
func (c *Context) FloatAsFloat64(h handle.Handle) (float64, error) { return ops.FloatAsFloat64(c, h) }

func (c *Context) BoolFromBool(v bool) handle.Handle {
	if v {
		return c.tru
	}
	return c.fals
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
func (c *Context) Add(a, b handle.Handle) (handle.Handle, error) {
	return ops.Binary(c, heap.OpAdd, a, b)
}
func (c *Context) Subtract(a, b handle.Handle) (handle.Handle, error) {
	return ops.Binary(c, heap.OpSub, a, b)
}
func (c *Context) Multiply(a, b handle.Handle) (handle.Handle, error) {
	return ops.Binary(c, heap.OpMul, a, b)
}
func (c *Context) GetBuffer(h handle.Handle) (abi.Buffer, error) { return ops.GetBuffer(c, h) }

func (c *Context) Type(h handle.Handle) (handle.Handle, error)  { return ops.Type(c, h) }
func (c *Context) TypeCheck(h, typ handle.Handle) (bool, error) { return ops.TypeCheck(c, h, typ) }
func (c *Context) TypeName(h handle.Handle) (string, error)     { return ops.TypeName(c, h) }
func (c *Context) New(typ handle.Handle) (handle.Handle, abi.Payload, error) {
	return ops.NewVar(c, typ, 0)
}
func (c *Context) NewVar(typ handle.Handle, nitems int) (handle.Handle, abi.Payload, error) {
	return ops.NewVar(c, typ, nitems)
}
func (c *Context) AsStruct(h handle.Handle) (abi.Payload, error)       { return ops.AsStruct(c, h) }
func (c *Context) AsStructLegacy(h handle.Handle) (abi.Payload, error) { return ops.AsStructLegacy(c, h) }
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
