package heap

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Protocol operations take borrowed arguments and return new references.

// Retain adds a reference to obj and returns it.
func (h *Heap) Retain(obj object.Object) object.Object {
	h.IncRef(obj)
	return obj
}

// GetAttr looks up name on obj: computed attributes, then members, then
// methods, then class attributes.
func (h *Heap) GetAttr(obj object.Object, name string) (object.Object, error) {
	switch o := obj.(type) {
	case *object.Module:
		if v, ok := o.Get(name); ok {
			return h.Retain(v), nil
		}
		switch name {
		case "__name__":
			return h.NewStr(o.Name())
		case "__doc__":
			return h.NewStr(o.Doc())
		}
		return nil, errz.AttributeErrorf("module '%s' has no attribute '%s'", o.Name(), name)
	case *object.Type:
		return h.typeAttr(o, name)
	case *object.Tuple:
		if fields := o.Type().Fields(); fields != nil {
			for i, f := range fields {
				if f == name && i < o.Len() {
					return h.Retain(o.Get(i)), nil
				}
			}
		}
	case *object.Exception:
		if name == "message" {
			return h.NewStr(o.Message())
		}
	}
	typ := obj.Type()
	if g, ok := typ.LookupGetSet(name); ok && g.Get != nil {
		return g.Get(obj)
	}
	if m, ok := typ.LookupMember(name); ok {
		inst, ok := obj.(*object.Instance)
		if !ok {
			return nil, errz.TypeErrorf("member '%s' requires an instance of %s", name, typ.Name())
		}
		return h.loadMember(inst, m)
	}
	if m, ok := typ.LookupMethod(name); ok {
		bm, err := h.NewBoundMethod(m.Name, m.Doc, m.Fn, obj)
		if err != nil {
			return nil, err
		}
		return bm, nil
	}
	if v, ok := typ.LookupAttr(name); ok {
		return h.Retain(v), nil
	}
	return nil, errz.AttributeErrorf("'%s' object has no attribute '%s'", typ.Name(), name)
}

func (h *Heap) typeAttr(t *object.Type, name string) (object.Object, error) {
	switch name {
	case "__name__":
		return h.NewStr(t.Name())
	case "__doc__":
		return h.NewStr(t.Doc())
	}
	if v, ok := t.LookupAttr(name); ok {
		return h.Retain(v), nil
	}
	if m, ok := t.LookupMethod(name); ok {
		return h.NewBuiltin(m.Name, m.Doc, m.Fn)
	}
	return nil, errz.AttributeErrorf("type object '%s' has no attribute '%s'", t.Name(), name)
}

// HasAttr reports whether GetAttr would succeed, without raising.
func (h *Heap) HasAttr(obj object.Object, name string) bool {
	v, err := h.GetAttr(obj, name)
	if err != nil {
		return false
	}
	h.DecRef(v)
	return true
}

// SetAttr stores value under name. A nil value deletes the attribute where
// that is supported.
func (h *Heap) SetAttr(obj object.Object, name string, value object.Object) error {
	switch o := obj.(type) {
	case *object.Module:
		if value == nil {
			return errz.AttributeErrorf("cannot delete module attribute '%s'", name)
		}
		return h.ModuleAdd(o, name, value)
	case *object.Type:
		if o.HasFlag(object.FlagBuiltin) {
			return errz.TypeErrorf("cannot set '%s' attribute of builtin type '%s'", name, o.Name())
		}
		if value == nil {
			return errz.AttributeErrorf("cannot delete class attribute '%s'", name)
		}
		h.IncRef(value)
		if old, ok := o.SetAttr(name, value); ok {
			h.DecRef(old)
		}
		return nil
	}
	typ := obj.Type()
	if g, ok := typ.LookupGetSet(name); ok {
		if g.Set == nil {
			return errz.AttributeErrorf("attribute '%s' of '%s' objects is not writable", name, typ.Name())
		}
		return g.Set(obj, value)
	}
	if m, ok := typ.LookupMember(name); ok {
		if m.ReadOnly {
			return errz.AttributeErrorf("readonly attribute '%s' of '%s' objects", name, typ.Name())
		}
		inst, ok := obj.(*object.Instance)
		if !ok {
			return errz.TypeErrorf("member '%s' requires an instance of %s", name, typ.Name())
		}
		return h.storeMember(inst, m, value)
	}
	return errz.AttributeErrorf("'%s' object has no attribute '%s'", typ.Name(), name)
}

func (h *Heap) loadMember(inst *object.Instance, m *object.MemberDescr) (object.Object, error) {
	v, err := inst.LoadMember(m)
	if err != nil {
		return nil, errz.SystemErrorf("%v", err)
	}
	switch m.Kind {
	case object.MemberShort, object.MemberInt, object.MemberLong:
		return h.NewInt(v.Int)
	case object.MemberFloat, object.MemberDouble:
		return h.NewFloat(v.Float)
	case object.MemberBool:
		return object.NewBool(v.Bool), nil
	case object.MemberObject:
		if v.Ref == 0 {
			return object.None, nil
		}
		ref, ok := h.Lookup(v.Ref)
		if !ok {
			return nil, errz.SystemErrorf("member '%s' refers to a dead object", m.Name)
		}
		return h.Retain(ref), nil
	}
	return nil, errz.SystemErrorf("member '%s' has unknown kind", m.Name)
}

func (h *Heap) storeMember(inst *object.Instance, m *object.MemberDescr, value object.Object) error {
	if m.Kind == object.MemberObject {
		var id uint64
		if value != nil {
			id = h.IDOf(value)
			h.IncRef(value)
		}
		old, err := inst.StoreRef(m.Offset, id)
		if err != nil {
			if value != nil {
				h.DecRef(value)
			}
			return errz.SystemErrorf("%v", err)
		}
		if prev, ok := h.Lookup(old); ok && old != 0 {
			h.DecRef(prev)
		}
		return nil
	}
	if value == nil {
		return errz.TypeErrorf("cannot delete member '%s'", m.Name)
	}
	var v object.MemberValue
	switch m.Kind {
	case object.MemberShort, object.MemberInt, object.MemberLong:
		i, ok := value.(*object.Int)
		if !ok {
			return errz.TypeErrorf("member '%s' expects int, got %s", m.Name, object.TypeName(value))
		}
		v.Int = i.Value()
	case object.MemberFloat, object.MemberDouble:
		switch f := value.(type) {
		case *object.Float:
			v.Float = f.Value()
		case *object.Int:
			v.Float = float64(f.Value())
		default:
			return errz.TypeErrorf("member '%s' expects float, got %s", m.Name, object.TypeName(value))
		}
	case object.MemberBool:
		b, ok := value.(*object.Bool)
		if !ok {
			return errz.TypeErrorf("member '%s' expects bool, got %s", m.Name, object.TypeName(value))
		}
		v.Bool = b.Value()
	}
	if err := inst.StoreMember(m, v); err != nil {
		return errz.ValueErrorf("%v", err)
	}
	return nil
}

// LoadField reads the reference stored at absolute offset off of inst.
func (h *Heap) LoadField(inst *object.Instance, off int) (object.Object, error) {
	id, err := inst.LoadRef(off)
	if err != nil {
		return nil, errz.ContractErrorf("%v", err)
	}
	if id == 0 {
		return nil, nil
	}
	obj, ok := h.Lookup(id)
	if !ok {
		return nil, errz.SystemErrorf("field at offset %d refers to a dead object", off)
	}
	return h.Retain(obj), nil
}

// StoreField stores a reference to value (nil clears) at absolute offset off
// of inst, releasing the previous occupant.
func (h *Heap) StoreField(inst *object.Instance, off int, value object.Object) error {
	var id uint64
	if value != nil {
		id = h.IDOf(value)
	}
	old, err := inst.StoreRef(off, id)
	if err != nil {
		return errz.ContractErrorf("%v", err)
	}
	if value != nil {
		h.IncRef(value)
	}
	if old != 0 {
		if prev, ok := h.Lookup(old); ok {
			h.DecRef(prev)
		}
	}
	return nil
}

// Call invokes callable with borrowed positional arguments. The last
// len(kwnames) arguments are keyword values.
func (h *Heap) Call(callable object.Object, args []object.Object, kwnames []string) (object.Object, error) {
	if len(kwnames) > len(args) {
		return nil, errz.ContractErrorf("%d keyword names for %d arguments", len(kwnames), len(args))
	}
	switch c := callable.(type) {
	case *object.Builtin:
		return c.Call(args, kwnames)
	case *object.Type:
		return h.construct(c, args, kwnames)
	}
	if call := callable.Type().Slots().Call; call != nil {
		return call(callable, args, kwnames)
	}
	return nil, errz.TypeErrorf("'%s' object is not callable", callable.Type().Name())
}

func (h *Heap) construct(t *object.Type, args []object.Object, kwnames []string) (object.Object, error) {
	if t.Fields() != nil && t.IsSubtype(object.TupleType) {
		if len(kwnames) > 0 {
			return nil, errz.TypeErrorf("%s() takes no keyword arguments", t.Name())
		}
		return h.NewStructSeq(t, args)
	}
	if t.HasFlag(object.FlagBuiltin) {
		return nil, errz.TypeErrorf("cannot create '%s' instances", t.Name())
	}
	slots := t.Slots()
	var obj object.Object
	if slots.New != nil {
		var err error
		if obj, err = slots.New(t, args, kwnames); err != nil {
			return nil, err
		}
	} else {
		if slots.Init == nil && len(args) > 0 {
			return nil, errz.TypeErrorf("%s() takes no arguments", t.Name())
		}
		inst, err := h.NewInstance(t, 0)
		if err != nil {
			return nil, err
		}
		obj = inst
	}
	if slots.Init != nil && obj.Type().IsSubtype(t) {
		if err := slots.Init(obj, args, kwnames); err != nil {
			h.DecRef(obj)
			return nil, err
		}
	}
	return obj, nil
}

// CallMethod looks up name on self and calls it.
func (h *Heap) CallMethod(self object.Object, name string, args []object.Object, kwnames []string) (object.Object, error) {
	fn, err := h.GetAttr(self, name)
	if err != nil {
		return nil, err
	}
	defer h.DecRef(fn)
	return h.Call(fn, args, kwnames)
}

func (h *Heap) Repr(obj object.Object) (object.Object, error) {
	if repr := obj.Type().Slots().Repr; repr != nil {
		return h.checkStr(repr(obj))
	}
	return h.NewStr(obj.Inspect())
}

func (h *Heap) Str(obj object.Object) (object.Object, error) {
	if s, ok := obj.(*object.Str); ok {
		return h.Retain(s), nil
	}
	if str := obj.Type().Slots().Str; str != nil {
		return h.checkStr(str(obj))
	}
	if exc, ok := obj.(*object.Exception); ok {
		return h.NewStr(exc.Message())
	}
	return h.Repr(obj)
}

func (h *Heap) checkStr(obj object.Object, err error) (object.Object, error) {
	if err != nil {
		return nil, err
	}
	if _, ok := obj.(*object.Str); !ok {
		t := object.TypeName(obj)
		h.DecRef(obj)
		return nil, errz.TypeErrorf("__repr__/__str__ returned non-string (type %s)", t)
	}
	return obj, nil
}

// Hash returns the hash of obj. Mutable builtin containers are unhashable.
func (h *Heap) Hash(obj object.Object) (int64, error) {
	if hash := obj.Type().Slots().Hash; hash != nil {
		return hash(obj)
	}
	switch o := obj.(type) {
	case *object.Int:
		return o.Value(), nil
	case *object.Bool:
		if o.Value() {
			return 1, nil
		}
		return 0, nil
	case *object.Float:
		f := o.Value()
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<63 {
			return int64(f), nil
		}
		return int64(math.Float64bits(f)), nil
	case *object.Str:
		return hashBytes([]byte(o.Value())), nil
	case *object.Bytes:
		return hashBytes(o.Value()), nil
	case *object.Tuple:
		acc := int64(0x345678)
		for _, item := range o.Items() {
			ih, err := h.Hash(item)
			if err != nil {
				return 0, err
			}
			acc = (acc ^ ih) * 1000003
		}
		return acc, nil
	case *object.List:
		return 0, errz.TypeErrorf("unhashable type: 'list'")
	}
	return int64(h.IDOf(obj)), nil
}

func hashBytes(b []byte) int64 {
	f := fnv.New64a()
	_, _ = f.Write(b)
	return int64(f.Sum64())
}

// RichCompare compares a and b and returns the result object.
func (h *Heap) RichCompare(a, b object.Object, op object.CompareOp) (object.Object, error) {
	if cmp := a.Type().Slots().RichCompare; cmp != nil {
		return cmp(a, b, op)
	}
	if cmp := b.Type().Slots().RichCompare; cmp != nil {
		return cmp(b, a, swapped(op))
	}
	res, err := h.compareBuiltin(a, b, op)
	if err != nil {
		return nil, err
	}
	return object.NewBool(res), nil
}

func swapped(op object.CompareOp) object.CompareOp {
	switch op {
	case object.LT:
		return object.GT
	case object.LE:
		return object.GE
	case object.GT:
		return object.LT
	case object.GE:
		return object.LE
	}
	return op
}

type ordered interface {
	Compare(other object.Object) (int, bool)
}

func (h *Heap) compareBuiltin(a, b object.Object, op object.CompareOp) (bool, error) {
	if op == object.EQ {
		return a == b || a.Equals(b), nil
	}
	if op == object.NE {
		return !(a == b || a.Equals(b)), nil
	}
	if ca, ok := a.(ordered); ok {
		if cmp, ok := ca.Compare(b); ok {
			return op.Apply(cmp), nil
		}
	}
	var xs, ys []object.Object
	switch a := a.(type) {
	case *object.Tuple:
		if b, ok := b.(*object.Tuple); ok {
			xs, ys = a.Items(), b.Items()
		}
	case *object.List:
		if b, ok := b.(*object.List); ok {
			xs, ys = a.Items(), b.Items()
		}
	}
	if xs != nil || ys != nil {
		for i := 0; i < len(xs) && i < len(ys); i++ {
			if xs[i].Equals(ys[i]) {
				continue
			}
			return h.compareBuiltin(xs[i], ys[i], op)
		}
		return op.Apply(len(xs) - len(ys)), nil
	}
	return false, errz.TypeErrorf("'%s' not supported between instances of '%s' and '%s'",
		op, a.Type().Name(), b.Type().Name())
}

// RichCompareBool compares and interprets the result as a truth value.
// Identical objects are equal without consulting any slot.
func (h *Heap) RichCompareBool(a, b object.Object, op object.CompareOp) (bool, error) {
	if a == b {
		if op == object.EQ {
			return true, nil
		}
		if op == object.NE {
			return false, nil
		}
	}
	res, err := h.RichCompare(a, b, op)
	if err != nil {
		return false, err
	}
	defer h.DecRef(res)
	return h.IsTrue(res)
}

// IsTrue returns the truth value of obj.
func (h *Heap) IsTrue(obj object.Object) (bool, error) {
	switch o := obj.(type) {
	case *object.Bool:
		return o.Value(), nil
	case *object.NoneValue:
		return false, nil
	case *object.Int:
		return o.Value() != 0, nil
	case *object.Float:
		return o.Value() != 0, nil
	case *object.Str:
		return o.Value() != "", nil
	case *object.Bytes:
		return o.Len() > 0, nil
	case *object.Tuple:
		return o.Len() > 0, nil
	case *object.List:
		return o.Len() > 0, nil
	}
	if length := obj.Type().Slots().Len; length != nil {
		n, err := length(obj)
		return n > 0, err
	}
	return true, nil
}

// Len returns the length of a sized object.
func (h *Heap) Len(obj object.Object) (int, error) {
	switch o := obj.(type) {
	case *object.Str:
		return utf8.RuneCountInString(o.Value()), nil
	case *object.Bytes:
		return o.Len(), nil
	case *object.Tuple:
		return o.Len(), nil
	case *object.List:
		return o.Len(), nil
	}
	if length := obj.Type().Slots().Len; length != nil {
		n, err := length(obj)
		if err == nil && n < 0 {
			return 0, errz.ValueErrorf("__len__() should return >= 0")
		}
		return n, err
	}
	return 0, errz.TypeErrorf("object of type '%s' has no len()", obj.Type().Name())
}

func normIndex(i, n int, what string) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, errz.IndexErrorf("%s index out of range", what)
	}
	return i, nil
}

// GetItem returns obj[key].
func (h *Heap) GetItem(obj, key object.Object) (object.Object, error) {
	if idx, ok := key.(*object.Int); ok {
		switch o := obj.(type) {
		case *object.Tuple, *object.List, *object.Str, *object.Bytes:
			return h.GetItemInt(o, int(idx.Value()))
		}
	}
	if get := obj.Type().Slots().GetItem; get != nil {
		return get(obj, key)
	}
	switch obj.(type) {
	case *object.Tuple, *object.List, *object.Str, *object.Bytes:
		return nil, errz.TypeErrorf("%s indices must be integers, not %s", obj.Type().Name(), key.Type().Name())
	}
	return nil, errz.TypeErrorf("'%s' object is not subscriptable", obj.Type().Name())
}

// GetItemInt returns obj[i] for sequences, with negative indexing.
func (h *Heap) GetItemInt(obj object.Object, i int) (object.Object, error) {
	switch o := obj.(type) {
	case *object.Tuple:
		i, err := normIndex(i, o.Len(), "tuple")
		if err != nil {
			return nil, err
		}
		return h.Retain(o.Get(i)), nil
	case *object.List:
		i, err := normIndex(i, o.Len(), "list")
		if err != nil {
			return nil, err
		}
		return h.Retain(o.Get(i)), nil
	case *object.Str:
		runes := []rune(o.Value())
		i, err := normIndex(i, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return h.NewStr(string(runes[i]))
	case *object.Bytes:
		b := o.Value()
		i, err := normIndex(i, len(b), "bytes")
		if err != nil {
			return nil, err
		}
		return h.NewInt(int64(b[i]))
	}
	key, err := h.NewInt(int64(i))
	if err != nil {
		return nil, err
	}
	defer h.DecRef(key)
	return h.GetItem(obj, key)
}

// SetItem performs obj[key] = value.
func (h *Heap) SetItem(obj, key, value object.Object) error {
	switch o := obj.(type) {
	case *object.List:
		if value == nil {
			return errz.TypeErrorf("'list' object doesn't support item deletion")
		}
		idx, ok := key.(*object.Int)
		if !ok {
			return errz.TypeErrorf("list indices must be integers, not %s", key.Type().Name())
		}
		i, err := normIndex(int(idx.Value()), o.Len(), "list assignment")
		if err != nil {
			return err
		}
		h.IncRef(value)
		h.DecRef(o.Set(i, value))
		return nil
	}
	if set := obj.Type().Slots().SetItem; set != nil {
		return set(obj, key, value)
	}
	if value == nil {
		return errz.TypeErrorf("'%s' object doesn't support item deletion", obj.Type().Name())
	}
	return errz.TypeErrorf("'%s' object does not support item assignment", obj.Type().Name())
}

// Contains reports whether item is in container.
func (h *Heap) Contains(container, item object.Object) (bool, error) {
	switch c := container.(type) {
	case *object.Str:
		s, ok := item.(*object.Str)
		if !ok {
			return false, errz.TypeErrorf("'in <string>' requires string as left operand, not %s", item.Type().Name())
		}
		return strings.Contains(c.Value(), s.Value()), nil
	case *object.Tuple, *object.List:
		var items []object.Object
		if t, ok := c.(*object.Tuple); ok {
			items = t.Items()
		} else {
			items = c.(*object.List).Items()
		}
		for _, x := range items {
			eq, err := h.RichCompareBool(x, item, object.EQ)
			if err != nil {
				return false, err
			}
			if eq {
				return true, nil
			}
		}
		return false, nil
	}
	it, err := h.Iter(container)
	if err != nil {
		return false, errz.TypeErrorf("argument of type '%s' is not iterable", container.Type().Name())
	}
	defer h.DecRef(it)
	for {
		x, err := h.IterNext(it)
		if IsStopIteration(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		eq, err := h.RichCompareBool(x, item, object.EQ)
		h.DecRef(x)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
}

// Iter returns an iterator over obj.
func (h *Heap) Iter(obj object.Object) (object.Object, error) {
	switch o := obj.(type) {
	case *object.Tuple, *object.List:
		return h.newSeqIter(o)
	case *object.SeqIter:
		return h.Retain(o), nil
	}
	if iter := obj.Type().Slots().Iter; iter != nil {
		return iter(obj)
	}
	return nil, errz.TypeErrorf("'%s' object is not iterable", obj.Type().Name())
}

// IterNext advances it. Exhaustion is reported as a StopIteration error.
func (h *Heap) IterNext(it object.Object) (object.Object, error) {
	if si, ok := it.(*object.SeqIter); ok {
		item, ok := si.Next()
		if !ok {
			return nil, errz.StopIterationError()
		}
		return h.Retain(item), nil
	}
	if next := it.Type().Slots().IterNext; next != nil {
		return next(it)
	}
	return nil, errz.TypeErrorf("'%s' object is not an iterator", it.Type().Name())
}

// BinaryOp identifies an arithmetic operation.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	default:
		return "*"
	}
}

func (op BinaryOp) slot(s *object.Slots) object.BinaryFunc {
	switch op {
	case OpAdd:
		return s.Add
	case OpSub:
		return s.Sub
	default:
		return s.Mul
	}
}

// Binary applies op to a and b.
func (h *Heap) Binary(op BinaryOp, a, b object.Object) (object.Object, error) {
	if fn := op.slot(a.Type().Slots()); fn != nil {
		return fn(a, b)
	}
	switch x := a.(type) {
	case *object.Int:
		switch y := b.(type) {
		case *object.Int:
			switch op {
			case OpAdd:
				return h.NewInt(x.Value() + y.Value())
			case OpSub:
				return h.NewInt(x.Value() - y.Value())
			default:
				return h.NewInt(x.Value() * y.Value())
			}
		case *object.Float:
			return h.floatOp(op, float64(x.Value()), y.Value())
		}
	case *object.Float:
		switch y := b.(type) {
		case *object.Int:
			return h.floatOp(op, x.Value(), float64(y.Value()))
		case *object.Float:
			return h.floatOp(op, x.Value(), y.Value())
		}
	case *object.Str:
		if y, ok := b.(*object.Str); ok && op == OpAdd {
			return h.NewStr(x.Value() + y.Value())
		}
	}
	return nil, errz.TypeErrorf("unsupported operand type(s) for %s: '%s' and '%s'",
		op, a.Type().Name(), b.Type().Name())
}

func (h *Heap) floatOp(op BinaryOp, x, y float64) (object.Object, error) {
	switch op {
	case OpAdd:
		return h.NewFloat(x + y)
	case OpSub:
		return h.NewFloat(x - y)
	default:
		return h.NewFloat(x * y)
	}
}

// GetBuffer returns a copy of the bytes exposed by obj.
func (h *Heap) GetBuffer(obj object.Object) ([]byte, error) {
	if b, ok := obj.(*object.Bytes); ok {
		return b.Value(), nil
	}
	slots := obj.Type().Slots()
	if slots.GetBuffer == nil {
		return nil, errz.TypeErrorf("a bytes-like object is required, not '%s'", obj.Type().Name())
	}
	data, err := slots.GetBuffer(obj)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), data...)
	if slots.ReleaseBuffer != nil {
		slots.ReleaseBuffer(obj)
	}
	return out, nil
}
