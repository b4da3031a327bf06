package heap

import (
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

// The constructors below return new references. Container constructors add
// a reference to each item they store; the caller keeps its own.

func (h *Heap) NewInt(v int64) (*object.Int, error) {
	obj := object.NewInt(v)
	if err := h.track(obj, objectCost); err != nil {
		return nil, err
	}
	return obj, nil
}

func (h *Heap) NewFloat(v float64) (*object.Float, error) {
	obj := object.NewFloat(v)
	if err := h.track(obj, objectCost); err != nil {
		return nil, err
	}
	return obj, nil
}

func (h *Heap) NewStr(s string) (*object.Str, error) {
	obj := object.NewStr(s)
	if err := h.track(obj, objectCost+int64(len(s))); err != nil {
		return nil, err
	}
	return obj, nil
}

func (h *Heap) NewBytes(b []byte) (*object.Bytes, error) {
	obj := object.NewBytes(b)
	if err := h.track(obj, objectCost+int64(len(b))); err != nil {
		return nil, err
	}
	return obj, nil
}

func (h *Heap) NewTuple(items []object.Object) (*object.Tuple, error) {
	if err := h.Reserve(containerCost(len(items))); err != nil {
		return nil, err
	}
	obj := object.NewTuple(h.retainAll(items))
	h.register(obj, containerCost(len(items)))
	return obj, nil
}

// NewStructSeq creates an instance of a struct sequence type.
func (h *Heap) NewStructSeq(typ *object.Type, items []object.Object) (*object.Tuple, error) {
	if !typ.IsSubtype(object.TupleType) || typ.Fields() == nil {
		return nil, errz.TypeErrorf("%s is not a struct sequence type", typ.Name())
	}
	if len(items) != len(typ.Fields()) {
		return nil, errz.ValueErrorf("%s takes %d items (%d given)", typ.Name(), len(typ.Fields()), len(items))
	}
	if err := h.Reserve(containerCost(len(items))); err != nil {
		return nil, err
	}
	obj := object.NewStructSeq(typ, h.retainAll(items))
	h.register(obj, containerCost(len(items)))
	return obj, nil
}

func (h *Heap) NewList(items []object.Object) (*object.List, error) {
	if err := h.Reserve(containerCost(len(items))); err != nil {
		return nil, err
	}
	obj := object.NewList(h.retainAll(items))
	h.register(obj, containerCost(len(items)))
	return obj, nil
}

// ListAppend appends item, adding a reference to it.
func (h *Heap) ListAppend(ls *object.List, item object.Object) error {
	if err := h.Reserve(entryCost); err != nil {
		return err
	}
	h.costs[ls.ID()] += entryCost
	h.IncRef(item)
	ls.Append(item)
	return nil
}

func (h *Heap) NewModule(name, doc string) (*object.Module, error) {
	obj := object.NewModule(name, doc)
	if err := h.track(obj, objectCost); err != nil {
		return nil, err
	}
	return obj, nil
}

// ModuleAdd stores value in the module namespace, adding a reference.
func (h *Heap) ModuleAdd(m *object.Module, name string, value object.Object) error {
	if err := h.Reserve(entryCost); err != nil {
		return err
	}
	h.costs[m.ID()] += entryCost
	h.IncRef(value)
	if old := m.Set(name, value); old != nil {
		h.Release(entryCost)
		h.costs[m.ID()] -= entryCost
		h.DecRef(old)
	}
	return nil
}

func (h *Heap) NewBuiltin(name, doc string, fn object.NativeFunc) (*object.Builtin, error) {
	obj := object.NewBuiltin(name, doc, fn)
	if err := h.track(obj, objectCost); err != nil {
		return nil, err
	}
	return obj, nil
}

// NewBoundMethod binds fn to self, adding a reference to self.
func (h *Heap) NewBoundMethod(name, doc string, fn object.NativeFunc, self object.Object) (*object.Builtin, error) {
	if err := h.Reserve(objectCost); err != nil {
		return nil, err
	}
	h.IncRef(self)
	obj := object.NewBoundMethod(name, doc, fn, self)
	h.register(obj, objectCost)
	return obj, nil
}

func (h *Heap) newSeqIter(seq object.Object) (*object.SeqIter, error) {
	if err := h.Reserve(objectCost); err != nil {
		return nil, err
	}
	h.IncRef(seq)
	obj := object.NewSeqIter(seq)
	h.register(obj, objectCost)
	return obj, nil
}

// NewException allocates an exception outside the budget so that failures
// can always be reported, out-of-memory included.
func (h *Heap) NewException(typ *object.Type, message string) *object.Exception {
	obj := object.NewException(typ, message)
	h.register(obj, 0)
	return obj
}

// NewInstance allocates instance storage for typ with nitems variable
// items. The storage is zeroed and its header written.
func (h *Heap) NewInstance(typ *object.Type, nitems int) (*object.Instance, error) {
	if nitems < 0 {
		return nil, errz.ValueErrorf("negative item count %d", nitems)
	}
	if nitems > 0 && typ.ItemSize() == 0 {
		return nil, errz.TypeErrorf("%s is not a variable-size type", typ.Name())
	}
	size := typ.BasicSize() + nitems*typ.ItemSize()
	if size < object.HeaderSize {
		size = object.HeaderSize
	}
	cost := objectCost + int64(size)
	if err := h.Reserve(cost); err != nil {
		return nil, err
	}
	block, err := h.arena.Alloc(size)
	if err != nil {
		h.Release(cost)
		h.log.Warn().Str("type", typ.Name()).Int("size", size).Err(err).Msg("instance storage exhausted")
		return nil, err
	}
	inst := object.NewInstance(typ, h.arena, block, nitems)
	h.register(inst, cost)
	inst.WriteHeader()
	return inst, nil
}

func (h *Heap) retainAll(items []object.Object) []object.Object {
	out := make([]object.Object, len(items))
	for i, item := range items {
		h.IncRef(item)
		out[i] = item
	}
	return out
}

func containerCost(n int) int64 {
	return objectCost + int64(n)*entryCost
}
