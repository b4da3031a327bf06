package heap

import (
	"github.com/deepnoodle-ai/hbridge/object"
)

// dealloc tears down an object whose reference count reached zero.
func (h *Heap) dealloc(obj object.Object) {
	h.clearRefs(obj)
	if inst, ok := obj.(*object.Instance); ok {
		for _, fn := range inst.Type().DestroyChain() {
			fn(inst)
		}
		inst.Release()
	}
	h.unregister(obj)
}

func (h *Heap) unregister(obj object.Object) {
	id := obj.ObjectHeader().ID()
	if cost, ok := h.costs[id]; ok {
		h.Release(cost)
		delete(h.costs, id)
	}
	delete(h.objects, id)
	h.stats.Freed++
}

// clearRefs drops every reference obj holds to other objects. For
// instances, finalizers run first, then every reference slot is zeroed and
// released.
func (h *Heap) clearRefs(obj object.Object) {
	var released []object.Object
	switch obj := obj.(type) {
	case *object.Tuple:
		released = obj.ClearItems()
	case *object.List:
		released = obj.ClearItems()
	case *object.Module:
		released = obj.ClearAttrs()
	case *object.Builtin:
		if self := obj.ClearSelf(); self != nil {
			released = append(released, self)
		}
	case *object.SeqIter:
		released = append(released, obj.ClearSeq())
	case *object.Instance:
		if obj.IsReleased() {
			return
		}
		if obj.MarkFinalized() {
			for _, fn := range obj.Type().FinalizeChain() {
				fn(obj)
			}
		}
		for _, off := range h.refOffsets(obj) {
			id, err := obj.StoreRef(off, 0)
			if err != nil || id == 0 {
				continue
			}
			if ref, ok := h.objects[id]; ok {
				released = append(released, ref)
			}
		}
	}
	for _, ref := range released {
		h.DecRef(ref)
	}
}

// refOffsets returns the storage offsets of every reference slot of inst:
// object members plus whatever the traverse chain reports.
func (h *Heap) refOffsets(inst *object.Instance) []int {
	seen := map[int]bool{}
	var offs []int
	add := func(off int) error {
		if !seen[off] {
			seen[off] = true
			offs = append(offs, off)
		}
		return nil
	}
	for _, m := range inst.Type().Members() {
		if m.Kind == object.MemberObject {
			_ = add(m.Offset)
		}
	}
	for _, fn := range inst.Type().TraverseChain() {
		if err := fn(inst, add); err != nil {
			h.log.Warn().Err(err).Str("type", inst.Type().Name()).Msg("traverse failed")
		}
	}
	return offs
}

// referents returns the objects directly referenced by obj.
func (h *Heap) referents(obj object.Object) []object.Object {
	inst, ok := obj.(*object.Instance)
	if !ok {
		return object.Referents(obj)
	}
	if inst.IsReleased() {
		return nil
	}
	var out []object.Object
	for _, off := range h.refOffsets(inst) {
		id, err := inst.LoadRef(off)
		if err != nil || id == 0 {
			continue
		}
		if ref, ok := h.objects[id]; ok {
			out = append(out, ref)
		}
	}
	return out
}
