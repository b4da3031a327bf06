package heap

import (
	"github.com/deepnoodle-ai/hbridge/object"
)

// isContainer reports whether obj takes part in cycle detection.
func isContainer(obj object.Object) bool {
	switch obj := obj.(type) {
	case *object.Tuple, *object.List, *object.Module, *object.Builtin, *object.SeqIter:
		return true
	case *object.Instance:
		return obj.Type().HasFlag(object.FlagHaveGC) || len(obj.Type().TraverseChain()) > 0
	}
	return false
}

// Collect finds groups of containers that are only reachable from each
// other and frees them. It returns the number of objects freed.
func (h *Heap) Collect() int {
	h.stats.Collections++
	gcRefs := map[object.Object]int64{}
	for id := range h.costs {
		obj := h.objects[id]
		if isContainer(obj) {
			gcRefs[obj] = obj.ObjectHeader().RefCount()
		}
	}
	// Subtract references that originate inside the candidate set.
	for obj := range gcRefs {
		for _, ref := range h.referents(obj) {
			if _, ok := gcRefs[ref]; ok {
				gcRefs[ref]--
			}
		}
	}
	// Everything reachable from an externally referenced object survives.
	reachable := map[object.Object]bool{}
	var stack []object.Object
	for obj, n := range gcRefs {
		if n > 0 {
			reachable[obj] = true
			stack = append(stack, obj)
		}
	}
	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ref := range h.referents(obj) {
			if _, ok := gcRefs[ref]; ok && !reachable[ref] {
				reachable[ref] = true
				stack = append(stack, ref)
			}
		}
	}
	var garbage []object.Object
	for obj := range gcRefs {
		if !reachable[obj] {
			garbage = append(garbage, obj)
		}
	}
	if len(garbage) == 0 {
		return 0
	}
	before := h.stats.Freed
	// Hold every member of the garbage set while the cycles are broken so
	// that none is freed in the middle of clearing another.
	for _, obj := range garbage {
		obj.ObjectHeader().IncRef()
	}
	for _, obj := range garbage {
		h.clearRefs(obj)
	}
	for _, obj := range garbage {
		h.DecRef(obj)
	}
	freed := h.stats.Freed - before
	h.stats.Collected += freed
	h.log.Debug().Int("unreachable", len(garbage)).Int("freed", freed).Msg("collection finished")
	return freed
}
