package heap

import (
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

// TypeCost returns the accounted size of a type object. Descriptor tables
// are reserved separately by the caller.
func TypeCost() int64 { return typeCost }

// NewType allocates a type from an assembled layout. The type itself is
// immortal; it stays registered until DiscardType or heap shutdown.
func (h *Heap) NewType(l object.Layout) (*object.Type, error) {
	if err := h.Reserve(typeCost); err != nil {
		return nil, err
	}
	l.Flags |= object.FlagHeapType
	t, err := object.NewType(l)
	if err != nil {
		h.Release(typeCost)
		return nil, errz.TypeErrorf("%s: %v", l.Name, err).WithCode(errz.H3002)
	}
	id := h.IDOf(t)
	h.types = append(h.types, t)
	h.log.Debug().
		Str("type", t.QualifiedName()).
		Uint64("id", id).
		Int("basicsize", t.BasicSize()).
		Int("payload_offset", t.PayloadOffset()).
		Bool("legacy", t.IsLegacy()).
		Msg("type created")
	return t, nil
}

// DiscardType removes a type that failed post-creation validation. It must
// not have instances.
func (h *Heap) DiscardType(t *object.Type) {
	id, ok := h.immortalIDs[t]
	if !ok {
		return
	}
	delete(h.immortalIDs, t)
	delete(h.objects, id)
	for i, other := range h.types {
		if other == t {
			h.types = append(h.types[:i], h.types[i+1:]...)
			break
		}
	}
	h.Release(typeCost + h.tables[t])
	delete(h.tables, t)
	h.log.Debug().Str("type", t.QualifiedName()).Msg("type discarded")
}

// Types returns the types created on this heap, in creation order.
func (h *Heap) Types() []*object.Type {
	return h.types
}

// AdoptTables transfers n reserved bytes of descriptor tables to t. They
// are released with the type.
func (h *Heap) AdoptTables(t *object.Type, n int64) {
	h.tables[t] += n
}

// TableBytes returns the descriptor table bytes owned by t.
func (h *Heap) TableBytes(t *object.Type) int64 {
	return h.tables[t]
}
