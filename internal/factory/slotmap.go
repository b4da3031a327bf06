package factory

import (
	"fmt"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/trampoline"
	"github.com/deepnoodle-ai/hbridge/object"
)

// Target is the type under construction that a slot is installed into.
type Target struct {
	Bridge bridge.Bridge
	Name   string
	Layout *object.Layout
	// Base is the storage offset where the struct view passed to payload
	// hooks starts.
	Base int
}

// Installer places the native adapter for one slot into the layout.
type Installer func(t *Target, slot abi.SlotID, impl any) error

// SlotMap maps abi slots to the places a backend keeps them. Slots that are
// missing from the map are rejected at type creation.
type SlotMap map[abi.SlotID]Installer

func slotName(t *Target, slot abi.SlotID) string {
	return fmt.Sprintf("%s.__%s__", t.Name, slot)
}

// install builds an Installer from an adapter constructor and a setter.
func install[F any](adapt func(bridge.Bridge, string, any) (F, error), set func(*object.Slots, F)) Installer {
	return func(t *Target, slot abi.SlotID, impl any) error {
		fn, err := adapt(t.Bridge, slotName(t, slot), impl)
		if err != nil {
			return err
		}
		set(&t.Layout.Slots, fn)
		return nil
	}
}

// DefaultSlotMap returns the slot table of the heap runtime. The destroy
// slot has no slot of its own: it becomes the type's destructor and runs
// from the generic deallocation path.
func DefaultSlotMap() SlotMap {
	return SlotMap{
		abi.SlotNew:           install(trampoline.New, func(s *object.Slots, f object.NewFunc) { s.New = f }),
		abi.SlotInit:          install(trampoline.Init, func(s *object.Slots, f object.InitFunc) { s.Init = f }),
		abi.SlotCall:          install(trampoline.Call, func(s *object.Slots, f object.NativeFunc) { s.Call = f }),
		abi.SlotRepr:          install(trampoline.Unary, func(s *object.Slots, f object.UnaryFunc) { s.Repr = f }),
		abi.SlotStr:           install(trampoline.Unary, func(s *object.Slots, f object.UnaryFunc) { s.Str = f }),
		abi.SlotIter:          install(trampoline.Unary, func(s *object.Slots, f object.UnaryFunc) { s.Iter = f }),
		abi.SlotIterNext:      install(trampoline.IterNext, func(s *object.Slots, f object.UnaryFunc) { s.IterNext = f }),
		abi.SlotHash:          install(trampoline.Hash, func(s *object.Slots, f object.HashFunc) { s.Hash = f }),
		abi.SlotRichCompare:   install(trampoline.RichCompare, func(s *object.Slots, f object.RichCompareFunc) { s.RichCompare = f }),
		abi.SlotLen:           install(trampoline.Len, func(s *object.Slots, f object.LenFunc) { s.Len = f }),
		abi.SlotGetItem:       install(trampoline.Binary, func(s *object.Slots, f object.BinaryFunc) { s.GetItem = f }),
		abi.SlotSetItem:       install(trampoline.SetItem, func(s *object.Slots, f object.SetItemFunc) { s.SetItem = f }),
		abi.SlotAdd:           install(trampoline.Binary, func(s *object.Slots, f object.BinaryFunc) { s.Add = f }),
		abi.SlotSubtract:      install(trampoline.Binary, func(s *object.Slots, f object.BinaryFunc) { s.Sub = f }),
		abi.SlotMultiply:      install(trampoline.Binary, func(s *object.Slots, f object.BinaryFunc) { s.Mul = f }),
		abi.SlotGetBuffer:     install(trampoline.GetBuffer, func(s *object.Slots, f object.GetBufferFunc) { s.GetBuffer = f }),
		abi.SlotReleaseBuffer: install(trampoline.ReleaseBuffer, func(s *object.Slots, f object.ReleaseBufferFunc) { s.ReleaseBuffer = f }),
		abi.SlotFinalize:      install(trampoline.Finalize, func(s *object.Slots, f object.FinalizeFunc) { s.Finalize = f }),
		abi.SlotTraverse: func(t *Target, slot abi.SlotID, impl any) error {
			fn, err := trampoline.Traverse(slotName(t, slot), impl, t.Base)
			if err != nil {
				return err
			}
			t.Layout.Slots.Traverse = fn
			return nil
		},
		abi.SlotDestroy: func(t *Target, slot abi.SlotID, impl any) error {
			fn, err := trampoline.Destroy(t.Bridge, slotName(t, slot), impl, t.Base)
			if err != nil {
				return err
			}
			t.Layout.Destroy = fn
			return nil
		},
		abi.SlotDealloc: func(t *Target, slot abi.SlotID, impl any) error {
			fn, err := trampoline.Destroy(t.Bridge, slotName(t, slot), impl, 0)
			if err != nil {
				return err
			}
			t.Layout.Slots.Dealloc = fn
			return nil
		},
	}
}

// Clone returns a copy of m that can be modified independently.
func (m SlotMap) Clone() SlotMap {
	out := make(SlotMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
