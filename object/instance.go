package object

import (
	"encoding/binary"
	"fmt"

	"github.com/deepnoodle-ai/hbridge/storage"
)

// Instance is an object of a type created from a layout. Its storage is a
// block in an arena: the first HeaderSize bytes belong to the runtime, the
// rest is payload as described by the type.
type Instance struct {
	Header
	typ       *Type
	arena     storage.Arena
	block     storage.Block
	nitems    int
	finalized bool
}

// NewInstance wraps an allocated block. The caller registers the instance
// with its heap, which also writes the storage header.
func NewInstance(typ *Type, arena storage.Arena, block storage.Block, nitems int) *Instance {
	return &Instance{Header: Header{refcnt: 1}, typ: typ, arena: arena, block: block, nitems: nitems}
}

func (i *Instance) Type() *Type { return i.typ }

func (i *Instance) Block() storage.Block { return i.block }

func (i *Instance) Arena() storage.Arena { return i.arena }

// NItems is the item count of a variable-size instance.
func (i *Instance) NItems() int { return i.nitems }

// Storage returns a fresh view of the whole instance storage.
func (i *Instance) Storage() []byte {
	if i.block.IsZero() {
		return nil
	}
	return i.arena.Bytes(i.block)
}

// Payload returns a view of the storage starting at the payload offset of
// typ, which must be the instance's type or one of its ancestors.
func (i *Instance) Payload(typ *Type) []byte {
	s := i.Storage()
	if s == nil || typ.payloadOffset > len(s) {
		return nil
	}
	return s[typ.payloadOffset:]
}

// WriteHeader stores the heap id and the storage size in the header region.
func (i *Instance) WriteHeader() {
	s := i.Storage()
	if len(s) < HeaderSize {
		return
	}
	binary.LittleEndian.PutUint64(s[0:8], i.id)
	binary.LittleEndian.PutUint64(s[8:16], uint64(len(s)))
}

// Release frees the storage block. Further access returns nil views.
func (i *Instance) Release() {
	if !i.block.IsZero() {
		i.arena.Free(i.block)
		i.block = storage.Block{}
	}
}

// MarkFinalized records that the finalizers ran. It returns false if they
// already had.
func (i *Instance) MarkFinalized() bool {
	if i.finalized {
		return false
	}
	i.finalized = true
	return true
}

// IsReleased reports whether the storage was freed.
func (i *Instance) IsReleased() bool { return i.block.IsZero() }

func (i *Instance) Inspect() string {
	return fmt.Sprintf("<%s object at %#x>", i.typ.QualifiedName(), i.id)
}

func (i *Instance) String() string { return i.Inspect() }

func (i *Instance) Interface() any { return i }

func (i *Instance) Equals(other Object) bool { return other == Object(i) }
