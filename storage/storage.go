// Package storage provides the memory that backs instance payloads.
//
// The heap never hands out Go pointers into payload memory for longer than a
// single operation: callers hold a Block and ask the Arena for a fresh view
// each time, because some arenas (wasm linear memory) move on growth.
package storage

import (
	"github.com/deepnoodle-ai/hbridge/errz"
)

// Block identifies an allocated region inside an Arena.
type Block struct {
	Addr uint64
	Size uint32
}

// IsZero reports whether the block is the null block.
func (b Block) IsZero() bool { return b.Addr == 0 }

// Arena allocates zeroed payload regions.
type Arena interface {
	// Name identifies the arena implementation ("go", "wasm").
	Name() string

	// Alloc returns a zeroed region of at least size bytes.
	Alloc(size int) (Block, error)

	// Free releases a region previously returned by Alloc.
	Free(b Block)

	// Bytes returns a view of the region. The view is only valid until the
	// next call to Alloc.
	Bytes(b Block) []byte

	// InUse returns the number of bytes currently allocated.
	InUse() int

	// Close releases all memory held by the arena.
	Close() error
}

const alignment = 8

func align(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

func errExhausted(size int, arena string) error {
	return errz.AllocationErrorf("%s arena: cannot allocate %d bytes", arena, size).WithCode(errz.H1002)
}
