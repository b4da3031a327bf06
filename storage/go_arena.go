package storage

import "sync"

// GoArena keeps each payload in its own Go byte slice.
type GoArena struct {
	mu     sync.Mutex
	blocks map[uint64][]byte
	next   uint64
	inUse  int
}

var _ Arena = (*GoArena)(nil)

// NewGoArena creates an arena backed by the Go heap.
func NewGoArena() *GoArena {
	return &GoArena{blocks: map[uint64][]byte{}, next: alignment}
}

func (a *GoArena) Name() string { return "go" }

func (a *GoArena) Alloc(size int) (Block, error) {
	if size < 0 {
		return Block{}, errExhausted(size, a.Name())
	}
	n := align(size)
	if n == 0 {
		n = alignment
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	addr := a.next
	a.next += uint64(n)
	a.blocks[addr] = make([]byte, n)
	a.inUse += n
	return Block{Addr: addr, Size: uint32(n)}, nil
}

func (a *GoArena) Free(b Block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buf, ok := a.blocks[b.Addr]; ok {
		a.inUse -= len(buf)
		delete(a.blocks, b.Addr)
	}
}

func (a *GoArena) Bytes(b Block) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks[b.Addr]
}

func (a *GoArena) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

func (a *GoArena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blocks = map[uint64][]byte{}
	a.inUse = 0
	return nil
}
