package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const pageSize = 65536

// memoryModule is a minimal wasm binary that defines and exports one
// growable linear memory with an initial size of one page.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: min 1 page, no max
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

type freeRange struct {
	addr uint32
	size uint32
}

// WasmArena places payloads in the linear memory of a sandboxed wasm
// instance. Memory growth is bounded by the runtime's page limit, which makes
// allocation failure a real, observable condition.
type WasmArena struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory
	top     uint32
	free    []freeRange
	inUse   int
}

var _ Arena = (*WasmArena)(nil)

// NewWasmArena instantiates a memory-only wasm module limited to maxPages
// pages of 64 KiB.
func NewWasmArena(ctx context.Context, maxPages uint32) (*WasmArena, error) {
	if maxPages == 0 {
		maxPages = 1
	}
	cfg := wazero.NewRuntimeConfigInterpreter().WithMemoryLimitPages(maxPages)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	mod, err := rt.Instantiate(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("wasm arena: instantiate: %w", err)
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("wasm arena: module exports no memory")
	}
	return &WasmArena{
		runtime: rt,
		module:  mod,
		memory:  mem,
		top:     alignment, // address 0 is the null block
	}, nil
}

func (a *WasmArena) Name() string { return "wasm" }

func (a *WasmArena) Alloc(size int) (Block, error) {
	if size < 0 || size > int(^uint32(0))-alignment {
		return Block{}, errExhausted(size, a.Name())
	}
	n := uint32(align(size))
	if n == 0 {
		n = alignment
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	addr, ok := a.takeFree(n)
	if !ok {
		end := uint64(a.top) + uint64(n)
		if end > uint64(a.memory.Size()) {
			missing := end - uint64(a.memory.Size())
			pages := uint32((missing + pageSize - 1) / pageSize)
			if _, grown := a.memory.Grow(pages); !grown {
				return Block{}, errExhausted(size, a.Name())
			}
		}
		addr = a.top
		a.top += n
	}
	view, ok := a.memory.Read(addr, n)
	if !ok {
		return Block{}, errExhausted(size, a.Name())
	}
	clear(view)
	a.inUse += int(n)
	return Block{Addr: uint64(addr), Size: n}, nil
}

// takeFree finds the first free range that fits n bytes.
func (a *WasmArena) takeFree(n uint32) (uint32, bool) {
	for i, r := range a.free {
		if r.size < n {
			continue
		}
		if r.size == n {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = freeRange{addr: r.addr + n, size: r.size - n}
		}
		return r.addr, true
	}
	return 0, false
}

func (a *WasmArena) Free(b Block) {
	if b.IsZero() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse -= int(b.Size)
	a.free = append(a.free, freeRange{addr: uint32(b.Addr), size: b.Size})
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].addr < a.free[j].addr })
	merged := a.free[:0]
	for _, r := range a.free {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.addr+last.size == r.addr {
				last.size += r.size
				continue
			}
		}
		merged = append(merged, r)
	}
	a.free = merged
	// Give the tail back to the bump pointer.
	if len(a.free) > 0 {
		last := a.free[len(a.free)-1]
		if last.addr+last.size == a.top {
			a.top = last.addr
			a.free = a.free[:len(a.free)-1]
		}
	}
}

func (a *WasmArena) Bytes(b Block) []byte {
	if b.IsZero() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	view, ok := a.memory.Read(uint32(b.Addr), b.Size)
	if !ok {
		return nil
	}
	return view
}

func (a *WasmArena) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Pages returns the current size of the linear memory in pages.
func (a *WasmArena) Pages() uint32 {
	return a.memory.Size() / pageSize
}

func (a *WasmArena) Close() error {
	return a.runtime.Close(context.Background())
}
