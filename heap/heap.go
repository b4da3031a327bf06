// Package heap is the backing runtime's managed heap. It owns every live
// object, assigns object ids, accounts allocations against a budget, holds
// the per-environment error slot and implements the object protocols
// (attributes, calls, comparison, iteration, items) the backends expose.
package heap

import (
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/object"
	"github.com/deepnoodle-ai/hbridge/storage"
)

// Nominal per-object accounting costs, in bytes.
const (
	objectCost = 32
	typeCost   = 256
	entryCost  = 8
)

// Heap holds the objects of one environment. It is not safe for concurrent
// use; the environment serializes access.
type Heap struct {
	log   zerolog.Logger
	arena storage.Arena

	limit     int64
	used      int64
	failAfter int

	initialized bool
	nextID      uint64
	objects     map[uint64]object.Object
	costs       map[uint64]int64
	immortalIDs map[object.Object]uint64
	types       []*object.Type
	tables      map[*object.Type]int64

	errSlot *object.Exception
	stats   Stats
}

// Stats counts heap activity.
type Stats struct {
	Allocated   int
	Freed       int
	Collections int
	Collected   int
}

// Option configures a Heap.
type Option func(*Heap)

// WithLogger sets the logger used for heap events.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Heap) {
		h.log = log
	}
}

// WithArena sets the arena that backs instance payloads.
func WithArena(a storage.Arena) Option {
	return func(h *Heap) {
		h.arena = a
	}
}

// WithLimit bounds the number of bytes the heap may account. Zero means
// unlimited.
func WithLimit(bytes int64) Option {
	return func(h *Heap) {
		h.limit = bytes
	}
}

// New creates an uninitialized heap. Call Init before use.
func New(opts ...Option) *Heap {
	h := &Heap{
		log:         zerolog.Nop(),
		failAfter:   -1,
		objects:     map[uint64]object.Object{},
		costs:       map[uint64]int64{},
		immortalIDs: map[object.Object]uint64{},
		tables:      map[*object.Type]int64{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.arena == nil {
		h.arena = storage.NewGoArena()
	}
	return h
}

// Init registers the singletons and builtin types. Calling it again is a
// no-op.
func (h *Heap) Init() error {
	if h.initialized {
		return nil
	}
	for _, obj := range []object.Object{object.None, object.True, object.False} {
		h.IDOf(obj)
	}
	for _, t := range object.BuiltinTypes() {
		h.IDOf(t)
	}
	h.initialized = true
	h.log.Debug().Int("objects", len(h.objects)).Str("arena", h.arena.Name()).Msg("heap initialized")
	return nil
}

// Initialized reports whether Init has run.
func (h *Heap) Initialized() bool { return h.initialized }

// Logger returns the heap's logger.
func (h *Heap) Logger() *zerolog.Logger { return &h.log }

func (h *Heap) Arena() storage.Arena { return h.arena }

func (h *Heap) Stats() Stats { return h.stats }

// Reserve accounts n bytes against the budget.
func (h *Heap) Reserve(n int64) error {
	if n < 0 {
		return errz.ContractErrorf("cannot reserve a negative size (%d)", n)
	}
	if h.failAfter == 0 {
		h.log.Debug().Int64("bytes", n).Msg("allocation failure injected")
		return errz.AllocationErrorf("out of memory (injected failure reserving %d bytes)", n)
	}
	if h.failAfter > 0 {
		h.failAfter--
	}
	if h.limit > 0 && h.used+n > h.limit {
		h.log.Warn().Int64("bytes", n).Int64("used", h.used).Int64("limit", h.limit).Msg("heap budget exhausted")
		return errz.AllocationErrorf("out of memory (%d of %d bytes used, %d requested)", h.used, h.limit, n)
	}
	h.used += n
	return nil
}

// Release returns n previously reserved bytes to the budget.
func (h *Heap) Release(n int64) {
	h.used -= n
	if h.used < 0 {
		h.used = 0
	}
}

// Used returns the number of accounted bytes.
func (h *Heap) Used() int64 { return h.used }

// FailAfter makes the n+1-th subsequent reservation fail, and every one
// after it until the fail point is cleared with a negative n.
func (h *Heap) FailAfter(n int) {
	h.failAfter = n
}

// track accounts cost for a new object and registers it.
func (h *Heap) track(obj object.Object, cost int64) error {
	if err := h.Reserve(cost); err != nil {
		return err
	}
	h.register(obj, cost)
	return nil
}

func (h *Heap) register(obj object.Object, cost int64) uint64 {
	id := h.newID()
	hdr := obj.ObjectHeader()
	hdr.SetID(id)
	if hdr.RefCount() == 0 {
		hdr.InitRef()
	}
	h.objects[id] = obj
	h.costs[id] = cost
	h.stats.Allocated++
	return id
}

func (h *Heap) newID() uint64 {
	h.nextID++
	if h.nextID >= handle.MaxPayload {
		panic("heap: object id space exhausted")
	}
	return h.nextID
}

// IDOf returns the heap id of obj. Immortal objects are registered on first
// use; their ids are private to this heap.
func (h *Heap) IDOf(obj object.Object) uint64 {
	hdr := obj.ObjectHeader()
	if !hdr.IsImmortal() {
		return hdr.ID()
	}
	if id, ok := h.immortalIDs[obj]; ok {
		return id
	}
	id := h.newID()
	h.immortalIDs[obj] = id
	h.objects[id] = obj
	return id
}

// Lookup returns the live object with the given id.
func (h *Heap) Lookup(id uint64) (object.Object, bool) {
	obj, ok := h.objects[id]
	return obj, ok
}

// Live returns the number of registered objects, immortals included.
func (h *Heap) Live() int { return len(h.objects) }

// LiveMortal returns the number of registered reference-counted objects.
func (h *Heap) LiveMortal() int { return len(h.costs) }

// IncRef adds a reference to obj.
func (h *Heap) IncRef(obj object.Object) {
	obj.ObjectHeader().IncRef()
}

// DecRef drops a reference to obj and deallocates it when none remain.
func (h *Heap) DecRef(obj object.Object) {
	if obj == nil {
		return
	}
	if obj.ObjectHeader().DecRef() == 0 {
		h.dealloc(obj)
	}
}

// Close deallocates the error slot and tears down the arena. Objects that
// are still alive are reported by count.
func (h *Heap) Close() error {
	h.ClearError()
	live := h.LiveMortal()
	if live > 0 {
		h.log.Debug().Int("live", live).Msg("heap closed with live objects")
	}
	h.objects = map[uint64]object.Object{}
	h.costs = map[uint64]int64{}
	h.immortalIDs = map[object.Object]uint64{}
	return h.arena.Close()
}
