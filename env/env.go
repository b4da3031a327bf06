// Package env assembles a heap, a storage arena and a backend Context into
// an Environment that extension modules are imported into and called
// through.
//
//	e, err := env.New(env.WithExtension("math", math.Init))
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//	result, err := e.Call("math", "sqrt", 2.0)
package env

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/backend"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
	"github.com/deepnoodle-ai/hbridge/storage"
)

// Environment owns one heap and the Context extensions use to reach it.
// Public methods serialize on an internal lock, so an Environment may be
// shared between goroutines; the Context handed to extension code must not
// escape the call it was given to.
type Environment struct {
	mu      sync.Mutex
	id      uuid.UUID
	cfg     *config
	log     zerolog.Logger
	heap    *heap.Heap
	ctx     bridge.Bridge
	modules map[string]*object.Module
	closed  bool
}

// New creates an environment from the given options.
func New(opts ...Option) (*Environment, error) {
	cfg := newConfig(opts...)
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errz.SystemErrorf("environment id: %v", err).WithCause(err)
	}
	log := cfg.logger.With().Str("env", id.String()).Logger()

	arena, err := newArena(cfg)
	if err != nil {
		return nil, err
	}
	heapOpts := []heap.Option{
		heap.WithLogger(log.With().Str("component", "heap").Logger()),
		heap.WithArena(arena),
	}
	if cfg.heapLimit > 0 {
		heapOpts = append(heapOpts, heap.WithLimit(cfg.heapLimit))
	}
	h := heap.New(heapOpts...)
	ctx, err := backend.Open(h, cfg.backend,
		backend.WithDebug(cfg.debug),
		backend.WithInlineScalars(cfg.inline))
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	e := &Environment{
		id:      id,
		cfg:     cfg,
		log:     log,
		heap:    h,
		ctx:     ctx,
		modules: map[string]*object.Module{},
	}
	log.Info().
		Str("backend", ctx.Name()).
		Str("storage", arena.Name()).
		Bool("inline_scalars", cfg.inline).
		Msg("environment initialized")
	return e, nil
}

func newArena(cfg *config) (storage.Arena, error) {
	switch cfg.storage {
	case "", StorageGo:
		return storage.NewGoArena(), nil
	case StorageWasm:
		arena, err := storage.NewWasmArena(context.Background(), cfg.wasmMaxPages)
		if err != nil {
			return nil, errz.ConfigurationErrorf("wasm storage: %v", err).WithCause(err)
		}
		return arena, nil
	default:
		return nil, errz.ConfigurationErrorf("unknown storage %q (want %q or %q)", cfg.storage, StorageGo, StorageWasm)
	}
}

// ID returns the unique id of the environment.
func (e *Environment) ID() uuid.UUID { return e.id }

// Backend returns the name of the Context implementation in use.
func (e *Environment) Backend() string { return e.ctx.Name() }

// Storage returns the name of the arena backing instance payloads.
func (e *Environment) Storage() string { return e.heap.Arena().Name() }

// Stats returns the heap counters.
func (e *Environment) Stats() heap.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heap.Stats()
}

// Extensions returns the names of the registered extension modules, sorted.
func (e *Environment) Extensions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.cfg.extensions))
	for name := range e.cfg.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds an extension module after construction.
func (e *Environment) Register(name string, init abi.InitFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed()
	}
	if init == nil {
		return errz.ConfigurationErrorf("extension %q: nil init function", name)
	}
	if _, ok := e.modules[name]; ok {
		return errz.ConfigurationErrorf("extension %q is already imported", name)
	}
	e.cfg.extensions[name] = init
	return nil
}

// Import creates the named extension module, once, and returns the names
// it defines.
func (e *Environment) Import(name string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.importLocked(name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.Names()...), nil
}

func (e *Environment) importLocked(name string) (*object.Module, error) {
	if e.closed {
		return nil, errClosed()
	}
	if m, ok := e.modules[name]; ok {
		return m, nil
	}
	init, ok := e.cfg.extensions[name]
	if !ok {
		return nil, errz.KeyErrorf("no extension module named %q", name)
	}
	obj, err := e.take(init(e.ctx))
	if err != nil {
		e.log.Debug().Str("module", name).Err(err).Msg("import failed")
		return nil, err
	}
	m, ok := obj.(*object.Module)
	if !ok {
		e.heap.DecRef(obj)
		return nil, errz.TypeErrorf("extension %q returned %s, not a module", name, obj.Type().Name())
	}
	e.modules[name] = m
	e.log.Debug().Str("module", name).Int("names", len(m.Names())).Msg("module imported")
	return m, nil
}

// take converts a handle returned by extension code into an object
// reference and closes the handle. Errors clear the error slot.
func (e *Environment) take(h handle.Handle, err error) (object.Object, error) {
	if err != nil {
		if !h.IsNull() {
			_ = e.ctx.Close(h)
		}
		e.heap.ClearError()
		return nil, err
	}
	if h.IsNull() {
		if exc := e.heap.FetchError(); exc != nil {
			defer e.heap.DecRef(exc)
			return nil, heap.ErrorFromException(exc)
		}
		return nil, errz.SystemErrorf("extension returned NULL without setting an error").WithCode(errz.H9002)
	}
	obj, err := e.ctx.Borrow(h)
	if err != nil {
		return nil, err
	}
	e.heap.IncRef(obj)
	if err := e.ctx.Close(h); err != nil {
		e.heap.DecRef(obj)
		return nil, err
	}
	return obj, nil
}

// Call imports module and calls its attribute fn with args converted from
// Go values. The result is converted back to a Go value.
func (e *Environment) Call(module, fn string, args ...any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.importLocked(module)
	if err != nil {
		return nil, err
	}
	callable, err := e.heap.GetAttr(m, fn)
	if err != nil {
		e.heap.ClearError()
		return nil, err
	}
	defer e.heap.DecRef(callable)

	objs := make([]object.Object, 0, len(args))
	defer func() {
		for _, obj := range objs {
			e.heap.DecRef(obj)
		}
	}()
	for i, arg := range args {
		obj, err := fromGo(e.heap, arg)
		if err != nil {
			return nil, errz.TypeErrorf("%s.%s: argument %d: %s", module, fn, i, errz.From(err).Message)
		}
		objs = append(objs, obj)
	}
	result, err := e.heap.Call(callable, objs, nil)
	if err != nil {
		e.heap.ClearError()
		return nil, err
	}
	defer e.heap.DecRef(result)
	return toGo(e.heap, result), nil
}

// Get imports module and returns its attribute name as a Go value.
func (e *Environment) Get(module, name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.importLocked(module)
	if err != nil {
		return nil, err
	}
	v, err := e.heap.GetAttr(m, name)
	if err != nil {
		return nil, err
	}
	defer e.heap.DecRef(v)
	return toGo(e.heap, v), nil
}

// Do runs fn with the environment's Context while holding the lock. Handles
// opened by fn must be closed before it returns. A pending exception left
// by a failing fn is cleared.
func (e *Environment) Do(fn func(ctx abi.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed()
	}
	if err := fn(e.ctx); err != nil {
		e.heap.ClearError()
		return err
	}
	if exc := e.heap.FetchError(); exc != nil {
		defer e.heap.DecRef(exc)
		return heap.ErrorFromException(exc)
	}
	return nil
}

// With imports module and runs fn with the Context and a handle to the
// module. The module handle is closed after fn returns.
func (e *Environment) With(module string, fn func(ctx abi.Context, mod handle.Handle) error) error {
	return e.Do(func(ctx abi.Context) error {
		m, err := e.importLocked(module)
		if err != nil {
			return err
		}
		mod, err := bridge.NewRef(e.ctx, m)
		if err != nil {
			return err
		}
		defer ctx.Close(mod)
		return fn(ctx, mod)
	})
}

// Collect runs the cycle collector and returns the number of objects
// freed.
func (e *Environment) Collect() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0
	}
	n := e.heap.Collect()
	e.log.Debug().Int("collected", n).Msg("collection finished")
	return n
}

// Live returns the number of reference-counted objects alive in the heap.
func (e *Environment) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heap.LiveMortal()
}

// Close releases the imported modules, reports leaked handles when the
// debug backend is in use and tears down the heap. Closing twice is a
// no-op.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var result *multierror.Error
	if s, ok := e.ctx.(interface{ Shutdown() error }); ok {
		if err := s.Shutdown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	names := make([]string, 0, len(e.modules))
	for name := range e.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.heap.DecRef(e.modules[name])
	}
	e.modules = nil
	e.heap.Collect()
	if live := e.heap.LiveMortal(); live > 0 {
		e.log.Warn().Int("live", live).Msg("objects alive at shutdown")
	}
	if err := e.heap.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	e.log.Info().Msg("environment closed")
	return result.ErrorOrNil()
}

func errClosed() error {
	return errz.ContractErrorf("environment is closed").WithCode(errz.H4001)
}
