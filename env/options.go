package env

import (
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/backend/direct"
)

// Storage names accepted by WithStorage.
const (
	StorageGo   = "go"
	StorageWasm = "wasm"
)

const defaultWasmMaxPages = 256

// Option describes a function used to configure an Environment.
type Option func(*config)

type config struct {
	backend      string
	debug        bool
	inline       bool
	heapLimit    int64
	storage      string
	wasmMaxPages uint32
	logger       zerolog.Logger
	extensions   map[string]abi.InitFunc
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		backend:      direct.Name,
		inline:       true,
		storage:      StorageGo,
		wasmMaxPages: defaultWasmMaxPages,
		logger:       zerolog.Nop(),
		extensions:   map[string]abi.InitFunc{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithBackend selects the Context implementation by name ("direct" or
// "universal").
func WithBackend(name string) Option {
	return func(cfg *config) {
		cfg.backend = name
	}
}

// WithDebug enables handle checking. Leaked handles are reported when the
// environment is closed.
func WithDebug(enabled bool) Option {
	return func(cfg *config) {
		cfg.debug = enabled
	}
}

// WithInlineScalars controls whether small ints and floats are encoded in
// the handle itself. Enabled by default.
func WithInlineScalars(enabled bool) Option {
	return func(cfg *config) {
		cfg.inline = enabled
	}
}

// WithHeapLimit caps the bytes the heap may account. Zero means no limit.
func WithHeapLimit(bytes int64) Option {
	return func(cfg *config) {
		cfg.heapLimit = bytes
	}
}

// WithStorage selects the arena backing instance payloads: "go" (the
// default) or "wasm".
func WithStorage(name string) Option {
	return func(cfg *config) {
		cfg.storage = name
	}
}

// WithWasmMaxPages bounds the linear memory of the wasm arena, in 64 KiB
// pages.
func WithWasmMaxPages(pages uint32) Option {
	return func(cfg *config) {
		cfg.wasmMaxPages = pages
	}
}

// WithLogger sets the logger used by the environment and its heap.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithExtension registers an extension module under name. The module is
// created by the first Import of that name.
func WithExtension(name string, init abi.InitFunc) Option {
	return func(cfg *config) {
		cfg.extensions[name] = init
	}
}

// WithExtensions registers multiple extension modules. This option is
// additive; if the same name is supplied twice, the last one wins.
func WithExtensions(exts map[string]abi.InitFunc) Option {
	return func(cfg *config) {
		for name, init := range exts {
			cfg.extensions[name] = init
		}
	}
}
