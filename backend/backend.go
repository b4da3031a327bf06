// Package backend selects and constructs the Context implementation of an
// environment.
package backend

import (
	"sort"

	"github.com/deepnoodle-ai/hbridge/backend/debug"
	"github.com/deepnoodle-ai/hbridge/backend/direct"
	"github.com/deepnoodle-ai/hbridge/backend/universal"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
)

type config struct {
	debug  bool
	inline bool
	slots  factory.SlotMap
}

// Option configures Open.
type Option func(*config)

// WithDebug wraps the backend in handle checking.
func WithDebug(enabled bool) Option {
	return func(c *config) {
		c.debug = enabled
	}
}

// WithInlineScalars enables or disables inline int and float handles.
func WithInlineScalars(enabled bool) Option {
	return func(c *config) {
		c.inline = enabled
	}
}

// WithSlotMap replaces the slot table used when creating types.
func WithSlotMap(m factory.SlotMap) Option {
	return func(c *config) {
		c.slots = m
	}
}

type constructor func(h *heap.Heap, cfg *config) (bridge.Bridge, error)

var constructors = map[string]constructor{
	direct.Name: func(h *heap.Heap, cfg *config) (bridge.Bridge, error) {
		return direct.New(h, direct.WithInlineScalars(cfg.inline), direct.WithSlotMap(cfg.slots))
	},
	universal.Name: func(h *heap.Heap, cfg *config) (bridge.Bridge, error) {
		return universal.New(h, universal.WithInlineScalars(cfg.inline), universal.WithSlotMap(cfg.slots))
	},
}

// Names returns the names of the available backends, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the named backend over h.
func Open(h *heap.Heap, name string, opts ...Option) (bridge.Bridge, error) {
	cfg := &config{inline: true}
	for _, opt := range opts {
		opt(cfg)
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, errz.ConfigurationErrorf("unknown backend %q (available: %v)", name, Names())
	}
	b, err := ctor(h, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.debug {
		return debug.New(b, debug.WithSlotMap(cfg.slots)), nil
	}
	return b, nil
}
