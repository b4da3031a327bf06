package object

import (
	"fmt"
)

// Module is a named namespace created by an extension's init function.
type Module struct {
	Header
	name  string
	doc   string
	names []string
	attrs map[string]Object
}

func NewModule(name, doc string) *Module {
	return &Module{
		Header: Header{refcnt: 1},
		name:   name,
		doc:    doc,
		attrs:  map[string]Object{},
	}
}

func (m *Module) Type() *Type { return ModuleType }

func (m *Module) Name() string { return m.name }

func (m *Module) Doc() string { return m.doc }

// Get returns a borrowed attribute.
func (m *Module) Get(name string) (Object, bool) {
	v, ok := m.attrs[name]
	return v, ok
}

// Set stores value under name, taking ownership of one reference. The
// replaced value, if any, is returned for release.
func (m *Module) Set(name string, value Object) Object {
	old, ok := m.attrs[name]
	if !ok {
		m.names = append(m.names, name)
	}
	m.attrs[name] = value
	return old
}

// Names returns attribute names in insertion order.
func (m *Module) Names() []string { return m.names }

// ClearAttrs empties the namespace and returns the former values.
func (m *Module) ClearAttrs() []Object {
	out := make([]Object, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.attrs[name])
	}
	m.names = nil
	m.attrs = map[string]Object{}
	return out
}

func (m *Module) Inspect() string { return fmt.Sprintf("<module '%s'>", m.name) }

func (m *Module) String() string { return m.Inspect() }

func (m *Module) Interface() any { return m }

func (m *Module) Equals(other Object) bool { return other == Object(m) }
