package object

import (
	"fmt"
)

// Builtin is a native function, optionally bound to a receiver.
type Builtin struct {
	Header
	name   string
	doc    string
	module string
	fn     NativeFunc
	self   Object
}

// NewBuiltin returns an unbound native function.
func NewBuiltin(name, doc string, fn NativeFunc) *Builtin {
	return &Builtin{Header: Header{refcnt: 1}, name: name, doc: doc, fn: fn}
}

// NewBoundMethod binds fn to self. The method holds one reference to self,
// which the caller must have added.
func NewBoundMethod(name, doc string, fn NativeFunc, self Object) *Builtin {
	return &Builtin{Header: Header{refcnt: 1}, name: name, doc: doc, fn: fn, self: self}
}

func (b *Builtin) Type() *Type { return BuiltinFunctionType }

func (b *Builtin) Name() string { return b.name }

func (b *Builtin) Doc() string { return b.doc }

func (b *Builtin) Self() Object { return b.self }

func (b *Builtin) Func() NativeFunc { return b.fn }

// WithModule records the module the function belongs to.
func (b *Builtin) WithModule(name string) *Builtin {
	b.module = name
	return b
}

// ClearSelf unbinds the method and returns the former receiver.
func (b *Builtin) ClearSelf() Object {
	s := b.self
	b.self = nil
	return s
}

// Call invokes the function with borrowed arguments.
func (b *Builtin) Call(args []Object, kwnames []string) (Object, error) {
	return b.fn(b.self, args, kwnames)
}

func (b *Builtin) Inspect() string {
	if b.self != nil {
		return fmt.Sprintf("<bound method %s.%s>", b.self.Type().Name(), b.name)
	}
	if b.module != "" {
		return fmt.Sprintf("<builtin function %s.%s>", b.module, b.name)
	}
	return fmt.Sprintf("<builtin function %s>", b.name)
}

func (b *Builtin) String() string { return b.Inspect() }

func (b *Builtin) Interface() any { return b.fn }

func (b *Builtin) Equals(other Object) bool { return other == Object(b) }
