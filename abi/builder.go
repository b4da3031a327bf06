package abi

import (
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
)

// builder is the two-phase construction state shared by all builders.
// Allocation failure at creation poisons the builder; misuse latches a
// contract error. Both are reported by the terminal call.
type builder struct {
	ctx      Context
	kind     string
	items    []handle.Handle
	filled   []bool
	reserved int64
	poisoned error
	misuse   error
	done     bool
}

func newBuilder(ctx Context, kind string, n int) builder {
	b := builder{ctx: ctx, kind: kind}
	if n < 0 {
		b.misuse = errz.ContractErrorf("%s builder: negative size %d", kind, n)
		return b
	}
	size := int64(n) * handleBytes
	if err := ctx.TryReserve(size); err != nil {
		b.poisoned = errz.From(err).WithCode(errz.H1003).AsDeferred()
		return b
	}
	b.reserved = size
	b.items = make([]handle.Handle, n)
	b.filled = make([]bool, n)
	return b
}

func (b *builder) latch(err *errz.Error) {
	if b.misuse == nil {
		b.misuse = err.AsDeferred()
	}
}

// Set stores a new reference to h in slot i. Writes to a poisoned builder
// are ignored.
func (b *builder) Set(i int, h handle.Handle) {
	switch {
	case b.poisoned != nil:
		return
	case b.done:
		b.latch(errz.ContractErrorf("%s builder: set after build or cancel", b.kind).WithCode(errz.H4005))
		return
	case i < 0 || i >= len(b.items):
		b.latch(errz.ContractErrorf("%s builder: index %d out of range [0, %d)", b.kind, i, len(b.items)))
		return
	case b.filled[i]:
		b.latch(errz.ContractErrorf("%s builder: slot %d written twice", b.kind, i).WithCode(errz.H4004))
		return
	}
	dup, err := b.ctx.Dup(h)
	if err != nil {
		b.latch(errz.From(err))
		return
	}
	b.items[i] = dup
	b.filled[i] = true
}

// Err returns the failure the terminal call will report, if any.
func (b *builder) Err() error {
	if b.poisoned != nil {
		return b.poisoned
	}
	return b.misuse
}

func (b *builder) release() {
	for i, h := range b.items {
		if b.filled[i] {
			_ = b.ctx.Close(h)
		}
	}
	b.items = nil
	b.filled = nil
	if b.reserved > 0 {
		b.ctx.Release(b.reserved)
		b.reserved = 0
	}
}

func (b *builder) build(finish func(items []handle.Handle) (handle.Handle, error)) (handle.Handle, error) {
	if b.done {
		return handle.Null, b.ctx.ErrRaise(errz.ContractErrorf("%s builder: already built or cancelled", b.kind).WithCode(errz.H4005))
	}
	b.done = true
	defer b.release()
	if err := b.Err(); err != nil {
		return handle.Null, b.ctx.ErrRaise(err)
	}
	for i, ok := range b.filled {
		if !ok {
			return handle.Null, b.ctx.ErrRaise(errz.ContractErrorf("%s builder: slot %d was never set", b.kind, i).WithCode(errz.H4006))
		}
	}
	return finish(b.items)
}

func (b *builder) cancel() error {
	if b.done {
		return b.ctx.ErrRaise(errz.ContractErrorf("%s builder: already built or cancelled", b.kind).WithCode(errz.H4005))
	}
	b.done = true
	b.release()
	return nil
}

// TupleBuilder assembles a tuple of a declared size.
type TupleBuilder struct {
	builder
}

// NewTupleBuilder starts building a tuple of n items. It never fails
// immediately; failures are reported by Build.
func NewTupleBuilder(ctx Context, n int) *TupleBuilder {
	return &TupleBuilder{builder: newBuilder(ctx, "tuple", n)}
}

// Build creates the tuple and ends the builder.
func (b *TupleBuilder) Build() (handle.Handle, error) {
	return b.build(b.ctx.TupleFromArray)
}

// Cancel closes the stored items and ends the builder.
func (b *TupleBuilder) Cancel() error { return b.cancel() }

// ListBuilder assembles a list of a declared size.
type ListBuilder struct {
	builder
}

func NewListBuilder(ctx Context, n int) *ListBuilder {
	return &ListBuilder{builder: newBuilder(ctx, "list", n)}
}

func (b *ListBuilder) Build() (handle.Handle, error) {
	return b.build(b.ctx.ListNew)
}

func (b *ListBuilder) Cancel() error { return b.cancel() }

// StructSequenceBuilder assembles an instance of a struct sequence type.
type StructSequenceBuilder struct {
	builder
	typ handle.Handle
}

// NewStructSequenceBuilder starts building an instance of typ with n items.
// typ is borrowed and must stay alive until Build.
func NewStructSequenceBuilder(ctx Context, typ handle.Handle, n int) *StructSequenceBuilder {
	return &StructSequenceBuilder{builder: newBuilder(ctx, "struct sequence", n), typ: typ}
}

func (b *StructSequenceBuilder) Build() (handle.Handle, error) {
	return b.build(func(items []handle.Handle) (handle.Handle, error) {
		return b.ctx.StructSequenceFromArray(b.typ, items)
	})
}

func (b *StructSequenceBuilder) Cancel() error { return b.cancel() }
