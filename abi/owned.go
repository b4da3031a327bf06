package abi

import (
	"github.com/deepnoodle-ai/hbridge/handle"
)

// Owned pairs a handle with the context responsible for closing it.
//
//	o := abi.Own(ctx, h)
//	defer o.Close()
type Owned struct {
	ctx Context
	h   handle.Handle
}

// Own takes ownership of h.
func Own(ctx Context, h handle.Handle) Owned {
	return Owned{ctx: ctx, h: h}
}

// Handle returns the owned handle without transferring ownership.
func (o Owned) Handle() handle.Handle { return o.h }

// Dup returns a second, independently owned handle to the same object.
func (o Owned) Dup() (Owned, error) {
	h, err := o.ctx.Dup(o.h)
	if err != nil {
		return Owned{}, err
	}
	return Owned{ctx: o.ctx, h: h}, nil
}

// Close releases the handle. Closing the zero Owned is a no-op.
func (o Owned) Close() error {
	if o.ctx == nil || o.h.IsNull() {
		return nil
	}
	return o.ctx.Close(o.h)
}
