package abi

import (
	"github.com/hashicorp/go-multierror"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
)

const (
	defaultTrackerSize = 5
	handleBytes        = 8
)

// Tracker owns a group of handles and closes them together. There is always
// room for one more handle after a successful Add, so the handle passed to
// Add is tracked even when growing the list fails.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	ctx      Context
	handles  []handle.Handle
	reserved int64
	err      error
	closed   bool
}

// NewTracker creates a tracker with room for hint handles (5 when hint is
// zero). It never fails: when its storage cannot be reserved the tracker is
// poisoned and reports the failure from Add and Err. The error slot is not
// touched until Add raises the deferred failure.
func NewTracker(ctx Context, hint int) *Tracker {
	if hint <= 0 {
		hint = defaultTrackerSize
	}
	t := &Tracker{ctx: ctx}
	size := int64(hint+1) * handleBytes
	if err := ctx.TryReserve(size); err != nil {
		t.err = errz.From(err).WithCode(errz.H1004).AsDeferred()
		return t
	}
	t.reserved = size
	t.handles = make([]handle.Handle, 0, hint+1)
	return t
}

// Add takes ownership of h. The handle is tracked even when Add reports a
// failure to grow; only a poisoned or closed tracker leaves h with the
// caller. Failures are raised in the error slot.
func (t *Tracker) Add(h handle.Handle) error {
	if t.err != nil {
		return t.ctx.ErrRaise(t.err)
	}
	if t.closed {
		return t.ctx.ErrRaise(errz.ContractErrorf("add to a closed tracker").WithCode(errz.H4003))
	}
	if len(t.handles) == cap(t.handles) {
		// An earlier growth failed and the spare slot is in use.
		if err := t.grow(); err != nil {
			t.handles = append(t.handles, h)
			return t.ctx.ErrRaise(err)
		}
	}
	t.handles = append(t.handles, h)
	if len(t.handles) == cap(t.handles) {
		return t.ctx.ErrRaise(t.grow())
	}
	return nil
}

func (t *Tracker) grow() error {
	size := cap(t.handles) - 1
	newCap := 2*size + 1
	if newCap <= len(t.handles) {
		return errz.ContractErrorf("tracker cannot shrink from %d to %d handles", len(t.handles), newCap)
	}
	extra := int64(newCap)*handleBytes - t.reserved
	if extra > 0 {
		if err := t.ctx.TryReserve(extra); err != nil {
			return errz.From(err).WithCode(errz.H1004)
		}
	} else {
		extra = 0
	}
	grown := make([]handle.Handle, len(t.handles), newCap)
	copy(grown, t.handles)
	t.handles = grown
	t.reserved += extra
	return nil
}

// Len returns the number of tracked handles.
func (t *Tracker) Len() int { return len(t.handles) }

// Cap returns the current capacity, spare slot included.
func (t *Tracker) Cap() int { return cap(t.handles) }

// Err returns the deferred allocation failure of a poisoned tracker.
func (t *Tracker) Err() error { return t.err }

// ForgetAll drops every handle without closing it; ownership passes back to
// the caller.
func (t *Tracker) ForgetAll() {
	t.handles = t.handles[:0]
}

// Close closes every tracked handle in insertion order and releases the
// tracker's storage. Closing twice is a no-op.
func (t *Tracker) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var result *multierror.Error
	for _, h := range t.handles {
		if err := t.ctx.Close(h); err != nil {
			result = multierror.Append(result, err)
		}
	}
	t.handles = nil
	if t.reserved > 0 {
		t.ctx.Release(t.reserved)
		t.reserved = 0
	}
	return result.ErrorOrNil()
}
