package heap

import (
	"errors"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

// ExceptionTypeFor maps an error kind to its builtin exception type.
func ExceptionTypeFor(kind errz.Kind) *object.Type {
	switch kind {
	case errz.Allocation:
		return object.MemoryErrorType
	case errz.Configuration:
		return object.ConfigurationErrorType
	case errz.Type:
		return object.TypeErrorType
	case errz.Contract:
		return object.ContractViolationType
	case errz.Value:
		return object.ValueErrorType
	case errz.Index:
		return object.IndexErrorType
	case errz.Key:
		return object.KeyErrorType
	case errz.Attribute:
		return object.AttributeErrorType
	case errz.StopIteration:
		return object.StopIterationType
	default:
		return object.SystemErrorType
	}
}

// KindForException maps an exception type back to an error kind, walking the
// ancestry so that subtypes map like their builtin base.
func KindForException(typ *object.Type) errz.Kind {
	for _, anc := range typ.MRO() {
		switch anc {
		case object.MemoryErrorType:
			return errz.Allocation
		case object.ConfigurationErrorType:
			return errz.Configuration
		case object.ContractViolationType:
			return errz.Contract
		case object.TypeErrorType:
			return errz.Type
		case object.ValueErrorType:
			return errz.Value
		case object.IndexErrorType:
			return errz.Index
		case object.KeyErrorType:
			return errz.Key
		case object.AttributeErrorType:
			return errz.Attribute
		case object.StopIterationType:
			return errz.StopIteration
		}
	}
	return errz.System
}

// ErrorFromException converts an exception into a structured error.
func ErrorFromException(exc *object.Exception) *errz.Error {
	kind := KindForException(exc.Type())
	return &errz.Error{
		Kind:      kind,
		Code:      defaultCode(kind),
		Message:   exc.Message(),
		Exception: exc.Type().Name(),
	}
}

func defaultCode(kind errz.Kind) errz.Code {
	switch kind {
	case errz.Allocation:
		return errz.H1001
	case errz.Configuration:
		return errz.H2001
	case errz.Type:
		return errz.H3001
	case errz.Contract:
		return errz.H4001
	case errz.Value:
		return errz.H5001
	case errz.Index:
		return errz.H5002
	case errz.Key:
		return errz.H5003
	case errz.Attribute:
		return errz.H5004
	case errz.StopIteration:
		return errz.H5005
	default:
		return errz.H9001
	}
}

// SetError stores exc in the error slot, taking ownership of one reference.
// A pending exception is replaced.
func (h *Heap) SetError(exc *object.Exception) {
	prev := h.errSlot
	h.errSlot = exc
	if prev != nil {
		h.DecRef(prev)
	}
}

// SetErrorString raises an exception of typ with the given message.
func (h *Heap) SetErrorString(typ *object.Type, message string) {
	h.SetError(h.NewException(typ, message))
}

// Raise records err in the error slot and returns it as a structured
// error. An error that already names an exception keeps that exception
// type.
func (h *Heap) Raise(err error) *errz.Error {
	if err == nil {
		return nil
	}
	e := errz.From(err)
	typ := ExceptionTypeFor(e.Kind)
	if e.Exception != "" {
		if named, ok := object.LookupBuiltinType(e.Exception); ok {
			typ = named
		} else if h.errSlot != nil && h.errSlot.Type().Name() == e.Exception {
			typ = h.errSlot.Type()
		}
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	h.SetErrorString(typ, msg)
	if e.Exception == "" {
		cp := *e
		cp.Exception = typ.Name()
		e = &cp
	}
	return e
}

// PendingError returns the exception in the error slot without removing it.
func (h *Heap) PendingError() *object.Exception {
	return h.errSlot
}

// FetchError removes the pending exception and transfers its reference to
// the caller.
func (h *Heap) FetchError() *object.Exception {
	exc := h.errSlot
	h.errSlot = nil
	return exc
}

// ClearError discards the pending exception.
func (h *Heap) ClearError() {
	h.SetError(nil)
}

// ExceptionMatches reports whether the pending exception is an instance of
// typ or a subtype.
func (h *Heap) ExceptionMatches(typ *object.Type) bool {
	return h.errSlot != nil && h.errSlot.Type().IsSubtype(typ)
}

// IsStopIteration reports whether err signals iterator exhaustion.
func IsStopIteration(err error) bool {
	return errors.Is(err, errz.ErrStopIteration)
}
