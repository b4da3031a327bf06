// Package errz defines the error taxonomy shared by the heap, the backends
// and extension code.
package errz

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error.
type Kind int

const (
	// Allocation indicates that a native heap allocation failed.
	Allocation Kind = iota
	// Configuration indicates an internally inconsistent specification.
	Configuration
	// Type indicates a type mismatch or an inheritance layout conflict.
	Type
	// Contract indicates caller misuse of a handle, builder or tracker.
	Contract
	// Value indicates an invalid value for an operation.
	Value
	// Index indicates a sequence index out of range.
	Index
	// Key indicates a missing mapping key.
	Key
	// Attribute indicates a missing or read-only attribute.
	Attribute
	// StopIteration signals iterator exhaustion.
	StopIteration
	// System indicates an internal error in an extension or the runtime.
	System
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case Allocation:
		return "allocation failure"
	case Configuration:
		return "configuration error"
	case Type:
		return "type error"
	case Contract:
		return "contract violation"
	case Value:
		return "value error"
	case Index:
		return "index error"
	case Key:
		return "key error"
	case Attribute:
		return "attribute error"
	case StopIteration:
		return "stop iteration"
	case System:
		return "system error"
	default:
		return "error"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrAllocation    = &Error{Kind: Allocation}
	ErrConfiguration = &Error{Kind: Configuration}
	ErrType          = &Error{Kind: Type}
	ErrContract      = &Error{Kind: Contract}
	ErrValue         = &Error{Kind: Value}
	ErrIndex         = &Error{Kind: Index}
	ErrKey           = &Error{Kind: Key}
	ErrAttribute     = &Error{Kind: Attribute}
	ErrStopIteration = &Error{Kind: StopIteration}
	ErrSystem        = &Error{Kind: System}
)

// Error is the structured error value used across the bridge.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	// Exception names the managed exception type when the error originated
	// from (or was converted to) an exception object in the heap.
	Exception string
	// Deferred is set when the failure happened earlier than the call that
	// reports it (a poisoned builder or tracker).
	Deferred bool
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	prefix := e.Kind.String()
	if e.Exception != "" {
		prefix = e.Exception
	}
	if e.Deferred {
		return fmt.Sprintf("%s (deferred): %s", prefix, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == "" && t.Kind == e.Kind
}

// WithCause wraps the error with a cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// AsDeferred marks the error as reported after the fact.
func (e *Error) AsDeferred() *Error {
	cp := *e
	cp.Deferred = true
	return &cp
}

func newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func AllocationErrorf(format string, args ...any) *Error {
	return newf(Allocation, H1001, format, args...)
}

func ConfigurationErrorf(format string, args ...any) *Error {
	return newf(Configuration, H2001, format, args...)
}

func TypeErrorf(format string, args ...any) *Error {
	return newf(Type, H3001, format, args...)
}

func ContractErrorf(format string, args ...any) *Error {
	return newf(Contract, H4001, format, args...)
}

func ValueErrorf(format string, args ...any) *Error {
	return newf(Value, H5001, format, args...)
}

func IndexErrorf(format string, args ...any) *Error {
	return newf(Index, H5002, format, args...)
}

func KeyErrorf(format string, args ...any) *Error {
	return newf(Key, H5003, format, args...)
}

func AttributeErrorf(format string, args ...any) *Error {
	return newf(Attribute, H5004, format, args...)
}

func SystemErrorf(format string, args ...any) *Error {
	return newf(System, H9001, format, args...)
}

// StopIterationError signals iterator exhaustion.
func StopIterationError() *Error {
	return &Error{Kind: StopIteration, Code: H5005, Message: "iteration stopped"}
}

// WithCode returns a copy of e carrying a more specific code.
func (e *Error) WithCode(code Code) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// KindOf returns the kind of err, or System when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return System
}

// From converts any error into an *Error, preserving existing ones.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: System, Code: H9001, Message: err.Error(), Cause: err}
}
