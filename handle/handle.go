// Package handle defines the opaque value extension code uses to refer to
// managed objects.
//
// A Handle is a 64-bit word whose tag is recoverable from the bit pattern
// alone:
//
//	0                                   null
//	0xxx... (payload != 0)              reference: heap object id
//	10xx... (payload in bits 0..60)     indirect: side-table index
//	110x... (low 32 bits)               inline int32
//	111x... (low 32 bits)               inline float32
//
// Object ids and table indices are restricted to values below MaxPayload so
// the reserved high bits are never produced by a genuine reference. All bit
// manipulation lives in this package; the rest of the module works with Kind.
package handle

import (
	"fmt"
	"math"
)

// Handle is an opaque reference to a managed object, an inline scalar, or
// the null handle.
type Handle uint64

// Null is the distinguished invalid handle.
const Null Handle = 0

const (
	managedBit  = uint64(1) << 63
	inlineBit   = uint64(1) << 62
	floatBit    = uint64(1) << 61
	scalarMask  = uint64(math.MaxUint32)
	payloadMask = floatBit - 1

	// MaxPayload is the exclusive upper bound for object ids and side-table
	// indices that can be encoded in a Handle.
	MaxPayload = uint64(1) << 61
)

// Kind is the tag of a Handle.
type Kind uint8

const (
	KindNull Kind = iota
	KindReference
	KindIndirect
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindReference:
		return "reference"
	case KindIndirect:
		return "indirect"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Kind decodes the tag of h.
func (h Handle) Kind() Kind {
	bits := uint64(h)
	switch {
	case bits == 0:
		return KindNull
	case bits&managedBit == 0:
		return KindReference
	case bits&inlineBit == 0:
		return KindIndirect
	case bits&floatBit == 0:
		return KindInt
	default:
		return KindFloat
	}
}

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool { return h == Null }

// IsInline reports whether h embeds a scalar value.
func (h Handle) IsInline() bool {
	k := h.Kind()
	return k == KindInt || k == KindFloat
}

// IsObject reports whether h refers to an object through the heap or a
// side table.
func (h Handle) IsObject() bool {
	k := h.Kind()
	return k == KindReference || k == KindIndirect
}

// FromReference encodes a heap object id. Ids must be non-zero and below
// MaxPayload.
func FromReference(id uint64) (Handle, bool) {
	if id == 0 || id >= MaxPayload {
		return Null, false
	}
	return Handle(id), true
}

// FromIndex encodes a side-table index. Indices must be below MaxPayload.
func FromIndex(index uint64) (Handle, bool) {
	if index >= MaxPayload {
		return Null, false
	}
	return Handle(managedBit | index), true
}

// Reference returns the heap object id of a KindReference handle.
func (h Handle) Reference() (uint64, bool) {
	if h.Kind() != KindReference {
		return 0, false
	}
	return uint64(h), true
}

// Index returns the side-table index of a KindIndirect handle.
func (h Handle) Index() (uint64, bool) {
	if h.Kind() != KindIndirect {
		return 0, false
	}
	return uint64(h) & payloadMask, true
}

// MakeInt encodes i inline when it fits in 32 bits. No allocation happens.
func MakeInt(i int64) (Handle, bool) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return Null, false
	}
	return Handle(managedBit | inlineBit | (uint64(uint32(int32(i))) & scalarMask)), true
}

// MakeFloat encodes f inline when it round-trips exactly through float32.
// Everything else, including most NaN payloads, must be allocated.
func MakeFloat(f float64) (Handle, bool) {
	narrow := float32(f)
	if math.Float64bits(float64(narrow)) != math.Float64bits(f) {
		return Null, false
	}
	return Handle(managedBit | inlineBit | floatBit | uint64(math.Float32bits(narrow))), true
}

// Int unboxes an inline integer.
func (h Handle) Int() (int64, bool) {
	if h.Kind() != KindInt {
		return 0, false
	}
	return int64(int32(uint32(uint64(h) & scalarMask))), true
}

// Float unboxes an inline float.
func (h Handle) Float() (float64, bool) {
	if h.Kind() != KindFloat {
		return 0, false
	}
	return float64(math.Float32frombits(uint32(uint64(h) & scalarMask))), true
}

func (h Handle) String() string {
	switch h.Kind() {
	case KindNull:
		return "handle(null)"
	case KindReference:
		return fmt.Sprintf("handle(ref:%d)", uint64(h))
	case KindIndirect:
		i, _ := h.Index()
		return fmt.Sprintf("handle(idx:%d)", i)
	case KindInt:
		i, _ := h.Int()
		return fmt.Sprintf("handle(int:%d)", i)
	default:
		f, _ := h.Float()
		return fmt.Sprintf("handle(float:%g)", f)
	}
}
