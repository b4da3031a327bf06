package abi

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Memory gives access to the storage of one instance. Views are re-read on
// every access because the backing memory may move when it grows.
type Memory interface {
	Storage() []byte
}

// Payload is a window onto an instance's storage, starting at the payload
// offset of the type it was obtained for. Accessors panic on out-of-range
// offsets, like slice indexing does.
type Payload struct {
	mem  Memory
	base int
}

// NewPayload returns the payload of mem starting at base.
func NewPayload(mem Memory, base int) Payload {
	return Payload{mem: mem, base: base}
}

// IsZero reports whether p refers to no storage.
func (p Payload) IsZero() bool { return p.mem == nil }

// Base returns the absolute offset of the payload within instance storage.
func (p Payload) Base() int { return p.base }

// Len returns the number of payload bytes.
func (p Payload) Len() int {
	if p.mem == nil {
		return 0
	}
	n := len(p.mem.Storage()) - p.base
	if n < 0 {
		return 0
	}
	return n
}

func (p Payload) span(off, n int) []byte {
	if p.mem == nil {
		panic("payload: no storage")
	}
	s := p.mem.Storage()
	start := p.base + off
	if off < 0 || start+n > len(s) {
		panic(fmt.Sprintf("payload: access [%d:%d] outside %d bytes", off, off+n, len(s)-p.base))
	}
	return s[start : start+n]
}

func (p Payload) Int64(off int) int64 {
	return int64(binary.LittleEndian.Uint64(p.span(off, 8)))
}

func (p Payload) SetInt64(off int, v int64) {
	binary.LittleEndian.PutUint64(p.span(off, 8), uint64(v))
}

func (p Payload) Int32(off int) int32 {
	return int32(binary.LittleEndian.Uint32(p.span(off, 4)))
}

func (p Payload) SetInt32(off int, v int32) {
	binary.LittleEndian.PutUint32(p.span(off, 4), uint32(v))
}

func (p Payload) Int16(off int) int16 {
	return int16(binary.LittleEndian.Uint16(p.span(off, 2)))
}

func (p Payload) SetInt16(off int, v int16) {
	binary.LittleEndian.PutUint16(p.span(off, 2), uint16(v))
}

func (p Payload) Float32(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p.span(off, 4)))
}

func (p Payload) SetFloat32(off int, v float32) {
	binary.LittleEndian.PutUint32(p.span(off, 4), math.Float32bits(v))
}

func (p Payload) Float64(off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(p.span(off, 8)))
}

func (p Payload) SetFloat64(off int, v float64) {
	binary.LittleEndian.PutUint64(p.span(off, 8), math.Float64bits(v))
}

func (p Payload) Uint8(off int) uint8 {
	return p.span(off, 1)[0]
}

func (p Payload) SetUint8(off int, v uint8) {
	p.span(off, 1)[0] = v
}

// Read copies n bytes starting at off.
func (p Payload) Read(off, n int) []byte {
	return append([]byte(nil), p.span(off, n)...)
}

// Write copies b into the payload at off.
func (p Payload) Write(off int, b []byte) {
	copy(p.span(off, len(b)), b)
}

// Field returns the reference field at payload offset off.
func (p Payload) Field(off int) Field {
	p.span(off, 8)
	return Field{off: p.base + off}
}

// Field identifies a reference slot in instance storage. Fields are
// written with Context.FieldStore and reported by traverse hooks.
type Field struct {
	off int
}

// FieldAt returns the field at absolute storage offset off.
func FieldAt(off int) Field { return Field{off: off} }

// Offset is the absolute offset of the field in instance storage.
func (f Field) Offset() int { return f.off }

// VisitFunc is called by a traverse hook for every reference field.
type VisitFunc func(f Field) error
