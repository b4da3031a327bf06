package object

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MemberValue is the decoded content of a member. Exactly one field is
// meaningful, selected by the member kind; object members carry the heap id
// of the referenced object in Ref.
type MemberValue struct {
	Int   int64
	Float float64
	Bool  bool
	Ref   uint64
}

func (i *Instance) span(off, size int) ([]byte, error) {
	s := i.Storage()
	if s == nil {
		return nil, fmt.Errorf("%s instance has no storage", i.typ.name)
	}
	if off < 0 || off+size > len(s) {
		return nil, fmt.Errorf("offset %d (size %d) outside %s instance of %d bytes",
			off, size, i.typ.name, len(s))
	}
	return s[off : off+size], nil
}

// LoadMember decodes member m from instance storage.
func (i *Instance) LoadMember(m *MemberDescr) (MemberValue, error) {
	b, err := i.span(m.Offset, m.Kind.Size())
	if err != nil {
		return MemberValue{}, err
	}
	switch m.Kind {
	case MemberShort:
		return MemberValue{Int: int64(int16(binary.LittleEndian.Uint16(b)))}, nil
	case MemberInt:
		return MemberValue{Int: int64(int32(binary.LittleEndian.Uint32(b)))}, nil
	case MemberLong:
		return MemberValue{Int: int64(binary.LittleEndian.Uint64(b))}, nil
	case MemberFloat:
		return MemberValue{Float: float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))}, nil
	case MemberDouble:
		return MemberValue{Float: math.Float64frombits(binary.LittleEndian.Uint64(b))}, nil
	case MemberBool:
		return MemberValue{Bool: b[0] != 0}, nil
	case MemberObject:
		return MemberValue{Ref: binary.LittleEndian.Uint64(b)}, nil
	default:
		return MemberValue{}, fmt.Errorf("unknown member kind %v", m.Kind)
	}
}

// StoreMember encodes v into member m. Integer members are range checked.
func (i *Instance) StoreMember(m *MemberDescr, v MemberValue) error {
	b, err := i.span(m.Offset, m.Kind.Size())
	if err != nil {
		return err
	}
	switch m.Kind {
	case MemberShort:
		if v.Int < math.MinInt16 || v.Int > math.MaxInt16 {
			return fmt.Errorf("value %d out of range for short member %s", v.Int, m.Name)
		}
		binary.LittleEndian.PutUint16(b, uint16(int16(v.Int)))
	case MemberInt:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return fmt.Errorf("value %d out of range for int member %s", v.Int, m.Name)
		}
		binary.LittleEndian.PutUint32(b, uint32(int32(v.Int)))
	case MemberLong:
		binary.LittleEndian.PutUint64(b, uint64(v.Int))
	case MemberFloat:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.Float)))
	case MemberDouble:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.Float))
	case MemberBool:
		if v.Bool {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case MemberObject:
		binary.LittleEndian.PutUint64(b, v.Ref)
	default:
		return fmt.Errorf("unknown member kind %v", m.Kind)
	}
	return nil
}

// LoadRef reads the heap id stored in the reference slot at off.
func (i *Instance) LoadRef(off int) (uint64, error) {
	b, err := i.span(off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// StoreRef writes a heap id into the reference slot at off and returns the
// id it replaced.
func (i *Instance) StoreRef(off int, id uint64) (uint64, error) {
	b, err := i.span(off, 8)
	if err != nil {
		return 0, err
	}
	old := binary.LittleEndian.Uint64(b)
	binary.LittleEndian.PutUint64(b, id)
	return old, nil
}
