package ops

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/object"
)

func Type(b bridge.Bridge, h handle.Handle) (handle.Handle, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	th, err := bridge.NewRef(b, obj.Type())
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return th, nil
}

func TypeCheck(b bridge.Bridge, h, typ handle.Handle) (bool, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return false, err
	}
	t, err := typeArg(b, typ)
	if err != nil {
		return false, err
	}
	return obj.Type().IsSubtype(t), nil
}

func TypeName(b bridge.Bridge, h handle.Handle) (string, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return "", err
	}
	return obj.Type().Name(), nil
}

// NewVar allocates a zeroed instance of typ with nitems variable items and
// returns its struct view.
func NewVar(b bridge.Bridge, typ handle.Handle, nitems int) (handle.Handle, abi.Payload, error) {
	t, err := typeArg(b, typ)
	if err != nil {
		return handle.Null, abi.Payload{}, err
	}
	if t.HasFlag(object.FlagBuiltin) || t.Fields() != nil {
		return handle.Null, abi.Payload{}, fail(b, errz.TypeErrorf("cannot allocate '%s' instances directly", t.Name()))
	}
	inst, err := b.Heap().NewInstance(t, nitems)
	if err != nil {
		return handle.Null, abi.Payload{}, fail(b, err)
	}
	h, err := b.Own(inst)
	if err != nil {
		return handle.Null, abi.Payload{}, fail(b, err)
	}
	return h, abi.NewPayload(inst, t.StructOffset()), nil
}

func instanceArg(b bridge.Bridge, h handle.Handle) (*object.Instance, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*object.Instance)
	if !ok {
		return nil, fail(b, errz.TypeErrorf("'%s' object has no struct", obj.Type().Name()).WithCode(errz.H3001))
	}
	return inst, nil
}

// AsStruct returns the struct view of an instance of a non-legacy type.
func AsStruct(b bridge.Bridge, h handle.Handle) (abi.Payload, error) {
	inst, err := instanceArg(b, h)
	if err != nil {
		return abi.Payload{}, err
	}
	if inst.Type().IsLegacy() {
		return abi.Payload{}, fail(b, errz.TypeErrorf("'%s' has a legacy layout; use AsStructLegacy",
			inst.Type().Name()).WithCode(errz.H3001))
	}
	return abi.NewPayload(inst, inst.Type().StructOffset()), nil
}

// AsStructLegacy returns the whole struct of an instance of a legacy type,
// header included.
func AsStructLegacy(b bridge.Bridge, h handle.Handle) (abi.Payload, error) {
	inst, err := instanceArg(b, h)
	if err != nil {
		return abi.Payload{}, err
	}
	if !inst.Type().IsLegacy() {
		return abi.Payload{}, fail(b, errz.TypeErrorf("'%s' does not have a legacy layout; use AsStruct",
			inst.Type().Name()).WithCode(errz.H3001))
	}
	return abi.NewPayload(inst, 0), nil
}

func TypeFromSpec(b bridge.Bridge, f *factory.Factory, spec *abi.TypeSpec, params ...abi.TypeSpecParam) (handle.Handle, error) {
	t, err := f.FromSpec(spec, params...)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	h, err := bridge.NewRef(b, t)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return h, nil
}

func fieldArgs(b bridge.Bridge, owner handle.Handle, f abi.Field) (*object.Instance, error) {
	inst, err := instanceArg(b, owner)
	if err != nil {
		return nil, err
	}
	if f.Offset() < object.HeaderSize {
		return nil, fail(b, errz.ContractErrorf("field at offset %d overlaps the object header", f.Offset()))
	}
	return inst, nil
}

// FieldStore stores a reference to value in field f of owner; Null clears
// the field.
func FieldStore(b bridge.Bridge, owner handle.Handle, f abi.Field, value handle.Handle) error {
	inst, err := fieldArgs(b, owner, f)
	if err != nil {
		return err
	}
	var v object.Object
	if !value.IsNull() {
		if v, err = materialize(b, value); err != nil {
			return err
		}
		defer b.Heap().DecRef(v)
	}
	if err := b.Heap().StoreField(inst, f.Offset(), v); err != nil {
		return fail(b, err)
	}
	return nil
}

// FieldLoad returns a new handle to the object in field f, or Null when the
// field is empty.
func FieldLoad(b bridge.Bridge, owner handle.Handle, f abi.Field) (handle.Handle, error) {
	inst, err := fieldArgs(b, owner, f)
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().LoadField(inst, f.Offset())
	if err != nil {
		return handle.Null, fail(b, err)
	}
	if v == nil {
		return handle.Null, nil
	}
	return own(b, v)
}

func ModuleCreate(b bridge.Bridge, f *factory.Factory, def *abi.ModuleDef) (handle.Handle, error) {
	m, err := f.CreateModule(def)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return own(b, m)
}
