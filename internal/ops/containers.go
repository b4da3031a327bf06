package ops

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/internal/factory"
	"github.com/deepnoodle-ai/hbridge/object"
)

func TupleFromArray(b bridge.Bridge, items []handle.Handle) (handle.Handle, error) {
	objs, err := borrowAll(b, items)
	if err != nil {
		return handle.Null, err
	}
	obj, err := b.Heap().NewTuple(objs)
	return result(b, obj, err)
}

func ListNew(b bridge.Bridge, items []handle.Handle) (handle.Handle, error) {
	objs, err := borrowAll(b, items)
	if err != nil {
		return handle.Null, err
	}
	obj, err := b.Heap().NewList(objs)
	return result(b, obj, err)
}

func ListAppend(b bridge.Bridge, list, item handle.Handle) error {
	obj, err := borrow(b, list)
	if err != nil {
		return err
	}
	ls, ok := obj.(*object.List)
	if !ok {
		return fail(b, errz.TypeErrorf("expected list, got %s", obj.Type().Name()))
	}
	v, err := materialize(b, item)
	if err != nil {
		return err
	}
	defer b.Heap().DecRef(v)
	if err := b.Heap().ListAppend(ls, v); err != nil {
		return fail(b, err)
	}
	return nil
}

func Length(b bridge.Bridge, h handle.Handle) (int, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return 0, err
	}
	n, err := b.Heap().Len(obj)
	if err != nil {
		return 0, fail(b, err)
	}
	return n, nil
}

func GetItem(b bridge.Bridge, h, key handle.Handle) (handle.Handle, error) {
	objs, err := borrowAll(b, []handle.Handle{h, key})
	if err != nil {
		return handle.Null, err
	}
	obj, err := b.Heap().GetItem(objs[0], objs[1])
	return result(b, obj, err)
}

func GetItemInt(b bridge.Bridge, h handle.Handle, i int) (handle.Handle, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	item, err := b.Heap().GetItemInt(obj, i)
	return result(b, item, err)
}

// SetItem performs h[key] = value; a Null value deletes the item.
func SetItem(b bridge.Bridge, h, key, value handle.Handle) error {
	objs, err := borrowAll(b, []handle.Handle{h, key})
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
	if err := b.Heap().SetItem(objs[0], objs[1], v); err != nil {
		return fail(b, err)
	}
	return nil
}

func Contains(b bridge.Bridge, container, item handle.Handle) (bool, error) {
	objs, err := borrowAll(b, []handle.Handle{container, item})
	if err != nil {
		return false, err
	}
	ok, err := b.Heap().Contains(objs[0], objs[1])
	if err != nil {
		return false, fail(b, err)
	}
	return ok, nil
}

func StructSequenceNewType(b bridge.Bridge, f *factory.Factory, desc *abi.StructSequenceDesc) (handle.Handle, error) {
	t, err := f.StructSequenceType(desc)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	h, err := bridge.NewRef(b, t)
	if err != nil {
		return handle.Null, fail(b, err)
	}
	return h, nil
}

func StructSequenceFromArray(b bridge.Bridge, typ handle.Handle, items []handle.Handle) (handle.Handle, error) {
	t, err := typeArg(b, typ)
	if err != nil {
		return handle.Null, err
	}
	objs, err := borrowAll(b, items)
	if err != nil {
		return handle.Null, err
	}
	obj, err := b.Heap().NewStructSeq(t, objs)
	return result(b, obj, err)
}
