package ops

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

func GetAttr(b bridge.Bridge, h handle.Handle, name string) (handle.Handle, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().GetAttr(obj, name)
	return result(b, v, err)
}

// SetAttr stores value under name; a Null value deletes the attribute.
func SetAttr(b bridge.Bridge, h handle.Handle, name string, value handle.Handle) error {
	obj, err := borrow(b, h)
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
	if err := b.Heap().SetAttr(obj, name, v); err != nil {
		return fail(b, err)
	}
	return nil
}

// HasAttr never raises.
func HasAttr(b bridge.Bridge, h handle.Handle, name string) bool {
	obj, err := b.Borrow(h)
	if err != nil {
		return false
	}
	return b.Heap().HasAttr(obj, name)
}

func Call(b bridge.Bridge, callable handle.Handle, args []handle.Handle, kwnames []string) (handle.Handle, error) {
	fn, err := borrow(b, callable)
	if err != nil {
		return handle.Null, err
	}
	objs, err := borrowAll(b, args)
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().Call(fn, objs, kwnames)
	return result(b, v, err)
}

func CallMethod(b bridge.Bridge, self handle.Handle, name string, args []handle.Handle, kwnames []string) (handle.Handle, error) {
	obj, err := borrow(b, self)
	if err != nil {
		return handle.Null, err
	}
	objs, err := borrowAll(b, args)
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().CallMethod(obj, name, objs, kwnames)
	return result(b, v, err)
}

func Repr(b bridge.Bridge, h handle.Handle) (handle.Handle, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().Repr(obj)
	return result(b, v, err)
}

func Str(b bridge.Bridge, h handle.Handle) (handle.Handle, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().Str(obj)
	return result(b, v, err)
}

func Hash(b bridge.Bridge, h handle.Handle) (int64, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return 0, err
	}
	v, err := b.Heap().Hash(obj)
	if err != nil {
		return 0, fail(b, err)
	}
	return v, nil
}

func compareOp(b bridge.Bridge, op abi.CompareOp) (object.CompareOp, error) {
	if op < abi.LT || op > abi.GE {
		return 0, fail(b, errz.ContractErrorf("invalid comparison operator %d", int(op)))
	}
	return object.CompareOp(op), nil
}

func RichCompare(b bridge.Bridge, x, y handle.Handle, op abi.CompareOp) (handle.Handle, error) {
	cmp, err := compareOp(b, op)
	if err != nil {
		return handle.Null, err
	}
	objs, err := borrowAll(b, []handle.Handle{x, y})
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().RichCompare(objs[0], objs[1], cmp)
	return result(b, v, err)
}

func RichCompareBool(b bridge.Bridge, x, y handle.Handle, op abi.CompareOp) (bool, error) {
	cmp, err := compareOp(b, op)
	if err != nil {
		return false, err
	}
	if x.IsInline() && x == y {
		switch cmp {
		case object.EQ:
			return true, nil
		case object.NE:
			return false, nil
		}
	}
	objs, err := borrowAll(b, []handle.Handle{x, y})
	if err != nil {
		return false, err
	}
	v, err := b.Heap().RichCompareBool(objs[0], objs[1], cmp)
	if err != nil {
		return false, fail(b, err)
	}
	return v, nil
}

func GetIter(b bridge.Bridge, h handle.Handle) (handle.Handle, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	it, err := b.Heap().Iter(obj)
	return result(b, it, err)
}

// IterNext returns Null and no error when the iterator is exhausted. A
// StopIteration raised by the iterator is consumed.
func IterNext(b bridge.Bridge, h handle.Handle) (handle.Handle, error) {
	it, err := borrow(b, h)
	if err != nil {
		return handle.Null, err
	}
	hp := b.Heap()
	v, err := hp.IterNext(it)
	if heap.IsStopIteration(err) {
		if hp.ExceptionMatches(object.StopIterationType) {
			hp.ClearError()
		}
		return handle.Null, nil
	}
	return result(b, v, err)
}

// Is reports identity. Inline scalars are identical when their bits are.
func Is(b bridge.Bridge, x, y handle.Handle) bool {
	if x.IsInline() || y.IsInline() {
		return x == y
	}
	ox, err := b.Borrow(x)
	if err != nil {
		return false
	}
	oy, err := b.Borrow(y)
	if err != nil {
		return false
	}
	return ox == oy
}

func Binary(b bridge.Bridge, op heap.BinaryOp, x, y handle.Handle) (handle.Handle, error) {
	objs, err := borrowAll(b, []handle.Handle{x, y})
	if err != nil {
		return handle.Null, err
	}
	v, err := b.Heap().Binary(op, objs[0], objs[1])
	return result(b, v, err)
}

func GetBuffer(b bridge.Bridge, h handle.Handle) (abi.Buffer, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return abi.Buffer{}, err
	}
	data, err := b.Heap().GetBuffer(obj)
	if err != nil {
		return abi.Buffer{}, fail(b, err)
	}
	return abi.Buffer{Data: data, ReadOnly: true, ItemSize: 1, Format: "B"}, nil
}
