package ops

import (
	"unicode/utf8"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
	"github.com/deepnoodle-ai/hbridge/internal/bridge"
	"github.com/deepnoodle-ai/hbridge/object"
)

func LongFromInt64(b bridge.Bridge, v int64) (handle.Handle, error) {
	if b.InlineScalars() {
		if h, ok := handle.MakeInt(v); ok {
			return h, nil
		}
	}
	obj, err := b.Heap().NewInt(v)
	return result(b, obj, err)
}

func LongAsInt64(b bridge.Bridge, h handle.Handle) (int64, error) {
	if v, ok := h.Int(); ok {
		return v, nil
	}
	obj, err := borrow(b, h)
	if err != nil {
		return 0, err
	}
	switch o := obj.(type) {
	case *object.Int:
		return o.Value(), nil
	case *object.Bool:
		if o.Value() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fail(b, errz.TypeErrorf("an integer is required (got type %s)", obj.Type().Name()))
}

func FloatFromFloat64(b bridge.Bridge, v float64) (handle.Handle, error) {
	if b.InlineScalars() {
		if h, ok := handle.MakeFloat(v); ok {
			return h, nil
		}
	}
	obj, err := b.Heap().NewFloat(v)
	return result(b, obj, err)
}

func FloatAsFloat64(b bridge.Bridge, h handle.Handle) (float64, error) {
	if v, ok := h.Float(); ok {
		return v, nil
	}
	if v, ok := h.Int(); ok {
		return float64(v), nil
	}
	obj, err := borrow(b, h)
	if err != nil {
		return 0, err
	}
	switch o := obj.(type) {
	case *object.Float:
		return o.Value(), nil
	case *object.Int:
		return float64(o.Value()), nil
	}
	return 0, fail(b, errz.TypeErrorf("must be real number, not %s", obj.Type().Name()))
}

func IsTrue(b bridge.Bridge, h handle.Handle) (bool, error) {
	if v, ok := h.Int(); ok {
		return v != 0, nil
	}
	if v, ok := h.Float(); ok {
		return v != 0, nil
	}
	obj, err := borrow(b, h)
	if err != nil {
		return false, err
	}
	v, err := b.Heap().IsTrue(obj)
	if err != nil {
		return false, fail(b, err)
	}
	return v, nil
}

func UnicodeFromString(b bridge.Bridge, s string) (handle.Handle, error) {
	if !utf8.ValidString(s) {
		return handle.Null, fail(b, errz.ValueErrorf("string is not valid UTF-8"))
	}
	obj, err := b.Heap().NewStr(s)
	return result(b, obj, err)
}

func UnicodeAsString(b bridge.Bridge, h handle.Handle) (string, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return "", err
	}
	s, ok := obj.(*object.Str)
	if !ok {
		return "", fail(b, errz.TypeErrorf("expected str, got %s", obj.Type().Name()))
	}
	return s.Value(), nil
}

func BytesFromBytes(b bridge.Bridge, data []byte) (handle.Handle, error) {
	obj, err := b.Heap().NewBytes(data)
	return result(b, obj, err)
}

func BytesAsBytes(b bridge.Bridge, h handle.Handle) ([]byte, error) {
	obj, err := borrow(b, h)
	if err != nil {
		return nil, err
	}
	bs, ok := obj.(*object.Bytes)
	if !ok {
		return nil, fail(b, errz.TypeErrorf("expected bytes, got %s", obj.Type().Name()))
	}
	return bs.Value(), nil
}
