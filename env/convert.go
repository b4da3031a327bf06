package env

import (
	"reflect"

	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/heap"
	"github.com/deepnoodle-ai/hbridge/object"
)

// fromGo converts a Go value to a new object reference. Slices and arrays
// become lists.
func fromGo(h *heap.Heap, v any) (object.Object, error) {
	switch v := v.(type) {
	case nil:
		return object.None, nil
	case object.Object:
		return h.Retain(v), nil
	case bool:
		return object.NewBool(v), nil
	case int:
		return h.NewInt(int64(v))
	case int32:
		return h.NewInt(int64(v))
	case int64:
		return h.NewInt(v)
	case float32:
		return h.NewFloat(float64(v))
	case float64:
		return h.NewFloat(v)
	case string:
		return h.NewStr(v)
	case []byte:
		return h.NewBytes(v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return h.NewInt(rv.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return h.NewInt(int64(rv.Uint()))
	case reflect.Slice, reflect.Array:
		items := make([]object.Object, 0, rv.Len())
		defer func() {
			for _, item := range items {
				h.DecRef(item)
			}
		}()
		for i := 0; i < rv.Len(); i++ {
			item, err := fromGo(h, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return h.NewList(items)
	}
	return nil, errz.TypeErrorf("cannot convert %T to an object", v)
}

// toGo converts an object to a plain Go value. Objects without a Go
// equivalent (instances, types, modules) are returned as their repr.
func toGo(h *heap.Heap, obj object.Object) any {
	switch obj := obj.(type) {
	case *object.NoneValue:
		return nil
	case *object.Bool, *object.Int, *object.Float, *object.Str, *object.Bytes:
		return obj.Interface()
	case *object.Tuple:
		if fields := obj.Type().Fields(); fields != nil {
			out := make(map[string]any, len(fields))
			for i, name := range fields {
				if i < obj.Len() {
					out[name] = toGo(h, obj.Get(i))
				}
			}
			return out
		}
		return itemsToGo(h, obj.Items())
	case *object.List:
		return itemsToGo(h, obj.Items())
	case *object.Exception:
		return obj.Interface()
	}
	repr, err := h.Repr(obj)
	if err != nil {
		h.ClearError()
		return obj.Inspect()
	}
	defer h.DecRef(repr)
	if s, ok := repr.(*object.Str); ok {
		return s.Value()
	}
	return obj.Inspect()
}

func itemsToGo(h *heap.Heap, items []object.Object) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = toGo(h, item)
	}
	return out
}
