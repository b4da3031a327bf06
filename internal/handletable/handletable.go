// Package handletable implements the side table that maps indirect handle
// indices to values, reusing freed slots.
package handletable

// Table is a slot table with free-list reuse. The zero value is ready to
// use. It is not safe for concurrent use.
type Table[T any] struct {
	entries []entry[T]
	free    []uint64
	live    int
}

type entry[T any] struct {
	value     T
	used      bool
	permanent bool
}

// Put stores v and returns its index.
func (t *Table[T]) Put(v T) uint64 {
	t.live++
	if n := len(t.free); n > 0 {
		i := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[i] = entry[T]{value: v, used: true}
		return i
	}
	t.entries = append(t.entries, entry[T]{value: v, used: true})
	return uint64(len(t.entries) - 1)
}

// PutPermanent stores v in a slot that Remove never frees.
func (t *Table[T]) PutPermanent(v T) uint64 {
	i := t.Put(v)
	t.entries[i].permanent = true
	return i
}

// Get returns the value at index i.
func (t *Table[T]) Get(i uint64) (T, bool) {
	if i >= uint64(len(t.entries)) || !t.entries[i].used {
		var zero T
		return zero, false
	}
	return t.entries[i].value, true
}

// IsPermanent reports whether the slot at i was stored with PutPermanent.
func (t *Table[T]) IsPermanent(i uint64) bool {
	return i < uint64(len(t.entries)) && t.entries[i].used && t.entries[i].permanent
}

// Remove frees the slot at i and returns the value it held. Permanent
// slots are left in place and reported as not removed.
func (t *Table[T]) Remove(i uint64) (T, bool) {
	var zero T
	if i >= uint64(len(t.entries)) || !t.entries[i].used || t.entries[i].permanent {
		return zero, false
	}
	v := t.entries[i].value
	t.entries[i] = entry[T]{}
	t.free = append(t.free, i)
	t.live--
	return v, true
}

// Len returns the number of occupied slots, permanent ones included.
func (t *Table[T]) Len() int { return t.live }

// Each calls fn for every occupied, non-permanent slot.
func (t *Table[T]) Each(fn func(i uint64, v T)) {
	for i, e := range t.entries {
		if e.used && !e.permanent {
			fn(uint64(i), e.value)
		}
	}
}
