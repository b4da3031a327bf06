package object

import "fmt"

// SeqIter iterates over a tuple or list. It holds one reference to the
// sequence.
type SeqIter struct {
	Header
	seq Object
	pos int
}

func NewSeqIter(seq Object) *SeqIter {
	return &SeqIter{Header: Header{refcnt: 1}, seq: seq}
}

func (it *SeqIter) Type() *Type { return IteratorType }

func (it *SeqIter) Seq() Object { return it.seq }

// Next returns the next item, borrowed, or false at the end.
func (it *SeqIter) Next() (Object, bool) {
	var items []Object
	switch s := it.seq.(type) {
	case *Tuple:
		items = s.items
	case *List:
		items = s.items
	}
	if it.pos >= len(items) {
		return nil, false
	}
	item := items[it.pos]
	it.pos++
	return item, true
}

// ClearSeq detaches the iterator from its sequence.
func (it *SeqIter) ClearSeq() Object {
	s := it.seq
	it.seq = None
	return s
}

func (it *SeqIter) Inspect() string {
	return fmt.Sprintf("<%s_iterator>", it.seq.Type().Name())
}

func (it *SeqIter) Interface() any { return it }

func (it *SeqIter) Equals(other Object) bool { return other == Object(it) }
