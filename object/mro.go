package object

import (
	"fmt"
	"strings"
)

// linearize computes the C3 method resolution order of t.
func linearize(t *Type) ([]*Type, error) {
	if len(t.bases) == 0 {
		return []*Type{t}, nil
	}
	var seqs [][]*Type
	for _, b := range t.bases {
		if b.mro == nil {
			return nil, fmt.Errorf("base %s of %s is not initialized", b.name, t.name)
		}
		seqs = append(seqs, append([]*Type(nil), b.mro...))
	}
	seqs = append(seqs, append([]*Type(nil), t.bases...))

	out := []*Type{t}
	for {
		seqs = dropEmpty(seqs)
		if len(seqs) == 0 {
			return out, nil
		}
		var next *Type
		for _, seq := range seqs {
			head := seq[0]
			if !inTail(head, seqs) {
				next = head
				break
			}
		}
		if next == nil {
			names := make([]string, 0, len(t.bases))
			for _, b := range t.bases {
				names = append(names, b.name)
			}
			return nil, fmt.Errorf("cannot create a consistent method resolution order for bases %s",
				strings.Join(names, ", "))
		}
		out = append(out, next)
		for i, seq := range seqs {
			if seq[0] == next {
				seqs[i] = seq[1:]
			}
		}
	}
}

func inTail(t *Type, seqs [][]*Type) bool {
	for _, seq := range seqs {
		for _, s := range seq[1:] {
			if s == t {
				return true
			}
		}
	}
	return false
}

func dropEmpty(seqs [][]*Type) [][]*Type {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}
