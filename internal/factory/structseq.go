package factory

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

// StructSequenceType creates a named tuple type whose items are also
// readable as attributes.
func (f *Factory) StructSequenceType(desc *abi.StructSequenceDesc) (*object.Type, error) {
	if desc == nil {
		return nil, errz.ConfigurationErrorf("struct sequence description is nil")
	}
	var p problems
	if desc.Name == "" {
		p.add(errz.H2001, "struct sequence has no name")
	}
	if len(desc.Fields) == 0 {
		p.add(errz.H2001, "struct sequence needs at least one field")
	}
	fields := make([]string, 0, len(desc.Fields))
	seen := map[string]bool{}
	for i, field := range desc.Fields {
		switch {
		case field.Name == "":
			p.add(errz.H2001, "field %d has no name", i)
		case seen[field.Name]:
			p.add(errz.H2006, "duplicate field %q", field.Name)
		}
		seen[field.Name] = true
		fields = append(fields, field.Name)
	}
	if err := p.err(desc.Name); err != nil {
		return nil, f.reject(desc.Name, err)
	}
	h := f.b.Heap()
	tableBytes := int64(len(fields)+1) * tableEntrySize
	if err := h.Reserve(tableBytes); err != nil {
		return nil, f.reject(desc.Name, err)
	}
	module, name := splitName(desc.Name)
	t, err := h.NewType(object.Layout{
		Name:          name,
		Doc:           desc.Doc,
		Module:        module,
		Bases:         []*object.Type{object.TupleType},
		BasicSize:     object.TupleType.BasicSize(),
		PayloadOffset: object.TupleType.PayloadOffset(),
		Fields:        fields,
	})
	if err != nil {
		h.Release(tableBytes)
		return nil, f.reject(desc.Name, err)
	}
	h.AdoptTables(t, tableBytes)
	return t, nil
}
