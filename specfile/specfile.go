// Package specfile loads declarative type definitions from YAML.
//
// A spec file names a module and lists plain data types (a name, flags and
// typed members) and struct sequences:
//
//	module: records
//	types:
//	  - name: records.Person
//	    flags: [basetype, gc]
//	    members:
//	      - {name: name, kind: object}
//	      - {name: age, kind: long, readonly: true}
//	structsequences:
//	  - name: records.Pair
//	    fields: [first, second]
//
// Member offsets and the struct size are computed when they are omitted.
// Offsets are relative to the payload; for legacy types they are relative
// to the start of the struct and the header comes first.
package specfile

import (
	"bytes"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

// File is the content of one spec file.
type File struct {
	Module          string           `yaml:"module"`
	Doc             string           `yaml:"doc"`
	Types           []Type           `yaml:"types"`
	StructSequences []StructSequence `yaml:"structsequences"`
}

// Type declares one data type.
type Type struct {
	Name      string   `yaml:"name"`
	Doc       string   `yaml:"doc"`
	BasicSize int      `yaml:"basicsize"`
	Flags     []string `yaml:"flags"`
	Legacy    bool     `yaml:"legacy"`
	Members   []Member `yaml:"members"`
}

// Member declares one fixed-offset attribute.
type Member struct {
	Name     string `yaml:"name"`
	Doc      string `yaml:"doc"`
	Kind     string `yaml:"kind"`
	Offset   *int   `yaml:"offset"`
	ReadOnly bool   `yaml:"readonly"`

	kind abi.MemberKind
}

// StructSequence declares a named tuple type.
type StructSequence struct {
	Name   string   `yaml:"name"`
	Doc    string   `yaml:"doc"`
	Fields []string `yaml:"fields"`
}

var memberKinds = map[string]abi.MemberKind{
	"short":  abi.MemberShort,
	"int":    abi.MemberInt,
	"long":   abi.MemberLong,
	"float":  abi.MemberFloat,
	"double": abi.MemberDouble,
	"bool":   abi.MemberBool,
	"object": abi.MemberObject,
}

var flagNames = map[string]abi.Flags{
	"basetype": abi.FlagBaseType,
	"gc":       abi.FlagHaveGC,
}

// KindSize returns the storage size of a member kind in bytes.
func KindSize(k abi.MemberKind) int {
	switch k {
	case abi.MemberShort:
		return 2
	case abi.MemberInt, abi.MemberFloat:
		return 4
	case abi.MemberBool:
		return 1
	default:
		return 8
	}
}

// Load reads and parses the spec file at path. A leading ~ is expanded to
// the home directory.
func Load(path string) (*File, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errz.ConfigurationErrorf("spec file %s: %v", path, err).WithCause(err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, errz.ConfigurationErrorf("spec file %s: %v", path, err).WithCause(err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errz.ConfigurationErrorf("spec file %s: %s", path, errz.From(err).Message).WithCause(err)
	}
	return f, nil
}

// Parse decodes a spec file, rejecting unknown keys, and lays out every
// type.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, errz.ConfigurationErrorf("parsing spec: %v", err).WithCause(err)
	}
	if f.Module == "" {
		return nil, errz.ConfigurationErrorf("spec has no module name")
	}
	var result *multierror.Error
	seen := map[string]bool{}
	for i := range f.Types {
		t := &f.Types[i]
		if seen[t.Name] {
			result = multierror.Append(result, errz.ConfigurationErrorf("duplicate type %q", t.Name))
		}
		seen[t.Name] = true
		if err := t.layout(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, s := range f.StructSequences {
		if seen[s.Name] {
			result = multierror.Append(result, errz.ConfigurationErrorf("duplicate type %q", s.Name))
		}
		seen[s.Name] = true
		if s.Name == "" || len(s.Fields) == 0 {
			result = multierror.Append(result, errz.ConfigurationErrorf("struct sequence %q needs a name and fields", s.Name))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errz.ConfigurationErrorf("%v", err).WithCause(err)
	}
	return &f, nil
}

// ShortName returns the name after the last dot.
func (t *Type) ShortName() string {
	return t.Name[strings.LastIndex(t.Name, ".")+1:]
}

// MemberKind returns the resolved kind of m.
func (m *Member) MemberKind() abi.MemberKind { return m.kind }

// layout resolves member kinds, assigns missing offsets in declaration
// order with natural alignment and computes the basic size.
func (t *Type) layout() error {
	if t.Name == "" {
		return errz.ConfigurationErrorf("type without a name")
	}
	start := 0
	if t.Legacy {
		start = object.HeaderSize
	}
	cursor, end := start, start
	names := map[string]bool{}
	for i := range t.Members {
		m := &t.Members[i]
		kind, ok := memberKinds[m.Kind]
		if !ok {
			return errz.ConfigurationErrorf("%s.%s: unknown member kind %q", t.Name, m.Name, m.Kind)
		}
		if names[m.Name] {
			return errz.ConfigurationErrorf("%s: duplicate member %q", t.Name, m.Name)
		}
		names[m.Name] = true
		m.kind = kind
		size := KindSize(kind)
		if m.Offset == nil {
			off := (cursor + size - 1) / size * size
			m.Offset = &off
		} else if *m.Offset < start {
			return errz.ConfigurationErrorf("%s.%s: offset %d overlaps the header", t.Name, m.Name, *m.Offset)
		}
		cursor = *m.Offset + size
		if cursor > end {
			end = cursor
		}
	}
	need := (end + 7) / 8 * 8
	switch {
	case t.BasicSize == 0:
		t.BasicSize = need
	case t.BasicSize < end:
		return errz.ConfigurationErrorf("%s: basicsize %d is smaller than its members (%d)", t.Name, t.BasicSize, end)
	}
	for _, name := range t.Flags {
		if _, ok := flagNames[name]; !ok {
			return errz.ConfigurationErrorf("%s: unknown flag %q", t.Name, name)
		}
	}
	return nil
}

// ObjectFields returns the offsets of the object members.
func (t *Type) ObjectFields() []int {
	var offs []int
	for _, m := range t.Members {
		if m.kind == abi.MemberObject {
			offs = append(offs, *m.Offset)
		}
	}
	return offs
}

// Spec converts t into a TypeSpec. extra definitions are appended; when
// the type is collected and has object members, a traverse slot reporting
// them is added too.
func (t *Type) Spec(extra ...abi.Def) *abi.TypeSpec {
	spec := &abi.TypeSpec{
		Name:      t.Name,
		Doc:       t.Doc,
		BasicSize: t.BasicSize,
	}
	for _, name := range t.Flags {
		spec.Flags |= flagNames[name]
	}
	members := make([]abi.MemberDef, len(t.Members))
	for i, m := range t.Members {
		members[i] = abi.MemberDef{
			Name:     m.Name,
			Doc:      m.Doc,
			Kind:     m.kind,
			Offset:   *m.Offset,
			ReadOnly: m.ReadOnly,
		}
	}
	var traverse abi.TraverseFunc
	if offs := t.ObjectFields(); spec.Flags&abi.FlagHaveGC != 0 {
		traverse = func(p abi.Payload, visit abi.VisitFunc) error {
			for _, off := range offs {
				if err := visit(p.Field(off)); err != nil {
					return err
				}
			}
			return nil
		}
	}
	if t.Legacy {
		spec.Shape = abi.ShapeLegacy
		spec.LegacyMembers = members
		if traverse != nil {
			spec.LegacySlots = append(spec.LegacySlots, abi.LegacySlot{Slot: abi.SlotTraverse, Impl: traverse})
		}
		spec.Defines = append(spec.Defines, extra...)
		return spec
	}
	for _, m := range members {
		spec.Defines = append(spec.Defines, m)
	}
	if traverse != nil {
		spec.Defines = append(spec.Defines, abi.SlotDef{Slot: abi.SlotTraverse, Impl: traverse})
	}
	spec.Defines = append(spec.Defines, extra...)
	return spec
}

// Desc converts s into a StructSequenceDesc.
func (s *StructSequence) Desc() *abi.StructSequenceDesc {
	desc := &abi.StructSequenceDesc{Name: s.Name, Doc: s.Doc}
	for _, f := range s.Fields {
		desc.Fields = append(desc.Fields, abi.StructSequenceField{Name: f})
	}
	return desc
}
