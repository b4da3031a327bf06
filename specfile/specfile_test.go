package specfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/object"
)

const sample = `
module: shapes
doc: Test shapes
types:
  - name: shapes.Box
    flags: [basetype, gc]
    members:
      - {name: w, kind: double}
      - {name: flag, kind: bool}
      - {name: h, kind: int}
      - {name: label, kind: object, readonly: true}
  - name: shapes.Raw
    legacy: true
    members:
      - {name: id, kind: long}
      - {name: tag, kind: short, offset: 32}
structsequences:
  - name: shapes.Pair
    fields: [a, b]
`

func TestParseLayout(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, "shapes", f.Module)
	require.Len(t, f.Types, 2)

	box := f.Types[0]
	require.Equal(t, "Box", box.ShortName())
	offsets := map[string]int{}
	for _, m := range box.Members {
		offsets[m.Name] = *m.Offset
	}
	require.Equal(t, map[string]int{"w": 0, "flag": 8, "h": 12, "label": 16}, offsets)
	require.Equal(t, 24, box.BasicSize)
	require.Equal(t, []int{16}, box.ObjectFields())
	require.Equal(t, abi.MemberObject, box.Members[3].MemberKind())

	raw := f.Types[1]
	require.Equal(t, object.HeaderSize, *raw.Members[0].Offset)
	require.Equal(t, 32, *raw.Members[1].Offset)
	require.Equal(t, 40, raw.BasicSize)
}

func TestSpec(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	extra := abi.MethodDef{Name: "extra", Sig: abi.SigNoArgs}
	spec := f.Types[0].Spec(extra)
	require.Equal(t, "shapes.Box", spec.Name)
	require.Equal(t, abi.FlagBaseType|abi.FlagHaveGC, spec.Flags)
	require.Equal(t, abi.ShapeObject, spec.Shape)
	var names []string
	for _, d := range spec.Defines {
		names = append(names, d.DefName())
	}
	require.Equal(t, []string{"w", "flag", "h", "label", "traverse", "extra"}, names)
	require.True(t, spec.Defines[3].(abi.MemberDef).ReadOnly)

	legacy := f.Types[1].Spec()
	require.Equal(t, abi.ShapeLegacy, legacy.Shape)
	require.Len(t, legacy.LegacyMembers, 2)
	require.Empty(t, legacy.LegacySlots)
	require.True(t, legacy.HasLegacy())

	desc := f.StructSequences[0].Desc()
	require.Equal(t, "shapes.Pair", desc.Name)
	require.Len(t, desc.Fields, 2)
	require.Equal(t, "b", desc.Fields[1].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no module", "types: []", "no module name"},
		{"unknown key", "module: m\ncolour: red", "field colour not found"},
		{"bad kind", "module: m\ntypes:\n  - name: m.A\n    members:\n      - {name: x, kind: quad}", `unknown member kind "quad"`},
		{"bad flag", "module: m\ntypes:\n  - name: m.A\n    flags: [fast]", `unknown flag "fast"`},
		{"too small", "module: m\ntypes:\n  - name: m.A\n    basicsize: 4\n    members:\n      - {name: x, kind: long}", "smaller than its members"},
		{"header overlap", "module: m\ntypes:\n  - name: m.A\n    legacy: true\n    members:\n      - {name: x, kind: long, offset: 8}", "overlaps the header"},
		{"duplicate member", "module: m\ntypes:\n  - name: m.A\n    members:\n      - {name: x, kind: long}\n      - {name: x, kind: int}", `duplicate member "x"`},
		{"duplicate type", "module: m\ntypes:\n  - name: m.A\nstructsequences:\n  - name: m.A\n    fields: [a]", `duplicate type "m.A"`},
		{"empty struct sequence", "module: m\nstructsequences:\n  - name: m.S", "needs a name and fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.True(t, errors.Is(err, errz.ErrConfiguration))
			require.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shapes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "shapes", f.Module)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, errors.Is(err, errz.ErrConfiguration))
}

func TestKindSize(t *testing.T) {
	require.Equal(t, 2, KindSize(abi.MemberShort))
	require.Equal(t, 4, KindSize(abi.MemberFloat))
	require.Equal(t, 1, KindSize(abi.MemberBool))
	require.Equal(t, 8, KindSize(abi.MemberObject))
}
