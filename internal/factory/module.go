package factory

import (
	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/internal/trampoline"
	"github.com/deepnoodle-ai/hbridge/object"
)

type moduleFunc struct {
	name string
	doc  string
	fn   object.NativeFunc
}

// CreateModule creates the module described by def: functions first, then
// legacy functions, then every exec slot in definition order. Module
// functions receive Null as self.
func (f *Factory) CreateModule(def *abi.ModuleDef) (*object.Module, error) {
	if def == nil {
		return nil, errz.ConfigurationErrorf("module definition is nil")
	}
	if def.Name == "" {
		return nil, errz.ConfigurationErrorf("module definition has no name")
	}
	var (
		p     problems
		funcs []moduleFunc
		execs []func(*object.Module) error
		names = map[string]bool{}
	)
	addName := func(name string) bool {
		if name == "" {
			p.add(errz.H2001, "function without a name")
			return false
		}
		if names[name] {
			p.add(errz.H2006, "duplicate definition of %q", name)
			return false
		}
		names[name] = true
		return true
	}
	for _, d := range def.Defines {
		switch d := d.(type) {
		case abi.MethodDef:
			if !addName(d.Name) {
				continue
			}
			fn, err := trampoline.Method(f.b, def.Name+"."+d.Name, d.Sig, d.Impl)
			if err != nil {
				p.addErr(err)
				continue
			}
			funcs = append(funcs, moduleFunc{d.Name, d.Doc, fn})
		case abi.SlotDef:
			if d.Slot != abi.SlotModExec {
				p.add(errz.H2001, "slot %s is not valid in a module", d.Slot)
				continue
			}
			exec, err := trampoline.ModExec(f.b, def.Name+".__exec__", d.Impl)
			if err != nil {
				p.addErr(err)
				continue
			}
			execs = append(execs, exec)
		case nil:
			p.add(errz.H2001, "nil definition")
		default:
			p.add(errz.H2001, "definition %q of kind %T is not valid in a module", d.DefName(), d)
		}
	}
	for _, m := range def.LegacyMethods {
		if !addName(m.Name) {
			continue
		}
		fn, err := trampoline.Legacy(f.b, def.Name+"."+m.Name, m.Impl)
		if err != nil {
			p.addErr(err)
			continue
		}
		funcs = append(funcs, moduleFunc{m.Name, m.Doc, fn})
	}
	if err := p.err(def.Name); err != nil {
		f.log.Debug().Str("module", def.Name).Err(err).Msg("module rejected")
		return nil, err
	}

	h := f.b.Heap()
	mod, err := h.NewModule(def.Name, def.Doc)
	if err != nil {
		return nil, err
	}
	for _, fn := range funcs {
		bi, err := h.NewBuiltin(fn.name, fn.doc, fn.fn)
		if err != nil {
			h.DecRef(mod)
			return nil, err
		}
		bi.WithModule(def.Name)
		err = h.ModuleAdd(mod, fn.name, bi)
		h.DecRef(bi)
		if err != nil {
			h.DecRef(mod)
			return nil, err
		}
	}
	for _, exec := range execs {
		if err := exec(mod); err != nil {
			h.DecRef(mod)
			f.log.Debug().Str("module", def.Name).Err(err).Msg("module exec failed")
			return nil, err
		}
	}
	f.log.Debug().Str("module", def.Name).Int("functions", len(funcs)).Msg("module created")
	return mod, nil
}
