package env

import (
	"plugin"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/errz"
	"github.com/deepnoodle-ai/hbridge/handle"
)

// PluginSymbolPrefix is prepended to the module name to form the init
// symbol a plugin must export.
const PluginSymbolPrefix = "HBridgeInit_"

// LoadPlugin opens the Go plugin at path and registers the extension module
// name from its HBridgeInit_<name> symbol. The symbol may be a function or
// a variable of type abi.InitFunc.
func (e *Environment) LoadPlugin(path, name string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return errz.ConfigurationErrorf("plugin %s: %v", path, err).WithCause(err)
	}
	sym, err := p.Lookup(PluginSymbolPrefix + name)
	if err != nil {
		return errz.ConfigurationErrorf("plugin %s: %v", path, err).WithCause(err)
	}
	init, err := initFromSymbol(sym)
	if err != nil {
		return errz.ConfigurationErrorf("plugin %s: %s", path, errz.From(err).Message)
	}
	e.log.Debug().Str("plugin", path).Str("module", name).Msg("plugin loaded")
	return e.Register(name, init)
}

func initFromSymbol(sym plugin.Symbol) (abi.InitFunc, error) {
	switch fn := sym.(type) {
	case abi.InitFunc:
		return fn, nil
	case func(abi.Context) (handle.Handle, error):
		return fn, nil
	case *abi.InitFunc:
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	}
	return nil, errz.TypeErrorf("init symbol has type %T, want abi.InitFunc", sym)
}
