package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/deepnoodle-ai/hbridge/abi"
	"github.com/deepnoodle-ai/hbridge/env"
	"github.com/deepnoodle-ai/hbridge/modules/geometry"
	"github.com/deepnoodle-ai/hbridge/modules/math"
	"github.com/deepnoodle-ai/hbridge/modules/records"
	modstrings "github.com/deepnoodle-ai/hbridge/modules/strings"
)

// builtinModules are available in every environment the CLI creates.
func builtinModules() map[string]abi.InitFunc {
	return map[string]abi.InitFunc{
		math.Name:       math.Init,
		geometry.Name:   geometry.Init,
		records.Name:    records.Init,
		modstrings.Name: modstrings.Init,
	}
}

func getEnvOptions() ([]env.Option, error) {
	opts := []env.Option{
		env.WithBackend(viper.GetString("backend")),
		env.WithDebug(viper.GetBool("debug")),
		env.WithInlineScalars(viper.GetBool("inline-scalars")),
		env.WithStorage(viper.GetString("storage")),
		env.WithWasmMaxPages(viper.GetUint32("wasm-max-pages")),
		env.WithLogger(newLogger()),
		env.WithExtensions(builtinModules()),
	}
	if limit := viper.GetInt64("heap-limit"); limit > 0 {
		opts = append(opts, env.WithHeapLimit(limit))
	}
	for _, path := range viper.GetStringSlice("spec") {
		name, init, err := records.Load(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, env.WithExtension(name, init))
	}
	return opts, nil
}

// newEnvironment creates an environment from the global flags and loads
// the requested plugins.
func newEnvironment() (*env.Environment, error) {
	opts, err := getEnvOptions()
	if err != nil {
		return nil, err
	}
	e, err := env.New(opts...)
	if err != nil {
		return nil, err
	}
	for _, p := range viper.GetStringSlice("plugin") {
		i := strings.LastIndex(p, ":")
		if i <= 0 || i == len(p)-1 {
			e.Close()
			return nil, fmt.Errorf("invalid plugin %q (want path:module)", p)
		}
		if err := e.LoadPlugin(p[:i], p[i+1:]); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}
