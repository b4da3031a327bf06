package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hbridge",
	Short: "Run extension modules through the object-handle bridge",
	Long: `hbridge loads extension modules into an environment and calls them.

Modules are written against the handle-based Context and run unchanged on
every backend. Record modules can be declared in YAML with --spec.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		processGlobalFlags()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hbridge.yaml)")
	pf.String("backend", "direct", "context backend: direct or universal")
	pf.Bool("debug", false, "check handle usage and report leaks")
	pf.Bool("inline-scalars", true, "encode small ints and floats in handles")
	pf.Int64("heap-limit", 0, "heap budget in bytes (0 is unlimited)")
	pf.String("storage", "go", "instance storage: go or wasm")
	pf.Uint32("wasm-max-pages", 256, "maximum pages of wasm storage")
	pf.StringSlice("spec", nil, "YAML record spec files to load as modules")
	pf.StringSlice("plugin", nil, "Go plugins to load, as path:module")
	pf.String("log-level", "warn", "log level")
	pf.Bool("no-color", false, "disable colored output")
	pf.StringP("output", "o", "", "output format: json or text")
	for _, name := range []string{
		"backend", "debug", "inline-scalars", "heap-limit", "storage",
		"wasm-max-pages", "spec", "plugin", "log-level", "no-color", "output",
	} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	rootCmd.RegisterFlagCompletionFunc("output", outputCompletion)
	rootCmd.RegisterFlagCompletionFunc("backend", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"direct", "universal"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(modulesCmd, callCmd, layoutCmd, collectCmd, versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("hbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return
		}
		viper.SetConfigFile(filepath.Join(home, ".hbridge.yaml"))
	}
	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			fatal(fmt.Errorf("reading config: %w", err))
		}
		return
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
	os.Exit(0)
}
