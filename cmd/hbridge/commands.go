package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/deepnoodle-ai/hbridge/env"
	"github.com/deepnoodle-ai/hbridge/modules/records"
	"github.com/deepnoodle-ai/hbridge/specfile"
)

var modulesCmd = &cobra.Command{
	Use:   "modules [module...]",
	Short: "List modules and the names they define",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnvironment(func(e *env.Environment) error {
			if len(args) == 0 {
				args = e.Extensions()
			}
			listing := map[string][]string{}
			for _, name := range args {
				names, err := e.Import(name)
				if err != nil {
					return err
				}
				listing[name] = names
			}
			if format := viper.GetString("output"); format != "" {
				return printResult(cmd.OutOrStdout(), listing, format)
			}
			for _, name := range args {
				fmt.Fprintln(cmd.OutOrStdout(), bold(name))
				for _, n := range listing[name] {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", n)
				}
			}
			return nil
		})
	},
}

var callCmd = &cobra.Command{
	Use:   "call <module> <function> [args...]",
	Short: "Call a module function",
	Long: `Call a module function. Arguments are parsed as YAML scalars or
flow sequences: 3 is an int, 2.5 a float, true a bool, [1, 2] a list and
anything else a string.`,
	Example: `  hbridge call math sqrt 2
  hbridge call geometry Point 1 2
  hbridge call math sum "[1, 2, 3]"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		callArgs := make([]any, 0, len(args)-2)
		for _, arg := range args[2:] {
			v, err := parseArg(arg)
			if err != nil {
				return err
			}
			callArgs = append(callArgs, v)
		}
		return withEnvironment(func(e *env.Environment) error {
			result, err := e.Call(args[0], args[1], callArgs...)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result, viper.GetString("output"))
		})
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout [spec.yaml]",
	Short: "Show the memory layout of record types",
	Long:  "Show member offsets and struct sizes of the types in a spec file, or of the builtin records module.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := records.Builtin()
		if len(args) == 1 {
			var err error
			if f, err = specfile.Load(args[0]); err != nil {
				return err
			}
		}
		rows := layoutRows(f)
		if format := viper.GetString("output"); format != "" && format != "text" {
			return printResult(cmd.OutOrStdout(), rows, format)
		}
		return printLayout(cmd.OutOrStdout(), rows)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect [module...]",
	Short: "Import modules, run the cycle collector and print heap counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnvironment(func(e *env.Environment) error {
			if len(args) == 0 {
				args = e.Extensions()
			}
			for _, name := range args {
				if _, err := e.Import(name); err != nil {
					return err
				}
			}
			freed := e.Collect()
			stats := e.Stats()
			report := map[string]any{
				"environment": e.ID().String(),
				"backend":     e.Backend(),
				"storage":     e.Storage(),
				"freed":       freed,
				"live":        e.Live(),
				"allocated":   stats.Allocated,
				"collections": stats.Collections,
			}
			return printResult(cmd.OutOrStdout(), report, viper.GetString("output"))
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("output") == "json" {
			return printResult(cmd.OutOrStdout(), map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
				"go":      runtime.Version(),
			}, "json")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "hbridge %s (commit %s, built %s, %s)\n", version, commit, date, runtime.Version())
		return nil
	},
}

// withEnvironment runs fn in a new environment and closes it. Leak reports
// from the debug backend are returned as errors.
func withEnvironment(fn func(e *env.Environment) error) error {
	e, err := newEnvironment()
	if err != nil {
		return err
	}
	var result *multierror.Error
	if err := fn(e); err != nil {
		result = multierror.Append(result, err)
	}
	if err := e.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil && len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result.ErrorOrNil()
}

// parseArg decodes a command line argument as YAML. Mappings are rejected.
func parseArg(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s, nil
	}
	switch v.(type) {
	case map[string]any:
		return nil, fmt.Errorf("argument %q: mappings are not supported", s)
	case nil:
		if strings.TrimSpace(s) == "" {
			return s, nil
		}
	}
	return v, nil
}

func printResult(w io.Writer, result any, format string) error {
	output, err := getOutput(result, format)
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintln(w, output)
	}
	return nil
}

type layoutRow struct {
	Type      string `json:"type"`
	Shape     string `json:"shape"`
	BasicSize int    `json:"basicsize"`
	Member    string `json:"member,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Offset    int    `json:"offset"`
	Size      int    `json:"size"`
	ReadOnly  bool   `json:"readonly,omitempty"`
}

func layoutRows(f *specfile.File) []layoutRow {
	var rows []layoutRow
	for _, t := range f.Types {
		shape := "object"
		if t.Legacy {
			shape = "legacy"
		}
		if len(t.Members) == 0 {
			rows = append(rows, layoutRow{Type: t.Name, Shape: shape, BasicSize: t.BasicSize})
		}
		for _, m := range t.Members {
			rows = append(rows, layoutRow{
				Type:      t.Name,
				Shape:     shape,
				BasicSize: t.BasicSize,
				Member:    m.Name,
				Kind:      m.MemberKind().String(),
				Offset:    *m.Offset,
				Size:      specfile.KindSize(m.MemberKind()),
				ReadOnly:  m.ReadOnly,
			})
		}
	}
	return rows
}

func printLayout(w io.Writer, rows []layoutRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	current := ""
	for _, r := range rows {
		if r.Type != current {
			current = r.Type
			fmt.Fprintf(tw, "%s\t%s\t%s\n", bold(r.Type), faint(r.Shape), faint(fmt.Sprintf("%d bytes", r.BasicSize)))
		}
		if r.Member == "" {
			continue
		}
		ro := ""
		if r.ReadOnly {
			ro = yellow("readonly")
		}
		fmt.Fprintf(tw, "  %s\t%s\t@%d+%d\t%s\n", r.Member, r.Kind, r.Offset, r.Size, ro)
	}
	return tw.Flush()
}
