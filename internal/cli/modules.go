package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/ir"
)

// ParamInfo describes one module parameter.
type ParamInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// ModuleInfo describes one registered module.
type ModuleInfo struct {
	Name    string      `json:"name"`
	Doc     string      `json:"doc"`
	Params  []ParamInfo `json:"params"`
	Outputs []string    `json:"outputs"`
}

// NewModulesCommand creates the modules command.
func NewModulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the modules applications can mount",
		Long: `List the built-in module catalog: each module's parameters with their
kind (static values or reactive bindings) and the outputs other instances
can bind to.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			infos := describeModules(catalog.Builtins())
			if f.JSON() {
				return f.Success(infos)
			}
			outputModulesText(f, infos)
			return nil
		},
	}
}

func describeModules(reg *catalog.Registry) []ModuleInfo {
	names := reg.Names()
	infos := make([]ModuleInfo, 0, len(names))
	for _, name := range names {
		entry, _ := reg.Lookup(name)
		info := ModuleInfo{
			Name:    name,
			Doc:     entry.Doc,
			Params:  make([]ParamInfo, 0, len(entry.Module.Params)),
			Outputs: entry.Outputs,
		}
		for _, p := range entry.Module.Params {
			pi := ParamInfo{Name: p.Name, Kind: p.Kind.String(), Required: p.Required}
			if p.Default != nil {
				pi.Default = ir.ToGo(p.Default)
			}
			info.Params = append(info.Params, pi)
		}
		infos = append(infos, info)
	}
	return infos
}

func outputModulesText(f *OutputFormatter, infos []ModuleInfo) {
	for i, m := range infos {
		if i > 0 {
			fmt.Fprintln(f.Writer)
		}
		fmt.Fprintf(f.Writer, "%s - %s\n", m.Name, m.Doc)
		for _, p := range m.Params {
			var flags []string
			flags = append(flags, p.Kind)
			if p.Required {
				flags = append(flags, "required")
			}
			if p.Default != nil {
				iv, err := ir.FromGo(p.Default)
				if err == nil {
					flags = append(flags, "default "+ir.Format(iv))
				}
			}
			fmt.Fprintf(f.Writer, "  %s (%s)\n", p.Name, strings.Join(flags, ", "))
		}
		if len(m.Outputs) > 0 {
			fmt.Fprintf(f.Writer, "  outputs: %s\n", strings.Join(m.Outputs, ", "))
		}
	}
}
