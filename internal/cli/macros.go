package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jhump/dimacros/macro"
)

func newMacrosCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "macros",
		Short: "Show the available macros and their options",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			renderMacros(cmd.OutOrStdout(), macro.All())
		},
	}
}

func renderMacros(w io.Writer, macros []macro.Macro) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Macro", "Applies to", "Options", "Description"})
	for _, m := range macros {
		kinds := make([]string, 0, len(m.Supports()))
		for _, k := range m.Supports() {
			kinds = append(kinds, k.String())
		}
		opts := make([]string, 0, len(m.Schema()))
		for _, o := range m.Schema() {
			opts = append(opts, describeOption(o))
		}
		t.AppendRow(table.Row{"@" + m.Name(), strings.Join(kinds, ", "), strings.Join(opts, "\n"), m.Doc()})
		t.AppendSeparator()
	}
	t.Render()
}

// describeOption renders an option like `scope: .graph|.container = .graph`.
func describeOption(o macro.Option) string {
	switch o.Kind {
	case macro.OptEnum:
		return fmt.Sprintf("%s: .%s = .%v", o.Name, strings.Join(o.Allowed, "|."), o.Default)
	case macro.OptString:
		return fmt.Sprintf("%s: string = %q", o.Name, o.Default)
	case macro.OptStringList:
		def, _ := o.Default.([]string)
		quoted := make([]string, len(def))
		for i, d := range def {
			quoted[i] = fmt.Sprintf("%q", d)
		}
		return fmt.Sprintf("%s: [string] = [%s]", o.Name, strings.Join(quoted, ", "))
	default:
		return fmt.Sprintf("%s: %s = %v", o.Name, o.Kind, o.Default)
	}
}
