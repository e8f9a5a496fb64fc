package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jhump/dimacros/macro"
	"github.com/jhump/dimacros/processor"
)

// annotationRow is one annotation found by list.
type annotationRow struct {
	Pos        string
	Element    string
	Annotation string
	Status     string
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [packages]",
		Short: "List annotated declarations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.listAnnotations(cmd, args)
			if err != nil {
				return err
			}
			renderAnnotations(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func (a *app) listAnnotations(cmd *cobra.Command, patterns []string) ([]annotationRow, error) {
	pc := a.processorConfig(patterns)
	pkgs, err := pc.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	var rows []annotationRow
	seen := map[string]bool{}
	for _, pkg := range pkgs {
		ctx, err := processor.NewContext(pkg.Fset, pkg.PkgPath, pkg.Files)
		if err != nil {
			a.log.Warn("malformed annotations", "pkg", pkg.ID, "error", err)
		}
		for i := 0; i < ctx.NumElements(); i++ {
			el := ctx.GetElement(i)
			if excluded, err := pc.Excluded(el.FileName); err != nil {
				return nil, err
			} else if excluded {
				continue
			}
			for _, anno := range el.Annotations {
				pos := fmt.Sprintf("%s:%d", a.rel(anno.Pos.Filename), anno.Pos.Line)
				key := pos + " " + anno.Name.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				status := "unknown"
				if _, ok := macro.Lookup(anno.Name.Name); ok && (anno.Name.PackageAlias == "" || anno.Name.PackageAlias == "dimacros") {
					status = "macro"
				}
				rows = append(rows, annotationRow{
					Pos:        pos,
					Element:    el.Name,
					Annotation: "@" + anno.Name.String(),
					Status:     status,
				})
			}
		}
	}
	return rows, nil
}

func renderAnnotations(w io.Writer, rows []annotationRow) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(no annotations)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Location", "Declaration", "Annotation", "Kind"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Pos, r.Element, r.Annotation, r.Status})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d annotations)\n", len(rows))
}
