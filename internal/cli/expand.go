package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jhump/dimacros"
	"github.com/jhump/dimacros/macro"
)

func newExpandCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expand <file>",
		Short: "Print the code generated for one file",
		Long: `Expand the annotations of one Go file and print the generated source to
stdout instead of writing it. The rest of the file's package is read to find
constructors and existing declarations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if macro.IsOutputFile(path) {
				return fmt.Errorf("%s is a generated file", args[0])
			}

			pc := a.processorConfig([]string{"file=" + path})
			if excluded, err := pc.Excluded(path); err != nil {
				return err
			} else if excluded {
				return fmt.Errorf("%s is excluded by the configuration", args[0])
			}
			pc.Dir = filepath.Dir(path)
			pkgs, err := pc.Load(cmd.Context())
			if err != nil {
				return err
			}
			for _, pkg := range pkgs {
				results, err := pc.ProcessFiles(cmd.Context(), pkg.Fset, pkg.PkgPath, pkg.Files)
				if err != nil {
					return err
				}
				for _, res := range results {
					if filepath.Clean(res.Source) != path {
						continue
					}
					if err := a.printDiagnostics(cmd.ErrOrStderr(), res.Diagnostics); err != nil {
						return err
					}
					if res.Failed() {
						return &dimacros.MacroExpansionError{Errors: len(res.Diagnostics.Errors()), Files: 1}
					}
					if res.Content == nil {
						a.log.Info("nothing to generate", "file", args[0])
						return nil
					}
					_, err := cmd.OutOrStdout().Write(res.Content)
					return err
				}
			}
			return fmt.Errorf("no package contains %s", args[0])
		},
	}
}
