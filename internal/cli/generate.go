package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jhump/dimacros/processor"
)

type generateOpts struct {
	dryRun    bool
	keepStale bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOpts
	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Expand macros and write the generated files",
		Long: `Expand every annotation in the given packages (default ./...) and write
one <file>_macros.go per annotated file. Files whose expansions report
errors are left untouched.`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "report what would be written without writing")
	cmd.Flags().BoolVar(&opts.keepStale, "keep-stale", false, "keep generated files whose source has no annotations left")
	return cmd
}

func (a *app) generate(ctx context.Context, stdout, stderr io.Writer, patterns []string, opts generateOpts) error {
	pc := a.processorConfig(patterns)
	pc.RemoveStale = !opts.keepStale
	if opts.dryRun {
		pc.OutputFactory = processor.MemoryOutput{}.Factory()
		pc.RemoveStale = false
	}

	report, err := pc.Execute(ctx)
	if report != nil {
		if perr := a.printDiagnostics(stderr, report.Diagnostics()); perr != nil {
			return perr
		}
		verb := "wrote"
		if opts.dryRun {
			verb = "would write"
		}
		for _, f := range report.Written {
			_, _ = fmt.Fprintf(stdout, "%s %s\n", verb, a.rel(f))
		}
		for _, f := range report.Removed {
			_, _ = fmt.Fprintf(stdout, "removed %s\n", a.rel(f))
		}
		a.log.Info("generate finished",
			"packages", report.Packages,
			"written", len(report.Written),
			"unchanged", len(report.Unchanged),
			"removed", len(report.Removed))
	}
	return err
}
