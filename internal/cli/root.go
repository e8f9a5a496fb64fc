// Package cli provides the macrogo command-line interface.
package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jhump/dimacros/internal/config"
	"github.com/jhump/dimacros/internal/diagfmt"
	"github.com/jhump/dimacros/internal/logger"
	"github.com/jhump/dimacros/macro"
	"github.com/jhump/dimacros/processor"
)

// Version information (set at build time).
var (
	Version   = "dev"
	GitCommit = ""
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	dir     string
	format  string

	cfg *config.Config
	log logger.Logger
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "macrogo",
		Short: "Expand dependency-injection macros in Go sources",
		Long: `macrogo finds annotations like @Injectable in the doc comments of Go
declarations and writes the code they describe into a generated
<file>_macros.go next to each annotated file.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./"+config.FileName+")")
	flags.StringVarP(&a.dir, "dir", "C", ".", "directory in which package patterns are resolved")
	flags.StringVar(&a.format, "format", "text", "diagnostics format (text|json)")
	flags.Bool("include-tests", true, "also process _test.go files")
	flags.IntP("jobs", "j", 0, "concurrent expansions (default: number of CPUs)")
	flags.StringSlice("exclude", nil, "doublestar globs of files to skip, relative to --dir")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("color", config.ColorAuto, "color diagnostics (auto|always|never)")
	flags.Int("max-diagnostics", 0, "print at most this many diagnostics (0: all)")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newExpandCmd(a),
		newListCmd(a),
		newMacrosCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.dir, a.cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("unknown format %q", a.format)
	}
	a.cfg = cfg
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	a.log = logger.NewLogger(lc)
	if cfg.FileUsed != "" {
		a.log.Debug("using config file", "file", cfg.FileUsed)
	}
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), a.log))
	return nil
}

func (a *app) processorConfig(patterns []string) *processor.Config {
	return &processor.Config{
		Patterns:     patterns,
		Dir:          a.dir,
		IncludeTests: a.cfg.IncludeTests,
		Exclude:      a.cfg.Exclude,
		Jobs:         a.cfg.Jobs,
		Logger:       a.log,
	}
}

func (a *app) baseDir() string {
	abs, err := filepath.Abs(a.dir)
	if err != nil {
		return a.dir
	}
	return abs
}

// rel shows path relative to --dir when it is inside it.
func (a *app) rel(path string) string {
	rel, err := filepath.Rel(a.baseDir(), path)
	if err != nil || !filepath.IsLocal(rel) {
		return path
	}
	return rel
}

func (a *app) printDiagnostics(w io.Writer, diags macro.Diagnostics) error {
	if len(diags) == 0 && a.format != "json" {
		return nil
	}
	opts := diagfmt.PrettyOpts{
		BaseDir: a.baseDir(),
		Max:     a.cfg.MaxDiagnostics,
	}
	if a.format == "json" {
		return diagfmt.JSON(w, diags, opts)
	}
	switch a.cfg.Color {
	case config.ColorAlways:
		opts.Color = true
	case config.ColorAuto:
		opts.Color = !color.NoColor
	}
	if err := diagfmt.Pretty(w, diags, opts); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, diagfmt.Summary(diags))
	return err
}
