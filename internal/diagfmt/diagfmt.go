// Package diagfmt prints macro diagnostics for people and for tools.
package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/fatih/color"

	"github.com/jhump/dimacros/macro"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeRelative shows paths relative to PrettyOpts.BaseDir when they
	// are inside it.
	PathModeRelative PathMode = iota
	PathModeAbsolute
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
	// Max limits the number of diagnostics printed; 0 prints all.
	Max int
}

// Sorted returns a copy of diags ordered by file, line and column. Ties keep
// their original order.
func Sorted(diags macro.Diagnostics) macro.Diagnostics {
	res := append(macro.Diagnostics(nil), diags...)
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i].Pos, res[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return res
}

// Pretty prints diags, sorted, one per line:
//
//	<path>:<line>:<col>: <severity>[<kind>]: @<macro>: <message>
func Pretty(w io.Writer, diags macro.Diagnostics, opts PrettyOpts) error {
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow, color.Bold)
	posColor := color.New(color.Bold)
	for _, c := range []*color.Color{errColor, warnColor, posColor} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	sorted := Sorted(diags)
	shown := sorted
	if opts.Max > 0 && len(shown) > opts.Max {
		shown = shown[:opts.Max]
	}
	for _, d := range shown {
		sev := warnColor.Sprintf("%s[%s]", d.Severity, d.Kind)
		if d.IsError() {
			sev = errColor.Sprintf("%s[%s]", d.Severity, d.Kind)
		}
		loc := posColor.Sprintf("%s:%d:%d", displayPath(d.Pos.Filename, opts), d.Pos.Line, d.Pos.Column)
		var err error
		if d.Macro != "" {
			_, err = fmt.Fprintf(w, "%s: %s: @%s: %s\n", loc, sev, d.Macro, d.Message)
		} else {
			_, err = fmt.Fprintf(w, "%s: %s: %s\n", loc, sev, d.Message)
		}
		if err != nil {
			return err
		}
	}
	if n := len(sorted) - len(shown); n > 0 {
		if _, err := fmt.Fprintf(w, "... and %d more\n", n); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes the number of errors and warnings, like "2 errors, 1
// warning".
func Summary(diags macro.Diagnostics) string {
	errs := len(diags.Errors())
	warns := len(diags) - errs
	return fmt.Sprintf("%d %s, %d %s", errs, plural(errs, "error"), warns, plural(warns, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func displayPath(path string, opts PrettyOpts) string {
	switch opts.PathMode {
	case PathModeAbsolute:
		return path
	case PathModeBasename:
		return filepath.Base(path)
	default:
		if opts.BaseDir == "" || !filepath.IsAbs(path) {
			return path
		}
		rel, err := filepath.Rel(opts.BaseDir, path)
		if err != nil || !filepath.IsLocal(rel) {
			return path
		}
		return rel
	}
}

type jsonDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Kind     string `json:"kind"`
	Macro    string `json:"macro,omitempty"`
	Message  string `json:"message"`
}

// JSON writes diags, sorted, as a JSON array.
func JSON(w io.Writer, diags macro.Diagnostics, opts PrettyOpts) error {
	out := make([]jsonDiagnostic, 0, len(diags))
	for _, d := range Sorted(diags) {
		out = append(out, jsonDiagnostic{
			File:     displayPath(d.Pos.Filename, opts),
			Line:     d.Pos.Line,
			Column:   d.Pos.Column,
			Severity: d.Severity.String(),
			Kind:     d.Kind.String(),
			Macro:    d.Macro,
			Message:  d.Message,
		})
		if opts.Max > 0 && len(out) == opts.Max {
			break
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
