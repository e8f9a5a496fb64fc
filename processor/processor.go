package processor

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/jhump/dimacros"
	"github.com/jhump/dimacros/internal/logger"
	"github.com/jhump/dimacros/macro"
	_ "github.com/jhump/dimacros/macros" // built-in macros
	"github.com/jhump/dimacros/parser"
)

// ErrorWithPosition is an error that has source position information associated
// with it. The position indicates the location in a source file where the error
// was encountered.
type ErrorWithPosition struct {
	err error
	pos token.Position
}

// Error implements the error interface. It includes position information in the
// returned message.
func (e *ErrorWithPosition) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.pos.Filename, e.pos.Line, e.pos.Column, e.err.Error())
}

// Underlying returns the underlying error.
func (e *ErrorWithPosition) Underlying() error {
	return e.err
}

// Unwrap returns the underlying error.
func (e *ErrorWithPosition) Unwrap() error {
	return e.err
}

// Pos returns the location in source where the underlying error was
// encountered.
func (e *ErrorWithPosition) Pos() token.Position {
	return e.pos
}

// NewErrorWithPosition returns the given error, but associates it with the
// given source code location.
func NewErrorWithPosition(pos token.Position, err error) *ErrorWithPosition {
	return &ErrorWithPosition{err: err, pos: pos}
}

// Process expands all registered macros in the packages matched by patterns,
// resolved relative to dir, writing outputs next to their sources.
func Process(ctx context.Context, dir string, patterns ...string) (*Report, error) {
	cfg := Config{
		Patterns:     patterns,
		Dir:          dir,
		IncludeTests: true,
		RemoveStale:  true,
		Logger:       logger.FromContext(ctx),
	}
	return cfg.Execute(ctx)
}

// Config represents the configuration for expanding macros in a set of
// packages. Callers should configure the exported fields and then call the
// Execute method.
type Config struct {
	// Patterns are package patterns, as for go build. Defaults to ./...
	Patterns []string
	// Dir is the directory in which patterns are resolved. Defaults to the
	// current directory.
	Dir          string
	IncludeTests bool
	// Exclude are doublestar globs, relative to Dir, of source files whose
	// annotations are ignored.
	Exclude []string
	// Jobs bounds the number of concurrent expansions. Defaults to
	// GOMAXPROCS.
	Jobs int
	// Macros are the macros to expand. Defaults to all registered macros.
	Macros        []macro.Macro
	OutputFactory OutputFactory
	// RemoveStale deletes generated files whose source no longer has any
	// annotations.
	RemoveStale bool
	Logger      logger.Logger
}

// Expansion is one annotation of one element and the result of expanding it.
type Expansion struct {
	Element    *AnnotatedElement
	Annotation parser.Annotation
	Result     macro.Result
}

// FileResult is the outcome of processing one source file.
type FileResult struct {
	Source string
	Output string
	// Expansions are in source order.
	Expansions []Expansion
	// Diagnostics include those of every expansion plus those found while
	// reading annotations and checking generated names.
	Diagnostics macro.Diagnostics
	// Content is the generated source. It is nil if the file has errors or
	// nothing to generate.
	Content []byte
}

// Failed reports whether the file has error diagnostics.
func (f *FileResult) Failed() bool {
	return f.Diagnostics.HasErrors()
}

// Report summarizes an Execute run.
type Report struct {
	Packages int
	Files    []*FileResult
	// Written, Unchanged and Removed are output files.
	Written   []string
	Unchanged []string
	Removed   []string
}

// Diagnostics returns the diagnostics of all files, in file order.
func (r *Report) Diagnostics() macro.Diagnostics {
	var res macro.Diagnostics
	for _, f := range r.Files {
		res = append(res, f.Diagnostics...)
	}
	return res
}

// ErrorCount returns the number of error diagnostics and of files that have
// them.
func (r *Report) ErrorCount() (errs, files int) {
	for _, f := range r.Files {
		if n := len(f.Diagnostics.Errors()); n > 0 {
			errs += n
			files++
		}
	}
	return errs, files
}

func (cfg *Config) logger() logger.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logger.GetDefault()
}

func (cfg *Config) jobs() int {
	if cfg.Jobs > 0 {
		return cfg.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

func (cfg *Config) macros() map[string]macro.Macro {
	ms := cfg.Macros
	if ms == nil {
		ms = macro.All()
	}
	res := make(map[string]macro.Macro, len(ms))
	for _, m := range ms {
		res[m.Name()] = m
	}
	return res
}

// Package is a loaded package: its syntax, minus generated macro output.
type Package struct {
	ID      string
	PkgPath string
	Name    string
	Fset    *token.FileSet
	// Files are sorted by name.
	Files []*ast.File
}

// Load loads and parses the configured packages, sorted by ID. Generated
// _macros.go files are left out and so are packages without other files.
// Test variants of a package are separate entries when IncludeTests is set.
func (cfg *Config) Load(ctx context.Context) ([]*Package, error) {
	log := cfg.logger()
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	pcfg := &packages.Config{
		Context: ctx,
		Dir:     cfg.Dir,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax,
		Tests:   cfg.IncludeTests,
	}
	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })

	var res []*Package
	for _, pkg := range pkgs {
		if strings.HasSuffix(pkg.ID, ".test") {
			// the generated test main
			continue
		}
		for _, e := range pkg.Errors {
			log.Warn("package has errors", "pkg", pkg.ID, "error", e.Msg)
		}
		var files []*ast.File
		for _, f := range pkg.Syntax {
			if !macro.IsOutputFile(fileName(pkg.Fset, f)) {
				files = append(files, f)
			}
		}
		if len(files) == 0 {
			continue
		}
		sort.SliceStable(files, func(i, j int) bool {
			return fileName(pkg.Fset, files[i]) < fileName(pkg.Fset, files[j])
		})
		res = append(res, &Package{ID: pkg.ID, PkgPath: pkg.PkgPath, Name: pkg.Name, Fset: pkg.Fset, Files: files})
	}
	return res, nil
}

// Execute expands the macros in the configured packages and writes one
// generated file per annotated source file. Files with error diagnostics are
// not written; if there are any, the returned error is a
// *dimacros.MacroExpansionError. The report is returned in either case.
func (cfg *Config) Execute(ctx context.Context) (*Report, error) {
	log := cfg.logger()
	pkgs, err := cfg.Load(ctx)
	if err != nil {
		return nil, err
	}

	output := cfg.OutputFactory
	if output == nil {
		output = DefaultOutputFactory()
	}
	report := &Report{}
	seen := map[string]bool{}
	for _, pkg := range pkgs {
		report.Packages++
		log.Debug("processing package", "pkg", pkg.ID, "files", len(pkg.Files))

		results, err := cfg.ProcessFiles(ctx, pkg.Fset, pkg.PkgPath, pkg.Files)
		if err != nil {
			return report, err
		}
		for _, res := range results {
			// files of a package are seen again in its test variant
			if seen[res.Source] {
				continue
			}
			seen[res.Source] = true
			report.Files = append(report.Files, res)
			if err := cfg.emit(report, output, res); err != nil {
				return report, err
			}
		}
	}

	if errs, files := report.ErrorCount(); errs > 0 {
		return report, &dimacros.MacroExpansionError{Errors: errs, Files: files}
	}
	return report, nil
}

func (cfg *Config) emit(report *Report, output OutputFactory, res *FileResult) error {
	log := cfg.logger()
	switch {
	case res.Failed():
		log.Debug("not writing output", "file", res.Output, "errors", len(res.Diagnostics.Errors()))
	case res.Content != nil:
		w, err := output(res.Output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", res.Output, err)
		}
		if _, err := w.Write(res.Content); err != nil {
			_ = w.Close()
			return fmt.Errorf("writing %s: %w", res.Output, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("writing %s: %w", res.Output, err)
		}
		if c, ok := w.(interface{ Changed() bool }); ok && !c.Changed() {
			report.Unchanged = append(report.Unchanged, res.Output)
			log.Debug("output is up to date", "file", res.Output)
			return nil
		}
		report.Written = append(report.Written, res.Output)
		log.Debug("wrote output", "file", res.Output)
	case cfg.RemoveStale:
		err := os.Remove(res.Output)
		if err == nil {
			report.Removed = append(report.Removed, res.Output)
			log.Debug("removed stale output", "file", res.Output)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Excluded reports whether path matches one of the Exclude globs.
func (cfg *Config) Excluded(path string) (bool, error) {
	if len(cfg.Exclude) == 0 {
		return false, nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(abs, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range cfg.Exclude {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type job struct {
	el   *AnnotatedElement
	anno parser.Annotation
	m    macro.Macro
}

// ProcessFiles expands every annotation in the given files, which must be all
// the files of one package, and renders the output of each file. Expansions
// run concurrently; results are in source order. It returns one FileResult
// per file that is not excluded, sorted by file name, so that stale output
// of files that no longer have annotations can be found. Annotations in
// excluded files are not expanded, but their declarations are still seen
// when looking for name collisions. Besides a cancellation of ctx, the only
// error it returns is an invalid Exclude pattern.
func (cfg *Config) ProcessFiles(ctx context.Context, fset *token.FileSet, pkgPath string, files []*ast.File) ([]*FileResult, error) {
	log := cfg.logger()
	pc, err := NewContext(fset, pkgPath, files)

	var results []*FileResult
	byName := map[string]*FileResult{}
	pkgNames := map[*FileResult]string{}
	for _, f := range pc.Files {
		name := fileName(fset, f)
		excluded, exErr := cfg.Excluded(name)
		if exErr != nil {
			return nil, exErr
		}
		if excluded {
			log.Debug("excluded", "file", name)
			continue
		}
		fr := &FileResult{Source: name, Output: macro.OutputFileName(name)}
		results = append(results, fr)
		byName[name] = fr
		pkgNames[fr] = f.Name.Name
	}
	for _, e := range unjoin(err) {
		var ep *ErrorWithPosition
		if !errors.As(e, &ep) {
			continue
		}
		if fr := byName[ep.Pos().Filename]; fr != nil {
			fr.Diagnostics = append(fr.Diagnostics,
				macro.Errorf(macro.MalformedArgument, ep.Pos(), "malformed annotation: %v", ep.Underlying()))
		}
	}

	known := cfg.macros()
	var jobs []job
	for i := 0; i < pc.NumElements(); i++ {
		el := pc.GetElement(i)
		if byName[el.FileName] == nil {
			continue
		}
		for _, a := range el.Annotations {
			m, ok := known[a.Name.Name]
			if !ok || (a.Name.PackageAlias != "" && a.Name.PackageAlias != "dimacros") {
				log.Debug("skipping unknown annotation", "annotation", a.Name.String(), "element", el.Name)
				continue
			}
			jobs = append(jobs, job{el: el, anno: a, m: m})
		}
	}

	expansions := make([]Expansion, len(jobs))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(cfg.jobs())
	for i, j := range jobs {
		i, j := i, j
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := macro.Expand(j.m, macro.Invocation{Annotation: j.anno, Target: pc.Target(j.el)})
			expansions[i] = Expansion{Element: j.el, Annotation: j.anno, Result: res}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	checkDuplicates(expansions)
	checkCollisions(pc, expansions)

	for _, x := range expansions {
		fr := byName[x.Element.FileName]
		fr.Expansions = append(fr.Expansions, x)
		fr.Diagnostics = append(fr.Diagnostics, x.Result.Diagnostics...)
	}

	for _, fr := range results {
		if fr.Failed() {
			continue
		}
		var frags []*macro.GeneratedFragment
		for _, x := range fr.Expansions {
			if !x.Result.Fragment.IsEmpty() {
				frags = append(frags, x.Result.Fragment)
			}
		}
		if len(frags) == 0 {
			continue
		}
		content, err := macro.Render(filepath.Base(fr.Output), pkgPath, pkgNames[fr], frags...)
		if err != nil {
			fr.Diagnostics = append(fr.Diagnostics, macro.Errorf(macro.SynthesisFailed,
				token.Position{Filename: fr.Source}, "%v", err))
			continue
		}
		fr.Content = content
	}
	return results, nil
}

// checkDuplicates reports a macro applied more than once to one declaration.
func checkDuplicates(expansions []Expansion) {
	type key struct {
		el *AnnotatedElement
		m  string
	}
	seen := map[key]bool{}
	for i := range expansions {
		x := &expansions[i]
		k := key{x.Element, x.Result.Fragment.Macro}
		if seen[k] {
			fail(x, macro.Errorf(macro.ValidationFailed, annotationPos(x.Annotation),
				"@%s is applied to %s more than once", k.m, x.Element.Name))
			continue
		}
		seen[k] = true
	}
}

// checkCollisions reports generated declarations whose names are already
// declared in the package or by an earlier expansion.
func checkCollisions(pc *Context, expansions []Expansion) {
	declared := packageDecls(pc.Files)
	for i := range expansions {
		x := &expansions[i]
		if x.Result.Failed() {
			continue
		}
		var diags macro.Diagnostics
		for _, name := range x.Result.Fragment.DeclNames() {
			if strings.HasPrefix(name, "_ ") {
				continue
			}
			if by, ok := declared[name]; ok {
				diags = append(diags, macro.Errorf(macro.ValidationFailed, annotationPos(x.Annotation),
					"generated %s conflicts with %s", name, by))
			}
		}
		if len(diags) > 0 {
			fail(x, diags...)
			continue
		}
		for _, name := range x.Result.Fragment.DeclNames() {
			declared[name] = "the output of @" + x.Result.Fragment.Macro + " on " + x.Element.Name
		}
	}
}

func fail(x *Expansion, diags ...macro.Diagnostic) {
	for i := range diags {
		diags[i].Macro = x.Result.Fragment.Macro
	}
	x.Result.Diagnostics = append(x.Result.Diagnostics, diags...)
	x.Result.State = macro.StateFailed
	x.Result.Fragment = &macro.GeneratedFragment{Macro: x.Result.Fragment.Macro, Target: x.Result.Fragment.Target}
}

// packageDecls returns the top-level names and methods (as Type.Method)
// declared in files, each mapped to a description of where.
func packageDecls(files []*ast.File) map[string]string {
	res := map[string]string{}
	for _, f := range files {
		for _, decl := range f.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				name := decl.Name.Name
				if decl.Recv != nil && len(decl.Recv.List) == 1 {
					name = recvTypeName(decl.Recv.List[0].Type) + "." + name
				}
				res[name] = "an existing declaration"
			case *ast.GenDecl:
				for _, spec := range decl.Specs {
					switch spec := spec.(type) {
					case *ast.TypeSpec:
						res[spec.Name.Name] = "an existing declaration"
					case *ast.ValueSpec:
						for _, n := range spec.Names {
							if n.Name != "_" {
								res[n.Name] = "an existing declaration"
							}
						}
					}
				}
			}
		}
	}
	return res
}

func annotationPos(a parser.Annotation) token.Position {
	return token.Position{Filename: a.Pos.Filename, Line: a.Pos.Line, Column: a.Pos.Column}
}

func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
