// Package macrotest has helpers for testing macros against Go source held in
// strings.
package macrotest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/jhump/dimacros/macro"
	annoparser "github.com/jhump/dimacros/parser"
)

// PkgPath is the import path given to the package parsed from test source.
const PkgPath = "example.com/app"

// Invocation parses src as a file of package PkgPath and returns an
// invocation of the given annotation text (like `@Injectable(scope:
// .container)`) attached to the top-level type, func or method named decl.
// Methods are named Type.Method.
func Invocation(t testing.TB, src, decl, annotation string) macro.Invocation {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "app.go", src, parser.ParseComments)
	require.NoError(t, err)

	node := FindDecl(file, decl)
	require.NotNil(t, node, "declaration %s not found", decl)

	annos, perr := annoparser.ParseAnnotations("app.go", strings.NewReader(annotation))
	if perr != nil {
		require.NoError(t, perr)
	}
	require.Len(t, annos, 1)

	return macro.Invocation{
		Annotation: annos[0],
		Target: macro.Target{
			Fset:    fset,
			PkgPath: PkgPath,
			Files:   []*ast.File{file},
			File:    file,
			Decl:    node,
		},
	}
}

// Expand expands the named macro, which must be registered.
func Expand(t testing.TB, name, src, decl, annotation string) macro.Result {
	t.Helper()
	m, ok := macro.Lookup(name)
	require.True(t, ok, "macro %s is not registered", name)
	return macro.Expand(m, Invocation(t, src, decl, annotation))
}

// Render renders a successful result as the source of a file in package
// app and checks that it parses.
func Render(t testing.TB, res macro.Result) string {
	t.Helper()
	require.False(t, res.Failed(), "expansion failed: %v", res.Diagnostics)
	src, err := macro.Render("app_macros.go", PkgPath, "app", res.Fragment)
	require.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), "app_macros.go", src, parser.AllErrors)
	require.NoError(t, err, "generated source does not parse:\n%s", src)
	return string(src)
}

// TypeCheck type-checks src together with generated, the rendered output of
// its macros, as package PkgPath. Imports found in stubs, which maps import
// paths to the source of a single file, are type-checked from that source.
// All other imports, like the standard library and the dimacros runtime, are
// loaded with go/packages.
func TypeCheck(t testing.TB, src, generated string, stubs map[string]string) {
	t.Helper()
	fset := token.NewFileSet()
	files := []*ast.File{
		parseFile(t, fset, "app.go", src),
		parseFile(t, fset, "app_macros.go", generated),
	}
	stubFiles := make(map[string]*ast.File, len(stubs))
	for path, stubSrc := range stubs {
		stubFiles[path] = parseFile(t, fset, path+"/stub.go", stubSrc)
	}

	var external []string
	seen := map[string]bool{}
	collect := func(f *ast.File) {
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			if _, ok := stubs[path]; ok || seen[path] || path == "C" {
				continue
			}
			seen[path] = true
			external = append(external, path)
		}
	}
	for _, f := range files {
		collect(f)
	}
	for _, f := range stubFiles {
		collect(f)
	}
	sort.Strings(external)

	imp := &stubImporter{
		fset:   fset,
		stubs:  stubFiles,
		loaded: loadTypes(t, external),
		done:   map[string]*types.Package{},
	}
	conf := types.Config{Importer: imp}
	_, err := conf.Check(PkgPath, fset, files, nil)
	require.NoError(t, err, "generated source does not type-check:\n%s", generated)
}

func parseFile(t testing.TB, fset *token.FileSet, name, src string) *ast.File {
	t.Helper()
	file, err := parser.ParseFile(fset, name, src, parser.AllErrors)
	require.NoError(t, err, "%s does not parse:\n%s", name, src)
	return file
}

// loadTypes loads the type information of the given packages and all of
// their dependencies, keyed by import path.
func loadTypes(t testing.TB, paths []string) map[string]*types.Package {
	t.Helper()
	res := map[string]*types.Package{}
	if len(paths) == 0 {
		return res
	}
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedImports | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, paths...)
	require.NoError(t, err)
	var errs []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			errs = append(errs, e.Error())
		}
		if pkg.Types != nil {
			res[pkg.PkgPath] = pkg.Types
		}
	})
	require.Empty(t, errs, "loading %v", paths)
	return res
}

type stubImporter struct {
	fset   *token.FileSet
	stubs  map[string]*ast.File
	loaded map[string]*types.Package
	done   map[string]*types.Package
}

func (imp *stubImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := imp.done[path]; ok {
		return pkg, nil
	}
	if pkg, ok := imp.loaded[path]; ok {
		return pkg, nil
	}
	file, ok := imp.stubs[path]
	if !ok {
		return nil, fmt.Errorf("no stub or loaded package for %q", path)
	}
	conf := types.Config{Importer: imp}
	pkg, err := conf.Check(path, imp.fset, []*ast.File{file}, nil)
	if err != nil {
		return nil, err
	}
	imp.done[path] = pkg
	return pkg, nil
}

// Squash collapses every run of white space in src to a single space, so
// that tests can look for code regardless of gofmt alignment.
func Squash(src string) string {
	return strings.Join(strings.Fields(src), " ")
}

// FindDecl returns the *ast.TypeSpec or *ast.FuncDecl named name in file.
// Methods are named Type.Method.
func FindDecl(file *ast.File, name string) ast.Node {
	recv, method, isMethod := strings.Cut(name, ".")
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok && !isMethod && ts.Name.Name == name {
					return ts
				}
			}
		case *ast.FuncDecl:
			if decl.Recv == nil {
				if !isMethod && decl.Name.Name == name {
					return decl
				}
				continue
			}
			if isMethod && decl.Name.Name == method && recvName(decl.Recv.List[0].Type) == recv {
				return decl
			}
		}
	}
	return nil
}

func recvName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *ast.IndexExpr:
		expr = e.X
	case *ast.IndexListExpr:
		expr = e.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}
