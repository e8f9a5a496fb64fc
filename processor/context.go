package processor

import (
	"errors"
	"go/ast"
	"go/token"
	"sort"
	"strings"

	"github.com/jhump/dimacros/macro"
	"github.com/jhump/dimacros/parser"
)

// AnnotatedElement is a top-level type, func or method whose doc comment has
// annotations.
type AnnotatedElement struct {
	// Name is the declared name; methods are named Type.Method.
	Name string
	// FileName is the name of the file that contains the element.
	FileName string
	File     *ast.File
	// Decl is a *ast.TypeSpec or a *ast.FuncDecl.
	Decl        ast.Node
	Pos         token.Position
	Annotations []parser.Annotation
}

// Context represents a single package being processed. It provides access to
// all annotated elements encountered in the package, in source order.
type Context struct {
	Fset    *token.FileSet
	PkgPath string
	// Files are all files of the package, sorted by name.
	Files []*ast.File

	allElements  []*AnnotatedElement
	byAnnotation map[string][]*AnnotatedElement
}

// NewContext finds the annotated elements of a package. Files that contain
// malformed annotations are still processed; the returned error joins one
// *ErrorWithPosition per malformed doc comment.
func NewContext(fset *token.FileSet, pkgPath string, files []*ast.File) (*Context, error) {
	sorted := append([]*ast.File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return fileName(fset, sorted[i]) < fileName(fset, sorted[j])
	})
	c := &Context{
		Fset:         fset,
		PkgPath:      pkgPath,
		Files:        sorted,
		byAnnotation: map[string][]*AnnotatedElement{},
	}
	var errs []error
	for _, file := range sorted {
		errs = append(errs, c.computeAnnotationsFromFile(file)...)
	}
	return c, errors.Join(errs...)
}

// NumElements returns the number of annotated elements in the package.
func (c *Context) NumElements() int {
	return len(c.allElements)
}

// GetElement returns the annotated element at the given index, which must be
// in [0, c.NumElements()).
func (c *Context) GetElement(index int) *AnnotatedElement {
	return c.allElements[index]
}

// ElementsAnnotatedWith returns the elements that have an annotation with the
// given name, like "Injectable".
func (c *Context) ElementsAnnotatedWith(name string) []*AnnotatedElement {
	return c.byAnnotation[name]
}

// Target returns the macro target for the element.
func (c *Context) Target(el *AnnotatedElement) macro.Target {
	return macro.Target{
		Fset:    c.Fset,
		PkgPath: c.PkgPath,
		Files:   c.Files,
		File:    el.File,
		Decl:    el.Decl,
	}
}

func (c *Context) computeAnnotationsFromFile(file *ast.File) []error {
	var errs []error
	add := func(name string, decl ast.Node, doc *ast.CommentGroup) {
		annos, err := c.parseAnnotations(doc)
		if err != nil {
			errs = append(errs, err)
		}
		if len(annos) == 0 {
			return
		}
		ae := &AnnotatedElement{
			Name:        name,
			FileName:    fileName(c.Fset, file),
			File:        file,
			Decl:        decl,
			Pos:         c.Fset.Position(decl.Pos()),
			Annotations: annos,
		}
		c.allElements = append(c.allElements, ae)
		var prev string
		for _, a := range annos {
			if a.Name.Name != prev {
				c.byAnnotation[a.Name.Name] = append(c.byAnnotation[a.Name.Name], ae)
				prev = a.Name.Name
			}
		}
	}

	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			if decl.Tok != token.TYPE {
				continue
			}
			for _, s := range decl.Specs {
				spec := s.(*ast.TypeSpec)
				doc := spec.Doc
				if (doc == nil || len(doc.List) == 0) && len(decl.Specs) == 1 {
					doc = decl.Doc
				}
				add(spec.Name.Name, spec, doc)
			}
		case *ast.FuncDecl:
			name := decl.Name.Name
			if decl.Recv != nil && len(decl.Recv.List) == 1 {
				name = recvTypeName(decl.Recv.List[0].Type) + "." + name
			}
			add(name, decl, decl.Doc)
		}
	}
	return errs
}

func (c *Context) parseAnnotations(doc *ast.CommentGroup) ([]parser.Annotation, error) {
	src, ok := extractAnnotations(c.Fset, doc)
	if !ok {
		return nil, nil
	}
	filename := c.Fset.PositionFor(doc.Pos(), false).Filename
	annos, perr := parser.ParseAnnotations(filename, strings.NewReader(src))
	if perr != nil {
		p := perr.Pos()
		pos := token.Position{Filename: filename, Line: p.Line, Column: p.Column}
		return nil, NewErrorWithPosition(pos, perr.Underlying())
	}
	return annos, nil
}

// extractAnnotations returns the annotation text of a doc comment: every
// line from the first one that starts with '@', with comment markers blanked
// out. The text is laid out so that line and column numbers within it are
// the same as in the source file.
func extractAnnotations(fset *token.FileSet, doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}
	var buf strings.Builder
	line := 1
	found := false
	for _, cm := range doc.List {
		pos := fset.PositionFor(cm.Slash, false)
		txt := cm.Text
		if strings.HasPrefix(txt, "//") {
			txt = txt[2:]
			if isDirective(txt) {
				continue
			}
		} else {
			txt = strings.TrimSuffix(txt[2:], "*/")
		}
		col := pos.Column + 2
		for i, l := range strings.Split(txt, "\n") {
			if i > 0 {
				col = 1
			}
			trimmed := strings.TrimSpace(l)
			if !found && trimmed != "" && trimmed[0] == '@' {
				found = true
			}
			if found {
				for ; line < pos.Line+i; line++ {
					buf.WriteByte('\n')
				}
				buf.WriteString(strings.Repeat(" ", col-1))
				buf.WriteString(l)
			}
		}
	}
	if !found {
		return "", false
	}
	buf.WriteByte('\n')
	return buf.String(), true
}

// isDirective reports whether a line comment is a tool directive like
// //go:generate or //nolint:errcheck.
func isDirective(txt string) bool {
	if strings.HasPrefix(txt, "line ") || strings.HasPrefix(txt, "export ") || strings.HasPrefix(txt, "extern ") {
		return true
	}
	colon := strings.Index(txt, ":")
	if colon <= 0 || colon+1 >= len(txt) {
		return false
	}
	for _, r := range txt[:colon] {
		if !('a' <= r && r <= 'z' || '0' <= r && r <= '9') {
			return false
		}
	}
	r := txt[colon+1]
	return 'a' <= r && r <= 'z' || '0' <= r && r <= '9'
}

func recvTypeName(expr ast.Expr) string {
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

func fileName(fset *token.FileSet, file *ast.File) string {
	return fset.File(file.Pos()).Name()
}
