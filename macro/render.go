package macro

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/jhump/gopoet"
)

// GeneratedHeader is the first line of every generated file.
const GeneratedHeader = "// Code generated by macrogo. DO NOT EDIT."

// Render renders the given fragments, in order, as the source of one Go file
// in the given package. The output is gofmt-formatted; a rendering that does
// not parse is reported as an error.
func Render(fileName, pkgPath, pkgName string, frags ...*GeneratedFragment) ([]byte, error) {
	file := gopoet.NewGoFile(fileName, pkgPath, pkgName)
	pkg := gopoet.Package{ImportPath: pkgPath, Name: pkgName}
	for _, f := range frags {
		if f == nil {
			continue
		}
		for _, p := range f.Pieces {
			for _, el := range p.Elements {
				fe, err := fileElement(pkg, el)
				if err != nil {
					return nil, fmt.Errorf("%s: template %s: %w", f.Target, p.Template, err)
				}
				file.AddElement(fe)
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(GeneratedHeader)
	buf.WriteString("\n\n")
	if err := gopoet.WriteGoFile(&buf, file); err != nil {
		return nil, err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generated code for %s does not parse: %w", fileName, err)
	}
	return nameImports(fileName, src, file)
}

// nameImports gives an explicit name to every import whose symbols are
// qualified by something other than the last element of the import path.
// gopoet only names the imports it had to rename, but packages converted from
// source carry the name the source file imports them as, which may be an
// alias.
func nameImports(fileName string, src []byte, file *gopoet.GoFile) ([]byte, error) {
	names := map[string]string{}
	for _, spec := range file.ImportSpecs() {
		if spec.PackageAlias != "" {
			continue
		}
		name := strings.TrimSuffix(file.PrefixForPackage(spec.ImportPath), ".")
		if name != path.Base(spec.ImportPath) {
			names[spec.ImportPath] = name
		}
	}
	if len(names) == 0 {
		return src, nil
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, fileName, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("generated code for %s does not parse: %w", fileName, err)
	}
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if name, ok := names[p]; ok && imp.Name == nil {
			imp.Name = ast.NewIdent(name)
		}
	}
	var out bytes.Buffer
	if err := format.Node(&out, fset, f); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Render renders the fragment alone as a Go file in the given package.
func (f *GeneratedFragment) Render(pkgPath, pkgName string) ([]byte, error) {
	return Render(OutputFileName(strings.ToLower(f.Target)+".go"), pkgPath, pkgName, f)
}

// OutputFileName returns the name of the generated file for a source file:
// foo.go -> foo_macros.go, foo_test.go -> foo_macros_test.go.
func OutputFileName(source string) string {
	if strings.HasSuffix(source, "_test.go") {
		return strings.TrimSuffix(source, "_test.go") + "_macros_test.go"
	}
	return strings.TrimSuffix(source, ".go") + "_macros.go"
}

// IsOutputFile reports whether name looks like a file written by Render.
func IsOutputFile(name string) bool {
	return strings.HasSuffix(name, "_macros.go") || strings.HasSuffix(name, "_macros_test.go")
}

func fileElement(pkg gopoet.Package, el Element) (gopoet.FileElement, error) {
	switch el := el.(type) {
	case *Method:
		var rcvr *gopoet.ReceiverSpec
		if el.Pointer {
			rcvr = gopoet.NewPointerReceiver(el.Recv, el.Type)
		} else {
			rcvr = gopoet.NewReceiver(el.Recv, el.Type)
		}
		fn := gopoet.NewMethod(rcvr, el.Name)
		addSignature(fn, el.Signature)
		if el.Doc != "" {
			fn.SetComment(el.Doc)
		}
		fn.AddCode(&el.Body)
		return fn, nil

	case *Func:
		fn := gopoet.NewFunc(el.Name)
		addSignature(fn, el.Signature)
		if el.Doc != "" {
			fn.SetComment(el.Doc)
		}
		fn.AddCode(&el.Body)
		return fn, nil

	case *Conformance:
		self := gopoet.NamedType(pkg.Symbol(el.Type))
		v := gopoet.NewVar("_")
		switch {
		case len(el.TypeArgs) > 0:
			// gopoet has no model for instantiated generic types
			if !el.Pointer {
				return nil, fmt.Errorf("conformance of %s to generic %s requires a pointer", el.Type, el.Interface.Name)
			}
			args := []interface{}{el.Interface}
			for _, ta := range el.TypeArgs {
				args = append(args, ta)
			}
			args = append(args, gopoet.PointerType(self))
			v.Initialize("%s["+strings.Repeat(", %s", len(el.TypeArgs))[2:]+"]((%s)(nil))", args...)
		case el.Pointer:
			v.SetType(gopoet.NamedType(el.Interface)).Initialize("(%s)(nil)", gopoet.PointerType(self))
		default:
			v.SetType(gopoet.NamedType(el.Interface)).Initialize("%s{}", self)
		}
		return gopoet.NewVarDecl(v), nil

	case *InterfaceDecl:
		var methods []gopoet.InterfaceElement
		for _, m := range el.Methods {
			im := gopoet.NewInterfaceMethod(m.Name)
			for _, p := range m.Params {
				im.AddArg(p.Name, p.Type)
			}
			for _, r := range m.Results {
				im.AddResult(r.Name, r.Type)
			}
			if m.Variadic {
				im.SetVariadic(true)
			}
			methods = append(methods, im)
		}
		ts := gopoet.NewInterfaceTypeSpec(el.Name, methods...)
		if el.Doc != "" {
			ts.SetComment(el.Doc)
		}
		return gopoet.NewTypeDecl(ts), nil

	case *StructDecl:
		var fields []*gopoet.FieldSpec
		for _, f := range el.Fields {
			fields = append(fields, gopoet.NewField(f.Name, f.Type))
		}
		ts := gopoet.NewStructTypeSpec(el.Name, fields...)
		if el.Doc != "" {
			ts.SetComment(el.Doc)
		}
		return gopoet.NewTypeDecl(ts), nil

	default:
		return nil, fmt.Errorf("unsupported element %T", el)
	}
}

func addSignature(fn *gopoet.FuncSpec, sig Signature) {
	for _, p := range sig.Params {
		fn.AddArg(p.Name, p.Type)
	}
	for _, r := range sig.Results {
		fn.AddResult(r.Name, r.Type)
	}
	if sig.Variadic {
		fn.SetVariadic(true)
	}
}
