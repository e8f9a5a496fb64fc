package macro

import (
	"go/ast"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/jhump/gopoet"
)

var basicTypes = map[string]bool{
	"bool": true, "string": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"byte": true, "rune": true,
}

var otherPredeclared = map[string]bool{
	"error": true, "any": true, "comparable": true,
}

// typeConverter turns type expressions from a single source file into gopoet
// type names and canonical service keys.
type typeConverter struct {
	pkg        gopoet.Package
	imports    map[string]string
	typeParams map[string]bool
}

func newTypeConverter(pkgPath, pkgName string, file *ast.File) *typeConverter {
	return &typeConverter{
		pkg:     gopoet.Package{ImportPath: pkgPath, Name: pkgName},
		imports: fileImports(file),
	}
}

// fileImports maps the name each import is referenced by in file to its path.
// Blank and dot imports are omitted.
func fileImports(file *ast.File) map[string]string {
	res := map[string]string{}
	if file == nil {
		return res
	}
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := ""
		if spec.Name != nil {
			name = spec.Name.Name
		} else {
			name = defaultImportName(p)
		}
		if name == "_" || name == "." {
			continue
		}
		res[name] = p
	}
	return res
}

// defaultImportName guesses the package name for an import path that has no
// explicit alias: the last path element, skipping a major version suffix.
func defaultImportName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && isDigits(base[1:]) {
		if dir := path.Dir(importPath); dir != "." {
			base = path.Base(dir)
		}
	}
	base = strings.TrimPrefix(base, "go-")
	return strings.NewReplacer("-", "_", ".", "_").Replace(base)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// convertedType is the result of converting a type expression.
type convertedType struct {
	// GoType is nil when the expression cannot be represented.
	GoType gopoet.TypeName
	// Key is the canonical, alias-independent text of the type, e.g.
	// "*example.com/store.DB". It is empty when GoType is nil.
	Key   string
	Basic bool
}

func (c *typeConverter) convert(expr ast.Expr) convertedType {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return c.convert(e.X)

	case *ast.Ident:
		if basicTypes[e.Name] || otherPredeclared[e.Name] {
			return convertedType{
				GoType: gopoet.NamedType(gopoet.Symbol{Name: e.Name}),
				Key:    e.Name,
				Basic:  basicTypes[e.Name],
			}
		}
		if c.typeParams[e.Name] {
			return convertedType{}
		}
		return convertedType{
			GoType: gopoet.NamedType(c.pkg.Symbol(e.Name)),
			Key:    c.pkg.ImportPath + "." + e.Name,
		}

	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		if !ok {
			return convertedType{}
		}
		p, ok := c.imports[x.Name]
		if !ok {
			return convertedType{}
		}
		pkg := gopoet.Package{ImportPath: p, Name: x.Name}
		return convertedType{
			GoType: gopoet.NamedType(pkg.Symbol(e.Sel.Name)),
			Key:    p + "." + e.Sel.Name,
		}

	case *ast.StarExpr:
		elem := c.convert(e.X)
		if elem.GoType == nil {
			return elem
		}
		return convertedType{GoType: gopoet.PointerType(elem.GoType), Key: "*" + elem.Key}

	case *ast.Ellipsis:
		elem := c.convert(e.Elt)
		if elem.GoType == nil {
			return elem
		}
		return convertedType{GoType: gopoet.SliceType(elem.GoType), Key: "[]" + elem.Key}

	case *ast.ArrayType:
		elem := c.convert(e.Elt)
		if elem.GoType == nil {
			return elem
		}
		if e.Len == nil {
			return convertedType{GoType: gopoet.SliceType(elem.GoType), Key: "[]" + elem.Key}
		}
		lit, ok := e.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return convertedType{}
		}
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return convertedType{}
		}
		return convertedType{
			GoType: gopoet.ArrayType(elem.GoType, n),
			Key:    "[" + strconv.FormatInt(n, 10) + "]" + elem.Key,
		}

	case *ast.MapType:
		k, v := c.convert(e.Key), c.convert(e.Value)
		if k.GoType == nil || v.GoType == nil {
			return convertedType{}
		}
		return convertedType{
			GoType: gopoet.MapType(k.GoType, v.GoType),
			Key:    "map[" + k.Key + "]" + v.Key,
		}

	case *ast.InterfaceType:
		if e.Methods == nil || len(e.Methods.List) == 0 {
			return convertedType{GoType: gopoet.NamedType(gopoet.Symbol{Name: "any"}), Key: "any"}
		}
	}
	// funcs, channels, anonymous structs and generic instantiations
	return convertedType{}
}
