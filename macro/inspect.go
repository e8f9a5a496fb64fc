package macro

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jhump/gopoet"
)

// DeclKind is the kind of declaration an annotation is attached to.
type DeclKind int

const (
	KindStruct DeclKind = iota + 1
	KindInterface
	// KindNamed is any other defined type, such as an enumeration over int.
	KindNamed
	KindAlias
	KindFunc
	KindMethod
)

func (k DeclKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindNamed:
		return "named type"
	case KindAlias:
		return "type alias"
	case KindFunc:
		return "func"
	case KindMethod:
		return "method"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}

// Target identifies an annotated declaration and the syntax it lives in.
type Target struct {
	Fset    *token.FileSet
	PkgPath string
	// Files are all files of the package. Initializers, methods and
	// conformance assertions are looked up across all of them.
	Files []*ast.File
	// File is the file containing Decl.
	File *ast.File
	// Decl is a *ast.TypeSpec or a *ast.FuncDecl.
	Decl ast.Node
}

// Param is a parameter, result or field, with its type in the forms needed
// for synthesis.
type Param struct {
	// Name is the name in the source. Blank and unnamed params are named
	// after their position, like p0.
	Name string
	// Local is the identifier generated code uses for the param. It is Name
	// unless that would repeat another param's name or shadow a package or
	// predeclared identifier that generated code may refer to.
	Local string
	// TypeText is the type as written in the source.
	TypeText string
	// Key is the canonical text of the type, independent of import aliases.
	// It is the key under which dependencies are registered and resolved.
	Key string
	// GoType is nil for types that cannot be used in generated code.
	GoType gopoet.TypeName
	// Basic is true for predeclared basic types like string and int.
	Basic bool
	// HasDefault is true for variadic parameters, which callers may omit.
	HasDefault bool
	// Tag is the unquoted struct tag of a field.
	Tag string

	synthetic bool
}

// Initializer is a constructor function for a type: a package-level func
// named New... whose first result is T or *T, optionally followed by error.
type Initializer struct {
	Name           string
	Params         []Param
	ReturnsPointer bool
	ReturnsError   bool
	Pos            token.Position
}

// Receiver describes the receiver of a method.
type Receiver struct {
	Name string
	// Local is the receiver name for generated methods: Name, or a fresh
	// name when Name is blank or reserved.
	Local    string
	TypeName string
	Pointer  bool
}

// DeclarationShape is a snapshot of the facts about an annotated declaration
// that macros need. It is computed fresh for every expansion.
type DeclarationShape struct {
	Kind    DeclKind
	Name    string
	PkgPath string
	PkgName string
	// TypeParams are the names of the declaration's type parameters, or of
	// the receiver type's for methods.
	TypeParams []string
	// Receiver is set for methods.
	Receiver *Receiver
	// Fields are the fields of a struct.
	Fields       []Param
	Initializers []Initializer
	// Params and Results are set for funcs and methods.
	Params   []Param
	Results  []Param
	Variadic bool
	// Members are the sorted names of the fields and methods of the type (of
	// the receiver type for methods).
	Members []string
	// Conformances are the sorted interfaces the type is asserted to
	// implement or, for interfaces, embeds.
	Conformances []string
	Pos          token.Position

	reserved map[string]bool
}

// TypeName returns the name of the type that generated members attach to:
// the declared type itself or, for methods, the receiver type.
func (s *DeclarationShape) TypeName() string {
	if s.Receiver != nil {
		return s.Receiver.TypeName
	}
	return s.Name
}

// HasMember reports whether the type already declares a field or method
// with the given name.
func (s *DeclarationShape) HasMember(name string) bool {
	i := sort.SearchStrings(s.Members, name)
	return i < len(s.Members) && s.Members[i] == name
}

// ConformsTo reports whether the type is known to implement the named
// interface.
func (s *DeclarationShape) ConformsTo(iface string) bool {
	i := sort.SearchStrings(s.Conformances, iface)
	return i < len(s.Conformances) && s.Conformances[i] == iface
}

// Reserved returns the sorted identifiers that locals of generated code must
// not shadow: the package-level declarations of the package, the imports of
// the annotated file, the packages generated code refers to and the
// predeclared identifiers.
func (s *DeclarationShape) Reserved() []string {
	res := make([]string, 0, len(s.reserved))
	for n := range s.reserved {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

// IsReserved reports whether name is one of Reserved.
func (s *DeclarationShape) IsReserved(name string) bool {
	return s.reserved[name]
}

// Local returns a reference to a package-level symbol of the declaration's
// package.
func (s *DeclarationShape) Local(name string) gopoet.Symbol {
	return gopoet.Package{ImportPath: s.PkgPath, Name: s.PkgName}.Symbol(name)
}

// Self returns the type name of the type that generated members attach to.
func (s *DeclarationShape) Self() gopoet.TypeName {
	return gopoet.NamedType(s.Local(s.TypeName()))
}

// Inspect computes the shape of the target declaration. If the declaration
// is not one of the supported kinds, it returns an UnsupportedDeclarationKind
// diagnostic instead.
func Inspect(t Target, pos token.Position, supported ...DeclKind) (*DeclarationShape, *Diagnostic) {
	shape := &DeclarationShape{PkgPath: t.PkgPath}
	if t.File != nil {
		shape.PkgName = t.File.Name.Name
	}
	conv := newTypeConverter(t.PkgPath, shape.PkgName, t.File)
	shape.reserved = reservedNames(conv, t.Files)

	var typeName string
	switch d := t.Decl.(type) {
	case *ast.TypeSpec:
		shape.Name = d.Name.Name
		shape.Pos = t.Fset.Position(d.Pos())
		typeName = d.Name.Name
		shape.TypeParams = fieldNames(d.TypeParams)
		switch typ := d.Type.(type) {
		case *ast.StructType:
			shape.Kind = KindStruct
		case *ast.InterfaceType:
			shape.Kind = KindInterface
			for _, m := range typ.Methods.List {
				if len(m.Names) == 0 {
					shape.Conformances = append(shape.Conformances, types.ExprString(m.Type))
				}
			}
		default:
			shape.Kind = KindNamed
		}
		if d.Assign.IsValid() {
			shape.Kind = KindAlias
		}

	case *ast.FuncDecl:
		shape.Name = d.Name.Name
		shape.Pos = t.Fset.Position(d.Pos())
		shape.Kind = KindFunc
		if d.Recv != nil && len(d.Recv.List) == 1 {
			shape.Kind = KindMethod
			r := d.Recv.List[0]
			rcv := &Receiver{}
			if len(r.Names) > 0 {
				rcv.Name = r.Names[0].Name
			}
			rcv.TypeName, rcv.Pointer, shape.TypeParams = receiverType(r.Type)
			shape.Receiver = rcv
			typeName = rcv.TypeName
		} else {
			shape.TypeParams = fieldNames(d.Type.TypeParams)
		}

	default:
		diag := Errorf(UnsupportedDeclarationKind, pos, "annotation is not attached to a type or func declaration")
		return nil, &diag
	}

	if !supportsKind(supported, shape.Kind) {
		d := Errorf(UnsupportedDeclarationKind, pos, "%s %s is not supported; expecting %s",
			shape.Kind, shape.Name, kindList(supported))
		return nil, &d
	}

	conv.typeParams = map[string]bool{}
	for _, tp := range shape.TypeParams {
		conv.typeParams[tp] = true
	}

	if fd, ok := t.Decl.(*ast.FuncDecl); ok {
		shape.Params, shape.Variadic = params(conv, fd.Type.Params, "p")
		shape.Results, _ = params(conv, fd.Type.Results, "r")
		assignLocals(shape.reserved, shape.Receiver, shape.Params, shape.Results)
	}
	if ts, ok := t.Decl.(*ast.TypeSpec); ok {
		if st, ok := ts.Type.(*ast.StructType); ok {
			shape.Fields = structFields(conv, st)
		}
	}

	if typeName != "" {
		shape.Initializers = initializers(t, typeName)
		shape.Members = members(t, typeName)
		shape.Conformances = append(shape.Conformances, conformances(t, typeName)...)
	}
	sort.Strings(shape.Members)
	shape.Members = dedupe(shape.Members)
	sort.Strings(shape.Conformances)
	shape.Conformances = dedupe(shape.Conformances)
	return shape, nil
}

func supportsKind(supported []DeclKind, k DeclKind) bool {
	for _, s := range supported {
		if s == k {
			return true
		}
	}
	return false
}

func kindList(kinds []DeclKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, " or ")
}

func fieldNames(fl *ast.FieldList) []string {
	if fl == nil {
		return nil
	}
	var names []string
	for _, f := range fl.List {
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

// receiverType returns the base type name of a receiver type expression,
// whether it is a pointer and the names of its type parameters.
func receiverType(expr ast.Expr) (string, bool, []string) {
	ptr := false
	if star, ok := expr.(*ast.StarExpr); ok {
		ptr = true
		expr = star.X
	}
	var tparams []string
	switch e := expr.(type) {
	case *ast.IndexExpr:
		expr = e.X
		if id, ok := e.Index.(*ast.Ident); ok {
			tparams = append(tparams, id.Name)
		}
	case *ast.IndexListExpr:
		expr = e.X
		for _, ix := range e.Indices {
			if id, ok := ix.(*ast.Ident); ok {
				tparams = append(tparams, id.Name)
			}
		}
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name, ptr, tparams
	}
	return "", ptr, tparams
}

// params flattens a parameter list. Unnamed and blank parameters are given
// names made of prefix and their index.
func params(conv *typeConverter, fl *ast.FieldList, prefix string) ([]Param, bool) {
	if fl == nil {
		return nil, false
	}
	var res []Param
	variadic := false
	for _, f := range fl.List {
		ct := conv.convert(f.Type)
		_, isEllipsis := f.Type.(*ast.Ellipsis)
		variadic = variadic || isEllipsis
		p := Param{
			TypeText:   types.ExprString(f.Type),
			Key:        ct.Key,
			GoType:     ct.GoType,
			Basic:      ct.Basic,
			HasDefault: isEllipsis,
		}
		if len(f.Names) == 0 {
			p.Name = fmt.Sprintf("%s%d", prefix, len(res))
			p.synthetic = true
			res = append(res, p)
			continue
		}
		for _, n := range f.Names {
			p.Name, p.synthetic = n.Name, false
			if p.Name == "_" {
				p.Name = fmt.Sprintf("%s%d", prefix, len(res))
				p.synthetic = true
			}
			res = append(res, p)
		}
	}
	return res, variadic
}

// reservedNames returns the identifiers that params of generated funcs must
// not shadow: the package-level declarations of files, the names of the
// file's imports, the packages reserved with ReserveNames and the predeclared
// identifiers.
func reservedNames(conv *typeConverter, files []*ast.File) map[string]bool {
	res := map[string]bool{}
	for _, n := range types.Universe.Names() {
		res[n] = true
	}
	for n := range conv.imports {
		res[n] = true
	}
	for _, f := range files {
		for _, decl := range f.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				if decl.Recv == nil {
					res[decl.Name.Name] = true
				}
			case *ast.GenDecl:
				for _, spec := range decl.Specs {
					switch spec := spec.(type) {
					case *ast.TypeSpec:
						res[spec.Name.Name] = true
					case *ast.ValueSpec:
						for _, n := range spec.Names {
							res[n.Name] = true
						}
					}
				}
			}
		}
	}
	registryLock.RLock()
	defer registryLock.RUnlock()
	for n := range reservedPackages {
		res[n] = true
	}
	return res
}

// assignLocals sets the Local names of rcv (which may be nil) and of params.
// Source names are kept where possible. Synthetic, blank and reserved names
// are replaced with fresh ones, so that all locals are distinct.
func assignLocals(reserved map[string]bool, rcv *Receiver, lists ...[]Param) {
	taken := map[string]bool{}
	usable := func(name string) bool {
		return name != "" && name != "_" && !reserved[name]
	}
	fresh := func(base string) string {
		name := base
		for taken[name] || reserved[name] {
			name += "_"
		}
		taken[name] = true
		return name
	}

	if rcv != nil && usable(rcv.Name) {
		rcv.Local = rcv.Name
		taken[rcv.Name] = true
	}
	for _, l := range lists {
		for i := range l {
			if !l[i].synthetic && usable(l[i].Name) {
				l[i].Local = l[i].Name
				taken[l[i].Name] = true
			}
		}
	}
	if rcv != nil && rcv.Local == "" {
		r, _ := utf8.DecodeRuneInString(rcv.TypeName)
		rcv.Local = fresh(string(unicode.ToLower(r)))
	}
	for _, l := range lists {
		for i := range l {
			if l[i].Local == "" {
				l[i].Local = fresh(l[i].Name)
			}
		}
	}
}

func structFields(conv *typeConverter, st *ast.StructType) []Param {
	var res []Param
	for _, f := range st.Fields.List {
		ct := conv.convert(f.Type)
		p := Param{
			TypeText: types.ExprString(f.Type),
			Key:      ct.Key,
			GoType:   ct.GoType,
			Basic:    ct.Basic,
		}
		if f.Tag != nil {
			p.Tag, _ = strconv.Unquote(f.Tag.Value)
		}
		if len(f.Names) == 0 {
			// embedded: the field is named after the type
			name, _, _ := receiverType(f.Type)
			if sel, ok := f.Type.(*ast.SelectorExpr); ok {
				name = sel.Sel.Name
			} else if star, ok := f.Type.(*ast.StarExpr); ok {
				if sel, ok := star.X.(*ast.SelectorExpr); ok {
					name = sel.Sel.Name
				}
			}
			p.Name = name
			res = append(res, p)
			continue
		}
		for _, n := range f.Names {
			p.Name = n.Name
			res = append(res, p)
		}
	}
	return res
}

func initializers(t Target, typeName string) []Initializer {
	var res []Initializer
	for _, f := range t.Files {
		conv := newTypeConverter(t.PkgPath, f.Name.Name, f)
		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil || !strings.HasPrefix(fd.Name.Name, "New") || fd.Type.TypeParams != nil {
				continue
			}
			results := fd.Type.Results
			if results == nil || results.NumFields() == 0 || results.NumFields() > 2 {
				continue
			}
			first := results.List[0].Type
			ptr := false
			if star, ok := first.(*ast.StarExpr); ok {
				ptr = true
				first = star.X
			}
			if id, ok := first.(*ast.Ident); !ok || id.Name != typeName {
				continue
			}
			in := Initializer{
				Name:           fd.Name.Name,
				ReturnsPointer: ptr,
				Pos:            t.Fset.Position(fd.Pos()),
			}
			if results.NumFields() == 2 {
				last := results.List[len(results.List)-1].Type
				if id, ok := last.(*ast.Ident); !ok || id.Name != "error" {
					continue
				}
				in.ReturnsError = true
			}
			in.Params, _ = params(conv, fd.Type.Params, "p")
			assignLocals(reservedNames(conv, t.Files), nil, in.Params)
			res = append(res, in)
		}
	}
	return res
}

func members(t Target, typeName string) []string {
	var res []string
	for _, f := range t.Files {
		for _, decl := range f.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				if decl.Recv == nil || len(decl.Recv.List) != 1 {
					continue
				}
				if name, _, _ := receiverType(decl.Recv.List[0].Type); name == typeName {
					res = append(res, decl.Name.Name)
				}
			case *ast.GenDecl:
				if decl.Tok != token.TYPE {
					continue
				}
				for _, spec := range decl.Specs {
					ts := spec.(*ast.TypeSpec)
					if ts.Name.Name != typeName {
						continue
					}
					switch typ := ts.Type.(type) {
					case *ast.StructType:
						res = append(res, fieldNames(typ.Fields)...)
						for _, fld := range typ.Fields.List {
							if len(fld.Names) == 0 {
								name, _, _ := receiverType(fld.Type)
								if sel, ok := fld.Type.(*ast.SelectorExpr); ok {
									name = sel.Sel.Name
								}
								if name != "" {
									res = append(res, name)
								}
							}
						}
					case *ast.InterfaceType:
						res = append(res, fieldNames(typ.Methods)...)
					}
				}
			}
		}
	}
	return res
}

// conformances finds assertions of the form
//
//	var _ I = (*T)(nil)
//
// and returns the interface expressions, as written.
func conformances(t Target, typeName string) []string {
	var res []string
	for _, f := range t.Files {
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				if vs.Type == nil || len(vs.Names) != 1 || vs.Names[0].Name != "_" || len(vs.Values) != 1 {
					continue
				}
				if mentions(vs.Values[0], typeName) {
					res = append(res, types.ExprString(vs.Type))
				}
			}
		}
	}
	return res
}

func mentions(expr ast.Expr, name string) bool {
	found := false
	ast.Inspect(expr, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == name {
			found = true
		}
		return !found
	})
	return found
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	res := sorted[:1]
	for _, s := range sorted[1:] {
		if s != res[len(res)-1] {
			res = append(res, s)
		}
	}
	return res
}
