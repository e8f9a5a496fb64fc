package macros

import (
	"fmt"

	"github.com/jhump/gopoet"

	"github.com/jhump/dimacros/macro"
)

// Injectable implements @Injectable. It makes a struct register itself with
// a container, resolving every parameter of its constructor from the
// container by type:
//
//	// @Injectable(scope: .container)
//	type UserService struct { ... }
//
//	func NewUserService(db *store.DB, log *slog.Logger) *UserService
//
// generates
//
//	var _ dimacros.Injectable = (*UserService)(nil)
//
//	func (u *UserService) Register(c dimacros.Container) { ... }
type Injectable struct{}

var _ macro.Macro = Injectable{}

func (Injectable) Name() string { return "Injectable" }

func (Injectable) Doc() string {
	return "registers the struct's constructor with a dimacros.Container"
}

func (Injectable) Schema() macro.Schema {
	return macro.Schema{
		scopeOption("graph"),
		{Name: "name", Kind: macro.OptString, Default: "", Doc: "service key; defaults to the constructor's result type"},
		{Name: "constructor", Kind: macro.OptString, Default: "", Doc: "initializer to use when the type has several"},
	}
}

func (Injectable) Supports() []macro.DeclKind {
	return []macro.DeclKind{macro.KindStruct}
}

func (Injectable) Validate(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := macro.CheckNotGeneric(shape, args.Pos())
	in, d := macro.SelectInitializer(shape, args.String("constructor"), args.At("constructor"))
	if d != nil {
		return append(diags, *d)
	}
	diags = append(diags, macro.CheckTypes(in.Pos, "parameter", in.Params)...)
	for _, p := range in.Params {
		if p.Basic && !p.HasDefault {
			diags = append(diags, macro.Errorf(macro.ValidationFailed, in.Pos,
				"parameter %s of %s has basic type %s and cannot be resolved from a container; use @AutoFactory with runtimeParams",
				p.Name, in.Name, p.TypeText))
		}
	}
	return append(diags, macro.CheckConflicts(shape, args.Pos(), "Register")...)
}

func (Injectable) Templates() []macro.Template {
	return []macro.Template{{
		Name:     "registration",
		Emission: macro.EmitExtension,
		Build:    buildRegistration,
	}}
}

func buildRegistration(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	in, d := macro.SelectInitializer(shape, args.String("constructor"), args.Pos())
	if d != nil {
		return macro.Piece{}, false, d
	}
	key := args.String("name")
	if key == "" {
		key = serviceKey(shape, in)
	}

	names := newShapeNamer(shape)
	c, r := names.fresh("c"), names.fresh("r")
	m := &macro.Method{
		Doc:     fmt.Sprintf("Register registers %s with %s, resolving the parameters of %s from %s.", shape.Name, c, in.Name, c),
		Recv:    names.fresh(receiverName(shape.Name)),
		Type:    shape.Name,
		Pointer: true,
		Name:    "Register",
		Signature: macro.Signature{
			Params: []macro.Var{{Name: c, Type: containerType}},
		},
	}
	m.Body.Printlnf("%s.Register(%q, %s, func(%s %s) (any, error) {", c, key, scopeSymbol(args), r, resolverType)
	printResolveAndConstruct(&m.Body, names, r, in, shape.Local(in.Name), nil, "nil")
	m.Body.Println("})")

	return macro.Piece{
		Emission: macro.EmitExtension,
		Contract: "adds conformance dimacros.Injectable",
		Elements: []macro.Element{
			&macro.Conformance{Interface: runtimePkg.Symbol("Injectable"), Type: shape.Name, Pointer: true},
			m,
		},
	}, true, nil
}

// serviceKey is the key a type is registered under: the canonical text of
// the initializer's first result.
func serviceKey(shape *macro.DeclarationShape, in *macro.Initializer) string {
	key := shape.PkgPath + "." + shape.Name
	if in.ReturnsPointer {
		key = "*" + key
	}
	return key
}

// printResolveAndConstruct prints statements that resolve every parameter of
// in from resolver, except those named in runtime, and then return the
// result of calling the initializer. Runtime params are passed through by
// their local names. zero is the zero value of the enclosing func's first
// result. New locals are taken from names.
func printResolveAndConstruct(cb *gopoet.CodeBlock, names namer, resolver string, in *macro.Initializer, ctor gopoet.Symbol, runtime map[string]bool, zero string) {
	for _, p := range in.Params {
		names[p.Local] = true
	}
	errName := names.fresh("err")

	var passed []string
	variadic := false
	for _, p := range in.Params {
		switch {
		case runtime[p.Name]:
			passed = append(passed, p.Local)
			if p.HasDefault {
				variadic = true
			}
		case p.HasDefault:
			// variadic params may be omitted
		default:
			v := names.fresh(unexported(p.Name) + "Dep")
			cb.Printlnf("%s, %s := %s[%s](%s, %q)", v, errName, runtimePkg.Symbol("Resolve"), p.GoType, resolver, p.Key)
			cb.Printlnf("if %s != nil {", errName)
			cb.Printlnf("return %s, %s", zero, errName)
			cb.Println("}")
			passed = append(passed, v)
		}
	}
	list := ""
	for i, a := range passed {
		if i > 0 {
			list += ", "
		}
		list += a
	}
	if variadic {
		list += "..."
	}
	if in.ReturnsError {
		cb.Printlnf("return %s(%s)", ctor, list)
	} else {
		cb.Printlnf("return %s(%s), nil", ctor, list)
	}
}
