package macros

import (
	"fmt"

	"github.com/jhump/gopoet"

	"github.com/jhump/dimacros/macro"
)

// AutoFactory implements @AutoFactory. It generates a factory for a struct
// whose constructor mixes dependencies, resolved from a container, with
// runtime parameters supplied by the caller:
//
//	// @AutoFactory(runtimeParams: ["tenant"])
//	type Session struct { ... }
//
//	func NewSession(db *store.DB, tenant string) (*Session, error)
//
// generates a SessionFactory interface with a MakeSession(tenant string)
// method, an implementation backed by a dimacros.Resolver, and a
// NewSessionFactory constructor.
type AutoFactory struct{}

var _ macro.Macro = AutoFactory{}

func (AutoFactory) Name() string { return "AutoFactory" }

func (AutoFactory) Doc() string {
	return "generates a factory interface and implementation for the struct"
}

func (AutoFactory) Schema() macro.Schema {
	return macro.Schema{
		{Name: "name", Kind: macro.OptString, Default: "", Doc: "name of the factory interface; defaults to <Type>Factory"},
		{Name: "runtimeParams", Kind: macro.OptStringList, Default: []string(nil), Doc: "constructor params supplied by the caller; defaults to those of basic type"},
		{Name: "constructor", Kind: macro.OptString, Default: "", Doc: "initializer to use when the type has several"},
	}
}

func (AutoFactory) Supports() []macro.DeclKind {
	return []macro.DeclKind{macro.KindStruct}
}

func (AutoFactory) Validate(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := macro.CheckNotGeneric(shape, args.Pos())
	diags = append(diags, macro.CheckIdentifier(args, "name")...)
	in, d := macro.SelectInitializer(shape, args.String("constructor"), args.At("constructor"))
	if d != nil {
		return append(diags, *d)
	}
	diags = append(diags, macro.CheckTypes(in.Pos, "parameter", in.Params)...)
	diags = append(diags, macro.CheckParamsExist(args, "runtimeParams", in.Params)...)

	runtime := runtimeParams(args, in)
	for _, p := range in.Params {
		if p.Basic && !runtime[p.Name] && !p.HasDefault {
			diags = append(diags, macro.Errorf(macro.ValidationFailed, args.At("runtimeParams"),
				"parameter %s of %s has basic type %s and cannot be resolved from a container; list it in runtimeParams",
				p.Name, in.Name, p.TypeText))
		}
	}
	if name := factoryName(args, shape); name == shape.Name {
		diags = append(diags, macro.Errorf(macro.ValidationFailed, args.At("name"),
			"factory name %s is the name of the annotated type", name))
	}
	return diags
}

func (AutoFactory) Templates() []macro.Template {
	return []macro.Template{
		{Name: "factory", Emission: macro.EmitPeer, Build: buildFactory},
		{Name: "service-factory", Emission: macro.EmitExtension, Build: buildServiceFactory},
	}
}

// runtimeParams returns the set of initializer params supplied by callers.
func runtimeParams(args *macro.ParsedArguments, in *macro.Initializer) map[string]bool {
	res := map[string]bool{}
	if args.IsSet("runtimeParams") {
		for _, n := range args.Strings("runtimeParams") {
			res[n] = true
		}
		return res
	}
	for _, p := range in.Params {
		if p.Basic {
			res[p.Name] = true
		}
	}
	return res
}

func factoryName(args *macro.ParsedArguments, shape *macro.DeclarationShape) string {
	if n := args.String("name"); n != "" {
		return n
	}
	return shape.Name + "Factory"
}

func factoryImplName(name string) string {
	impl := unexported(name)
	if impl == name {
		impl += "Impl"
	}
	return impl
}

// factoryNames are the generated names for one @AutoFactory.
type factoryNames struct {
	iface, impl, ctor, maker string
	result                   gopoet.TypeName
	zero                     string
}

func newFactoryNames(args *macro.ParsedArguments, shape *macro.DeclarationShape, in *macro.Initializer) factoryNames {
	n := factoryNames{
		iface:  factoryName(args, shape),
		maker:  "Make" + shape.Name,
		result: shape.Self(),
		zero:   shape.Name + "{}",
	}
	n.impl = factoryImplName(n.iface)
	n.ctor = "New" + exported(n.iface)
	if in.ReturnsPointer {
		n.result = gopoet.PointerType(n.result)
		n.zero = "nil"
	}
	return n
}

func buildFactory(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	in, d := macro.SelectInitializer(shape, args.String("constructor"), args.Pos())
	if d != nil {
		return macro.Piece{}, false, d
	}
	names := newFactoryNames(args, shape, in)
	runtime := runtimeParams(args, in)

	var runtimeVars []macro.Var
	variadic := false
	for _, p := range in.Params {
		if runtime[p.Name] {
			runtimeVars = append(runtimeVars, macro.Var{Name: p.Local, Type: p.GoType})
			variadic = p.HasDefault
		}
	}
	sig := macro.Signature{
		Params:   runtimeVars,
		Results:  []macro.Var{{Type: names.result}, {Type: errorType}},
		Variadic: variadic,
	}

	iface := &macro.InterfaceDecl{
		Doc:     fmt.Sprintf("%s makes %s values.", names.iface, shape.Name),
		Name:    names.iface,
		Methods: []macro.InterfaceMethod{{Name: names.maker, Signature: sig}},
	}
	impl := &macro.StructDecl{
		Name:   names.impl,
		Fields: []macro.Var{{Name: "r", Type: resolverType}},
	}

	r := newShapeNamer(shape).fresh("r")
	ctor := &macro.Func{
		Doc:  fmt.Sprintf("%s returns a %s that resolves the dependencies of %s from %s.", names.ctor, names.iface, in.Name, r),
		Name: names.ctor,
		Signature: macro.Signature{
			Params:  []macro.Var{{Name: r, Type: resolverType}},
			Results: []macro.Var{{Type: gopoet.NamedType(shape.Local(names.iface))}},
		},
	}
	ctor.Body.Printlnf("return &%s{r: %s}", names.impl, r)

	locals := newShapeNamer(shape, paramNames(runtimeVars)...)
	recv := locals.fresh("f")
	mk := &macro.Method{
		Recv:      recv,
		Type:      names.impl,
		Pointer:   true,
		Name:      names.maker,
		Signature: sig,
	}
	printResolveAndConstruct(&mk.Body, locals, recv+".r", in, shape.Local(in.Name), runtime, names.zero)

	return macro.Piece{
		Emission: macro.EmitPeer,
		Contract: "adds factory " + names.iface,
		Elements: []macro.Element{iface, impl, ctor, mk},
	}, true, nil
}

// buildServiceFactory makes the factory implementation a
// dimacros.ServiceFactory when no parameters are supplied by callers.
func buildServiceFactory(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	in, d := macro.SelectInitializer(shape, args.String("constructor"), args.Pos())
	if d != nil {
		return macro.Piece{}, false, d
	}
	for _, p := range in.Params {
		if runtimeParams(args, in)[p.Name] {
			return macro.Piece{}, false, nil
		}
	}
	names := newFactoryNames(args, shape, in)
	recv := newShapeNamer(shape).fresh("f")

	ms := &macro.Method{
		Doc:     fmt.Sprintf("MakeService implements dimacros.ServiceFactory by calling %s.", names.maker),
		Recv:    recv,
		Type:    names.impl,
		Pointer: true,
		Name:    "MakeService",
		Signature: macro.Signature{
			Results: []macro.Var{{Type: names.result}, {Type: errorType}},
		},
	}
	ms.Body.Printlnf("return %s.%s()", recv, names.maker)

	return macro.Piece{
		Emission: macro.EmitExtension,
		Contract: "adds conformance dimacros.ServiceFactory to " + names.impl,
		Elements: []macro.Element{
			&macro.Conformance{
				Interface: runtimePkg.Symbol("ServiceFactory"),
				TypeArgs:  []gopoet.TypeName{names.result},
				Type:      names.impl,
				Pointer:   true,
			},
			ms,
		},
	}, true, nil
}

func paramNames(vars []macro.Var) []string {
	res := make([]string, len(vars))
	for i, v := range vars {
		res[i] = v.Name
	}
	return res
}
