package macros

import (
	"fmt"
	"strings"

	"github.com/jhump/dimacros/macro"
)

// Interceptor implements @Interceptor. It generates a <Method>Intercepted
// method that runs the named interceptors, looked up in the
// dimacros interceptor registry, around a call to the annotated method.
type Interceptor struct{}

var _ macro.Macro = Interceptor{}

func (Interceptor) Name() string { return "Interceptor" }

func (Interceptor) Doc() string {
	return "wraps a method with before/after/onError interceptor chains"
}

func (Interceptor) Schema() macro.Schema {
	return macro.Schema{
		{Name: "before", Kind: macro.OptStringList, Default: []string{}, Doc: "interceptors run before the call"},
		{Name: "after", Kind: macro.OptStringList, Default: []string{}, Doc: "interceptors run after a successful call"},
		{Name: "onError", Kind: macro.OptStringList, Default: []string{}, Doc: "interceptors run when the call fails"},
	}
}

func (Interceptor) Supports() []macro.DeclKind {
	return []macro.DeclKind{macro.KindMethod}
}

func (Interceptor) Validate(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := validateWrapper(args, shape)
	diags = append(diags, macro.CheckConflicts(shape, args.Pos(), shape.Name+"Intercepted")...)
	if len(args.Strings("before"))+len(args.Strings("after"))+len(args.Strings("onError")) == 0 {
		diags = append(diags, macro.Warnf(macro.ValidationFailed, args.Pos(),
			"no interceptors configured; %sIntercepted only forwards to %s", shape.Name, shape.Name))
	}
	for _, opt := range []string{"before", "after", "onError"} {
		for _, name := range args.Strings(opt) {
			if strings.TrimSpace(name) == "" {
				diags = append(diags, macro.Errorf(macro.ValidationFailed, args.At(opt), "option %q: interceptor names must not be empty", opt))
			}
		}
	}
	return diags
}

// validateWrapper checks that a func or method can be wrapped in a closure.
func validateWrapper(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := macro.CheckNotGeneric(shape, args.Pos())
	diags = append(diags, macro.CheckTypes(args.Pos(), "parameter", shape.Params)...)
	diags = append(diags, macro.CheckTypes(args.Pos(), "result", shape.Results)...)
	if _, err := classifyResults(shape.Results); err != nil {
		diags = append(diags, macro.Errorf(macro.ValidationFailed, args.Pos(), "%s: %v", shape.Name, err))
	}
	return diags
}

func (Interceptor) Templates() []macro.Template {
	return []macro.Template{{
		Name:     "intercepted",
		Emission: macro.EmitMember,
		Build:    buildIntercepted,
	}}
}

func buildIntercepted(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	w, err := newWrapped(shape.Results)
	if err != nil {
		return macro.Piece{}, false, err
	}
	names := newShapeNamer(shape, paramNamesOf(shape.Params)...)
	recv := wrapperReceiver(shape, names)
	name := shape.Name + "Intercepted"

	m := &macro.Method{
		Doc:     fmt.Sprintf("%s calls %s with the interceptors configured by @Interceptor.", name, shape.Name),
		Recv:    recv,
		Type:    shape.Receiver.TypeName,
		Pointer: shape.Receiver.Pointer,
		Name:    name,
		Signature: macro.Signature{
			Params:   paramVars(shape.Params),
			Results:  w.wrapperResults(),
			Variadic: shape.Variadic,
		},
	}

	before, beforeArgs := quotedList(args.Strings("before"))
	after, afterArgs := quotedList(args.Strings("after"))
	onError, onErrorArgs := quotedList(args.Strings("onError"))
	format := "&%s{Type: %q, Method: %q, Args: []any{" + argList(shape.Params) + "}}, %s{Before: " + before + ", After: " + after + ", OnError: " + onError + "}"
	fargs := []interface{}{runtimePkg.Symbol("Invocation"), shape.Receiver.TypeName, shape.Name, runtimePkg.Symbol("Hooks")}
	fargs = append(fargs, beforeArgs...)
	fargs = append(fargs, afterArgs...)
	fargs = append(fargs, onErrorArgs...)

	call := fmt.Sprintf("%s.%s(%s)", recv, shape.Name, callArgs(shape.Params, shape.Variadic))
	w.printReturn(&m.Body, names, call, runtimePkg.Symbol("Intercept"), format, fargs...)

	return macro.Piece{
		Emission: macro.EmitMember,
		Contract: "adds method " + name,
		Elements: []macro.Element{m},
	}, true, nil
}

// wrapperReceiver returns the receiver name for a generated wrapper of the
// method described by shape and marks it taken.
func wrapperReceiver(shape *macro.DeclarationShape, names namer) string {
	r := shape.Receiver.Local
	names[r] = true
	return r
}

func paramNamesOf(params []macro.Param) []string {
	res := make([]string, len(params))
	for i, p := range params {
		res[i] = p.Local
	}
	return res
}

// argList returns the params as a comma-separated list of names, for use in
// a []any literal.
func argList(params []macro.Param) string {
	return strings.Join(paramNamesOf(params), ", ")
}
