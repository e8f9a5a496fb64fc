package macros

import (
	"fmt"

	"github.com/jhump/dimacros/macro"
)

// PerformanceTracked implements @PerformanceTracked. It generates a
// <Name>Tracked wrapper that times each call with dimacros.Track. For
// methods the wrapper is a method of the same type; for funcs it is a
// package-level func.
type PerformanceTracked struct{}

var _ macro.Macro = PerformanceTracked{}

func (PerformanceTracked) Name() string { return "PerformanceTracked" }

func (PerformanceTracked) Doc() string {
	return "wraps a method or func with timing recorded by the performance tracker"
}

func (PerformanceTracked) Schema() macro.Schema {
	return macro.Schema{
		{Name: "label", Kind: macro.OptString, Default: "", Doc: "operation label; defaults to Type.Method or Func"},
		{Name: "threshold", Kind: macro.OptInt, Default: int64(0), Doc: "calls slower than this many milliseconds are reported as slow; 0 disables"},
	}
}

func (PerformanceTracked) Supports() []macro.DeclKind {
	return []macro.DeclKind{macro.KindMethod, macro.KindFunc}
}

func (PerformanceTracked) Validate(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := validateWrapper(args, shape)
	if t := args.Int("threshold"); t < 0 {
		diags = append(diags, macro.Errorf(macro.ValidationFailed, args.At("threshold"), "option \"threshold\" must not be negative; got %d", t))
	}
	if shape.Kind == macro.KindMethod {
		diags = append(diags, macro.CheckConflicts(shape, args.Pos(), shape.Name+"Tracked")...)
	} else if shape.Name == "init" {
		diags = append(diags, macro.Errorf(macro.ValidationFailed, args.Pos(), "init funcs cannot be called and so cannot be tracked"))
	}
	return diags
}

func (PerformanceTracked) Templates() []macro.Template {
	return []macro.Template{
		{Name: "tracked-method", Emission: macro.EmitMember, Build: buildTrackedMethod},
		{Name: "tracked-func", Emission: macro.EmitPeer, Build: buildTrackedFunc},
	}
}

func trackLabel(args *macro.ParsedArguments, shape *macro.DeclarationShape) string {
	if l := args.String("label"); l != "" {
		return l
	}
	if shape.Receiver != nil {
		return shape.Receiver.TypeName + "." + shape.Name
	}
	return shape.Name
}

func buildTrackedMethod(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	if shape.Kind != macro.KindMethod {
		return macro.Piece{}, false, nil
	}
	w, err := newWrapped(shape.Results)
	if err != nil {
		return macro.Piece{}, false, err
	}
	names := newShapeNamer(shape, paramNamesOf(shape.Params)...)
	recv := wrapperReceiver(shape, names)
	name := shape.Name + "Tracked"

	m := &macro.Method{
		Doc:     fmt.Sprintf("%s calls %s, recording its duration under %q.", name, shape.Name, trackLabel(args, shape)),
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
	call := fmt.Sprintf("%s.%s(%s)", recv, shape.Name, callArgs(shape.Params, shape.Variadic))
	w.printReturn(&m.Body, names, call, runtimePkg.Symbol("Track"), "%q, %d*%s",
		trackLabel(args, shape), args.Int("threshold"), timePkg.Symbol("Millisecond"))

	return macro.Piece{
		Emission: macro.EmitMember,
		Contract: "adds method " + name,
		Elements: []macro.Element{m},
	}, true, nil
}

func buildTrackedFunc(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	if shape.Kind != macro.KindFunc {
		return macro.Piece{}, false, nil
	}
	w, err := newWrapped(shape.Results)
	if err != nil {
		return macro.Piece{}, false, err
	}
	names := newShapeNamer(shape, paramNamesOf(shape.Params)...)
	name := shape.Name + "Tracked"

	f := &macro.Func{
		Doc:  fmt.Sprintf("%s calls %s, recording its duration under %q.", name, shape.Name, trackLabel(args, shape)),
		Name: name,
		Signature: macro.Signature{
			Params:   paramVars(shape.Params),
			Results:  w.wrapperResults(),
			Variadic: shape.Variadic,
		},
	}
	call := fmt.Sprintf("%s(%s)", shape.Name, callArgs(shape.Params, shape.Variadic))
	w.printReturn(&f.Body, names, call, runtimePkg.Symbol("Track"), "%q, %d*%s",
		trackLabel(args, shape), args.Int("threshold"), timePkg.Symbol("Millisecond"))

	return macro.Piece{
		Emission: macro.EmitPeer,
		Contract: "adds func " + name,
		Elements: []macro.Element{f},
	}, true, nil
}
