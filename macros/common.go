// Package macros contains the built-in macros. Importing it registers them
// with the macro package:
//
//	@Injectable          registers a struct's constructor with a container
//	@AutoFactory         generates a factory for a struct with runtime params
//	@Interceptor         wraps a method with named interceptor chains
//	@PerformanceTracked  wraps a method or func with timing
//	@DebugContainer      adds debug introspection to a container type
//	@TestContainer       registers a test fixture's mocks with a container
package macros

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jhump/gopoet"

	"github.com/jhump/dimacros/macro"
)

// RuntimePackage is the import path of the package that generated code
// calls into.
const RuntimePackage = "github.com/jhump/dimacros"

var (
	runtimePkg = gopoet.Package{ImportPath: RuntimePackage, Name: "dimacros"}
	timePkg    = gopoet.Package{ImportPath: "time", Name: "time"}

	anyType    = gopoet.NamedType(gopoet.Symbol{Name: "any"})
	errorType  = gopoet.NamedType(gopoet.Symbol{Name: "error"})
	stringType = gopoet.NamedType(gopoet.Symbol{Name: "string"})
	emptyType  = gopoet.NamedType(gopoet.Symbol{Name: "struct{}"})
	statsType  = gopoet.MapType(stringType, anyType)

	containerType = gopoet.NamedType(runtimePkg.Symbol("Container"))
	resolverType  = gopoet.NamedType(runtimePkg.Symbol("Resolver"))
)

func init() {
	macro.Register(Injectable{})
	macro.Register(AutoFactory{})
	macro.Register(Interceptor{})
	macro.Register(PerformanceTracked{})
	macro.Register(DebugContainer{})
	macro.Register(TestContainer{})
	macro.ReserveNames(runtimePkg.Name, timePkg.Name)
}

var scopeNames = []string{"graph", "container", "transient", "weak"}

var scopeSymbols = map[string]string{
	"graph":     "ScopeGraph",
	"container": "ScopeContainer",
	"transient": "ScopeTransient",
	"weak":      "ScopeWeak",
}

func scopeOption(def string) macro.Option {
	return macro.Option{
		Name:    "scope",
		Kind:    macro.OptEnum,
		Default: def,
		Allowed: scopeNames,
		Doc:     "lifetime of the registered service",
	}
}

func scopeSymbol(args *macro.ParsedArguments) gopoet.Symbol {
	return runtimePkg.Symbol(scopeSymbols[args.Enum("scope")])
}

// receiverName derives a receiver name from a type name: UserService -> u.
func receiverName(typeName string) string {
	r, _ := utf8.DecodeRuneInString(typeName)
	return string(unicode.ToLower(r))
}

// unexported lower-cases the first letter of name.
func unexported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// exported upper-cases the first letter of name.
func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// namer hands out local variable names that do not collide with names
// already in scope.
type namer map[string]bool

func newNamer(taken ...string) namer {
	n := namer{}
	for _, t := range taken {
		n[t] = true
	}
	return n
}

// newShapeNamer returns a namer for code generated for shape. The
// identifiers reserved for shape are taken.
func newShapeNamer(shape *macro.DeclarationShape, taken ...string) namer {
	n := newNamer(taken...)
	for _, r := range shape.Reserved() {
		n[r] = true
	}
	return n
}

func (n namer) fresh(base string) string {
	name := base
	for n[name] {
		name += "_"
	}
	n[name] = true
	return name
}

// quotedList returns a format string for a []string literal and the args it
// consumes, so that every element is quoted by the formatter.
func quotedList(list []string) (string, []interface{}) {
	if len(list) == 0 {
		return "[]string{}", nil
	}
	args := make([]interface{}, len(list))
	for i, s := range list {
		args[i] = s
	}
	return "[]string{" + strings.TrimSuffix(strings.Repeat("%q, ", len(list)), ", ") + "}", args
}

// paramVars converts inspected params to fragment vars.
func paramVars(params []macro.Param) []macro.Var {
	vars := make([]macro.Var, len(params))
	for i, p := range params {
		vars[i] = macro.Var{Name: p.Local, Type: p.GoType}
	}
	return vars
}

// callArgs returns the argument list for forwarding params to a call.
func callArgs(params []macro.Param, variadic bool) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Local
	}
	s := strings.Join(names, ", ")
	if variadic && len(names) > 0 {
		s += "..."
	}
	return s
}

// resultShape classifies the results of a func or method for wrapping in a
// func() (T, error).
type resultShape int

const (
	resultsNone       resultShape = iota // ()
	resultsError                         // (error)
	resultsValue                         // (T)
	resultsValueError                    // (T, error)
)

func classifyResults(results []macro.Param) (resultShape, error) {
	switch len(results) {
	case 0:
		return resultsNone, nil
	case 1:
		if results[0].Key == "error" {
			return resultsError, nil
		}
		return resultsValue, nil
	case 2:
		if results[1].Key == "error" && results[0].Key != "error" {
			return resultsValueError, nil
		}
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.TypeText
	}
	return 0, fmt.Errorf("results (%s) cannot be wrapped; expecting (), (T), (error) or (T, error)", strings.Join(texts, ", "))
}

// wrapped describes how to call a func or method inside a closure of type
// func() (T, error) and how the wrapper returns the closure's result.
type wrapped struct {
	shape resultShape
	// value is T for the closure; struct{} when the wrapped call has no
	// value result.
	value gopoet.TypeName
}

func newWrapped(results []macro.Param) (wrapped, error) {
	rs, err := classifyResults(results)
	if err != nil {
		return wrapped{}, err
	}
	w := wrapped{shape: rs, value: emptyType}
	if rs == resultsValue || rs == resultsValueError {
		w.value = results[0].GoType
	}
	return w, nil
}

// wrapperResults are the results of the generated wrapper: (T, error), or
// just error when the wrapped call has no value result.
func (w wrapped) wrapperResults() []macro.Var {
	if w.shape == resultsNone || w.shape == resultsError {
		return []macro.Var{{Type: errorType}}
	}
	return []macro.Var{{Type: w.value}, {Type: errorType}}
}

// printClosure prints the closure that performs call.
func (w wrapped) printClosure(cb *gopoet.CodeBlock, call string) {
	cb.Printlnf("func() (%s, error) {", w.value)
	switch w.shape {
	case resultsNone:
		cb.Printlnf("%s", call)
		cb.Println("return struct{}{}, nil")
	case resultsError:
		cb.Printlnf("return struct{}{}, %s", call)
	case resultsValue:
		cb.Printlnf("return %s, nil", call)
	case resultsValueError:
		cb.Printlnf("return %s", call)
	}
	cb.Print("}")
}

// printReturn prints the wrapper body: a return of helper(<prefixArgs>,
// closure), discarding the value when the wrapper returns only an error.
func (w wrapped) printReturn(cb *gopoet.CodeBlock, names namer, call string, helper gopoet.Symbol, prefixFormat string, prefixArgs ...interface{}) {
	errName := ""
	if w.shape == resultsNone || w.shape == resultsError {
		errName = names.fresh("err")
		cb.Printf("_, %s := %s(", errName, helper)
	} else {
		cb.Printf("return %s(", helper)
	}
	cb.Printf(prefixFormat, prefixArgs...)
	cb.Print(", ")
	w.printClosure(cb, call)
	cb.Println(")")
	if errName != "" {
		cb.Printlnf("return %s", errName)
	}
}
