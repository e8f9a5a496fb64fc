package macro

import (
	"fmt"

	"github.com/jhump/dimacros/parser"
)

// Macro is one kind of macro. Implementations must be stateless: every
// method is a pure function of its arguments, so that expansions can run
// concurrently and are reproducible.
type Macro interface {
	// Name is the annotation name, without the '@'.
	Name() string
	// Doc is a one-line description of what the macro generates.
	Doc() string
	Schema() Schema
	// Supports lists the declaration kinds the macro can be attached to.
	Supports() []DeclKind
	// Validate checks macro-specific preconditions. It runs only after
	// arguments were parsed and the declaration was inspected without
	// errors.
	Validate(args *ParsedArguments, shape *DeclarationShape) Diagnostics
	// Templates are the builders of the macro's output, in output order.
	Templates() []Template
}

// Invocation is one annotation attached to one declaration.
type Invocation struct {
	Annotation parser.Annotation
	Target     Target
}

// State is a step of an expansion. An expansion only ever moves forward
// through the states and ends in StateFailed or StateDone.
type State int

const (
	StateReceived State = iota
	StateParsingInspecting
	StateValidating
	StateFailed
	StateSynthesizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateParsingInspecting:
		return "parsing&inspecting"
	case StateValidating:
		return "validating"
	case StateFailed:
		return "failed"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}

// Result is the outcome of one expansion. When State is StateFailed, the
// fragment is empty and Diagnostics contains at least one error. When it is
// StateDone, Diagnostics contains only warnings.
type Result struct {
	State       State
	Fragment    *GeneratedFragment
	Diagnostics Diagnostics
	// Shape is the inspected declaration. It is nil if inspection failed.
	Shape *DeclarationShape
}

// Failed reports whether the expansion failed.
func (r Result) Failed() bool {
	return r.State == StateFailed
}

// Expand runs one macro invocation: arguments are parsed and the declaration
// is inspected, then the macro validates them and, if no errors were found,
// its templates build the generated fragment.
func Expand(m Macro, inv Invocation) Result {
	e := expansion{macro: m, state: StateReceived}
	e.fragment = &GeneratedFragment{Macro: m.Name()}
	return e.run(inv)
}

type expansion struct {
	macro    Macro
	state    State
	diags    Diagnostics
	fragment *GeneratedFragment
}

func (e *expansion) advance(to State) {
	if to <= e.state && to != StateFailed {
		panic(fmt.Sprintf("expansion of @%s cannot move from %v to %v", e.macro.Name(), e.state, to))
	}
	e.state = to
}

func (e *expansion) add(ds ...Diagnostic) {
	for _, d := range ds {
		d.Macro = e.macro.Name()
		e.diags = append(e.diags, d)
	}
}

func (e *expansion) fail(shape *DeclarationShape) Result {
	e.advance(StateFailed)
	return Result{
		State:       StateFailed,
		Fragment:    &GeneratedFragment{Macro: e.fragment.Macro, Target: e.fragment.Target},
		Diagnostics: e.diags,
		Shape:       shape,
	}
}

func (e *expansion) run(inv Invocation) Result {
	pos := toTokenPos(inv.Annotation.Pos)

	e.advance(StateParsingInspecting)
	shape, d := Inspect(inv.Target, pos, e.macro.Supports()...)
	if d != nil {
		// halt before validation and before looking at the arguments
		e.add(*d)
		return e.fail(nil)
	}
	e.fragment.Target = shape.TypeName()
	args, diags := ParseArguments(inv.Annotation, e.macro.Schema())
	e.add(diags...)
	if e.diags.HasErrors() {
		return e.fail(shape)
	}

	e.advance(StateValidating)
	e.add(e.macro.Validate(args, shape)...)
	if e.diags.HasErrors() {
		return e.fail(shape)
	}

	e.advance(StateSynthesizing)
	for _, t := range e.macro.Templates() {
		piece, ok, err := t.Build(args, shape)
		if err != nil {
			e.add(Errorf(SynthesisFailed, pos, "template %s: %v", t.Name, err))
			return e.fail(shape)
		}
		if !ok {
			continue
		}
		if piece.Emission != t.Emission {
			e.add(Errorf(SynthesisFailed, pos, "template %s produced %v emission, declared %v", t.Name, piece.Emission, t.Emission))
			return e.fail(shape)
		}
		piece.Template = t.Name
		e.fragment.Pieces = append(e.fragment.Pieces, piece)
	}
	if _, err := e.fragment.Render(shape.PkgPath, shape.PkgName); err != nil {
		e.add(Errorf(SynthesisFailed, pos, "%v", err))
		return e.fail(shape)
	}

	e.advance(StateDone)
	return Result{State: StateDone, Fragment: e.fragment, Diagnostics: e.diags, Shape: shape}
}
