package macro

import (
	"fmt"
	"go/token"
	"text/scanner"
)

// Severity says whether a diagnostic halts expansion.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}

// DiagKind classifies a diagnostic.
type DiagKind int

const (
	// MalformedArgument means an argument is present but has the wrong shape.
	MalformedArgument DiagKind = iota + 1
	// UnsupportedDeclarationKind means the macro was attached to a kind of
	// declaration it cannot handle.
	UnsupportedDeclarationKind
	// ValidationFailed means a structural precondition does not hold.
	ValidationFailed
	// SynthesisFailed means a template could not build its output. It always
	// indicates a defect in the macro.
	SynthesisFailed
)

func (k DiagKind) String() string {
	switch k {
	case MalformedArgument:
		return "MalformedArgument"
	case UnsupportedDeclarationKind:
		return "UnsupportedDeclarationKind"
	case ValidationFailed:
		return "ValidationFailed"
	case SynthesisFailed:
		return "SynthesisFailed"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}

// Diagnostic is a message about one macro invocation, attached to a source
// location.
type Diagnostic struct {
	Severity Severity
	Kind     DiagKind
	// Macro is the name of the macro that produced the diagnostic. It is
	// filled in by Expand.
	Macro   string
	Message string
	Pos     token.Position
}

// Error implements the error interface so that error-severity diagnostics can
// be returned directly.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%v: %s", d.Pos, d.Message)
}

// IsError reports whether d has error severity.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// Errorf returns an error-severity diagnostic.
func Errorf(kind DiagKind, pos token.Position, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityError, Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Warnf returns a warning-severity diagnostic.
func Warnf(kind DiagKind, pos token.Position, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Diagnostics is an ordered list of diagnostics.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	return ds.filter(SeverityError)
}

// Warnings returns only the warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	return ds.filter(SeverityWarning)
}

func (ds Diagnostics) filter(sev Severity) Diagnostics {
	var res Diagnostics
	for _, d := range ds {
		if d.Severity == sev {
			res = append(res, d)
		}
	}
	return res
}

// toTokenPos converts a position from the annotation parser. The processor
// feeds the parser text whose lines and columns match the source file, so
// only the offset is lost.
func toTokenPos(p scanner.Position) token.Position {
	return token.Position{Filename: p.Filename, Line: p.Line, Column: p.Column}
}
