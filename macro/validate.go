package macro

import (
	"go/token"
	"strings"
)

// SelectInitializer checks that the shape has exactly one initializer, or
// one with the given name if name is not empty, and returns it.
func SelectInitializer(shape *DeclarationShape, name string, pos token.Position) (*Initializer, *Diagnostic) {
	if name != "" {
		for i := range shape.Initializers {
			if shape.Initializers[i].Name == name {
				return &shape.Initializers[i], nil
			}
		}
		d := Errorf(ValidationFailed, pos, "%s has no initializer named %s", shape.Name, name)
		return nil, &d
	}
	switch len(shape.Initializers) {
	case 0:
		d := Errorf(ValidationFailed, pos,
			"%s has no initializer; expecting a func New...(...) returning %s or *%s", shape.Name, shape.Name, shape.Name)
		return nil, &d
	case 1:
		return &shape.Initializers[0], nil
	default:
		names := make([]string, len(shape.Initializers))
		for i, in := range shape.Initializers {
			names[i] = in.Name
		}
		d := Errorf(ValidationFailed, pos,
			"%s has %d initializers (%s); exactly one is expected, or name one with constructor:",
			shape.Name, len(names), strings.Join(names, ", "))
		return nil, &d
	}
}

// CheckConflicts reports an error for every generated member name that the
// type already declares.
func CheckConflicts(shape *DeclarationShape, pos token.Position, generated ...string) Diagnostics {
	var diags Diagnostics
	for _, name := range generated {
		if shape.HasMember(name) {
			diags = append(diags, Errorf(ValidationFailed, pos,
				"%s already declares %s; the generated member would conflict", shape.TypeName(), name))
		}
	}
	return diags
}

// CheckExclusive reports an error if both bool options are set.
func CheckExclusive(args *ParsedArguments, a, b string) Diagnostics {
	if args.Bool(a) && args.Bool(b) {
		return Diagnostics{Errorf(ValidationFailed, args.At(b), "options %q and %q are mutually exclusive", a, b)}
	}
	return nil
}

// CheckIdentifier reports an error if the string option has a value that is
// not a valid, exported or unexported, Go identifier. Empty values pass.
func CheckIdentifier(args *ParsedArguments, option string) Diagnostics {
	v := args.String(option)
	if v == "" || IsIdentifier(v) {
		return nil
	}
	return Diagnostics{Errorf(ValidationFailed, args.At(option), "option %q: %q is not a valid Go identifier", option, v)}
}

// IsIdentifier reports whether s can be used as a declared Go name.
func IsIdentifier(s string) bool {
	return token.IsIdentifier(s) && s != "_"
}

// CheckParamsExist reports an error for every name in the list option that
// does not name one of params.
func CheckParamsExist(args *ParsedArguments, option string, params []Param) Diagnostics {
	var diags Diagnostics
	for _, name := range args.Strings(option) {
		found := false
		for _, p := range params {
			if p.Name == name {
				found = true
				break
			}
		}
		if !found {
			diags = append(diags, Errorf(ValidationFailed, args.At(option),
				"option %q: %q is not a parameter of the initializer", option, name))
		}
	}
	return diags
}

// CheckTypes reports an error for every parameter whose type cannot be
// referenced from generated code.
func CheckTypes(pos token.Position, what string, params []Param) Diagnostics {
	var diags Diagnostics
	for _, p := range params {
		if p.GoType == nil {
			diags = append(diags, Errorf(ValidationFailed, pos,
				"%s %s has type %s, which is not supported in generated code", what, p.Name, p.TypeText))
		}
	}
	return diags
}

// CheckNotGeneric reports an error if the declaration has type parameters.
func CheckNotGeneric(shape *DeclarationShape, pos token.Position) Diagnostics {
	if len(shape.TypeParams) == 0 {
		return nil
	}
	return Diagnostics{Errorf(ValidationFailed, pos, "%s is generic; generic declarations are not supported", shape.Name)}
}
