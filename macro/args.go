package macro

import (
	"fmt"
	"go/constant"
	"go/token"

	"github.com/jhump/dimacros/parser"
)

// OptionKind is the kind of value an option accepts.
type OptionKind int

const (
	OptBool OptionKind = iota
	OptEnum
	OptString
	OptStringList
	OptInt
)

func (k OptionKind) String() string {
	switch k {
	case OptBool:
		return "bool"
	case OptEnum:
		return "enum"
	case OptString:
		return "string"
	case OptStringList:
		return "[]string"
	case OptInt:
		return "int"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}

// Option describes one labeled argument a macro recognizes.
type Option struct {
	Name string
	Kind OptionKind
	// Default is the value used when the option is absent. Its dynamic type
	// must match Kind: bool, string (also for enums), []string or int64.
	Default interface{}
	// Allowed is the closed set of member names for OptEnum options.
	Allowed []string
	Doc     string
}

// Schema is the ordered set of options a macro recognizes.
type Schema []Option

// Lookup returns the option with the given name.
func (s Schema) Lookup(name string) (Option, bool) {
	for _, o := range s {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// ParsedArguments holds the typed value of every option in a schema, with
// defaults filled in for options that were not given.
type ParsedArguments struct {
	values map[string]interface{}
	given  map[string]token.Position
	pos    token.Position
}

// Pos returns the position of the annotation the arguments came from.
func (a *ParsedArguments) Pos() token.Position {
	return a.pos
}

// IsSet reports whether the option was given explicitly (and understood).
func (a *ParsedArguments) IsSet(name string) bool {
	_, ok := a.given[name]
	return ok
}

// At returns the position of the named argument or, if it was not given, the
// position of the annotation.
func (a *ParsedArguments) At(name string) token.Position {
	if p, ok := a.given[name]; ok {
		return p
	}
	return a.pos
}

func (a *ParsedArguments) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

func (a *ParsedArguments) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Enum returns the member name selected for an enum option.
func (a *ParsedArguments) Enum(name string) string {
	return a.String(name)
}

// Strings returns a copy of the values of a list option.
func (a *ParsedArguments) Strings(name string) []string {
	l, _ := a.values[name].([]string)
	return cloneStrings(l)
}

// cloneStrings copies l, keeping the difference between nil and empty.
func cloneStrings(l []string) []string {
	if l == nil {
		return nil
	}
	return append(make([]string, 0, len(l)), l...)
}

func (a *ParsedArguments) Int(name string) int64 {
	i, _ := a.values[name].(int64)
	return i
}

// ParseArguments resolves the arguments of anno against schema.
//
// Parsing is lenient in the following ways: labels the schema does not know
// are ignored, bool options are true only for the literal true, and enum
// options given anything other than one of their members keep their default
// (with a warning). Positional arguments are ignored with a warning. String,
// list and int options given the wrong kind of expression produce a
// MalformedArgument error.
func ParseArguments(anno parser.Annotation, schema Schema) (*ParsedArguments, Diagnostics) {
	args := &ParsedArguments{
		values: make(map[string]interface{}, len(schema)),
		given:  map[string]token.Position{},
		pos:    toTokenPos(anno.Pos),
	}
	for _, o := range schema {
		if l, ok := o.Default.([]string); ok {
			args.values[o.Name] = cloneStrings(l)
		} else {
			args.values[o.Name] = o.Default
		}
	}

	var diags Diagnostics
	for _, arg := range anno.Args {
		pos := toTokenPos(arg.Pos())
		if arg.Label == "" {
			diags = append(diags, Warnf(MalformedArgument, pos,
				"positional argument ignored: options must be given as label: value"))
			continue
		}
		opt, ok := schema.Lookup(arg.Label)
		if !ok {
			continue
		}
		if _, dup := args.given[opt.Name]; dup {
			diags = append(diags, Warnf(MalformedArgument, pos,
				"option %q given more than once; the last value is used", opt.Name))
		}
		args.given[opt.Name] = pos

		switch opt.Kind {
		case OptBool:
			lit, ok := arg.Value.(*parser.LiteralNode)
			args.values[opt.Name] = ok && lit.Text == "true"

		case OptEnum:
			ref, ok := arg.Value.(*parser.MemberRefNode)
			if ok && contains(opt.Allowed, ref.Name) {
				args.values[opt.Name] = ref.Name
				break
			}
			args.values[opt.Name] = opt.Default
			got := arg.Value.Kind().String()
			if ok {
				got = "." + ref.Name
			}
			diags = append(diags, Warnf(MalformedArgument, pos,
				"option %q: %s is not one of %s; using .%v", opt.Name, got, memberList(opt.Allowed), opt.Default))

		case OptString:
			lit, ok := arg.Value.(*parser.LiteralNode)
			if !ok || lit.Val.Kind() != constant.String {
				diags = append(diags, malformed(opt, arg))
				continue
			}
			args.values[opt.Name] = constant.StringVal(lit.Val)

		case OptStringList:
			list, ok := arg.Value.(*parser.ListNode)
			if !ok {
				diags = append(diags, malformed(opt, arg))
				continue
			}
			strs := make([]string, 0, len(list.Elements))
			for _, el := range list.Elements {
				lit, ok := el.(*parser.LiteralNode)
				if !ok || lit.Val.Kind() != constant.String {
					diags = append(diags, Errorf(MalformedArgument, toTokenPos(el.Pos()),
						"option %q expects a list of string literals; found %s", opt.Name, describeExpr(el)))
					strs = nil
					break
				}
				strs = append(strs, constant.StringVal(lit.Val))
			}
			if strs != nil {
				args.values[opt.Name] = strs
			}

		case OptInt:
			lit, ok := arg.Value.(*parser.LiteralNode)
			if !ok || lit.Val.Kind() != constant.Int {
				diags = append(diags, malformed(opt, arg))
				continue
			}
			i, exact := constant.Int64Val(lit.Val)
			if !exact {
				diags = append(diags, Errorf(MalformedArgument, pos, "option %q: %s overflows int64", opt.Name, lit.Text))
				continue
			}
			args.values[opt.Name] = i
		}
	}
	return args, diags
}

func malformed(opt Option, arg parser.Argument) Diagnostic {
	return Errorf(MalformedArgument, toTokenPos(arg.Value.Pos()),
		"option %q expects %s; found %s", opt.Name, describeKind(opt.Kind), describeExpr(arg.Value))
}

func describeKind(k OptionKind) string {
	switch k {
	case OptString:
		return "a string literal"
	case OptStringList:
		return "a list of string literals"
	case OptInt:
		return "an int literal"
	default:
		return k.String()
	}
}

func describeExpr(e parser.ExpressionNode) string {
	switch e := e.(type) {
	case *parser.LiteralNode:
		return e.Text
	case *parser.MemberRefNode:
		return "." + e.Name
	case *parser.RefNode:
		return e.Ident.String()
	default:
		return e.Kind().String()
	}
}

func memberList(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += "|"
		}
		s += "." + n
	}
	return s
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
