package macro

import (
	"fmt"

	"github.com/jhump/gopoet"
)

// Emission says how a piece of generated code relates to the annotated
// declaration.
type Emission int

const (
	// EmitMember adds methods to the annotated type.
	EmitMember Emission = iota
	// EmitExtension adds a conformance assertion for the annotated type plus
	// the methods that fulfill it.
	EmitExtension
	// EmitPeer adds new top-level declarations beside the annotated one.
	EmitPeer
)

func (e Emission) String() string {
	switch e {
	case EmitMember:
		return "member"
	case EmitExtension:
		return "extension"
	case EmitPeer:
		return "peer"
	default:
		return fmt.Sprintf("?%d?", int(e))
	}
}

// Element is one generated declaration. The set of implementations is
// closed: *Method, *Func, *Conformance, *InterfaceDecl and *StructDecl.
type Element interface {
	// DeclName is the name the element declares, qualified with its
	// receiver type for methods.
	DeclName() string
	element()
}

// Var is a named, typed parameter, result or field.
type Var struct {
	Name string
	Type gopoet.TypeName
}

// Signature is the parameter and result list of a func or method.
type Signature struct {
	Params   []Var
	Results  []Var
	Variadic bool
}

// Method is a generated method.
type Method struct {
	Doc string
	// Recv is the receiver name and Type the name of the receiver type,
	// which is always local to the generated file's package.
	Recv    string
	Type    string
	Pointer bool
	Name    string
	Signature
	Body gopoet.CodeBlock
}

func (m *Method) DeclName() string { return m.Type + "." + m.Name }
func (m *Method) element()         {}

// Func is a generated package-level func.
type Func struct {
	Doc  string
	Name string
	Signature
	Body gopoet.CodeBlock
}

func (f *Func) DeclName() string { return f.Name }
func (f *Func) element()         {}

// Conformance asserts at compile time that a local type implements an
// interface:
//
//	var _ Interface[TypeArgs] = (*Type)(nil)
type Conformance struct {
	Interface gopoet.Symbol
	TypeArgs  []gopoet.TypeName
	Type      string
	Pointer   bool
}

func (c *Conformance) DeclName() string { return "_ " + c.Interface.Name }
func (c *Conformance) element()         {}

// InterfaceMethod is a method of a generated interface.
type InterfaceMethod struct {
	Name string
	Signature
}

// InterfaceDecl is a generated interface type.
type InterfaceDecl struct {
	Doc     string
	Name    string
	Methods []InterfaceMethod
}

func (d *InterfaceDecl) DeclName() string { return d.Name }
func (d *InterfaceDecl) element()         {}

// StructDecl is a generated struct type.
type StructDecl struct {
	Doc    string
	Name   string
	Fields []Var
}

func (d *StructDecl) DeclName() string { return d.Name }
func (d *StructDecl) element()         {}

// Piece is the output of one template: a group of elements and the contract
// they fulfill, such as "adds method EnableDebugMode".
type Piece struct {
	Template string
	Emission Emission
	Contract string
	Elements []Element
}

// GeneratedFragment is the ordered output of one macro expansion.
type GeneratedFragment struct {
	Macro  string
	Target string
	Pieces []Piece
}

// IsEmpty reports whether the fragment contains no pieces.
func (f *GeneratedFragment) IsEmpty() bool {
	return f == nil || len(f.Pieces) == 0
}

// Members returns the pieces with member emission.
func (f *GeneratedFragment) Members() []Piece {
	return f.byEmission(EmitMember)
}

// Extensions returns the pieces with extension emission.
func (f *GeneratedFragment) Extensions() []Piece {
	return f.byEmission(EmitExtension)
}

// Peers returns the pieces with peer emission.
func (f *GeneratedFragment) Peers() []Piece {
	return f.byEmission(EmitPeer)
}

func (f *GeneratedFragment) byEmission(e Emission) []Piece {
	if f == nil {
		return nil
	}
	var res []Piece
	for _, p := range f.Pieces {
		if p.Emission == e {
			res = append(res, p)
		}
	}
	return res
}

// Contracts returns the contract of every piece, in order.
func (f *GeneratedFragment) Contracts() []string {
	if f == nil {
		return nil
	}
	res := make([]string, len(f.Pieces))
	for i, p := range f.Pieces {
		res[i] = p.Contract
	}
	return res
}

// DeclNames returns the names declared by all elements, in order.
func (f *GeneratedFragment) DeclNames() []string {
	if f == nil {
		return nil
	}
	var res []string
	for _, p := range f.Pieces {
		for _, el := range p.Elements {
			res = append(res, el.DeclName())
		}
	}
	return res
}

// Template builds one piece of a macro's output. Build reports false when
// the piece does not apply to this invocation, such as an optional
// extension. A non-nil error is a defect in the macro.
type Template struct {
	Name     string
	Emission Emission
	Build    func(args *ParsedArguments, shape *DeclarationShape) (Piece, bool, error)
}
