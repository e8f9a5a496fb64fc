package parser

import (
	"fmt"
	"go/constant"
	"text/scanner"
)

// ExprKind enumerates the kinds of expression that may appear as an
// annotation argument. The set is closed: every ExpressionNode is exactly one
// of these.
type ExprKind int

const (
	// KindLiteral is a string, integer, or boolean literal (*LiteralNode).
	KindLiteral ExprKind = iota
	// KindMemberRef is a reference to an enum member, like .verbose
	// (*MemberRefNode).
	KindMemberRef
	// KindRef is a reference to an identifier, possibly qualified with a
	// package name (*RefNode).
	KindRef
	// KindList is a bracketed list of expressions (*ListNode).
	KindList
)

func (k ExprKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindMemberRef:
		return "member reference"
	case KindRef:
		return "identifier"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}

// ExpressionNode is a node in the AST for annotation argument values.
type ExpressionNode interface {
	Pos() scanner.Position
	Kind() ExprKind
	exprNode()
}

// LiteralNode is an expression node that represents a literal value: a
// string, an integer, or a boolean.
type LiteralNode struct {
	Val constant.Value
	// Text is the literal exactly as written, such as `"foo"` or `true`.
	Text string
	pos  scanner.Position
}

func (n *LiteralNode) Pos() scanner.Position { return n.pos }
func (n *LiteralNode) Kind() ExprKind        { return KindLiteral }
func (n *LiteralNode) exprNode()             {}

// MemberRefNode is an expression node that refers to a member of an
// enumeration by name, with an implicit type: .name
type MemberRefNode struct {
	Name string
	pos  scanner.Position
}

func (n *MemberRefNode) Pos() scanner.Position { return n.pos }
func (n *MemberRefNode) Kind() ExprKind        { return KindMemberRef }
func (n *MemberRefNode) exprNode()             {}

// RefNode is an expression node that is a reference to an identifier.
type RefNode struct {
	Ident Identifier
}

func (n *RefNode) Pos() scanner.Position { return n.Ident.Pos }
func (n *RefNode) Kind() ExprKind        { return KindRef }
func (n *RefNode) exprNode()             {}

// ListNode is an expression node that represents a bracketed list of values.
type ListNode struct {
	Elements []ExpressionNode
	pos      scanner.Position
}

func (n *ListNode) Pos() scanner.Position { return n.pos }
func (n *ListNode) Kind() ExprKind        { return KindList }
func (n *ListNode) exprNode()             {}

// Identifier is an AST node that refers to an identifier, possibly qualified
// with a package name/alias.
type Identifier struct {
	PackageAlias string
	Name         string
	Pos          scanner.Position
}

func (id Identifier) String() string {
	if id.PackageAlias == "" {
		return id.Name
	}
	return fmt.Sprintf("%s.%s", id.PackageAlias, id.Name)
}

// Argument is one entry of an annotation's argument list. Label is empty for
// positional arguments.
type Argument struct {
	Label    string
	LabelPos scanner.Position
	Value    ExpressionNode
}

// Pos returns the position of the argument's label or, for positional
// arguments, of its value.
func (a Argument) Pos() scanner.Position {
	if a.Label != "" {
		return a.LabelPos
	}
	return a.Value.Pos()
}

// Annotation is a fully parsed annotation: its name and its (possibly empty)
// argument list. HasArgs distinguishes @Foo from @Foo().
type Annotation struct {
	Name    Identifier
	Args    []Argument
	HasArgs bool
	Pos     scanner.Position
}
