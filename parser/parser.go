package parser

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"io"
	"text/scanner"
)

// EOL is the token returned for a newline that terminates an annotation.
// Newlines inside parentheses or brackets are skipped by the lexer.
const EOL rune = '\n'

type lexeme struct {
	r    rune
	text string
	pos  scanner.Position
}

type annoLex struct {
	s      scanner.Scanner
	err    error
	errPos scanner.Position

	depth int
	buf   []lexeme
	last  lexeme
}

func newLexer(filename string, r io.Reader) *annoLex {
	var l annoLex
	l.s.Init(r)
	l.s.Filename = filename
	l.s.Mode = l.s.Mode &^ (scanner.ScanComments | scanner.SkipComments)
	l.s.Whitespace = 0
	l.s.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			l.err = errors.New(msg)
			l.errPos = s.Pos()
		}
	}
	return &l
}

// ParseError describes a syntax error in annotation text.
type ParseError struct {
	err error
	pos scanner.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.pos.Line, e.pos.Column, e.err)
}

func (e *ParseError) Underlying() error {
	return e.err
}

func (e *ParseError) Pos() scanner.Position {
	return e.pos
}

// ParseAnnotations parses all annotations in the given reader. The text is
// expected to contain only annotations, separated by newlines; blank lines are
// ignored. Positions in the result and in any error are relative to the
// reader's contents, labeled with filename.
func ParseAnnotations(filename string, r io.Reader) ([]Annotation, *ParseError) {
	p := annoParser{lex: newLexer(filename, r)}
	res, err := p.parse()
	if p.lex.err != nil {
		return nil, &ParseError{err: p.lex.err, pos: p.lex.errPos}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// scan returns the next significant token from the underlying scanner.
func (l *annoLex) scan() lexeme {
	for {
		// we handle whitespace ourselves so that we can easily know the
		// *start* position for a token
		pos := l.s.Pos()
		r := l.s.Scan()
		if l.err != nil {
			return lexeme{r: scanner.EOF, pos: l.errPos}
		}
		switch r {
		case ' ', '\t', '\r', '\f':
			continue
		case EOL:
			if l.depth > 0 {
				continue
			}
		case '(', '[':
			l.depth++
		case ')', ']':
			if l.depth > 0 {
				l.depth--
			}
		}
		return lexeme{r: r, text: l.s.TokenText(), pos: pos}
	}
}

func (l *annoLex) next() lexeme {
	var t lexeme
	if len(l.buf) > 0 {
		t = l.buf[0]
		l.buf = l.buf[1:]
	} else {
		t = l.scan()
	}
	if t.r != scanner.EOF {
		l.last = t
	}
	return t
}

// peek returns the token n positions ahead without consuming anything.
func (l *annoLex) peek(n int) lexeme {
	for len(l.buf) <= n {
		l.buf = append(l.buf, l.scan())
	}
	return l.buf[n]
}

func describe(t lexeme) string {
	switch t.r {
	case scanner.EOF:
		return "end of input"
	case EOL:
		return "end-of-line"
	case scanner.Ident:
		return fmt.Sprintf("identifier %q", t.text)
	case scanner.Int:
		return fmt.Sprintf("int literal %s", t.text)
	case scanner.Float:
		return fmt.Sprintf("float literal %s", t.text)
	case scanner.Char:
		return fmt.Sprintf("rune literal %s", t.text)
	case scanner.String, scanner.RawString:
		return "string literal"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type annoParser struct {
	lex *annoLex
}

func (p *annoParser) errorf(t lexeme, format string, args ...interface{}) *ParseError {
	return &ParseError{err: fmt.Errorf(format, args...), pos: t.pos}
}

func (p *annoParser) unexpected(t lexeme, want string) *ParseError {
	return p.errorf(t, "syntax error: unexpected %s, expecting %s", describe(t), want)
}

func (p *annoParser) parse() ([]Annotation, *ParseError) {
	var res []Annotation
	for {
		t := p.lex.next()
		switch t.r {
		case scanner.EOF:
			return res, nil
		case EOL:
			continue
		case '@':
			a, err := p.parseAnnotation(t)
			if err != nil {
				return nil, err
			}
			res = append(res, a)
			switch nt := p.lex.peek(0); nt.r {
			case EOL, scanner.EOF, '@':
			default:
				return nil, p.unexpected(nt, "end-of-line")
			}
		default:
			return nil, p.unexpected(t, `"@"`)
		}
	}
}

func (p *annoParser) parseAnnotation(at lexeme) (Annotation, *ParseError) {
	a := Annotation{Pos: at.pos}
	id, err := p.parseIdentifier()
	if err != nil {
		return a, err
	}
	a.Name = id
	if p.lex.peek(0).r != '(' {
		return a, nil
	}
	p.lex.next()
	a.HasArgs = true
	for {
		if p.lex.peek(0).r == ')' {
			p.lex.next()
			return a, nil
		}
		arg, err := p.parseArgument()
		if err != nil {
			return a, err
		}
		a.Args = append(a.Args, arg)
		switch t := p.lex.next(); t.r {
		case ',':
		case ')':
			return a, nil
		default:
			return a, p.unexpected(t, `"," or ")"`)
		}
	}
}

func (p *annoParser) parseIdentifier() (Identifier, *ParseError) {
	t := p.lex.next()
	if t.r != scanner.Ident {
		return Identifier{}, p.unexpected(t, "identifier")
	}
	id := Identifier{Name: t.text, Pos: t.pos}
	if p.lex.peek(0).r == '.' && p.lex.peek(1).r == scanner.Ident {
		p.lex.next()
		sel := p.lex.next()
		id.PackageAlias = id.Name
		id.Name = sel.text
	}
	return id, nil
}

func (p *annoParser) parseArgument() (Argument, *ParseError) {
	var arg Argument
	if t := p.lex.peek(0); t.r == scanner.Ident && p.lex.peek(1).r == ':' {
		p.lex.next()
		p.lex.next()
		arg.Label = t.text
		arg.LabelPos = t.pos
	}
	v, err := p.parseExpression()
	if err != nil {
		return arg, err
	}
	arg.Value = v
	return arg, nil
}

func (p *annoParser) parseExpression() (ExpressionNode, *ParseError) {
	t := p.lex.peek(0)
	switch t.r {
	case scanner.String, scanner.RawString:
		p.lex.next()
		v := constant.MakeFromLiteral(t.text, token.STRING, 0)
		if v.Kind() == constant.Unknown {
			return nil, p.errorf(t, "malformed string literal %s", t.text)
		}
		return &LiteralNode{Val: v, Text: t.text, pos: t.pos}, nil

	case scanner.Int:
		p.lex.next()
		return p.intLiteral(t, t, false)

	case '-':
		p.lex.next()
		n := p.lex.next()
		if n.r != scanner.Int {
			return nil, p.unexpected(n, "int literal")
		}
		return p.intLiteral(t, n, true)

	case scanner.Ident:
		switch t.text {
		case "true", "false":
			p.lex.next()
			return &LiteralNode{Val: constant.MakeBool(t.text == "true"), Text: t.text, pos: t.pos}, nil
		}
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &RefNode{Ident: id}, nil

	case '.':
		p.lex.next()
		n := p.lex.next()
		if n.r != scanner.Ident {
			return nil, p.unexpected(n, "identifier")
		}
		return &MemberRefNode{Name: n.text, pos: t.pos}, nil

	case '[':
		p.lex.next()
		list := &ListNode{pos: t.pos}
		for {
			if p.lex.peek(0).r == ']' {
				p.lex.next()
				return list, nil
			}
			el, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, el)
			switch n := p.lex.next(); n.r {
			case ',':
			case ']':
				return list, nil
			default:
				return nil, p.unexpected(n, `"," or "]"`)
			}
		}

	default:
		p.lex.next()
		return nil, p.unexpected(t, "expression")
	}
}

func (p *annoParser) intLiteral(start, lit lexeme, negate bool) (ExpressionNode, *ParseError) {
	v := constant.MakeFromLiteral(lit.text, token.INT, 0)
	if v.Kind() != constant.Int {
		return nil, p.errorf(lit, "malformed int literal %s", lit.text)
	}
	text := lit.text
	if negate {
		v = constant.UnaryOp(token.SUB, v, 0)
		text = "-" + text
	}
	return &LiteralNode{Val: v, Text: text, pos: start.pos}, nil
}
