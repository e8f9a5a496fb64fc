package parser

import (
	"strings"
	"testing"
	"text/scanner"
)

func TestLexer(t *testing.T) {
	input := "\n@pkg.Debug(\n\tlevel: .verbose,\n\tnames: [\"a\", `b`],\n)\n@Other -12 true\n\n"

	cases := []struct {
		tok           rune
		lineNo, colNo int
		text          string
	}{
		{EOL, 1, 1, "\n"},
		{'@', 2, 1, "@"},
		{scanner.Ident, 2, 2, "pkg"},
		{'.', 2, 5, "."},
		{scanner.Ident, 2, 6, "Debug"},
		{'(', 2, 11, "("},
		// newlines inside parens are skipped
		{scanner.Ident, 3, 2, "level"},
		{':', 3, 7, ":"},
		{'.', 3, 9, "."},
		{scanner.Ident, 3, 10, "verbose"},
		{',', 3, 17, ","},
		{scanner.Ident, 4, 2, "names"},
		{':', 4, 7, ":"},
		{'[', 4, 9, "["},
		{scanner.String, 4, 10, `"a"`},
		{',', 4, 13, ","},
		{scanner.RawString, 4, 15, "`b`"},
		{']', 4, 18, "]"},
		{',', 4, 19, ","},
		{')', 5, 1, ")"},
		{EOL, 5, 2, "\n"},
		{'@', 6, 1, "@"},
		{scanner.Ident, 6, 2, "Other"},
		{'-', 6, 8, "-"},
		{scanner.Int, 6, 9, "12"},
		{scanner.Ident, 6, 12, "true"},
		{EOL, 6, 16, "\n"},
		{EOL, 7, 1, "\n"},
		{scanner.EOF, 0, 0, ""},
	}

	l := newLexer("foo", strings.NewReader(input))

	for i, tc := range cases {
		tok := l.next()
		if tok.r != tc.tok {
			t.Fatalf("case %d: expecting token %s, got %s", i+1, scanner.TokenString(tc.tok), scanner.TokenString(tok.r))
		}
		if tc.tok == scanner.EOF {
			break
		}
		if tok.pos.Line != tc.lineNo || tok.pos.Column != tc.colNo {
			t.Fatalf("case %d: expecting position %d:%d, got %d:%d", i+1, tc.lineNo, tc.colNo, tok.pos.Line, tok.pos.Column)
		}
		if tok.text != tc.text {
			t.Fatalf("case %d: expecting text %q but got %q", i+1, tc.text, tok.text)
		}
		if tok.pos.Filename != "foo" {
			t.Fatalf("case %d: expecting filename foo but got %q", i+1, tok.pos.Filename)
		}
	}
}

func TestLexerPeek(t *testing.T) {
	l := newLexer("foo", strings.NewReader("a: b"))
	if p := l.peek(1); p.r != ':' {
		t.Fatalf("expecting ':' two tokens ahead, got %s", describe(p))
	}
	if n := l.next(); n.r != scanner.Ident || n.text != "a" {
		t.Fatalf("expecting identifier a, got %s", describe(n))
	}
	if n := l.next(); n.r != ':' {
		t.Fatalf("expecting ':', got %s", describe(n))
	}
	if n := l.next(); n.text != "b" || n.pos.Column != 4 {
		t.Fatalf("expecting identifier b at column 4, got %s at column %d", describe(n), n.pos.Column)
	}
}
