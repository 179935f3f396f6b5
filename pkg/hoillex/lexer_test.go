package hoillex

import (
	"testing"

	"github.com/coil-toolchain/coil/pkg/diag"
)

func TestNextToken(t *testing.T) {
	input := `MODULE "m"; function f() -> i32 { ENTRY: x = LOAD_I32 0; RET x; }`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{KwModule, "MODULE"},
		{String, "m"},
		{Semicolon, ";"},
		{KwFunction, "function"},
		{Ident, "f"},
		{LParen, "("},
		{RParen, ")"},
		{Arrow, "->"},
		{KwI32, "i32"},
		{LBrace, "{"},
		{Ident, "ENTRY"},
		{Colon, ":"},
		{Ident, "x"},
		{Assign, "="},
		{Ident, "LOAD_I32"},
		{Int, "0"},
		{Semicolon, ";"},
		{Ident, "RET"},
		{Ident, "x"},
		{Semicolon, ";"},
		{RBrace, "}"},
		{EOF, ""},
	}

	l := New(input, "test.hoil", nil)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - type wrong. expected=%s, got=%s (literal %q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestComments(t *testing.T) {
	input := "// a line comment\nMODULE \"m\"; // trailing\n"
	l := New(input, "test.hoil", nil)
	tok := l.NextToken()
	if tok.Type != KwModule {
		t.Fatalf("expected module keyword after comment, got %s %q", tok.Type, tok.Literal)
	}
}

func TestHexAndFloatLiterals(t *testing.T) {
	input := `0x1F 3.14 -2`
	l := New(input, "test.hoil", nil)

	tok := l.NextToken()
	if tok.Type != Hex || tok.Literal != "0x1F" {
		t.Fatalf("expected hex 0x1F, got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != Float || tok.Literal != "3.14" {
		t.Fatalf("expected float 3.14, got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != Int || tok.Literal != "-2" {
		t.Fatalf("expected int -2, got %s %q", tok.Type, tok.Literal)
	}
}

func TestIllegalCharacterReported(t *testing.T) {
	reporter := diag.NewReporter()
	l := New("#", "test.hoil", reporter)
	tok := l.NextToken()
	if tok.Type != Illegal {
		t.Fatalf("expected Illegal, got %s", tok.Type)
	}
	if !reporter.HadError() {
		t.Fatalf("expected an error diagnostic for an illegal character")
	}
}
