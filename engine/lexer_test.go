package engine

import (
	"testing"
)

func tokenize(formula string) ([]Token, error) {
	return NewLexer(formula).Tokenize()
}

func TestLexerValidFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=$A$1",
		"=A$1+$B2",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"='My Sheet'!B3",
		"=SUM(Sheet2!A1:A10)",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=-A1",
		"=50%",
		"=1.5e3+2",
		"=A1<>B1",
		"=A1<=B1",
		`="hello"&"world"`,
		`=IF(TRUE,1,2)`,
		"=IF(A1>0,,5)",
		"=SUM(A1,,B1)",
		"=(1+2)*3",
	}
	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := tokenize(formula); err != nil {
				t.Errorf("failed to tokenize valid formula %s: %v", formula, err)
			}
		})
	}
}

func TestLexerInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"",
		"1+2",
		"=SUM(",
		"=)",
		`="unclosed`,
		"=A1 A2",
		"=#",
	}
	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := tokenize(formula); err == nil {
				t.Errorf("expected error tokenizing %q", formula)
			}
		})
	}
}

func TestLexerStringEscapes(t *testing.T) {
	cases := []struct {
		formula string
		want    string
	}{
		{`="a""b"`, `a"b`},
		{`="a\"b"`, `a"b`},
		{`="plain"`, "plain"},
		{`="A1+B2"`, "A1+B2"},
	}
	for _, tc := range cases {
		tokens, err := tokenize(tc.formula)
		if err != nil {
			t.Fatalf("tokenize(%q): %v", tc.formula, err)
		}
		var got string
		found := false
		for _, tok := range tokens {
			if tok.Type == TokenString {
				got = tok.Value
				found = true
			}
		}
		if !found {
			t.Fatalf("no string token in %q", tc.formula)
		}
		if got != tc.want {
			t.Errorf("string content of %q = %q, want %q", tc.formula, got, tc.want)
		}
	}
}

func TestLexerCellVersusIdentifier(t *testing.T) {
	tokens, err := tokenize("=SUM(A1:B2)+TaxRate")
	if err != nil {
		t.Fatal(err)
	}
	var kinds []TokenType
	for _, tok := range tokens {
		kinds = append(kinds, tok.Type)
	}
	want := []TokenType{TokenEquals, TokenFunction, TokenLeftParen, TokenRange, TokenRightParen, TokenBinaryOp, TokenIdentifier, TokenEOF}
	if len(kinds) != len(want) {
		t.Fatalf("token kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexerUnaryVersusBinaryMinus(t *testing.T) {
	tokens, err := tokenize("=-1-2")
	if err != nil {
		t.Fatal(err)
	}
	if tokens[1].Type != TokenUnaryPrefixOp {
		t.Errorf("leading minus lexed as %v, want unary prefix", tokens[1].Type)
	}
	if tokens[3].Type != TokenBinaryOp {
		t.Errorf("infix minus lexed as %v, want binary", tokens[3].Type)
	}
}
