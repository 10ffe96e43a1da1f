package setup

import (
	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_IDENT = iota
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_EQUALS
	TOKEN_COMMA
	TOKEN_ELLIPSIS
)

var tokenNames = map[int]string{
	TOKEN_IDENT:    "identifier",
	TOKEN_NUMBER:   "number",
	TOKEN_STRING:   "string",
	TOKEN_LBRACE:   "'{'",
	TOKEN_RBRACE:   "'}'",
	TOKEN_LBRACKET: "'['",
	TOKEN_RBRACKET: "']'",
	TOKEN_LPAREN:   "'('",
	TOKEN_RPAREN:   "')'",
	TOKEN_EQUALS:   "'='",
	TOKEN_COMMA:    "','",
	TOKEN_ELLIPSIS: "'...'",
}

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.]*`), getToken(TOKEN_IDENT))
	lexer.Add([]byte(`[\+\-]?[0-9]*\.?[0-9]+([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`"(\\.|[^"])*"`), getToken(TOKEN_STRING))
	lexer.Add([]byte(`\{`), getToken(TOKEN_LBRACE))
	lexer.Add([]byte(`\}`), getToken(TOKEN_RBRACE))
	lexer.Add([]byte(`\[`), getToken(TOKEN_LBRACKET))
	lexer.Add([]byte(`\]`), getToken(TOKEN_RBRACKET))
	lexer.Add([]byte(`\(`), getToken(TOKEN_LPAREN))
	lexer.Add([]byte(`\)`), getToken(TOKEN_RPAREN))
	lexer.Add([]byte(`=`), getToken(TOKEN_EQUALS))
	lexer.Add([]byte(`,`), getToken(TOKEN_COMMA))
	lexer.Add([]byte(`\.\.\.`), getToken(TOKEN_ELLIPSIS))
	lexer.Add([]byte(`--[^\n]*`), skip)
	lexer.Add([]byte(`\s+`), skip)
	if err := lexer.Compile(); err != nil {
		panic(err)
	}
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

func tokenize(text []byte) ([]*lexmachine.Token, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	result := make([]*lexmachine.Token, 0, 64)
	for tok, err, eos := scanner.Next(); !eos; tok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		result = append(result, tok.(*lexmachine.Token))
	}
	return result, nil
}
