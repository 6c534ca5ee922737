package cql

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenLParen
	tokenRParen
	tokenComma
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "EOF"
	case tokenIdent:
		return "identifier"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenLParen:
		return "("
	case tokenRParen:
		return ")"
	case tokenComma:
		return ","
	case tokenEq:
		return "="
	case tokenNeq:
		return "<>"
	case tokenLt:
		return "<"
	case tokenLte:
		return "<="
	case tokenGt:
		return ">"
	case tokenGte:
		return ">="
	}
	return "unknown"
}

type token struct {
	Type    tokenType
	Literal string
	Pos     Position
}

// lexer tokenizes cql2-text input.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int
	col     int
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col}
}

func (l *lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *lexer) next() (token, error) {
	l.skipWhitespace()
	pos := l.currentPos()

	switch l.ch {
	case 0:
		return token{Type: tokenEOF, Pos: pos}, nil
	case '(':
		l.readChar()
		return token{Type: tokenLParen, Literal: "(", Pos: pos}, nil
	case ')':
		l.readChar()
		return token{Type: tokenRParen, Literal: ")", Pos: pos}, nil
	case ',':
		l.readChar()
		return token{Type: tokenComma, Literal: ",", Pos: pos}, nil
	case '=':
		l.readChar()
		return token{Type: tokenEq, Literal: "=", Pos: pos}, nil
	case '<':
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return token{Type: tokenNeq, Literal: "<>", Pos: pos}, nil
		}
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token{Type: tokenLte, Literal: "<=", Pos: pos}, nil
		}
		l.readChar()
		return token{Type: tokenLt, Literal: "<", Pos: pos}, nil
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token{Type: tokenGte, Literal: ">=", Pos: pos}, nil
		}
		l.readChar()
		return token{Type: tokenGt, Literal: ">", Pos: pos}, nil
	case '\'':
		return l.readString(pos)
	}

	if isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())) {
		return l.readNumber(pos)
	}
	if isIdentStart(l.ch) {
		return l.readIdent(pos)
	}

	ch := l.ch
	l.readChar()
	return token{}, &ParseError{Pos: pos, Message: fmt.Sprintf("unexpected character %q", ch)}
}

// readString reads a single-quoted string literal. Doubled quotes escape a
// quote, per SQL convention.
func (l *lexer) readString(pos Position) (token, error) {
	var sb strings.Builder
	l.readChar() // consume opening quote
	for {
		switch l.ch {
		case 0:
			return token{}, &ParseError{Pos: pos, Message: "unterminated string literal"}
		case '\'':
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // consume closing quote
			return token{Type: tokenString, Literal: sb.String(), Pos: pos}, nil
		default:
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
}

func (l *lexer) readNumber(pos Position) (token, error) {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return token{}, &ParseError{Pos: pos, Message: "invalid number literal"}
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return token{Type: tokenNumber, Literal: l.input[start:l.pos], Pos: pos}, nil
}

func (l *lexer) readIdent(pos Position) (token, error) {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return token{Type: tokenIdent, Literal: l.input[start:l.pos], Pos: pos}, nil
}

// readBalancedParens captures raw input from the current '(' through its
// matching ')'. Used to capture WKT coordinate lists verbatim.
func (l *lexer) readBalancedParens(pos Position) (string, error) {
	if l.ch != '(' {
		return "", &ParseError{Pos: l.currentPos(), Message: "expected ( in geometry literal"}
	}
	start := l.pos
	depth := 0
	for {
		switch l.ch {
		case 0:
			return "", &ParseError{Pos: pos, Message: "unterminated geometry literal"}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.readChar()
				return l.input[start:l.pos], nil
			}
		}
		l.readChar()
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
