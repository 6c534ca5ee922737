package cql

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseText parses the CQL2 text encoding into an AST.
//
// Supported grammar: comparisons (=, <>, <, <=, >, >=), AND/OR/NOT with
// parentheses, [NOT] LIKE/ILIKE, [NOT] IN (...), [NOT] BETWEEN ... AND ...,
// IS [NOT] NULL, spatial predicates S_INTERSECTS(prop, <WKT>) and friends,
// and BBOX(prop, minx, miny, maxx, maxy).
func ParseText(input string) (Node, error) {
	p := &textParser{lex: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != tokenEOF {
		return nil, p.errorf("unexpected trailing input %q", p.cur.Literal)
	}
	return node, nil
}

type textParser struct {
	lex *lexer
	cur token
}

func (p *textParser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *textParser) errorf(format string, args ...any) error {
	return &ParseError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)}
}

// curKeyword returns the current token uppercased when it is an identifier.
func (p *textParser) curKeyword() string {
	if p.cur.Type != tokenIdent {
		return ""
	}
	return strings.ToUpper(p.cur.Literal)
}

func (p *textParser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for p.curKeyword() == "OR" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &Logical{Op: OpOr, Children: children}, nil
}

func (p *textParser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for p.curKeyword() == "AND" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &Logical{Op: OpAnd, Children: children}, nil
}

func (p *textParser) parseUnary() (Node, error) {
	if p.curKeyword() == "NOT" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Children: []Node{child}}, nil
	}
	return p.parsePrimary()
}

func (p *textParser) parsePrimary() (Node, error) {
	if p.cur.Type == tokenLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != tokenRParen {
			return nil, p.errorf("unexpected token %s, expected )", p.cur.Type)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil
	}

	if p.cur.Type != tokenIdent {
		return nil, p.errorf("unexpected token %s, expected predicate", p.cur.Type)
	}

	kw := strings.ToLower(p.cur.Literal)
	if sp, ok := spatialOp(kw); ok {
		return p.parseSpatial(sp)
	}
	if kw == "bbox" {
		return p.parseBBox()
	}
	return p.parsePropertyPredicate()
}

func (p *textParser) parsePropertyPredicate() (Node, error) {
	prop := p.cur.Literal
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch p.cur.Type {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		op := CompareOp(p.cur.Literal)
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Property: prop, Value: val}, nil
	}

	negated := false
	if p.curKeyword() == "NOT" {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	switch p.curKeyword() {
	case "LIKE", "ILIKE":
		nocase := p.curKeyword() == "ILIKE"
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Type != tokenString {
			return nil, p.errorf("LIKE pattern must be a string literal")
		}
		pattern := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Like{Property: prop, Pattern: pattern, CaseInsensitive: nocase, Negated: negated}, nil

	case "IN":
		if err := p.advance(); err != nil {
			return nil, err
		}
		values, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &In{Property: prop, Values: values, Negated: negated}, nil

	case "BETWEEN":
		if err := p.advance(); err != nil {
			return nil, err
		}
		low, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if p.curKeyword() != "AND" {
			return nil, p.errorf("expected AND in BETWEEN predicate")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		high, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Between{Property: prop, Low: low, High: high, Negated: negated}, nil

	case "IS":
		if negated {
			return nil, p.errorf("unexpected NOT before IS, use IS NOT NULL")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.curKeyword() == "NOT" {
			negated = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.curKeyword() != "NULL" {
			return nil, p.errorf("expected NULL after IS")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &IsNull{Property: prop, Negated: negated}, nil
	}

	return nil, p.errorf("unexpected token %q after property %q", p.cur.Literal, prop)
}

func (p *textParser) parseSpatial(sp SpatialOp) (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Type != tokenLParen {
		return nil, p.errorf("expected ( after spatial predicate")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Type != tokenIdent {
		return nil, p.errorf("spatial predicate: first argument must be a property")
	}
	prop := p.cur.Literal
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Type != tokenComma {
		return nil, p.errorf("expected , in spatial predicate")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	geom, err := p.parseWKT()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != tokenRParen {
		return nil, p.errorf("expected ) closing spatial predicate")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &Spatial{Predicate: sp, Property: prop, Geometry: geom}, nil
}

// parseBBox handles the classic BBOX(prop, minx, miny, maxx, maxy) predicate
// by lowering it to an intersects test against the envelope polygon.
func (p *textParser) parseBBox() (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Type != tokenLParen {
		return nil, p.errorf("expected ( after BBOX")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Type != tokenIdent {
		return nil, p.errorf("BBOX: first argument must be a property")
	}
	prop := p.cur.Literal
	if err := p.advance(); err != nil {
		return nil, err
	}
	coords := make([]float64, 0, 4)
	for i := 0; i < 4; i++ {
		if p.cur.Type != tokenComma {
			return nil, p.errorf("BBOX takes four numeric corners")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Type != tokenNumber {
			return nil, p.errorf("BBOX corner must be a number")
		}
		f, err := strconv.ParseFloat(p.cur.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", p.cur.Literal)
		}
		coords = append(coords, f)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.Type != tokenRParen {
		return nil, p.errorf("expected ) closing BBOX")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	wkt := EnvelopeWKT(coords[0], coords[1], coords[2], coords[3])
	return &Spatial{Predicate: SpIntersects, Property: prop, Geometry: Geometry{WKT: wkt}}, nil
}

// wktKeywords are the geometry tags accepted as text-encoding literals.
var wktKeywords = map[string]bool{
	"POINT":              true,
	"LINESTRING":         true,
	"POLYGON":            true,
	"MULTIPOINT":         true,
	"MULTILINESTRING":    true,
	"MULTIPOLYGON":       true,
	"GEOMETRYCOLLECTION": true,
}

// parseWKT reads a geometry literal. The coordinate list is captured verbatim
// from the raw input through its matching close paren.
func (p *textParser) parseWKT() (Geometry, error) {
	kw := p.curKeyword()
	if !wktKeywords[kw] {
		return Geometry{}, p.errorf("expected WKT geometry literal, got %q", p.cur.Literal)
	}
	p.lex.skipWhitespace()
	raw, err := p.lex.readBalancedParens(p.cur.Pos)
	if err != nil {
		return Geometry{}, err
	}
	if err := p.advance(); err != nil {
		return Geometry{}, err
	}
	return Geometry{WKT: kw + raw}, nil
}

func (p *textParser) parseLiteral() (any, error) {
	switch p.cur.Type {
	case tokenString:
		s := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return s, nil
	case tokenNumber:
		lit := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !strings.ContainsAny(lit, ".eE") {
			if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
				return i, nil
			}
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", lit)
		}
		return f, nil
	case tokenIdent:
		switch p.curKeyword() {
		case "TRUE":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return true, nil
		case "FALSE":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return false, nil
		}
	}
	return nil, p.errorf("unexpected token %s, expected literal", p.cur.Type)
}

func (p *textParser) parseLiteralList() ([]any, error) {
	if p.cur.Type != tokenLParen {
		return nil, p.errorf("expected ( after IN")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var values []any
	for {
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, val)
		if p.cur.Type == tokenComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Type != tokenRParen {
		return nil, p.errorf("expected ) closing IN list")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return values, nil
}
