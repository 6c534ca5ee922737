package cql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Lang selects a CQL2 encoding.
const (
	LangJSON = "cql2-json"
	LangText = "cql2-text"
)

// Parse parses a CQL2 filter in the given encoding into an AST.
func Parse(input string, lang string) (Node, error) {
	switch lang {
	case "", LangJSON:
		return ParseJSON([]byte(input))
	case LangText:
		return ParseText(input)
	default:
		return nil, &ParseError{Message: fmt.Sprintf("unsupported filter language %q", lang)}
	}
}

// ParseJSON parses the CQL2 JSON encoding, a nested {"op": ..., "args": [...]}
// document, into an AST.
func ParseJSON(data []byte) (Node, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return parseJSONExpr(raw)
}

type rawExpr struct {
	Op   string            `json:"op"`
	Args []json.RawMessage `json:"args"`
}

func parseJSONExpr(raw json.RawMessage) (Node, error) {
	var expr rawExpr
	if err := json.Unmarshal(raw, &expr); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("expected filter expression object: %v", err)}
	}
	if expr.Op == "" {
		return nil, &ParseError{Message: "filter expression is missing \"op\""}
	}

	op := strings.ToLower(expr.Op)
	switch op {
	case "=", "==", "<>", "!=", "<", "<=", ">", ">=":
		return parseJSONComparison(op, expr.Args)
	case "and", "or":
		return parseJSONLogical(LogicalOp(op), expr.Args)
	case "not":
		if len(expr.Args) != 1 {
			return nil, &ParseError{Message: "\"not\" takes exactly one argument"}
		}
		child, err := parseJSONExpr(expr.Args[0])
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Children: []Node{child}}, nil
	case "like", "ilike":
		return parseJSONLike(op, expr.Args)
	case "in":
		return parseJSONIn(expr.Args)
	case "isnull":
		if len(expr.Args) != 1 {
			return nil, &ParseError{Message: "\"isNull\" takes exactly one argument"}
		}
		prop, ok := jsonProperty(expr.Args[0])
		if !ok {
			return nil, &ParseError{Message: "\"isNull\" argument must be a property reference"}
		}
		return &IsNull{Property: prop}, nil
	case "between":
		return parseJSONBetween(expr.Args)
	default:
		if sp, ok := spatialOp(op); ok {
			return parseJSONSpatial(sp, expr.Args)
		}
		return nil, &ParseError{Message: fmt.Sprintf("unsupported operator %q", expr.Op)}
	}
}

func parseJSONComparison(op string, args []json.RawMessage) (Node, error) {
	if len(args) != 2 {
		return nil, &ParseError{Message: fmt.Sprintf("comparison %q takes exactly two arguments", op)}
	}
	prop, ok := jsonProperty(args[0])
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("comparison %q: first argument must be a property reference", op)}
	}
	val, err := jsonLiteral(args[1])
	if err != nil {
		return nil, err
	}
	switch op {
	case "==":
		op = "="
	case "!=":
		op = "<>"
	}
	return &Comparison{Op: CompareOp(op), Property: prop, Value: val}, nil
}

func parseJSONLogical(op LogicalOp, args []json.RawMessage) (Node, error) {
	if len(args) < 2 {
		return nil, &ParseError{Message: fmt.Sprintf("%q takes at least two arguments", op)}
	}
	children := make([]Node, 0, len(args))
	for _, arg := range args {
		child, err := parseJSONExpr(arg)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Logical{Op: op, Children: children}, nil
}

func parseJSONLike(op string, args []json.RawMessage) (Node, error) {
	if len(args) != 2 {
		return nil, &ParseError{Message: "\"like\" takes exactly two arguments"}
	}
	prop, ok := jsonProperty(args[0])
	if !ok {
		return nil, &ParseError{Message: "\"like\": first argument must be a property reference"}
	}
	var pattern string
	if err := json.Unmarshal(args[1], &pattern); err != nil {
		return nil, &ParseError{Message: "\"like\" pattern must be a string"}
	}
	return &Like{Property: prop, Pattern: pattern, CaseInsensitive: op == "ilike"}, nil
}

func parseJSONIn(args []json.RawMessage) (Node, error) {
	if len(args) != 2 {
		return nil, &ParseError{Message: "\"in\" takes exactly two arguments"}
	}
	prop, ok := jsonProperty(args[0])
	if !ok {
		return nil, &ParseError{Message: "\"in\": first argument must be a property reference"}
	}
	var rawList []json.RawMessage
	if err := json.Unmarshal(args[1], &rawList); err != nil {
		return nil, &ParseError{Message: "\"in\": second argument must be a literal list"}
	}
	values := make([]any, 0, len(rawList))
	for _, item := range rawList {
		val, err := jsonLiteral(item)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
	}
	return &In{Property: prop, Values: values}, nil
}

func parseJSONBetween(args []json.RawMessage) (Node, error) {
	if len(args) != 3 {
		return nil, &ParseError{Message: "\"between\" takes exactly three arguments"}
	}
	prop, ok := jsonProperty(args[0])
	if !ok {
		return nil, &ParseError{Message: "\"between\": first argument must be a property reference"}
	}
	low, err := jsonLiteral(args[1])
	if err != nil {
		return nil, err
	}
	high, err := jsonLiteral(args[2])
	if err != nil {
		return nil, err
	}
	return &Between{Property: prop, Low: low, High: high}, nil
}

func parseJSONSpatial(op SpatialOp, args []json.RawMessage) (Node, error) {
	if len(args) != 2 {
		return nil, &ParseError{Message: fmt.Sprintf("spatial predicate %q takes exactly two arguments", op)}
	}
	prop, ok := jsonProperty(args[0])
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("spatial predicate %q: first argument must be a property reference", op)}
	}
	geom, err := jsonGeometry(args[1])
	if err != nil {
		return nil, err
	}
	return &Spatial{Predicate: op, Property: prop, Geometry: geom}, nil
}

func spatialOp(op string) (SpatialOp, bool) {
	switch strings.TrimPrefix(op, "s_") {
	case "intersects":
		return SpIntersects, true
	case "disjoint":
		return SpDisjoint, true
	case "contains":
		return SpContains, true
	case "within":
		return SpWithin, true
	case "touches":
		return SpTouches, true
	case "crosses":
		return SpCrosses, true
	case "overlaps":
		return SpOverlaps, true
	case "equals":
		return SpEquals, true
	}
	return "", false
}

// jsonProperty decodes a {"property": "name"} reference.
func jsonProperty(raw json.RawMessage) (string, bool) {
	var ref struct {
		Property *string `json:"property"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil || ref.Property == nil {
		return "", false
	}
	return *ref.Property, true
}

// jsonGeometry decodes a geometry literal: either a GeoJSON geometry object
// or a {"bbox": [minx, miny, maxx, maxy]} envelope, which is lowered to a WKT
// polygon.
func jsonGeometry(raw json.RawMessage) (Geometry, error) {
	var probe struct {
		Type string    `json:"type"`
		BBox []float64 `json:"bbox"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Geometry{}, &ParseError{Message: "expected geometry literal"}
	}
	if probe.Type != "" {
		return Geometry{GeoJSON: append(json.RawMessage(nil), raw...)}, nil
	}
	if len(probe.BBox) == 4 {
		return Geometry{WKT: EnvelopeWKT(probe.BBox[0], probe.BBox[1], probe.BBox[2], probe.BBox[3])}, nil
	}
	return Geometry{}, &ParseError{Message: "expected geometry literal with \"type\" or \"bbox\""}
}

// jsonLiteral decodes a scalar literal, preserving integral numbers as int64.
func jsonLiteral(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid literal: %v", err)}
	}
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("invalid number literal %q", t.String())}
		}
		return f, nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, &ParseError{Message: "literal must be a string, number, boolean or null"}
	}
}

// EnvelopeWKT builds the WKT for a closed rectangular polygon from bbox
// corners, starting and ending at (minx, miny).
func EnvelopeWKT(minx, miny, maxx, maxy float64) string {
	return fmt.Sprintf("POLYGON((%v %v, %v %v, %v %v, %v %v, %v %v))",
		minx, miny, minx, maxy, maxx, maxy, maxx, miny, minx, miny)
}
