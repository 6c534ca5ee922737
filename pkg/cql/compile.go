package cql

import (
	"fmt"
	"sort"
	"strings"
)

// Compile walks the AST depth-first, left to right, and emits a DuckDB WHERE
// clause with ? placeholders plus the ordered parameter list. The number of
// placeholders always equals len(params), and positions correspond 1:1.
//
// Every property reference is checked case-insensitively against
// allowedFields; an unrecognized field fails with UnknownFieldError at any
// nesting depth. geometryColumn is implicitly allowed for spatial predicates.
func Compile(n Node, allowedFields []string, geometryColumn string) (string, []any, error) {
	c := &compiler{
		allowed:        make(map[string]bool, len(allowedFields)+1),
		geometryColumn: geometryColumn,
	}
	for _, f := range allowedFields {
		c.allowed[strings.ToLower(f)] = true
	}
	if geometryColumn != "" {
		c.allowed[strings.ToLower(geometryColumn)] = true
	}
	sql, err := c.compile(n)
	if err != nil {
		return "", nil, err
	}
	return sql, c.params, nil
}

type compiler struct {
	allowed        map[string]bool
	geometryColumn string
	params         []any
}

func (c *compiler) bind(value any) string {
	c.params = append(c.params, value)
	return "?"
}

func (c *compiler) field(name string) (string, error) {
	if !c.allowed[strings.ToLower(name)] {
		valid := make([]string, 0, len(c.allowed))
		for f := range c.allowed {
			valid = append(valid, f)
		}
		sort.Strings(valid)
		return "", &UnknownFieldError{Field: name, Allowed: valid}
	}
	return quoteIdent(name), nil
}

func (c *compiler) compile(n Node) (string, error) {
	switch t := n.(type) {
	case *Comparison:
		col, err := c.field(t.Property)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, t.Op, c.bind(t.Value)), nil

	case *Logical:
		return c.compileLogical(t)

	case *Like:
		col, err := c.field(t.Property)
		if err != nil {
			return "", err
		}
		op := "LIKE"
		if t.CaseInsensitive {
			op = "ILIKE"
		}
		sql := fmt.Sprintf("%s %s %s", col, op, c.bind(t.Pattern))
		if t.Negated {
			sql = "NOT (" + sql + ")"
		}
		return sql, nil

	case *In:
		col, err := c.field(t.Property)
		if err != nil {
			return "", err
		}
		if len(t.Values) == 0 {
			// Empty membership list matches nothing.
			if t.Negated {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		placeholders := make([]string, len(t.Values))
		for i, v := range t.Values {
			placeholders[i] = c.bind(v)
		}
		sql := fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", "))
		if t.Negated {
			sql = "NOT (" + sql + ")"
		}
		return sql, nil

	case *IsNull:
		col, err := c.field(t.Property)
		if err != nil {
			return "", err
		}
		if t.Negated {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil

	case *Between:
		col, err := c.field(t.Property)
		if err != nil {
			return "", err
		}
		sql := fmt.Sprintf("%s BETWEEN %s AND %s", col, c.bind(t.Low), c.bind(t.High))
		if t.Negated {
			sql = "NOT (" + sql + ")"
		}
		return sql, nil

	case *Spatial:
		col, err := c.field(t.Property)
		if err != nil {
			return "", err
		}
		fn, ok := spatialFunctions[t.Predicate]
		if !ok {
			return "", &ParseError{Message: fmt.Sprintf("unsupported spatial predicate %q", t.Predicate)}
		}
		geom, err := c.compileGeometry(t.Geometry)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s, %s)", fn, col, geom), nil

	default:
		return "", &ParseError{Message: fmt.Sprintf("unsupported AST node %T", n)}
	}
}

func (c *compiler) compileLogical(t *Logical) (string, error) {
	if t.Op == OpNot {
		if len(t.Children) != 1 {
			return "", &ParseError{Message: "NOT takes exactly one child"}
		}
		child, err := c.compile(t.Children[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + child + ")", nil
	}

	joiner := " AND "
	if t.Op == OpOr {
		joiner = " OR "
	}
	parts := make([]string, len(t.Children))
	for i, child := range t.Children {
		sql, err := c.compile(child)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + sql + ")"
	}
	return strings.Join(parts, joiner), nil
}

func (c *compiler) compileGeometry(g Geometry) (string, error) {
	switch {
	case len(g.GeoJSON) > 0:
		return "ST_GeomFromGeoJSON(" + c.bind(string(g.GeoJSON)) + ")", nil
	case g.WKT != "":
		return "ST_GeomFromText(" + c.bind(g.WKT) + ")", nil
	default:
		return "", &ParseError{Message: "empty geometry literal"}
	}
}

// spatialFunctions maps CQL2 spatial predicates to DuckDB Spatial functions.
var spatialFunctions = map[SpatialOp]string{
	SpIntersects: "ST_Intersects",
	SpDisjoint:   "ST_Disjoint",
	SpContains:   "ST_Contains",
	SpWithin:     "ST_Within",
	SpTouches:    "ST_Touches",
	SpCrosses:    "ST_Crosses",
	SpOverlaps:   "ST_Overlaps",
	SpEquals:     "ST_Equals",
}

// quoteIdent quotes a column name, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// InlineParams substitutes ? placeholders with literal values, for statements
// that cannot take bind parameters (COPY, ATTACH). Strings are single-quoted
// with quotes doubled. The scan advances past each inserted literal so a ?
// inside an inlined string is never treated as a placeholder.
func InlineParams(sql string, params []any) string {
	var b strings.Builder
	rest := sql
	for _, p := range params {
		i := strings.IndexByte(rest, '?')
		if i < 0 {
			break
		}
		b.WriteString(rest[:i])
		b.WriteString(sqlLiteral(p))
		rest = rest[i+1:]
	}
	b.WriteString(rest)
	return b.String()
}

func sqlLiteral(p any) string {
	switch v := p.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}
