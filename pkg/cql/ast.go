// Package cql parses CQL2 filter expressions (JSON and text encodings) and
// compiles them to parameterized DuckDB SQL.
//
// The AST is a closed set of variants. Every predicate node references
// exactly one property name, which is checked against a caller-supplied
// whitelist at compile time.
package cql

import "encoding/json"

// Node is a node in the filter AST.
type Node interface {
	node()
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNeq CompareOp = "<>"
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// LogicalOp joins child expressions.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpNot LogicalOp = "not"
)

// SpatialOp is a spatial predicate name in CQL2 form (s_intersects, ...).
type SpatialOp string

const (
	SpIntersects SpatialOp = "s_intersects"
	SpDisjoint   SpatialOp = "s_disjoint"
	SpContains   SpatialOp = "s_contains"
	SpWithin     SpatialOp = "s_within"
	SpTouches    SpatialOp = "s_touches"
	SpCrosses    SpatialOp = "s_crosses"
	SpOverlaps   SpatialOp = "s_overlaps"
	SpEquals     SpatialOp = "s_equals"
)

// Comparison is <property> <op> <literal>.
type Comparison struct {
	Op       CompareOp
	Property string
	Value    any
}

// Logical is and/or over children, or not over a single child.
type Logical struct {
	Op       LogicalOp
	Children []Node
}

// Like is a pattern match predicate.
type Like struct {
	Property        string
	Pattern         string
	CaseInsensitive bool
	Negated         bool
}

// In is a list membership predicate.
type In struct {
	Property string
	Values   []any
	Negated  bool
}

// IsNull is a null test predicate.
type IsNull struct {
	Property string
	Negated  bool
}

// Between is a range predicate (inclusive).
type Between struct {
	Property  string
	Low, High any
	Negated   bool
}

// Spatial is a spatial predicate whose second operand is a geometry literal.
type Spatial struct {
	Predicate SpatialOp
	Property  string
	Geometry  Geometry
}

// Geometry is a geometry literal in one of two encodings. Exactly one of
// GeoJSON or WKT is set.
type Geometry struct {
	GeoJSON json.RawMessage
	WKT     string
}

func (*Comparison) node() {}
func (*Logical) node()    {}
func (*Like) node()       {}
func (*In) node()         {}
func (*IsNull) node()     {}
func (*Between) node()    {}
func (*Spatial) node()    {}

// RewriteProperties returns a copy of the AST with every property name passed
// through fn. Used to map geometry-column aliases to the real column name
// before compilation.
func RewriteProperties(n Node, fn func(string) string) Node {
	switch t := n.(type) {
	case *Comparison:
		c := *t
		c.Property = fn(t.Property)
		return &c
	case *Logical:
		c := Logical{Op: t.Op, Children: make([]Node, len(t.Children))}
		for i, child := range t.Children {
			c.Children[i] = RewriteProperties(child, fn)
		}
		return &c
	case *Like:
		c := *t
		c.Property = fn(t.Property)
		return &c
	case *In:
		c := *t
		c.Property = fn(t.Property)
		return &c
	case *IsNull:
		c := *t
		c.Property = fn(t.Property)
		return &c
	case *Between:
		c := *t
		c.Property = fn(t.Property)
		return &c
	case *Spatial:
		c := *t
		c.Property = fn(t.Property)
		return &c
	default:
		return n
	}
}
