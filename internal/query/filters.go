// Package query assembles WHERE and ORDER BY fragments for feature queries.
// Every filter is emitted with parameter placeholders; literal values never
// enter the SQL text.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/EPajares/goat-sub002/pkg/cql"
)

// geometryAliases are accepted stand-ins for the layer's geometry column in
// incoming filter expressions. They are rewritten to the actual column name
// before compilation.
var geometryAliases = map[string]bool{
	"geom":         true,
	"geometry":     true,
	"the_geom":     true,
	"wkb_geometry": true,
}

// Filters accumulates WHERE clauses and their bind parameters in matching
// order.
type Filters struct {
	Clauses []string
	Params  []any
}

// Add appends one clause with its parameters.
func (f *Filters) Add(clause string, params ...any) {
	f.Clauses = append(f.Clauses, clause)
	f.Params = append(f.Params, params...)
}

// Extend appends another filter set.
func (f *Filters) Extend(other Filters) {
	f.Clauses = append(f.Clauses, other.Clauses...)
	f.Params = append(f.Params, other.Params...)
}

// Empty reports whether no clauses were added.
func (f *Filters) Empty() bool {
	return len(f.Clauses) == 0
}

// ToWhereSQL joins the clauses with AND under the given prefix, or returns
// the empty string when no clauses exist.
func (f *Filters) ToWhereSQL(prefix string) string {
	if f.Empty() {
		return ""
	}
	return prefix + strings.Join(f.Clauses, " AND ")
}

// ToFullWhere joins the clauses with AND, returning "TRUE" when no clauses
// exist so the fragment can be embedded unconditionally.
func (f *Filters) ToFullWhere() string {
	if f.Empty() {
		return "TRUE"
	}
	return strings.Join(f.Clauses, " AND ")
}

// IDFilter restricts to an explicit set of feature ids. An empty list adds no
// clause.
func IDFilter(ids []any, idColumn string) Filters {
	var f Filters
	if len(ids) == 0 {
		return f
	}
	placeholders := make([]string, len(ids))
	for i := range ids {
		placeholders[i] = "?"
	}
	f.Add(fmt.Sprintf("%s IN (%s)", quoteIdent(idColumn), strings.Join(placeholders, ", ")), ids...)
	return f
}

// BBoxFilter restricts to features intersecting a WGS84 bounding box. The box
// is passed as one WKT polygon parameter.
func BBoxFilter(geometryColumn string, minX, minY, maxX, maxY float64) Filters {
	var f Filters
	f.Add(fmt.Sprintf(`ST_Intersects(%s, ST_GeomFromText(?))`, quoteIdent(geometryColumn)),
		cql.EnvelopeWKT(minX, minY, maxX, maxY))
	return f
}

// CQLFilter parses and compiles a CQL2 expression against the layer's
// columns. Geometry aliases in the expression are rewritten to the layer's
// geometry column. When strict is false, an expression referencing unknown
// fields is dropped rather than failing the query; parse errors always fail.
func CQLFilter(filter, lang string, columns []string, geometryColumn string, strict bool) (Filters, error) {
	var f Filters
	if strings.TrimSpace(filter) == "" {
		return f, nil
	}

	node, err := cql.Parse(filter, lang)
	if err != nil {
		return f, err
	}
	if geometryColumn != "" {
		node = cql.RewriteProperties(node, func(name string) string {
			if geometryAliases[strings.ToLower(name)] {
				return geometryColumn
			}
			return name
		})
	}

	sqlText, params, err := cql.Compile(node, columns, geometryColumn)
	if err != nil {
		var unknown *cql.UnknownFieldError
		if !strict && errors.As(err, &unknown) {
			return Filters{}, nil
		}
		return f, err
	}
	f.Add(sqlText, params...)
	return f, nil
}

// Params carries everything a feature query can filter on.
type Params struct {
	IDs        []any     // exact feature ids, empty when unset
	IDColumn   string    // id column name, "id" when empty
	BBox       []float64 // [minx, miny, maxx, maxy], nil when unset
	Filter     string    // CQL2 expression
	FilterLang string    // cql2-json or cql2-text
	Strict     bool      // fail on unknown filter fields instead of dropping
}

// Build composes the filter set for a feature query: id restriction first,
// then the bounding box when the layer has geometry, then the CQL2
// expression. A bounding box with the wrong arity is an error.
func Build(p Params, columns []string, geometryColumn string) (Filters, error) {
	if len(p.BBox) != 0 && len(p.BBox) != 4 {
		return Filters{}, fmt.Errorf("bbox needs exactly 4 values, got %d", len(p.BBox))
	}

	var f Filters
	if len(p.IDs) > 0 {
		col := p.IDColumn
		if col == "" {
			col = "id"
		}
		f.Extend(IDFilter(p.IDs, col))
	}
	if len(p.BBox) == 4 && geometryColumn != "" {
		f.Extend(BBoxFilter(geometryColumn, p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3]))
	}
	if p.Filter != "" {
		cf, err := CQLFilter(p.Filter, p.FilterLang, columns, geometryColumn, p.Strict)
		if err != nil {
			return Filters{}, err
		}
		f.Extend(cf)
	}
	return f, nil
}

// OrderClause renders an ORDER BY fragment from a sortby value: a leading '-'
// sorts descending, a leading '+' or no prefix ascending. Empty input returns
// the empty string.
func OrderClause(sortBy string) string {
	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" {
		return ""
	}
	dir := "ASC"
	switch sortBy[0] {
	case '-':
		dir = "DESC"
		sortBy = sortBy[1:]
	case '+':
		sortBy = sortBy[1:]
	}
	if sortBy == "" {
		return ""
	}
	return fmt.Sprintf(`ORDER BY %s %s`, quoteIdent(sortBy), dir)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
