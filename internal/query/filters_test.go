package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPajares/goat-sub002/pkg/cql"
)

var layerColumns = []string{"id", "name", "value", "category", "geom"}

func TestFiltersEmpty(t *testing.T) {
	var f Filters
	assert.True(t, f.Empty())
	assert.Equal(t, "", f.ToWhereSQL("WHERE "))
	assert.Equal(t, "TRUE", f.ToFullWhere())
}

func TestFiltersJoin(t *testing.T) {
	var f Filters
	f.Add(`"name" = ?`, "Berlin")
	f.Add(`"value" > ?`, 50)

	assert.Equal(t, `WHERE "name" = ? AND "value" > ?`, f.ToWhereSQL("WHERE "))
	assert.Equal(t, `"name" = ? AND "value" > ?`, f.ToFullWhere())
	assert.Equal(t, []any{"Berlin", 50}, f.Params)
}

func TestFiltersExtend(t *testing.T) {
	var f Filters
	f.Add(`"a" = ?`, 1)
	f.Extend(IDFilter([]any{7}, "id"))

	require.Len(t, f.Clauses, 2)
	assert.Equal(t, `"id" IN (?)`, f.Clauses[1])
	assert.Equal(t, []any{1, 7}, f.Params)
}

func TestIDFilter(t *testing.T) {
	f := IDFilter([]any{1, 2, 3}, "id")
	require.Len(t, f.Clauses, 1)
	assert.Equal(t, `"id" IN (?, ?, ?)`, f.Clauses[0])
	assert.Equal(t, []any{1, 2, 3}, f.Params)
}

func TestIDFilterCustomColumn(t *testing.T) {
	f := IDFilter([]any{"a"}, "feature_id")
	require.Len(t, f.Clauses, 1)
	assert.Equal(t, `"feature_id" IN (?)`, f.Clauses[0])
}

func TestIDFilterEmpty(t *testing.T) {
	f := IDFilter(nil, "id")
	assert.True(t, f.Empty())
	assert.Equal(t, "TRUE", f.ToFullWhere())
}

func TestBBoxFilter(t *testing.T) {
	f := BBoxFilter("geom", 11, 48, 12, 49)

	require.Len(t, f.Clauses, 1)
	assert.Equal(t, `ST_Intersects("geom", ST_GeomFromText(?))`, f.Clauses[0])
	require.Len(t, f.Params, 1)
	assert.Equal(t, "POLYGON((11 48, 11 49, 12 49, 12 48, 11 48))", f.Params[0])
}

func TestCQLFilter(t *testing.T) {
	f, err := CQLFilter(`{"op":"=","args":[{"property":"name"},"Berlin"]}`,
		cql.LangJSON, layerColumns, "geom", true)
	require.NoError(t, err)
	require.Len(t, f.Clauses, 1)
	assert.Equal(t, `"name" = ?`, f.Clauses[0])
	assert.Equal(t, []any{"Berlin"}, f.Params)
}

func TestCQLFilterEmpty(t *testing.T) {
	f, err := CQLFilter("  ", cql.LangJSON, layerColumns, "geom", true)
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestCQLFilterGeometryAliases(t *testing.T) {
	for _, alias := range []string{"geom", "geometry", "the_geom", "wkb_geometry", "GEOMETRY"} {
		f, err := CQLFilter(
			`{"op":"s_intersects","args":[{"property":"`+alias+`"},{"bbox":[0,0,1,1]}]}`,
			cql.LangJSON, layerColumns, "custom_geom_col", true)
		require.NoError(t, err, "alias %s", alias)
		require.Len(t, f.Clauses, 1)
		assert.Contains(t, f.Clauses[0], `ST_Intersects("custom_geom_col"`, "alias %s", alias)
	}
}

func TestCQLFilterUnknownFieldStrict(t *testing.T) {
	_, err := CQLFilter(`{"op":"=","args":[{"property":"nope"},1]}`,
		cql.LangJSON, layerColumns, "geom", true)
	require.Error(t, err)
	var unknown *cql.UnknownFieldError
	assert.ErrorAs(t, err, &unknown)
}

func TestCQLFilterUnknownFieldLenient(t *testing.T) {
	f, err := CQLFilter(`{"op":"=","args":[{"property":"nope"},1]}`,
		cql.LangJSON, layerColumns, "geom", false)
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestCQLFilterParseErrorAlwaysFails(t *testing.T) {
	_, err := CQLFilter(`{"op":`, cql.LangJSON, layerColumns, "geom", false)
	require.Error(t, err)
	var pe *cql.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestCQLFilterTextEncoding(t *testing.T) {
	f, err := CQLFilter("name = 'Berlin' AND value > 50",
		cql.LangText, layerColumns, "geom", true)
	require.NoError(t, err)
	require.Len(t, f.Clauses, 1)
	assert.Contains(t, f.Clauses[0], `"name" = ?`)
	assert.Equal(t, []any{"Berlin", int64(50)}, f.Params)
}

func TestBuildComposition(t *testing.T) {
	f, err := Build(Params{
		IDs:    []any{42, 43},
		BBox:   []float64{11, 48, 12, 49},
		Filter: `{"op":">","args":[{"property":"value"},50]}`,
	}, layerColumns, "geom")
	require.NoError(t, err)

	require.Len(t, f.Clauses, 3)
	assert.Equal(t, `"id" IN (?, ?)`, f.Clauses[0])
	assert.Contains(t, f.Clauses[1], "ST_Intersects")
	assert.Contains(t, f.Clauses[2], `"value" > ?`)
	assert.Equal(t, 42, f.Params[0])
	assert.Equal(t, 43, f.Params[1])

	// Placeholders and params stay 1:1 across composed filters.
	where := f.ToFullWhere()
	assert.Equal(t, len(f.Params), strings.Count(where, "?"))
}

func TestBuildCustomIDColumn(t *testing.T) {
	f, err := Build(Params{IDs: []any{7}, IDColumn: "fid"}, layerColumns, "")
	require.NoError(t, err)
	require.Len(t, f.Clauses, 1)
	assert.Equal(t, `"fid" IN (?)`, f.Clauses[0])
}

func TestBuildRejectsMalformedBBox(t *testing.T) {
	_, err := Build(Params{BBox: []float64{11, 48, 12}}, layerColumns, "geom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bbox needs exactly 4 values")
}

func TestBuildSkipsBBoxWithoutGeometry(t *testing.T) {
	f, err := Build(Params{BBox: []float64{0, 0, 1, 1}}, layerColumns, "")
	require.NoError(t, err)
	assert.True(t, f.Empty())
	assert.Equal(t, "TRUE", f.ToFullWhere())
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"value", `ORDER BY "value" ASC`},
		{"+value", `ORDER BY "value" ASC`},
		{"-value", `ORDER BY "value" DESC`},
		{"", ""},
		{"  ", ""},
		{"-", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OrderClause(tt.input), "input %q", tt.input)
	}
}

func TestOrderClauseQuotesColumn(t *testing.T) {
	got := OrderClause(`-val"ue`)
	assert.Equal(t, `ORDER BY "val""ue" DESC`, got)
}
