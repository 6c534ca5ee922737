package cql

import (
	"errors"
	"strings"
	"testing"
)

var testColumns = []string{"id", "name", "value", "category", "created_at"}

func compileJSON(t *testing.T, filter string) (string, []any) {
	t.Helper()
	node, err := ParseJSON([]byte(filter))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	sql, params, err := Compile(node, testColumns, "geom")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return sql, params
}

func TestCompileComparisonAnd(t *testing.T) {
	sql, params := compileJSON(t, `{"op":"and","args":[
		{"op":"=","args":[{"property":"name"},"Berlin"]},
		{"op":">","args":[{"property":"value"},50]}]}`)

	if !strings.Contains(sql, `"name" = ?`) {
		t.Errorf("missing name comparison in %q", sql)
	}
	if !strings.Contains(sql, `"value" > ?`) {
		t.Errorf("missing value comparison in %q", sql)
	}
	if len(params) != 2 {
		t.Fatalf("params = %v, want 2 entries", params)
	}
	if params[0] != "Berlin" {
		t.Errorf("params[0] = %v, want Berlin", params[0])
	}
	if params[1] != int64(50) {
		t.Errorf("params[1] = %v (%T), want int64(50)", params[1], params[1])
	}
}

func TestCompilePlaceholderCountMatchesParams(t *testing.T) {
	filters := []string{
		`{"op":"=","args":[{"property":"name"},"x"]}`,
		`{"op":"and","args":[
			{"op":"in","args":[{"property":"category"},["a","b","c"]]},
			{"op":"between","args":[{"property":"value"},1,10]}]}`,
		`{"op":"or","args":[
			{"op":"not","args":[{"op":"like","args":[{"property":"name"},"%x%"]}]},
			{"op":"isNull","args":[{"property":"category"}]},
			{"op":"s_intersects","args":[{"property":"geom"},{"bbox":[0,0,1,1]}]}]}`,
	}
	for _, filter := range filters {
		sql, params := compileJSON(t, filter)
		if got := strings.Count(sql, "?"); got != len(params) {
			t.Errorf("placeholders=%d params=%d for %q", got, len(params), sql)
		}
	}
}

func TestCompileUnknownField(t *testing.T) {
	tests := []struct {
		name   string
		filter string
	}{
		{"top level", `{"op":"=","args":[{"property":"nope"},"x"]}`},
		{"nested in and", `{"op":"and","args":[
			{"op":"=","args":[{"property":"name"},"x"]},
			{"op":"=","args":[{"property":"nope"},"y"]}]}`},
		{"under not", `{"op":"not","args":[{"op":"isNull","args":[{"property":"nope"}]}]}`},
		{"deeply nested", `{"op":"or","args":[
			{"op":"=","args":[{"property":"name"},"x"]},
			{"op":"and","args":[
				{"op":">","args":[{"property":"value"},1]},
				{"op":"<","args":[{"property":"nope"},2]}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := ParseJSON([]byte(tt.filter))
			if err != nil {
				t.Fatalf("ParseJSON: %v", err)
			}
			_, _, err = Compile(node, testColumns, "geom")
			var unknown *UnknownFieldError
			if !errors.As(err, &unknown) {
				t.Fatalf("Compile error = %v, want *UnknownFieldError", err)
			}
			if unknown.Field != "nope" {
				t.Errorf("unknown.Field = %q, want nope", unknown.Field)
			}
			if len(unknown.Allowed) == 0 {
				t.Error("unknown.Allowed is empty")
			}
		})
	}
}

func TestCompileFieldsCaseInsensitive(t *testing.T) {
	sql, _ := compileJSON(t, `{"op":"=","args":[{"property":"NAME"},"x"]}`)
	if !strings.Contains(sql, `"NAME" = ?`) {
		t.Errorf("sql = %q, want original casing preserved", sql)
	}
}

func TestCompileInEmpty(t *testing.T) {
	sql, params, err := Compile(&In{Property: "category"}, testColumns, "")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "FALSE" {
		t.Errorf("empty IN = %q, want FALSE", sql)
	}
	if len(params) != 0 {
		t.Errorf("params = %v, want none", params)
	}

	sql, _, err = Compile(&In{Property: "category", Negated: true}, testColumns, "")
	if err != nil {
		t.Fatalf("Compile negated: %v", err)
	}
	if sql != "TRUE" {
		t.Errorf("empty NOT IN = %q, want TRUE", sql)
	}
}

func TestCompileSpatialGeoJSON(t *testing.T) {
	sql, params := compileJSON(t, `{"op":"s_intersects","args":[
		{"property":"geom"},
		{"type":"Point","coordinates":[11.5,48.1]}]}`)

	if !strings.HasPrefix(sql, `ST_Intersects("geom", ST_GeomFromGeoJSON(?))`) {
		t.Errorf("sql = %q", sql)
	}
	if len(params) != 1 {
		t.Fatalf("params = %v, want 1 entry", params)
	}
	if !strings.Contains(params[0].(string), `"Point"`) {
		t.Errorf("params[0] = %v, want raw GeoJSON", params[0])
	}
}

func TestCompileSpatialBBox(t *testing.T) {
	sql, params := compileJSON(t, `{"op":"s_within","args":[
		{"property":"geom"},
		{"bbox":[11,48,12,49]}]}`)

	if !strings.HasPrefix(sql, `ST_Within("geom", ST_GeomFromText(?))`) {
		t.Errorf("sql = %q", sql)
	}
	if len(params) != 1 {
		t.Fatalf("params = %v, want 1 entry", params)
	}
	want := "POLYGON((11 48, 11 49, 12 49, 12 48, 11 48))"
	if params[0] != want {
		t.Errorf("params[0] = %v, want %q", params[0], want)
	}
}

func TestCompileQuotesIdentifiers(t *testing.T) {
	node := &Comparison{Op: OpEq, Property: `weird"col`, Value: 1}
	sql, _, err := Compile(node, []string{`weird"col`}, "")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(sql, `"weird""col"`) {
		t.Errorf("sql = %q, want doubled quote in identifier", sql)
	}
}

func TestRewriteProperties(t *testing.T) {
	node, err := ParseJSON([]byte(`{"op":"and","args":[
		{"op":"=","args":[{"property":"name"},"x"]},
		{"op":"s_intersects","args":[{"property":"the_geom"},{"bbox":[0,0,1,1]}]}]}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	rewritten := RewriteProperties(node, func(name string) string {
		if name == "the_geom" {
			return "geom"
		}
		return name
	})

	sql, _, err := Compile(rewritten, testColumns, "geom")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(sql, `ST_Intersects("geom"`) {
		t.Errorf("sql = %q, want rewritten geometry column", sql)
	}

	// The original AST is untouched.
	origSQL, _, err := Compile(node, append(testColumns, "the_geom"), "")
	if err != nil {
		t.Fatalf("Compile original: %v", err)
	}
	if !strings.Contains(origSQL, `"the_geom"`) {
		t.Errorf("original sql = %q, want untouched property", origSQL)
	}
}

func TestInlineParams(t *testing.T) {
	got := InlineParams(`"name" = ? AND "value" > ? AND "flag" = ?`, []any{"O'Brien", 5, true})
	want := `"name" = 'O''Brien' AND "value" > 5 AND "flag" = TRUE`
	if got != want {
		t.Errorf("InlineParams = %q, want %q", got, want)
	}
}

func TestInlineParamsQuestionMarkInString(t *testing.T) {
	// A ? inside an inlined string literal must not swallow the next
	// placeholder.
	got := InlineParams(`"a" = ? AND "b" = ?`, []any{"what?", 2})
	want := `"a" = 'what?' AND "b" = 2`
	if got != want {
		t.Errorf("InlineParams = %q, want %q", got, want)
	}
}

func TestInlineParamsExcessParams(t *testing.T) {
	got := InlineParams(`"a" = ?`, []any{1, 2})
	if got != `"a" = 1` {
		t.Errorf("InlineParams = %q, want placeholder count to bound substitution", got)
	}
}
