// Package feature executes read queries over layer tables and shapes the
// results as GeoJSON-ready features.
package feature

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EPajares/goat-sub002/internal/catalog"
	"github.com/EPajares/goat-sub002/internal/query"
	"github.com/EPajares/goat-sub002/internal/storage"
)

const (
	// DefaultLimit applies when a query requests no page size.
	DefaultLimit = 1000
	// MaxLimit caps a single page regardless of the requested size.
	MaxLimit = 10000
	// DefaultMaxRetries bounds reconnect attempts per statement.
	DefaultMaxRetries = 2

	// geomJSONColumn is the synthetic projection column carrying the
	// GeoJSON-encoded geometry.
	geomJSONColumn = "geom_json"
)

// Feature is one row of a layer table with its geometry split out.
type Feature struct {
	ID         any             `json:"id"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	Properties map[string]any  `json:"properties"`
}

// ResultSet is a page of features plus the total match count.
type ResultSet struct {
	Features       []Feature
	NumberMatched  int64
	NumberReturned int
}

// Options shape one feature query.
type Options struct {
	IDs        []any     // restrict to these feature ids, empty for all
	Filter     string    // CQL2 expression, empty for none
	FilterLang string    // cql2-json (default) or cql2-text
	Strict     bool      // fail on unknown filter fields instead of dropping the filter
	BBox       []float64 // [minx, miny, maxx, maxy]
	Properties []string  // attribute columns to return, nil for all
	SortBy     string    // column, with optional +/- direction prefix
	Limit      int
	Offset     int
}

// Executor runs feature queries against resolved layer tables.
type Executor struct {
	mgr        *storage.Manager
	resolver   *catalog.Resolver
	logger     *slog.Logger
	maxRetries int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMaxRetries overrides the reconnect-retry budget per statement.
func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = n }
}

// NewExecutor creates an Executor over the shared storage manager.
func NewExecutor(mgr *storage.Manager, resolver *catalog.Resolver, opts ...Option) *Executor {
	e := &Executor{
		mgr:        mgr,
		resolver:   resolver,
		logger:     slog.New(slog.DiscardHandler),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns a page of features from the layer matching the options.
// The total match count is best-effort: a failing count degrades to zero
// rather than failing the page.
func (e *Executor) Query(ctx context.Context, layerID string, opts Options) (*ResultSet, error) {
	table, err := e.resolver.TablePath(ctx, layerID)
	if err != nil {
		return nil, err
	}
	columns, geometryColumn, err := e.describe(ctx, table)
	if err != nil {
		return nil, err
	}

	filters, err := query.Build(query.Params{
		IDs:        opts.IDs,
		BBox:       opts.BBox,
		Filter:     opts.Filter,
		FilterLang: opts.FilterLang,
		Strict:     opts.Strict,
	}, columns, geometryColumn)
	if err != nil {
		return nil, err
	}
	where := filters.ToFullWhere()

	matched := e.count(ctx, table, where, filters.Params)

	selectList := buildSelectList(columns, geometryColumn, opts.Properties)
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectList, table, where)
	if order := query.OrderClause(opts.SortBy); order != "" {
		sql += " " + order
	}
	limit := normalizeLimit(opts.Limit)
	sql += fmt.Sprintf(" LIMIT %d", limit)
	if opts.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	res, err := e.mgr.ExecuteWithRetry(ctx, sql, filters.Params, e.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("query layer features: %w", err)
	}

	out := &ResultSet{NumberMatched: matched}
	for _, row := range res.Maps() {
		out.Features = append(out.Features, rowToFeature(row))
	}
	out.NumberReturned = len(out.Features)
	return out, nil
}

// Get returns a single feature by id, or nil when the layer holds no such
// feature.
func (e *Executor) Get(ctx context.Context, layerID string, featureID any) (*Feature, error) {
	table, err := e.resolver.TablePath(ctx, layerID)
	if err != nil {
		return nil, err
	}
	columns, geometryColumn, err := e.describe(ctx, table)
	if err != nil {
		return nil, err
	}

	selectList := buildSelectList(columns, geometryColumn, nil)
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE "id" = ? LIMIT 1`, selectList, table)
	res, err := e.mgr.ExecuteWithRetry(ctx, sql, []any{featureID}, e.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("get layer feature: %w", err)
	}
	rows := res.Maps()
	if len(rows) == 0 {
		return nil, nil
	}
	f := rowToFeature(rows[0])
	return &f, nil
}

// describe loads the table's column names and geometry column.
func (e *Executor) describe(ctx context.Context, table string) ([]string, string, error) {
	res, err := e.mgr.ExecuteWithRetry(ctx, "DESCRIBE "+table, nil, e.maxRetries)
	if err != nil {
		return nil, "", fmt.Errorf("describe %s: %w", table, err)
	}
	cols := make([]storage.ColumnInfo, 0, len(res.Rows))
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		col := storage.ColumnInfo{
			Name: fmt.Sprintf("%v", row[0]),
			Type: fmt.Sprintf("%v", row[1]),
		}
		cols = append(cols, col)
		names = append(names, col.Name)
	}
	return names, storage.DetectGeometryColumn(cols), nil
}

// count runs the total match count for the filtered set. Failures degrade to
// zero.
func (e *Executor) count(ctx context.Context, table, where string, params []any) int64 {
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	res, err := e.mgr.ExecuteWithRetry(ctx, sql, params, e.maxRetries)
	if err != nil {
		e.logger.Warn("feature count failed", "table", table, "error", err)
		return 0
	}
	if len(res.Rows) == 0 {
		return 0
	}
	switch v := res.Rows[0][0].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// buildSelectList renders the projection: requested attribute columns with id
// always present, and the geometry encoded as GeoJSON under geomJSONColumn.
func buildSelectList(columns []string, geometryColumn string, requested []string) string {
	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[strings.ToLower(p)] = true
	}

	var parts []string
	for _, col := range columns {
		if col == geometryColumn {
			continue
		}
		if len(requested) > 0 && !want[strings.ToLower(col)] && strings.ToLower(col) != "id" {
			continue
		}
		parts = append(parts, quoteIdent(col))
	}
	if geometryColumn != "" {
		parts = append(parts, fmt.Sprintf("ST_AsGeoJSON(%s) AS %s", quoteIdent(geometryColumn), geomJSONColumn))
	}
	if len(parts) == 0 {
		parts = append(parts, "*")
	}
	return strings.Join(parts, ", ")
}

// rowToFeature splits a result row into id, geometry, and sanitized
// properties.
func rowToFeature(row map[string]any) Feature {
	sanitizeRow(row)

	f := Feature{Properties: row}
	if raw, ok := row[geomJSONColumn]; ok {
		delete(row, geomJSONColumn)
		if s, ok := raw.(string); ok && s != "" {
			f.Geometry = json.RawMessage(s)
		}
	}
	if id, ok := row["id"]; ok {
		f.ID = id
		delete(row, "id")
	}
	return f
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
