// Package catalog resolves layer identity against the lake catalog. Layer IDs
// arrive without a user context, so the owning user schema is discovered by
// querying information_schema and cached with a TTL.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/EPajares/goat-sub002/internal/storage"
	"github.com/EPajares/goat-sub002/pkg/layer"
)

const (
	// DefaultCacheSize bounds the schema cache; entries past it are evicted
	// LRU-first.
	DefaultCacheSize = 10000
	// DefaultCacheTTL is how long a resolved schema stays valid. Layers do
	// not move between users, so a long TTL is safe; the TTL exists to bound
	// staleness after administrative schema moves.
	DefaultCacheTTL = time.Hour
	// DefaultMaxRetries bounds reconnect attempts for the lookup query.
	DefaultMaxRetries = 2
)

// Querier executes catalog queries with transient-failure recovery. Satisfied
// by *storage.Manager.
type Querier interface {
	ExecuteWithRetry(ctx context.Context, query string, args []any, maxRetries int) (*storage.Result, error)
}

// Resolver maps layer IDs to the user schema that owns them. Lookups are
// deduplicated so concurrent misses for the same layer issue one query.
type Resolver struct {
	querier    Querier
	logger     *slog.Logger
	maxRetries int
	cacheTTL   time.Duration
	cacheSize  int

	cache *lru.LRU[string, string]
	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithCacheTTL overrides the schema cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.cacheTTL = ttl }
}

// WithCacheSize overrides the schema cache capacity.
func WithCacheSize(size int) Option {
	return func(r *Resolver) { r.cacheSize = size }
}

// WithMaxRetries overrides the reconnect-retry budget for lookup queries.
func WithMaxRetries(n int) Option {
	return func(r *Resolver) { r.maxRetries = n }
}

// NewResolver creates a Resolver over the given querier.
func NewResolver(querier Querier, opts ...Option) *Resolver {
	r := &Resolver{
		querier:    querier,
		logger:     slog.New(slog.DiscardHandler),
		maxRetries: DefaultMaxRetries,
		cacheTTL:   DefaultCacheTTL,
		cacheSize:  DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = lru.NewLRU[string, string](r.cacheSize, nil, r.cacheTTL)
	return r
}

// SchemaForLayer returns the user schema owning the layer. The ID is
// normalized first; an unknown layer returns layer.NotFoundError. Negative
// results are never cached so a layer becomes visible as soon as it exists.
func (r *Resolver) SchemaForLayer(ctx context.Context, layerID string) (string, error) {
	id, err := layer.Normalize(layerID)
	if err != nil {
		return "", err
	}

	if schema, ok := r.cache.Get(id); ok {
		return schema, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if schema, ok := r.cache.Get(id); ok {
			return schema, nil
		}
		schema, err := r.lookup(ctx, id)
		if err != nil {
			return "", err
		}
		r.cache.Add(id, schema)
		return schema, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// TablePath resolves a layer ID to its fully qualified table address under
// the lake catalog.
func (r *Resolver) TablePath(ctx context.Context, layerID string) (string, error) {
	id, err := layer.Normalize(layerID)
	if err != nil {
		return "", err
	}
	schema, err := r.SchemaForLayer(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s.%s", storage.CatalogName, schema, layer.TableName(id)), nil
}

// Invalidate drops a single layer's cached schema, typically after the layer
// was deleted or moved.
func (r *Resolver) Invalidate(layerID string) {
	if id, err := layer.Normalize(layerID); err == nil {
		r.cache.Remove(id)
	}
}

// Clear empties the schema cache.
func (r *Resolver) Clear() {
	r.cache.Purge()
}

func (r *Resolver) lookup(ctx context.Context, id string) (string, error) {
	res, err := r.querier.ExecuteWithRetry(ctx,
		"SELECT table_schema FROM information_schema.tables WHERE table_catalog = ? AND table_name = ?",
		[]any{storage.CatalogName, layer.TableName(id)}, r.maxRetries)
	if err != nil {
		return "", fmt.Errorf("resolve schema for layer %s: %w", id, err)
	}
	if len(res.Rows) == 0 {
		return "", &layer.NotFoundError{ID: id}
	}
	schema, ok := res.Rows[0][0].(string)
	if !ok {
		return "", fmt.Errorf("resolve schema for layer %s: unexpected column type %T", id, res.Rows[0][0])
	}
	r.logger.Debug("resolved layer schema", "layer_id", id, "schema", schema)
	return schema, nil
}
