package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPajares/goat-sub002/internal/storage"
	"github.com/EPajares/goat-sub002/internal/testutil"
	"github.com/EPajares/goat-sub002/pkg/layer"
)

const testLayerID = "123e4567-e89b-12d3-a456-426614174000"

// fakeQuerier records lookups and serves canned schema rows.
type fakeQuerier struct {
	schemas map[string]string // table name -> schema
	err     error
	queries int
}

func (f *fakeQuerier) ExecuteWithRetry(_ context.Context, _ string, args []any, _ int) (*storage.Result, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	table := args[1].(string)
	res := &storage.Result{Columns: []string{"table_schema"}}
	if schema, ok := f.schemas[table]; ok {
		res.Rows = [][]any{{schema}}
	}
	return res, nil
}

func newTestResolver(t *testing.T, q Querier, opts ...Option) *Resolver {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	return NewResolver(q, opts...)
}

func TestSchemaForLayer(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q)

	schema, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, "user_aaaa", schema)
	assert.Equal(t, 1, q.queries)
}

func TestSchemaForLayerCached(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q)

	for i := 0; i < 5; i++ {
		schema, err := r.SchemaForLayer(context.Background(), testLayerID)
		require.NoError(t, err)
		assert.Equal(t, "user_aaaa", schema)
	}
	assert.Equal(t, 1, q.queries, "hits within the TTL never re-query")
}

func TestSchemaForLayerNormalizesID(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q)

	// Bare hex and hyphenated forms share one cache entry.
	_, err := r.SchemaForLayer(context.Background(), "123E4567E89B12D3A456426614174000")
	require.NoError(t, err)
	_, err = r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.queries)
}

func TestSchemaForLayerInvalidID(t *testing.T) {
	q := &fakeQuerier{}
	r := newTestResolver(t, q)

	_, err := r.SchemaForLayer(context.Background(), "not-a-uuid")
	var invalid *layer.InvalidLayerIDError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, q.queries, "invalid IDs never reach the catalog")
}

func TestSchemaForLayerNotFoundNeverCached(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{}}
	r := newTestResolver(t, q)

	_, err := r.SchemaForLayer(context.Background(), testLayerID)
	var notFound *layer.NotFoundError
	require.ErrorAs(t, err, &notFound)

	// The layer appears; the next lookup must see it.
	q.schemas[layer.TableName(testLayerID)] = "user_bbbb"
	schema, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, "user_bbbb", schema)
	assert.Equal(t, 2, q.queries)
}

func TestSchemaForLayerQueryError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("catalog down")}
	r := newTestResolver(t, q)

	_, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog down")

	// Errors are not cached either.
	q.err = nil
	q.schemas = map[string]string{layer.TableName(testLayerID): "user_cccc"}
	schema, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, "user_cccc", schema)
}

func TestInvalidate(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q)

	_, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)

	// Accepts the bare hex form too.
	r.Invalidate("123e4567e89b12d3a456426614174000")

	_, err = r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, 2, q.queries, "invalidated entry is re-queried")
}

func TestClear(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q)

	_, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	r.Clear()
	_, err = r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, 2, q.queries)
}

func TestTablePath(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q)

	path, err := r.TablePath(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, "lake.user_aaaa.t_123e4567e89b12d3a456426614174000", path)
}

func TestCacheTTLExpiry(t *testing.T) {
	q := &fakeQuerier{schemas: map[string]string{
		layer.TableName(testLayerID): "user_aaaa",
	}}
	r := newTestResolver(t, q, WithCacheTTL(10*time.Millisecond))

	_, err := r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = r.SchemaForLayer(context.Background(), testLayerID)
	require.NoError(t, err)
	assert.Equal(t, 2, q.queries, "expired entry is re-queried")
}
