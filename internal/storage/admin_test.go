package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUserID  = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	testLayerID = "123e4567-e89b-12d3-a456-426614174000"
)

func TestDetectGeometryColumn(t *testing.T) {
	tests := []struct {
		name    string
		columns []ColumnInfo
		want    string
	}{
		{
			name: "by type",
			columns: []ColumnInfo{
				{Name: "id", Type: "BIGINT"},
				{Name: "shape", Type: "GEOMETRY"},
			},
			want: "shape",
		},
		{
			name: "wkb blob",
			columns: []ColumnInfo{
				{Name: "id", Type: "BIGINT"},
				{Name: "wkb", Type: "WKB_BLOB"},
			},
			want: "wkb",
		},
		{
			name: "by name fallback",
			columns: []ColumnInfo{
				{Name: "id", Type: "BIGINT"},
				{Name: "geom", Type: "BLOB"},
			},
			want: "geom",
		},
		{
			name: "varchar named geometry is attribute data",
			columns: []ColumnInfo{
				{Name: "id", Type: "BIGINT"},
				{Name: "geometry", Type: "VARCHAR"},
			},
			want: "",
		},
		{
			name: "type wins over name",
			columns: []ColumnInfo{
				{Name: "geom", Type: "VARCHAR"},
				{Name: "shape", Type: "POINT_2D"},
			},
			want: "shape",
		},
		{
			name:    "no geometry",
			columns: []ColumnInfo{{Name: "id", Type: "BIGINT"}, {Name: "name", Type: "VARCHAR"}},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectGeometryColumn(tt.columns))
		})
	}
}

func TestUserSchemaExists(t *testing.T) {
	m, mock := newMockManager(t)
	query := "SELECT COUNT(*) FROM information_schema.schemata WHERE catalog_name = ? AND schema_name = ?"

	mock.ExpectQuery(query).
		WithArgs(CatalogName, "user_550e8400e29b41d4a716446655440000").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	exists, err := m.UserSchemaExists(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(query).
		WithArgs(CatalogName, "user_550e8400e29b41d4a716446655440000").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	exists, err = m.UserSchemaExists(context.Background(), testUserID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLayerTableExists(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM information_schema.tables WHERE table_catalog = ? AND table_schema = ? AND table_name = ?").
		WithArgs(CatalogName, "user_550e8400e29b41d4a716446655440000", "t_123e4567e89b12d3a456426614174000").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	exists, err := m.LayerTableExists(context.Background(), testUserID, testLayerID)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserSchema(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS lake.user_550e8400e29b41d4a716446655440000").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, m.CreateUserSchema(context.Background(), testUserID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteLayerTableMissing(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM information_schema.tables WHERE table_catalog = ? AND table_schema = ? AND table_name = ?").
		WithArgs(CatalogName, "user_550e8400e29b41d4a716446655440000", "t_123e4567e89b12d3a456426614174000").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	deleted, err := m.DeleteLayerTable(context.Background(), testUserID, testLayerID)
	require.NoError(t, err)
	assert.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
