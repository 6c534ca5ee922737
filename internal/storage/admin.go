package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/EPajares/goat-sub002/pkg/layer"
)

// geometryColumnTypes are the engine types that mark a column as geometry.
var geometryColumnTypes = []string{"GEOMETRY", "POINT_2D", "LINESTRING_2D", "POLYGON_2D", "WKB_BLOB"}

// ColumnInfo describes one table column.
type ColumnInfo struct {
	Name string
	Type string
}

// Extent is a bounding box in layer coordinates.
type Extent struct {
	XMin, YMin, XMax, YMax float64
}

// TableInfo is metadata about a layer table.
type TableInfo struct {
	TableName      string
	FeatureCount   int64
	Columns        []ColumnInfo
	GeometryColumn string
	GeometryType   string
	Extent         *Extent
}

// CreateUserSchema creates the lake schema owning a user's layers.
func (m *Manager) CreateUserSchema(ctx context.Context, userID uuid.UUID) error {
	schema := layer.UserSchemaName(userID)
	if err := m.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", CatalogName, schema)); err != nil {
		return fmt.Errorf("create user schema %s: %w", schema, err)
	}
	m.logger.Info("created user schema", "schema", schema)
	return nil
}

// DeleteUserSchema drops a user's schema and every table in it.
func (m *Manager) DeleteUserSchema(ctx context.Context, userID uuid.UUID) error {
	schema := layer.UserSchemaName(userID)
	if err := m.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s.%s CASCADE", CatalogName, schema)); err != nil {
		return fmt.Errorf("delete user schema %s: %w", schema, err)
	}
	m.logger.Info("deleted user schema", "schema", schema)
	return nil
}

// UserSchemaExists reports whether the user's schema exists in the lake
// catalog.
func (m *Manager) UserSchemaExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	row, err := m.ExecuteOne(ctx,
		"SELECT COUNT(*) FROM information_schema.schemata WHERE catalog_name = ? AND schema_name = ?",
		CatalogName, layer.UserSchemaName(userID))
	if err != nil {
		return false, err
	}
	return row != nil && asInt64(row[0]) > 0, nil
}

// LayerTableExists reports whether the layer's table exists in the user's
// schema.
func (m *Manager) LayerTableExists(ctx context.Context, userID uuid.UUID, layerID string) (bool, error) {
	row, err := m.ExecuteOne(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_catalog = ? AND table_schema = ? AND table_name = ?",
		CatalogName, layer.UserSchemaName(userID), layer.TableName(layerID))
	if err != nil {
		return false, err
	}
	return row != nil && asInt64(row[0]) > 0, nil
}

// CreateLayerFromParquet creates a layer table from a GeoParquet file. The
// user schema is created when missing.
func (m *Manager) CreateLayerFromParquet(ctx context.Context, userID uuid.UUID, layerID, parquetPath string) (*TableInfo, error) {
	if err := m.CreateUserSchema(ctx, userID); err != nil {
		return nil, err
	}
	table := layer.QualifiedTableName(CatalogName, userID, layerID)
	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet(%s)", table, quoteLiteral(parquetPath))
	if err := m.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create layer table %s: %w", table, err)
	}
	m.logger.Info("created layer table", "table", table, "source", parquetPath)
	return m.TableInfo(ctx, table)
}

// ReplaceLayerFromParquet atomically replaces a layer table from a new
// GeoParquet file: the new data is loaded under a temporary name, the old
// table is dropped and the temporary table renamed into place. On failure
// the original table is left intact.
func (m *Manager) ReplaceLayerFromParquet(ctx context.Context, userID uuid.UUID, layerID, parquetPath string) (*TableInfo, error) {
	schema := layer.UserSchemaName(userID)
	tableOnly := layer.TableName(layerID)
	table := fmt.Sprintf("%s.%s.%s", CatalogName, schema, tableOnly)
	tempOnly := tableOnly + "_new"
	tempTable := fmt.Sprintf("%s.%s.%s", CatalogName, schema, tempOnly)

	if err := m.CreateUserSchema(ctx, userID); err != nil {
		return nil, err
	}

	// Leftover temp table from a previous failed replace.
	_ = m.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable)

	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet(%s)", tempTable, quoteLiteral(parquetPath))
	if err := m.Exec(ctx, stmt); err != nil {
		_ = m.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable)
		return nil, fmt.Errorf("load replacement data for %s: %w", table, err)
	}

	exists, err := m.LayerTableExists(ctx, userID, layerID)
	if err != nil {
		_ = m.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable)
		return nil, err
	}
	if exists {
		if err := m.Exec(ctx, "DROP TABLE "+table); err != nil {
			_ = m.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable)
			return nil, fmt.Errorf("drop old layer table %s: %w", table, err)
		}
	}
	if err := m.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempTable, tableOnly)); err != nil {
		_ = m.Exec(ctx, "DROP TABLE IF EXISTS "+tempTable)
		return nil, fmt.Errorf("swap layer table %s: %w", table, err)
	}

	// The catalog rename does not move the physical files; mirror it on a
	// local bulk store.
	if !m.settings.IsObjectStore() {
		oldDir := filepath.Join(m.settings.StoragePath, schema, tableOnly)
		newDir := filepath.Join(m.settings.StoragePath, schema, tempOnly)
		if _, err := os.Stat(oldDir); err == nil {
			_ = os.RemoveAll(oldDir)
		}
		if _, err := os.Stat(newDir); err == nil {
			if err := os.Rename(newDir, oldDir); err != nil {
				m.logger.Warn("rename layer data directory failed", "from", newDir, "to", oldDir, "error", err)
			}
		}
	}

	m.logger.Info("replaced layer table", "table", table, "source", parquetPath)
	return m.TableInfo(ctx, table)
}

// DeleteLayerTable drops a layer table and removes its columnar files from a
// local bulk store. Returns false when the table did not exist.
func (m *Manager) DeleteLayerTable(ctx context.Context, userID uuid.UUID, layerID string) (bool, error) {
	exists, err := m.LayerTableExists(ctx, userID, layerID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	schema := layer.UserSchemaName(userID)
	tableOnly := layer.TableName(layerID)
	table := fmt.Sprintf("%s.%s.%s", CatalogName, schema, tableOnly)
	if err := m.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return false, fmt.Errorf("drop layer table %s: %w", table, err)
	}
	m.logger.Info("deleted layer table", "table", table)

	if !m.settings.IsObjectStore() {
		layerDir := filepath.Join(m.settings.StoragePath, schema, tableOnly)
		if _, err := os.Stat(layerDir); err == nil {
			if err := os.RemoveAll(layerDir); err != nil {
				m.logger.Warn("remove layer data directory failed", "dir", layerDir, "error", err)
			}
			// Removes the user directory only when empty.
			_ = os.Remove(filepath.Join(m.settings.StoragePath, schema))
		}
	}
	return true, nil
}

// TableInfo returns metadata about a table: row count, columns, and geometry
// details when a geometry column is present. Geometry type and extent are
// best-effort.
func (m *Manager) TableInfo(ctx context.Context, table string) (*TableInfo, error) {
	countRow, err := m.ExecuteOne(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}

	res, err := m.Execute(ctx, "DESCRIBE "+table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}

	info := &TableInfo{TableName: table}
	if countRow != nil {
		info.FeatureCount = asInt64(countRow[0])
	}
	for _, row := range res.Rows {
		info.Columns = append(info.Columns, ColumnInfo{
			Name: asString(row[0]),
			Type: asString(row[1]),
		})
	}
	info.GeometryColumn = DetectGeometryColumn(info.Columns)

	if info.GeometryColumn != "" {
		geomCol := quoteColumn(info.GeometryColumn)
		typeRow, err := m.ExecuteOne(ctx, fmt.Sprintf(
			"SELECT ST_GeometryType(%s) FROM %s WHERE %s IS NOT NULL LIMIT 1", geomCol, table, geomCol))
		if err != nil {
			m.logger.Warn("geometry type lookup failed", "table", table, "error", err)
		} else if typeRow != nil {
			info.GeometryType = asString(typeRow[0])
		}

		extentRow, err := m.ExecuteOne(ctx, fmt.Sprintf(
			"SELECT ST_XMin(ST_Extent(%[1]s)), ST_YMin(ST_Extent(%[1]s)), ST_XMax(ST_Extent(%[1]s)), ST_YMax(ST_Extent(%[1]s)) FROM %[2]s WHERE %[1]s IS NOT NULL",
			geomCol, table))
		if err != nil {
			m.logger.Warn("extent lookup failed", "table", table, "error", err)
		} else if extentRow != nil && extentRow[0] != nil {
			info.Extent = &Extent{
				XMin: asFloat64(extentRow[0]),
				YMin: asFloat64(extentRow[1]),
				XMax: asFloat64(extentRow[2]),
				YMax: asFloat64(extentRow[3]),
			}
		}
	}
	return info, nil
}

// DetectGeometryColumn finds the geometry column by engine type first, then
// by conventional name. VARCHAR columns named geometry are attribute data,
// not geometry.
func DetectGeometryColumn(columns []ColumnInfo) string {
	for _, col := range columns {
		colType := strings.ToUpper(col.Type)
		for _, gt := range geometryColumnTypes {
			if strings.Contains(colType, gt) {
				return col.Name
			}
		}
	}
	for _, col := range columns {
		name := strings.ToLower(col.Name)
		if (name == "geometry" || name == "geom") && !strings.Contains(strings.ToUpper(col.Type), "VARCHAR") {
			return col.Name
		}
	}
	return ""
}

func quoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
