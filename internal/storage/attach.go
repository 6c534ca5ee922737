package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// keepaliveParams are TCP keepalive settings appended to the libpq string to
// prevent SSL EOF errors on idle catalog connections.
var keepaliveParams = [][2]string{
	{"keepalives", "1"},
	{"keepalives_idle", "30"},
	{"keepalives_interval", "5"},
	{"keepalives_count", "5"},
}

// libpqConnString parses the catalog Postgres DSN and renders it as a libpq
// key/value string with keepalive settings, as expected by the ducklake
// ATTACH syntax.
func libpqConnString(dsn string) (string, error) {
	cfg, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("parse catalog DSN: %w", err)
	}

	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+libpqQuote(value))
		}
	}
	add("host", cfg.Host)
	if cfg.Port != 0 {
		add("port", strconv.Itoa(int(cfg.Port)))
	}
	add("user", cfg.User)
	add("password", cfg.Password)
	add("dbname", cfg.Database)
	for _, kv := range keepaliveParams {
		parts = append(parts, kv[0]+"="+kv[1])
	}
	return strings.Join(parts, " "), nil
}

// libpqQuote quotes a libpq value when it contains spaces or quotes.
func libpqQuote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// attachSQL builds the ATTACH statement wiring the lake catalog: the catalog
// DSN carries transactional metadata, DATA_PATH the columnar bulk storage.
func attachSQL(libpq, storagePath, catalogSchema string, readOnly bool) string {
	options := []string{
		fmt.Sprintf("DATA_PATH %s", quoteLiteral(storagePath)),
		fmt.Sprintf("METADATA_SCHEMA %s", quoteLiteral(catalogSchema)),
	}
	if readOnly {
		options = append(options, "READ_ONLY true")
	}
	options = append(options, "OVERRIDE_DATA_PATH true")
	return fmt.Sprintf("ATTACH 'ducklake:postgres:%s' AS %s (%s)",
		strings.ReplaceAll(libpq, "'", "''"), CatalogName, strings.Join(options, ", "))
}

// quoteLiteral single-quotes a SQL string literal, doubling embedded quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
