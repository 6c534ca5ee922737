// Package config provides the settings surface consumed by the storage core.
// It is decoupled from CLI concerns so embedding services can construct
// Settings directly or load them from a YAML file plus environment variables.
package config

import (
	"fmt"
	"strings"
)

// S3Settings holds optional object-store endpoint and credentials for bulk
// storage on S3-compatible backends.
type S3Settings struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// Settings configures the lakehouse storage core.
type Settings struct {
	// CatalogDSN is the Postgres DSN of the transactional catalog.
	CatalogDSN string `koanf:"catalog_dsn"`

	// CatalogSchema is the metadata schema inside the catalog database.
	CatalogSchema string `koanf:"catalog_schema"`

	// StoragePath is the bulk-storage location: a local directory or an
	// s3:// bucket URI.
	StoragePath string `koanf:"storage_path"`

	// ReadOnly attaches the lake catalog in read-only mode. Read-only
	// consumers can run concurrently with the writing service without lock
	// conflicts.
	ReadOnly bool `koanf:"read_only"`

	S3 S3Settings `koanf:"s3"`
}

// DefaultCatalogSchema is used when no catalog schema is configured.
const DefaultCatalogSchema = "ducklake"

// ApplyDefaults fills unset optional fields.
func (s *Settings) ApplyDefaults() {
	if s.CatalogSchema == "" {
		s.CatalogSchema = DefaultCatalogSchema
	}
}

// Validate fails fast on missing required values.
func (s *Settings) Validate() error {
	if s.CatalogDSN == "" {
		return fmt.Errorf("catalog_dsn is required")
	}
	if s.StoragePath == "" {
		return fmt.Errorf("storage_path is required")
	}
	return nil
}

// IsObjectStore reports whether the storage path is an object-store bucket
// rather than a local directory.
func (s *Settings) IsObjectStore() bool {
	return strings.HasPrefix(s.StoragePath, "s3://")
}
