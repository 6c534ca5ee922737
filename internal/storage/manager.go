// Package storage owns the shared connection to the lakehouse engine. A
// Manager opens one DuckDB connection, attaches the lake catalog backed by a
// Postgres metadata schema and columnar bulk storage, and serializes all
// access behind a mutex. Transient connection failures are recovered by
// reconnecting and retrying.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/EPajares/goat-sub002/internal/config"
)

// CatalogName is the alias under which the lake catalog is attached. All
// layer tables live at lake.<user schema>.<layer table>.
const CatalogName = "lake"

// requiredExtensions is the fixed extension set loaded on every connection:
// spatial functions, remote object storage, the Postgres bridge for the
// catalog, and the lakehouse format itself.
var requiredExtensions = []string{"spatial", "httpfs", "postgres", "ducklake"}

// Manager owns the single shared engine connection. All methods are safe for
// concurrent use; statements execute one at a time.
type Manager struct {
	settings   config.Settings
	classifier ErrorClassifier
	logger     *slog.Logger
	readOnly   bool
	dial       func(ctx context.Context) (*sql.DB, *sql.Conn, error)

	mu   chan struct{} // buffered size 1, held across Acquire/release
	db   *sql.DB
	conn *sql.Conn

	extensionsInstalled bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClassifier overrides the transient-error classification policy.
func WithClassifier(c ErrorClassifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithReadOnly attaches the lake catalog read-only regardless of settings.
func WithReadOnly() Option {
	return func(m *Manager) { m.readOnly = true }
}

// New creates a Manager. Open must be called before use.
func New(settings config.Settings, opts ...Option) *Manager {
	settings.ApplyDefaults()
	m := &Manager{
		settings:   settings,
		classifier: NewSubstringClassifier(),
		logger:     slog.New(slog.DiscardHandler),
		readOnly:   settings.ReadOnly,
		mu:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dial = m.dialDuckDB
	return m
}

// Settings returns a copy of the manager's settings.
func (m *Manager) Settings() config.Settings {
	return m.settings
}

// Open validates settings, creates the local storage directory when the bulk
// store is not an object store, and establishes the shared connection.
// Reopening is allowed: an existing connection is closed before the new one
// is established.
func (m *Manager) Open(ctx context.Context) error {
	if err := m.settings.Validate(); err != nil {
		return fmt.Errorf("invalid storage settings: %w", err)
	}
	if !m.settings.IsObjectStore() {
		if err := os.MkdirAll(m.settings.StoragePath, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
	}

	m.lock()
	defer m.unlock()
	m.closeLocked()
	if err := m.connectLocked(ctx); err != nil {
		return err
	}
	m.logger.Info("lake storage initialized",
		"catalog_schema", m.settings.CatalogSchema,
		"storage_path", m.settings.StoragePath,
		"read_only", m.readOnly)
	return nil
}

// connectLocked opens a fresh engine handle and bootstraps it. Caller holds
// the lock.
func (m *Manager) connectLocked(ctx context.Context) error {
	db, conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	m.db = db
	m.conn = conn
	return nil
}

// dialDuckDB opens an in-memory engine and bootstraps it: extensions, object
// store settings, and the lake catalog attachment.
func (m *Manager) dialDuckDB(ctx context.Context) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, fmt.Errorf("open duckdb: %w", err)
	}
	// The core runs on exactly one pinned connection: session state (loaded
	// extensions, S3 settings, the catalog attachment) lives on it.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("acquire duckdb connection: %w", err)
	}

	if err := m.bootstrap(ctx, conn); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, nil, err
	}
	return db, conn, nil
}

// bootstrap installs and loads extensions, configures object-store access,
// and attaches the lake catalog.
func (m *Manager) bootstrap(ctx context.Context, conn *sql.Conn) error {
	for _, ext := range requiredExtensions {
		if !m.extensionsInstalled {
			if _, err := conn.ExecContext(ctx, "INSTALL "+ext); err != nil {
				return fmt.Errorf("install extension %s: %w", ext, err)
			}
		}
		if _, err := conn.ExecContext(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("load extension %s: %w", ext, err)
		}
	}
	m.extensionsInstalled = true

	if err := m.configureS3(ctx, conn); err != nil {
		return err
	}

	libpq, err := libpqConnString(m.settings.CatalogDSN)
	if err != nil {
		return err
	}
	stmt := attachSQL(libpq, m.settings.StoragePath, m.settings.CatalogSchema, m.readOnly)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("attach lake catalog: %w", err)
	}
	m.logger.Debug("lake catalog attached", "read_only", m.readOnly)
	return nil
}

func (m *Manager) configureS3(ctx context.Context, conn *sql.Conn) error {
	s3 := m.settings.S3
	if s3.Endpoint != "" {
		if _, err := conn.ExecContext(ctx, "SET s3_endpoint = "+quoteLiteral(s3.Endpoint)); err != nil {
			return fmt.Errorf("set s3 endpoint: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "SET s3_url_style = 'path'"); err != nil {
			return fmt.Errorf("set s3 url style: %w", err)
		}
	}
	if s3.AccessKey != "" {
		if _, err := conn.ExecContext(ctx, "SET s3_access_key_id = "+quoteLiteral(s3.AccessKey)); err != nil {
			return fmt.Errorf("set s3 access key: %w", err)
		}
	}
	if s3.SecretKey != "" {
		if _, err := conn.ExecContext(ctx, "SET s3_secret_access_key = "+quoteLiteral(s3.SecretKey)); err != nil {
			return fmt.Errorf("set s3 secret key: %w", err)
		}
	}
	return nil
}

func (m *Manager) lock()   { m.mu <- struct{}{} }
func (m *Manager) unlock() { <-m.mu }

// Acquire returns the shared connection and a release function. The lock is
// held until release is called, so at most one statement from this core
// executes at a time regardless of caller concurrency.
func (m *Manager) Acquire(ctx context.Context) (*sql.Conn, func(), error) {
	select {
	case m.mu <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if m.conn == nil {
		m.unlock()
		return nil, nil, &NotInitializedError{}
	}
	return m.conn, m.unlock, nil
}

// Reconnect discards and recreates the connection and catalog attachment.
// It runs under the same lock as query execution, so it cannot interleave
// with an in-flight statement.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.lock()
	defer m.unlock()
	if m.conn == nil {
		return &NotInitializedError{}
	}
	m.closeLocked()
	if err := m.connectLocked(ctx); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	m.logger.Info("lake storage reconnected")
	return nil
}

// Close releases the connection. The manager can be reopened with Open.
func (m *Manager) Close() error {
	m.lock()
	defer m.unlock()
	m.closeLocked()
	return nil
}

func (m *Manager) closeLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
}
