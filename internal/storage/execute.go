package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Result is a fully materialized query result. Rows are fetched inside the
// connection lock so no cursor outlives it.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Maps returns the rows as column-keyed maps.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Execute runs a query and returns all rows.
func (m *Manager) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	conn, release, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanAll(rows)
}

// ExecuteOne runs a query and returns the first row, or nil when the result
// is empty.
func (m *Manager) ExecuteOne(ctx context.Context, query string, args ...any) ([]any, error) {
	res, err := m.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0], nil
}

// ExecuteMaps runs a query and returns rows as column-keyed maps.
func (m *Manager) ExecuteMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	res, err := m.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return res.Maps(), nil
}

// Exec runs a statement that returns no rows.
func (m *Manager) Exec(ctx context.Context, query string, args ...any) error {
	conn, release, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

// ExecuteWithRetry runs a query, recovering from transient connection
// failures by reconnecting and retrying up to maxRetries additional
// attempts. Permanent errors are returned immediately.
func (m *Manager) ExecuteWithRetry(ctx context.Context, query string, args []any, maxRetries int) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := m.Execute(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if m.classifier.Classify(err) != ClassTransient || attempt >= maxRetries {
			break
		}
		m.logger.Warn("query failed, reconnecting",
			"attempt", attempt+1, "max_attempts", maxRetries+1, "error", err)
		if rerr := m.Reconnect(ctx); rerr != nil {
			return nil, fmt.Errorf("reconnect after transient error: %w", rerr)
		}
	}
	return nil, lastErr
}

// scanAll materializes every row. Values come back as the driver's native
// types; []byte values are left as-is for downstream sanitization.
func scanAll(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
