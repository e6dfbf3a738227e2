// Package dbx is the database-facing edge of the engine: a read-only SQL
// executor over named lib/pq pools, and an in-memory schema cache. Neither
// type mutates its inputs; both are safe for concurrent use once
// constructed.
package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
	"github.com/nyashahama/nlsql-queryengine/internal/llm"

	_ "github.com/lib/pq"
)

// Executor is the SQLExecutor port. It runs exactly one statement inside a
// read-only transaction and returns every row plus the total count.
type Executor interface {
	Execute(ctx context.Context, sql string) ([]llm.ResultRow, int, error)
}

// PoolExecutor is the concrete Executor backed by a *sql.DB connection
// pool. Each call opens a fresh read-only transaction so a misbehaving
// statement can never leave a write pending.
type PoolExecutor struct {
	pool *sql.DB
	name string
}

// NewPoolExecutor wraps an already-opened, already-pinged pool. Opening and
// tuning the pool itself is out of scope here, matching spec.md §1.
func NewPoolExecutor(name string, pool *sql.DB) *PoolExecutor {
	return &PoolExecutor{pool: pool, name: name}
}

// Execute runs sql read-only and materializes every row into a ResultRow
// map keyed by column name.
func (e *PoolExecutor) Execute(ctx context.Context, query string) ([]llm.ResultRow, int, error) {
	tx, err := e.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, apperr.DBTimeout("begin read-only transaction on %q exceeded its deadline", e.name)
		}
		return nil, 0, apperr.DBConnectionError("begin read-only transaction on %q: %s", e.name, err)
	}
	defer func() {
		// A read-only transaction never needs to commit; rolling back is
		// always safe and releases the connection promptly.
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, apperr.DBTimeout("query on %q exceeded its deadline", e.name)
		}
		return nil, 0, apperr.DBError("%s", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, apperr.DBError("read column names: %s", err)
	}

	var result []llm.ResultRow
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, 0, apperr.DBError("scan row: %s", err)
		}

		row := make(llm.ResultRow, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, apperr.DBTimeout("query on %q exceeded its deadline", e.name)
		}
		return nil, 0, apperr.DBError("%s", err)
	}

	return result, len(result), nil
}

// normalizeValue converts driver-specific byte slices (lib/pq returns text
// and numeric columns as []byte) into plain strings so callers never have
// to special-case the driver.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
