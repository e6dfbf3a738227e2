package orchestrator

import (
	"context"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
	"github.com/nyashahama/nlsql-queryengine/internal/llm"
	"github.com/nyashahama/nlsql-queryengine/internal/schema"
)

// SQLExecutor is the orchestrator's view of the database-facing port:
// run one read-only statement, get rows and a count back. dbx.PoolExecutor
// satisfies this interface structurally; the orchestrator never imports
// dbx, keeping the dependency pointed at the port, not the adapter.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) ([]llm.ResultRow, int, error)
}

// SchemaCache is the orchestrator's view of the schema lookup port.
// dbx.SnapshotCache satisfies this interface structurally.
type SchemaCache interface {
	Get(databaseName string) (schema.DatabaseSchema, bool)
}

// Validator is the orchestrator's view of the per-database SQL validator.
// sqlvalidator.SQLValidator satisfies this interface structurally.
type Validator interface {
	Validate(sql string) (bool, *apperr.Error)
}

// DatabaseBinding pairs one named pool's executor with the validator that
// enforces that database's own deny-lists and EXPLAIN policy.
type DatabaseBinding struct {
	Executor  SQLExecutor
	Validator Validator
}
