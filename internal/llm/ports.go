// Package llm defines the SQLGenerator and ResultValidator ports the
// orchestrator talks to, plus concrete HTTP-backed implementations. Neither
// port mentions a specific vendor; callers program against the interfaces
// and construct a concrete client (or a fallback decorator over two) at
// wiring time.
package llm

import (
	"context"

	"github.com/nyashahama/nlsql-queryengine/internal/schema"
)

// GenerateParams carries everything a generation call needs, including the
// optional retry-feedback fields the orchestrator fills in on subsequent
// attempts.
type GenerateParams struct {
	Question        string
	Schema          schema.DatabaseSchema
	Context         string
	PreviousAttempt string
	ErrorFeedback   string
}

// SQLGenerator asks an LLM to turn a natural-language question into SQL.
// Implementations must be safe for concurrent use and must extract SQL out
// of common response shapes (fenced ```sql blocks, generic fenced blocks,
// or bare SELECT/WITH text); failure to extract is an *apperr.Error with
// code llm_error.
type SQLGenerator interface {
	Generate(ctx context.Context, params GenerateParams) (string, error)
}

// ResultRow is one row of a query result, keyed by column name.
type ResultRow map[string]any

// ValidationResult is the ResultValidator's verdict. Confidence is always
// in [0,100] by construction; IsAcceptable mirrors confidence >= threshold.
type ValidationResult struct {
	Confidence   int
	Explanation  string
	Suggestion   string
	IsAcceptable bool
}

// ResultValidator asks a second LLM pass whether a query's results answer
// the original question. On malformed JSON from the model it must return a
// ValidationResult{Confidence: 60, IsAcceptable: false} rather than an
// error: a garbled verdict is a recoverable warning, not a pipeline
// failure.
type ResultValidator interface {
	Validate(ctx context.Context, question, sql string, sample []ResultRow, rowCount int) (ValidationResult, error)
}
