// Package orchestrator composes the resilience, validation, and LLM/DB
// ports into one top-level operation: ExecuteQuery. It is the only package
// that knows the full pipeline order; everything it depends on is a narrow
// interface.
package orchestrator

import (
	"github.com/nyashahama/nlsql-queryengine/internal/llm"
)

// ReturnType selects what ExecuteQuery's response carries.
type ReturnType string

const (
	ReturnSQL    ReturnType = "sql"
	ReturnResult ReturnType = "result"
	ReturnBoth   ReturnType = "both"
)

// QueryRequest is the inbound request to ExecuteQuery. It is immutable
// once built; nothing in the pipeline mutates it.
type QueryRequest struct {
	Question   string
	Database   string // empty means "auto-select or require disambiguation"
	ReturnType ReturnType
	Context    string
}

// ErrorInfo is the stable, wire-safe shape of a failed response.
type ErrorInfo struct {
	Code    string
	Message string
	Details map[string]string
}

// QueryResponse is the outbound result of ExecuteQuery. ExecuteQuery never
// panics or returns a Go error; every outcome, success or failure, is
// encoded here.
type QueryResponse struct {
	RequestID    string
	Success      bool
	GeneratedSQL string
	Rows         []llm.ResultRow
	RowCount     int
	HasRowCount  bool
	Validation   *llm.ValidationResult
	Error        *ErrorInfo
	Attempts     int
}
