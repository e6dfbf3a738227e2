// Package apperr defines the stable error taxonomy shared by every stage of
// the query pipeline. Replacing exception-driven control flow with a single
// tagged error type lets the orchestrator's retry loop use one match site
// instead of a type-switch per collaborator.
package apperr

import "fmt"

// Code is a stable, wire-safe error tag. Callers outside this module should
// match on Code, never on the formatted message.
type Code string

const (
	CodeDatabaseNotFound        Code = "database_not_found"
	CodeDatabaseRequired        Code = "database_required"
	CodeSchemaUnavailable       Code = "schema_unavailable"
	CodeSecurityViolation       Code = "security_violation"
	CodeSQLParseError           Code = "sql_parse_error"
	CodeLLMError                Code = "llm_error"
	CodeLLMTimeout              Code = "llm_timeout"
	CodeLLMUnavailable          Code = "llm_unavailable"
	CodeCircuitBreakerOpen      Code = "circuit_breaker_open"
	CodeDBError                 Code = "db_error"
	CodeDBConnectionError       Code = "db_connection_error"
	CodeDBTimeout               Code = "db_timeout"
	CodeResultValidationWarning Code = "result_validation_warning"
)

// retryable is the fixed map from code to retry eligibility, per the
// taxonomy table. Only security/parse violations and engine-reported SQL
// errors are retried; everything else surfaces directly.
var retryable = map[Code]bool{
	CodeSecurityViolation: true,
	CodeSQLParseError:     true,
	CodeDBError:           true,
}

// Error is the single error type every pipeline stage returns. Code is
// stable across releases; Message is human-readable and, for retryable
// codes, is also fed back to the LLM as error_feedback.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRetryable reports whether the orchestrator's retry loop should make
// another attempt after this error, per the taxonomy in the design.
func (e *Error) IsRetryable() bool {
	return retryable[e.Code]
}

// New builds an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured detail fields and returns the receiver for
// chaining at the call site.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

func DatabaseNotFound(name string) *Error {
	return New(CodeDatabaseNotFound, "database %q is not configured", name)
}

func DatabaseRequired() *Error {
	return New(CodeDatabaseRequired, "request did not specify a database and multiple databases are configured")
}

func SchemaUnavailable(name string) *Error {
	return New(CodeSchemaUnavailable, "no schema available for database %q", name)
}

func SecurityViolation(format string, args ...any) *Error {
	return New(CodeSecurityViolation, format, args...)
}

func SQLParseError(format string, args ...any) *Error {
	return New(CodeSQLParseError, format, args...)
}

func LLMError(format string, args ...any) *Error {
	return New(CodeLLMError, format, args...)
}

func LLMTimeout(format string, args ...any) *Error {
	return New(CodeLLMTimeout, format, args...)
}

func LLMUnavailable(format string, args ...any) *Error {
	return New(CodeLLMUnavailable, format, args...)
}

func CircuitOpen() *Error {
	return New(CodeCircuitBreakerOpen, "circuit breaker is open, refusing to call the LLM")
}

func DBError(format string, args ...any) *Error {
	return New(CodeDBError, format, args...)
}

func DBConnectionError(format string, args ...any) *Error {
	return New(CodeDBConnectionError, format, args...)
}

// DBTimeout reports that a database call exceeded its configured per-call
// deadline, mirroring LLMTimeout on the LLM call path.
func DBTimeout(format string, args ...any) *Error {
	return New(CodeDBTimeout, format, args...)
}

// AsError unwraps err into an *Error if possible. Unknown error shapes are
// wrapped as a non-retryable llm_error so the orchestrator never has to
// special-case "something else went wrong".
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return &Error{Code: CodeLLMError, Message: err.Error()}
}
