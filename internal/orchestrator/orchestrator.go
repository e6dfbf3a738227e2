package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
	"github.com/nyashahama/nlsql-queryengine/internal/llm"
	"github.com/nyashahama/nlsql-queryengine/internal/metrics"
	"github.com/nyashahama/nlsql-queryengine/internal/resilience"
	"github.com/nyashahama/nlsql-queryengine/internal/schema"
)

// attemptErr carries one failed attempt's apperr plus the SQL it generated
// (if any) through resilience.WithBackoff's generic Attempt, so the next
// attempt's prompt can be built from prev.Err without WithBackoff knowing
// anything about SQL or apperr.
type attemptErr struct {
	err *apperr.Error
	sql string
}

func (e *attemptErr) Error() string { return e.err.Error() }

// isAttemptRetryable is the resilience.IsRetryable predicate for the query
// pipeline: only a wrapped attemptErr is ever eligible, and only when its
// apperr code is in the fixed retryable set.
func isAttemptRetryable(err error) bool {
	var ae *attemptErr
	if errors.As(err, &ae) {
		return ae.err.IsRetryable()
	}
	return false
}

// asPipelineErr converts whatever resilience.WithBackoff returns back into
// the apperr taxonomy. A plain context error (ctx cancelled while WithBackoff
// was sleeping between attempts) has no attemptErr to unwrap.
func asPipelineErr(err error) *apperr.Error {
	var ae *attemptErr
	if errors.As(err, &ae) {
		return ae.err
	}
	return apperr.LLMError("request cancelled during retry backoff: %s", err)
}

// QueryOrchestrator is the top-level coordinator. It owns its circuit
// breaker, rate limiter, and metrics sink exclusively; everything else
// (validators, executors, generator, result validator, schema cache) is a
// shared, read-only handle.
type QueryOrchestrator struct {
	databases       map[string]DatabaseBinding
	schemaCache     SchemaCache
	generator       llm.SQLGenerator
	resultValidator llm.ResultValidator
	breaker         *resilience.CircuitBreaker
	limiter         *resilience.RateLimiter
	cfg             resilience.Config
	metrics         metrics.Sink
}

// New builds a QueryOrchestrator over the given database bindings.
// resultValidator may be nil, in which case result validation is skipped
// regardless of ReturnType.
func New(
	databases map[string]DatabaseBinding,
	schemaCache SchemaCache,
	generator llm.SQLGenerator,
	resultValidator llm.ResultValidator,
	cfg resilience.Config,
	sink metrics.Sink,
) *QueryOrchestrator {
	return &QueryOrchestrator{
		databases:       databases,
		schemaCache:     schemaCache,
		generator:       generator,
		resultValidator: resultValidator,
		breaker:         resilience.NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout),
		limiter:         resilience.NewRateLimiter(cfg.LLMConcurrency, cfg.QueryConcurrency),
		cfg:             cfg,
		metrics:         sink,
	}
}

// ExecuteQuery runs the full pipeline for one request. It never panics and
// never returns a Go error: every outcome is encoded in the returned
// QueryResponse.
func (o *QueryOrchestrator) ExecuteQuery(ctx context.Context, req QueryRequest) QueryResponse {
	start := time.Now()

	dbName, binding, dbErr := o.resolveDatabase(req.Database)
	if dbErr != nil {
		return o.finalize(QueryResponse{Success: false, Error: toErrorInfo(dbErr), Attempts: 0}, dbName, start)
	}

	sch, ok := o.schemaCache.Get(dbName)
	if !ok {
		return o.finalize(QueryResponse{Success: false, Error: toErrorInfo(apperr.SchemaUnavailable(dbName)), Attempts: 0}, dbName, start)
	}

	var (
		attempts  int
		resp      QueryResponse
		succeeded bool
	)

	runErr := resilience.WithBackoff(ctx, o.cfg, isAttemptRetryable, func(ctx context.Context, prev *resilience.Attempt) error {
		attempts++

		var previousAttempt, errorFeedback string
		if prev != nil {
			if ae, ok := prev.Err.(*attemptErr); ok {
				previousAttempt = ae.sql
				errorFeedback = ae.err.Message
			}
		}

		sql, genErr := o.generateSQL(ctx, req, sch, previousAttempt, errorFeedback)
		if genErr != nil {
			return &attemptErr{err: genErr}
		}

		ok, valErr := binding.Validator.Validate(sql)
		if !ok {
			o.metrics.RecordSQLRejected("validation_failed")
			return &attemptErr{err: valErr, sql: sql}
		}

		if req.ReturnType == ReturnSQL {
			resp = QueryResponse{Success: true, GeneratedSQL: sql, Attempts: attempts}
			succeeded = true
			return nil
		}

		rows, rowCount, execErr := o.executeSQL(ctx, binding, sql)
		if execErr != nil {
			return &attemptErr{err: execErr, sql: sql}
		}

		final := QueryResponse{
			Success:     true,
			Rows:        rows,
			RowCount:    rowCount,
			HasRowCount: true,
			Attempts:    attempts,
		}
		if req.ReturnType == ReturnBoth {
			final.GeneratedSQL = sql
		}
		if o.resultValidator != nil {
			final.Validation = o.validateResult(ctx, req.Question, sql, rows, rowCount)
		}
		resp = final
		succeeded = true
		return nil
	})

	if succeeded {
		return o.finalize(resp, dbName, start)
	}

	return o.finalize(QueryResponse{
		Success:  false,
		Error:    toErrorInfo(asPipelineErr(runErr)),
		Attempts: attempts,
	}, dbName, start)
}

// generateSQL acquires an LLM slot, consults the circuit breaker, calls
// the generator, and releases the slot on every exit path.
func (o *QueryOrchestrator) generateSQL(ctx context.Context, req QueryRequest, sch schema.DatabaseSchema, previousAttempt, errorFeedback string) (string, *apperr.Error) {
	if err := o.limiter.AcquireLLM(ctx); err != nil {
		return "", apperr.LLMError("acquire LLM slot: %s", err)
	}
	defer o.limiter.ReleaseLLM()

	if !o.breaker.Allow() {
		return "", apperr.CircuitOpen()
	}

	start := time.Now()
	sql, err := o.generator.Generate(ctx, llm.GenerateParams{
		Question:        req.Question,
		Schema:          sch,
		Context:         req.Context,
		PreviousAttempt: previousAttempt,
		ErrorFeedback:   errorFeedback,
	})
	o.metrics.RecordLLMCall("generate")
	o.metrics.RecordLLMLatency("generate", time.Since(start))

	if err != nil {
		o.breaker.RecordFailure()
		return "", apperr.AsError(err)
	}
	o.breaker.RecordSuccess()
	return sql, nil
}

// executeSQL acquires a database slot, bounds the call with the configured
// per-call deadline, runs the statement, and releases the slot on every
// exit path.
func (o *QueryOrchestrator) executeSQL(ctx context.Context, binding DatabaseBinding, sql string) ([]llm.ResultRow, int, *apperr.Error) {
	if err := o.limiter.AcquireQuery(ctx); err != nil {
		return nil, 0, apperr.DBConnectionError("acquire query slot: %s", err)
	}
	defer o.limiter.ReleaseQuery()

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.DBCallTimeout)
	defer cancel()

	start := time.Now()
	rows, count, err := binding.Executor.Execute(callCtx, sql)
	o.metrics.RecordDBQueryDuration(time.Since(start))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, apperr.DBTimeout("database query exceeded the %s call deadline", o.cfg.DBCallTimeout)
		}
		return nil, 0, apperr.AsError(err)
	}
	return rows, count, nil
}

// validateResult runs the optional result-validation pass. A failure here
// never fails the request; it downgrades to a warning attached to the
// response, per spec.
func (o *QueryOrchestrator) validateResult(ctx context.Context, question, sql string, rows []llm.ResultRow, rowCount int) *llm.ValidationResult {
	start := time.Now()
	result, err := o.resultValidator.Validate(ctx, question, sql, rows, rowCount)
	o.metrics.RecordLLMCall("validate")
	o.metrics.RecordLLMLatency("validate", time.Since(start))

	if err != nil {
		ae := apperr.AsError(err)
		return &llm.ValidationResult{
			Confidence:   0,
			Explanation:  "result validation failed: " + ae.Message,
			IsAcceptable: false,
		}
	}
	return &result
}

// resolveDatabase implements step 1 of the pipeline: name given must
// exist; name absent auto-selects the sole configured database or fails
// with database_required when more than one is configured.
func (o *QueryOrchestrator) resolveDatabase(name string) (string, DatabaseBinding, *apperr.Error) {
	if name != "" {
		binding, ok := o.databases[name]
		if !ok {
			return name, DatabaseBinding{}, apperr.DatabaseNotFound(name)
		}
		return name, binding, nil
	}

	if len(o.databases) == 1 {
		for only, binding := range o.databases {
			return only, binding, nil
		}
	}

	return "", DatabaseBinding{}, apperr.DatabaseRequired()
}

// finalize records the terminal metrics for one call and returns resp
// unchanged, so every return path in ExecuteQuery funnels through it.
func (o *QueryOrchestrator) finalize(resp QueryResponse, database string, start time.Time) QueryResponse {
	status := "success"
	if !resp.Success {
		status = "failure"
	}
	if database == "" {
		database = "unresolved"
	}
	resp.RequestID = uuid.NewString()
	o.metrics.RecordQueryRequest(status, database)
	o.metrics.RecordQueryDuration(time.Since(start))
	return resp
}

func toErrorInfo(err *apperr.Error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	}
}

// DatabaseNames returns the configured database names in sorted order, for
// diagnostics.
func (o *QueryOrchestrator) DatabaseNames() []string {
	names := make([]string, 0, len(o.databases))
	for name := range o.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
