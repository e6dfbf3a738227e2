// Package metrics holds the process-wide Prometheus collectors for the
// query engine, plus one RecordX function per observable side effect named
// in the orchestrator's pipeline. Collectors are package-level vars
// registered on prometheus.DefaultRegisterer at import time; callers never
// construct or wire a registry themselves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nlsql_query_requests_total",
		Help: "Total query requests, labeled by outcome and target database.",
	}, []string{"status", "database"})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nlsql_query_duration_seconds",
		Help:    "End-to-end execute_query latency.",
		Buckets: prometheus.DefBuckets,
	})

	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nlsql_llm_calls_total",
		Help: "Total LLM calls, labeled by operation (generate, validate).",
	}, []string{"operation"})

	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nlsql_llm_latency_seconds",
		Help:    "LLM call latency, labeled by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	SQLRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nlsql_sql_rejected_total",
		Help: "Total SQL statements rejected by the validator, labeled by reason.",
	}, []string{"reason"})

	DBQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nlsql_db_query_duration_seconds",
		Help:    "SQLExecutor.Execute latency against the target database.",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordQueryRequest increments the request counter for one completed
// attempt (or final outcome) of execute_query.
func RecordQueryRequest(status, database string) {
	QueryRequestsTotal.WithLabelValues(status, database).Inc()
}

// RecordQueryDuration observes the total wall-clock time of one
// execute_query call.
func RecordQueryDuration(d time.Duration) {
	QueryDuration.Observe(d.Seconds())
}

// RecordLLMCall increments the LLM call counter for one operation
// ("generate" or "validate").
func RecordLLMCall(operation string) {
	LLMCallsTotal.WithLabelValues(operation).Inc()
}

// RecordLLMLatency observes how long one LLM call took.
func RecordLLMLatency(operation string, d time.Duration) {
	LLMLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordSQLRejected increments the rejection counter for one validator
// rejection reason.
func RecordSQLRejected(reason string) {
	SQLRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordDBQueryDuration observes how long one SQLExecutor.Execute call
// took.
func RecordDBQueryDuration(d time.Duration) {
	DBQueryDuration.Observe(d.Seconds())
}
