package metrics

import "time"

// Sink is the MetricsSink port the orchestrator depends on. It exists
// alongside the package-level Prometheus collectors so the orchestrator
// can be tested against a fake sink without touching the global registry.
type Sink interface {
	RecordQueryRequest(status, database string)
	RecordQueryDuration(d time.Duration)
	RecordLLMCall(operation string)
	RecordLLMLatency(operation string, d time.Duration)
	RecordSQLRejected(reason string)
	RecordDBQueryDuration(d time.Duration)
}

// PrometheusSink is the concrete Sink backed by this package's
// promauto-registered collectors.
type PrometheusSink struct{}

// NewPrometheusSink returns a Sink that records to the process-wide
// Prometheus collectors.
func NewPrometheusSink() PrometheusSink { return PrometheusSink{} }

func (PrometheusSink) RecordQueryRequest(status, database string) {
	RecordQueryRequest(status, database)
}

func (PrometheusSink) RecordQueryDuration(d time.Duration) {
	RecordQueryDuration(d)
}

func (PrometheusSink) RecordLLMCall(operation string) {
	RecordLLMCall(operation)
}

func (PrometheusSink) RecordLLMLatency(operation string, d time.Duration) {
	RecordLLMLatency(operation, d)
}

func (PrometheusSink) RecordSQLRejected(reason string) {
	RecordSQLRejected(reason)
}

func (PrometheusSink) RecordDBQueryDuration(d time.Duration) {
	RecordDBQueryDuration(d)
}
