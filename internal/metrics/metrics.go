// Package metrics exposes the prometheus collectors shared by the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "licitai"

var (
	// RouteDecisions counts router outcomes by route and tier (keyword or model).
	RouteDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Router decisions by route and tier",
		},
		[]string{"route", "tier"},
	)

	// ModelRequests counts model gateway calls by model and outcome.
	ModelRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Model gateway calls by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	// ModelThrottles counts throttling responses that triggered a retry wait.
	ModelThrottles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_throttles_total",
			Help:      "Throttled model calls",
		},
		[]string{"model"},
	)

	// SQLOutcomes counts synthesized query results.
	SQLOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sql_outcomes_total",
			Help:      "Synthesized query outcomes (rows, empty, error, fallback)",
		},
		[]string{"outcome"},
	)

	// EmbeddingCache counts embedding cache lookups by result ("hit"/"miss").
	EmbeddingCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"},
	)

	// IngestRows counts ingested rows by outcome.
	IngestRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Ingested rows by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(RouteDecisions)
	prometheus.MustRegister(ModelRequests)
	prometheus.MustRegister(ModelThrottles)
	prometheus.MustRegister(SQLOutcomes)
	prometheus.MustRegister(EmbeddingCache)
	prometheus.MustRegister(IngestRows)
}
