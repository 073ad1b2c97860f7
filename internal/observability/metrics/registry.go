// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync metrics track per-run orchestration outcomes.
var (
	// SyncRunsTotal counts sync runs by trigger
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_sync_runs_total",
			Help: "Total number of sync runs",
		},
		[]string{"trigger"},
	)

	// SyncSubscriptionsTotal counts per-subscription sync outcomes
	SyncSubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_sync_subscriptions_total",
			Help: "Total number of per-subscription sync outcomes",
		},
		[]string{"status"},
	)

	// SyncArticlesInsertedTotal counts newly inserted articles
	SyncArticlesInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cerebro_sync_articles_inserted_total",
			Help: "Total number of newly inserted articles",
		},
	)

	// SyncDuration measures sync run duration in seconds
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cerebro_sync_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// Gateway metrics track failover fetch behavior per provider.
var (
	// FetchAttemptsTotal counts fetch attempts by provider and status
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_fetch_attempts_total",
			Help: "Total number of candidate fetch attempts",
		},
		[]string{"provider", "status"},
	)

	// FetchErrorsTotal counts classified fetch errors
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_fetch_errors_total",
			Help: "Total number of classified fetch errors",
		},
		[]string{"provider", "error_kind"},
	)

	// FetchLatency measures candidate fetch latency in seconds
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cerebro_fetch_latency_seconds",
			Help:    "Candidate fetch latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider"},
	)

	// CircuitOpenSkipsTotal counts candidates skipped for an open circuit
	CircuitOpenSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_circuit_open_skips_total",
			Help: "Total number of candidates skipped while their circuit was open",
		},
		[]string{"provider"},
	)
)

// Discovery metrics track the v2 acquisition path.
var (
	// DiscoveryRunsTotal counts per-subscription discovery outcomes
	DiscoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_discovery_runs_total",
			Help: "Total number of per-subscription discovery outcomes",
		},
		[]string{"channel", "status"},
	)

	// SummariesTotal counts produced summaries by model source
	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerebro_summaries_total",
			Help: "Total number of produced article summaries",
		},
		[]string{"source"}, // source: llm, fallback
	)
)

// RecordFetchAttempt records one candidate attempt for the gateway.
func RecordFetchAttempt(provider, status, errorKind string, latencySeconds float64) {
	FetchAttemptsTotal.WithLabelValues(provider, status).Inc()
	if errorKind != "" {
		FetchErrorsTotal.WithLabelValues(provider, errorKind).Inc()
	}
	if latencySeconds > 0 {
		FetchLatency.WithLabelValues(provider).Observe(latencySeconds)
	}
}

// RecordSummary records whether a summary came from the LLM or the fallback.
func RecordSummary(usedFallback bool) {
	source := "llm"
	if usedFallback {
		source = "fallback"
	}
	SummariesTotal.WithLabelValues(source).Inc()
}
