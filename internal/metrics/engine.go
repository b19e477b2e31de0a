// Package metrics holds the Prometheus collectors of the service. Collectors
// are created at package init and registered explicitly from main.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "animedex"

// Engine metrics.
var (
	// SearchRequestsTotal counts searches by the path that answered them
	// ("index" / "readonly" / "fallback").
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Searches by media kind and answering path",
		},
		[]string{"kind", "path"},
	)

	// SearchMode is 1 while the vector index serves searches, 0 when degraded.
	SearchMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_mode",
			Help:      "1 when searches use the vector index, 0 when degraded",
		},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed list actions by operation and result",
		},
		[]string{"operation", "result"},
	)

	IndexUpsertBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_upsert_batches_total",
			Help:      "Index upsert batches by media kind and result",
		},
		[]string{"kind", "result"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpInFlight,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			QueryCacheTotal,
			ChatRequestsTotal,
			ChatRequestDuration,
			SearchRequestsTotal,
			SearchMode,
			ActionsTotal,
			IndexUpsertBatchesTotal,
		)
	})
}
