// Package metrics provides the Prometheus registry and scrape handler for the
// results service.
// All metrics are defined in their respective packages (client, ratelimit,
// cache, batch, peer) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Portal Metrics (pkg/client):
//   - beu_portal_requests_total{outcome} (Counter): Fetches by outcome (success, not_found, error)
//   - beu_portal_request_duration_seconds (Histogram): Duration of one fetch including retries
//   - beu_portal_errors_total{class} (Counter): Failed attempts by class (client, server, network, blocked)
//
// Retry Metrics (pkg/client):
//   - beu_portal_retries_total{error_class} (Counter): Retry attempts by error class
//   - beu_portal_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - beu_portal_retry_exhausted_total{error_class} (Counter): Fetches that exhausted their attempts
//
// Failure Budget Metrics (pkg/ratelimit):
//   - beu_portal_failures_in_window (Gauge): Portal failures inside the sliding window
//   - beu_portal_failures_recorded_total{class} (Counter): Failures written to the budget
//   - beu_portal_budget_blocks_total (Counter): Requests blocked by the critical threshold
//   - beu_portal_budget_throttles_total (Counter): Requests delayed by the warning threshold
//
// Cache Metrics (pkg/cache):
//   - beu_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - beu_cache_misses_total (Counter): Lookups no layer could answer
//   - beu_cache_stores_total{layer} (Counter): Results written by layer
//   - beu_cache_errors_total{operation} (Counter): Cache operation errors
//
// Batch Metrics (pkg/batch):
//   - beu_batch_runs_total{mode, outcome} (Counter): Core and edge runs by outcome
//   - beu_batch_entries_total{kind} (Counter): Records and error entries produced
//   - beu_subbatch_duration_seconds{runner} (Histogram): Sub-batch duration (local, edge)
//
// Peer Metrics (pkg/peer):
//   - beu_peer_requests_total{outcome} (Counter): Calls to semester-specific peers
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(beu_cache_hits_total[5m])) /
//   (sum(rate(beu_cache_hits_total[5m])) + sum(rate(beu_cache_misses_total[5m])))
//
//   # Portal Error Rate
//   rate(beu_portal_errors_total[5m])
//
//   # Budget Pressure
//   beu_portal_failures_in_window > 20
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(beu_portal_request_duration_seconds_bucket[5m]))
//
//   # Share of Lookups Without a Record
//   rate(beu_portal_requests_total{outcome="not_found"}[5m]) / rate(beu_portal_requests_total[5m])
