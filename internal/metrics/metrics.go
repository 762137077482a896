// Package metrics exposes the Prometheus collectors of the prediction service.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeNoMatch    = "no_match"
	OutcomeValidation = "validation_failed"
	OutcomeStoreError = "store_error"
)

var (
	// predictionsTotal counts prediction requests by outcome.
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontani",
		Subsystem: "prediction",
		Name:      "requests_total",
		Help:      "Total prediction requests by outcome",
	}, []string{"outcome"})

	predictionLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ontani",
		Subsystem: "prediction",
		Name:      "latency_seconds",
		Help:      "Prediction latency from validation to assembled payload",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"outcome"})

	// candidatesReturned observes the size of successful result lists (1-5).
	candidatesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ontani",
		Subsystem: "prediction",
		Name:      "candidates_returned",
		Help:      "Number of diagnoses returned per successful prediction",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	// catalogCacheTotal counts reference data cache lookups.
	// Labels: tier (memory, redis), result (hit, miss)
	catalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontani",
		Subsystem: "catalog_cache",
		Name:      "lookups_total",
		Help:      "Catalog cache lookups by tier and result",
	}, []string{"tier", "result"})

	// storeBreakerState is 0 closed, 1 half-open, 2 open.
	storeBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ontani",
		Subsystem: "store",
		Name:      "breaker_state",
		Help:      "Store circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"breaker"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontani",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})
)

// PoolStats is a snapshot of the store connection pool.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
	Max      int32
}

var (
	poolSource atomic.Pointer[func() PoolStats]

	poolConnectionsDesc = prometheus.NewDesc(
		"ontani_store_pool_connections",
		"Store connection pool connections by state",
		[]string{"state"}, nil,
	)
)

// poolCollector reads the registered pool on every scrape.
type poolCollector struct{}

func (poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolConnectionsDesc
}

func (poolCollector) Collect(ch chan<- prometheus.Metric) {
	fn := poolSource.Load()
	if fn == nil {
		return
	}
	stats := (*fn)()
	for state, v := range map[string]int32{
		"acquired": stats.Acquired,
		"idle":     stats.Idle,
		"total":    stats.Total,
		"max":      stats.Max,
	} {
		ch <- prometheus.MustNewConstMetric(poolConnectionsDesc, prometheus.GaugeValue, float64(v), state)
	}
}

func init() {
	prometheus.MustRegister(poolCollector{})
}

// SetPoolSource publishes the stats of the active connection pool. A nil
// source stops reporting.
func SetPoolSource(fn func() PoolStats) {
	if fn == nil {
		poolSource.Store(nil)
		return
	}
	poolSource.Store(&fn)
}

// RecordPrediction records one prediction request.
func RecordPrediction(outcome string, duration time.Duration, returned int) {
	predictionsTotal.WithLabelValues(outcome).Inc()
	predictionLatencySeconds.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		candidatesReturned.Observe(float64(returned))
	}
}

// RecordCacheLookup records a catalog cache hit or miss on a tier.
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	catalogCacheTotal.WithLabelValues(tier, result).Inc()
}

// SetBreakerState publishes the numeric state of a named breaker.
func SetBreakerState(name string, state int) {
	storeBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route, status string) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
