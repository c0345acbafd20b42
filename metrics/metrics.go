package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/readiness"
	"github.com/poiesic/keywordlens/search"
)

const (
	namespace = "keywordlens"
)

// readinessStates are exported as a one-hot gauge.
var readinessStates = []core.ReadinessState{
	core.StateChecking,
	core.StateReady,
	core.StateNotReady,
	core.StateSetup,
	core.StateTesting,
	core.StateComplete,
}

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	// Search metrics
	SearchesTotal        *prometheus.CounterVec
	SearchFailures       *prometheus.CounterVec
	SearchDuration       prometheus.Histogram
	SearchResults        prometheus.Histogram
	MissingMetadataTotal *prometheus.CounterVec
	QueryDimensions      prometheus.Gauge

	// Embedding gateway metrics
	CacheLookups     *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration prometheus.Histogram
	BreakerState     *prometheus.GaugeVec

	// Readiness metrics
	ReadinessState       *prometheus.GaugeVec
	ReadinessTransitions *prometheus.CounterVec

	// Backfill metrics
	BackfillRecords *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var (
	_ search.SearchMonitor = (*Metrics)(nil)
	_ ai.GatewayMonitor    = (*Metrics)(nil)
)

// New creates a new Metrics instance with all collectors registered on reg.
// A nil reg registers on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of searches by corpus",
			},
			[]string{"corpus"},
		),

		SearchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_failures_total",
				Help:      "Total number of failed searches by error kind",
			},
			[]string{"kind"},
		),

		// Buckets: 5ms to 5s
		SearchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Duration of successful searches in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),

		SearchResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of results returned per search",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),

		MissingMetadataTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_missing_metadata_total",
				Help:      "Matches dropped because their record could not be loaded",
			},
			[]string{"kind"},
		),

		QueryDimensions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "query_vector_dimensions",
				Help:      "Dimension of the most recent query vector",
			},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_cache_lookups_total",
				Help:      "Query vector cache lookups by result",
			},
			[]string{"result"},
		),

		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_provider_calls_total",
				Help:      "Calls to the embedding provider by status",
			},
			[]string{"status"},
		),

		ProviderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "embedding_provider_duration_seconds",
				Help:      "Duration of embedding provider calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "embedding_breaker_state",
				Help:      "Circuit breaker state, 1 for the current state",
			},
			[]string{"state"},
		),

		ReadinessState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "readiness_state",
				Help:      "Readiness machine state, 1 for the current state",
			},
			[]string{"state"},
		),

		ReadinessTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readiness_transitions_total",
				Help:      "Readiness transitions by target state and outcome",
			},
			[]string{"to", "outcome"},
		),

		BackfillRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backfill_records_total",
				Help:      "Records processed by the embedding backfill",
			},
			[]string{"corpus", "status"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Start implements search.SearchMonitor.
func (m *Metrics) Start(_ string, corpus core.Corpus) {
	m.SearchesTotal.WithLabelValues(string(corpus)).Inc()
}

// AfterEmbedding implements search.SearchMonitor.
func (m *Metrics) AfterEmbedding(dimensions int) {
	m.QueryDimensions.Set(float64(dimensions))
}

// AfterSimilaritySearch implements search.SearchMonitor.
func (m *Metrics) AfterSimilaritySearch([]core.SimilarityMatch) {}

// AfterHydration implements search.SearchMonitor.
func (m *Metrics) AfterHydration(int, int) {}

// MissingMetadata implements search.SearchMonitor.
func (m *Metrics) MissingMetadata(match core.SimilarityMatch) {
	m.MissingMetadataTotal.WithLabelValues(string(match.Kind)).Inc()
}

// Finish implements search.SearchMonitor.
func (m *Metrics) Finish(response *core.SearchResponse) {
	m.SearchDuration.Observe(response.ProcessingTimeSeconds)
	m.SearchResults.Observe(float64(response.TotalFound))
}

// Failed implements search.SearchMonitor.
func (m *Metrics) Failed(kind core.ErrorKind) {
	m.SearchFailures.WithLabelValues(string(kind)).Inc()
}

// OnCacheLookup implements ai.GatewayMonitor.
func (m *Metrics) OnCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// OnProviderCall implements ai.GatewayMonitor.
func (m *Metrics) OnProviderCall(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCalls.WithLabelValues(status).Inc()
	m.ProviderDuration.Observe(duration.Seconds())
}

// OnBreakerStateChange implements ai.GatewayMonitor.
func (m *Metrics) OnBreakerStateChange(from, to string) {
	m.BreakerState.WithLabelValues(from).Set(0)
	m.BreakerState.WithLabelValues(to).Set(1)
}

// ObserveTransition records a readiness transition.
func (m *Metrics) ObserveTransition(t readiness.Transition) {
	for _, s := range readinessStates {
		value := 0.0
		if s == t.To {
			value = 1
		}
		m.ReadinessState.WithLabelValues(string(s)).Set(value)
	}
	outcome := "ok"
	if t.Err != nil {
		outcome = "error"
	}
	m.ReadinessTransitions.WithLabelValues(string(t.To), outcome).Inc()
}

// WatchReadiness records every transition received on ch until it is closed.
func (m *Metrics) WatchReadiness(ch <-chan readiness.Transition) {
	for t := range ch {
		m.ObserveTransition(t)
	}
}

// RecordBackfill counts records handled by the embedding backfill.
func (m *Metrics) RecordBackfill(corpus core.Corpus, succeeded, failed int) {
	if succeeded > 0 {
		m.BackfillRecords.WithLabelValues(string(corpus), "success").Add(float64(succeeded))
	}
	if failed > 0 {
		m.BackfillRecords.WithLabelValues(string(corpus), "error").Add(float64(failed))
	}
}

// RecordRequest records an HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
