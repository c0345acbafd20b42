package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/readiness"
)

func newTestMetrics() *Metrics {
	return New(prometheus.NewRegistry())
}

func TestNew(t *testing.T) {
	m := newTestMetrics()

	assert.NotNil(t, m.SearchesTotal)
	assert.NotNil(t, m.SearchFailures)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.SearchResults)
	assert.NotNil(t, m.MissingMetadataTotal)
	assert.NotNil(t, m.CacheLookups)
	assert.NotNil(t, m.ProviderCalls)
	assert.NotNil(t, m.BreakerState)
	assert.NotNil(t, m.ReadinessState)
	assert.NotNil(t, m.BackfillRecords)
	assert.NotNil(t, m.RequestsTotal)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestMetrics()
		newTestMetrics()
	})
}

func TestSearchMonitor(t *testing.T) {
	m := newTestMetrics()

	m.Start("running shoes", core.CorpusAll)
	m.Start("trail shoes", core.CorpusAll)
	m.Start("keto", core.CorpusPosts)
	m.AfterEmbedding(1536)
	m.MissingMetadata(core.SimilarityMatch{Kind: core.KindPost})
	m.Finish(&core.SearchResponse{TotalFound: 3, ProcessingTimeSeconds: 0.02})
	m.Failed(core.KindEmbeddingUnavailable)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("all")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("posts")))
	assert.Equal(t, 1536.0, testutil.ToFloat64(m.QueryDimensions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MissingMetadataTotal.WithLabelValues("post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFailures.WithLabelValues("embedding_unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchDuration))
}

func TestGatewayMonitor(t *testing.T) {
	m := newTestMetrics()

	m.OnCacheLookup(true)
	m.OnCacheLookup(false)
	m.OnCacheLookup(false)
	m.OnProviderCall(20*time.Millisecond, nil)
	m.OnProviderCall(time.Second, errors.New("timeout"))
	m.OnBreakerStateChange("closed", "open")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("open")))
}

func TestWatchReadiness(t *testing.T) {
	m := newTestMetrics()
	ch := make(chan readiness.Transition, 3)
	ch <- readiness.Transition{From: core.StateChecking, To: core.StateNotReady}
	ch <- readiness.Transition{From: core.StateNotReady, To: core.StateSetup}
	ch <- readiness.Transition{From: core.StateSetup, To: core.StateNotReady, Err: errors.New("denied")}
	close(ch)

	m.WatchReadiness(ch)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadinessState.WithLabelValues("not_ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ReadinessState.WithLabelValues("setup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadinessTransitions.WithLabelValues("not_ready", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadinessTransitions.WithLabelValues("not_ready", "error")))
}

func TestRecordBackfillAndRequests(t *testing.T) {
	m := newTestMetrics()

	m.RecordBackfill(core.CorpusKeywords, 10, 2)
	m.RecordBackfill(core.CorpusPosts, 0, 0)
	m.RecordRequest(http.MethodPost, "/api/search/semantic", http.StatusOK, 10*time.Millisecond)
	m.RecordRequest(http.MethodPost, "/api/search/semantic", http.StatusServiceUnavailable, time.Millisecond)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.BackfillRecords.WithLabelValues("keywords", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackfillRecords.WithLabelValues("keywords", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BackfillRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/search/semantic", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/search/semantic", "5xx")))
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{304, "3xx"},
		{400, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.status))
	}
}
