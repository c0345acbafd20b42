package keywordlens

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/keywordlens/ai/mock"
	"github.com/poiesic/keywordlens/backfill"
	"github.com/poiesic/keywordlens/config"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/ingestion"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Embedding.Dimensions = mock.DefaultDimensions
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *mock.MockEmbedder) {
	t.Helper()
	embedder := mock.NewMockEmbedder()
	e, err := NewEngine(context.Background(), cfg, WithProvider(mock.NewMockProviderWithEmbedder(embedder)))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, embedder
}

func TestNewEngine(t *testing.T) {
	t.Run("in-memory store", func(t *testing.T) {
		e, _ := newTestEngine(t, testConfig())

		assert.NotNil(t, e.Store())
		assert.NotNil(t, e.Embedder())
		assert.NotNil(t, e.Searcher())
		assert.NotNil(t, e.Readiness())
		assert.NotNil(t, e.Analyzer())
		assert.NotNil(t, e.Metrics())
		assert.NotNil(t, e.Registry())
		assert.NotNil(t, e.Invalidations())
	})

	t.Run("on-disk store", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.InMemory = false
		cfg.Storage.Path = filepath.Join(t.TempDir(), "kw_db")

		provider := mock.NewMockProvider()
		e, err := NewEngine(context.Background(), cfg, WithProvider(provider))
		require.NoError(t, err)
		require.NoError(t, e.Close())
		assert.True(t, provider.(*mock.MockProvider).Closed())
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Driver = "sqlite"
		_, err := NewEngine(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cache.RedisAddress = "127.0.0.1:1"
		_, err := NewEngine(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
	})
}

func TestEngine_SearchEndToEnd(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	pipeline, err := e.NewIngestionPipeline()
	require.NoError(t, err)
	fixtures, err := ingestion.SampleFixtures()
	require.NoError(t, err)
	_, err = pipeline.IngestFixtures(ctx, fixtures)
	require.NoError(t, err)
	pipeline.Release()

	_, err = e.Searcher().Search(ctx, core.SearchRequest{Query: "running shoes", Threshold: 0.99, MaxResults: 5})
	require.Error(t, err, "searches are gated until setup runs")
	assert.ErrorIs(t, err, core.ErrNotReady)

	report, err := e.Readiness().RunSetup(ctx)
	require.NoError(t, err)
	require.True(t, report.Ready(), "recommendations: %v", report.Recommendations)

	resp, err := e.Searcher().Search(ctx, core.SearchRequest{Query: "running shoes", Threshold: 0.99, MaxResults: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "running shoes", resp.Results[0].Label)
	assert.Equal(t, core.KindKeyword, resp.Results[0].Kind)

	analysis, err := e.Analyzer().Analyze(ctx, fixtures.BlogID())
	require.NoError(t, err)
	assert.Equal(t, 3, analysis.TotalClusters)
	assert.Equal(t, 12, analysis.TotalKeywords)
}

func TestEngine_BackfillRecordsMetrics(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	blog := core.IDFromContent("engine-blog")
	_, err := e.Store().Keywords().AddKeywords(ctx,
		&core.KeywordVariation{BlogId: blog, Text: "hill repeats"},
		&core.KeywordVariation{BlogId: blog, Text: "tempo runs"},
	)
	require.NoError(t, err)

	b, err := e.NewBackfiller(nil)
	require.NoError(t, err)
	defer b.Release()

	results, err := b.Run(ctx, core.CorpusKeywords)
	require.NoError(t, err)
	assert.Equal(t, 2, results[0].Embedded)
	assert.Equal(t, 2.0, testutil.ToFloat64(e.Metrics().BackfillRecords.WithLabelValues("keywords", "success")))

	embedded, _, err := e.Store().Schema().EmbeddingCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, embedded.Keywords)
}

func TestEngine_BackfillConfigOverride(t *testing.T) {
	e, embedder := newTestEngine(t, testConfig())
	ctx := context.Background()

	blog := core.IDFromContent("engine-blog")
	_, err := e.Store().Keywords().AddKeywords(ctx,
		&core.KeywordVariation{BlogId: blog, Text: "a"},
		&core.KeywordVariation{BlogId: blog, Text: "b"},
		&core.KeywordVariation{BlogId: blog, Text: "c"},
	)
	require.NoError(t, err)

	b, err := e.NewBackfiller(&backfill.Config{BatchSize: 1, Workers: 1, MaxRetries: 1})
	require.NoError(t, err)
	defer b.Release()

	_, err = b.Run(ctx, core.CorpusKeywords)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestEngine_Server(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())

	srv, err := e.NewServer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keywordlens_")
}

func TestEngine_Close(t *testing.T) {
	provider := mock.NewMockProvider()
	e, err := NewEngine(context.Background(), testConfig(), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, e.Close())
	assert.True(t, provider.(*mock.MockProvider).Closed())
}
