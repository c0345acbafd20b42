package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/poiesic/keywordlens/ai/mock"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/scoring"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBlog = core.IDFromContent("blog:search-test")

// vectorEmbedder maps known query texts to fixed 2-D vectors.
func vectorEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return []float32{0, 1}, nil
	}
	return m
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCorpus(t *testing.T, store storage.Store) (near, far, pending *core.KeywordVariation, post *core.ContentPost) {
	t.Helper()
	ctx := context.Background()

	volume := 1000
	near = &core.KeywordVariation{
		BlogId:       testBlog,
		Text:         "best running shoes",
		Vector:       []float32{1, 0},
		SearchVolume: &volume,
		Competition:  core.CompetitionLow,
		SearchIntent: core.IntentCommercial,
		Topics:       []string{"running"},
	}
	far = &core.KeywordVariation{BlogId: testBlog, Text: "sourdough starter", Vector: []float32{0, 1}}
	pending = &core.KeywordVariation{BlogId: testBlog, Text: "marathon training"}
	_, err := store.Keywords().AddKeywords(ctx, near, far, pending)
	require.NoError(t, err)

	post = &core.ContentPost{BlogId: testBlog, Title: "Choosing trail shoes", Vector: []float32{0.8, 0.6}}
	_, err = store.Posts().AddPosts(ctx, post)
	require.NoError(t, err)
	return near, far, pending, post
}

func request(query string, corpus core.Corpus) core.SearchRequest {
	return core.SearchRequest{Query: query, Corpus: corpus, Threshold: 0.5, MaxResults: 10}
}

type stubGate struct {
	report *core.ReadinessReport
	err    error
	calls  int
}

func (g *stubGate) EnsureReady(ctx context.Context) (*core.ReadinessReport, error) {
	g.calls++
	return g.report, g.err
}

type recordingMonitor struct {
	NoopMonitor
	mu       sync.Mutex
	missing  []core.SimilarityMatch
	failures []core.ErrorKind
	finished int
}

func (m *recordingMonitor) MissingMetadata(match core.SimilarityMatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing = append(m.missing, match)
}

func (m *recordingMonitor) Failed(kind core.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, kind)
}

func (m *recordingMonitor) Finish(*core.SearchResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
}

// vanishingKeywords loses every record between the similarity query and hydration.
type vanishingKeywords struct {
	storage.KeywordRepository
}

func (vanishingKeywords) GetKeywords(context.Context, ...core.ID) ([]*core.KeywordVariation, error) {
	return nil, nil
}

type storeWithKeywords struct {
	storage.Store
	keywords storage.KeywordRepository
}

func (s storeWithKeywords) Keywords() storage.KeywordRepository { return s.keywords }

func TestNewSearcher(t *testing.T) {
	store := newStore(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(store, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(store, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger and monitor", func(t *testing.T) {
		searcher, err := NewSearcher(store, embedder, WithLogger(slog.Default()), WithMonitor(nil))
		require.NoError(t, err)
		assert.Equal(t, NoopMonitor{}, searcher.monitor)
	})

	t.Run("nil scorer rejected", func(t *testing.T) {
		_, err := NewSearcher(store, embedder, WithScorer(nil))
		assert.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(store, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSearch_EmptyCorpus(t *testing.T) {
	searcher, err := NewSearcher(newStore(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), request("running shoes", ""))
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.TotalFound)
	assert.GreaterOrEqual(t, resp.ProcessingTimeSeconds, 0.0)
}

func TestSearch_ThresholdOrderAndScoring(t *testing.T) {
	store := newStore(t)
	near, _, _, post := seedCorpus(t, store)
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})

	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), request("qqq", core.CorpusAll))
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.TotalFound)

	first := resp.Results[0]
	assert.Equal(t, near.Id, first.ItemId)
	assert.Equal(t, core.KindKeyword, first.Kind)
	assert.Equal(t, "best running shoes", first.Label)
	assert.Equal(t, 1.0, first.Similarity)
	assert.InDelta(t, 70.0, first.Breakdown.Similarity, 1e-9)
	assert.Greater(t, first.Breakdown.Volume, 0.0)
	assert.Contains(t, first.RelatedTopics, "running")
	assert.NotEmpty(t, first.ContentSuggestions)

	second := resp.Results[1]
	assert.Equal(t, post.Id, second.ItemId)
	assert.Equal(t, core.KindPost, second.Kind)
	assert.InDelta(t, 0.8, second.Similarity, 1e-6)

	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Similarity, 0.5)
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.LessOrEqual(t, r.RelevanceScore, 100.0)
	}
}

func TestSearch_CorpusScopes(t *testing.T) {
	store := newStore(t)
	near, _, _, post := seedCorpus(t, store)
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})
	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := searcher.Search(ctx, request("qqq", core.CorpusKeywords))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, near.Id, resp.Results[0].ItemId)

	resp, err = searcher.Search(ctx, request("qqq", core.CorpusPosts))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, post.Id, resp.Results[0].ItemId)
}

func TestSearch_MaxResultsTruncates(t *testing.T) {
	store := newStore(t)
	near, _, _, _ := seedCorpus(t, store)
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})
	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)

	req := request("qqq", core.CorpusAll)
	req.MaxResults = 1
	resp, err := searcher.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, near.Id, resp.Results[0].ItemId)
}

func TestSearch_SkipsRecordsWithoutEmbeddings(t *testing.T) {
	store := newStore(t)
	_, _, pending, _ := seedCorpus(t, store)
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})
	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)

	req := request("qqq", core.CorpusKeywords)
	req.Threshold = 0.01
	resp, err := searcher.Search(context.Background(), req)
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, pending.Id, r.ItemId)
	}
}

func TestSearch_InvalidParametersSkipEmbedder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	monitor := &recordingMonitor{}
	searcher, err := NewSearcher(newStore(t), embedder, WithMonitor(monitor))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		req  core.SearchRequest
		want error
	}{
		{"blank query", core.SearchRequest{Query: "  ", Threshold: 0.5, MaxResults: 5}, core.ErrEmptyQuery},
		{"zero threshold", core.SearchRequest{Query: "shoes", Threshold: 0, MaxResults: 5}, core.ErrThresholdRange},
		{"threshold above one", core.SearchRequest{Query: "shoes", Threshold: 1.5, MaxResults: 5}, core.ErrThresholdRange},
		{"zero max results", core.SearchRequest{Query: "shoes", Threshold: 0.5}, core.ErrMaxResults},
		{"unknown corpus", core.SearchRequest{Query: "shoes", Threshold: 0.5, MaxResults: 5, Corpus: "tweets"}, core.ErrUnknownCorpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := searcher.Search(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidParameters)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 0, embedder.CallCount())
	assert.Len(t, monitor.failures, len(tests))
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	store := newStore(t)
	seedCorpus(t, store)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("provider down")
	}
	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), request("running shoes", core.CorpusAll))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Equal(t, core.KindEmbeddingUnavailable, core.KindOf(err))
}

func TestSearch_EmbeddingFailureKeepsCoreKind(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, core.InvalidParameters("embed", errors.New("text too long"))
	}
	searcher, err := NewSearcher(newStore(t), embedder)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), request("running shoes", core.CorpusAll))
	assert.Equal(t, core.KindInvalidParameters, core.KindOf(err))
}

func TestSearch_NotReady(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	report := &core.ReadinessReport{
		State:           core.StateNotReady,
		Recommendations: []string{"install search function match_by_embedding"},
	}
	gate := &stubGate{report: report, err: core.NotReady("ensure_ready", report)}
	searcher, err := NewSearcher(newStore(t), embedder, WithReadinessGate(gate))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), request("running shoes", core.CorpusAll))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotReady)

	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Same(t, report, coreErr.Report)
	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestSearch_GateInfrastructureFailure(t *testing.T) {
	gate := &stubGate{err: errors.New("connection refused")}
	searcher, err := NewSearcher(newStore(t), mock.NewMockEmbedder(), WithReadinessGate(gate))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), request("running shoes", core.CorpusAll))
	assert.ErrorIs(t, err, core.ErrRepositoryUnavailable)
}

func TestSearch_ReadyGatePasses(t *testing.T) {
	store := newStore(t)
	seedCorpus(t, store)
	gate := &stubGate{report: &core.ReadinessReport{State: core.StateReady}}
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})
	searcher, err := NewSearcher(store, embedder, WithReadinessGate(gate))
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), request("qqq", core.CorpusAll))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
	assert.Equal(t, 1, gate.calls)
}

func TestSearch_MissingMetadataSkipped(t *testing.T) {
	store := newStore(t)
	_, _, _, post := seedCorpus(t, store)
	wrapped := storeWithKeywords{Store: store, keywords: vanishingKeywords{store.Keywords()}}
	monitor := &recordingMonitor{}
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})
	searcher, err := NewSearcher(wrapped, embedder, WithMonitor(monitor))
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), request("qqq", core.CorpusAll))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, post.Id, resp.Results[0].ItemId)
	assert.Len(t, monitor.missing, 1)
	assert.Equal(t, 1, monitor.finished)
}

func TestSearch_CustomScorer(t *testing.T) {
	store := newStore(t)
	seedCorpus(t, store)
	policy := scoring.DefaultPolicy()
	policy.SimilarityWeight = 50
	scorer, err := scoring.NewScorer(policy)
	require.NoError(t, err)
	embedder := vectorEmbedder(map[string][]float32{"qqq": {1, 0}})
	searcher, err := NewSearcher(store, embedder, WithScorer(scorer))
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), request("qqq", core.CorpusKeywords))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.InDelta(t, 50.0, resp.Results[0].Breakdown.Similarity, 1e-9)
}

func TestSearchByVector(t *testing.T) {
	store := newStore(t)
	near, _, _, _ := seedCorpus(t, store)
	embedder := mock.NewMockEmbedder()
	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("finds neighbours without embedding", func(t *testing.T) {
		resp, err := searcher.SearchByVector(ctx, core.SearchQuery{
			Vector: []float32{1, 0}, Threshold: 0.9, MaxResults: 5, Corpus: core.CorpusKeywords,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, near.Id, resp.Results[0].ItemId)
		assert.Equal(t, 0, embedder.CallCount())
	})

	t.Run("zero max results yields empty response", func(t *testing.T) {
		resp, err := searcher.SearchByVector(ctx, core.SearchQuery{Vector: []float32{1, 0}, Threshold: 0.5})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.Equal(t, 0, resp.TotalFound)
	})

	t.Run("empty vector rejected", func(t *testing.T) {
		_, err := searcher.SearchByVector(ctx, core.SearchQuery{Threshold: 0.5, MaxResults: 5})
		assert.ErrorIs(t, err, core.ErrInvalidParameters)
		assert.ErrorIs(t, err, ErrEmptyVector)
	})

	t.Run("negative max results rejected", func(t *testing.T) {
		_, err := searcher.SearchByVector(ctx, core.SearchQuery{Vector: []float32{1, 0}, Threshold: 0.5, MaxResults: -1})
		assert.ErrorIs(t, err, core.ErrMaxResults)
	})
}

func TestSimilarToKeyword(t *testing.T) {
	store := newStore(t)
	near, _, pending, post := seedCorpus(t, store)
	embedder := mock.NewMockEmbedder()
	searcher, err := NewSearcher(store, embedder)
	require.NoError(t, err)
	ctx := context.Background()
	q := core.SearchQuery{Threshold: 0.5, MaxResults: 5}

	t.Run("excludes the keyword itself", func(t *testing.T) {
		resp, err := searcher.SimilarToKeyword(ctx, near.Id, q)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, post.Id, resp.Results[0].ItemId)
		assert.Equal(t, 0, embedder.CallCount())
	})

	t.Run("limit counts only other records", func(t *testing.T) {
		single := q
		single.MaxResults = 1
		resp, err := searcher.SimilarToKeyword(ctx, near.Id, single)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, post.Id, resp.Results[0].ItemId)
	})

	t.Run("unknown keyword", func(t *testing.T) {
		_, err := searcher.SimilarToKeyword(ctx, core.IDFromContent("missing"), q)
		assert.ErrorIs(t, err, core.ErrInvalidParameters)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("keyword without embedding", func(t *testing.T) {
		_, err := searcher.SimilarToKeyword(ctx, pending.Id, q)
		assert.ErrorIs(t, err, ErrKeywordNotEmbedded)
	})
}
