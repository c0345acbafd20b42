package backfill

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/keywordlens/ai/mock"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/embedcache"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/storage/badger"
)

var testBlog = core.IDFromContent("backfill-blog")

func newStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seqID returns IDs that sort in the order of n.
func seqID(n int) core.ID {
	return core.ID{15: byte(n)}
}

func seedKeywords(t *testing.T, store storage.Store, texts ...string) {
	t.Helper()
	kws := make([]*core.KeywordVariation, len(texts))
	for i, text := range texts {
		kws[i] = &core.KeywordVariation{Id: seqID(i + 1), BlogId: testBlog, Text: text}
	}
	_, err := store.Keywords().AddKeywords(context.Background(), kws...)
	require.NoError(t, err)
}

func seedPosts(t *testing.T, store storage.Store, titles ...string) {
	t.Helper()
	posts := make([]*core.ContentPost, len(titles))
	for i, title := range titles {
		posts[i] = &core.ContentPost{Id: seqID(100 + i), BlogId: testBlog, Title: title, Excerpt: "about " + title}
	}
	_, err := store.Posts().AddPosts(context.Background(), posts...)
	require.NoError(t, err)
}

func testConfig() *Config {
	return &Config{
		BatchSize:      2,
		Workers:        2,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

type recorder struct {
	mu        sync.Mutex
	succeeded map[core.Corpus]int
	failed    map[core.Corpus]int
}

func newRecorder() *recorder {
	return &recorder{succeeded: map[core.Corpus]int{}, failed: map[core.Corpus]int{}}
}

func (r *recorder) RecordBackfill(corpus core.Corpus, succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded[corpus] += succeeded
	r.failed[corpus] += failed
}

func TestNewBackfiller_Validation(t *testing.T) {
	store := newStore(t)
	embedder := mock.NewMockEmbedder()

	_, err := NewBackfiller(nil, embedder, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewBackfiller(store, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewBackfiller(store, embedder, &Config{MaxRetries: 0})
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	b, err := NewBackfiller(store, embedder, nil)
	require.NoError(t, err)
	defer b.Release()
	assert.Equal(t, DefaultBatchSize, b.config.BatchSize)
	assert.GreaterOrEqual(t, b.config.Workers, 1)
}

func TestBackfiller_EmbedsEveryCorpus(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "running shoes", "trail shoes", "best running shoes", "running socks", "marathon plan", "5k plan", "hill repeats")
	seedPosts(t, store, "How to pick shoes", "Marathon week one", "Hill training")

	var progress bytes.Buffer
	rec := newRecorder()
	b, err := NewBackfiller(store, mock.NewMockEmbedder(), testConfig(), WithProgress(&progress), WithRecorder(rec))
	require.NoError(t, err)
	defer b.Release()

	ctx := context.Background()
	results, err := b.Run(ctx, core.CorpusAll)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, core.CorpusKeywords, results[0].Corpus)
	assert.Equal(t, 7, results[0].Embedded)
	assert.Equal(t, 0, results[0].Failed)
	assert.False(t, results[0].Resumed)
	assert.Equal(t, core.CorpusPosts, results[1].Corpus)
	assert.Equal(t, 3, results[1].Embedded)

	embedded, total, err := store.Schema().EmbeddingCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, embedded)
	assert.Equal(t, core.EmbeddingCounts{Keywords: 7, Posts: 3}, embedded)

	for _, corpus := range []core.Corpus{core.CorpusKeywords, core.CorpusPosts} {
		cp, err := store.Checkpoints().LoadCheckpoint(ctx, CheckpointName(corpus))
		require.NoError(t, err)
		assert.Nil(t, cp, "completed run removes its checkpoint")
	}

	assert.Equal(t, 7, rec.succeeded[core.CorpusKeywords])
	assert.Equal(t, 3, rec.succeeded[core.CorpusPosts])
	assert.Contains(t, progress.String(), "Backfill of keywords complete")
}

func TestBackfiller_StoresNormalizedVectors(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "running shoes")

	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{3, 4}
			}
			return out, nil
		},
	}
	b, err := NewBackfiller(store, embedder, testConfig())
	require.NoError(t, err)
	defer b.Release()

	_, err = b.Run(context.Background(), core.CorpusKeywords)
	require.NoError(t, err)

	kw, err := store.Keywords().GetKeyword(context.Background(), seqID(1))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, kw.Vector, 1e-6)
}

func TestBackfiller_PostTextIncludesExcerpt(t *testing.T) {
	store := newStore(t)
	seedPosts(t, store, "Hill training")

	var mu sync.Mutex
	var seen []string
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			mu.Lock()
			seen = append(seen, texts...)
			mu.Unlock()
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = mock.DeterministicVector(text, 8)
			}
			return out, nil
		},
	}
	b, err := NewBackfiller(store, embedder, testConfig())
	require.NoError(t, err)
	defer b.Release()

	_, err = b.Run(context.Background(), core.CorpusPosts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hill training\n\nabout Hill training"}, seen)
}

func TestBackfiller_NothingMissing(t *testing.T) {
	store := newStore(t)
	embedder := mock.NewMockEmbedder()

	b, err := NewBackfiller(store, embedder, testConfig())
	require.NoError(t, err)
	defer b.Release()

	results, err := b.Run(context.Background(), core.CorpusKeywords)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Embedded)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestBackfiller_FailedBatchesAreCountedAndSkipped(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "good one", "bad one", "good two", "good three")

	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				if strings.HasPrefix(text, "bad") {
					return nil, errors.New("provider rejected input")
				}
				out[i] = mock.DeterministicVector(text, 8)
			}
			return out, nil
		},
	}
	config := testConfig()
	config.BatchSize = 1
	rec := newRecorder()
	b, err := NewBackfiller(store, embedder, config, WithRecorder(rec))
	require.NoError(t, err)
	defer b.Release()

	ctx := context.Background()
	results, err := b.Run(ctx, core.CorpusKeywords)
	require.NoError(t, err)
	assert.Equal(t, 3, results[0].Embedded)
	assert.Equal(t, 1, results[0].Failed)
	assert.Equal(t, 1, rec.failed[core.CorpusKeywords])

	bad, err := store.Keywords().GetKeyword(ctx, seqID(2))
	require.NoError(t, err)
	assert.False(t, bad.HasEmbedding())

	// the failed record is retried by the next run
	remaining, err := store.Keywords().ListKeywordsMissingEmbeddings(ctx, core.NilID, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "bad one", remaining[0].Text)
}

func TestBackfiller_EmbeddingCountMismatch(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "a", "b")

	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		},
	}
	b, err := NewBackfiller(store, embedder, testConfig())
	require.NoError(t, err)
	defer b.Release()

	results, err := b.Run(context.Background(), core.CorpusKeywords)
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].Embedded)
	assert.Equal(t, 2, results[0].Failed)
}

func TestBackfiller_RejectsWrongDimensions(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "a")

	config := testConfig()
	config.Dimensions = 16
	embedder := &mock.MockEmbedder{Dimensions: 8}
	b, err := NewBackfiller(store, embedder, config)
	require.NoError(t, err)
	defer b.Release()

	results, err := b.Run(context.Background(), core.CorpusKeywords)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Failed)
}

func TestBackfiller_ResumesFromCheckpoint(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "k1", "k2", "k3", "k4", "k5", "k6")
	ctx := context.Background()

	err := store.Checkpoints().SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: CheckpointName(core.CorpusKeywords),
		LastId:        seqID(3),
		Processed:     3,
	})
	require.NoError(t, err)

	b, err := NewBackfiller(store, mock.NewMockEmbedder(), testConfig())
	require.NoError(t, err)
	defer b.Release()

	results, err := b.Run(ctx, core.CorpusKeywords)
	require.NoError(t, err)
	assert.True(t, results[0].Resumed)
	assert.Equal(t, 3, results[0].Embedded)

	first, err := store.Keywords().GetKeyword(ctx, seqID(1))
	require.NoError(t, err)
	assert.False(t, first.HasEmbedding(), "records before the checkpoint are left alone")

	last, err := store.Keywords().GetKeyword(ctx, seqID(6))
	require.NoError(t, err)
	assert.True(t, last.HasEmbedding())
}

func TestBackfiller_PublishesInvalidation(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "running shoes")

	bus := embedcache.NewBus()
	defer bus.Close()
	events, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	b, err := NewBackfiller(store, mock.NewMockEmbedder(), testConfig(), WithInvalidationBus(bus))
	require.NoError(t, err)
	defer b.Release()

	_, err = b.Run(context.Background(), core.CorpusKeywords)
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, embedcache.ReasonReembedded, e.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected an invalidation event")
	}
}

func TestBackfiller_NoInvalidationWithoutWrites(t *testing.T) {
	store := newStore(t)

	bus := embedcache.NewBus()
	defer bus.Close()
	events, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	b, err := NewBackfiller(store, mock.NewMockEmbedder(), testConfig(), WithInvalidationBus(bus))
	require.NoError(t, err)
	defer b.Release()

	_, err = b.Run(context.Background(), core.CorpusAll)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBackfiller_UnknownCorpus(t *testing.T) {
	b, err := NewBackfiller(newStore(t), mock.NewMockEmbedder(), testConfig())
	require.NoError(t, err)
	defer b.Release()

	_, err = b.Run(context.Background(), core.Corpus("comments"))
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
	assert.ErrorIs(t, err, core.ErrUnknownCorpus)
}

func TestBackfiller_CanceledContext(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "a", "b", "c")

	b, err := NewBackfiller(store, mock.NewMockEmbedder(), testConfig())
	require.NoError(t, err)
	defer b.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := b.Run(ctx, core.CorpusAll)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1, "posts are not attempted after keywords stop")
	assert.Equal(t, 0, results[0].Embedded)
}

func TestPageIterator_AdvancesPastEveryPage(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "k1", "k2", "k3", "k4", "k5")

	it := newPageIterator(keywordTarget(store.Keywords()), 2)
	var pages [][]string
	err := it.ForEach(context.Background(), core.NilID, func(page []record) error {
		texts := make([]string, len(page))
		for i, r := range page {
			texts[i] = r.text
		}
		pages = append(pages, texts)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"k1", "k2"}, {"k3", "k4"}, {"k5"}}, pages)
}

func TestPageIterator_StopsOnCallbackError(t *testing.T) {
	store := newStore(t)
	seedKeywords(t, store, "k1", "k2", "k3")

	boom := errors.New("boom")
	calls := 0
	it := newPageIterator(keywordTarget(store.Keywords()), 1)
	err := it.ForEach(context.Background(), core.NilID, func(page []record) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
