package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

// DefaultBatchSize is the number of records sent to the embedder per call.
const DefaultBatchSize = 50

// Pipeline orchestrates the ingestion of keyword variations and posts.
// Records are stored synchronously; embeddings are generated on a worker pool.
type Pipeline struct {
	store         storage.Store
	embeddingPool *ants.Pool
	keywordProc   processor
	postProc      processor
	batchSize     int
	maxRetries    int
	retryDelay    time.Duration
	pending       sync.WaitGroup
	failed        atomic.Int64
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many records are embedded per provider call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithRetries sets the attempts per batch and the base backoff delay.
func WithRetries(maxAttempts int, delay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		p.maxRetries = maxAttempts
		p.retryDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.Store, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:         store,
		embeddingPool: embeddingPool,
		batchSize:     DefaultBatchSize,
		maxRetries:    3,
		retryDelay:    500 * time.Millisecond,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processors after options are applied (so they get final config)
	p.keywordProc = newKeywordProcessor(store.Keywords(), embedder, p.maxRetries, p.retryDelay, p.logger)
	p.postProc = newPostProcessor(store.Posts(), embedder, p.maxRetries, p.retryDelay, p.logger)

	return p, nil
}

// IngestKeywords validates and stores keyword variations, then embeds the ones
// that arrived without a vector asynchronously.
// Errors during async processing are logged but do not fail the ingestion.
func (p *Pipeline) IngestKeywords(ctx context.Context, keywords ...*core.KeywordVariation) ([]*core.KeywordVariation, error) {
	added, err := p.store.Keywords().AddKeywords(ctx, keywords...)
	if err != nil {
		return nil, err
	}

	ids := lo.FilterMap(added, func(kw *core.KeywordVariation, _ int) (core.ID, bool) {
		return kw.Id, !kw.HasEmbedding()
	})
	return added, p.submit(p.keywordProc, ids)
}

// IngestPosts validates and stores content posts, then embeds the ones that
// arrived without a vector asynchronously.
func (p *Pipeline) IngestPosts(ctx context.Context, posts ...*core.ContentPost) ([]*core.ContentPost, error) {
	added, err := p.store.Posts().AddPosts(ctx, posts...)
	if err != nil {
		return nil, err
	}

	ids := lo.FilterMap(added, func(post *core.ContentPost, _ int) (core.ID, bool) {
		return post.Id, !post.HasEmbedding()
	})
	return added, p.submit(p.postProc, ids)
}

// submit queues ids for embedding in batches of batchSize.
func (p *Pipeline) submit(proc processor, ids []core.ID) error {
	for start := 0; start < len(ids); start += p.batchSize {
		batch := ids[start:min(start+p.batchSize, len(ids))]
		p.pending.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer p.pending.Done()
			if err := proc.process(context.Background(), batch...); err != nil {
				p.failed.Add(int64(len(batch)))
				p.logger.Error("error processing embeddings", "records", len(batch), "err", err)
			}
		})
		if err != nil {
			p.pending.Done()
			return err
		}
	}
	return nil
}

// Wait blocks until every queued embedding batch has finished.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Failed returns the number of records whose async embedding failed.
func (p *Pipeline) Failed() int {
	return int(p.failed.Load())
}

// Release waits for queued work, then releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.pending.Wait()
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
