package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/backfill"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// embeddingProcessor generates embeddings for one corpus.
type embeddingProcessor struct {
	corpus     core.Corpus
	texts      func(ctx context.Context, ids ...core.ID) ([]core.ID, []string, error)
	save       func(ctx context.Context, id core.ID, vec []float32) error
	embedder   ai.Embedder
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newKeywordProcessor(repo storage.KeywordRepository, embedder ai.Embedder, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *embeddingProcessor {
	return &embeddingProcessor{
		corpus: core.CorpusKeywords,
		texts: func(ctx context.Context, ids ...core.ID) ([]core.ID, []string, error) {
			kws, err := repo.GetKeywords(ctx, ids...)
			if err != nil {
				return nil, nil, err
			}
			found := make([]core.ID, len(kws))
			texts := make([]string, len(kws))
			for i, kw := range kws {
				found[i] = kw.Id
				texts[i] = kw.Text
			}
			return found, texts, nil
		},
		save:       repo.SetKeywordEmbedding,
		embedder:   embedder,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("processor", "keyword_embeddings"),
	}
}

func newPostProcessor(repo storage.PostRepository, embedder ai.Embedder, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *embeddingProcessor {
	return &embeddingProcessor{
		corpus: core.CorpusPosts,
		texts: func(ctx context.Context, ids ...core.ID) ([]core.ID, []string, error) {
			posts, err := repo.GetPosts(ctx, ids...)
			if err != nil {
				return nil, nil, err
			}
			found := make([]core.ID, len(posts))
			texts := make([]string, len(posts))
			for i, p := range posts {
				found[i] = p.Id
				texts[i] = backfill.PostText(p)
			}
			return found, texts, nil
		},
		save:       repo.SetPostEmbedding,
		embedder:   embedder,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("processor", "post_embeddings"),
	}
}

// process generates embeddings for the specified records.
func (ep *embeddingProcessor) process(ctx context.Context, ids ...core.ID) error {
	ep.logger.Info("processing records for embeddings", "records", len(ids))

	ids = slices.Clone(ids)
	slices.SortFunc(ids, func(a, b core.ID) int { return slices.Compare(a[:], b[:]) })

	found, texts, err := ep.texts(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving records", "err", err)
		return err
	}
	if len(found) == 0 {
		return nil
	}

	ep.logger.Debug("generating embeddings", "records", len(texts))
	var embeddings [][]float32
	err = backfill.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = ep.embedder.EmbedTexts(ctx, texts)
		return err
	}, ep.maxRetries, ep.retryDelay)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(embeddings) != len(found) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(found), len(embeddings))
	}

	for i, id := range found {
		if !vector.Valid(embeddings[i], 0) {
			return fmt.Errorf("%w: %s %s", backfill.ErrInvalidEmbedding, ep.corpus, id)
		}
		if err := ep.save(ctx, id, vector.Normalize(embeddings[i])); err != nil {
			return err
		}
	}
	return nil
}
