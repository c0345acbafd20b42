package backfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// record is the part of a keyword or post the backfill needs.
type record struct {
	id   core.ID
	text string
}

// target adapts one corpus of the store to the backfill.
type target struct {
	corpus core.Corpus
	list   func(ctx context.Context, after core.ID, limit int) ([]record, error)
	save   func(ctx context.Context, id core.ID, vec []float32) error
}

func keywordTarget(repo storage.KeywordRepository) target {
	return target{
		corpus: core.CorpusKeywords,
		list: func(ctx context.Context, after core.ID, limit int) ([]record, error) {
			kws, err := repo.ListKeywordsMissingEmbeddings(ctx, after, limit)
			if err != nil {
				return nil, err
			}
			out := make([]record, len(kws))
			for i, kw := range kws {
				out[i] = record{id: kw.Id, text: kw.Text}
			}
			return out, nil
		},
		save: repo.SetKeywordEmbedding,
	}
}

func postTarget(repo storage.PostRepository) target {
	return target{
		corpus: core.CorpusPosts,
		list: func(ctx context.Context, after core.ID, limit int) ([]record, error) {
			posts, err := repo.ListPostsMissingEmbeddings(ctx, after, limit)
			if err != nil {
				return nil, err
			}
			out := make([]record, len(posts))
			for i, p := range posts {
				out[i] = record{id: p.Id, text: PostText(p)}
			}
			return out, nil
		},
		save: repo.SetPostEmbedding,
	}
}

// PostText is the text embedded for a post: its title, then its excerpt.
func PostText(p *core.ContentPost) string {
	title := strings.TrimSpace(p.Title)
	excerpt := strings.TrimSpace(p.Excerpt)
	if excerpt == "" {
		return title
	}
	return title + "\n\n" + excerpt
}

// BatchProcessor embeds one batch of records and writes the vectors back.
type BatchProcessor struct {
	embedder       ai.Embedder
	dimensions     int
	maxRetries     int
	retryBaseDelay time.Duration
}

// process embeds records, normalizes the vectors and saves them.
// Vectors are checked against the expected dimension when one is configured.
func (bp *BatchProcessor) process(ctx context.Context, t target, records []record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(records), len(embeddings))
	}

	for i, r := range records {
		if !vector.Valid(embeddings[i], bp.dimensions) {
			return fmt.Errorf("%w: record %s", ErrInvalidEmbedding, r.id)
		}
		if err := t.save(ctx, r.id, vector.Normalize(embeddings[i])); err != nil {
			return fmt.Errorf("failed to update %s %s: %w", t.corpus, r.id, err)
		}
	}
	return nil
}
