package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// Matcher implements storage.Matcher by scanning both corpora in one read transaction.
type Matcher struct {
	backend *Backend
}

var _ storage.Matcher = (*Matcher)(nil)

// NewMatcher creates a new Matcher.
func NewMatcher(backend *Backend) *Matcher {
	return &Matcher{backend: backend}
}

// MatchByEmbedding ranks keywords and posts together.
func (m *Matcher) MatchByEmbedding(ctx context.Context, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	var candidates []vector.Candidate
	err := m.backend.WithTx(func(tx *badger.Txn) error {
		keywords, err := keywordCandidates(ctx, tx, q.BlogScope)
		if err != nil {
			return err
		}
		posts, err := postCandidates(ctx, tx, q.BlogScope)
		if err != nil {
			return err
		}
		candidates = append(keywords, posts...)
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return vector.TopK(q.Vector, candidates, q.Threshold, q.Limit), nil
}
