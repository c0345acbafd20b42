package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// KeywordRepository implements storage.KeywordRepository for BadgerDB.
type KeywordRepository struct {
	backend *Backend
}

var _ storage.KeywordRepository = (*KeywordRepository)(nil)

// NewKeywordRepository creates a new KeywordRepository.
func NewKeywordRepository(backend *Backend) *KeywordRepository {
	return &KeywordRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the store.
func (r *KeywordRepository) Close() error {
	return nil
}

// keywordID derives the ID of a variation from its tenant and text.
func keywordID(kw *core.KeywordVariation) core.ID {
	return core.IDFromContent(kw.BlogId.String() + ":" + kw.Text)
}

// AddKeywords stores keyword variations, replacing records with the same ID.
// A stored vector survives an incoming record that carries none, and the
// original insertion time is kept.
func (r *KeywordRepository) AddKeywords(ctx context.Context, keywords ...*core.KeywordVariation) ([]*core.KeywordVariation, error) {
	for _, kw := range keywords {
		if err := core.ValidateKeyword(kw); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, kw := range keywords {
			if kw.Id == core.NilID {
				kw.Id = keywordID(kw)
			}
			existing, err := readKeyword(tx, kw.Id)
			if err != nil {
				return err
			}
			if existing != nil {
				kw.InsertedAt = existing.InsertedAt
				if !kw.HasEmbedding() {
					kw.Vector = existing.Vector
				}
			}
			if kw.InsertedAt.IsZero() {
				kw.InsertedAt = now
			}
			kw.UpdatedAt = now

			value, err := storage.MarshalKeyword(kw)
			if err != nil {
				return err
			}
			if err := tx.Set(makeKeywordKey(kw.Id), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return keywords, nil
}

// GetKeyword retrieves a single keyword variation by ID.
func (r *KeywordRepository) GetKeyword(ctx context.Context, id core.ID) (*core.KeywordVariation, error) {
	var result *core.KeywordVariation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readKeyword(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetKeywords retrieves multiple keyword variations by their IDs.
func (r *KeywordRepository) GetKeywords(ctx context.Context, ids ...core.ID) ([]*core.KeywordVariation, error) {
	var result []*core.KeywordVariation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			kw, err := readKeyword(tx, id)
			if err != nil {
				return err
			}
			if kw != nil {
				result = append(result, kw)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListKeywordsMissingEmbeddings pages through variations without a vector in ID order.
func (r *KeywordRepository) ListKeywordsMissingEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.KeywordVariation, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.KeywordVariation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makeKeywordKey(after)
		return scan(ctx, tx, []byte(keywordPrefix), startKey, func(key, val []byte) (bool, error) {
			if bytes.Equal(key, startKey) {
				return true, nil
			}
			kw, err := storage.UnmarshalKeyword(val)
			if err != nil {
				return false, err
			}
			if !kw.HasEmbedding() {
				results = append(results, kw)
			}
			return len(results) < limit, nil
		})
	}, false)
	return results, err
}

// SetKeywordEmbedding replaces the vector of one variation.
func (r *KeywordRepository) SetKeywordEmbedding(ctx context.Context, id core.ID, vec []float32) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		kw, err := readKeyword(tx, id)
		if err != nil {
			return err
		}
		if kw == nil {
			return storage.ErrNotFound
		}
		kw.Vector = vec
		kw.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalKeyword(kw)
		if err != nil {
			return err
		}
		if err := tx.Set(makeKeywordKey(id), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FindSimilarKeywords scans every embedded variation in scope.
func (r *KeywordRepository) FindSimilarKeywords(ctx context.Context, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	var candidates []vector.Candidate
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		candidates, err = keywordCandidates(ctx, tx, q.BlogScope)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return vector.TopK(q.Vector, candidates, q.Threshold, q.Limit), nil
}

func keywordCandidates(ctx context.Context, tx *badger.Txn, blogScope core.ID) ([]vector.Candidate, error) {
	return collectCandidates(ctx, tx, []byte(keywordPrefix), core.KindKeyword, blogScope, func(val []byte) (vectorRecord, error) {
		kw, err := storage.UnmarshalKeyword(val)
		if err != nil {
			return vectorRecord{}, err
		}
		return vectorRecord{id: kw.Id, blogId: kw.BlogId, vector: kw.Vector}, nil
	})
}

// readKeyword reads a variation inside tx. Returns nil, nil if it does not exist.
func readKeyword(tx *badger.Txn, id core.ID) (*core.KeywordVariation, error) {
	val, err := get(tx, makeKeywordKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalKeyword(val)
}
