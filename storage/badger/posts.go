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

// PostRepository implements storage.PostRepository for BadgerDB.
type PostRepository struct {
	backend *Backend
}

var _ storage.PostRepository = (*PostRepository)(nil)

// NewPostRepository creates a new PostRepository.
func NewPostRepository(backend *Backend) *PostRepository {
	return &PostRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the store.
func (r *PostRepository) Close() error {
	return nil
}

// postID derives the ID of a post from its tenant and title.
func postID(post *core.ContentPost) core.ID {
	return core.IDFromContent(post.BlogId.String() + ":" + post.Title)
}

// AddPosts stores content posts, replacing records with the same ID.
// Stored vectors and insertion times survive, as for keywords.
func (r *PostRepository) AddPosts(ctx context.Context, posts ...*core.ContentPost) ([]*core.ContentPost, error) {
	for _, post := range posts {
		if err := core.ValidatePost(post); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, post := range posts {
			if post.Id == core.NilID {
				post.Id = postID(post)
			}
			existing, err := readPost(tx, post.Id)
			if err != nil {
				return err
			}
			if existing != nil {
				post.InsertedAt = existing.InsertedAt
				if !post.HasEmbedding() {
					post.Vector = existing.Vector
				}
			}
			if post.InsertedAt.IsZero() {
				post.InsertedAt = now
			}
			post.UpdatedAt = now

			value, err := storage.MarshalPost(post)
			if err != nil {
				return err
			}
			if err := tx.Set(makePostKey(post.Id), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *PostRepository) GetPost(ctx context.Context, id core.ID) (*core.ContentPost, error) {
	var result *core.ContentPost
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPost(tx, id)
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

func (r *PostRepository) GetPosts(ctx context.Context, ids ...core.ID) ([]*core.ContentPost, error) {
	var result []*core.ContentPost
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			post, err := readPost(tx, id)
			if err != nil {
				return err
			}
			if post != nil {
				result = append(result, post)
			}
		}
		return nil
	}, false)
	return result, err
}

func (r *PostRepository) ListPostsMissingEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.ContentPost, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ContentPost
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePostKey(after)
		return scan(ctx, tx, []byte(postPrefix), startKey, func(key, val []byte) (bool, error) {
			if bytes.Equal(key, startKey) {
				return true, nil
			}
			post, err := storage.UnmarshalPost(val)
			if err != nil {
				return false, err
			}
			if !post.HasEmbedding() {
				results = append(results, post)
			}
			return len(results) < limit, nil
		})
	}, false)
	return results, err
}

func (r *PostRepository) SetPostEmbedding(ctx context.Context, id core.ID, vec []float32) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		post, err := readPost(tx, id)
		if err != nil {
			return err
		}
		if post == nil {
			return storage.ErrNotFound
		}
		post.Vector = vec
		post.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalPost(post)
		if err != nil {
			return err
		}
		if err := tx.Set(makePostKey(id), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FindSimilarPosts scans every embedded post in scope.
func (r *PostRepository) FindSimilarPosts(ctx context.Context, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	var candidates []vector.Candidate
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		candidates, err = postCandidates(ctx, tx, q.BlogScope)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return vector.TopK(q.Vector, candidates, q.Threshold, q.Limit), nil
}

func postCandidates(ctx context.Context, tx *badger.Txn, blogScope core.ID) ([]vector.Candidate, error) {
	return collectCandidates(ctx, tx, []byte(postPrefix), core.KindPost, blogScope, func(val []byte) (vectorRecord, error) {
		post, err := storage.UnmarshalPost(val)
		if err != nil {
			return vectorRecord{}, err
		}
		return vectorRecord{id: post.Id, blogId: post.BlogId, vector: post.Vector}, nil
	})
}

// readPost reads a post inside tx. Returns nil, nil if it does not exist.
func readPost(tx *badger.Txn, id core.ID) (*core.ContentPost, error) {
	val, err := get(tx, makePostKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalPost(val)
}
