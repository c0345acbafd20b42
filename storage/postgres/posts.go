package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

const postSelect = `
SELECT id, blog_id, title, excerpt, word_count, seo_score, focus_keyword, embedding, created_at, updated_at
FROM content_posts`

type postRow struct {
	Id           uuid.UUID        `db:"id"`
	BlogId       uuid.UUID        `db:"blog_id"`
	Title        string           `db:"title"`
	Excerpt      sql.NullString   `db:"excerpt"`
	WordCount    sql.NullInt64    `db:"word_count"`
	SeoScore     sql.NullInt64    `db:"seo_score"`
	FocusKeyword sql.NullString   `db:"focus_keyword"`
	Embedding    *pgvector.Vector `db:"embedding"`
	CreatedAt    time.Time        `db:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at"`
}

func (r *postRow) toCore() *core.ContentPost {
	post := &core.ContentPost{
		Id:         r.Id,
		BlogId:     r.BlogId,
		Title:      r.Title,
		Excerpt:    r.Excerpt.String,
		WordCount:  int(r.WordCount.Int64),
		SeoScore:   int(r.SeoScore.Int64),
		InsertedAt: r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Embedding != nil {
		post.Vector = r.Embedding.Slice()
	}
	if r.FocusKeyword.Valid && r.FocusKeyword.String != "" {
		post.Topics = []string{r.FocusKeyword.String}
	}
	return post
}

// PostRepository implements storage.PostRepository for PostgreSQL.
type PostRepository struct {
	store *Store
}

var _ storage.PostRepository = (*PostRepository)(nil)

func (r *PostRepository) Close() error {
	return nil
}

// AddPosts upserts posts. The first topic is stored as the focus keyword.
func (r *PostRepository) AddPosts(ctx context.Context, posts ...*core.ContentPost) ([]*core.ContentPost, error) {
	for _, post := range posts {
		if err := core.ValidatePost(post); err != nil {
			return nil, err
		}
	}

	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, post := range posts {
		if post.Id == core.NilID {
			post.Id = core.IDFromContent(post.BlogId.String() + ":" + post.Title)
		}
		if post.InsertedAt.IsZero() {
			post.InsertedAt = now
		}
		post.UpdatedAt = now
		var focus string
		if len(post.Topics) > 0 {
			focus = post.Topics[0]
		}

		var stored upsertResult
		err := tx.QueryRowxContext(ctx, `
INSERT INTO content_posts
    (id, blog_id, title, excerpt, word_count, seo_score, focus_keyword, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title, excerpt = EXCLUDED.excerpt, word_count = EXCLUDED.word_count,
    seo_score = EXCLUDED.seo_score, focus_keyword = EXCLUDED.focus_keyword,
    embedding = COALESCE(EXCLUDED.embedding, content_posts.embedding),
    updated_at = EXCLUDED.updated_at
RETURNING embedding, created_at`,
			post.Id, post.BlogId, post.Title, post.Excerpt, post.WordCount, post.SeoScore, focus,
			vectorArg(post.Vector), post.InsertedAt, post.UpdatedAt).StructScan(&stored)
		if err != nil {
			return nil, fmt.Errorf("insert content post: %w", err)
		}
		post.Vector, post.InsertedAt = stored.vector(), stored.CreatedAt
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) GetPost(ctx context.Context, id core.ID) (*core.ContentPost, error) {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var row postRow
	err := r.store.db.GetContext(ctx, &row, postSelect+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return row.toCore(), nil
}

func (r *PostRepository) GetPosts(ctx context.Context, ids ...core.ID) ([]*core.ContentPost, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var rows []postRow
	if err := r.store.db.SelectContext(ctx, &rows, postSelect+` WHERE id = ANY($1::uuid[]) ORDER BY id`, idArray(ids)); err != nil {
		return nil, fmt.Errorf("get posts: %w", err)
	}
	return postsFromRows(rows), nil
}

func (r *PostRepository) ListPostsMissingEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.ContentPost, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var rows []postRow
	err := r.store.db.SelectContext(ctx, &rows,
		postSelect+` WHERE embedding IS NULL AND id > $1 ORDER BY id LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts missing embeddings: %w", err)
	}
	return postsFromRows(rows), nil
}

func (r *PostRepository) SetPostEmbedding(ctx context.Context, id core.ID, vec []float32) error {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx,
		`UPDATE content_posts SET embedding = $1, updated_at = now() WHERE id = $2`, vectorArg(vec), id)
	return checkUpdated(res, err, "set post embedding")
}

// FindSimilarPosts calls find_similar_posts.
func (r *PostRepository) FindSimilarPosts(ctx context.Context, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	return r.store.callMatch(ctx, storage.FuncFindSimilarPosts, core.KindPost, q)
}

func postsFromRows(rows []postRow) []*core.ContentPost {
	out := make([]*core.ContentPost, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out
}
