package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

// keywordSelect reads a variation with its tenant, main keyword and most
// relevant cluster.
const keywordSelect = `
SELECT kv.id, mk.blog_id, kv.main_keyword_id, kv.keyword, kv.embedding,
       kv.msv, kv.kw_difficulty, kv.cpc, kv.competition, kv.search_intent,
       mk.keyword AS main_keyword, ck.cluster_id, kv.created_at, kv.updated_at
FROM keyword_variations kv
JOIN main_keywords mk ON mk.id = kv.main_keyword_id
LEFT JOIN LATERAL (
    SELECT c.cluster_id FROM cluster_keywords c
    WHERE c.keyword_variation_id = kv.id
    ORDER BY c.relevance_score DESC NULLS LAST, c.cluster_id
    LIMIT 1
) ck ON true`

type keywordRow struct {
	Id            uuid.UUID        `db:"id"`
	BlogId        uuid.UUID        `db:"blog_id"`
	MainKeywordId uuid.UUID        `db:"main_keyword_id"`
	Keyword       string           `db:"keyword"`
	Embedding     *pgvector.Vector `db:"embedding"`
	Msv           *int             `db:"msv"`
	Difficulty    *int             `db:"kw_difficulty"`
	CPC           *float64         `db:"cpc"`
	Competition   sql.NullString   `db:"competition"`
	SearchIntent  sql.NullString   `db:"search_intent"`
	MainKeyword   sql.NullString   `db:"main_keyword"`
	ClusterId     *uuid.UUID       `db:"cluster_id"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

func (r *keywordRow) toCore() *core.KeywordVariation {
	kw := &core.KeywordVariation{
		Id:            r.Id,
		BlogId:        r.BlogId,
		MainKeywordId: r.MainKeywordId,
		Text:          r.Keyword,
		SearchVolume:  r.Msv,
		Difficulty:    r.Difficulty,
		CPC:           r.CPC,
		Competition:   core.ParseCompetition(r.Competition.String),
		SearchIntent:  core.ParseSearchIntent(r.SearchIntent.String),
		ClusterId:     r.ClusterId,
		InsertedAt:    r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Embedding != nil {
		kw.Vector = r.Embedding.Slice()
	}
	if r.MainKeyword.Valid && r.MainKeyword.String != "" {
		kw.Topics = []string{r.MainKeyword.String}
	}
	return kw
}

// KeywordRepository implements storage.KeywordRepository for PostgreSQL.
type KeywordRepository struct {
	store *Store
}

var _ storage.KeywordRepository = (*KeywordRepository)(nil)

// Close is a no-op; the pool is owned by the store.
func (r *KeywordRepository) Close() error {
	return nil
}

// AddKeywords upserts variations and their main keyword rows in one transaction.
// A variation without a MainKeywordId is filed under a main keyword named after
// its first topic, or its own text.
func (r *KeywordRepository) AddKeywords(ctx context.Context, keywords ...*core.KeywordVariation) ([]*core.KeywordVariation, error) {
	for _, kw := range keywords {
		if err := core.ValidateKeyword(kw); err != nil {
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
	for _, kw := range keywords {
		if err := insertKeyword(ctx, tx, kw, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit keywords: %w", err)
	}
	return keywords, nil
}

func insertKeyword(ctx context.Context, tx *sqlx.Tx, kw *core.KeywordVariation, now time.Time) error {
	mainText := kw.Text
	if len(kw.Topics) > 0 {
		mainText = kw.Topics[0]
	}
	if kw.MainKeywordId == core.NilID {
		kw.MainKeywordId = core.IDFromContent(kw.BlogId.String() + ":main:" + mainText)
	}
	if kw.Id == core.NilID {
		kw.Id = core.IDFromContent(kw.BlogId.String() + ":" + kw.Text)
	}
	if kw.InsertedAt.IsZero() {
		kw.InsertedAt = now
	}
	kw.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
INSERT INTO main_keywords (id, blog_id, keyword)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`, kw.MainKeywordId, kw.BlogId, mainText)
	if err != nil {
		return fmt.Errorf("insert main keyword: %w", err)
	}

	var stored upsertResult
	err = tx.QueryRowxContext(ctx, `
INSERT INTO keyword_variations
    (id, main_keyword_id, keyword, embedding, msv, kw_difficulty, cpc, competition, search_intent, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
ON CONFLICT (id) DO UPDATE SET
    keyword = EXCLUDED.keyword,
    embedding = COALESCE(EXCLUDED.embedding, keyword_variations.embedding),
    msv = EXCLUDED.msv, kw_difficulty = EXCLUDED.kw_difficulty, cpc = EXCLUDED.cpc,
    competition = EXCLUDED.competition, search_intent = EXCLUDED.search_intent,
    updated_at = EXCLUDED.updated_at
RETURNING embedding, created_at`,
		kw.Id, kw.MainKeywordId, kw.Text, vectorArg(kw.Vector), kw.SearchVolume, kw.Difficulty, kw.CPC,
		string(kw.Competition), string(kw.SearchIntent), kw.InsertedAt, kw.UpdatedAt).StructScan(&stored)
	if err != nil {
		return fmt.Errorf("insert keyword variation: %w", err)
	}
	kw.Vector, kw.InsertedAt = stored.vector(), stored.CreatedAt

	if kw.ClusterId != nil {
		_, err = tx.ExecContext(ctx, `
INSERT INTO cluster_keywords (cluster_id, keyword_variation_id, relevance_score)
VALUES ($1, $2, 1.0)
ON CONFLICT (cluster_id, keyword_variation_id) DO NOTHING`, *kw.ClusterId, kw.Id)
		if err != nil {
			return fmt.Errorf("assign cluster: %w", err)
		}
	}
	return nil
}

// GetKeyword retrieves a single variation by ID.
func (r *KeywordRepository) GetKeyword(ctx context.Context, id core.ID) (*core.KeywordVariation, error) {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var row keywordRow
	err := r.store.db.GetContext(ctx, &row, keywordSelect+` WHERE kv.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get keyword: %w", err)
	}
	return row.toCore(), nil
}

// GetKeywords retrieves the variations that exist among ids.
func (r *KeywordRepository) GetKeywords(ctx context.Context, ids ...core.ID) ([]*core.KeywordVariation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var rows []keywordRow
	err := r.store.db.SelectContext(ctx, &rows, keywordSelect+` WHERE kv.id = ANY($1::uuid[]) ORDER BY kv.id`, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("get keywords: %w", err)
	}
	return keywordsFromRows(rows), nil
}

// ListKeywordsMissingEmbeddings pages through variations without a vector.
func (r *KeywordRepository) ListKeywordsMissingEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.KeywordVariation, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var rows []keywordRow
	err := r.store.db.SelectContext(ctx, &rows,
		keywordSelect+` WHERE kv.embedding IS NULL AND kv.id > $1 ORDER BY kv.id LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list keywords missing embeddings: %w", err)
	}
	return keywordsFromRows(rows), nil
}

// SetKeywordEmbedding replaces the vector of one variation.
func (r *KeywordRepository) SetKeywordEmbedding(ctx context.Context, id core.ID, vec []float32) error {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx,
		`UPDATE keyword_variations SET embedding = $1, updated_at = now() WHERE id = $2`, vectorArg(vec), id)
	return checkUpdated(res, err, "set keyword embedding")
}

// FindSimilarKeywords calls find_similar_keywords.
func (r *KeywordRepository) FindSimilarKeywords(ctx context.Context, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	return r.store.callMatch(ctx, storage.FuncFindSimilarKeywords, core.KindKeyword, q)
}

func keywordsFromRows(rows []keywordRow) []*core.KeywordVariation {
	out := make([]*core.KeywordVariation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out
}
