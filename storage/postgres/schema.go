// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

// functionDDL holds the CREATE OR REPLACE statement of each search function.
// All three take (query_embedding, match_threshold, match_count, target_blog_id)
// and return rows ordered by similarity descending, then ID.
//
// The threshold is widened by vector.Epsilon (1e-6) so identical vectors whose
// distance rounds slightly above zero survive a threshold of 1.0. vector.Rank
// applies the exact cut.
var functionDDL = map[string]string{
	storage.FuncFindSimilarKeywords: `
CREATE OR REPLACE FUNCTION find_similar_keywords(
    query_embedding vector,
    match_threshold float DEFAULT 0.7,
    match_count int DEFAULT 10,
    target_blog_id uuid DEFAULT NULL
) RETURNS TABLE (item_id uuid, similarity float)
LANGUAGE sql STABLE AS $$
    SELECT kv.id, 1 - (kv.embedding <=> query_embedding)
    FROM keyword_variations kv
    JOIN main_keywords mk ON mk.id = kv.main_keyword_id
    WHERE kv.embedding IS NOT NULL
      AND (target_blog_id IS NULL OR mk.blog_id = target_blog_id)
      AND 1 - (kv.embedding <=> query_embedding) >= match_threshold - 1e-6
    ORDER BY 2 DESC, 1
    LIMIT match_count
$$`,
	storage.FuncFindSimilarPosts: `
CREATE OR REPLACE FUNCTION find_similar_posts(
    query_embedding vector,
    match_threshold float DEFAULT 0.7,
    match_count int DEFAULT 10,
    target_blog_id uuid DEFAULT NULL
) RETURNS TABLE (item_id uuid, similarity float)
LANGUAGE sql STABLE AS $$
    SELECT cp.id, 1 - (cp.embedding <=> query_embedding)
    FROM content_posts cp
    WHERE cp.embedding IS NOT NULL
      AND (target_blog_id IS NULL OR cp.blog_id = target_blog_id)
      AND 1 - (cp.embedding <=> query_embedding) >= match_threshold - 1e-6
    ORDER BY 2 DESC, 1
    LIMIT match_count
$$`,
	storage.FuncMatchByEmbedding: `
CREATE OR REPLACE FUNCTION match_by_embedding(
    query_embedding vector,
    match_threshold float DEFAULT 0.7,
    match_count int DEFAULT 10,
    target_blog_id uuid DEFAULT NULL
) RETURNS TABLE (item_id uuid, item_kind text, similarity float)
LANGUAGE sql STABLE AS $$
    SELECT m.item_id, m.item_kind, m.similarity FROM (
        SELECT k.item_id, 'keyword'::text AS item_kind, k.similarity
        FROM find_similar_keywords(query_embedding, match_threshold, match_count, target_blog_id) k
        UNION ALL
        SELECT p.item_id, 'post'::text AS item_kind, p.similarity
        FROM find_similar_posts(query_embedding, match_threshold, match_count, target_blog_id) p
    ) m
    ORDER BY m.similarity DESC, m.item_kind, m.item_id
    LIMIT match_count
$$`,
}

// installOrder creates match_by_embedding last since it calls the other two.
var installOrder = []string{
	storage.FuncFindSimilarKeywords,
	storage.FuncFindSimilarPosts,
	storage.FuncMatchByEmbedding,
}

// inspectedExtensions are reported by Extensions when installed.
var inspectedExtensions = []string{"pg_trgm", "vector"}

// Schema implements storage.SchemaInspector against the Postgres catalog.
type Schema struct {
	store *Store
}

var _ storage.SchemaInspector = (*Schema)(nil)

// FunctionsAvailable looks the names up in pg_proc within the current schema.
func (s *Schema) FunctionsAvailable(ctx context.Context, names []string) (map[string]bool, error) {
	ctx, cancel := s.store.bounded(ctx)
	defer cancel()

	var found []string
	err := s.store.db.SelectContext(ctx, &found, `
SELECT DISTINCT p.proname
FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname = current_schema() AND p.proname = ANY($1)`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("inspect functions: %w", err)
	}

	available := make(map[string]bool, len(names))
	for _, name := range names {
		available[name] = false
	}
	for _, name := range found {
		available[name] = true
	}
	return available, nil
}

// Extensions reports installed extensions relevant to search.
func (s *Schema) Extensions(ctx context.Context) ([]core.Extension, error) {
	ctx, cancel := s.store.bounded(ctx)
	defer cancel()

	var exts []core.Extension
	err := s.store.db.SelectContext(ctx, &exts, `
SELECT extname AS name, extversion AS version
FROM pg_extension
WHERE extname = ANY($1)
ORDER BY extname`, pq.Array(inspectedExtensions))
	if err != nil {
		return nil, fmt.Errorf("inspect extensions: %w", err)
	}
	if exts == nil {
		exts = []core.Extension{}
	}
	return exts, nil
}

// RequiredExtensions returns the pgvector extension.
func (s *Schema) RequiredExtensions() []string {
	return []string{"vector"}
}

// EmbeddingCounts counts embedded and total rows per corpus in one statement.
func (s *Schema) EmbeddingCounts(ctx context.Context) (core.EmbeddingCounts, core.EmbeddingCounts, error) {
	ctx, cancel := s.store.bounded(ctx)
	defer cancel()

	var embedded, total core.EmbeddingCounts
	err := s.store.db.QueryRowxContext(ctx, `
SELECT
    (SELECT count(*) FROM keyword_variations WHERE embedding IS NOT NULL),
    (SELECT count(*) FROM keyword_variations),
    (SELECT count(*) FROM content_posts WHERE embedding IS NOT NULL),
    (SELECT count(*) FROM content_posts)`).Scan(&embedded.Keywords, &total.Keywords, &embedded.Posts, &total.Posts)
	if err != nil {
		return embedded, total, fmt.Errorf("count embeddings: %w", err)
	}
	return embedded, total, nil
}

// InstallFunctions runs CREATE OR REPLACE for each named function in one transaction.
func (s *Schema) InstallFunctions(ctx context.Context, names []string) error {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := functionDDL[name]; !ok {
			return fmt.Errorf("%w: %s", storage.ErrUnknownFunction, name)
		}
		wanted[name] = true
	}

	ctx, cancel := s.store.bounded(ctx)
	defer cancel()

	tx, err := s.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range installOrder {
		if !wanted[name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, functionDDL[name]); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		s.store.logger.Info("installed search function", "name", name)
	}
	return tx.Commit()
}

// ProbeFunction calls the function with threshold 0.1 and count 1.
func (s *Schema) ProbeFunction(ctx context.Context, name string, probe []float32) error {
	if _, ok := functionDDL[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrUnknownFunction, name)
	}
	ctx, cancel := s.store.bounded(ctx)
	defer cancel()

	var n int
	query := fmt.Sprintf(`SELECT count(*) FROM %s($1, 0.1, 1)`, name)
	if err := s.store.db.GetContext(ctx, &n, query, vectorArg(probe)); err != nil {
		return fmt.Errorf("probe %s: %w", name, err)
	}
	return nil
}

// Matcher implements storage.Matcher with match_by_embedding.
type Matcher struct {
	store *Store
}

var _ storage.Matcher = (*Matcher)(nil)

type matchRow struct {
	ItemId     core.ID `db:"item_id"`
	ItemKind   string  `db:"item_kind"`
	Similarity float64 `db:"similarity"`
}

// MatchByEmbedding calls match_by_embedding.
func (m *Matcher) MatchByEmbedding(ctx context.Context, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	if q.Limit <= 0 {
		return []core.SimilarityMatch{}, nil
	}
	ctx, cancel := m.store.bounded(ctx)
	defer cancel()

	var rows []matchRow
	err := m.store.db.SelectContext(ctx, &rows,
		`SELECT item_id, item_kind, similarity FROM match_by_embedding($1, $2, $3, $4)`,
		vectorArg(q.Vector), q.Threshold, q.Limit, scopeArg(q.BlogScope))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", storage.FuncMatchByEmbedding, err)
	}

	out := make([]core.SimilarityMatch, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.SimilarityMatch{ItemId: row.ItemId, Kind: core.ItemKind(row.ItemKind), Similarity: row.Similarity})
	}
	return out, nil
}

// callMatch runs a single-corpus search function.
func (s *Store) callMatch(ctx context.Context, fn string, kind core.ItemKind, q storage.NeighborQuery) ([]core.SimilarityMatch, error) {
	if q.Limit <= 0 {
		return []core.SimilarityMatch{}, nil
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var rows []matchRow
	err := s.db.SelectContext(ctx, &rows,
		fmt.Sprintf(`SELECT item_id, similarity FROM %s($1, $2, $3, $4)`, fn),
		vectorArg(q.Vector), q.Threshold, q.Limit, scopeArg(q.BlogScope))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	out := make([]core.SimilarityMatch, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.SimilarityMatch{ItemId: row.ItemId, Kind: kind, Similarity: row.Similarity})
	}
	return out, nil
}

// vectorArg converts an embedding to a nullable vector parameter.
func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// upsertResult is what an upsert reports back: the vector and insertion time
// that survived a conflict.
type upsertResult struct {
	Embedding *pgvector.Vector `db:"embedding"`
	CreatedAt time.Time        `db:"created_at"`
}

func (u upsertResult) vector() []float32 {
	if u.Embedding == nil {
		return nil
	}
	return u.Embedding.Slice()
}

// idArray converts IDs to a text[] parameter.
func idArray(ids []core.ID) any {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}

// checkUpdated maps a zero-row UPDATE to storage.ErrNotFound.
func checkUpdated(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
