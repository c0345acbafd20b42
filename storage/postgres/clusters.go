package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

type clusterRow struct {
	Id     uuid.UUID `db:"id"`
	BlogId uuid.UUID `db:"blog_id"`
	Name   string    `db:"cluster_name"`
}

// ClusterRepository implements storage.ClusterRepository for PostgreSQL.
type ClusterRepository struct {
	store *Store
}

var _ storage.ClusterRepository = (*ClusterRepository)(nil)

func (r *ClusterRepository) Close() error {
	return nil
}

// AddClusters upserts cluster rows. Membership lives in cluster_keywords.
func (r *ClusterRepository) AddClusters(ctx context.Context, clusters ...*core.SemanticCluster) error {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range clusters {
		if c.Id == core.NilID {
			c.Id = core.IDFromContent(c.BlogId.String() + ":cluster:" + c.Name)
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO keyword_clusters (id, blog_id, cluster_name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET cluster_name = EXCLUDED.cluster_name`, c.Id, c.BlogId, c.Name)
		if err != nil {
			return fmt.Errorf("insert cluster: %w", err)
		}
	}
	return tx.Commit()
}

// ListClusters returns clusters in ID order.
func (r *ClusterRepository) ListClusters(ctx context.Context, blogScope core.ID) ([]*core.SemanticCluster, error) {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var rows []clusterRow
	err := r.store.db.SelectContext(ctx, &rows, `
SELECT id, blog_id, cluster_name FROM keyword_clusters
WHERE $1::uuid IS NULL OR blog_id = $1
ORDER BY id`, scopeArg(blogScope))
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	out := make([]*core.SemanticCluster, 0, len(rows))
	for _, row := range rows {
		out = append(out, &core.SemanticCluster{Id: row.Id, BlogId: row.BlogId, Name: row.Name})
	}
	return out, nil
}

// ListClusteredKeywords returns embedded variations with a cluster assignment.
func (r *ClusterRepository) ListClusteredKeywords(ctx context.Context, blogScope core.ID) ([]*core.KeywordVariation, error) {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var rows []keywordRow
	err := r.store.db.SelectContext(ctx, &rows, keywordSelect+`
WHERE ck.cluster_id IS NOT NULL AND kv.embedding IS NOT NULL
  AND ($1::uuid IS NULL OR mk.blog_id = $1)
ORDER BY kv.id`, scopeArg(blogScope))
	if err != nil {
		return nil, fmt.Errorf("list clustered keywords: %w", err)
	}
	return keywordsFromRows(rows), nil
}
