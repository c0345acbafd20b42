package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

// ClusterRepository implements storage.ClusterRepository for BadgerDB.
type ClusterRepository struct {
	backend *Backend
}

var _ storage.ClusterRepository = (*ClusterRepository)(nil)

// NewClusterRepository creates a new ClusterRepository.
func NewClusterRepository(backend *Backend) *ClusterRepository {
	return &ClusterRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the store.
func (r *ClusterRepository) Close() error {
	return nil
}

// AddClusters stores clusters. Clusters without an ID get one derived from tenant and name.
func (r *ClusterRepository) AddClusters(ctx context.Context, clusters ...*core.SemanticCluster) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, c := range clusters {
			if c.Id == core.NilID {
				c.Id = core.IDFromContent(c.BlogId.String() + ":cluster:" + c.Name)
			}
			value, err := storage.MarshalCluster(c)
			if err != nil {
				return err
			}
			if err := tx.Set(makeClusterKey(c.Id), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ListClusters returns clusters in ID order.
func (r *ClusterRepository) ListClusters(ctx context.Context, blogScope core.ID) ([]*core.SemanticCluster, error) {
	var results []*core.SemanticCluster
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scan(ctx, tx, []byte(clusterPrefix), nil, func(_, val []byte) (bool, error) {
			c, err := storage.UnmarshalCluster(val)
			if err != nil {
				return false, err
			}
			if blogScope == core.NilID || c.BlogId == blogScope {
				results = append(results, c)
			}
			return true, nil
		})
	}, false)
	return results, err
}

// ListClusteredKeywords returns embedded variations with a cluster assigned.
func (r *ClusterRepository) ListClusteredKeywords(ctx context.Context, blogScope core.ID) ([]*core.KeywordVariation, error) {
	var results []*core.KeywordVariation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scan(ctx, tx, []byte(keywordPrefix), nil, func(_, val []byte) (bool, error) {
			kw, err := storage.UnmarshalKeyword(val)
			if err != nil {
				return false, err
			}
			if kw.ClusterId == nil || !kw.HasEmbedding() {
				return true, nil
			}
			if blogScope == core.NilID || kw.BlogId == blogScope {
				results = append(results, kw)
			}
			return true, nil
		})
	}, false)
	return results, err
}
