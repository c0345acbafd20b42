package badger

import (
	"github.com/poiesic/keywordlens/storage"
)

// Store implements storage.Store on a single BadgerDB database.
type Store struct {
	backend     *Backend
	keywords    *KeywordRepository
	posts       *PostRepository
	clusters    *ClusterRepository
	matcher     *Matcher
	schema      *Schema
	checkpoints *CheckpointRepository
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) a database at path.
func NewStore(path string) (storage.Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStore(backend), nil
}

func newStore(backend *Backend) *Store {
	keywords := NewKeywordRepository(backend)
	posts := NewPostRepository(backend)
	matcher := NewMatcher(backend)
	return &Store{
		backend:     backend,
		keywords:    keywords,
		posts:       posts,
		clusters:    NewClusterRepository(backend),
		matcher:     matcher,
		schema:      NewSchema(backend, keywords, posts, matcher),
		checkpoints: NewCheckpointRepository(backend),
	}
}

func (s *Store) Keywords() storage.KeywordRepository       { return s.keywords }
func (s *Store) Posts() storage.PostRepository             { return s.posts }
func (s *Store) Clusters() storage.ClusterRepository       { return s.clusters }
func (s *Store) Matcher() storage.Matcher                  { return s.matcher }
func (s *Store) Schema() storage.SchemaInspector           { return s.schema }
func (s *Store) Checkpoints() storage.CheckpointRepository { return s.checkpoints }

// Close closes the database. Repositories must not be used afterwards.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}
