package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultMaxOpenConns = 10
)

// Config holds connection settings.
type Config struct {
	DSN          string
	QueryTimeout time.Duration
	MaxOpenConns int
}

// Store implements storage.Store on a PostgreSQL database.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  *slog.Logger

	keywords    *KeywordRepository
	posts       *PostRepository
	clusters    *ClusterRepository
	matcher     *Matcher
	schema      *Schema
	checkpoints *CheckpointRepository
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithQueryTimeout bounds every statement issued by the store.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) error {
		if d <= 0 {
			return fmt.Errorf("query timeout must be positive, got %v", d)
		}
		s.timeout = d
		return nil
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger.With("component", "postgres")
		return nil
	}
}

// Open connects to PostgreSQL and prepares the checkpoint table.
func Open(ctx context.Context, cfg Config, opts ...Option) (storage.Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)

	if cfg.QueryTimeout > 0 {
		opts = append([]Option{WithQueryTimeout(cfg.QueryTimeout)}, opts...)
	}
	store, err := NewStore(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := store.checkpoints.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		timeout: DefaultQueryTimeout,
		logger:  slog.Default().With("component", "postgres"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.keywords = &KeywordRepository{store: s}
	s.posts = &PostRepository{store: s}
	s.clusters = &ClusterRepository{store: s}
	s.matcher = &Matcher{store: s}
	s.schema = &Schema{store: s}
	s.checkpoints = &CheckpointRepository{store: s}
	return s, nil
}

func (s *Store) Keywords() storage.KeywordRepository       { return s.keywords }
func (s *Store) Posts() storage.PostRepository             { return s.posts }
func (s *Store) Clusters() storage.ClusterRepository       { return s.clusters }
func (s *Store) Matcher() storage.Matcher                  { return s.matcher }
func (s *Store) Schema() storage.SchemaInspector           { return s.schema }
func (s *Store) Checkpoints() storage.CheckpointRepository { return s.checkpoints }

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// bounded derives a context carrying the store's query timeout.
func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// scopeArg turns a blog scope into a nullable uuid parameter.
func scopeArg(scope core.ID) uuid.NullUUID {
	return uuid.NullUUID{UUID: scope, Valid: scope != core.NilID}
}
