package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/scoring"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// ReadinessGate decides whether searches may run.
// EnsureReady returns a core.Error of kind NotReady, carrying the report, when
// they may not.
type ReadinessGate interface {
	EnsureReady(ctx context.Context) (*core.ReadinessReport, error)
}

// Searcher runs semantic search over a store.
type Searcher struct {
	store    storage.Store
	embedder ai.Embedder
	scorer   *scoring.Scorer
	gate     ReadinessGate
	monitor  SearchMonitor
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithScorer replaces the default-policy scorer.
func WithScorer(scorer *scoring.Scorer) Option {
	return func(s *Searcher) error {
		if scorer == nil {
			return errors.New("scorer cannot be nil")
		}
		s.scorer = scorer
		return nil
	}
}

// WithReadinessGate makes every search wait for a Ready verdict.
func WithReadinessGate(gate ReadinessGate) Option {
	return func(s *Searcher) error {
		s.gate = gate
		return nil
	}
}

// WithMonitor installs search hooks.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = NoopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.Store, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	scorer, err := scoring.NewScorer(scoring.DefaultPolicy())
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		scorer:   scorer,
		monitor:  NoopMonitor{},
		logger:   slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search embeds the request's query and returns scored matches in similarity order.
func (s *Searcher) Search(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	const op = "search"
	start := time.Now()

	if err := core.ValidateSearchRequest(&req); err != nil {
		return nil, s.fail(core.InvalidParameters(op, err))
	}
	corpus := req.Corpus
	if corpus == "" {
		corpus = core.CorpusAll
	}
	s.monitor.Start(req.Query, corpus)

	if err := s.checkReady(ctx, op); err != nil {
		return nil, err
	}

	vec, err := s.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, s.fail(asEngineError(op, err, core.KindEmbeddingUnavailable))
	}
	s.monitor.AfterEmbedding(len(vec))

	return s.execute(ctx, op, start, core.SearchQuery{
		Text:       req.Query,
		Vector:     vec,
		Threshold:  req.Threshold,
		MaxResults: req.MaxResults,
		Corpus:     corpus,
		BlogScope:  req.BlogScope,
	}, core.NilID)
}

// SearchByVector searches with a precomputed vector. MaxResults of 0 yields an
// empty response. Text, when set, feeds the intent and lexical signals.
func (s *Searcher) SearchByVector(ctx context.Context, q core.SearchQuery) (*core.SearchResponse, error) {
	const op = "search_by_vector"
	start := time.Now()

	if q.Corpus == "" {
		q.Corpus = core.CorpusAll
	}
	if err := s.validateVectorQuery(q); err != nil {
		return nil, s.fail(core.InvalidParameters(op, err))
	}
	s.monitor.Start(q.Text, q.Corpus)
	if q.MaxResults == 0 {
		return s.finish(start, []*core.SearchResult{}), nil
	}

	if err := s.checkReady(ctx, op); err != nil {
		return nil, err
	}
	return s.execute(ctx, op, start, q, core.NilID)
}

// SimilarToKeyword uses a stored keyword's own embedding as the query and
// leaves the keyword itself out of the results.
func (s *Searcher) SimilarToKeyword(ctx context.Context, id core.ID, q core.SearchQuery) (*core.SearchResponse, error) {
	const op = "similar_to_keyword"
	start := time.Now()

	if q.Corpus == "" {
		q.Corpus = core.CorpusAll
	}
	if err := core.ValidateSearchBounds(q.Threshold, q.MaxResults, q.Corpus); err != nil {
		return nil, s.fail(core.InvalidParameters(op, err))
	}

	if err := s.checkReady(ctx, op); err != nil {
		return nil, err
	}

	kw, err := s.store.Keywords().GetKeyword(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.fail(core.InvalidParameters(op, fmt.Errorf("keyword %s: %w", id, err)))
		}
		return nil, s.fail(core.RepositoryUnavailable(op, err))
	}
	if !kw.HasEmbedding() {
		return nil, s.fail(core.InvalidParameters(op, fmt.Errorf("keyword %s: %w", id, ErrKeywordNotEmbedded)))
	}
	s.monitor.Start(kw.Text, q.Corpus)

	q.Text = kw.Text
	q.Vector = kw.Vector
	return s.execute(ctx, op, start, q, kw.Id)
}

func (s *Searcher) validateVectorQuery(q core.SearchQuery) error {
	if !vector.Valid(q.Vector, 0) {
		return ErrEmptyVector
	}
	if q.MaxResults < 0 {
		return fmt.Errorf("%w: got %d", core.ErrMaxResults, q.MaxResults)
	}
	maxResults := q.MaxResults
	if maxResults == 0 {
		maxResults = 1
	}
	return core.ValidateSearchBounds(q.Threshold, maxResults, q.Corpus)
}

func (s *Searcher) checkReady(ctx context.Context, op string) error {
	if s.gate == nil {
		return nil
	}
	if _, err := s.gate.EnsureReady(ctx); err != nil {
		return s.fail(asEngineError(op, err, core.KindRepositoryUnavailable))
	}
	return nil
}

// execute runs the repository query, ranking, hydration and scoring.
func (s *Searcher) execute(ctx context.Context, op string, start time.Time, q core.SearchQuery, exclude core.ID) (*core.SearchResponse, error) {
	limit := q.MaxResults
	if exclude != core.NilID {
		// The excluded record would otherwise use up one of the slots.
		limit++
	}
	nq := storage.NeighborQuery{
		Vector:    q.Vector,
		Threshold: q.Threshold,
		Limit:     limit,
		BlogScope: q.BlogScope,
	}

	var (
		matches []core.SimilarityMatch
		err     error
	)
	switch q.Corpus {
	case core.CorpusKeywords:
		matches, err = s.store.Keywords().FindSimilarKeywords(ctx, nq)
	case core.CorpusPosts:
		matches, err = s.store.Posts().FindSimilarPosts(ctx, nq)
	default:
		matches, err = s.store.Matcher().MatchByEmbedding(ctx, nq)
	}
	if err != nil {
		s.logger.Error("error querying for similar records", "corpus", q.Corpus, "err", err)
		return nil, s.fail(core.RepositoryUnavailable(op, err))
	}

	if exclude != core.NilID {
		kept := matches[:0:0]
		for _, m := range matches {
			if m.ItemId != exclude {
				kept = append(kept, m)
			}
		}
		matches = kept
	}
	ranked := vector.Rank(matches, q.Threshold, q.MaxResults)
	s.monitor.AfterSimilaritySearch(ranked)

	meta, err := s.hydrate(ctx, ranked, q.BlogScope)
	if err != nil {
		s.logger.Error("error retrieving match metadata", "matches", len(ranked), "err", err)
		return nil, s.fail(core.RepositoryUnavailable(op, err))
	}
	s.monitor.AfterHydration(len(meta.keywords), len(meta.posts))

	results := make([]*core.SearchResult, 0, len(ranked))
	for _, m := range ranked {
		candidate, ok := meta.candidate(m)
		if !ok {
			// Deleted between the similarity query and hydration.
			s.logger.Warn("match without metadata", "item", m.ItemId, "kind", m.Kind)
			s.monitor.MissingMetadata(m)
			continue
		}
		results = append(results, s.scorer.Score(q.Text, m, candidate))
	}

	return s.finish(start, results), nil
}

func (s *Searcher) finish(start time.Time, results []*core.SearchResult) *core.SearchResponse {
	resp := &core.SearchResponse{
		Results:               results,
		TotalFound:            len(results),
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}
	s.monitor.Finish(resp)
	return resp
}

func (s *Searcher) fail(err *core.Error) error {
	s.monitor.Failed(err.Kind)
	return err
}

// metadata holds the records behind a ranked match list.
type metadata struct {
	keywords     map[core.ID]*core.KeywordVariation
	posts        map[core.ID]*core.ContentPost
	clusterNames map[core.ID]string
}

func (m *metadata) candidate(match core.SimilarityMatch) (scoring.Candidate, bool) {
	switch match.Kind {
	case core.KindKeyword:
		kw, ok := m.keywords[match.ItemId]
		if !ok {
			return scoring.Candidate{}, false
		}
		var clusterName string
		if kw.ClusterId != nil {
			clusterName = m.clusterNames[*kw.ClusterId]
		}
		return scoring.FromKeyword(kw, clusterName), true
	case core.KindPost:
		post, ok := m.posts[match.ItemId]
		if !ok {
			return scoring.Candidate{}, false
		}
		return scoring.FromPost(post), true
	}
	return scoring.Candidate{}, false
}

// hydrate loads keywords, posts and cluster names concurrently.
func (s *Searcher) hydrate(ctx context.Context, matches []core.SimilarityMatch, blogScope core.ID) (*metadata, error) {
	var keywordIDs, postIDs []core.ID
	for _, m := range matches {
		switch m.Kind {
		case core.KindKeyword:
			keywordIDs = append(keywordIDs, m.ItemId)
		case core.KindPost:
			postIDs = append(postIDs, m.ItemId)
		}
	}

	meta := &metadata{
		keywords:     make(map[core.ID]*core.KeywordVariation, len(keywordIDs)),
		posts:        make(map[core.ID]*core.ContentPost, len(postIDs)),
		clusterNames: make(map[core.ID]string),
	}

	var (
		keywords []*core.KeywordVariation
		posts    []*core.ContentPost
		clusters []*core.SemanticCluster
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(keywordIDs) > 0 {
		g.Go(func() error {
			var err error
			keywords, err = s.store.Keywords().GetKeywords(gctx, keywordIDs...)
			return err
		})
		g.Go(func() error {
			var err error
			clusters, err = s.store.Clusters().ListClusters(gctx, blogScope)
			return err
		})
	}
	if len(postIDs) > 0 {
		g.Go(func() error {
			var err error
			posts, err = s.store.Posts().GetPosts(gctx, postIDs...)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, kw := range keywords {
		meta.keywords[kw.Id] = kw
	}
	for _, post := range posts {
		meta.posts[post.Id] = post
	}
	for _, c := range clusters {
		meta.clusterNames[c.Id] = c.Name
	}
	return meta, nil
}

// asEngineError keeps an existing core.Error and wraps anything else as fallback.
func asEngineError(op string, err error, fallback core.ErrorKind) *core.Error {
	var e *core.Error
	if errors.As(err, &e) {
		return e
	}
	return core.NewError(fallback, op, err)
}
