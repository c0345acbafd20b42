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

package keywordlens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/ai/openai"
	"github.com/poiesic/keywordlens/ai/remote"
	"github.com/poiesic/keywordlens/backfill"
	"github.com/poiesic/keywordlens/cluster"
	"github.com/poiesic/keywordlens/config"
	"github.com/poiesic/keywordlens/embedcache"
	"github.com/poiesic/keywordlens/ingestion"
	"github.com/poiesic/keywordlens/metrics"
	"github.com/poiesic/keywordlens/readiness"
	"github.com/poiesic/keywordlens/scoring"
	"github.com/poiesic/keywordlens/search"
	"github.com/poiesic/keywordlens/server"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/storage/badger"
	"github.com/poiesic/keywordlens/storage/postgres"
)

// Engine wires a store, an embedding provider and the services built on them.
type Engine struct {
	config    *config.Config
	store     storage.Store
	provider  ai.AIProvider
	gateway   *ai.Gateway
	redis     *embedcache.Redis
	bus       *embedcache.Bus
	readiness *readiness.Machine
	searcher  *search.Searcher
	analyzer  *cluster.Analyzer
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	stop      context.CancelFunc
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	store    storage.Store
	provider ai.AIProvider
	registry *prometheus.Registry
	logger   *slog.Logger
}

// WithStore uses an already opened store instead of the configured one.
// The engine takes ownership and closes it.
func WithStore(store storage.Store) EngineOption {
	return func(o *engineOptions) {
		o.store = store
	}
}

// WithProvider uses the given embedding provider instead of the configured driver.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithRegistry registers metrics on reg. Default is a fresh registry.
func WithRegistry(reg *prometheus.Registry) EngineOption {
	return func(o *engineOptions) {
		o.registry = reg
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the configured store and provider and assembles the services.
// A nil cfg uses config.Default().
func NewEngine(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.registry == nil {
		options.registry = prometheus.NewRegistry()
	}
	logger := options.logger

	e := &Engine{
		config:   cfg,
		registry: options.registry,
		metrics:  metrics.New(options.registry),
		bus:      embedcache.NewBus(),
		logger:   logger.With("component", "engine"),
	}
	if err := e.open(ctx, options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) open(ctx context.Context, options *engineOptions) error {
	cfg := e.config
	logger := options.logger

	store := options.store
	if store == nil {
		var err error
		if store, err = openStore(ctx, cfg.Storage, logger); err != nil {
			return err
		}
	}
	e.store = store

	aiConfig := cfg.AIConfig()
	provider := options.provider
	if provider == nil {
		var err error
		if provider, err = newProvider(aiConfig); err != nil {
			return err
		}
	}
	e.provider = provider

	tiers := []embedcache.Tier{embedcache.NewMemory(cfg.Cache.Size, cfg.Cache.TTL)}
	if rc, ok := cfg.RedisConfig(); ok {
		redis, err := embedcache.NewRedis(ctx, rc)
		if err != nil {
			return err
		}
		e.redis = redis
		tiers = append(tiers, redis)
	}
	cache := embedcache.NewTiered(tiers...)

	gateway, err := ai.NewGateway(provider.Embedder(), provider.Model(), aiConfig,
		ai.WithCache(cache),
		ai.WithGatewayMonitor(e.metrics),
		ai.WithGatewayLogger(logger),
	)
	if err != nil {
		return err
	}
	e.gateway = gateway

	readinessOpts := []readiness.Option{
		readiness.WithLogger(logger),
		readiness.WithReadyTTL(cfg.Readiness.ReadyTTL),
		readiness.WithMinKeywordEmbeddings(cfg.Readiness.MinKeywordEmbeddings),
	}
	if cfg.Embedding.Dimensions > 0 {
		readinessOpts = append(readinessOpts, readiness.WithProbeDimensions(cfg.Embedding.Dimensions))
	}
	machine, err := readiness.NewMachine(store.Schema(), readinessOpts...)
	if err != nil {
		return err
	}
	e.readiness = machine

	transitions, err := machine.Subscribe(16)
	if err != nil {
		return err
	}
	go e.metrics.WatchReadiness(transitions)

	watchCtx, stop := context.WithCancel(context.Background())
	e.stop = stop
	embedcache.Bind(watchCtx, e.bus, cache)
	e.watchInvalidations(watchCtx)

	scorer, err := scoring.NewScorer(cfg.Policy())
	if err != nil {
		return err
	}
	searchOpts := []search.Option{
		search.WithLogger(logger),
		search.WithScorer(scorer),
		search.WithMonitor(e.metrics),
	}
	if cfg.Readiness.GateSearches {
		searchOpts = append(searchOpts, search.WithReadinessGate(machine))
	}
	if e.searcher, err = search.NewSearcher(store, gateway, searchOpts...); err != nil {
		return err
	}

	e.analyzer, err = cluster.NewAnalyzer(store.Clusters(), cluster.WithLogger(logger))
	return err
}

// watchInvalidations drops the cached readiness verdict after a backfill so
// embedding counts are re-read.
func (e *Engine) watchInvalidations(ctx context.Context) {
	events, unsubscribe := e.bus.Subscribe(8)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Reason == embedcache.ReasonReembedded {
					e.readiness.Invalidate()
				}
			}
		}
	}()
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.StorageBadger:
		if cfg.InMemory {
			return badger.NewMemoryStore()
		}
		return badger.NewStore(cfg.Path)
	case config.StoragePostgres:
		return postgres.Open(ctx, postgres.Config{
			DSN:          cfg.DSN,
			QueryTimeout: cfg.QueryTimeout,
			MaxOpenConns: cfg.MaxOpenConns,
		}, postgres.WithLogger(logger))
	}
	return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.Driver)
}

func newProvider(cfg *ai.Config) (ai.AIProvider, error) {
	switch cfg.Driver {
	case ai.DriverHTTP:
		return remote.NewProvider(cfg)
	case ai.DriverOpenAI, "":
		return openai.NewProvider(cfg)
	}
	return nil, fmt.Errorf("%w: unknown embedding driver %q", config.ErrInvalidConfig, cfg.Driver)
}

// Close stops background work and releases the store and provider.
func (e *Engine) Close() error {
	if e.stop != nil {
		e.stop()
	}
	if e.readiness != nil {
		e.readiness.Close()
	}
	e.bus.Close()

	var errs []error
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Error("error closing redis cache", "err", err)
			errs = append(errs, err)
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("error closing store", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) Config() *config.Config         { return e.config }
func (e *Engine) Store() storage.Store           { return e.store }
func (e *Engine) Embedder() ai.Embedder          { return e.gateway }
func (e *Engine) Searcher() *search.Searcher     { return e.searcher }
func (e *Engine) Readiness() *readiness.Machine  { return e.readiness }
func (e *Engine) Analyzer() *cluster.Analyzer    { return e.analyzer }
func (e *Engine) Metrics() *metrics.Metrics      { return e.metrics }
func (e *Engine) Registry() *prometheus.Registry { return e.registry }
func (e *Engine) Invalidations() *embedcache.Bus { return e.bus }

// NewBackfiller creates a backfiller that embeds through the engine's gateway,
// reports to its metrics and purges its cache when done.
func (e *Engine) NewBackfiller(config *backfill.Config, opts ...backfill.Option) (*backfill.Backfiller, error) {
	if config == nil {
		config = backfill.DefaultConfig()
		config.Dimensions = e.config.Embedding.Dimensions
	}
	opts = append([]backfill.Option{
		backfill.WithLogger(e.logger),
		backfill.WithInvalidationBus(e.bus),
		backfill.WithRecorder(e.metrics),
	}, opts...)
	return backfill.NewBackfiller(e.store, e.gateway, config, opts...)
}

// NewIngestionPipeline creates a pipeline that stores into the engine's store.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(e.logger)}, opts...)
	return ingestion.NewPipeline(e.store, e.gateway, opts...)
}

// NewServer creates the HTTP API over the engine's services.
func (e *Engine) NewServer(opts ...server.Option) (*server.Server, error) {
	cfg := e.config
	opts = append([]server.Option{
		server.WithLogger(e.logger),
		server.WithMetrics(e.metrics, e.registry),
		server.WithSearchDefaults(server.SearchDefaults{
			Threshold:  cfg.Search.DefaultThreshold,
			MaxResults: cfg.Search.DefaultMaxResults,
		}),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	}, opts...)
	return server.New(e.searcher, e.readiness, e.analyzer, opts...)
}
