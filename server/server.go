package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/metrics"
)

var (
	// ErrSearcherRequired is returned when no searcher is provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrReadinessRequired is returned when no readiness service is provided.
	ErrReadinessRequired = errors.New("readiness service required")

	// ErrClustersRequired is returned when no cluster analyzer is provided.
	ErrClustersRequired = errors.New("cluster analyzer required")
)

// Searcher runs searches.
type Searcher interface {
	Search(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error)
	SimilarToKeyword(ctx context.Context, id core.ID, q core.SearchQuery) (*core.SearchResponse, error)
}

// Readiness reports on and provisions search readiness.
type Readiness interface {
	CheckReadiness(ctx context.Context) (*core.ReadinessReport, error)
	RunSetup(ctx context.Context) (*core.ReadinessReport, error)
}

// ClusterAnalyzer summarizes cluster distribution.
type ClusterAnalyzer interface {
	Analyze(ctx context.Context, blogScope core.ID) (*core.ClusterAnalysis, error)
}

// SearchDefaults fill request fields the caller leaves out.
type SearchDefaults struct {
	Threshold  float64
	MaxResults int
}

// Server is the HTTP front end.
type Server struct {
	router    *gin.Engine
	searcher  Searcher
	readiness Readiness
	clusters  ClusterAnalyzer
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	defaults  SearchDefaults
	logger    *slog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "http-server")
		return nil
	}
}

// WithMetrics records request metrics and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) error {
		s.metrics = m
		if gatherer != nil {
			s.gatherer = gatherer
		}
		return nil
	}
}

// WithSearchDefaults sets the threshold and limit used when a request omits them.
func WithSearchDefaults(d SearchDefaults) Option {
	return func(s *Server) error {
		if !(d.Threshold > 0 && d.Threshold <= 1) || d.MaxResults <= 0 {
			return fmt.Errorf("invalid search defaults: %+v", d)
		}
		s.defaults = d
		return nil
	}
}

// WithTimeouts sets the HTTP read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) error {
		s.readTimeout = read
		s.writeTimeout = write
		return nil
	}
}

// New creates the server and registers its routes.
func New(searcher Searcher, readiness Readiness, clusters ClusterAnalyzer, opts ...Option) (*Server, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if readiness == nil {
		return nil, ErrReadinessRequired
	}
	if clusters == nil {
		return nil, ErrClustersRequired
	}

	s := &Server{
		searcher:     searcher,
		readiness:    readiness,
		clusters:     clusters,
		gatherer:     prometheus.DefaultGatherer,
		defaults:     SearchDefaults{Threshold: 0.7, MaxResults: 20},
		logger:       slog.Default().With("component", "http-server"),
		readTimeout:  15 * time.Second,
		writeTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.observe())
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.POST("/search/semantic", s.semanticSearch)
	api.POST("/search/similar/:keyword_id", s.similarToKeyword)
	api.GET("/readiness", s.getReadiness)
	api.POST("/readiness", s.runSetup)
	api.GET("/clusters/analysis", s.clusterAnalysis)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// observe logs each request and records request metrics.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordRequest(c.Request.Method, route, status, elapsed)
		}
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed", elapsed)
	}
}
