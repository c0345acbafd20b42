package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/poiesic/keywordlens/core"
)

// searchRequest is the body of POST /api/search/semantic.
type searchRequest struct {
	Query               string   `json:"query"`
	CorpusScope         string   `json:"corpus_scope"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	MaxResults          *int     `json:"max_results"`
	BlogScope           string   `json:"blog_scope"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Kind      core.ErrorKind        `json:"kind"`
	Message   string                `json:"message"`
	Retryable bool                  `json:"retryable"`
	Report    *core.ReadinessReport `json:"report,omitempty"`
}

// setupResponse is the body of POST /api/readiness. A failed setup also
// carries the error kind and message.
type setupResponse struct {
	OK      bool                  `json:"ok"`
	Report  *core.ReadinessReport `json:"report"`
	Kind    core.ErrorKind        `json:"kind,omitempty"`
	Message string                `json:"message,omitempty"`
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) semanticSearch(c *gin.Context) {
	const op = "semantic_search"
	var body searchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, core.InvalidParameters(op, err))
		return
	}
	q, err := s.resolve(body)
	if err != nil {
		s.writeError(c, core.InvalidParameters(op, err))
		return
	}

	resp, err := s.searcher.Search(c.Request.Context(), core.SearchRequest{
		Query:      body.Query,
		Corpus:     q.Corpus,
		Threshold:  q.Threshold,
		MaxResults: q.MaxResults,
		BlogScope:  q.BlogScope,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) similarToKeyword(c *gin.Context) {
	const op = "similar_to_keyword"
	id, err := uuid.Parse(c.Param("keyword_id"))
	if err != nil {
		s.writeError(c, core.InvalidParameters(op, fmt.Errorf("keyword_id: %w", err)))
		return
	}

	var body searchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			s.writeError(c, core.InvalidParameters(op, err))
			return
		}
	}
	q, err := s.resolve(body)
	if err != nil {
		s.writeError(c, core.InvalidParameters(op, err))
		return
	}

	resp, err := s.searcher.SimilarToKeyword(c.Request.Context(), id, q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getReadiness(c *gin.Context) {
	report, err := s.readiness.CheckReadiness(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) runSetup(c *gin.Context) {
	report, err := s.readiness.RunSetup(c.Request.Context())
	if err != nil {
		var e *core.Error
		if errors.As(err, &e) && e.Kind == core.KindSetupFailed && e.Report != nil {
			s.logger.Warn("setup failed", "err", err)
			c.JSON(statusFor(e.Kind), setupResponse{OK: false, Report: e.Report, Kind: e.Kind, Message: e.Error()})
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, setupResponse{OK: report.Ready(), Report: report})
}

func (s *Server) clusterAnalysis(c *gin.Context) {
	const op = "cluster_analysis"
	scope, err := parseScope(c.Query("blog_scope"))
	if err != nil {
		s.writeError(c, core.InvalidParameters(op, err))
		return
	}
	analysis, err := s.clusters.Analyze(c.Request.Context(), scope)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// resolve applies defaults and parses the shared search fields.
func (s *Server) resolve(body searchRequest) (core.SearchQuery, error) {
	q := core.SearchQuery{
		Corpus:     core.Corpus(body.CorpusScope),
		Threshold:  s.defaults.Threshold,
		MaxResults: s.defaults.MaxResults,
	}
	if body.SimilarityThreshold != nil {
		q.Threshold = *body.SimilarityThreshold
	}
	if body.MaxResults != nil {
		q.MaxResults = *body.MaxResults
	}
	scope, err := parseScope(body.BlogScope)
	if err != nil {
		return q, err
	}
	q.BlogScope = scope
	return q, nil
}

func parseScope(raw string) (core.ID, error) {
	if raw == "" {
		return core.NilID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return core.NilID, fmt.Errorf("blog_scope: %w", err)
	}
	return id, nil
}

func (s *Server) writeError(c *gin.Context, err error) {
	var e *core.Error
	if !errors.As(err, &e) {
		s.logger.Error("unclassified error", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Kind: "internal", Message: err.Error()})
		return
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "path", c.Request.URL.Path, "kind", e.Kind, "err", err)
	}
	c.JSON(status, errorResponse{
		Kind:      e.Kind,
		Message:   e.Error(),
		Retryable: e.Retryable(),
		Report:    e.Report,
	})
}

func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidParameters:
		return http.StatusBadRequest
	case core.KindNotReady, core.KindEmbeddingUnavailable, core.KindRepositoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
