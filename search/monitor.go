package search

import (
	"github.com/poiesic/keywordlens/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, corpus core.Corpus)
	AfterEmbedding(dimensions int)
	AfterSimilaritySearch(matches []core.SimilarityMatch)
	AfterHydration(keywords, posts int)
	MissingMetadata(match core.SimilarityMatch)
	Finish(response *core.SearchResponse)
	Failed(kind core.ErrorKind)
}

// NoopMonitor is a no-op implementation of SearchMonitor
type NoopMonitor struct{}

var _ SearchMonitor = NoopMonitor{}

func (NoopMonitor) Start(string, core.Corpus)                    {}
func (NoopMonitor) AfterEmbedding(int)                           {}
func (NoopMonitor) AfterSimilaritySearch([]core.SimilarityMatch) {}
func (NoopMonitor) AfterHydration(int, int)                      {}
func (NoopMonitor) MissingMetadata(core.SimilarityMatch)         {}
func (NoopMonitor) Finish(*core.SearchResponse)                  {}
func (NoopMonitor) Failed(core.ErrorKind)                        {}
