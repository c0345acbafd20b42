package core

import (
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a unique identifier for domain entities.
// Tenants (blogs), keyword variations, posts and clusters all use UUIDs.
type ID = uuid.UUID

// NilID is the zero ID. As a blog scope it means "all tenants".
var NilID = uuid.Nil

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(16, nil) // 16 bytes = one UUID
	h.Write([]byte(text))
	var id ID
	copy(id[:], h.Sum(nil))
	id[6] = (id[6] & 0x0f) | 0x80 // version 8, custom
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// Competition is the competitive pressure tier of a keyword.
type Competition string

const (
	CompetitionUnknown Competition = ""
	CompetitionLow     Competition = "LOW"
	CompetitionMedium  Competition = "MEDIUM"
	CompetitionHigh    Competition = "HIGH"
)

// ParseCompetition normalizes a competition tier. Unknown values map to CompetitionUnknown.
func ParseCompetition(s string) Competition {
	switch Competition(strings.ToUpper(strings.TrimSpace(s))) {
	case CompetitionLow:
		return CompetitionLow
	case CompetitionMedium:
		return CompetitionMedium
	case CompetitionHigh:
		return CompetitionHigh
	}
	return CompetitionUnknown
}

// SearchIntent is the purpose behind a search query.
type SearchIntent string

const (
	IntentUnknown       SearchIntent = ""
	IntentInformational SearchIntent = "informational"
	IntentNavigational  SearchIntent = "navigational"
	IntentCommercial    SearchIntent = "commercial"
	IntentTransactional SearchIntent = "transactional"
)

// ParseSearchIntent normalizes a search intent. Unknown values map to IntentUnknown.
func ParseSearchIntent(s string) SearchIntent {
	switch SearchIntent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentInformational:
		return IntentInformational
	case IntentNavigational:
		return IntentNavigational
	case IntentCommercial:
		return IntentCommercial
	case IntentTransactional:
		return IntentTransactional
	}
	return IntentUnknown
}

// KeywordVariation is one phrasing of a main keyword with its SEO metrics.
type KeywordVariation struct {
	Id            ID
	BlogId        ID
	MainKeywordId ID
	Text          string
	Vector        []float32 // nil until an embedding has been computed
	SearchVolume  *int
	Difficulty    *int // 0-100
	CPC           *float64
	Competition   Competition
	SearchIntent  SearchIntent
	ClusterId     *ID
	Topics        []string // associated topic data, source of related topics
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

// HasEmbedding reports whether the variation carries a usable vector.
func (k *KeywordVariation) HasEmbedding() bool {
	return len(k.Vector) > 0
}

// ContentPost is a published or draft article.
type ContentPost struct {
	Id         ID
	BlogId     ID
	Title      string
	Excerpt    string
	Vector     []float32
	WordCount  int
	SeoScore   int
	Topics     []string // e.g. the focus keyword
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// HasEmbedding reports whether the post carries a usable vector.
func (p *ContentPost) HasEmbedding() bool {
	return len(p.Vector) > 0
}

// SemanticCluster is a named group of keyword variations.
type SemanticCluster struct {
	Id                     ID        `json:"id"`
	BlogId                 ID        `json:"blog_id"`
	Name                   string    `json:"name"`
	KeywordCount           int       `json:"keyword_count"`
	Representative         []float32 `json:"-"`
	AvgSearchVolume        float64   `json:"avg_search_volume"`
	AvgDifficulty          float64   `json:"avg_difficulty"`
	RepresentativeKeywords []string  `json:"representative_keywords"`
}

// Corpus selects which collection a search runs against.
type Corpus string

const (
	CorpusKeywords Corpus = "keywords"
	CorpusPosts    Corpus = "posts"
	CorpusAll      Corpus = "all"
)

// ItemKind identifies the collection a result came from.
type ItemKind string

const (
	KindKeyword ItemKind = "keyword"
	KindPost    ItemKind = "post"
)

// SearchRequest is the caller-facing search input.
type SearchRequest struct {
	Query      string
	Corpus     Corpus
	Threshold  float64
	MaxResults int
	BlogScope  ID
}

// SearchQuery is a resolved request with its query vector.
type SearchQuery struct {
	Text       string
	Vector     []float32
	Threshold  float64
	MaxResults int
	Corpus     Corpus
	BlogScope  ID
}

// SimilarityMatch is a single nearest-neighbour hit returned by a repository.
type SimilarityMatch struct {
	ItemId     ID
	Kind       ItemKind
	Similarity float64
}

// ScoreBreakdown exposes the components of a relevance score.
type ScoreBreakdown struct {
	Similarity         float64 `json:"similarity"`
	Volume             float64 `json:"volume"`
	Intent             float64 `json:"intent"`
	Lexical            float64 `json:"lexical"`
	CompetitionPenalty float64 `json:"competition_penalty"`
	DifficultyPenalty  float64 `json:"difficulty_penalty"`
}

// SearchResult is a scored, enriched match.
type SearchResult struct {
	ItemId             ID             `json:"item_id"`
	Kind               ItemKind       `json:"kind"`
	Label              string         `json:"label"`
	Similarity         float64        `json:"similarity"`
	RelevanceScore     float64        `json:"relevance_score"`
	RelatedTopics      []string       `json:"related_topics"`
	ContentSuggestions []string       `json:"content_suggestions"`
	SearchVolume       *int           `json:"search_volume,omitempty"`
	Competition        Competition    `json:"competition,omitempty"`
	SearchIntent       SearchIntent   `json:"search_intent,omitempty"`
	Breakdown          ScoreBreakdown `json:"breakdown"`
}

// SearchResponse is the full answer to a search request.
type SearchResponse struct {
	Results               []*SearchResult `json:"results"`
	TotalFound            int             `json:"total_found"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
}

// Extension is an installed backing-store extension.
type Extension struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// EmbeddingCounts counts records per corpus.
type EmbeddingCounts struct {
	Keywords int `json:"keywords"`
	Posts    int `json:"posts"`
}

// ReadinessState is a state of the readiness machine.
type ReadinessState string

const (
	StateChecking ReadinessState = "checking"
	StateReady    ReadinessState = "ready"
	StateNotReady ReadinessState = "not_ready"
	StateSetup    ReadinessState = "setup"
	StateTesting  ReadinessState = "testing"
	StateComplete ReadinessState = "complete"
)

// ReadinessReport describes whether semantic search can run.
type ReadinessReport struct {
	State           ReadinessState  `json:"state"`
	SearchFunctions map[string]bool `json:"search_functions"`
	Extensions      []Extension     `json:"extensions"`
	EmbeddingCounts EmbeddingCounts `json:"embedding_counts"`
	TotalCounts     EmbeddingCounts `json:"total_counts"`
	Recommendations []string        `json:"recommendations"`
	CheckedAt       time.Time       `json:"checked_at"`
}

// Ready reports whether the report's state is Ready.
func (r *ReadinessReport) Ready() bool {
	return r != nil && r.State == StateReady
}

// SizeBucket counts clusters whose size falls in [Min, Max]. Max of 0 means unbounded.
type SizeBucket struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// ClusterAnalysis summarizes how keywords are distributed across clusters.
type ClusterAnalysis struct {
	TotalClusters    int                `json:"total_clusters"`
	TotalKeywords    int                `json:"total_keywords"`
	AvgClusterSize   int                `json:"avg_cluster_size"`
	LargestCluster   *SemanticCluster   `json:"largest_cluster,omitempty"`
	SizeDistribution []SizeBucket       `json:"size_distribution"`
	Clusters         []*SemanticCluster `json:"clusters,omitempty"`
}

// Checkpoint records the progress of a resumable batch job.
type Checkpoint struct {
	ProcessorType string
	LastId        ID
	Processed     int
	UpdatedAt     time.Time
}
