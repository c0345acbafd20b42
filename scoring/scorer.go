package scoring

import (
	"math"

	"github.com/poiesic/keywordlens/core"
)

// Candidate is the metadata a score is computed from.
type Candidate struct {
	Label        string
	SearchVolume *int
	Difficulty   *int
	Competition  core.Competition
	SearchIntent core.SearchIntent
	Topics       []string
	ClusterName  string
}

// FromKeyword builds a candidate from a keyword variation and the name of its
// cluster, if any.
func FromKeyword(kw *core.KeywordVariation, clusterName string) Candidate {
	return Candidate{
		Label:        kw.Text,
		SearchVolume: kw.SearchVolume,
		Difficulty:   kw.Difficulty,
		Competition:  kw.Competition,
		SearchIntent: kw.SearchIntent,
		Topics:       kw.Topics,
		ClusterName:  clusterName,
	}
}

// FromPost builds a candidate from a content post. Posts carry no SEO metrics.
func FromPost(post *core.ContentPost) Candidate {
	return Candidate{
		Label:  post.Title,
		Topics: post.Topics,
	}
}

// Scorer applies a Policy. It is stateless and safe for concurrent use.
type Scorer struct {
	policy Policy
}

// NewScorer creates a Scorer after validating the policy.
func NewScorer(policy Policy) (*Scorer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{policy: policy}, nil
}

// Policy returns the weights in use.
func (s *Scorer) Policy() Policy {
	return s.policy
}

// Breakdown computes every term of the score for one candidate.
func (s *Scorer) Breakdown(query string, similarity float64, c Candidate) core.ScoreBreakdown {
	p := s.policy
	b := core.ScoreBreakdown{
		Similarity: p.SimilarityWeight * similarity,
		Lexical:    p.LexicalWeight * LexicalOverlap(query, c.Label),
	}

	if c.SearchVolume != nil && *c.SearchVolume > 0 {
		ratio := math.Log10(1+float64(*c.SearchVolume)) / math.Log10(1+p.VolumeCeiling)
		b.Volume = p.VolumeWeight * math.Min(1, ratio)
	}

	if intent := InferIntent(query); intent != core.IntentUnknown && intent == c.SearchIntent {
		b.Intent = p.IntentBonus
	}

	switch c.Competition {
	case core.CompetitionLow:
		b.CompetitionPenalty = p.CompetitionLow
	case core.CompetitionMedium:
		b.CompetitionPenalty = p.CompetitionMedium
	case core.CompetitionHigh:
		b.CompetitionPenalty = p.CompetitionHigh
	}

	if c.Difficulty != nil {
		b.DifficultyPenalty = p.DifficultyWeight * float64(*c.Difficulty) / 100
	}

	return b
}

// Total folds a breakdown into a score in [0, 100] rounded to two decimals.
func Total(b core.ScoreBreakdown) float64 {
	sum := b.Similarity + b.Volume + b.Intent + b.Lexical - b.CompetitionPenalty - b.DifficultyPenalty
	return round2(math.Max(0, math.Min(100, sum)))
}

// Score builds the scored, enriched result for one match.
func (s *Scorer) Score(query string, match core.SimilarityMatch, c Candidate) *core.SearchResult {
	b := s.Breakdown(query, match.Similarity, c)
	return &core.SearchResult{
		ItemId:             match.ItemId,
		Kind:               match.Kind,
		Label:              c.Label,
		Similarity:         match.Similarity,
		RelevanceScore:     Total(b),
		RelatedTopics:      RelatedTopics(c),
		ContentSuggestions: ContentSuggestions(c),
		SearchVolume:       c.SearchVolume,
		Competition:        c.Competition,
		SearchIntent:       c.SearchIntent,
		Breakdown:          b,
	}
}
