package scoring

import (
	"testing"

	"github.com/poiesic/keywordlens/core"
	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"best", "shoes", "running"}, Tokenize("The best shoes, for running!"))
	assert.Empty(t, Tokenize("  the of and "))
}

func TestLexicalOverlap(t *testing.T) {
	assert.Equal(t, 1.0, LexicalOverlap("running shoes", "Best Running Shoes"))
	assert.Equal(t, 0.5, LexicalOverlap("running socks", "running shoes"))
	assert.Equal(t, 0.0, LexicalOverlap("the", "the shoes"))
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"running shoes", "running shoes", 1},
		{"running shoes", "trail running shoes", 0.67},
		{"red apple", "green pear", 0},
		{"", "anything", 0},
		{"Dog Food", "dog food dog", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Jaccard(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestInferIntent(t *testing.T) {
	tests := []struct {
		query string
		want  core.SearchIntent
	}{
		{"buy running shoes", core.IntentTransactional},
		{"running shoes for sale", core.IntentTransactional},
		{"best running shoes 2025", core.IntentCommercial},
		{"nike vs adidas", core.IntentCommercial},
		{"strava login", core.IntentNavigational},
		{"how to lace running shoes", core.IntentInformational},
		{"running shoes", core.IntentUnknown},
		{"", core.IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, InferIntent(tt.query))
		})
	}
}

func TestOpportunityScore(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.Equal(t, 0, OpportunityScore(nil, nil, nil))
	assert.Equal(t, 100, OpportunityScore(intPtr(20000), intPtr(10), f(6)))
	assert.Equal(t, 5+0+5, OpportunityScore(intPtr(50), intPtr(90), f(0.2)))
	assert.Equal(t, 20+10+15, OpportunityScore(intPtr(1500), intPtr(45), f(1.5)))
	assert.Equal(t, 30, OpportunityScore(intPtr(0), intPtr(0), f(0)))
}

func TestContentSuggestions_UnknownIntentIsEmpty(t *testing.T) {
	got := ContentSuggestions(Candidate{Label: "kale", Topics: []string{"greens"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = ContentSuggestions(Candidate{Label: "kale", SearchIntent: core.IntentInformational})
	assert.Equal(t, []string{"The complete guide to kale", "kale: what you need to know", "Essential kale tips"}, got)
}

func TestRelatedTopics_LimitAndDedup(t *testing.T) {
	c := Candidate{
		Label:       "Running Shoes for marathon training",
		Topics:      []string{"running", "Running", "marathon"},
		ClusterName: "racing",
	}
	assert.Equal(t, []string{"running", "marathon", "racing", "shoes", "training"}, RelatedTopics(c))
}
