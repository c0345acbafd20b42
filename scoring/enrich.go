package scoring

import (
	"fmt"
	"strings"

	"github.com/poiesic/keywordlens/core"
)

const (
	maxRelatedTopics = 5
	maxSuggestions   = 3

	// Label tokens shorter than this are not promoted to topics.
	minTopicTokenLength = 4
)

var suggestionTemplates = map[core.SearchIntent][]string{
	core.IntentInformational: {
		"The complete guide to %s",
		"%s: what you need to know",
		"Essential %s tips",
	},
	core.IntentCommercial: {
		"Best %s options compared",
		"%s: comparison and review",
		"How to choose %s",
	},
	core.IntentTransactional: {
		"Where to buy %s",
		"%s: prices and deals",
		"Buying %s online",
	},
	core.IntentNavigational: {
		"Getting started with %s",
		"%s: official resources",
		"How to find %s",
	},
}

// hasTopicData reports whether the candidate carries any topic source.
func hasTopicData(c Candidate) bool {
	return len(c.Topics) > 0 || c.ClusterName != "" || c.SearchIntent != core.IntentUnknown
}

// RelatedTopics lists the candidate's topics, then its cluster name, then
// significant label tokens, deduplicated case-insensitively, at most five.
// Returns an empty slice when the candidate has no topic data.
func RelatedTopics(c Candidate) []string {
	topics := []string{}
	if !hasTopicData(c) {
		return topics
	}

	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] || len(topics) >= maxRelatedTopics {
			return
		}
		seen[key] = true
		topics = append(topics, t)
	}

	for _, t := range c.Topics {
		add(t)
	}
	add(c.ClusterName)
	for _, tok := range Tokenize(c.Label) {
		if len(tok) >= minTopicTokenLength {
			add(tok)
		}
	}
	return topics
}

// ContentSuggestions fills the intent's templates with the label.
// Returns an empty slice when the intent is unknown.
func ContentSuggestions(c Candidate) []string {
	templates := suggestionTemplates[c.SearchIntent]
	label := strings.TrimSpace(c.Label)
	suggestions := make([]string, 0, len(templates))
	if label == "" {
		return suggestions
	}
	for _, tmpl := range templates {
		suggestions = append(suggestions, fmt.Sprintf(tmpl, label))
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}
