package scoring

import (
	"strings"

	"github.com/poiesic/keywordlens/core"
)

// Intent cues, checked from most to least specific.
var intentCues = []struct {
	intent core.SearchIntent
	words  []string
	phrase []string
}{
	{
		intent: core.IntentTransactional,
		words:  []string{"buy", "price", "prices", "pricing", "cheap", "discount", "coupon", "deal", "deals", "order", "purchase", "shop", "sale"},
		phrase: []string{"for sale", "near me"},
	},
	{
		intent: core.IntentCommercial,
		words:  []string{"best", "top", "review", "reviews", "vs", "versus", "compare", "comparison", "alternative", "alternatives"},
	},
	{
		intent: core.IntentNavigational,
		words:  []string{"login", "signin", "official", "website", "homepage", "dashboard"},
		phrase: []string{"sign in", "log in"},
	},
	{
		intent: core.IntentInformational,
		words:  []string{"how", "what", "why", "when", "who", "guide", "tutorial", "tips", "learn", "ideas", "examples", "meaning", "definition"},
	},
}

// InferIntent guesses the search intent of a query from lexical cues.
// Returns core.IntentUnknown when no cue matches.
func InferIntent(query string) core.SearchIntent {
	lowered := strings.ToLower(query)
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(lowered) {
		tokens[strings.Trim(t, ".,!?;:'\"-()[]{}")] = true
	}

	for _, cue := range intentCues {
		for _, p := range cue.phrase {
			if strings.Contains(lowered, p) {
				return cue.intent
			}
		}
		for _, w := range cue.words {
			if tokens[w] {
				return cue.intent
			}
		}
	}
	return core.IntentUnknown
}
