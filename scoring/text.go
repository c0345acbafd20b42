package scoring

import (
	"math"
	"strings"
)

// Stop words to filter out of tokenized text
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "your": true, "my": true,
}

// Tokenize splits text into words, lowercases, trims punctuation, and removes stop words.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// LexicalOverlap is the fraction of query tokens that appear in label.
// Returns 0 when the query has no tokens.
func LexicalOverlap(query, label string) float64 {
	queryWords := Tokenize(query)
	if len(queryWords) == 0 {
		return 0
	}

	labelWords := make(map[string]bool)
	for _, w := range Tokenize(label) {
		labelWords[w] = true
	}

	found := 0
	for _, w := range queryWords {
		if labelWords[w] {
			found++
		}
	}
	return float64(found) / float64(len(queryWords))
}

// Jaccard returns the word-set Jaccard similarity of two keywords, rounded
// to two decimals. Blank input yields 0.
func Jaccard(a, b string) float64 {
	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	union := make(map[string]bool, len(wordsA)+len(wordsB))
	for w := range setA {
		union[w] = true
	}
	common := 0
	seen := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		union[w] = true
		if setA[w] && !seen[w] {
			common++
		}
		seen[w] = true
	}
	return round2(float64(common) / float64(len(union)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
