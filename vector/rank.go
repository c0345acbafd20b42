package vector

import (
	"bytes"
	"slices"

	"github.com/poiesic/keywordlens/core"
)

// Candidate is an item considered by a linear scan.
type Candidate struct {
	Id     core.ID
	Kind   core.ItemKind
	Vector []float32
}

// TopK scores every candidate that carries an embedding against query and
// returns the ranked matches.
func TopK(query []float32, candidates []Candidate, threshold float64, max int) []core.SimilarityMatch {
	if max <= 0 || len(candidates) == 0 {
		return []core.SimilarityMatch{}
	}

	matches := make([]core.SimilarityMatch, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		matches = append(matches, core.SimilarityMatch{
			ItemId:     c.Id,
			Kind:       c.Kind,
			Similarity: Cosine(query, c.Vector),
		})
	}
	return Rank(matches, threshold, max)
}

// Rank filters, orders and truncates precomputed matches. The input slice is
// not modified.
func Rank(matches []core.SimilarityMatch, threshold float64, max int) []core.SimilarityMatch {
	if max <= 0 {
		return []core.SimilarityMatch{}
	}

	out := make([]core.SimilarityMatch, 0, len(matches))
	for _, m := range matches {
		sim := Clamp(m.Similarity)
		if sim < threshold {
			continue
		}
		m.Similarity = sim
		out = append(out, m)
	}

	slices.SortFunc(out, Compare)

	if len(out) > max {
		out = out[:max]
	}
	return out
}

// Compare orders matches by similarity descending, then kind, then item ID ascending.
func Compare(a, b core.SimilarityMatch) int {
	if a.Similarity > b.Similarity {
		return -1
	}
	if a.Similarity < b.Similarity {
		return 1
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.ItemId[:], b.ItemId[:])
}
