package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeWeight indicates a weight or penalty below zero.
	ErrNegativeWeight = errors.New("scoring weights must not be negative")

	// ErrVolumeCeiling indicates a non-positive volume ceiling.
	ErrVolumeCeiling = errors.New("volume ceiling must be positive")
)

// Policy holds the tunable weights of the relevance score.
type Policy struct {
	SimilarityWeight float64
	VolumeWeight     float64
	VolumeCeiling    float64
	IntentBonus      float64
	LexicalWeight    float64
	DifficultyWeight float64

	// Penalty subtracted per competition tier.
	CompetitionLow    float64
	CompetitionMedium float64
	CompetitionHigh   float64
}

// DefaultPolicy returns the documented default weights.
func DefaultPolicy() Policy {
	return Policy{
		SimilarityWeight:  70,
		VolumeWeight:      15,
		VolumeCeiling:     100000,
		IntentBonus:       10,
		LexicalWeight:     5,
		DifficultyWeight:  7,
		CompetitionLow:    0,
		CompetitionMedium: 4,
		CompetitionHigh:   8,
	}
}

// Validate checks that every weight is usable.
func (p Policy) Validate() error {
	weights := map[string]float64{
		"similarity":         p.SimilarityWeight,
		"volume":             p.VolumeWeight,
		"intent":             p.IntentBonus,
		"lexical":            p.LexicalWeight,
		"difficulty":         p.DifficultyWeight,
		"competition_low":    p.CompetitionLow,
		"competition_medium": p.CompetitionMedium,
		"competition_high":   p.CompetitionHigh,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: %s is %v", ErrNegativeWeight, name, w)
		}
	}
	if p.VolumeCeiling <= 0 {
		return fmt.Errorf("%w: got %v", ErrVolumeCeiling, p.VolumeCeiling)
	}
	return nil
}
