package scoring

// OpportunityScore rates a keyword from 0 to 100 by volume (up to 40 points),
// inverted difficulty (up to 30) and CPC (up to 30). Absent or zero volume and
// CPC contribute nothing; absent difficulty contributes nothing.
func OpportunityScore(volume *int, difficulty *int, cpc *float64) int {
	score := 0

	if volume != nil && *volume > 0 {
		switch v := *volume; {
		case v > 10000:
			score += 40
		case v > 5000:
			score += 30
		case v > 1000:
			score += 20
		case v > 100:
			score += 10
		default:
			score += 5
		}
	}

	if difficulty != nil {
		switch d := *difficulty; {
		case d < 20:
			score += 30
		case d < 40:
			score += 20
		case d < 60:
			score += 10
		case d < 80:
			score += 5
		}
	}

	if cpc != nil && *cpc > 0 {
		switch c := *cpc; {
		case c > 5:
			score += 30
		case c > 2:
			score += 20
		case c > 1:
			score += 15
		case c > 0.5:
			score += 10
		default:
			score += 5
		}
	}

	return min(score, 100)
}
