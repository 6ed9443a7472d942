package callsign

import (
	lev "github.com/agnivade/levenshtein"
)

// MatchThreshold is the minimum similarity for a typed callsign to address a
// calling station.
const MatchThreshold = 0.4

// Similarity scores how close two callsigns are in [0,1] using the edit
// distance normalized by the longer string. A partial copy contained in the
// full call ("W1A" in "W1AW") scores shorter/longer.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	dist := lev.ComputeDistance(a, b)
	if dist >= longer {
		return 0
	}
	return 1 - float64(dist)/float64(longer)
}

// BestMatch returns the index of the candidate most similar to entered, or
// false when none reaches MatchThreshold. Ties keep the earliest candidate.
func BestMatch(entered string, candidates []string) (int, bool) {
	best := -1
	bestScore := 0.0
	for i, cand := range candidates {
		score := Similarity(entered, cand)
		if score < MatchThreshold {
			continue
		}
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best, best >= 0
}
