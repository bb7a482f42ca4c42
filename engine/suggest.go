package engine

import (
	"github.com/agnivade/levenshtein"
)

// suggest returns the candidate closest to name, or "" if none is close
// enough to be a plausible misspelling.
func suggest(name string, candidates []string) string {
	best, bestDist := "", len(name)/2+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
