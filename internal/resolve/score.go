// File: internal/resolve/score.go
package resolve

import "strings"

// Score thresholds and rule weights for fuzzy label matching. The table is
// fixed: resolution behavior must be reproducible across deployments.
const (
	scoreExact     = 100
	scorePrefix    = 90
	scoreSubstring = 80
	scoreTokenBase = 60
	scoreTokenStep = 5
	maxTokenBonus  = 4

	// AcceptThreshold is the minimum score a fuzzy match must reach before a
	// candidate is accepted as the resolution target.
	AcceptThreshold = 70
)

// Normalize folds a label for comparison: lowercase, interior whitespace
// collapsed to single spaces, leading and trailing whitespace removed.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Score rates how well a candidate label matches the wanted label. Both
// inputs are normalized before comparison. The result is deterministic and
// side-effect free: the same pair always yields the same score.
//
// Rule order matters; the first rule that applies wins:
//
//	exact match            -> 100
//	wanted is a prefix     -> 90
//	wanted is a substring  -> 80
//	shared tokens          -> 60 + 5 per shared token (capped at 4)
//	nothing shared         -> 0
func Score(candidate, wanted string) int {
	c := Normalize(candidate)
	w := Normalize(wanted)

	if w == "" || c == "" {
		return 0
	}
	if c == w {
		return scoreExact
	}
	if strings.HasPrefix(c, w) {
		return scorePrefix
	}
	if strings.Contains(c, w) {
		return scoreSubstring
	}

	shared := sharedTokenCount(c, w)
	if shared == 0 {
		return 0
	}
	if shared > maxTokenBonus {
		shared = maxTokenBonus
	}
	return scoreTokenBase + scoreTokenStep*shared
}

// sharedTokenCount counts distinct tokens present in both labels.
func sharedTokenCount(a, b string) int {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(a) {
		tokens[tok] = struct{}{}
	}
	count := 0
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(b) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := tokens[tok]; ok {
			count++
		}
	}
	return count
}
