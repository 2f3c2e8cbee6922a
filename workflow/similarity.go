package workflow

import (
	"strings"

	"github.com/dcconcretos/remisiones_backend/utils"
)

// NameSimilarity compares two free-text names on a 0..1 scale. Both sides
// are normalized first; identical normalized forms score 1.0, a substring
// relation scores by relative length (floored at 0.8), and otherwise the
// score is the shared-token ratio.
func NameSimilarity(a, b string) float64 {
	na := utils.NormalizeName(a)
	nb := utils.NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		ratio := 0.8 + 0.1*float64(len(shorter))/float64(len(longer))
		if ratio > 0.9 {
			ratio = 0.9
		}
		return ratio
	}

	tokensA := strings.Fields(na)
	tokensB := strings.Fields(nb)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}
	shared := 0
	for _, t := range utils.UniqueSlice(tokensA) {
		if setB[t] {
			shared++
		}
	}
	denom := len(utils.UniqueSlice(tokensA))
	if lb := len(utils.UniqueSlice(tokensB)); lb > denom {
		denom = lb
	}
	return float64(shared) / float64(denom)
}
