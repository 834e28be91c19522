package evaluation

import (
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// DefaultSpellingThreshold is the similarity at or above which a miss counts as a typo.
const DefaultSpellingThreshold = 0.80

// SpellingCheck is the similarity between a candidate and the expected answer.
type SpellingCheck struct {
	Similarity   float64
	IsLikelyTypo bool
}

// CheckSpelling scores candidate against expected with the default threshold.
// Callers only consult it after MatchLexical found nothing.
func CheckSpelling(candidate, expected string) SpellingCheck {
	return checkSpelling(candidate, expected, DefaultSpellingThreshold)
}

func checkSpelling(candidate, expected string, threshold float64) SpellingCheck {
	sim := Similarity(candidate, expected)
	return SpellingCheck{Similarity: sim, IsLikelyTypo: sim > 0 && sim >= threshold}
}

// Similarity is 1 - editDistance/maxLen over normalized runes, in [0,1].
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	longest := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > longest {
		longest = n
	}
	dist := levenshtein.Distance(na, nb, nil)
	return 1 - float64(dist)/float64(longest)
}
