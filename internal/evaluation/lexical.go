package evaluation

import (
	"strings"
	"unicode/utf8"
)

// minReverseContainsRunes is the shortest candidate that may match by being
// contained in an expected answer. Shorter fragments like "a" would otherwise
// pass for almost anything.
const minReverseContainsRunes = 3

// LexicalMatch reports how a candidate relates to the expected answer after normalization.
type LexicalMatch struct {
	Exact    bool
	Contains bool
}

// Matched reports whether either form of match was found.
func (m LexicalMatch) Matched() bool {
	return m.Exact || m.Contains
}

// Confidence is 1.0 for an exact match, 0.9 for a contains match and 0 otherwise.
func (m LexicalMatch) Confidence() float64 {
	switch {
	case m.Exact:
		return 1.0
	case m.Contains:
		return 0.9
	default:
		return 0
	}
}

// Normalize trims, lowercases and collapses runs of whitespace to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MatchLexical compares candidate with expected and every variant.
// Contains is only set when no exact match exists. A candidate found inside a
// target counts only when it has at least minReverseContainsRunes runes.
func MatchLexical(candidate, expected string, variants []string) LexicalMatch {
	c := Normalize(candidate)
	if c == "" {
		return LexicalMatch{}
	}

	targets := make([]string, 0, len(variants)+1)
	for _, t := range append([]string{expected}, variants...) {
		if n := Normalize(t); n != "" {
			targets = append(targets, n)
		}
	}

	for _, t := range targets {
		if c == t {
			return LexicalMatch{Exact: true}
		}
	}
	reverse := utf8.RuneCountInString(c) >= minReverseContainsRunes
	for _, t := range targets {
		if strings.Contains(c, t) || (reverse && strings.Contains(t, c)) {
			return LexicalMatch{Contains: true}
		}
	}
	return LexicalMatch{}
}
