// Package topic decides whether two headlines refer to the same story
// and guards concurrent pipeline runs against publishing duplicates.
package topic

import (
	"strings"
	"unicode"
)

// DefaultThreshold is the similarity above which two titles are treated
// as the same story.
const DefaultThreshold = 0.5

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {},
	"this": {}, "are": {}, "was": {}, "has": {}, "have": {}, "will": {},
	"its": {}, "new": {}, "how": {}, "why": {}, "what": {}, "who": {},
	"you": {}, "your": {}, "after": {}, "about": {}, "into": {}, "over": {},
	"says": {}, "amid": {}, "could": {}, "more": {}, "most": {}, "just": {},
}

// Tokens normalizes a title into its significant token set: lowercase,
// non-alphanumerics stripped, tokens of length <= 2 and stop words dropped.
func Tokens(title string) map[string]struct{} {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) <= 2 {
			continue
		}
		if _, skip := stopWords[tok]; skip {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// Similarity scores how likely two titles describe the same story. It is
// the max of Jaccard similarity and an overlap ratio scaled by 0.8, so a
// short title fully contained in a longer one still registers. Empty
// token sets score 0, never a false-positive duplicate.
func Similarity(a, b string) float64 {
	ta := Tokens(a)
	tb := Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}

	union := len(ta) + len(tb) - intersection
	jaccard := float64(intersection) / float64(union)

	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	overlap := float64(intersection) / float64(smaller) * 0.8

	if overlap > jaccard {
		return overlap
	}
	return jaccard
}

// NormalizedTitle returns the canonical form of a title used as a lock
// key and in the used-topic history.
func NormalizedTitle(title string) string {
	tokens := Tokens(title)
	ordered := make([]string, 0, len(tokens))
	// Preserve original token order for readability of stored keys
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(b.String()) {
		if _, ok := tokens[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		ordered = append(ordered, tok)
	}
	return strings.Join(ordered, " ")
}

// IsUsed reports whether a candidate title duplicates any entry of the
// used-topic history at the given threshold.
func IsUsed(candidate string, used []string, threshold float64) bool {
	for _, title := range used {
		if Similarity(candidate, title) > threshold {
			return true
		}
	}
	return false
}
