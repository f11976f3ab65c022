package fuzzy

import (
	"strings"
)

// LevenshteinDistance calculates the edit distance between two strings
// after lowercasing and collapsing whitespace.
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalizeString(s1))
	r2 := []rune(normalizeString(s2))
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// Threshold is the typo tolerance for a query of the given length
func Threshold(query string) int {
	n := len([]rune(query))
	switch {
	case n <= 3:
		return 0
	case n >= 8:
		return 2
	default:
		return 1
	}
}

// FuzzyMatch checks if query fuzzy-matches text within a given threshold
// threshold is the maximum allowed edit distance per word
func FuzzyMatch(query, text string, threshold int) bool {
	return fieldScore(normalizeString(query), normalizeString(text), threshold) > 0
}

// RelevanceScore scores how relevant a support email is to a query.
// Subject hits weigh most, then the sender, then the body.
func RelevanceScore(query, subject, from, body string) float64 {
	q := normalizeString(query)
	if q == "" {
		return 0
	}
	threshold := Threshold(q)

	if len(body) > 2000 {
		body = body[:2000]
	}
	return 3*fieldScore(q, normalizeString(subject), threshold) +
		2*fieldScore(q, normalizeString(from), threshold) +
		fieldScore(q, normalizeString(body), threshold)
}

// fieldScore expects normalized input
func fieldScore(query, text string, threshold int) float64 {
	if query == "" || text == "" {
		return 0
	}
	if strings.Contains(text, query) {
		if containsWord(text, query) {
			return 50
		}
		return 35
	}

	best := 0.0
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:!?()[]<>\"'")
		if strings.HasPrefix(word, query) {
			best = max(best, 25)
			continue
		}
		if dist := LevenshteinDistance(query, word); dist <= threshold {
			best = max(best, 20-float64(dist)*5)
		}
	}
	return best
}

// normalizeString converts to lowercase and collapses whitespace
func normalizeString(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// containsWord checks if text contains query as a whole word
func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if strings.Trim(word, ".,;:!?()[]<>\"'") == query {
			return true
		}
	}
	return false
}
