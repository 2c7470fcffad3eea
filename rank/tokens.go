package rank

import (
	"math"
	"strings"
	"unicode"
)

// tokenize lower-cases s and splits it into words of letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// terms returns the distinct tokens of s in first-seen order.
func terms(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range tokenize(s) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// termFrequency scores how often and how densely terms occur in content:
// occurrences / sqrt(words).
func termFrequency(content string, queryTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	words := tokenize(content)
	if len(words) == 0 {
		return 0
	}
	set := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		set[t] = true
	}
	count := 0
	for _, w := range words {
		if set[w] {
			count++
		}
	}
	return float64(count) / math.Sqrt(float64(len(words)))
}

// minSpan returns the length in words of the shortest window of content
// holding every term, or 0 when some term is missing.
func minSpan(content string, queryTerms []string) int {
	words := tokenize(content)
	want := make(map[string]int, len(queryTerms))
	for i, t := range queryTerms {
		want[t] = i
	}
	counts := make([]int, len(queryTerms))
	covered := 0
	best := 0
	left := 0
	for right, w := range words {
		idx, ok := want[w]
		if !ok {
			continue
		}
		if counts[idx] == 0 {
			covered++
		}
		counts[idx]++
		for covered == len(queryTerms) {
			if span := right - left + 1; best == 0 || span < best {
				best = span
			}
			if li, ok := want[words[left]]; ok {
				counts[li]--
				if counts[li] == 0 {
					covered--
				}
			}
			left++
		}
	}
	return best
}

// proximityBonus is terms/span in (0, 1], or 0 when some term is missing.
func proximityBonus(content string, queryTerms []string) float64 {
	span := minSpan(content, queryTerms)
	if span == 0 {
		return 0
	}
	return float64(len(queryTerms)) / float64(span)
}
