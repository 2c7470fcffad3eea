package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/viant/scriptsearch/model"
)

const (
	maxHighlights = 3
	snippetRadius = 40
	ellipsis      = "..."
)

// highlights returns up to three non-overlapping snippets of content around
// case-insensitive occurrences of needles, in content order.
func highlights(content string, needles []string) []string {
	if content == "" {
		return nil
	}
	haystack, folded := strings.ToLower(content), true
	if len(haystack) != len(content) {
		// Lower-casing changed byte offsets; match case-sensitively instead.
		haystack, folded = content, false
	}
	type hit struct{ start, end int }
	var hits []hit
	for _, n := range needles {
		n = strings.TrimSpace(n)
		if folded {
			n = strings.ToLower(n)
		}
		if n == "" {
			continue
		}
		for from := 0; from < len(haystack); {
			i := strings.Index(haystack[from:], n)
			if i < 0 {
				break
			}
			start := from + i
			hits = append(hits, hit{start: start, end: start + len(n)})
			from = start + len(n)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	var out []string
	covered := -1
	for _, h := range hits {
		if h.start < covered {
			continue
		}
		start := runeStart(content, max(0, h.start-snippetRadius))
		end := runeStart(content, min(len(content), h.end+snippetRadius))
		snippet := strings.TrimSpace(content[start:end])
		if start > 0 {
			snippet = ellipsis + snippet
		}
		if end < len(content) {
			snippet += ellipsis
		}
		out = append(out, snippet)
		covered = end
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}

// runeStart moves i back to the start of the rune containing it.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// needles lists the query strings highlighted in matched content.
func needles(q model.Query) []string {
	var out []string
	for _, v := range []string{q.TextQuery, q.Dialogue, q.Action} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// highlight fills Highlights from scene content, or from the matched
// dialogue line when the content has no occurrence.
func highlight(results []model.Result, q model.Query) {
	terms := needles(q)
	if len(terms) == 0 {
		return
	}
	for i := range results {
		h := highlights(results[i].SceneContent, terms)
		if len(h) == 0 && results[i].MatchedText != "" {
			h = highlights(results[i].MatchedText, terms)
		}
		results[i].Highlights = h
	}
}
