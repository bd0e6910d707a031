package entity

import (
	"regexp"
	"sort"
	"strings"
)

const (
	glyphMinLen = 4
	glyphTop    = 5
)

var wordPattern = regexp.MustCompile(`\b[a-zA-Z]+\b`)

// ExtractGlyphs returns the most frequent words of at least four letters in
// text, lowercased, up to five. Ties keep first-occurrence order.
func ExtractGlyphs(text string) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) < glyphMinLen {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > glyphTop {
		order = order[:glyphTop]
	}
	return order
}
