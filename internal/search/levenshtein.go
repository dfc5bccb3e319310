// Package search implements fuzzy token matching and ranked retrieval over a
// built index: edit-distance-bounded token lookup, three scoring modes, and
// the consumption rule that stops one record token from satisfying several
// query tokens.
package search

import (
	"math"

	"github.com/specimen-curation/labelsearch/internal/index"
)

// levenshtein computes the edit distance between two strings, by rune.
// Single-row dynamic programming, O(min(m,n)) space.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	row := make([]int, len(ra)+1)
	for i := range row {
		row[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		prev := row[0]
		row[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := min(row[i]+1, min(row[i-1]+1, prev+cost))
			prev = row[i]
			row[i] = d
		}
	}
	return row[len(ra)]
}

// levenshteinBounded is levenshtein with an upper budget: as soon as every
// cell of a row exceeds the budget, it returns budget+1. The length
// difference alone settles most rejections before any DP work.
func levenshteinBounded(a, b string, budget int) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(rb)-len(ra) > budget {
		return budget + 1
	}
	if len(ra) == 0 {
		return len(rb)
	}
	row := make([]int, len(ra)+1)
	for i := range row {
		row[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		prev := row[0]
		row[0] = j
		rowMin := row[0]
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := min(row[i]+1, min(row[i-1]+1, prev+cost))
			prev = row[i]
			row[i] = d
			if d < rowMin {
				rowMin = d
			}
		}
		if rowMin > budget {
			return budget + 1
		}
	}
	if row[len(ra)] > budget {
		return budget + 1
	}
	return row[len(ra)]
}

// editBudget returns the edit-distance budget granted to a query token of n
// runes: floor(log2(n)) - 1, clamped to zero. Tokens shorter than four
// characters are statistically unreliable and must match exactly.
func editBudget(n int) int {
	if n < 2 {
		return 0
	}
	e := int(math.Log2(float64(n))) - 1
	if e < 1 {
		return 0
	}
	return e
}

// normalizedDistance returns the edit distance between the simplified forms
// of a and b, divided by the longer simplified length. Identical strings
// (including two empties) score 0.
func normalizedDistance(a, b string) float64 {
	a, b = index.Simplify(a), index.Simplify(b)
	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}
	if longer == 0 {
		return 0
	}
	return float64(levenshtein(a, b)) / float64(longer)
}
