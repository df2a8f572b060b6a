// Package suggest proposes near matches for misspelled names.
package suggest

import (
	"fmt"
	"sort"
	"strings"
)

// maxResults bounds the number of names returned by Similar.
const maxResults = 3

type match struct {
	name     string
	distance int
}

// Similar returns up to three candidates close to target, nearest first.
// Comparison ignores case; exact matches are not returned.
func Similar(target string, candidates []string) []string {
	if target == "" {
		return nil
	}
	lower := strings.ToLower(target)
	threshold := 3
	if len(lower) <= 3 {
		threshold = 1
	} else if len(lower) <= 5 {
		threshold = 2
	}
	var matches []match
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if c == "" || lc == lower {
			continue
		}
		if d := distance(lower, lc); d <= threshold {
			matches = append(matches, match{name: c, distance: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return names
}

// Hint formats the candidates close to target as a parenthesized suffix,
// or returns the empty string when nothing is close.
func Hint(target string, candidates []string) string {
	names := Similar(target, candidates)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf(" (did you mean %q?)", names[0])
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf(" (did you mean one of: %s?)", strings.Join(quoted, ", "))
}

// distance is the Levenshtein edit distance over runes, computed with two
// rows.
func distance(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) > len(br) {
		ar, br = br, ar
	}
	prev := make([]int, len(ar)+1)
	curr := make([]int, len(ar)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(br); j++ {
		curr[0] = j
		for i := 1; i <= len(ar); i++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ar)]
}
