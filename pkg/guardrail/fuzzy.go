package guardrail

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultFuzzyThreshold is the similarity a fuzzy match must reach before a
// token is rewritten. The value is empirical and open to revision against a
// larger corpus of real boards.
const DefaultFuzzyThreshold = 0.97

// suggestCutoff is the similarity floor for suggestions shown to a human.
const suggestCutoff = 0.6

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Similarity is the SequenceMatcher ratio of a against b, in [0, 1].
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

// bestMatch returns the single candidate most similar to token when it
// reaches threshold. A tie at the best score yields no match.
func bestMatch(token string, candidates []string, threshold float64) (string, bool) {
	var (
		best      string
		bestScore float64
		count     int
	)
	for _, c := range candidates {
		score := Similarity(token, c)
		switch {
		case score > bestScore:
			best, bestScore, count = c, score, 1
		case score == bestScore:
			count++
		}
	}
	if best != "" && bestScore >= threshold && count == 1 {
		return best, true
	}
	return "", false
}

// closeMatches returns up to n candidates whose similarity to word is at
// least cutoff, best first. Equal scores order by descending candidate.
func closeMatches(word string, candidates []string, n int, cutoff float64) []string {
	if n <= 0 {
		return nil
	}
	type scored struct {
		s     string
		score float64
	}
	b := chars(word)
	var hits []scored
	for _, c := range candidates {
		m := difflib.NewMatcher(chars(c), b)
		if m.RealQuickRatio() >= cutoff && m.QuickRatio() >= cutoff {
			if r := m.Ratio(); r >= cutoff {
				hits = append(hits, scored{c, r})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].s > hits[j].s
	})
	out := make([]string, 0, min(n, len(hits)))
	for _, h := range hits[:min(n, len(hits))] {
		out = append(out, h.s)
	}
	return out
}

// prefixOf is the part of a canonical net before its first underscore.
func prefixOf(canon string) string {
	if i := strings.IndexByte(canon, '_'); i >= 0 {
		return canon[:i]
	}
	return canon
}
