package matcher

import (
	"sort"
	"strings"
)

// normalizedWords lowercases s and splits it into a set of alphanumeric-only
// words (spec.md §4.6).
func normalizedWords(s string) map[string]struct{} {
	s = strings.ToLower(s)
	var b strings.Builder
	words := make(map[string]struct{})
	flush := func() {
		if b.Len() > 0 {
			words[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// jaccard computes the Jaccard similarity between two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// candidate pairs a scored similarity with the two markets it compares.
type candidate struct {
	similarity float64
	polyIdx    int
	kalshiIdx  int
}

// rankCandidates sorts by descending similarity and truncates to
// maxCandidates.
func rankCandidates(cands []candidate) []candidate {
	sort.Slice(cands, func(i, j int) bool { return cands[i].similarity > cands[j].similarity })
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	return cands
}
