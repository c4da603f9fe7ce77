package memory

import "strings"

// stopWords is a small, deliberately conservative English stop-word list —
// just enough to keep common function words from dominating the overlap
// score. Domain terms (even short ones) are left alone.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "such": {}, "that": {}, "the": {},
	"their": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {}, "i": {}, "you": {}, "we": {},
	"my": {}, "your": {}, "me": {}, "do": {}, "does": {}, "did": {},
}

// tokenize lowercases and splits on non-alphanumeric runs, dropping stop
// words and empty tokens.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// overlapScore counts how many of the query's distinct tokens appear in the
// candidate's token set.
func overlapScore(queryTokens []string, candidateSet map[string]struct{}) int {
	score := 0
	seen := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := candidateSet[t]; ok {
			score++
		}
	}
	return score
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
