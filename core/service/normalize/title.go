package normalize

import "strings"

// noiseTokens are standalone tokens dropped from titles: seniority markers,
// roman numerals, and level digits all vary across postings for the same role.
var noiseTokens = map[string]struct{}{
	"sr": {}, "jr": {}, "senior": {}, "junior": {},
	"lead": {}, "principal": {}, "staff": {},
	"i": {}, "ii": {}, "iii": {}, "iv": {}, "v": {},
	"vi": {}, "vii": {}, "viii": {}, "ix": {}, "x": {},
}

// NormalizeTitle canonicalizes a position title: lowercase, strip punctuation,
// drop seniority/roman-numeral/digit tokens, collapse whitespace. Empty input
// yields "".
func NormalizeTitle(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' || r == '\t' || r == '\n' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	kept := make([]string, 0, 8)
	for _, tok := range strings.Fields(b.String()) {
		if _, noise := noiseTokens[tok]; noise {
			continue
		}
		if isDigits(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// TitleSimilarity scores two titles in [0,1]. Equal normalized strings score
// 1.0, an empty side scores 0, anything else scores the Jaccard similarity of
// the token sets.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	setA := toSet(strings.Fields(na))
	setB := toSet(strings.Fields(nb))
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
