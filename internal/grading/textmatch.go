package grading

import (
	"strings"
	"unicode"
)

// normalize does simple casefolding and trims punctuation/extra spaces.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range []rune(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			space = true
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

var clauseSeparators = []string{"—", "–", " - ", ":", "(", ";"}

// firstClause returns the text before the first clause separator.
func firstClause(s string) string {
	cut := len(s)
	for _, sep := range clauseSeparators {
		if i := strings.Index(s, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return s[:cut]
}

// fragmentMatches reports whether a remediation fragment describes label:
// the fragment occurs in the label, or the two first clauses agree on whole
// leading tokens.
func fragmentMatches(label, fragment string) bool {
	nf := normalize(fragment)
	if nf == "" {
		return false
	}
	if strings.Contains(normalize(label), nf) {
		return true
	}
	lc := normalize(firstClause(label))
	fc := normalize(firstClause(fragment))
	return lc != "" && fc != "" && (tokenPrefix(lc, fc) || tokenPrefix(fc, lc))
}

// tokenPrefix reports whether p is s or a run of s's leading words.
func tokenPrefix(s, p string) bool {
	return s == p || strings.HasPrefix(s, p+" ")
}
