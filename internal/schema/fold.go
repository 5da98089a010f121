package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// FoldName returns the canonical form of a column or variable name: BOM and
// surrounding space removed, NFKC-normalized, lower-cased. Source years spell
// the same column as RECNUMBR, RecNumbr or recnumbr; all fold to recnumbr.
func FoldName(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, utf8BOM))
	if s == "" {
		return ""
	}
	// cases.Caser carries state; one per call keeps FoldName goroutine-safe.
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}

// FoldAll folds every name in names, returning a new slice.
func FoldAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = FoldName(n)
	}
	return out
}
