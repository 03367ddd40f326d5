// Package search builds the matching inputs for catalog name search. Product
// names are stored alongside a folded form (lowercased, diacritics stripped)
// so that linguistic case and diacritic variants compare equal, the way a
// strength-1 collation would treat them.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold returns the canonical matching form of a name: diacritics removed and
// case lowered. Applied to names on write and to queries on read.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NamePattern converts user search input into a POSIX regex for substring
// matching against the folded name column. The input is regex-escaped to
// prevent injection, and internal whitespace becomes a flexible separator.
// Returns "" for blank input.
func NamePattern(q string) string {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return ""
	}

	escaped := regexp.QuoteMeta(Fold(trimmed))
	return whitespaceRun.ReplaceAllString(escaped, `\s+`)
}
