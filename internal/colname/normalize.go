// Package colname canonicalizes spreadsheet header names so that headers from
// bank exports can be matched regardless of case, spacing or Turkish
// diacritics.
package colname

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	junkReplacer = strings.NewReplacer("\ufeff", "", "\u00a0", " ", "\ufffd", "")
	sepReplacer  = strings.NewReplacer("_", " ", "-", " ", "/", " ")
	dotlessI     = strings.NewReplacer("ı", "i", "İ", "i")
	whitespace   = regexp.MustCompile(`\s+`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9 ]`)
)

// Normalize returns the canonical form of a header name: BOM/NBSP removed,
// separators folded to single spaces, lowercased, Turkish letters folded to
// ASCII and anything outside [a-z0-9 ] dropped.
func Normalize(name string) string {
	s := strings.TrimSpace(junkReplacer.Replace(name))
	if s == "" {
		return ""
	}
	s = sepReplacer.Replace(s)
	s = whitespace.ReplaceAllString(s, " ")
	s = Fold(s)
	s = nonAlnum.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Fold lowercases s and strips diacritics (ş→s, ğ→g, ı/İ→i, ü→u, ö→o, ç→c)
// while keeping punctuation. It is used for substring searches over
// filenames and transaction type text.
func Fold(s string) string {
	s = dotlessI.Replace(s)
	s = strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ContainsFold reports whether substr is within s after folding both.
func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}
