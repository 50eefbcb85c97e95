package dataset

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizePath returns the NFC form of an image path with forward slashes.
// File names written on macOS arrive decomposed while browsers send composed
// characters, so lookups compare normalized keys.
func NormalizePath(p string) string {
	return norm.NFC.String(strings.ReplaceAll(p, "\\", "/"))
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Gérôme" -> "Gerome").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeAuthor folds an author name for comparison: lowercase, no
// diacritics, and no separators, so "Van-Gogh", "van_gogh" and "vanGogh" match.
func NormalizeAuthor(name string) string {
	name = strings.ToLower(RemoveDiacritics(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// MatchAuthors returns the authors whose normalized name contains the
// normalized query, in input order.
func MatchAuthors(query string, authors []string) []string {
	q := NormalizeAuthor(query)
	var out []string
	for _, a := range authors {
		if strings.Contains(NormalizeAuthor(a), q) {
			out = append(out, a)
		}
	}
	return out
}
