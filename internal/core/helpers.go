package core

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// headerLower lowercases headers without locale-specific rules.
var headerLower = cases.Lower(language.Und)

// NormalizeHeaders maps raw header cells to canonical, unique column names.
//
// Each header is trimmed, lowercased, stripped of diacritics, and every run of
// characters that are neither letters nor digits becomes a single underscore.
// Letters from any script are kept. Leading and trailing
// underscores are dropped and an empty result becomes column_<n> (1-based).
// Duplicates are then resolved left to right by appending the smallest unused
// suffix: name, name_2, name_3, ...
func NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))

	for i, h := range raw {
		name := normalizeHeader(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}

		if used[name] {
			base := name
			for n := 2; ; n++ {
				candidate := base + "_" + strconv.Itoa(n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}

		used[name] = true
		out[i] = name
	}

	return out
}

// normalizeHeader canonicalizes a single header without collision handling.
func normalizeHeader(h string) string {
	s := headerLower.String(strings.TrimSpace(h))
	s = foldDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if isIdentRune(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// foldDiacritics removes combining marks so "café" becomes "cafe".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
