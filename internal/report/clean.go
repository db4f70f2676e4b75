package report

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var typographic = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2013", "-",
	"\u2014", "-",
	"\u2026", "...",
	"\u00a0", " ",
)

// CleanText replaces typographic punctuation with ASCII and any remaining
// character outside Latin-1 with '?'. The result renders with the PDF core
// fonts.
func CleanText(s string) string {
	s = typographic.Replace(s)
	return strings.Map(func(r rune) rune {
		if _, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			return r
		}
		return '?'
	}, s)
}

// latin1 cleans s and encodes it as Latin-1 bytes for the PDF writer.
func latin1(s string) string {
	out, err := charmap.ISO8859_1.NewEncoder().String(CleanText(s))
	if err != nil {
		// Unreachable after CleanText; fall back to the cleaned UTF-8.
		return CleanText(s)
	}
	return out
}
