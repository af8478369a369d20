package services

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatureReplacer = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// CleanText bereitet Titel und Abstracts aus Feeds auf: Ligaturen auflösen, NFC,
// Zeilenumbrüche und Mehrfach-Leerraum zu einfachen Spaces.
func CleanText(s string) string {
	s = ligatureReplacer.Replace(s)
	if normalized, _, err := transform.String(norm.NFC, s); err == nil {
		s = normalized
	}
	return strings.Join(strings.Fields(s), " ")
}
