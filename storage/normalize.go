package storage

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// NormalizeName bringt einen Entitätsnamen in die gespeicherte Form:
// Ligaturen aufgelöst, NFC, getrimmt, Leerraum zusammengefasst. Groß-/Kleinschreibung bleibt erhalten.
func NormalizeName(s string) string {
	s = ligatures.Replace(s)
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		normalized = s
	}
	return strings.Join(strings.Fields(normalized), " ")
}
